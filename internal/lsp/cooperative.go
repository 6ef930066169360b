package lsp

import (
	"context"

	"github.com/mcncl/lsp-boot/internal/queue"
	"github.com/mcncl/lsp-boot/internal/transport"
)

// UpdateResult reports what a single cooperative step did.
type UpdateResult int

const (
	// UpdateIdle means no job was waiting.
	UpdateIdle UpdateResult = iota
	// UpdateBusy means one job ran and more may be waiting.
	UpdateBusy
	// UpdateShutdown means exit was requested; queued jobs were discarded.
	UpdateShutdown
)

// Cooperative runs every job on the goroutine that calls Update or Run.
type Cooperative struct {
	engine engine
	inbox  *queue.Queue[transport.ReceivedMessage]
	jobs   *queue.Queue[Job]
	exited bool
}

func newCooperative(e engine, inbox *queue.Queue[transport.ReceivedMessage]) *Cooperative {
	return &Cooperative{
		engine: e,
		inbox:  inbox,
		jobs:   queue.New[Job](),
	}
}

// Push queues a job and wakes Run if it is waiting for input.
func (c *Cooperative) Push(job Job) {
	c.jobs.Push(job)
	c.inbox.Notify()
}

// Pending returns the number of queued jobs.
func (c *Cooperative) Pending() int {
	return c.jobs.Len()
}

// Update routes every message already in the inbox, then pumps the
// implementation and runs at most one job. It never blocks.
func (c *Cooperative) Update(ctx context.Context) UpdateResult {
	if c.exited {
		return UpdateShutdown
	}

	for {
		msg, ok := c.inbox.TryPop()
		if !ok {
			break
		}
		if !c.accept(msg) {
			return UpdateShutdown
		}
	}

	job, ok := c.jobs.TryPop()
	if !ok {
		return UpdateIdle
	}
	if c.engine.ready() {
		c.engine.pump(ctx)
	}
	c.engine.execute(ctx, job)
	return UpdateBusy
}

// Run alternates Update with blocking waits on the inbox. A wait ends when a
// message arrives, a job is pushed, input ends, or ctx is done.
func (c *Cooperative) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, c.inbox.Notify)
	defer stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		switch c.Update(ctx) {
		case UpdateShutdown:
			return nil
		case UpdateBusy:
			continue
		}

		msg, ok := c.inbox.PopWithAbort(func() bool {
			return ctx.Err() != nil || c.jobs.Len() > 0
		})
		if ok {
			if !c.accept(msg) {
				return nil
			}
			continue
		}
		if c.inbox.Closed() && c.jobs.Len() == 0 {
			return nil
		}
	}
}

// accept routes msg and queues its job. It returns false on exit.
func (c *Cooperative) accept(msg transport.ReceivedMessage) bool {
	r := c.engine.route(msg)
	if r.Outcome == OutcomeExit {
		c.exit()
		return false
	}
	if r.Job != nil {
		c.jobs.Push(r.Job)
	}
	return true
}

func (c *Cooperative) exit() {
	c.exited = true
	for {
		if _, ok := c.jobs.TryPop(); !ok {
			return
		}
	}
}

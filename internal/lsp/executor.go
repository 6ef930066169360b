package lsp

import (
	"context"
	"errors"

	"go.uber.org/atomic"

	"github.com/mcncl/lsp-boot/internal/queue"
	"github.com/mcncl/lsp-boot/internal/transport"
)

// Executor runs jobs on a single dedicated goroutine in the order they were
// pushed. A bridge goroutine moves messages from the inbox into the job
// queue.
type Executor struct {
	engine engine
	inbox  *queue.Queue[transport.ReceivedMessage]
	work   *queue.Queue[Job]

	stopped atomic.Bool
}

func newExecutor(e engine, inbox *queue.Queue[transport.ReceivedMessage]) *Executor {
	return &Executor{
		engine: e,
		inbox:  inbox,
		work:   queue.New[Job](),
	}
}

// Push posts a job to the executor. Jobs pushed after exit are dropped.
func (x *Executor) Push(job Job) {
	if x.stopped.Load() {
		return
	}
	x.work.Push(job)
}

// Pending returns the number of posted jobs not yet started.
func (x *Executor) Pending() int {
	return x.work.Len()
}

// Run executes jobs until exit, until input ends and the queue has drained,
// or until ctx is done.
func (x *Executor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bridged := make(chan struct{})
	go func() {
		defer close(bridged)
		x.bridge(ctx)
	}()

	err := x.loop(ctx)
	cancel()
	<-bridged
	return err
}

func (x *Executor) bridge(ctx context.Context) {
	for {
		msg, err := x.inbox.PopContext(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) {
				// Input ended: release the keep-alive and let queued work drain.
				x.work.Close()
			}
			return
		}

		r := x.engine.route(msg)
		if r.Outcome == OutcomeExit {
			x.stop()
			return
		}
		if r.Job != nil {
			x.Push(r.Job)
		}
	}
}

func (x *Executor) loop(ctx context.Context) error {
	for {
		job, err := x.work.PopContext(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrClosed) {
				return nil
			}
			return err
		}
		if x.stopped.Load() {
			return nil
		}

		if x.engine.ready() {
			x.engine.pump(ctx)
		}
		x.engine.execute(ctx, job)
	}
}

// stop discards jobs that have not started and closes the queue. A job
// already running is allowed to finish.
func (x *Executor) stop() {
	x.stopped.Store(true)
	for {
		if _, ok := x.work.TryPop(); !ok {
			break
		}
	}
	x.work.Close()
}

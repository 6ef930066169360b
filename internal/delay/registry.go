// Package delay schedules one-shot tasks keyed by an identifier. Rescheduling
// an identifier supersedes the previous task; stale timer firings are
// detected by comparing generations rather than by relying on timer
// cancellation.
package delay

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is the work run when a delay elapses.
type Task func(ctx context.Context)

// PostFunc hands a firing to the scheduler that serialises task execution.
type PostFunc func(run func(ctx context.Context))

type entry struct {
	task  Task
	gen   uint64
	timer *time.Timer
}

// Registry holds at most one pending task per identifier. Generations come
// from one counter shared by all identifiers, so a generation is never
// reused after its entry is cancelled or has run.
type Registry[K comparable] struct {
	mu      sync.Mutex
	entries map[K]*entry
	gen     uint64
	post    PostFunc
	logger  *zap.Logger
	stopped bool
}

// New creates a registry whose firings are handed to post.
func New[K comparable](post PostFunc, logger *zap.Logger) *Registry[K] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry[K]{
		entries: make(map[K]*entry),
		post:    post,
		logger:  logger,
	}
}

// Schedule arms task to run after d. If id already has a pending task, that
// task is replaced and any firing already in flight for it is dropped.
func (r *Registry[K]) Schedule(id K, d time.Duration, task Task) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return
	}

	e, ok := r.entries[id]
	if ok {
		e.timer.Stop()
	} else {
		e = &entry{}
		r.entries[id] = e
	}
	r.gen++
	e.gen = r.gen
	e.task = task

	gen := e.gen
	e.timer = time.AfterFunc(d, func() {
		r.post(func(ctx context.Context) { r.fire(ctx, id, gen) })
	})
}

// Cancel drops the pending task for id, if any. A task that has already
// started running is not interrupted.
func (r *Registry[K]) Cancel(id K) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(r.entries, id)
	return true
}

// Stop cancels every pending task. Later calls to Schedule are ignored.
func (r *Registry[K]) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, e := range r.entries {
		e.timer.Stop()
		delete(r.entries, id)
	}
	r.stopped = true
}

// Len returns the number of pending tasks.
func (r *Registry[K]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *Registry[K]) fire(ctx context.Context, id K, gen uint64) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		r.logger.Debug("delayed task no longer pending", zap.Any("id", id))
		return
	}
	if e.gen != gen {
		current := e.gen
		r.mu.Unlock()
		r.logger.Warn("dropping superseded delayed task",
			zap.Any("id", id),
			zap.Uint64("generation", gen),
			zap.Uint64("current", current))
		return
	}
	task := e.task
	delete(r.entries, id)
	r.mu.Unlock()

	task(ctx)
}

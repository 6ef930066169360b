package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by PopContext once the queue has been closed and
// every remaining item has been consumed.
var ErrClosed = errors.New("queue closed")

// Queue is an unbounded FIFO that is safe for concurrent producers and
// consumers. Consumers may block until an item arrives, until an external
// abort condition holds, or until the queue is closed.
type Queue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	head   int
	closed bool
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	q := &Queue[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends an item and wakes one blocked consumer. Pushing to a closed
// queue is a no-op.
func (q *Queue[T]) Push(item T) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.cond.Signal()
}

// Pop blocks until an item is available. It returns false only when the
// queue has been closed and drained.
func (q *Queue[T]) Pop() (T, bool) {
	return q.PopWithAbort(nil)
}

// PopWithAbort blocks until an item is available or abort reports true.
// abort is evaluated with the queue lock held, so it must not call back into
// the queue. Callers that change the abort condition from another goroutine
// must call Notify afterwards.
func (q *Queue[T]) PopWithAbort(abort func() bool) (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.lenLocked() == 0 {
		if q.closed || (abort != nil && abort()) {
			var zero T
			return zero, false
		}
		q.cond.Wait()
	}
	return q.popLocked(), true
}

// PopContext blocks until an item is available or ctx is done. It returns
// ctx.Err() on cancellation and ErrClosed once the queue is closed and empty.
func (q *Queue[T]) PopContext(ctx context.Context) (T, error) {
	stop := context.AfterFunc(ctx, q.Notify)
	defer stop()

	item, ok := q.PopWithAbort(func() bool { return ctx.Err() != nil })
	if ok {
		return item, nil
	}
	if err := ctx.Err(); err != nil {
		return item, err
	}
	return item, ErrClosed
}

// TryPop removes the oldest item without blocking.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.lenLocked() == 0 {
		var zero T
		return zero, false
	}
	return q.popLocked(), true
}

// Notify wakes every blocked consumer so it can re-check its abort condition.
func (q *Queue[T]) Notify() {
	q.mu.Lock()
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Close marks the end of input. Items already queued can still be popped.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Closed reports whether Close has been called.
func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked()
}

func (q *Queue[T]) lenLocked() int {
	return len(q.items) - q.head
}

func (q *Queue[T]) popLocked() T {
	var zero T
	item := q.items[q.head]
	q.items[q.head] = zero
	q.head++

	// Reclaim the consumed prefix once it dominates the backing array.
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 32 && q.head*2 > len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return item
}

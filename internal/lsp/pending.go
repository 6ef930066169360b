package lsp

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/encoding/json"
	"go.lsp.dev/jsonrpc2"
)

var (
	// ErrDuplicateRequestID is returned when an outgoing request id is
	// already awaiting a response.
	ErrDuplicateRequestID = errors.New("outgoing request id already pending")

	// ErrShutdown is passed to response handlers still pending when the
	// server stops.
	ErrShutdown = errors.New("server stopped before a response arrived")
)

// DefaultPendingTTL is how long an outgoing request may wait for a response
// before its handler is failed.
const DefaultPendingTTL = 60 * time.Second

// ResponseHandler receives the outcome of an outgoing request. Exactly one of
// result and err is meaningful.
type ResponseHandler func(ctx context.Context, result json.RawMessage, err error)

type pendingEntry struct {
	handler ResponseHandler
	sentAt  time.Time
}

// PendingRequests correlates outgoing request ids with their handlers.
type PendingRequests struct {
	mu      sync.Mutex
	entries map[jsonrpc2.ID]pendingEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewPendingRequests creates an empty table. A ttl of zero disables expiry.
func NewPendingRequests(ttl time.Duration) *PendingRequests {
	return &PendingRequests{
		entries: make(map[jsonrpc2.ID]pendingEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Add records handler for id.
func (p *PendingRequests) Add(id jsonrpc2.ID, handler ResponseHandler) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.entries[id]; ok {
		return ErrDuplicateRequestID
	}
	p.entries[id] = pendingEntry{handler: handler, sentAt: p.now()}
	return nil
}

// Resolve removes and returns the handler for id.
func (p *PendingRequests) Resolve(id jsonrpc2.ID) (ResponseHandler, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[id]
	if !ok {
		return nil, false
	}
	delete(p.entries, id)
	return e.handler, true
}

// Expire removes entries older than the ttl and returns their handlers.
func (p *PendingRequests) Expire(now time.Time) []ResponseHandler {
	if p.ttl <= 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var expired []ResponseHandler
	for id, e := range p.entries {
		if now.Sub(e.sentAt) >= p.ttl {
			expired = append(expired, e.handler)
			delete(p.entries, id)
		}
	}
	return expired
}

// Drain removes every entry and returns the handlers.
func (p *PendingRequests) Drain() []ResponseHandler {
	p.mu.Lock()
	defer p.mu.Unlock()

	handlers := make([]ResponseHandler, 0, len(p.entries))
	for id, e := range p.entries {
		handlers = append(handlers, e.handler)
		delete(p.entries, id)
	}
	return handlers
}

// Len returns the number of requests awaiting a response.
func (p *PendingRequests) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

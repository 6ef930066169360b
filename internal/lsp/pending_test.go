package lsp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/encoding/json"
	"go.lsp.dev/jsonrpc2"
)

func TestPendingRequests_AddResolve(t *testing.T) {
	p := NewPendingRequests(time.Minute)
	id := jsonrpc2.NewNumberID(1)

	called := false
	if err := p.Add(id, func(context.Context, json.RawMessage, error) { called = true }); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := p.Add(id, func(context.Context, json.RawMessage, error) {}); !errors.Is(err, ErrDuplicateRequestID) {
		t.Errorf("Expected ErrDuplicateRequestID, got %v", err)
	}

	handler, ok := p.Resolve(id)
	if !ok {
		t.Fatal("Resolve should find the pending id")
	}
	handler(context.Background(), nil, nil)
	if !called {
		t.Error("Resolve returned the wrong handler")
	}

	if _, ok := p.Resolve(id); ok {
		t.Error("Resolve should remove the entry")
	}
}

func TestPendingRequests_StringAndNumberIDsDiffer(t *testing.T) {
	p := NewPendingRequests(0)
	noop := func(context.Context, json.RawMessage, error) {}

	if err := p.Add(jsonrpc2.NewNumberID(1), noop); err != nil {
		t.Fatal(err)
	}
	if err := p.Add(jsonrpc2.NewStringID("1"), noop); err != nil {
		t.Errorf("String id \"1\" should not collide with number id 1: %v", err)
	}
	if p.Len() != 2 {
		t.Errorf("Expected 2 entries, got %d", p.Len())
	}
}

func TestPendingRequests_Expire(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	p := NewPendingRequests(30 * time.Second)
	p.now = func() time.Time { return now }

	noop := func(context.Context, json.RawMessage, error) {}
	_ = p.Add(jsonrpc2.NewNumberID(1), noop)
	now = now.Add(20 * time.Second)
	_ = p.Add(jsonrpc2.NewNumberID(2), noop)

	if got := p.Expire(now.Add(5 * time.Second)); len(got) != 0 {
		t.Errorf("Nothing should expire yet, got %d", len(got))
	}
	if got := p.Expire(now.Add(10 * time.Second)); len(got) != 1 {
		t.Errorf("Expected the first request to expire, got %d", len(got))
	}
	if _, ok := p.Resolve(jsonrpc2.NewNumberID(2)); !ok {
		t.Error("Second request should still be pending")
	}
}

func TestPendingRequests_ZeroTTLNeverExpires(t *testing.T) {
	p := NewPendingRequests(0)
	_ = p.Add(jsonrpc2.NewNumberID(1), func(context.Context, json.RawMessage, error) {})

	if got := p.Expire(time.Now().Add(24 * time.Hour)); got != nil {
		t.Errorf("Zero ttl should disable expiry, got %d handlers", len(got))
	}
}

func TestPendingRequests_Drain(t *testing.T) {
	p := NewPendingRequests(time.Minute)
	for i := int32(0); i < 3; i++ {
		_ = p.Add(jsonrpc2.NewNumberID(i), func(context.Context, json.RawMessage, error) {})
	}

	if got := p.Drain(); len(got) != 3 {
		t.Errorf("Expected 3 drained handlers, got %d", len(got))
	}
	if p.Len() != 0 {
		t.Errorf("Table should be empty after drain, has %d", p.Len())
	}
}

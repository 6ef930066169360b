package lsp

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/encoding/json"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/atomic"
	"go.uber.org/zap/zaptest"

	"github.com/mcncl/lsp-boot/internal/queue"
	"github.com/mcncl/lsp-boot/internal/transport"
)

// fakeImpl records every call and detects overlapping calls.
type fakeImpl struct {
	client Client

	onRequest      func(ctx context.Context, req Request) (any, error)
	onNotification func(ctx context.Context, n Notification) error
	onPump         func(ctx context.Context)
	callDelay      time.Duration

	mu    sync.Mutex
	calls []string
	pumps int

	active   atomic.Int32
	overlaps atomic.Int32
}

func (f *fakeImpl) factory() Factory {
	return func(c Client) Implementation {
		f.client = c
		return f
	}
}

func (f *fakeImpl) enter(name string) func() {
	if f.active.Inc() > 1 {
		f.overlaps.Inc()
	}
	f.mu.Lock()
	f.calls = append(f.calls, name)
	f.mu.Unlock()
	if f.callDelay > 0 {
		time.Sleep(f.callDelay)
	}
	return func() { f.active.Dec() }
}

func (f *fakeImpl) HandleRequest(ctx context.Context, req Request) (any, error) {
	defer f.enter(req.Method())()
	if f.onRequest != nil {
		return f.onRequest(ctx, req)
	}
	return defaultResult(req)
}

func (f *fakeImpl) HandleNotification(ctx context.Context, n Notification) error {
	defer f.enter(n.Method())()
	if f.onNotification != nil {
		return f.onNotification(ctx, n)
	}
	return nil
}

func (f *fakeImpl) Pump(ctx context.Context) {
	defer f.enter("pump")()
	f.mu.Lock()
	f.pumps++
	f.mu.Unlock()
	if f.onPump != nil {
		f.onPump(ctx)
	}
}

func (f *fakeImpl) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if c != "pump" {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeImpl) Pumps() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pumps
}

func defaultResult(req Request) (any, error) {
	switch req.(type) {
	case *InitializeRequest:
		return &protocol.InitializeResult{
			ServerInfo: &protocol.ServerInfo{Name: "fake", Version: "test"},
		}, nil
	case *ShutdownRequest:
		return nil, nil
	case *CustomRequest:
		return nil, jsonrpc2.ErrMethodNotFound
	default:
		return map[string]string{"method": req.Method()}, nil
	}
}

type testServer struct {
	*Server
	impl   *fakeImpl
	inbox  *queue.Queue[transport.ReceivedMessage]
	outbox *queue.Queue[*transport.Envelope]
}

func newTestServer(t *testing.T, impl *fakeImpl, opts ...Option) *testServer {
	t.Helper()
	if impl == nil {
		impl = &fakeImpl{}
	}
	inbox := queue.New[transport.ReceivedMessage]()
	outbox := queue.New[*transport.Envelope]()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	s := NewServer(impl.factory(), inbox, outbox, opts...)
	return &testServer{Server: s, impl: impl, inbox: inbox, outbox: outbox}
}

// feed decodes each body and pushes it to the inbox.
func (ts *testServer) feed(t *testing.T, bodies ...string) {
	t.Helper()
	for _, body := range bodies {
		ts.inbox.Push(message(t, body))
	}
}

// settle runs cooperative updates until the server is idle or exits.
func (ts *testServer) settle(t *testing.T) UpdateResult {
	t.Helper()
	coop, ok := ts.scheduler.(*Cooperative)
	if !ok {
		t.Fatal("settle requires a cooperative server")
	}
	for i := 0; i < 1000; i++ {
		if res := coop.Update(context.Background()); res != UpdateBusy {
			return res
		}
	}
	t.Fatal("server did not settle")
	return UpdateBusy
}

// sent drains the outbox.
func (ts *testServer) sent() []*transport.Envelope {
	var out []*transport.Envelope
	for {
		env, ok := ts.outbox.TryPop()
		if !ok {
			return out
		}
		out = append(out, env)
	}
}

func (ts *testServer) initialize(t *testing.T) {
	t.Helper()
	ts.feed(t, `{"jsonrpc":"2.0","id":"init","method":"initialize","params":{"processId":1,"rootUri":null,"capabilities":{}}}`)
	ts.settle(t)
	out := ts.sent()
	if len(out) != 1 || out[0].Error != nil {
		t.Fatalf("initialize failed: %+v", out)
	}
}

func message(t *testing.T, body string) transport.ReceivedMessage {
	t.Helper()
	var env transport.Envelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		t.Fatalf("decoding %s: %v", body, err)
	}
	return transport.ReceivedMessage{Envelope: env, ReceivedAt: time.Now()}
}

func errorCode(env *transport.Envelope) jsonrpc2.Code {
	if env.Error == nil {
		return 0
	}
	return env.Error.Code
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

package example

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/mcncl/lsp-boot/internal/lsp"
)

type sentNotification struct {
	method string
	params any
}

type sentRequest struct {
	method  string
	params  any
	handler lsp.ResponseHandler
}

type delayedTask struct {
	delay time.Duration
	task  func(ctx context.Context)
}

// fakeClient records the callbacks an implementation makes.
type fakeClient struct {
	logger        *zap.Logger
	notifications []sentNotification
	requests      []sentRequest
	delayed       map[string]delayedTask
	cancelled     []string
	logs          []string
	status        lsp.Status
}

func newFakeClient(t *testing.T) *fakeClient {
	return &fakeClient{
		logger:  zaptest.NewLogger(t),
		delayed: make(map[string]delayedTask),
	}
}

func (c *fakeClient) SendNotification(method string, params any) {
	c.notifications = append(c.notifications, sentNotification{method: method, params: params})
}

func (c *fakeClient) SendRequest(method string, params any, handler lsp.ResponseHandler) jsonrpc2.ID {
	c.requests = append(c.requests, sentRequest{method: method, params: params, handler: handler})
	return jsonrpc2.NewNumberID(int32(len(c.requests)))
}

func (c *fakeClient) QueueTask(task func(ctx context.Context)) {
	task(context.Background())
}

func (c *fakeClient) SetDelayedTask(id string, d time.Duration, task func(ctx context.Context)) {
	c.delayed[id] = delayedTask{delay: d, task: task}
}

func (c *fakeClient) CancelDelayedTask(id string) bool {
	_, ok := c.delayed[id]
	delete(c.delayed, id)
	c.cancelled = append(c.cancelled, id)
	return ok
}

func (c *fakeClient) Status() lsp.Status { return c.status }

func (c *fakeClient) Logf(format string, args ...any) {
	c.logs = append(c.logs, fmt.Sprintf(format, args...))
}

func (c *fakeClient) Logger() *zap.Logger { return c.logger }

// fire runs and removes the delayed task with the given id.
func (c *fakeClient) fire(t *testing.T, id string) {
	t.Helper()
	d, ok := c.delayed[id]
	if !ok {
		t.Fatalf("no delayed task %q", id)
	}
	delete(c.delayed, id)
	d.task(context.Background())
}

// published returns the diagnostics notifications sent so far and forgets
// them.
func (c *fakeClient) published(t *testing.T) []*protocol.PublishDiagnosticsParams {
	t.Helper()
	var out []*protocol.PublishDiagnosticsParams
	for _, n := range c.notifications {
		if n.method != protocol.MethodTextDocumentPublishDiagnostics {
			t.Fatalf("unexpected notification %s", n.method)
		}
		out = append(out, n.params.(*protocol.PublishDiagnosticsParams))
	}
	c.notifications = nil
	return out
}

func defaultSettings() Settings {
	return Settings{SemanticTokens: true, InlayHints: true, DiagnosticsDelay: 100 * time.Millisecond}
}

func newTestImpl(t *testing.T) (*Server, *fakeClient) {
	t.Helper()
	client := newFakeClient(t)
	s := New(defaultSettings())(client).(*Server)
	return s, client
}

const testURI = uri.URI("file:///work/pipeline.yaml")

func open(t *testing.T, s *Server, u uri.URI, text string) {
	t.Helper()
	err := s.HandleNotification(context.Background(), &lsp.DidOpenNotification{
		DidOpenTextDocumentParams: protocol.DidOpenTextDocumentParams{
			TextDocument: protocol.TextDocumentItem{URI: u, LanguageID: protocol.YamlLanguage, Version: 1, Text: text},
		},
	})
	if err != nil {
		t.Fatalf("didOpen failed: %v", err)
	}
}

func change(t *testing.T, s *Server, u uri.URI, version int32, text string) {
	t.Helper()
	params := protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: u},
			Version:                version,
		},
		ContentChanges: []protocol.TextDocumentContentChangeEvent{{Text: text}},
	}
	if err := s.HandleNotification(context.Background(), &lsp.DidChangeNotification{DidChangeTextDocumentParams: params}); err != nil {
		t.Fatalf("didChange failed: %v", err)
	}
}

func position(u uri.URI, line, character uint32) protocol.TextDocumentPositionParams {
	return protocol.TextDocumentPositionParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: u},
		Position:     protocol.Position{Line: line, Character: character},
	}
}

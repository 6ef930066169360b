package lsp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/pkg/xcontext"
	"go.lsp.dev/protocol"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/mcncl/lsp-boot/internal/delay"
	"github.com/mcncl/lsp-boot/internal/queue"
	"github.com/mcncl/lsp-boot/internal/transport"
)

// Implementation supplies the language semantics. All three methods are
// called from one goroutine at a time and never concurrently.
type Implementation interface {
	HandleRequest(ctx context.Context, req Request) (any, error)
	HandleNotification(ctx context.Context, n Notification) error
	// Pump gives long-running work a chance to make progress. It must return
	// promptly.
	Pump(ctx context.Context)
}

// Factory builds the implementation once the server can accept callbacks.
type Factory func(client Client) Implementation

// Client is the set of callbacks an implementation may invoke on the server.
type Client interface {
	// SendNotification queues a notification to the peer. Calling it before
	// initialize has completed panics.
	SendNotification(method string, params any)
	// SendRequest queues a request to the peer and arranges for handler to
	// run as a job when the response arrives. Calling it before initialize
	// has completed panics.
	SendRequest(method string, params any, handler ResponseHandler) jsonrpc2.ID
	QueueTask(task func(ctx context.Context))
	SetDelayedTask(id string, d time.Duration, task func(ctx context.Context))
	CancelDelayedTask(id string) bool
	Status() Status
	Logf(format string, args ...any)
	Logger() *zap.Logger
}

// Server connects a transport to an Implementation.
type Server struct {
	impl       Implementation
	inbox      *queue.Queue[transport.ReceivedMessage]
	outbox     *queue.Queue[*transport.Envelope]
	dispatcher *Dispatcher
	pending    *PendingRequests
	delayed    *delay.Registry[string]
	scheduler  Scheduler

	logger     *zap.Logger
	sugar      *zap.SugaredLogger
	mode       Mode
	pendingTTL time.Duration
	now        func() time.Time
	sessionID  string
	startedAt  time.Time

	initialized atomic.Bool
	shutdown    atomic.Bool
	exited      atomic.Bool
	nextID      atomic.Int32
	received    atomic.Uint64
	sent        atomic.Uint64
}

var (
	_ Client = (*Server)(nil)
	_ engine = (*Server)(nil)
)

// NewServer creates a server reading messages from inbox and writing them to
// outbox.
func NewServer(factory Factory, inbox *queue.Queue[transport.ReceivedMessage], outbox *queue.Queue[*transport.Envelope], opts ...Option) *Server {
	s := &Server{
		inbox:      inbox,
		outbox:     outbox,
		logger:     zap.NewNop(),
		mode:       ModeCooperative,
		pendingTTL: DefaultPendingTTL,
		now:        time.Now,
		sessionID:  uuid.NewString(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.startedAt = s.now()
	s.logger = s.logger.With(zap.String("session", s.sessionID))
	s.sugar = s.logger.Sugar()
	s.pending = NewPendingRequests(s.pendingTTL)
	s.pending.now = s.now
	s.dispatcher = NewDispatcher(s.pending, outbox, s.logger)
	s.delayed = delay.New[string](s.post, s.logger)

	switch s.mode {
	case ModeWorker:
		s.scheduler = newExecutor(s, inbox)
	default:
		s.mode = ModeCooperative
		s.scheduler = newCooperative(s, inbox)
	}

	s.impl = factory(s)
	return s
}

// Run processes messages until exit, end of input, or ctx is done. Response
// handlers still pending when Run returns are failed with ErrShutdown.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("server starting", zap.String("mode", string(s.mode)))
	err := s.scheduler.Run(ctx)
	s.stop(ctx)
	return err
}

// Scheduler returns the scheduler selected at construction.
func (s *Server) Scheduler() Scheduler {
	return s.scheduler
}

// ExitCode is 0 if a shutdown request succeeded before the session ended and
// 1 otherwise.
func (s *Server) ExitCode() int {
	if s.shutdown.Load() {
		return 0
	}
	return 1
}

func (s *Server) stop(ctx context.Context) {
	s.delayed.Stop()

	abandoned := s.pending.Drain()
	detached := xcontext.Detach(ctx)
	for _, handler := range abandoned {
		s.executeTask(detached, InternalTask{
			Name: "abandoned response handler",
			Run:  func(ctx context.Context) { handler(ctx, nil, ErrShutdown) },
		})
	}

	s.logger.Info("server stopped",
		zap.Bool("exit", s.exited.Load()),
		zap.Int("abandoned_requests", len(abandoned)),
		zap.Uint64("received", s.received.Load()),
		zap.Uint64("sent", s.sent.Load()))
}

func (s *Server) route(msg transport.ReceivedMessage) Route {
	s.received.Inc()
	r := s.dispatcher.Route(msg)
	switch r.Outcome {
	case OutcomeExit:
		s.exited.Store(true)
		s.logger.Info("exit received", zap.Int("discarded_jobs", s.scheduler.Pending()))
	case OutcomeProtocolError:
		s.sent.Inc()
	}
	return r
}

func (s *Server) ready() bool {
	return s.initialized.Load() && !s.exited.Load()
}

func (s *Server) pump(ctx context.Context) {
	for _, handler := range s.pending.Expire(s.now()) {
		s.executeTask(ctx, InternalTask{
			Name: "expired response handler",
			Run: func(ctx context.Context) {
				handler(ctx, nil, jsonrpc2.NewError(protocol.CodeRequestCancelled, "request timed out waiting for a response"))
			},
		})
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("pump panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	s.impl.Pump(ctx)
}

func (s *Server) execute(ctx context.Context, job Job) {
	switch j := job.(type) {
	case StoredRequest:
		s.executeRequest(ctx, j)
	case StoredNotification:
		s.executeNotification(ctx, j)
	case InternalTask:
		s.executeTask(ctx, j)
	default:
		s.logger.Error("unknown job", zap.String("type", fmt.Sprintf("%T", job)))
	}
}

func (s *Server) executeRequest(ctx context.Context, job StoredRequest) {
	method := job.Request.Method()
	if rpcErr := s.checkLifecycle(job.Request); rpcErr != nil {
		s.logger.Debug("rejecting request", zap.String("method", method), idField(job.ID), zap.Error(rpcErr))
		s.reply(job.ID, nil, rpcErr)
		return
	}

	result, err := s.handleRequest(ctx, job.Request)
	if err == nil {
		switch job.Request.(type) {
		case *InitializeRequest:
			s.initialized.Store(true)
			s.logger.Info("initialized")
		case *ShutdownRequest:
			s.shutdown.Store(true)
			s.logger.Info("shutdown requested")
		}
	}
	s.reply(job.ID, result, err)

	s.logger.Debug("request handled",
		zap.String("method", method),
		idField(job.ID),
		zap.Duration("elapsed", s.now().Sub(job.ReceivedAt)),
		zap.Error(err))
}

func (s *Server) checkLifecycle(req Request) *jsonrpc2.Error {
	if s.shutdown.Load() {
		return jsonrpc2.Errorf(jsonrpc2.InvalidRequest, "server is shutting down, %s not allowed", req.Method())
	}
	if _, ok := req.(*InitializeRequest); ok {
		if s.initialized.Load() {
			return jsonrpc2.NewError(jsonrpc2.InvalidRequest, "server is already initialized")
		}
		return nil
	}
	if !s.initialized.Load() {
		return jsonrpc2.Errorf(jsonrpc2.ServerNotInitialized, "server not initialized, %s not allowed", req.Method())
	}
	return nil
}

func (s *Server) handleRequest(ctx context.Context, req Request) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("request handler panicked",
				zap.String("method", req.Method()), zap.Any("panic", r), zap.Stack("stack"))
			result = nil
			err = jsonrpc2.Errorf(jsonrpc2.InternalError, "internal error handling %s", req.Method())
		}
	}()
	return s.impl.HandleRequest(ctx, req)
}

func (s *Server) reply(id jsonrpc2.ID, result any, err error) {
	if err != nil {
		s.send(transport.NewErrorResponse(id, toRPCError(err)))
		return
	}

	env, encErr := transport.NewResponse(id, result)
	if encErr != nil {
		s.logger.Error("encoding result", idField(id), zap.Error(encErr))
		s.send(transport.NewErrorResponse(id, jsonrpc2.Errorf(jsonrpc2.InternalError, "%v", encErr)))
		return
	}
	s.send(env)
}

func toRPCError(err error) *jsonrpc2.Error {
	var rpcErr *jsonrpc2.Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	return jsonrpc2.NewError(jsonrpc2.InternalError, err.Error())
}

func (s *Server) executeNotification(ctx context.Context, job StoredNotification) {
	method := job.Notification.Method()
	if !s.initialized.Load() {
		s.logger.Debug("dropping notification before initialize", zap.String("method", method))
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("notification handler panicked",
				zap.String("method", method), zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	if err := s.impl.HandleNotification(ctx, job.Notification); err != nil {
		s.logger.Warn("notification handler failed", zap.String("method", method), zap.Error(err))
	}
}

func (s *Server) executeTask(ctx context.Context, job InternalTask) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("internal task panicked",
				zap.String("task", job.Name), zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	job.Run(ctx)
}

func (s *Server) send(env *transport.Envelope) {
	s.sent.Inc()
	s.outbox.Push(env)
}

func (s *Server) post(run func(ctx context.Context)) {
	s.scheduler.Push(InternalTask{Name: "delayed task", Run: run})
}

// SendNotification implements Client.
func (s *Server) SendNotification(method string, params any) {
	if !s.initialized.Load() {
		panic(fmt.Sprintf("lsp: SendNotification(%s) before initialize", method))
	}
	env, err := transport.NewNotification(method, params)
	if err != nil {
		s.logger.Error("encoding notification", zap.String("method", method), zap.Error(err))
		return
	}
	s.send(env)
}

// SendRequest implements Client.
func (s *Server) SendRequest(method string, params any, handler ResponseHandler) jsonrpc2.ID {
	if !s.initialized.Load() {
		panic(fmt.Sprintf("lsp: SendRequest(%s) before initialize", method))
	}

	id := jsonrpc2.NewNumberID(s.nextID.Inc())
	env, err := transport.NewRequest(id, method, params)
	if err != nil {
		s.logger.Error("encoding request", zap.String("method", method), zap.Error(err))
		s.QueueTask(func(ctx context.Context) { handler(ctx, nil, err) })
		return id
	}
	if err := s.pending.Add(id, handler); err != nil {
		panic(fmt.Sprintf("lsp: SendRequest(%s) id %v: %v", method, id, err))
	}
	s.send(env)
	return id
}

// QueueTask implements Client.
func (s *Server) QueueTask(task func(ctx context.Context)) {
	s.scheduler.Push(InternalTask{Name: "queued task", Run: task})
}

// SetDelayedTask implements Client. Scheduling an id that is already
// pending replaces its task.
func (s *Server) SetDelayedTask(id string, d time.Duration, task func(ctx context.Context)) {
	s.delayed.Schedule(id, d, task)
}

// CancelDelayedTask implements Client.
func (s *Server) CancelDelayedTask(id string) bool {
	return s.delayed.Cancel(id)
}

// Logf implements Client.
func (s *Server) Logf(format string, args ...any) {
	s.sugar.Infof(format, args...)
}

// Logger implements Client.
func (s *Server) Logger() *zap.Logger {
	return s.logger
}

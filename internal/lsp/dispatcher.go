package lsp

import (
	"context"
	"fmt"

	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.uber.org/zap"

	"github.com/mcncl/lsp-boot/internal/queue"
	"github.com/mcncl/lsp-boot/internal/transport"
)

// Outcome is what the dispatcher decided to do with a message.
type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomeRequest
	OutcomeNotification
	OutcomeResponse
	OutcomeProtocolError
	OutcomeExit
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRequest:
		return "request"
	case OutcomeNotification:
		return "notification"
	case OutcomeResponse:
		return "response"
	case OutcomeProtocolError:
		return "protocol error"
	case OutcomeExit:
		return "exit"
	default:
		return "ignored"
	}
}

// Route is the result of classifying one message. Job is set for requests,
// notifications and responses.
type Route struct {
	Outcome Outcome
	Job     Job
}

// Dispatcher classifies incoming messages and turns them into jobs.
type Dispatcher struct {
	pending *PendingRequests
	outbox  *queue.Queue[*transport.Envelope]
	logger  *zap.Logger
}

// NewDispatcher returns a dispatcher that resolves responses against pending
// and writes protocol error replies to outbox.
func NewDispatcher(pending *PendingRequests, outbox *queue.Queue[*transport.Envelope], logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{pending: pending, outbox: outbox, logger: logger}
}

// Route classifies msg. The exit method is recognised before classification
// so that it ends the session even when sent with an id.
func (d *Dispatcher) Route(msg transport.ReceivedMessage) Route {
	if msg.Method == protocol.MethodExit {
		d.logger.Debug("exit requested")
		return Route{Outcome: OutcomeExit}
	}
	if msg.Malformed != nil {
		return d.routeMalformed(msg)
	}

	switch msg.Classify() {
	case transport.KindRequest:
		return d.routeRequest(msg)
	case transport.KindNotification:
		return d.routeNotification(msg)
	case transport.KindResponse:
		return d.routeResponse(msg)
	default:
		d.logger.Warn("ignoring message without id or method")
		return Route{Outcome: OutcomeIgnored}
	}
}

// routeMalformed handles a message with a member of the wrong type. A
// request is answered with InvalidRequest, using a null id when the id itself
// is unreadable. Notifications and responses are dropped.
func (d *Dispatcher) routeMalformed(msg transport.ReceivedMessage) Route {
	switch {
	case msg.HasMethod() && msg.HasID():
		d.logger.Warn("invalid request", zap.Error(msg.Malformed))
		rpcErr := jsonrpc2.Errorf(jsonrpc2.InvalidRequest, "invalid request: %v", msg.Malformed)
		d.outbox.Push(&transport.Envelope{ID: msg.ID, Error: rpcErr})
		return Route{Outcome: OutcomeProtocolError}
	case msg.HasMethod():
		d.logger.Warn("dropping invalid notification", zap.Error(msg.Malformed))
	default:
		d.logger.Warn("dropping invalid response", zap.Error(msg.Malformed))
	}
	return Route{Outcome: OutcomeIgnored}
}

func (d *Dispatcher) routeRequest(msg transport.ReceivedMessage) Route {
	id := *msg.ID
	req, err := decodeRequestPayload(msg.Method, msg.Params)
	if err != nil {
		d.logger.Warn("invalid request params",
			zap.String("method", msg.Method), idField(id), zap.Error(err))
		rpcErr := jsonrpc2.Errorf(jsonrpc2.InvalidParams, "invalid params for %s: %v", msg.Method, err)
		d.outbox.Push(transport.NewErrorResponse(id, rpcErr))
		return Route{Outcome: OutcomeProtocolError}
	}

	d.logger.Debug("request", zap.String("method", msg.Method), idField(id))
	return Route{
		Outcome: OutcomeRequest,
		Job:     StoredRequest{ID: id, Request: req, ReceivedAt: msg.ReceivedAt},
	}
}

func (d *Dispatcher) routeNotification(msg transport.ReceivedMessage) Route {
	n, err := decodeNotificationPayload(msg.Method, msg.Params)
	if err != nil {
		d.logger.Warn("dropping notification with invalid params",
			zap.String("method", msg.Method), zap.Error(err))
		return Route{Outcome: OutcomeIgnored}
	}

	d.logger.Debug("notification", zap.String("method", msg.Method))
	return Route{
		Outcome: OutcomeNotification,
		Job:     StoredNotification{Notification: n, ReceivedAt: msg.ReceivedAt},
	}
}

func (d *Dispatcher) routeResponse(msg transport.ReceivedMessage) Route {
	id := *msg.ID
	if !msg.HasResult() && !msg.HasError() {
		d.logger.Warn("response carries neither result nor error", idField(id))
		return Route{Outcome: OutcomeIgnored}
	}

	handler, ok := d.pending.Resolve(id)
	if !ok {
		d.logger.Warn("response for unknown request", idField(id))
		return Route{Outcome: OutcomeIgnored}
	}

	var respErr error
	if msg.Error != nil {
		respErr = msg.Error
	}
	result := msg.Result
	return Route{
		Outcome: OutcomeResponse,
		Job: InternalTask{
			Name: fmt.Sprintf("response %v", id),
			Run:  func(ctx context.Context) { handler(ctx, result, respErr) },
		},
	}
}

func idField(id jsonrpc2.ID) zap.Field {
	return zap.String("id", fmt.Sprintf("%v", id))
}

package transport

import (
	"bytes"
	"fmt"
	"time"

	"github.com/segmentio/encoding/json"
	"go.lsp.dev/jsonrpc2"
)

// Kind classifies an envelope by which of id and method it carries.
type Kind int

const (
	KindInvalid      Kind = iota // neither id nor method
	KindRequest                  // id and method
	KindNotification             // method only
	KindResponse                 // id only
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindNotification:
		return "notification"
	case KindResponse:
		return "response"
	default:
		return "invalid"
	}
}

// Envelope is a JSON-RPC 2.0 message: a request, a notification or a
// response. Presence of each member is tracked so that classification does
// not depend on zero values.
type Envelope struct {
	ID     *jsonrpc2.ID
	Method string
	Params json.RawMessage
	Result json.RawMessage
	Error  *jsonrpc2.Error

	// Malformed is the first member that was present but had the wrong
	// type. Members after it are still decoded where possible. A member that
	// failed to decode is left at its zero value but still counts as present.
	Malformed error

	idPresent     bool
	methodPresent bool
}

// ReceivedMessage is an envelope together with the time framing finished
// reading it.
type ReceivedMessage struct {
	Envelope
	ReceivedAt time.Time
}

// HasID reports whether the envelope carries a non-null id. It is true for
// an id that could not be decoded, in which case ID is nil.
func (e *Envelope) HasID() bool { return e.ID != nil || e.idPresent }

// HasMethod reports whether the envelope carries a method member, even an
// empty one.
func (e *Envelope) HasMethod() bool { return e.Method != "" || e.methodPresent }

// HasResult reports whether a result member was present, including null.
func (e *Envelope) HasResult() bool { return e.Result != nil }

// HasError reports whether an error member was present.
func (e *Envelope) HasError() bool { return e.Error != nil }

// Classify returns the message kind.
func (e *Envelope) Classify() Kind {
	switch {
	case e.HasID() && e.HasMethod():
		return KindRequest
	case e.HasMethod():
		return KindNotification
	case e.HasID():
		return KindResponse
	default:
		return KindInvalid
	}
}

// NewRequest builds a request envelope.
func NewRequest(id jsonrpc2.ID, method string, params any) (*Envelope, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, fmt.Errorf("marshal %s params: %w", method, err)
	}
	return &Envelope{ID: &id, Method: method, Params: raw}, nil
}

// NewNotification builds a notification envelope.
func NewNotification(method string, params any) (*Envelope, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, fmt.Errorf("marshal %s params: %w", method, err)
	}
	return &Envelope{Method: method, Params: raw}, nil
}

// NewResponse builds a success response. A nil result is sent as null.
func NewResponse(id jsonrpc2.ID, result any) (*Envelope, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return &Envelope{ID: &id, Result: raw}, nil
}

// NewErrorResponse builds an error response.
func NewErrorResponse(id jsonrpc2.ID, rpcErr *jsonrpc2.Error) *Envelope {
	return &Envelope{ID: &id, Error: rpcErr}
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	if raw, ok := params.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(params)
}

type wireEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpc2.Error `json:"error,omitempty"`
}

// MarshalJSON implements json.Marshaler. An error response without an id is
// written with a null id, as for a request whose id could not be read.
func (e Envelope) MarshalJSON() ([]byte, error) {
	w := wireEnvelope{
		JSONRPC: jsonrpc2.Version,
		Method:  e.Method,
		Params:  e.Params,
		Result:  e.Result,
		Error:   e.Error,
	}
	switch {
	case e.ID != nil:
		id, err := e.ID.MarshalJSON()
		if err != nil {
			return nil, err
		}
		w.ID = id
	case e.Error != nil && e.Method == "":
		w.ID = json.RawMessage("null")
	}
	if e.Error != nil {
		w.Result = nil
	} else if e.ID != nil && e.Method == "" && e.Result == nil {
		w.Result = json.RawMessage("null")
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler. The body must be a JSON object;
// a null id is treated as absent. A member of the wrong type does not fail
// the decode, it is recorded in Malformed.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return err
	}
	if members == nil {
		return fmt.Errorf("message is not a JSON object")
	}

	*e = Envelope{}
	malformed := func(err error) {
		if e.Malformed == nil {
			e.Malformed = err
		}
	}

	if raw, ok := members["id"]; ok && !isNull(raw) {
		e.idPresent = true
		var id jsonrpc2.ID
		if err := id.UnmarshalJSON(raw); err != nil {
			malformed(fmt.Errorf("invalid id %s: %w", raw, err))
		} else {
			e.ID = &id
		}
	}
	if raw, ok := members["method"]; ok && !isNull(raw) {
		e.methodPresent = true
		if err := json.Unmarshal(raw, &e.Method); err != nil {
			malformed(fmt.Errorf("invalid method %s: %w", raw, err))
		}
	}
	if raw, ok := members["params"]; ok {
		e.Params = raw
	}
	if raw, ok := members["result"]; ok {
		e.Result = raw
	}
	if raw, ok := members["error"]; ok && !isNull(raw) {
		var rpcErr jsonrpc2.Error
		if err := json.Unmarshal(raw, &rpcErr); err != nil {
			malformed(fmt.Errorf("invalid error object %s: %w", raw, err))
		} else {
			e.Error = &rpcErr
		}
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

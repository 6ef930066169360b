package lsp

import (
	"bytes"

	"github.com/segmentio/encoding/json"
	"go.lsp.dev/protocol"
)

// MethodTextDocumentInlayHint is not defined by go.lsp.dev/protocol v0.12.
const MethodTextDocumentInlayHint = "textDocument/inlayHint"

// Request is a decoded request payload.
type Request interface {
	Method() string
}

// Notification is a decoded notification payload.
type Notification interface {
	Method() string
}

type InitializeRequest struct{ protocol.InitializeParams }

type ShutdownRequest struct{}

type CompletionRequest struct{ protocol.CompletionParams }

type InlayHintRequest struct{ InlayHintParams }

type HoverRequest struct{ protocol.HoverParams }

type SemanticTokensFullRequest struct{ protocol.SemanticTokensParams }

type SemanticTokensRangeRequest struct{ protocol.SemanticTokensRangeParams }

type DocumentSymbolRequest struct{ protocol.DocumentSymbolParams }

// CustomRequest carries a request whose method is not in the method table.
type CustomRequest struct {
	Name   string
	Params json.RawMessage
}

func (*InitializeRequest) Method() string { return protocol.MethodInitialize }
func (*ShutdownRequest) Method() string { return protocol.MethodShutdown }
func (*CompletionRequest) Method() string { return protocol.MethodTextDocumentCompletion }
func (*InlayHintRequest) Method() string { return MethodTextDocumentInlayHint }
func (*HoverRequest) Method() string { return protocol.MethodTextDocumentHover }
func (*SemanticTokensFullRequest) Method() string { return protocol.MethodSemanticTokensFull }
func (*SemanticTokensRangeRequest) Method() string { return protocol.MethodSemanticTokensRange }
func (*DocumentSymbolRequest) Method() string { return protocol.MethodTextDocumentDocumentSymbol }
func (r *CustomRequest) Method() string { return r.Name }

type InitializedNotification struct{ protocol.InitializedParams }

type DidChangeConfigurationNotification struct {
	protocol.DidChangeConfigurationParams
}

type DidOpenNotification struct{ protocol.DidOpenTextDocumentParams }

type DidChangeNotification struct{ protocol.DidChangeTextDocumentParams }

type DidCloseNotification struct{ protocol.DidCloseTextDocumentParams }

type DidChangeWorkspaceFoldersNotification struct {
	protocol.DidChangeWorkspaceFoldersParams
}

type DidChangeWatchedFilesNotification struct {
	protocol.DidChangeWatchedFilesParams
}

// CustomNotification carries a notification whose method is not in the
// method table.
type CustomNotification struct {
	Name   string
	Params json.RawMessage
}

func (*InitializedNotification) Method() string { return protocol.MethodInitialized }
func (*DidChangeConfigurationNotification) Method() string {
	return protocol.MethodWorkspaceDidChangeConfiguration
}
func (*DidOpenNotification) Method() string { return protocol.MethodTextDocumentDidOpen }
func (*DidChangeNotification) Method() string { return protocol.MethodTextDocumentDidChange }
func (*DidCloseNotification) Method() string { return protocol.MethodTextDocumentDidClose }
func (*DidChangeWorkspaceFoldersNotification) Method() string {
	return protocol.MethodWorkspaceDidChangeWorkspaceFolders
}
func (*DidChangeWatchedFilesNotification) Method() string {
	return protocol.MethodWorkspaceDidChangeWatchedFiles
}
func (n *CustomNotification) Method() string { return n.Name }

// InlayHintParams are the parameters of textDocument/inlayHint.
type InlayHintParams struct {
	TextDocument protocol.TextDocumentIdentifier `json:"textDocument"`
	Range        protocol.Range                  `json:"range"`
}

// InlayHintKind distinguishes type hints from parameter hints.
type InlayHintKind uint32

const (
	InlayHintKindType      InlayHintKind = 1
	InlayHintKindParameter InlayHintKind = 2
)

// InlayHint is a single inline annotation.
type InlayHint struct {
	Position     protocol.Position `json:"position"`
	Label        string            `json:"label"`
	Kind         InlayHintKind     `json:"kind,omitempty"`
	PaddingLeft  bool              `json:"paddingLeft,omitempty"`
	PaddingRight bool              `json:"paddingRight,omitempty"`
}

type (
	requestDecoder      func(params json.RawMessage) (Request, error)
	notificationDecoder func(params json.RawMessage) (Notification, error)
)

var requestDecoders = map[string]requestDecoder{
	protocol.MethodInitialize:                 decodeRequest[InitializeRequest](),
	protocol.MethodShutdown:                   decodeRequest[ShutdownRequest](),
	protocol.MethodTextDocumentCompletion:     decodeRequest[CompletionRequest](),
	MethodTextDocumentInlayHint:               decodeRequest[InlayHintRequest](),
	protocol.MethodTextDocumentHover:          decodeRequest[HoverRequest](),
	protocol.MethodSemanticTokensFull:         decodeRequest[SemanticTokensFullRequest](),
	protocol.MethodSemanticTokensRange:        decodeRequest[SemanticTokensRangeRequest](),
	protocol.MethodTextDocumentDocumentSymbol: decodeRequest[DocumentSymbolRequest](),
}

// exit is absent: the dispatcher turns it into a control signal before any
// table lookup.
var notificationDecoders = map[string]notificationDecoder{
	protocol.MethodInitialized:                        decodeNotification[InitializedNotification](),
	protocol.MethodWorkspaceDidChangeConfiguration:    decodeNotification[DidChangeConfigurationNotification](),
	protocol.MethodTextDocumentDidOpen:                decodeNotification[DidOpenNotification](),
	protocol.MethodTextDocumentDidChange:              decodeNotification[DidChangeNotification](),
	protocol.MethodTextDocumentDidClose:               decodeNotification[DidCloseNotification](),
	protocol.MethodWorkspaceDidChangeWorkspaceFolders: decodeNotification[DidChangeWorkspaceFoldersNotification](),
	protocol.MethodWorkspaceDidChangeWatchedFiles:     decodeNotification[DidChangeWatchedFilesNotification](),
}

func decodeRequest[T any, PT interface {
	*T
	Request
}]() requestDecoder {
	return func(params json.RawMessage) (Request, error) {
		req := PT(new(T))
		if err := unmarshalParams(params, req); err != nil {
			return nil, err
		}
		return req, nil
	}
}

func decodeNotification[T any, PT interface {
	*T
	Notification
}]() notificationDecoder {
	return func(params json.RawMessage) (Notification, error) {
		n := PT(new(T))
		if err := unmarshalParams(params, n); err != nil {
			return nil, err
		}
		return n, nil
	}
}

// unmarshalParams treats absent and null params as empty.
func unmarshalParams(params json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(params)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return json.Unmarshal(trimmed, v)
}

// decodeRequestPayload returns the typed payload for method, falling back to
// CustomRequest for unknown methods.
func decodeRequestPayload(method string, params json.RawMessage) (Request, error) {
	if decode, ok := requestDecoders[method]; ok {
		return decode(params)
	}
	return &CustomRequest{Name: method, Params: params}, nil
}

func decodeNotificationPayload(method string, params json.RawMessage) (Notification, error) {
	if decode, ok := notificationDecoders[method]; ok {
		return decode(params)
	}
	return &CustomNotification{Name: method, Params: params}, nil
}

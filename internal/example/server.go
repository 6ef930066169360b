// Package example is a small YAML language server built on the lsp core.
// It exercises every callback the core offers: document sync, debounced
// diagnostics, an outgoing workspace/configuration request and idle-time
// parsing through Pump.
package example

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/encoding/json"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/zap"

	"github.com/mcncl/lsp-boot/internal/lsp"
	"github.com/mcncl/lsp-boot/internal/parser"
)

const (
	serverName = "lsp-boot"

	// MethodStatus returns the core's status snapshot.
	MethodStatus = "lspBoot/status"

	settingsSection = "lspBoot"
)

// Version is reported in the initialize result.
var Version = "dev"

// Settings are the options a client can change at runtime.
type Settings struct {
	SemanticTokens   bool
	InlayHints       bool
	DiagnosticsDelay time.Duration
}

type Server struct {
	client   lsp.Client
	logger   *zap.Logger
	docs     *Documents
	settings Settings

	configurationSupported bool
	folders                map[string]protocol.WorkspaceFolder
}

// New returns a factory for servers starting with the given settings.
func New(settings Settings) lsp.Factory {
	return func(client lsp.Client) lsp.Implementation {
		return newServer(client, settings)
	}
}

func newServer(client lsp.Client, settings Settings) *Server {
	return &Server{
		client:   client,
		logger:   client.Logger().Named("example"),
		docs:     NewDocuments(),
		settings: settings,
		folders:  make(map[string]protocol.WorkspaceFolder),
	}
}

func (s *Server) HandleRequest(ctx context.Context, req lsp.Request) (any, error) {
	switch r := req.(type) {
	case *lsp.InitializeRequest:
		return s.initialize(&r.InitializeParams), nil
	case *lsp.ShutdownRequest:
		s.client.Logf("shutting down with %d open documents", s.docs.Len())
		return nil, nil
	case *lsp.HoverRequest:
		return s.hover(&r.HoverParams), nil
	case *lsp.CompletionRequest:
		return s.completion(&r.CompletionParams), nil
	case *lsp.DocumentSymbolRequest:
		return s.documentSymbols(&r.DocumentSymbolParams), nil
	case *lsp.SemanticTokensFullRequest:
		return s.semanticTokensFull(&r.SemanticTokensParams), nil
	case *lsp.SemanticTokensRangeRequest:
		return s.semanticTokensRange(&r.SemanticTokensRangeParams), nil
	case *lsp.InlayHintRequest:
		return s.inlayHints(&r.InlayHintParams), nil
	case *lsp.CustomRequest:
		if r.Name == MethodStatus {
			return s.client.Status(), nil
		}
	}
	return nil, jsonrpc2.NewError(jsonrpc2.MethodNotFound, fmt.Sprintf("method not found: %s", req.Method()))
}

func (s *Server) HandleNotification(ctx context.Context, n lsp.Notification) error {
	switch n := n.(type) {
	case *lsp.InitializedNotification:
		s.requestConfiguration()
	case *lsp.DidChangeConfigurationNotification:
		return s.didChangeConfiguration(n.Settings)
	case *lsp.DidOpenNotification:
		s.didOpen(&n.TextDocument)
	case *lsp.DidChangeNotification:
		s.didChange(&n.DidChangeTextDocumentParams)
	case *lsp.DidCloseNotification:
		s.didClose(n.TextDocument.URI)
	case *lsp.DidChangeWatchedFilesNotification:
		for _, change := range n.Changes {
			if change != nil && change.Type == protocol.FileChangeTypeDeleted {
				s.didClose(change.URI)
			}
		}
	case *lsp.DidChangeWorkspaceFoldersNotification:
		for _, folder := range n.Event.Removed {
			delete(s.folders, folder.URI)
		}
		for _, folder := range n.Event.Added {
			s.folders[folder.URI] = folder
		}
		s.logger.Debug("workspace folders changed", zap.Int("folders", len(s.folders)))
	default:
		s.logger.Debug("ignoring notification", zap.String("method", n.Method()))
	}
	return nil
}

// Pump parses at most one stale document so that requests find outlines
// ready.
func (s *Server) Pump(ctx context.Context) {
	if doc := s.docs.NextStale(); doc != nil {
		doc.refresh()
		s.logger.Debug("parsed document", zap.String("uri", string(doc.URI)), zap.Int32("version", doc.Version))
	}
}

// semanticTokensOptions adds the legend and request kinds that
// protocol.SemanticTokensOptions lacks in this protocol version.
type semanticTokensOptions struct {
	Legend protocol.SemanticTokensLegend `json:"legend"`
	Full   bool                          `json:"full"`
	Range  bool                          `json:"range"`
}

func (s *Server) initialize(params *protocol.InitializeParams) *protocol.InitializeResult {
	if params.Capabilities.Workspace != nil {
		s.configurationSupported = params.Capabilities.Workspace.Configuration
	}
	for _, folder := range params.WorkspaceFolders {
		s.folders[folder.URI] = folder
	}

	name := "unknown client"
	if params.ClientInfo != nil {
		name = params.ClientInfo.Name
	}
	s.client.Logf("initializing for %s", name)

	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    protocol.TextDocumentSyncKindFull,
			},
			HoverProvider: true,
			CompletionProvider: &protocol.CompletionOptions{
				TriggerCharacters: []string{" ", "-"},
			},
			DocumentSymbolProvider: true,
			SemanticTokensProvider: &semanticTokensOptions{
				Legend: tokenLegend(),
				Full:   true,
				Range:  true,
			},
			Workspace: &protocol.ServerCapabilitiesWorkspace{
				WorkspaceFolders: &protocol.ServerCapabilitiesWorkspaceFolders{
					Supported:           true,
					ChangeNotifications: true,
				},
			},
			Experimental: map[string]any{
				"inlayHintProvider": true,
			},
		},
		ServerInfo: &protocol.ServerInfo{
			Name:    serverName,
			Version: Version,
		},
	}
}

func (s *Server) didOpen(item *protocol.TextDocumentItem) {
	if !IsYAML(item.URI, item.LanguageID) {
		s.logger.Debug("ignoring non-YAML document", zap.String("uri", string(item.URI)))
		return
	}
	s.docs.Open(item.URI, item.Version, item.Text)
	s.scheduleDiagnostics(item.URI)
}

func (s *Server) didChange(params *protocol.DidChangeTextDocumentParams) {
	if len(params.ContentChanges) == 0 {
		return
	}
	u := params.TextDocument.URI
	if _, ok := s.docs.Get(u); !ok {
		return
	}
	// Full sync: the last change holds the whole text.
	last := params.ContentChanges[len(params.ContentChanges)-1]
	s.docs.Update(u, params.TextDocument.Version, last.Text)
	s.scheduleDiagnostics(u)
}

func (s *Server) didClose(u uri.URI) {
	s.client.CancelDelayedTask(diagnosticsTaskID(u))
	if s.docs.Close(u) {
		s.publish(u, 0, []protocol.Diagnostic{})
	}
}

func (s *Server) document(u uri.URI) (*Document, bool) {
	doc, ok := s.docs.Get(u)
	if !ok {
		s.logger.Debug("request for unknown document", zap.String("uri", string(u)))
	}
	return doc, ok
}

func toPosition(p protocol.Position) parser.Position {
	return parser.Position{Line: int(p.Line), Character: int(p.Character)}
}

func fromPosition(p parser.Position) protocol.Position {
	return protocol.Position{Line: uint32(p.Line), Character: uint32(p.Character)}
}

func fromRange(r parser.Range) protocol.Range {
	return protocol.Range{Start: fromPosition(r.Start), End: fromPosition(r.End)}
}

// clientSettings mirrors the settings section a client may send.
type clientSettings struct {
	SemanticTokens   *bool   `json:"semanticTokens"`
	InlayHints       *bool   `json:"inlayHints"`
	DiagnosticsDelay *string `json:"diagnosticsDelay"`
}

func (s *Server) requestConfiguration() {
	if !s.configurationSupported {
		return
	}
	params := &protocol.ConfigurationParams{
		Items: []protocol.ConfigurationItem{{Section: settingsSection}},
	}
	s.client.SendRequest(protocol.MethodWorkspaceConfiguration, params, s.onConfiguration)
}

func (s *Server) onConfiguration(ctx context.Context, result json.RawMessage, err error) {
	if err != nil {
		s.logger.Warn("workspace/configuration failed", zap.Error(err))
		return
	}
	var sections []json.RawMessage
	if err := json.Unmarshal(result, &sections); err != nil {
		s.logger.Warn("malformed workspace/configuration result", zap.Error(err))
		return
	}
	if len(sections) == 0 {
		return
	}
	if err := s.applySettings(sections[0]); err != nil {
		s.logger.Warn("invalid settings from client", zap.Error(err))
	}
}

// didChangeConfiguration accepts either the whole settings object keyed by
// section or the section on its own.
func (s *Server) didChangeConfiguration(settings any) error {
	if settings == nil {
		return nil
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		if section, ok := wrapped[settingsSection]; ok {
			raw = section
		}
	}
	return s.applySettings(raw)
}

func (s *Server) applySettings(raw json.RawMessage) error {
	var cs clientSettings
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, &cs); err != nil {
		return fmt.Errorf("decoding settings: %w", err)
	}

	next := s.settings
	if cs.SemanticTokens != nil {
		next.SemanticTokens = *cs.SemanticTokens
	}
	if cs.InlayHints != nil {
		next.InlayHints = *cs.InlayHints
	}
	if cs.DiagnosticsDelay != nil {
		d, err := time.ParseDuration(*cs.DiagnosticsDelay)
		if err != nil || d < 0 {
			return fmt.Errorf("invalid diagnosticsDelay %q", *cs.DiagnosticsDelay)
		}
		next.DiagnosticsDelay = d
	}

	s.settings = next
	s.logger.Info("settings updated",
		zap.Bool("semanticTokens", next.SemanticTokens),
		zap.Bool("inlayHints", next.InlayHints),
		zap.Duration("diagnosticsDelay", next.DiagnosticsDelay))
	return nil
}

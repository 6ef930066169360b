package example

import (
	"context"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/zap"

	"github.com/mcncl/lsp-boot/internal/parser"
)

func diagnosticsTaskID(u uri.URI) string {
	return "diagnostics:" + string(u)
}

// scheduleDiagnostics (re)starts the debounce timer for u. Each edit
// supersedes the previous timer, so only the last edit in a burst is
// validated.
func (s *Server) scheduleDiagnostics(u uri.URI) {
	s.client.SetDelayedTask(diagnosticsTaskID(u), s.settings.DiagnosticsDelay, func(ctx context.Context) {
		s.publishDiagnostics(u)
	})
}

func (s *Server) publishDiagnostics(u uri.URI) {
	doc, ok := s.docs.Get(u)
	if !ok {
		return
	}

	outline := doc.Outline()
	diagnostics := make([]protocol.Diagnostic, 0, len(outline.Problems))
	for _, p := range outline.Problems {
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    fromRange(p.Range),
			Severity: severity(p.Severity),
			Source:   serverName,
			Message:  p.Message,
		})
	}
	s.publish(u, doc.Version, diagnostics)
}

func (s *Server) publish(u uri.URI, version int32, diagnostics []protocol.Diagnostic) {
	s.logger.Debug("publishing diagnostics", zap.String("uri", string(u)), zap.Int("count", len(diagnostics)))
	params := &protocol.PublishDiagnosticsParams{
		URI:         u,
		Diagnostics: diagnostics,
	}
	if version > 0 {
		params.Version = uint32(version)
	}
	s.client.SendNotification(protocol.MethodTextDocumentPublishDiagnostics, params)
}

func severity(s parser.Severity) protocol.DiagnosticSeverity {
	if s == parser.SeverityWarning {
		return protocol.DiagnosticSeverityWarning
	}
	return protocol.DiagnosticSeverityError
}

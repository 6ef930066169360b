package example

import (
	"go.lsp.dev/protocol"

	"github.com/mcncl/lsp-boot/internal/lsp"
	"github.com/mcncl/lsp-boot/internal/parser"
)

// inlayHints labels each sequence key in range with its item count.
func (s *Server) inlayHints(params *lsp.InlayHintParams) []lsp.InlayHint {
	hints := []lsp.InlayHint{}
	if !s.settings.InlayHints {
		return hints
	}
	doc, ok := s.document(params.TextDocument.URI)
	if !ok {
		return hints
	}

	outline := doc.Outline()
	first, last := int(params.Range.Start.Line), int(params.Range.End.Line)
	outline.Walk(func(e *parser.Entry) bool {
		line := e.KeyRange.Start.Line
		if e.Kind == parser.KindSequence && line >= first && line <= last {
			hints = append(hints, lsp.InlayHint{
				Position:    protocol.Position{Line: uint32(line), Character: uint32(outline.LineLength(line))},
				Label:       plural(e.Items, "item"),
				Kind:        lsp.InlayHintKindType,
				PaddingLeft: true,
			})
		}
		return true
	})
	return hints
}

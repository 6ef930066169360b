package example

import (
	"fmt"
	"strings"

	"go.lsp.dev/protocol"

	"github.com/mcncl/lsp-boot/internal/parser"
)

func (s *Server) hover(params *protocol.HoverParams) *protocol.Hover {
	doc, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil
	}
	entry := doc.Outline().EntryAt(toPosition(params.Position))
	if entry == nil {
		return nil
	}

	r := fromRange(entry.KeyRange)
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.Markdown,
			Value: describe(entry),
		},
		Range: &r,
	}
}

func describe(e *parser.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s**\n\n", e.DottedPath())
	switch e.Kind {
	case parser.KindMapping:
		fmt.Fprintf(&b, "mapping with %s", plural(e.Items, "key"))
	case parser.KindSequence:
		fmt.Fprintf(&b, "sequence with %s", plural(e.Items, "item"))
	case parser.KindNull:
		b.WriteString("null")
	default:
		fmt.Fprintf(&b, "%s: `%s`", e.Kind, e.Value)
	}
	return b.String()
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

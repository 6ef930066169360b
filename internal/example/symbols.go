package example

import (
	"go.lsp.dev/protocol"

	"github.com/mcncl/lsp-boot/internal/parser"
)

var symbolKinds = map[parser.Kind]protocol.SymbolKind{
	parser.KindMapping:  protocol.SymbolKindObject,
	parser.KindSequence: protocol.SymbolKindArray,
	parser.KindString:   protocol.SymbolKindString,
	parser.KindNumber:   protocol.SymbolKindNumber,
	parser.KindBool:     protocol.SymbolKindBoolean,
	parser.KindNull:     protocol.SymbolKindNull,
	parser.KindAlias:    protocol.SymbolKindKey,
}

func (s *Server) documentSymbols(params *protocol.DocumentSymbolParams) []protocol.DocumentSymbol {
	doc, ok := s.document(params.TextDocument.URI)
	if !ok {
		return []protocol.DocumentSymbol{}
	}
	return symbols(doc.Outline().Entries)
}

func symbols(entries []*parser.Entry) []protocol.DocumentSymbol {
	out := make([]protocol.DocumentSymbol, 0, len(entries))
	for _, e := range entries {
		sym := protocol.DocumentSymbol{
			Name:           e.Key,
			Kind:           symbolKinds[e.Kind],
			Range:          protocol.Range{Start: fromPosition(e.KeyRange.Start), End: fromPosition(entryEnd(e))},
			SelectionRange: fromRange(e.KeyRange),
		}
		switch e.Kind {
		case parser.KindMapping:
			sym.Detail = plural(e.Items, "key")
		case parser.KindSequence:
			sym.Detail = plural(e.Items, "item")
		default:
			sym.Detail = e.Value
		}
		if len(e.Children) > 0 {
			sym.Children = symbols(e.Children)
		}
		out = append(out, sym)
	}
	return out
}

// entryEnd is the furthest position covered by an entry or its children.
func entryEnd(e *parser.Entry) parser.Position {
	end := e.KeyRange.End
	if e.ValueRange != nil {
		end = e.ValueRange.End
	}
	for _, child := range e.Children {
		if childEnd := entryEnd(child); after(childEnd, end) {
			end = childEnd
		}
	}
	return end
}

func after(a, b parser.Position) bool {
	return a.Line > b.Line || (a.Line == b.Line && a.Character > b.Character)
}

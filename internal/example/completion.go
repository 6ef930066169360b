package example

import (
	"strings"
	"unicode/utf16"

	"go.lsp.dev/protocol"
)

// completion offers the keys already used at the cursor's indentation,
// taken from the last outline that parsed cleanly.
func (s *Server) completion(params *protocol.CompletionParams) *protocol.CompletionList {
	list := &protocol.CompletionList{Items: []protocol.CompletionItem{}}

	doc, ok := s.document(params.TextDocument.URI)
	if !ok {
		return list
	}
	outline := doc.LastValidOutline()
	line := int(params.Position.Line)
	if line >= doc.Outline().LineCount() {
		return list
	}

	prefix := linePrefix(doc.Outline().Line(line), int(params.Position.Character))
	column, typed := keyColumn(prefix)
	if strings.Contains(typed, ":") {
		// Cursor is in a value.
		return list
	}

	for _, key := range outline.KeysAtColumn(column) {
		if key == typed {
			continue
		}
		list.Items = append(list.Items, protocol.CompletionItem{
			Label:      key,
			Kind:       protocol.CompletionItemKindProperty,
			InsertText: key + ": ",
		})
	}
	return list
}

// linePrefix returns the text before the given UTF-16 offset.
func linePrefix(text string, character int) string {
	units := 0
	for i, r := range text {
		if units >= character {
			return text[:i]
		}
		units += utf16.RuneLen(r)
	}
	return text
}

// keyColumn finds where a key typed on this line starts: after the
// indentation and any sequence dashes. It also returns what has been typed
// there so far.
func keyColumn(prefix string) (int, string) {
	column := 0
	rest := prefix
	for {
		trimmed := strings.TrimLeft(rest, " ")
		column += len(rest) - len(trimmed)
		rest = trimmed
		if !strings.HasPrefix(rest, "- ") && rest != "-" {
			return column, rest
		}
		column++
		rest = rest[1:]
	}
}

package example

import (
	"go.lsp.dev/protocol"

	"github.com/mcncl/lsp-boot/internal/parser"
)

// tokenLegend lists token types in parser.TokenType order.
func tokenLegend() protocol.SemanticTokensLegend {
	return protocol.SemanticTokensLegend{
		TokenTypes: []protocol.SemanticTokenTypes{
			protocol.SemanticTokenProperty,
			protocol.SemanticTokenString,
			protocol.SemanticTokenNumber,
			protocol.SemanticTokenKeyword,
			protocol.SemanticTokenComment,
		},
		TokenModifiers: []protocol.SemanticTokenModifiers{},
	}
}

func (s *Server) semanticTokensFull(params *protocol.SemanticTokensParams) *protocol.SemanticTokens {
	if !s.settings.SemanticTokens {
		return nil
	}
	doc, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil
	}
	return &protocol.SemanticTokens{Data: encodeTokens(doc.Outline().Tokens())}
}

func (s *Server) semanticTokensRange(params *protocol.SemanticTokensRangeParams) *protocol.SemanticTokens {
	if !s.settings.SemanticTokens {
		return nil
	}
	doc, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil
	}
	tokens := doc.Outline().TokensInRange(int(params.Range.Start.Line), int(params.Range.End.Line))
	return &protocol.SemanticTokens{Data: encodeTokens(tokens)}
}

// encodeTokens applies the relative encoding: five integers per token, with
// line and start given as deltas from the previous token.
func encodeTokens(tokens []parser.Token) []uint32 {
	data := make([]uint32, 0, len(tokens)*5)
	prevLine, prevStart := 0, 0
	for _, tok := range tokens {
		deltaLine := tok.Line - prevLine
		deltaStart := tok.Start
		if deltaLine == 0 {
			deltaStart = tok.Start - prevStart
		}
		data = append(data, uint32(deltaLine), uint32(deltaStart), uint32(tok.Length), uint32(tok.Type), 0)
		prevLine, prevStart = tok.Line, tok.Start
	}
	return data
}

package parser

import (
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// TokenType classifies a highlighted span.
type TokenType int

const (
	TokenProperty TokenType = iota
	TokenString
	TokenNumber
	TokenKeyword
	TokenComment
)

// TokenTypeNames lists the legend in TokenType order.
var TokenTypeNames = []string{"property", "string", "number", "keyword", "comment"}

// Token is a highlighted span on one line.
type Token struct {
	Line   int
	Start  int
	Length int
	Type   TokenType
}

type tokenState struct {
	tokens []Token
	// block marks lines that belong to multi-line scalars.
	block map[int]bool
}

// Tokens returns the document's highlighted spans ordered by position.
// Multi-line scalars are not highlighted.
func (o *Outline) Tokens() []Token {
	state := &tokenState{block: make(map[int]bool)}
	if o.Root != nil && len(o.Root.Content) > 0 {
		o.collectTokens(o.Root.Content[0], state)
	}

	tokens := state.tokens
	covered := make(map[int][]Token)
	for _, tok := range tokens {
		covered[tok.Line] = append(covered[tok.Line], tok)
	}
	for line := 0; line < o.LineCount(); line++ {
		if state.block[line] {
			continue
		}
		if tok, ok := o.commentToken(line, covered[line]); ok {
			tokens = append(tokens, tok)
		}
	}

	sort.Slice(tokens, func(i, j int) bool {
		if tokens[i].Line != tokens[j].Line {
			return tokens[i].Line < tokens[j].Line
		}
		return tokens[i].Start < tokens[j].Start
	})
	return tokens
}

// TokensInRange returns the tokens whose line lies in [startLine, endLine].
func (o *Outline) TokensInRange(startLine, endLine int) []Token {
	var out []Token
	for _, tok := range o.Tokens() {
		if tok.Line >= startLine && tok.Line <= endLine {
			out = append(out, tok)
		}
	}
	return out
}

func (o *Outline) collectTokens(node *yaml.Node, state *tokenState) {
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			if key.Kind == yaml.ScalarNode {
				o.appendToken(key, TokenProperty, state)
			}
			o.collectTokens(value, state)
		}
	case yaml.SequenceNode:
		for _, item := range node.Content {
			o.collectTokens(item, state)
		}
	case yaml.ScalarNode:
		switch kindOf(node) {
		case KindNumber:
			o.appendToken(node, TokenNumber, state)
		case KindBool:
			o.appendToken(node, TokenKeyword, state)
		case KindNull:
			if node.Value != "" {
				o.appendToken(node, TokenKeyword, state)
			}
		default:
			o.appendToken(node, TokenString, state)
		}
	}
}

func (o *Outline) appendToken(node *yaml.Node, typ TokenType, state *tokenState) {
	if node.Style&(yaml.LiteralStyle|yaml.FoldedStyle) != 0 {
		// The header line carries the indicator; content starts below it.
		for i := 1; i <= strings.Count(strings.TrimRight(node.Value, "\n"), "\n")+1; i++ {
			state.block[node.Line-1+i] = true
		}
		return
	}
	if strings.Contains(node.Value, "\n") {
		return
	}
	r := o.scalarRange(node)
	if r.End.Character <= r.Start.Character {
		return
	}
	state.tokens = append(state.tokens, Token{
		Line:   r.Start.Line,
		Start:  r.Start.Character,
		Length: r.End.Character - r.Start.Character,
		Type:   typ,
	})
}

// commentToken finds a comment on line that starts outside every scalar
// already highlighted there.
func (o *Outline) commentToken(line int, scalars []Token) (Token, bool) {
	text := o.line(line)
	for i := 0; i < len(text); i++ {
		if text[i] != '#' || (i > 0 && text[i-1] != ' ' && text[i-1] != '\t') {
			continue
		}
		start := utf16Len(text[:i])
		inside := false
		for _, tok := range scalars {
			if start >= tok.Start && start < tok.Start+tok.Length {
				inside = true
				break
			}
		}
		if inside {
			continue
		}
		return Token{
			Line:   line,
			Start:  start,
			Length: utf16Len(text[i:]),
			Type:   TokenComment,
		}, true
	}
	return Token{}, false
}

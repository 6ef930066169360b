// Package parser builds a position-aware outline of a YAML document.
package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Kind is the shape of a value in the outline.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindMapping
	KindSequence
	KindAlias
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindMapping:
		return "mapping"
	case KindSequence:
		return "sequence"
	case KindAlias:
		return "alias"
	default:
		return "null"
	}
}

// Position is a zero-based line and UTF-16 character offset, the unit LSP
// clients count in.
type Position struct {
	Line      int
	Character int
}

// Range is a half-open span on a single line.
type Range struct {
	Start Position
	End   Position
}

// Contains reports whether p lies inside r, end inclusive so a cursor
// just after a word still hits it.
func (r Range) Contains(p Position) bool {
	if p.Line < r.Start.Line || p.Line > r.End.Line {
		return false
	}
	if p.Line == r.Start.Line && p.Character < r.Start.Character {
		return false
	}
	if p.Line == r.End.Line && p.Character > r.End.Character {
		return false
	}
	return true
}

// Entry is one mapping key with the value it holds.
type Entry struct {
	Key      string
	Path     []string
	KeyRange Range
	Kind     Kind
	// Value is the scalar text; empty for collections.
	Value string
	// ValueRange is set for single-line scalars only.
	ValueRange *Range
	// Items counts sequence elements or mapping pairs.
	Items    int
	Children []*Entry
}

// DottedPath joins Path with dots.
func (e *Entry) DottedPath() string {
	return strings.Join(e.Path, ".")
}

// Severity grades a Problem.
type Severity int

const (
	SeverityError Severity = iota + 1
	SeverityWarning
)

// Problem is something wrong with the document.
type Problem struct {
	Range    Range
	Severity Severity
	Message  string
}

// Outline is the parsed form of one document.
type Outline struct {
	Content  []byte
	Root     *yaml.Node
	Entries  []*Entry
	Problems []Problem

	lines []string
}

var yamlLineError = regexp.MustCompile(`^yaml: line (\d+): (.*)$`)

// Parse builds the outline of content. Syntax errors do not fail the call;
// they are reported in Problems with an empty outline.
func Parse(content []byte) *Outline {
	o := &Outline{
		Content: content,
		lines:   strings.Split(string(content), "\n"),
	}

	var root yaml.Node
	if err := yaml.Unmarshal(content, &root); err != nil {
		o.Problems = append(o.Problems, syntaxProblem(err))
		return o
	}
	o.Root = &root

	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		o.Entries = o.walk(root.Content[0], nil)
	}
	return o
}

func syntaxProblem(err error) Problem {
	msg := err.Error()
	line := 0
	if m := yamlLineError.FindStringSubmatch(msg); m != nil {
		if n, convErr := strconv.Atoi(m[1]); convErr == nil && n > 0 {
			line = n - 1
		}
		msg = m[2]
	} else {
		msg = strings.TrimPrefix(msg, "yaml: ")
	}
	return Problem{
		Range:    Range{Start: Position{Line: line}, End: Position{Line: line}},
		Severity: SeverityError,
		Message:  fmt.Sprintf("YAML syntax error: %s", msg),
	}
}

func (o *Outline) walk(node *yaml.Node, path []string) []*Entry {
	switch node.Kind {
	case yaml.MappingNode:
		var entries []*Entry
		seen := make(map[string]*Entry)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i], node.Content[i+1]
			entry := o.entry(key, value, path)
			if first, dup := seen[key.Value]; dup {
				o.Problems = append(o.Problems, Problem{
					Range:    entry.KeyRange,
					Severity: SeverityWarning,
					Message: fmt.Sprintf("duplicate key '%s' (first defined on line %d)",
						key.Value, first.KeyRange.Start.Line+1),
				})
			} else {
				seen[key.Value] = entry
			}
			entries = append(entries, entry)
		}
		return entries
	case yaml.SequenceNode:
		var entries []*Entry
		for i, item := range node.Content {
			entries = append(entries, o.walk(item, appendPath(path, strconv.Itoa(i)))...)
		}
		return entries
	default:
		return nil
	}
}

func (o *Outline) entry(key, value *yaml.Node, parent []string) *Entry {
	path := appendPath(parent, key.Value)
	e := &Entry{
		Key:      key.Value,
		Path:     path,
		KeyRange: o.scalarRange(key),
		Kind:     kindOf(value),
	}

	switch value.Kind {
	case yaml.ScalarNode:
		e.Value = value.Value
		if !strings.Contains(value.Value, "\n") && value.Style&(yaml.LiteralStyle|yaml.FoldedStyle) == 0 {
			r := o.scalarRange(value)
			e.ValueRange = &r
		}
	case yaml.SequenceNode:
		e.Items = len(value.Content)
		e.Children = o.walk(value, path)
	case yaml.MappingNode:
		e.Items = len(value.Content) / 2
		e.Children = o.walk(value, path)
	}
	return e
}

func appendPath(path []string, elem string) []string {
	out := make([]string, len(path), len(path)+1)
	copy(out, path)
	return append(out, elem)
}

func kindOf(node *yaml.Node) Kind {
	switch node.Kind {
	case yaml.MappingNode:
		return KindMapping
	case yaml.SequenceNode:
		return KindSequence
	case yaml.AliasNode:
		return KindAlias
	}
	switch node.ShortTag() {
	case "!!int", "!!float":
		return KindNumber
	case "!!bool":
		return KindBool
	case "!!null":
		return KindNull
	default:
		return KindString
	}
}

// scalarRange locates the source text of a single-line scalar, quotes
// included.
func (o *Outline) scalarRange(node *yaml.Node) Range {
	line := node.Line - 1
	start := o.utf16Offset(line, node.Column-1)

	text := o.line(line)
	byteStart := runeOffset(text, node.Column-1)
	length := utf16Len(node.Value)
	switch {
	case node.Style&yaml.DoubleQuotedStyle != 0:
		length = utf16Len(quoted(text[byteStart:], '"'))
	case node.Style&yaml.SingleQuotedStyle != 0:
		length = utf16Len(quoted(text[byteStart:], '\''))
	}

	return Range{
		Start: Position{Line: line, Character: start},
		End:   Position{Line: line, Character: start + length},
	}
}

// quoted returns the quoted scalar at the start of s, both quotes included.
// An unterminated quote runs to the end of the line.
func quoted(s string, quote byte) string {
	for i := 1; i < len(s); i++ {
		switch {
		case quote == '"' && s[i] == '\\':
			i++
		case s[i] == quote:
			if quote == '\'' && i+1 < len(s) && s[i+1] == '\'' {
				i++
				continue
			}
			return s[:i+1]
		}
	}
	return s
}

func (o *Outline) line(n int) string {
	if n < 0 || n >= len(o.lines) {
		return ""
	}
	return strings.TrimSuffix(o.lines[n], "\r")
}

// LineLength is the UTF-16 length of line n without its terminator.
func (o *Outline) LineLength(n int) int {
	return utf16Len(o.line(n))
}

// Line returns the text of line n without its terminator.
func (o *Outline) Line(n int) string {
	return o.line(n)
}

// LineCount is the number of lines in the document.
func (o *Outline) LineCount() int {
	return len(o.lines)
}

func (o *Outline) utf16Offset(line, runes int) int {
	text := o.line(line)
	return utf16Len(text[:runeOffset(text, runes)])
}

// runeOffset converts a rune count into a byte offset within s.
func runeOffset(s string, runes int) int {
	offset := 0
	for i := 0; i < runes && offset < len(s); i++ {
		_, size := utf8.DecodeRuneInString(s[offset:])
		offset += size
	}
	return offset
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// Walk visits every entry depth first. Returning false skips the entry's
// children.
func (o *Outline) Walk(fn func(*Entry) bool) {
	var visit func([]*Entry)
	visit = func(entries []*Entry) {
		for _, e := range entries {
			if fn(e) {
				visit(e.Children)
			}
		}
	}
	visit(o.Entries)
}

// EntryAt returns the innermost entry whose key or single-line scalar
// value covers pos.
func (o *Outline) EntryAt(pos Position) *Entry {
	var found *Entry
	o.Walk(func(e *Entry) bool {
		if e.KeyRange.Contains(pos) || (e.ValueRange != nil && e.ValueRange.Contains(pos)) {
			found = e
		}
		return true
	})
	return found
}

// KeysAtColumn returns the distinct keys that start at the given character
// offset, in document order.
func (o *Outline) KeysAtColumn(character int) []string {
	var keys []string
	seen := make(map[string]bool)
	o.Walk(func(e *Entry) bool {
		if e.KeyRange.Start.Character == character && !seen[e.Key] {
			seen[e.Key] = true
			keys = append(keys, e.Key)
		}
		return true
	})
	return keys
}

// FindNodeByPath follows mapping keys from the document root.
func (o *Outline) FindNodeByPath(path []string) *yaml.Node {
	if o.Root == nil || len(o.Root.Content) == 0 {
		return nil
	}
	return findNodeRecursive(o.Root.Content[0], path, 0)
}

func findNodeRecursive(node *yaml.Node, path []string, depth int) *yaml.Node {
	if depth >= len(path) {
		return node
	}

	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			if node.Content[i].Value == path[depth] {
				return findNodeRecursive(node.Content[i+1], path, depth+1)
			}
		}
	case yaml.SequenceNode:
		idx, err := strconv.Atoi(path[depth])
		if err == nil && idx >= 0 && idx < len(node.Content) {
			return findNodeRecursive(node.Content[idx], path, depth+1)
		}
	}
	return nil
}

package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const sample = `env:
  NODE_ENV: production   # deploy target
  RETRIES: 3
steps:
  - label: "Build ✓"
    command: make
  - wait
debug: true
`

func TestParse_Entries(t *testing.T) {
	o := Parse([]byte(sample))
	if len(o.Problems) != 0 {
		t.Fatalf("Unexpected problems: %+v", o.Problems)
	}

	var got []string
	o.Walk(func(e *Entry) bool {
		got = append(got, e.DottedPath()+"="+e.Kind.String())
		return true
	})
	want := []string{
		"env=mapping",
		"env.NODE_ENV=string",
		"env.RETRIES=number",
		"steps=sequence",
		"steps.0.label=string",
		"steps.0.command=string",
		"debug=boolean",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}

	if o.Entries[0].Items != 2 || o.Entries[1].Items != 2 {
		t.Errorf("Expected item counts 2 and 2, got %d and %d", o.Entries[0].Items, o.Entries[1].Items)
	}
}

func TestParse_Ranges(t *testing.T) {
	o := Parse([]byte(sample))

	nodeEnv := o.Entries[0].Children[0]
	wantKey := Range{Start: Position{Line: 1, Character: 2}, End: Position{Line: 1, Character: 10}}
	if nodeEnv.KeyRange != wantKey {
		t.Errorf("NODE_ENV key range = %+v, want %+v", nodeEnv.KeyRange, wantKey)
	}

	label := o.Entries[1].Children[0]
	if label.Value != "Build ✓" {
		t.Errorf("Expected unquoted value, got %q", label.Value)
	}
	wantValue := Range{Start: Position{Line: 4, Character: 11}, End: Position{Line: 4, Character: 20}}
	if label.ValueRange == nil || *label.ValueRange != wantValue {
		t.Errorf("label value range = %+v, want %+v", label.ValueRange, wantValue)
	}
}

func TestParse_EmptyContent(t *testing.T) {
	o := Parse(nil)
	if len(o.Entries) != 0 || len(o.Problems) != 0 {
		t.Errorf("Empty content should give an empty outline, got %+v", o)
	}
	if o.Tokens() != nil {
		t.Errorf("Empty content should have no tokens")
	}
}

func TestParse_SyntaxError(t *testing.T) {
	o := Parse([]byte("steps:\n  - label: \"Unclosed quote\n    command: \"echo hello\""))
	if len(o.Entries) != 0 {
		t.Errorf("Expected no entries, got %d", len(o.Entries))
	}
	if len(o.Problems) != 1 {
		t.Fatalf("Expected one problem, got %+v", o.Problems)
	}
	p := o.Problems[0]
	if p.Severity != SeverityError || !strings.HasPrefix(p.Message, "YAML syntax error: ") {
		t.Errorf("Unexpected problem: %+v", p)
	}
}

func TestSyntaxProblem_Line(t *testing.T) {
	tests := []struct {
		err      string
		wantLine int
		wantMsg  string
	}{
		{"yaml: line 4: mapping values are not allowed in this context", 3, "YAML syntax error: mapping values are not allowed in this context"},
		{"yaml: control characters are not allowed", 0, "YAML syntax error: control characters are not allowed"},
	}

	for _, tt := range tests {
		p := syntaxProblem(errors.New(tt.err))
		if p.Range.Start.Line != tt.wantLine || p.Message != tt.wantMsg {
			t.Errorf("syntaxProblem(%q) = line %d %q, want line %d %q",
				tt.err, p.Range.Start.Line, p.Message, tt.wantLine, tt.wantMsg)
		}
	}
}

func TestParse_DuplicateKeys(t *testing.T) {
	o := Parse([]byte("a: 1\nb: 2\na: 3\n"))
	if len(o.Problems) != 1 {
		t.Fatalf("Expected one problem, got %+v", o.Problems)
	}
	p := o.Problems[0]
	if p.Severity != SeverityWarning || p.Range.Start.Line != 2 {
		t.Errorf("Expected a warning on line 2, got %+v", p)
	}
	if !strings.Contains(p.Message, "first defined on line 1") {
		t.Errorf("Message should point at the first key, got %q", p.Message)
	}
}

func TestOutline_EntryAt(t *testing.T) {
	o := Parse([]byte(sample))

	tests := []struct {
		name string
		pos  Position
		want string
	}{
		{"on key", Position{Line: 1, Character: 3}, "env.NODE_ENV"},
		{"end of key", Position{Line: 1, Character: 10}, "env.NODE_ENV"},
		{"on value", Position{Line: 4, Character: 13}, "steps.0.label"},
		{"parent key", Position{Line: 3, Character: 0}, "steps"},
		{"whitespace", Position{Line: 1, Character: 0}, ""},
		{"past end", Position{Line: 40, Character: 0}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ""
			if e := o.EntryAt(tt.pos); e != nil {
				got = e.DottedPath()
			}
			if got != tt.want {
				t.Errorf("EntryAt(%+v) = %q, want %q", tt.pos, got, tt.want)
			}
		})
	}
}

func TestOutline_KeysAtColumn(t *testing.T) {
	o := Parse([]byte(sample))

	if diff := cmp.Diff([]string{"env", "steps", "debug"}, o.KeysAtColumn(0)); diff != "" {
		t.Errorf("column 0 mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"label", "command"}, o.KeysAtColumn(4)); diff != "" {
		t.Errorf("column 4 mismatch (-want +got):\n%s", diff)
	}
}

func TestOutline_FindNodeByPath(t *testing.T) {
	o := Parse([]byte(sample))

	if n := o.FindNodeByPath([]string{"steps", "0", "label"}); n == nil || n.Value != "Build ✓" {
		t.Errorf("Expected the label node, got %+v", n)
	}
	if n := o.FindNodeByPath([]string{"steps", "1"}); n == nil || n.Value != "wait" {
		t.Errorf("Expected the wait step, got %+v", n)
	}
	for _, path := range [][]string{{"missing"}, {"steps", "7"}, {"debug", "x"}} {
		if n := o.FindNodeByPath(path); n != nil {
			t.Errorf("FindNodeByPath(%v) should be nil", path)
		}
	}
}

func TestRange_Contains(t *testing.T) {
	r := Range{Start: Position{Line: 2, Character: 4}, End: Position{Line: 2, Character: 8}}
	for _, tt := range []struct {
		pos  Position
		want bool
	}{
		{Position{Line: 2, Character: 4}, true},
		{Position{Line: 2, Character: 8}, true},
		{Position{Line: 2, Character: 3}, false},
		{Position{Line: 2, Character: 9}, false},
		{Position{Line: 1, Character: 5}, false},
	} {
		if got := r.Contains(tt.pos); got != tt.want {
			t.Errorf("Contains(%+v) = %v, want %v", tt.pos, got, tt.want)
		}
	}
}

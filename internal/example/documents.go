package example

import (
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/mcncl/lsp-boot/internal/parser"
)

// Document is an open text document and its parsed outline.
type Document struct {
	URI     uri.URI
	Version int32
	Content string

	outline *parser.Outline
	// lastValid is the most recent outline without syntax errors.
	lastValid *parser.Outline
}

// Stale reports whether the content changed since the outline was built.
func (d *Document) Stale() bool {
	return d.outline == nil
}

// Outline returns the document's outline, parsing it first if stale.
func (d *Document) Outline() *parser.Outline {
	if d.outline == nil {
		d.refresh()
	}
	return d.outline
}

// LastValidOutline returns the newest outline that parsed cleanly, or the
// current one if none has.
func (d *Document) LastValidOutline() *parser.Outline {
	current := d.Outline()
	if d.lastValid == nil {
		return current
	}
	return d.lastValid
}

func (d *Document) refresh() {
	d.outline = parser.Parse([]byte(d.Content))
	for _, p := range d.outline.Problems {
		if p.Severity == parser.SeverityError {
			return
		}
	}
	d.lastValid = d.outline
}

// Documents is the set of documents the client has open.
type Documents struct {
	mu        sync.RWMutex
	documents map[uri.URI]*Document
}

func NewDocuments() *Documents {
	return &Documents{
		documents: make(map[uri.URI]*Document),
	}
}

// Open stores a newly opened document. Its outline is built lazily.
func (ds *Documents) Open(u uri.URI, version int32, content string) *Document {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	doc := &Document{URI: u, Version: version, Content: content}
	ds.documents[u] = doc
	return doc
}

// Update replaces a document's content, creating it if it was never opened.
func (ds *Documents) Update(u uri.URI, version int32, content string) *Document {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	doc, ok := ds.documents[u]
	if !ok {
		doc = &Document{URI: u}
		ds.documents[u] = doc
	}
	doc.Version = version
	doc.Content = content
	doc.outline = nil
	return doc
}

// Close forgets a document and reports whether it was open.
func (ds *Documents) Close(u uri.URI) bool {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	_, ok := ds.documents[u]
	delete(ds.documents, u)
	return ok
}

func (ds *Documents) Get(u uri.URI) (*Document, bool) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	doc, ok := ds.documents[u]
	return doc, ok
}

func (ds *Documents) Len() int {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return len(ds.documents)
}

// NextStale returns the stale document with the smallest URI, or nil.
func (ds *Documents) NextStale() *Document {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	var next *Document
	for u, doc := range ds.documents {
		if doc.Stale() && (next == nil || u < next.URI) {
			next = doc
		}
	}
	return next
}

// URIs lists the open documents in sorted order.
func (ds *Documents) URIs() []uri.URI {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	out := make([]uri.URI, 0, len(ds.documents))
	for u := range ds.documents {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsYAML reports whether a document should be treated as YAML, going by
// the client's language id first and the file extension second.
func IsYAML(u uri.URI, languageID protocol.LanguageIdentifier) bool {
	switch languageID {
	case protocol.YamlLanguage:
		return true
	case "":
	default:
		return false
	}

	path := string(u)
	if parsed, err := uri.Parse(path); err == nil && strings.HasPrefix(string(parsed), uri.FileScheme+":") {
		path = parsed.Filename()
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

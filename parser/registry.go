package parser

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Registry maps lower-case format names (file extensions without the dot)
// to parsers.
type Registry struct {
	parsers map[string]Parser
}

func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	for _, p := range []Parser{
		&TextParser{},
		&MarkdownParser{},
		&HTMLParser{},
		&PDFParser{},
		&DOCXParser{},
		&XLSXParser{},
		&PPTXParser{},
	} {
		for _, f := range p.SupportedFormats() {
			r.parsers[f] = p
		}
	}
	return r
}

func (r *Registry) Get(format string) (Parser, error) {
	p, ok := r.parsers[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return p, nil
}

// ForPath picks the parser for path by its extension. Files without one
// are read as plain text.
func (r *Registry) ForPath(path string) (Parser, error) {
	return r.Get(Format(path))
}

func (r *Registry) Register(format string, p Parser) {
	r.parsers[strings.ToLower(format)] = p
}

// Formats lists the registered formats in sorted order.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.parsers))
	for f := range r.parsers {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Format returns the lower-case extension of path without the leading dot.
// A file without an extension is plain text.
func Format(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return "txt"
	}
	return ext
}

package parser

import (
	"context"
	"errors"
	"strings"
)

// ErrUnsupportedFormat is returned by Registry.Get for an unknown format.
var ErrUnsupportedFormat = errors.New("unsupported format")

// ParseResult is what a parser produces from a document file.
type ParseResult struct {
	Sections []Section // Ordered sections extracted from the document
	Method   string    // "native", "readability"
	Metadata map[string]string
}

// Text renders the result as plain text: each section's heading followed
// by its content, sections separated by a blank line.
func (r *ParseResult) Text() string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	for _, s := range r.Sections {
		block := s.Content
		if s.Heading != "" && s.Type != "table" {
			block = s.Heading + "\n" + s.Content
		}
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(block)
	}
	return b.String()
}

// Section represents a logical section of a parsed document.
type Section struct {
	Heading    string
	Content    string
	Level      int // Heading level (1=top, 2=sub, etc.)
	PageNumber int
	Type       string // "section", "table", "definition", "paragraph"
	Metadata   map[string]string
}

// Parser can parse a specific document format.
type Parser interface {
	Parse(ctx context.Context, path string) (*ParseResult, error)
	SupportedFormats() []string
}

package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-shiori/go-readability"
)

// ErrNoContent is returned when readability finds no article text.
var ErrNoContent = errors.New("no readable content")

// HTMLParser extracts the main article text of an HTML page with
// readability, dropping navigation, boilerplate and markup.
type HTMLParser struct{}

func (p *HTMLParser) SupportedFormats() []string { return []string{"html", "htm"} }

func (p *HTMLParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening HTML: %w", err)
	}
	defer f.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return parseHTML(f, &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)})
}

func parseHTML(r io.Reader, pageURL *url.URL) (*ParseResult, error) {
	article, err := readability.FromReader(r, pageURL)
	if err != nil {
		return nil, fmt.Errorf("readability: %w", err)
	}

	content := strings.TrimSpace(article.TextContent)
	if content == "" {
		return nil, ErrNoContent
	}

	res := &ParseResult{
		Sections: []Section{{
			Heading: strings.TrimSpace(article.Title),
			Content: content,
			Level:   1,
			Type:    "paragraph",
		}},
		Method:   "readability",
		Metadata: map[string]string{},
	}
	if pageURL != nil {
		res.Metadata["url"] = pageURL.String()
	}
	if t := strings.TrimSpace(article.Title); t != "" {
		res.Metadata["title"] = t
	}
	return res, nil
}

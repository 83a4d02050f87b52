package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// TextParser handles plain text (.txt) files.
type TextParser struct{}

func (p *TextParser) SupportedFormats() []string { return []string{"txt", "text"} }

func (p *TextParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading text file: %w", err)
	}

	content := strings.TrimSpace(string(data))
	if content == "" {
		return &ParseResult{
			Method: "native",
		}, nil
	}

	return &ParseResult{
		Sections: []Section{
			{
				Content: content,
				Level:   1,
				Type:    "paragraph",
			},
		},
		Method:   "native",
		Metadata: map[string]string{"filename": filepath.Base(path)},
	}, nil
}

// MarkdownParser handles Markdown files. ATX headings start new sections;
// inline markup, link targets and fenced code blocks are dropped.
type MarkdownParser struct{}

func (p *MarkdownParser) SupportedFormats() []string { return []string{"md", "markdown"} }

func (p *MarkdownParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading markdown file: %w", err)
	}
	return &ParseResult{
		Sections: splitMarkdown(string(data)),
		Method:   "native",
	}, nil
}

var (
	mdHeading  = regexp.MustCompile(`^(#{1,6})\s+(.*?)\s*#*\s*$`)
	mdImage    = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	mdLink     = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	mdListItem = regexp.MustCompile(`^(\s*)([-*+]|\d+[.)])\s+`)
	mdRule     = regexp.MustCompile(`^\s*([-*_]\s*){3,}$`)
	mdEmphasis = strings.NewReplacer("**", "", "__", "", "*", "", "`", "", "~~", "")
)

func splitMarkdown(text string) []Section {
	var sections []Section
	var content strings.Builder
	heading := ""
	level := 0
	inFence := false

	flush := func() {
		c := strings.TrimSpace(content.String())
		content.Reset()
		if c == "" && heading == "" {
			return
		}
		sections = append(sections, Section{
			Heading: heading,
			Content: c,
			Level:   level,
			Type:    classifySectionType(heading, c),
		})
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		if m := mdHeading.FindStringSubmatch(trimmed); m != nil {
			flush()
			heading = stripInlineMarkdown(m[2])
			level = len(m[1])
			continue
		}
		if mdRule.MatchString(trimmed) {
			continue
		}
		if trimmed == "" {
			if content.Len() > 0 {
				content.WriteString("\n")
			}
			continue
		}
		trimmed = strings.TrimLeft(trimmed, "> ")
		trimmed = mdListItem.ReplaceAllString(trimmed, "")
		if content.Len() > 0 {
			content.WriteString("\n")
		}
		content.WriteString(stripInlineMarkdown(trimmed))
	}
	flush()

	return sections
}

func stripInlineMarkdown(s string) string {
	s = mdImage.ReplaceAllString(s, "$1")
	s = mdLink.ReplaceAllString(s, "$1")
	return strings.TrimSpace(mdEmphasis.Replace(s))
}

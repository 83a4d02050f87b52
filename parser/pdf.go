package parser

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

type PDFParser struct{}

func (p *PDFParser) SupportedFormats() []string { return []string{"pdf"} }

func (p *PDFParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	totalPages := reader.NumPage()
	var sections []Section

	for i := 1; i <= totalPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			slog.Debug("pdf: skipping page", "path", path, "page", i, "error", err)
			continue
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		sections = append(sections, splitPageIntoSections(text, i)...)
	}

	if len(sections) == 0 {
		return nil, fmt.Errorf("%w in PDF (%d pages)", ErrNoContent, totalPages)
	}

	return &ParseResult{
		Sections: sections,
		Method:   "native",
		Metadata: map[string]string{"pages": fmt.Sprintf("%d", totalPages)},
	}, nil
}

// splitPageIntoSections breaks page text into logical sections at lines
// that look like headings.
func splitPageIntoSections(text string, pageNum int) []Section {
	var sections []Section
	var content strings.Builder
	var heading string
	level := 0

	flush := func() {
		if content.Len() == 0 {
			return
		}
		c := strings.TrimSpace(content.String())
		sections = append(sections, Section{
			Heading:    heading,
			Content:    c,
			Level:      level,
			PageNumber: pageNum,
			Type:       classifySectionType(heading, c),
		})
		content.Reset()
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if content.Len() > 0 {
				content.WriteString("\n")
			}
			continue
		}

		if isLikelyHeading(trimmed) {
			flush()
			heading = trimmed
			level = detectHeadingLevel(trimmed)
			continue
		}
		if content.Len() > 0 {
			content.WriteString("\n")
		}
		content.WriteString(trimmed)
	}
	flush()

	return sections
}

// headingPrefixes are lower-case English and Dutch words that open a
// heading when followed by a space.
var headingPrefixes = []string{
	"section ", "article ", "chapter ", "part ", "appendix ",
	"sectie ", "artikel ", "hoofdstuk ", "deel ", "bijlage ",
}

// captionPrefixes only open a heading when followed by a number, so that
// running text like "table below" is not split.
var captionPrefixes = []string{"table ", "figure ", "tabel ", "figuur "}

func isLikelyHeading(line string) bool {
	if line == "" || len(line) >= 120 {
		return false
	}
	// All caps and short
	if len(line) < 100 && len(line) > 2 && line == strings.ToUpper(line) && hasLetter(line) {
		return true
	}
	// Numbered section like "1.", "1.1", "3.9.1"
	if line[0] >= '0' && line[0] <= '9' && strings.Contains(line[:min(10, len(line))], ".") {
		return true
	}
	lower := strings.ToLower(line)
	for _, p := range headingPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	for _, p := range captionPrefixes {
		if strings.HasPrefix(lower, p) && len(lower) > len(p) && unicode.IsDigit(rune(lower[len(p)])) {
			return true
		}
	}
	return false
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func detectHeadingLevel(heading string) int {
	// Count dots in numbering to determine depth
	number, _, _ := strings.Cut(heading, " ")
	if dots := strings.Count(number, "."); dots > 0 {
		return dots
	}
	if heading == strings.ToUpper(heading) {
		return 1
	}
	return 2
}

func classifySectionType(heading, content string) string {
	h := strings.ToLower(heading)
	c := strings.ToLower(content)

	switch {
	case strings.Contains(h, "definition"), strings.Contains(h, "glossary"),
		strings.Contains(h, "definitie"), strings.Contains(h, "begrippen"),
		strings.Contains(c, "definition"), strings.Contains(c, "definitie"):
		return "definition"
	case strings.Contains(h, "table"), strings.Contains(h, "tabel"):
		return "table"
	case strings.Count(content, "\t") > 3, strings.Count(content, "|") > 3:
		return "table"
	case strings.Contains(h, "appendix"), strings.Contains(h, "annex"), strings.Contains(h, "bijlage"):
		return "annex"
	}
	return "section"
}

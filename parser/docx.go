package parser

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"strings"
)

type DOCXParser struct{}

func (p *DOCXParser) SupportedFormats() []string { return []string{"docx"} }

func (p *DOCXParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening DOCX: %w", err)
	}
	defer r.Close()

	data, err := readZipPart(indexZip(&r.Reader), "word/document.xml")
	if err != nil {
		return nil, err
	}

	sections, err := parseDocxXML(data)
	if err != nil {
		return nil, fmt.Errorf("parsing DOCX XML: %w", err)
	}

	return &ParseResult{
		Sections: sections,
		Method:   "native",
	}, nil
}

// DOCX XML structures (simplified)
type docxDocument struct {
	XMLName xml.Name `xml:"document"`
	Body    docxBody `xml:"body"`
}

type docxBody struct {
	Paras  []docxPara  `xml:"p"`
	Tables []docxTable `xml:"tbl"`
}

type docxPara struct {
	PPr  *docxParaPr `xml:"pPr"`
	Runs []docxRun   `xml:"r"`
}

type docxParaPr struct {
	PStyle *docxPStyle `xml:"pStyle"`
}

type docxPStyle struct {
	Val string `xml:"val,attr"`
}

type docxRun struct {
	Text []string `xml:"t"`
}

type docxTable struct {
	Rows []docxRow `xml:"tr"`
}

type docxRow struct {
	Cells []docxCell `xml:"tc"`
}

type docxCell struct {
	Paras []docxPara `xml:"p"`
}

func parseDocxXML(data []byte) ([]Section, error) {
	var doc docxDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	var sections []Section
	var content strings.Builder
	var heading string
	level := 0

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

	for _, para := range doc.Body.Paras {
		text := strings.TrimSpace(para.text())
		if text == "" {
			continue
		}

		if style := para.style(); isHeadingStyle(style) {
			flush()
			heading = text
			level = headingStyleLevel(style)
			continue
		}
		if content.Len() > 0 {
			content.WriteString("\n")
		}
		content.WriteString(text)
	}
	flush()

	// Cells become one line per row; pipes would be read as tokens.
	for _, tbl := range doc.Body.Tables {
		var rows []string
		for _, row := range tbl.Rows {
			var cells []string
			for _, cell := range row.Cells {
				var parts []string
				for _, p := range cell.Paras {
					if t := strings.TrimSpace(p.text()); t != "" {
						parts = append(parts, t)
					}
				}
				if len(parts) > 0 {
					cells = append(cells, strings.Join(parts, " "))
				}
			}
			if len(cells) > 0 {
				rows = append(rows, strings.Join(cells, "; "))
			}
		}
		if len(rows) == 0 {
			continue
		}
		sections = append(sections, Section{
			Content: strings.Join(rows, "\n"),
			Type:    "table",
		})
	}

	return sections, nil
}

func (p docxPara) text() string {
	var b strings.Builder
	for _, run := range p.Runs {
		for _, t := range run.Text {
			b.WriteString(t)
		}
	}
	return b.String()
}

func (p docxPara) style() string {
	if p.PPr == nil || p.PPr.PStyle == nil {
		return ""
	}
	return p.PPr.PStyle.Val
}

func isHeadingStyle(style string) bool {
	lower := strings.ToLower(style)
	return strings.HasPrefix(lower, "heading") || strings.HasPrefix(lower, "title") ||
		strings.HasPrefix(lower, "kop")
}

func headingStyleLevel(style string) int {
	lower := strings.ToLower(style)
	if strings.HasPrefix(lower, "title") {
		return 1
	}
	// "Heading1", "heading 2", "Kop3"
	for _, r := range lower {
		if r >= '1' && r <= '9' {
			return int(r - '0')
		}
	}
	return 1
}

package parser

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// XLSXParser reads every non-empty sheet. Each row becomes one line of
// text with its non-empty cells joined by "; ".
type XLSXParser struct{}

func (p *XLSXParser) SupportedFormats() []string { return []string{"xlsx", "xlsm"} }

func (p *XLSXParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening XLSX: %w", err)
	}
	defer f.Close()

	var sections []Section

	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}

		var lines []string
		for _, row := range rows {
			var cells []string
			for _, c := range row {
				if c = strings.TrimSpace(c); c != "" {
					cells = append(cells, c)
				}
			}
			if len(cells) > 0 {
				lines = append(lines, strings.Join(cells, "; "))
			}
		}
		if len(lines) == 0 {
			continue
		}

		sections = append(sections, Section{
			Heading: sheet,
			Content: strings.Join(lines, "\n"),
			Type:    "table",
			Level:   1,
			Metadata: map[string]string{
				"sheet_name": sheet,
				"row_count":  strconv.Itoa(len(rows)),
			},
		})
	}

	if len(sections) == 0 {
		return nil, fmt.Errorf("%w in XLSX", ErrNoContent)
	}

	return &ParseResult{
		Sections: sections,
		Method:   "native",
	}, nil
}

package parser

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

type PPTXParser struct{}

func (p *PPTXParser) SupportedFormats() []string { return []string{"pptx"} }

func (p *PPTXParser) Parse(ctx context.Context, path string) (*ParseResult, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening PPTX: %w", err)
	}
	defer r.Close()

	files := indexZip(&r.Reader)

	// ppt/slides/slide1.xml, slide2.xml, ... ordered by number, not name
	var nums []int
	for name := range files {
		if n := slideNumber(name); n > 0 {
			nums = append(nums, n)
		}
	}
	sort.Ints(nums)

	var sections []Section
	for _, num := range nums {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := readZipPart(files, fmt.Sprintf("ppt/slides/slide%d.xml", num))
		if err != nil {
			slog.Debug("pptx: skipping slide", "path", path, "slide", num, "error", err)
			continue
		}

		paras := slideParagraphs(data)
		if len(paras) == 0 {
			continue
		}

		// The first paragraph of a slide is normally its title.
		sec := Section{
			Heading:    paras[0],
			Content:    strings.Join(paras[1:], "\n"),
			Type:       "section",
			Level:      1,
			PageNumber: num,
		}
		if len(paras) == 1 {
			sec.Heading = fmt.Sprintf("Slide %d", num)
			sec.Content = paras[0]
		}
		sections = append(sections, sec)
	}

	if len(sections) == 0 {
		return nil, fmt.Errorf("%w in PPTX", ErrNoContent)
	}

	return &ParseResult{
		Sections: sections,
		Method:   "native",
		Metadata: map[string]string{"slides": strconv.Itoa(len(nums))},
	}, nil
}

// pptxSlide simplified XML structure
type pptxSlide struct {
	CSld struct {
		SpTree struct {
			SPs []pptxSP `xml:"sp"`
		} `xml:"spTree"`
	} `xml:"cSld"`
}

type pptxSP struct {
	TxBody *pptxTxBody `xml:"txBody"`
}

type pptxTxBody struct {
	Paras []pptxAPara `xml:"p"`
}

type pptxAPara struct {
	Runs []pptxARun `xml:"r"`
}

type pptxARun struct {
	Text string `xml:"t"`
}

func slideParagraphs(data []byte) []string {
	var slide pptxSlide
	if err := xml.Unmarshal(data, &slide); err != nil {
		return nil
	}

	var parts []string
	for _, sp := range slide.CSld.SpTree.SPs {
		if sp.TxBody == nil {
			continue
		}
		for _, para := range sp.TxBody.Paras {
			var line strings.Builder
			for _, run := range para.Runs {
				line.WriteString(run.Text)
			}
			if t := strings.TrimSpace(line.String()); t != "" {
				parts = append(parts, t)
			}
		}
	}
	return parts
}

// slideNumber returns n for "ppt/slides/slide<n>.xml", else 0.
func slideNumber(name string) int {
	rest, ok := strings.CutPrefix(name, "ppt/slides/slide")
	if !ok {
		return 0
	}
	rest, ok = strings.CutSuffix(rest, ".xml")
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0
	}
	return n
}

package parser

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFParser handles .pdf files. No visual-mark detection is attempted —
// PDF text extraction does not reliably preserve run formatting, so PDF
// questions are always AI_Generated (SPEC_FULL §4.2).
type PDFParser struct{}

func (p *PDFParser) SupportedFormats() []string { return []string{"pdf"} }

func (p *PDFParser) Parse(ctx context.Context, path string) (*ParsedDocument, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	doc := &ParsedDocument{}
	tracker := newSectionTracker()
	index := 0

	totalPages := reader.NumPage()
	for i := 1; i <= totalPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := extractPageTextOrdered(page)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		for _, b := range splitBlocks(text) {
			section := sanitizeSection(tracker.update(b.text))

			stem, choices, ok := extractQuestion(b)
			if !ok {
				continue
			}
			index++
			doc.Questions = append(doc.Questions, ParsedQuestion{
				Index:   index,
				Stem:    stem,
				Choices: choices,
				Section: section,
				Source:  SourceAIGenerated,
			})
		}
	}

	return doc, nil
}

// extractPageTextOrdered extracts text from a PDF page sorted by visual
// position (top-to-bottom). The default GetPlainText reads text in PDF
// object order, which can differ from visual layout — a question number
// may appear after the choices it precedes.
//
// This groups Content() elements into visual lines by Y proximity
// (preserving content-stream order within each line, which GetPlainText
// relies on for correct character sequencing), then sorts lines by Y so
// the result follows reading order.
func extractPageTextOrdered(page pdf.Page) (string, error) {
	content := page.Content()
	if len(content.Text) == 0 {
		return page.GetPlainText(nil)
	}

	const lineTolerance = 3.0

	type visualLine struct {
		y   float64
		buf strings.Builder
	}

	var lines []*visualLine
	var cur *visualLine

	for _, t := range content.Text {
		if cur == nil || math.Abs(t.Y-cur.y) > lineTolerance {
			lines = append(lines, &visualLine{y: t.Y})
			cur = lines[len(lines)-1]
		}
		cur.buf.WriteString(t.S)
	}

	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].y > lines[j].y
	})

	var parts []string
	for _, l := range lines {
		text := strings.TrimSpace(l.buf.String())
		if text != "" {
			parts = append(parts, text)
		}
	}

	result := strings.Join(parts, "\n")
	if strings.TrimSpace(result) == "" {
		return page.GetPlainText(nil)
	}
	return result, nil
}

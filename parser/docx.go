package parser

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// DOCXParser handles .docx files, including visual-mark detection: a run
// carrying highlight/shading/color/underline/bold formatting is treated as
// the document author's marking of the correct choice (SPEC_FULL §4.2).
type DOCXParser struct{}

func (p *DOCXParser) SupportedFormats() []string { return []string{"docx"} }

func (p *DOCXParser) Parse(ctx context.Context, path string) (*ParsedDocument, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening DOCX: %w", err)
	}
	defer r.Close()

	var docFile *zip.File
	for _, f := range r.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return nil, fmt.Errorf("word/document.xml not found in DOCX")
	}

	rc, err := docFile.Open()
	if err != nil {
		return nil, fmt.Errorf("opening document.xml: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}

	lines, err := parseDocxLines(data)
	if err != nil {
		return nil, fmt.Errorf("parsing DOCX XML: %w", err)
	}

	return buildDocxQuestions(lines), nil
}

// docxLine is one paragraph's plain text plus whether any run in it
// carries visual-mark formatting.
type docxLine struct {
	text   string
	marked bool
}

// buildDocxQuestions joins paragraph lines into the document's full text
// (tracking each line's byte range), splits it into question blocks, and
// cross-references choice text offsets against marked line ranges to set
// IsVisuallyMarked.
func buildDocxQuestions(lines []docxLine) *ParsedDocument {
	doc := &ParsedDocument{}

	var joined strings.Builder
	type lineRange struct {
		start, end int
		marked     bool
	}
	var ranges []lineRange

	for _, l := range lines {
		start := joined.Len()
		joined.WriteString(l.text)
		joined.WriteString("\n")
		ranges = append(ranges, lineRange{start: start, end: joined.Len(), marked: l.marked})
	}
	full := joined.String()

	tracker := newSectionTracker()
	index := 0

	for _, b := range splitBlocks(full) {
		section := sanitizeSection(tracker.update(b.text))

		stem, choices, ok := extractQuestion(b)
		if !ok {
			continue
		}

		markedCount := 0
		for i := range choices {
			if strings.Contains(choices[i].Text, "✓") {
				choices[i].IsVisuallyMarked = true
				markedCount++
				continue
			}

			choiceOffset := strings.Index(b.text, choices[i].Text)
			if choiceOffset < 0 {
				continue
			}
			abs := b.start + choiceOffset
			for _, lr := range ranges {
				if abs >= lr.start && abs < lr.end && lr.marked {
					choices[i].IsVisuallyMarked = true
					markedCount++
					break
				}
			}
		}

		source := SourceAIGenerated
		correctKey := ""
		if markedCount == 1 {
			source = SourceStyleDetected
			for _, c := range choices {
				if c.IsVisuallyMarked {
					correctKey = c.Key
					break
				}
			}
		}

		index++
		doc.Questions = append(doc.Questions, ParsedQuestion{
			Index:            index,
			Stem:             stem,
			Choices:          choices,
			CorrectAnswerKey: correctKey,
			Section:          section,
			Source:           source,
		})
	}

	return doc
}

// parseDocxLines walks word/document.xml paragraph by paragraph and
// returns each paragraph's plain text with its visual-mark state.
func parseDocxLines(data []byte) ([]docxLine, error) {
	var doc docxDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	lines := make([]docxLine, 0, len(doc.Body.Paras))
	for _, para := range doc.Body.Paras {
		text := extractParaText(para)
		if strings.TrimSpace(text) == "" {
			continue
		}
		lines = append(lines, docxLine{text: text, marked: paraIsMarked(para)})
	}

	for _, tbl := range doc.Body.Tables {
		for _, row := range tbl.Rows {
			for _, cell := range row.Cells {
				for _, p := range cell.Paras {
					text := extractParaText(p)
					if strings.TrimSpace(text) == "" {
						continue
					}
					lines = append(lines, docxLine{text: text, marked: paraIsMarked(p)})
				}
			}
		}
	}

	return lines, nil
}

// paraIsMarked reports whether any run in the paragraph carries
// highlight, shading, color, underline, strikethrough, or bold
// formatting — the visual marks SPEC_FULL §4.2 treats as an answer key.
func paraIsMarked(para docxPara) bool {
	for _, run := range para.Runs {
		if run.RPr != nil && run.RPr.isMarked() {
			return true
		}
	}
	return false
}

func extractParaText(para docxPara) string {
	var b strings.Builder
	for _, run := range para.Runs {
		for _, t := range run.Text {
			b.WriteString(t.Content)
		}
	}
	return b.String()
}

// DOCX XML structures (simplified).
type docxBody struct {
	XMLName xml.Name    `xml:"body"`
	Paras   []docxPara  `xml:"p"`
	Tables  []docxTable `xml:"tbl"`
}

type docxDocument struct {
	XMLName xml.Name `xml:"document"`
	Body    docxBody `xml:"body"`
}

type docxPara struct {
	XMLName xml.Name    `xml:"p"`
	PPr     *docxParaPr `xml:"pPr"`
	Runs    []docxRun   `xml:"r"`
}

type docxParaPr struct {
	PStyle *docxPStyle `xml:"pStyle"`
}

type docxPStyle struct {
	Val string `xml:"val,attr"`
}

type docxRun struct {
	RPr  *docxRPr   `xml:"rPr"`
	Text []docxText `xml:"t"`
}

// docxRPr is a run's formatting properties, read only for the
// visual-mark subset: highlight, shading, color, underline,
// strikethrough, bold.
type docxRPr struct {
	Highlight   *docxVal `xml:"highlight"`
	Shading     *docxVal `xml:"shd"`
	Color       *docxVal `xml:"color"`
	Underline   *docxVal `xml:"u"`
	Strike      *docxEmpty `xml:"strike"`
	DoubleStrike *docxEmpty `xml:"dstrike"`
	Bold        *docxEmpty `xml:"b"`
}

func (r *docxRPr) isMarked() bool {
	if r == nil {
		return false
	}
	if r.Highlight != nil && r.Highlight.Val != "" && r.Highlight.Val != "none" {
		return true
	}
	if r.Shading != nil && r.Shading.Val != "" && r.Shading.Val != "clear" && r.Shading.Val != "auto" {
		return true
	}
	if r.Color != nil && r.Color.Val != "" && r.Color.Val != "auto" && r.Color.Val != "000000" {
		return true
	}
	if r.Underline != nil && r.Underline.Val != "" && r.Underline.Val != "none" {
		return true
	}
	if r.Strike != nil || r.DoubleStrike != nil {
		return true
	}
	if r.Bold != nil {
		return true
	}
	return false
}

type docxVal struct {
	Val string `xml:"val,attr"`
}

type docxEmpty struct{}

type docxText struct {
	Content string `xml:",chardata"`
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

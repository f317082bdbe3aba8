package parser

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/xuri/excelize/v2"
)

// XLSXParser handles .xlsx/.xls files laid out one question per row:
// column A is the stem, the following columns are choices, and an
// optional trailing column may name the correct choice's key. No visual-
// mark detection is attempted for spreadsheets (SPEC_FULL §9).
type XLSXParser struct{}

func (p *XLSXParser) SupportedFormats() []string { return []string{"xlsx", "xls"} }

func (p *XLSXParser) Parse(ctx context.Context, path string) (*ParsedDocument, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening XLSX: %w", err)
	}
	defer f.Close()

	doc := &ParsedDocument{}
	index := 0

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}

		for i, row := range rows {
			if i == 0 && looksLikeHeader(row) {
				continue
			}
			q, ok := rowToQuestion(row)
			if !ok {
				continue
			}
			index++
			q.Index = index
			q.Section = defaultSection
			doc.Questions = append(doc.Questions, q)
		}
	}

	if len(doc.Questions) == 0 {
		return nil, fmt.Errorf("no questions found in XLSX")
	}
	return doc, nil
}

func looksLikeHeader(row []string) bool {
	if len(row) == 0 {
		return false
	}
	first := strings.ToLower(strings.TrimSpace(row[0]))
	switch first {
	case "stem", "question", "câu hỏi", "cau hoi", "question text":
		return true
	}
	return false
}

// rowToQuestion maps column A to the stem, the run of non-empty choice
// columns to choices, and an optional trailing single-letter cell to the
// correct answer key.
func rowToQuestion(row []string) (ParsedQuestion, bool) {
	if len(row) < 3 {
		return ParsedQuestion{}, false
	}

	stem := strings.TrimSpace(row[0])
	if stem == "" {
		return ParsedQuestion{}, false
	}

	rest := row[1:]
	correctKey := ""
	if n := len(rest); n > 0 && isChoiceKey(rest[n-1]) {
		correctKey = strings.ToUpper(strings.TrimSpace(rest[n-1]))
		rest = rest[:n-1]
	}

	var choices []ParsedChoice
	keys := "ABCDEFGHIJ"
	for i, cell := range rest {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		if i >= len(keys) {
			break
		}
		choices = append(choices, ParsedChoice{Key: string(keys[i]), Text: cell})
	}
	if len(choices) < 2 {
		return ParsedQuestion{}, false
	}

	source := SourceAIGenerated
	if correctKey != "" {
		source = SourceStyleDetected
	}

	return ParsedQuestion{
		Stem:             stem,
		Choices:          choices,
		CorrectAnswerKey: correctKey,
		Source:           source,
	}, true
}

// isChoiceKey reports whether a cell is a single letter, the shape of an
// answer-key column rather than a choice.
func isChoiceKey(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) != 1 {
		return false
	}
	r := unicode.ToUpper(rune(s[0]))
	return r >= 'A' && r <= 'J'
}

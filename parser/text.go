package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// TextParser handles plain text (.txt) files.
type TextParser struct{}

func (p *TextParser) SupportedFormats() []string { return []string{"txt"} }

func (p *TextParser) Parse(ctx context.Context, path string) (*ParsedDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading text file: %w", err)
	}

	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	doc := &ParsedDocument{Title: filepath.Base(path)}
	if strings.TrimSpace(content) == "" {
		return doc, nil
	}

	tracker := newSectionTracker()
	index := 0
	for _, b := range splitBlocks(content) {
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
	return doc, nil
}

// Package parser implements the Document Parser & Section Tracker: a
// deterministic text-to-questions extractor with sticky section
// inheritance and visual-mark detection (SPEC_FULL §4.2).
package parser

import "context"

// Source tags how a question's correct answer was determined, mirroring
// the AnswerSource values of the root package's Question type.
const (
	SourceStyleDetected = "StyleDetected"
	SourceAIGenerated   = "AI_Generated"
)

// ParsedChoice is one answer option extracted from a document.
type ParsedChoice struct {
	Key              string
	Text             string
	IsVisuallyMarked bool
}

// ParsedQuestion is one multiple-choice question extracted from a
// document, before orchestration assigns a final answer.
type ParsedQuestion struct {
	Index            int // 1-based
	Stem             string
	Choices          []ParsedChoice
	CorrectAnswerKey string // may be empty
	Section          string
	Source           string // "StyleDetected" or "AI_Generated"
}

// ParsedDocument is the parser's output: a small, concrete data type —
// never a dynamic/any-typed intermediate (SPEC_FULL §9).
type ParsedDocument struct {
	Title     string
	Questions []ParsedQuestion
}

// Parser extracts a ParsedDocument from a file of a supported format.
type Parser interface {
	SupportedFormats() []string
	Parse(ctx context.Context, path string) (*ParsedDocument, error)
}

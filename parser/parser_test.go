package parser

import (
	"testing"
)

func TestRegistryBuiltInParsers(t *testing.T) {
	reg := NewRegistry()

	formats := []struct {
		format     string
		wantParser string
	}{
		{"pdf", "*parser.PDFParser"},
		{"docx", "*parser.DOCXParser"},
		{"xlsx", "*parser.XLSXParser"},
		{"xls", "*parser.XLSXParser"},
		{"txt", "*parser.TextParser"},
	}

	for _, tt := range formats {
		t.Run(tt.format, func(t *testing.T) {
			p, err := reg.Get(tt.format)
			if err != nil {
				t.Fatalf("Get(%q) returned error: %v", tt.format, err)
			}
			found := false
			for _, f := range p.SupportedFormats() {
				if f == tt.format {
					found = true
					break
				}
			}
			if !found {
				t.Errorf("parser for %q does not list %q in SupportedFormats(): %v",
					tt.format, tt.format, p.SupportedFormats())
			}
		})
	}
}

func TestRegistryUnknown(t *testing.T) {
	reg := NewRegistry()

	for _, format := range []string{"csv", "json", "html", "rtf", "odt", "pptx", ""} {
		t.Run("format_"+format, func(t *testing.T) {
			if p, err := reg.Get(format); err == nil {
				t.Errorf("Get(%q) expected error for unknown format, got parser: %v", format, p)
			}
		})
	}
}

func TestSanitizeSection(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"CLO 1.2.3", "CLO 1"},
		{"clo1", "CLO 1"},
		{"CLCLO 2", "CLO 2"},
		{"CLO CLO 3", "CLO 3"},
		{"", defaultSection},
		{"   ", defaultSection},
		{"Chương 2", "CHƯƠNG 2"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := sanitizeSection(tt.in); got != tt.want {
				t.Errorf("sanitizeSection(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSectionTrackerIsSticky(t *testing.T) {
	tr := newSectionTracker()
	if got := tr.update("Câu 1: What is 2+2?"); got != defaultSection {
		t.Errorf("before any heading, section = %q, want %q", got, defaultSection)
	}

	if got := sanitizeSection(tr.update("(CLO 2.1)\nCâu 2: Next question")); got != "CLO 2" {
		t.Errorf("after CLO marker, section = %q, want %q", got, "CLO 2")
	}

	// A later block with no new heading keeps the last seen section.
	if got := sanitizeSection(tr.update("Câu 3: Another question with no heading")); got != "CLO 2" {
		t.Errorf("section did not stick across blocks: got %q, want %q", got, "CLO 2")
	}
}

func TestExtractQuestionRequiresTwoChoices(t *testing.T) {
	b := block{text: "Câu 1: Only one option\nA. Lonely choice"}
	if _, _, ok := extractQuestion(b); ok {
		t.Fatal("expected extraction to fail with fewer than two choices")
	}
}

func TestExtractQuestionCleansStem(t *testing.T) {
	b := block{text: "(CLO 1.1)\nCâu 5: What is the capital of Vietnam?\nA. Hanoi\nB. Saigon\nC. Hue\nD. Danang"}
	stem, choices, ok := extractQuestion(b)
	if !ok {
		t.Fatal("expected extraction to succeed")
	}
	if stem != "What is the capital of Vietnam?" {
		t.Errorf("stem = %q, want cleaned stem", stem)
	}
	if len(choices) != 4 {
		t.Fatalf("len(choices) = %d, want 4", len(choices))
	}
	if choices[0].Key != "A" || choices[0].Text != "Hanoi" {
		t.Errorf("choices[0] = %+v", choices[0])
	}
}

func TestTextParserExtractsQuestions(t *testing.T) {
	path := writeTempFile(t, "quiz-*.txt", "Câu 1: 2 + 2 = ?\nA. 3\nB. 4\nC. 5\nD. 6\n\nCâu 2: 3 + 3 = ?\nA. 5\nB. 6\nC. 7\nD. 8\n")

	p := &TextParser{}
	doc, err := p.Parse(testCtx(), path)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(doc.Questions) != 2 {
		t.Fatalf("len(doc.Questions) = %d, want 2", len(doc.Questions))
	}
	if doc.Questions[0].Source != SourceAIGenerated {
		t.Errorf("text parser source = %q, want %q", doc.Questions[0].Source, SourceAIGenerated)
	}
}

func TestBuildDocxQuestionsPrecedence(t *testing.T) {
	// Exactly one marked choice -> StyleDetected with that key.
	lines := []docxLine{
		{text: "Câu 1: What is the capital of Vietnam?"},
		{text: "A. Hanoi", marked: true},
		{text: "B. Saigon"},
		{text: "C. Hue"},
		{text: "D. Danang"},
	}
	doc := buildDocxQuestions(lines)
	if len(doc.Questions) != 1 {
		t.Fatalf("len(doc.Questions) = %d, want 1", len(doc.Questions))
	}
	q := doc.Questions[0]
	if q.Source != SourceStyleDetected || q.CorrectAnswerKey != "A" {
		t.Errorf("single mark: source=%q key=%q, want StyleDetected/A", q.Source, q.CorrectAnswerKey)
	}

	// Zero marked choices -> AI_Generated, empty key.
	lines[1].marked = false
	doc = buildDocxQuestions(lines)
	q = doc.Questions[0]
	if q.Source != SourceAIGenerated || q.CorrectAnswerKey != "" {
		t.Errorf("zero marks: source=%q key=%q, want AI_Generated/empty", q.Source, q.CorrectAnswerKey)
	}

	// Multiple marked choices -> AI_Generated, empty key (ambiguous).
	lines[1].marked = true
	lines[2].marked = true
	doc = buildDocxQuestions(lines)
	q = doc.Questions[0]
	if q.Source != SourceAIGenerated || q.CorrectAnswerKey != "" {
		t.Errorf("multiple marks: source=%q key=%q, want AI_Generated/empty", q.Source, q.CorrectAnswerKey)
	}
}

func TestBuildDocxQuestionsLiteralCheckmark(t *testing.T) {
	// A literal '✓' in the choice text marks it even with no run formatting.
	lines := []docxLine{
		{text: "Câu 1: What is the capital of Vietnam?"},
		{text: "A. Hanoi ✓"},
		{text: "B. Saigon"},
		{text: "C. Hue"},
		{text: "D. Danang"},
	}
	doc := buildDocxQuestions(lines)
	if len(doc.Questions) != 1 {
		t.Fatalf("len(doc.Questions) = %d, want 1", len(doc.Questions))
	}
	q := doc.Questions[0]
	if q.Source != SourceStyleDetected || q.CorrectAnswerKey != "A" {
		t.Errorf("checkmark: source=%q key=%q, want StyleDetected/A", q.Source, q.CorrectAnswerKey)
	}
}

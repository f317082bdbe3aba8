package llm

import (
	"fmt"
	"regexp"
	"strings"
)

const defaultPromptMaxChars = 50000

// systemInstruction is the shared system-level instruction prepended to
// every batch prompt (SPEC_FULL §4.4).
const systemInstruction = `You are answering multiple-choice questions. For each numbered question, ` +
	`reply with a single JSON object mapping the question number (as a string) to the letter key ` +
	`of the correct choice, e.g. {"1":"A","2":"C"}. Return ONLY the JSON object, no commentary.`

var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore (all )?(previous|above|prior)`),
	regexp.MustCompile(`(?i)forget (everything|all|instructions)`),
	regexp.MustCompile(`(?i)disregard (all|previous)`),
	regexp.MustCompile(`(?i)new instructions:`),
	regexp.MustCompile(`(?i)system:`),
}

// sanitizePrompt caps total length and redacts prompt-injection patterns
// before any stem is sent to a provider (SPEC_FULL §4.4.1).
func sanitizePrompt(s string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = defaultPromptMaxChars
	}
	for _, pat := range injectionPatterns {
		s = pat.ReplaceAllString(s, "[FILTERED]")
	}
	if len(s) > maxChars {
		s = s[:maxChars]
	}
	return s
}

// buildPrompt renders the numbered question blocks shared by every
// adapter: "[<index>] <stem>\n  A. ...\n  B. ...\n", optionally prefixed
// with "(<section>)".
func buildPrompt(questions []QuestionInput, maxChars int) string {
	var b strings.Builder
	b.WriteString(systemInstruction)
	b.WriteString("\n\n")

	for _, q := range questions {
		stem := sanitizePrompt(q.Stem, maxChars)
		if q.Section != "" {
			fmt.Fprintf(&b, "(%s) ", sanitizePrompt(q.Section, maxChars))
		}
		fmt.Fprintf(&b, "[%d] %s\n", q.Index, stem)
		for _, c := range q.Choices {
			fmt.Fprintf(&b, "  %s. %s\n", c.Key, sanitizePrompt(c.Text, maxChars))
		}
	}
	return b.String()
}

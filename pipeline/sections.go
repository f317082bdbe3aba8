package pipeline

import (
	"encoding/json"

	"github.com/brunobiangulo/quizforge/parser"
)

// SectionCount is the per-section question tally stored on the quiz
// record (SPEC_FULL §3).
type SectionCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// computeSectionCounts tallies questions per section, preserving first-
// seen order so the counts read in document order rather than
// alphabetically.
func computeSectionCounts(questions []parser.ParsedQuestion) (string, error) {
	var order []string
	counts := make(map[string]int)
	for _, q := range questions {
		if _, ok := counts[q.Section]; !ok {
			order = append(order, q.Section)
		}
		counts[q.Section]++
	}

	out := make([]SectionCount, len(order))
	for i, name := range order {
		out[i] = SectionCount{Name: name, Count: counts[name]}
	}

	data, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

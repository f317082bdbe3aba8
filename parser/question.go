package parser

import (
	"regexp"
	"strings"
)

// blockBoundary marks the start of a new question block: a CLO-tagged
// marker, a "Câu N" marker, or a leading numbered item (SPEC_FULL §4.2).
var blockBoundary = regexp.MustCompile(`(?im)^\s*(\(CLO\s*\d+(?:\.\d+)*\)|C\s?[aâ]u\s*\d+\s*[:.]|\d+[.)])`)

var (
	choiceKey      = regexp.MustCompile(`(?m)^\s*([A-Z])\s*[.)]\s*`)
	headingPrefix  = regexp.MustCompile(`(?i)^\s*(Chương|Bài|Phần|Mục|CLO)\s*[\d.]+\s*[:.\-]?\s*`)
	stemNumPrefix  = regexp.MustCompile(`(?i)^\s*(C\s?[aâ]u\s*\d+\s*[:.]|\d+[.)])\s*`)
	parenTag       = regexp.MustCompile(`\(\s*(CLO|Chương|Bài)\s*[\d.]+\s*\)\s*`)
)

// block is one raw chunk of text thought to contain a single question,
// with its byte offsets in the source so visual-mark detection (docx)
// can cross-reference choice positions back to run formatting.
type block struct {
	text  string
	start int
	end   int
}

// splitBlocks breaks a page/paragraph's worth of text into question-sized
// chunks using blockBoundary as the delimiter. Leading material before the
// first boundary (e.g. a section heading standing alone) is kept as its
// own block so the section tracker can see it.
func splitBlocks(text string) []block {
	locs := blockBoundary.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []block{{text: text, start: 0, end: len(text)}}
	}

	var blocks []block
	if locs[0][0] > 0 {
		lead := text[:locs[0][0]]
		if strings.TrimSpace(lead) != "" {
			blocks = append(blocks, block{text: lead, start: 0, end: locs[0][0]})
		}
	}
	for i, loc := range locs {
		start := loc[0]
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		blocks = append(blocks, block{text: text[start:end], start: start, end: end})
	}
	return blocks
}

// extractQuestion parses one block into a stem and its choices. It
// returns ok=false when fewer than two choices are found or the stem is
// empty after cleaning, per SPEC_FULL §4.2's discard rule.
func extractQuestion(b block) (stem string, choices []ParsedChoice, ok bool) {
	keyLocs := choiceKey.FindAllStringSubmatchIndex(b.text, -1)
	if len(keyLocs) < 2 {
		return "", nil, false
	}

	stemRaw := b.text[:keyLocs[0][0]]
	stem = cleanStem(stemRaw)
	if stem == "" {
		return "", nil, false
	}

	for i, loc := range keyLocs {
		key := b.text[loc[2]:loc[3]]
		textStart := loc[1]
		textEnd := len(b.text)
		if i+1 < len(keyLocs) {
			textEnd = keyLocs[i+1][0]
		}
		choiceText := strings.TrimSpace(b.text[textStart:textEnd])
		if choiceText == "" {
			continue
		}
		choices = append(choices, ParsedChoice{Key: key, Text: choiceText})
	}

	if len(choices) < 2 {
		return "", nil, false
	}
	return stem, choices, true
}

// cleanStem strips section/heading prefixes and question-number markers
// so the stem reads as pure prose (SPEC_FULL §4.2).
func cleanStem(s string) string {
	s = strings.TrimSpace(s)
	s = parenTag.ReplaceAllString(s, "")
	s = headingPrefix.ReplaceAllString(s, "")
	s = stemNumPrefix.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

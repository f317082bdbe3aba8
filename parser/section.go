package parser

import (
	"regexp"
	"strconv"
	"strings"
)

// defaultSection is the section label questions carry until the first
// heading is discovered (SPEC_FULL §4.2).
const defaultSection = "Nội dung chung"

var (
	headingAtHead = regexp.MustCompile(`(?i)^\s*(Chương|Bài|Phần|Mục|CLO|Chapter|Section|Part)\s*[\d.]+`)
	romanAtHead   = regexp.MustCompile(`^\s*[IVXLCDM]{1,5}(?:[.):]|\s|$)`)
	parenMarker   = regexp.MustCompile(`(?i)\(\s*(CLO|Chương|Bài)\s*[\d.]+\s*\)`)
	majorPortion  = regexp.MustCompile(`(?i)([A-Za-zÀ-ỹ]+)\s*(\d+)`)
)

// sectionTracker carries the sticky currentSection across blocks.
type sectionTracker struct {
	current string
}

func newSectionTracker() *sectionTracker {
	return &sectionTracker{current: defaultSection}
}

// update inspects a block's leading text and, if it introduces a new
// section heading, updates and returns the new sticky section; otherwise
// it returns the still-current one (SPEC_FULL §4.2 "Sticky-section rule").
func (t *sectionTracker) update(block string) string {
	head := firstLine(block)

	if headingAtHead.MatchString(head) || romanAtHead.MatchString(head) {
		if major, ok := extractMajor(head); ok {
			t.current = major
			return t.current
		}
	}

	if m := parenMarker.FindString(block); m != "" {
		if major, ok := extractMajor(m); ok {
			t.current = major
			return t.current
		}
	}

	return t.current
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx != -1 {
		return s[:idx]
	}
	return s
}

// extractMajor reduces a heading to its major portion: letters plus the
// first decimal number ("CLO 1.2.3" -> "CLO 1"; "Chương2.1" -> "CHƯƠNG 2").
func extractMajor(s string) (string, bool) {
	m := majorPortion.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return strings.ToUpper(m[1]) + " " + m[2], true
}

var (
	dupPrefix   = regexp.MustCompile(`(?i)^(CL)+CLO\b|^(CLO\s*){2,}`)
	letterDigit = regexp.MustCompile(`^([A-ZÀ-Ỹ]+)\s*(\d+)`)
)

// sanitizeSection normalizes a discovered section name post-parse
// (SPEC_FULL §4.2, §8 "Section sanitization laws").
func sanitizeSection(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return defaultSection
	}

	s = dupPrefix.ReplaceAllString(s, "CLO")
	// Collapse any residual duplicated word run ("CLO CLO" -> "CLO").
	fields := strings.Fields(s)
	if len(fields) >= 2 && fields[0] == fields[1] {
		fields = append(fields[:1], fields[2:]...)
		s = strings.Join(fields, " ")
	}

	m := letterDigit.FindStringSubmatch(s)
	if m == nil {
		if s == "" {
			return defaultSection
		}
		return s
	}

	letters := m[1]
	numStr := m[2]
	if _, err := strconv.Atoi(numStr); err != nil {
		return s
	}
	return letters + " " + numStr
}

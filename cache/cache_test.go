package cache

import "testing"

func TestHashKeyIgnoresChoiceOrderAndCase(t *testing.T) {
	s1, c1 := hashKey("What is 2+2?", []Choice{{Key: "A", Text: "Four"}, {Key: "B", Text: "Three"}})
	s2, c2 := hashKey("  what IS 2+2?  ", []Choice{{Key: "B", Text: "three"}, {Key: "A", Text: "FOUR"}})

	if s1 != s2 {
		t.Errorf("stem hash differs under case/whitespace normalization: %q != %q", s1, s2)
	}
	if c1 != c2 {
		t.Errorf("choices hash differs under reordering/case normalization: %q != %q", c1, c2)
	}
}

func TestHashKeyDistinguishesDifferentStems(t *testing.T) {
	s1, _ := hashKey("What is 2+2?", []Choice{{Key: "A", Text: "3"}, {Key: "B", Text: "4"}})
	s2, _ := hashKey("What is 3+3?", []Choice{{Key: "A", Text: "3"}, {Key: "B", Text: "4"}})
	if s1 == s2 {
		t.Error("different stems produced the same hash")
	}
}

func TestHashKeyDistinguishesDifferentKeyAssignments(t *testing.T) {
	// Same choice texts, but assigned to different keys across two
	// "versions" of the same question set: must not collide, since a hit
	// would serve the wrong letter as the correct answer.
	_, c1 := hashKey("What is 2+2?", []Choice{{Key: "A", Text: "Three"}, {Key: "B", Text: "Four"}})
	_, c2 := hashKey("What is 2+2?", []Choice{{Key: "A", Text: "Four"}, {Key: "B", Text: "Three"}})
	if c1 == c2 {
		t.Error("choices hash collided despite different key assignments for the same texts")
	}
}

func TestNormalizeStripsPrefixAndPunctuation(t *testing.T) {
	s1, _ := hashKey("Câu 1. What IS X?", nil)
	s2, _ := hashKey("what\nis  x", nil)
	if s1 != s2 {
		t.Errorf("normalizeStem law failed: hash(%q) != hash(%q)", "Câu 1. What IS X?", "what\nis  x")
	}
}

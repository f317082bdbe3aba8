// Package cache implements the Semantic Cache: a normalized-content upsert
// store over a (stem, choices) pair so identical questions across quizzes
// are answered once (SPEC_FULL §4.3).
package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/brunobiangulo/quizforge/store"
)

// Cache wraps the store's cached_answers table with the normalization
// rules SPEC_FULL §4.3 requires before hashing.
type Cache struct {
	store *store.Store
}

func New(s *store.Store) *Cache {
	return &Cache{store: s}
}

// Answer is the result of a cache lookup or a freshly resolved answer
// ready for writeback.
type Answer struct {
	CorrectKey  string
	Explanation string
	Confidence  *float64
	Provider    string
}

// Choice is the (key, text) pair a cache key is computed over. Sorting
// and hashing by key rather than by text means two questions that
// happen to share the same set of choice texts but assign them to
// different keys do not collide (SPEC_FULL §4.3).
type Choice struct {
	Key  string
	Text string
}

// Lookup checks the cache for a normalized (stem, choices) pair. Errors
// are swallowed to a cache miss — the cache is an optimization, never a
// dependency the pipeline can fail on (SPEC_FULL §4.3 "best effort").
func (c *Cache) Lookup(ctx context.Context, stem string, choices []Choice) (*Answer, bool) {
	stemHash, choicesHash := hashKey(stem, choices)

	cached, err := c.store.LookupCachedAnswer(ctx, stemHash, choicesHash)
	if err != nil {
		slog.Warn("cache: lookup failed, treating as miss", "error", err)
		return nil, false
	}
	if cached == nil {
		return nil, false
	}
	return &Answer{
		CorrectKey:  cached.CorrectKey,
		Explanation: cached.Explanation,
		Confidence:  cached.Confidence,
		Provider:    cached.Provider,
	}, true
}

// Write upserts a freshly resolved answer. On an existing entry only the
// hit counter advances — the first authoritative answer is never
// overwritten (SPEC_FULL §3 invariant). Failures are logged, not
// propagated.
func (c *Cache) Write(ctx context.Context, stem string, choices []Choice, a Answer) {
	stemHash, choicesHash := hashKey(stem, choices)

	err := c.store.WriteCachedAnswer(ctx, store.CachedAnswer{
		StemHash:    stemHash,
		ChoicesHash: choicesHash,
		CorrectKey:  a.CorrectKey,
		Explanation: a.Explanation,
		Confidence:  a.Confidence,
		Provider:    a.Provider,
	})
	if err != nil {
		slog.Warn("cache: write failed", "error", err)
	}
}

// hashKey normalizes a stem and choice set, then hashes each
// independently: stemHash is MD5 of the normalized stem; choicesHash is
// MD5 of the choice texts sorted by key (not by text — two questions
// sharing the same choice texts under different key assignments must not
// collide), each lowercased with all whitespace removed, joined with "|",
// so option reordering does not create a spurious cache miss
// (SPEC_FULL §4.3).
func hashKey(stem string, choices []Choice) (stemHash, choicesHash string) {
	stemHash = hashString(normalize(stem))

	sorted := make([]Choice, len(choices))
	copy(sorted, choices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	parts := make([]string, len(sorted))
	for i, c := range sorted {
		parts[i] = strings.Join(strings.Fields(strings.ToLower(c.Text)), "")
	}
	choicesHash = hashString(strings.Join(parts, "|"))
	return stemHash, choicesHash
}

// prefixPattern strips a leading question/choice marker — "câu <n>.",
// "<n>.", or a single letter like "a)" — before the normalized text is
// compared, so "Câu 1. What IS X?" and "what\nis  x" normalize to the
// same key (SPEC_FULL §4.3).
var prefixPattern = regexp.MustCompile(`^(?:câu\s*\d+|\d+|[a-zđ])\s*[.:)]+\s*`)

// normalize lowercases, strips any leading question/choice marker, and
// keeps only Unicode letters and digits; whitespace and punctuation are
// removed entirely.
func normalize(s string) string {
	s = strings.ToLower(s)
	s = prefixPattern.ReplaceAllString(s, "")

	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// hashString mirrors the root package's content-hashing idiom
// (hash.go's hashString) with the same crypto/md5 one-shot approach.
func hashString(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

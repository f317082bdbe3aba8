// Package orchestrator resolves a quiz's unanswered questions: it
// consults the semantic cache, chunks cache misses into fixed-size
// batches, and walks the provider fallback cascade with linear backoff
// retry per chunk (SPEC_FULL §4.5). The round-trip shape (iterate a
// batch, inspect the result, decide whether to continue) is adapted from
// the teacher's multi-round reasoning engine; the chunking shape is
// adapted from its section chunker — both generalized from a
// self-refinement loop and token-count batching into a fixed-count
// provider-fallback cascade.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"github.com/brunobiangulo/quizforge/cache"
	"github.com/brunobiangulo/quizforge/llm"
)

// Config tunes chunk size and retry behavior (SPEC_FULL §4.5, §9).
type Config struct {
	ChunkSize          int
	MaxRetriesPerChunk int
	PromptMaxChars     int
}

func (c Config) withDefaults() Config {
	if c.ChunkSize == 0 {
		c.ChunkSize = 30
	}
	if c.MaxRetriesPerChunk == 0 {
		c.MaxRetriesPerChunk = 2
	}
	if c.PromptMaxChars == 0 {
		c.PromptMaxChars = 50000
	}
	return c
}

// Orchestrator resolves question batches against the cache and the
// provider cascade.
type Orchestrator struct {
	cache     *cache.Cache
	providers []llm.Provider
	cfg       Config
}

func New(c *cache.Cache, providers []llm.Provider, cfg Config) *Orchestrator {
	return &Orchestrator{cache: c, providers: providers, cfg: cfg.withDefaults()}
}

// Question is one question to resolve, already carrying any answer the
// parser found via visual marks (StyleDetected questions bypass both
// cache and providers entirely — the caller should not submit them).
type Question struct {
	Index   int
	Section string
	Stem    string
	Choices []Choice
}

type Choice struct {
	Key  string
	Text string
}

// Resolution is the orchestrator's answer for one question, or a record
// of terminal failure.
type Resolution struct {
	Index       int
	CorrectKey  string
	Explanation string
	Provider    string
	Failed      bool
}

// OrchestratorResult is the assembly step's output (SPEC_FULL §4.5): the
// per-question Resolutions plus the aggregate accounting §8's testable
// properties are stated over (providersUsed, totalTokens, cacheHits,
// cacheMisses, failedQuestions).
type OrchestratorResult struct {
	Resolutions     []Resolution
	ProvidersUsed   []string
	TotalTokens     int
	CacheHits       int
	CacheMisses     int
	FailedQuestions int
}

// Resolve answers every question in questions, first against the cache,
// then against the provider cascade for cache misses, chunked into
// batches of cfg.ChunkSize with per-provider retry. Resolutions are
// returned in the same order as the input.
func (o *Orchestrator) Resolve(ctx context.Context, questions []Question) OrchestratorResult {
	results := make([]Resolution, len(questions))
	var misses []Question

	providersUsed := newProviderSet()
	cacheHits, cacheMisses := 0, 0

	for i, q := range questions {
		choices := cacheChoicesOf(q.Choices)
		if ans, hit := o.cache.Lookup(ctx, q.Stem, choices); hit {
			results[i] = Resolution{Index: q.Index, CorrectKey: ans.CorrectKey, Explanation: ans.Explanation, Provider: ans.Provider}
			cacheHits++
			providersUsed.add("Cache")
			continue
		}
		cacheMisses++
		misses = append(misses, q)
	}

	totalTokens := 0
	if len(misses) > 0 {
		for _, chunk := range chunkQuestions(misses, o.cfg.ChunkSize) {
			resolved, chunkProviders, chunkTokens := o.resolveChunk(ctx, chunk)
			totalTokens += chunkTokens
			providersUsed.addAll(chunkProviders)
			for _, r := range resolved {
				for i, q := range questions {
					if q.Index == r.Index {
						results[i] = r
						if !r.Failed {
							o.cache.Write(ctx, q.Stem, cacheChoicesOf(q.Choices), cache.Answer{
								CorrectKey:  r.CorrectKey,
								Explanation: r.Explanation,
								Provider:    r.Provider,
							})
						}
						break
					}
				}
			}
		}
	}

	failed := 0
	for _, r := range results {
		if r.Failed {
			failed++
		}
	}

	return OrchestratorResult{
		Resolutions:     results,
		ProvidersUsed:   providersUsed.ordered,
		TotalTokens:     totalTokens,
		CacheHits:       cacheHits,
		CacheMisses:     cacheMisses,
		FailedQuestions: failed,
	}
}

// providerSet tracks distinct provider names in first-seen order.
type providerSet struct {
	ordered []string
	seen    map[string]bool
}

func newProviderSet() *providerSet {
	return &providerSet{seen: make(map[string]bool)}
}

func (s *providerSet) add(name string) {
	if name == "" || s.seen[name] {
		return
	}
	s.seen[name] = true
	s.ordered = append(s.ordered, name)
}

func (s *providerSet) addAll(names []string) {
	for _, n := range names {
		s.add(n)
	}
}

// resolveChunk walks the provider cascade for one chunk: each provider is
// tried in priority order. A call that answers at least one question ends
// that provider's turn; a call that answers none is retried up to
// MaxRetriesPerChunk times with linear backoff (1000ms * retryCount),
// unless the provider now reports Remaining == 0, in which case the
// cascade moves on at once. Still-missing questions go to the next
// provider (SPEC_FULL §4.5 "Retry/backoff").
func (o *Orchestrator) resolveChunk(ctx context.Context, chunk []Question) (results []Resolution, providersUsed []string, totalTokens int) {
	inputs := toProviderInputs(chunk)
	remaining := inputs

	byIndex := map[int]Resolution{}
	usedSet := newProviderSet()

	for _, p := range o.providers {
		if !p.IsAvailable() || len(remaining) == 0 {
			continue
		}
		if rl := p.RateLimitStatus(); rl.Remaining == 0 && time.Now().Before(rl.ResetAt) {
			slog.Warn("orchestrator: skipping rate-limited provider", "provider", p.Name(), "reset_at", rl.ResetAt)
			continue
		}

		for attempt := 0; attempt <= o.cfg.MaxRetriesPerChunk; attempt++ {
			if attempt > 0 {
				time.Sleep(time.Duration(attempt) * time.Second)
			}

			batch, err := p.SolveBatch(ctx, remaining)
			if err != nil {
				slog.Warn("orchestrator: provider batch failed", "provider", p.Name(), "attempt", attempt, "error", err)
				continue
			}
			totalTokens += batch.TokensUsed

			var stillMissing []llm.QuestionInput
			for _, q := range remaining {
				key, ok := batch.Responses[q.Index]
				if !ok || key == "" {
					stillMissing = append(stillMissing, q)
					continue
				}
				byIndex[q.Index] = Resolution{Index: q.Index, CorrectKey: key, Provider: p.Name()}
				usedSet.add(p.Name())
			}
			answered := len(remaining) - len(stillMissing)
			remaining = stillMissing

			if answered > 0 {
				break
			}
			if p.RateLimitStatus().Remaining == 0 {
				break
			}
		}
	}

	for _, q := range inputs {
		if r, ok := byIndex[q.Index]; ok {
			results = append(results, r)
		} else {
			results = append(results, Resolution{Index: q.Index, Failed: true})
		}
	}
	return results, usedSet.ordered, totalTokens
}

func chunkQuestions(questions []Question, size int) [][]Question {
	var chunks [][]Question
	for i := 0; i < len(questions); i += size {
		end := i + size
		if end > len(questions) {
			end = len(questions)
		}
		chunks = append(chunks, questions[i:end])
	}
	return chunks
}

func toProviderInputs(questions []Question) []llm.QuestionInput {
	out := make([]llm.QuestionInput, len(questions))
	for i, q := range questions {
		choices := make([]llm.ChoiceInput, len(q.Choices))
		for j, c := range q.Choices {
			choices[j] = llm.ChoiceInput{Key: c.Key, Text: c.Text}
		}
		out[i] = llm.QuestionInput{Index: q.Index, Section: q.Section, Stem: q.Stem, Choices: choices}
	}
	return out
}

func cacheChoicesOf(choices []Choice) []cache.Choice {
	out := make([]cache.Choice, len(choices))
	for i, c := range choices {
		out[i] = cache.Choice{Key: c.Key, Text: c.Text}
	}
	return out
}

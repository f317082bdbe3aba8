package orchestrator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/brunobiangulo/quizforge/cache"
	"github.com/brunobiangulo/quizforge/llm"
	"github.com/brunobiangulo/quizforge/store"
)

type fakeProvider struct {
	name       string
	priority   int
	available  bool
	answers    map[int]string // index -> key; missing index = no answer
	tokensUsed int
}

func (f *fakeProvider) Name() string      { return f.name }
func (f *fakeProvider) Priority() int     { return f.priority }
func (f *fakeProvider) IsAvailable() bool { return f.available }
func (f *fakeProvider) RateLimitStatus() llm.RateLimitStatus {
	return llm.RateLimitStatus{Remaining: 1, ResetAt: time.Now()}
}

func (f *fakeProvider) SolveBatch(ctx context.Context, questions []llm.QuestionInput) (llm.BatchResult, error) {
	resp := make(map[int]string)
	for _, q := range questions {
		if key, ok := f.answers[q.Index]; ok {
			resp[q.Index] = key
		}
	}
	return llm.BatchResult{Responses: resp, Provider: f.name, TokensUsed: f.tokensUsed}, nil
}

func newTestOrchestrator(t *testing.T, providers []llm.Provider) *Orchestrator {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(cache.New(s), providers, Config{ChunkSize: 2, MaxRetriesPerChunk: 0})
}

func TestResolveFallsThroughProviderCascade(t *testing.T) {
	primary := &fakeProvider{name: "Primary", priority: 1, available: true, answers: map[int]string{}}
	secondary := &fakeProvider{name: "Secondary", priority: 2, available: true, answers: map[int]string{1: "B"}, tokensUsed: 42}

	o := newTestOrchestrator(t, []llm.Provider{primary, secondary})

	questions := []Question{{Index: 1, Stem: "2+2?", Choices: []Choice{{Key: "A", Text: "3"}, {Key: "B", Text: "4"}}}}
	result := o.Resolve(context.Background(), questions)

	if len(result.Resolutions) != 1 {
		t.Fatalf("len(result.Resolutions) = %d, want 1", len(result.Resolutions))
	}
	r := result.Resolutions[0]
	if r.Failed || r.CorrectKey != "B" || r.Provider != "Secondary" {
		t.Errorf("resolutions[0] = %+v, want answered by Secondary with key B", r)
	}
	if len(result.ProvidersUsed) != 1 || result.ProvidersUsed[0] != "Secondary" {
		t.Errorf("ProvidersUsed = %v, want [Secondary]", result.ProvidersUsed)
	}
	if result.TotalTokens != 42 {
		t.Errorf("TotalTokens = %d, want 42", result.TotalTokens)
	}
	if result.CacheMisses != 1 || result.CacheHits != 0 {
		t.Errorf("CacheHits/Misses = %d/%d, want 0/1", result.CacheHits, result.CacheMisses)
	}
}

func TestResolveMarksUnresolvedAsFailed(t *testing.T) {
	primary := &fakeProvider{name: "Primary", priority: 1, available: true, answers: map[int]string{}}
	o := newTestOrchestrator(t, []llm.Provider{primary})

	questions := []Question{{Index: 1, Stem: "unanswerable", Choices: []Choice{{Key: "A", Text: "x"}, {Key: "B", Text: "y"}}}}
	result := o.Resolve(context.Background(), questions)

	if !result.Resolutions[0].Failed {
		t.Errorf("expected unresolved question to be marked Failed, got %+v", result.Resolutions[0])
	}
	if result.FailedQuestions != 1 {
		t.Errorf("FailedQuestions = %d, want 1", result.FailedQuestions)
	}
	if len(result.Resolutions)-result.FailedQuestions != 0 {
		t.Errorf("answered count = %d, want 0", len(result.Resolutions)-result.FailedQuestions)
	}
}

func TestResolveSkipsUnavailableProviders(t *testing.T) {
	unavailable := &fakeProvider{name: "Primary", priority: 1, available: false, answers: map[int]string{1: "A"}}
	available := &fakeProvider{name: "Secondary", priority: 2, available: true, answers: map[int]string{1: "A"}}

	o := newTestOrchestrator(t, []llm.Provider{unavailable, available})
	questions := []Question{{Index: 1, Stem: "q", Choices: []Choice{{Key: "A", Text: "x"}, {Key: "B", Text: "y"}}}}
	result := o.Resolve(context.Background(), questions)

	if result.Resolutions[0].Provider != "Secondary" {
		t.Errorf("provider = %q, want Secondary (unavailable Primary must be skipped)", result.Resolutions[0].Provider)
	}
}

func TestResolveAllCacheHitsReportsCacheOnly(t *testing.T) {
	provider := &fakeProvider{name: "Primary", priority: 1, available: true, answers: map[int]string{1: "A", 2: "B"}}
	o := newTestOrchestrator(t, []llm.Provider{provider})

	questions := []Question{
		{Index: 1, Stem: "first?", Choices: []Choice{{Key: "A", Text: "x"}, {Key: "B", Text: "y"}}},
		{Index: 2, Stem: "second?", Choices: []Choice{{Key: "A", Text: "p"}, {Key: "B", Text: "q"}}},
	}

	// First pass resolves via the provider and writes back to the cache.
	first := o.Resolve(context.Background(), questions)
	if first.CacheHits != 0 || first.CacheMisses != 2 {
		t.Fatalf("first pass CacheHits/Misses = %d/%d, want 0/2", first.CacheHits, first.CacheMisses)
	}

	// Second pass over the identical questions must hit the cache only.
	second := o.Resolve(context.Background(), questions)
	if second.CacheHits != 2 || second.CacheMisses != 0 {
		t.Errorf("second pass CacheHits/Misses = %d/%d, want 2/0", second.CacheHits, second.CacheMisses)
	}
	if len(second.ProvidersUsed) != 1 || second.ProvidersUsed[0] != "Cache" {
		t.Errorf("ProvidersUsed = %v, want [Cache]", second.ProvidersUsed)
	}
	if second.FailedQuestions != 0 {
		t.Errorf("FailedQuestions = %d, want 0", second.FailedQuestions)
	}
}

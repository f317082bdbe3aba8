package llm

import (
	"testing"
	"time"
)

func TestAdaptersBuildOrderAndPriority(t *testing.T) {
	providers := Adapters{
		Gemini: ProviderConfig{APIKeys: []string{"g1"}},
		GitHub: ProviderConfig{APIKeys: []string{"gh1"}},
		Groq:   ProviderConfig{APIKeys: []string{"q1"}},
		HF:     ProviderConfig{APIKeys: []string{"h1"}},
	}.Build()

	wantNames := []string{"Primary", "Secondary", "Tertiary", "Last-resort"}
	for i, p := range providers {
		if p.Name() != wantNames[i] {
			t.Errorf("providers[%d].Name() = %q, want %q", i, p.Name(), wantNames[i])
		}
		if p.Priority() != i+1 {
			t.Errorf("providers[%d].Priority() = %d, want %d", i, p.Priority(), i+1)
		}
	}
}

func TestIsAvailableRequiresAKey(t *testing.T) {
	p := NewGeminiAdapter(ProviderConfig{})
	if p.IsAvailable() {
		t.Fatal("adapter with no keys should be unavailable")
	}
	p = NewGeminiAdapter(ProviderConfig{APIKeys: []string{"k1"}})
	if !p.IsAvailable() {
		t.Fatal("adapter with a key should be available")
	}
}

func TestKeyRotatorRoundRobin(t *testing.T) {
	r := newKeyRotator([]string{"a", "b", "c"})
	got := []string{r.nextKey(), r.nextKey(), r.nextKey(), r.nextKey()}
	want := []string{"a", "b", "c", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("nextKey()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestKeyRotatorEmpty(t *testing.T) {
	r := newKeyRotator(nil)
	if r.nextKey() != "" {
		t.Fatal("empty rotator should return empty string")
	}
	if r.available() {
		t.Fatal("empty rotator should not be available")
	}
}

func TestRateLimitStateRecordAndClear(t *testing.T) {
	s := newRateLimitState()
	if status := s.status(); status.Remaining != 1 {
		t.Fatalf("initial remaining = %d, want 1", status.Remaining)
	}

	s.recordRateLimited(0)
	status := s.status()
	if status.Remaining != 0 {
		t.Fatalf("remaining after rate limit = %d, want 0", status.Remaining)
	}
	if !status.ResetAt.After(time.Now()) {
		t.Fatal("resetAt should be set")
	}

	s.recordSuccess()
	if s.status().Remaining != 1 {
		t.Fatal("remaining should be restored after recordSuccess")
	}
}

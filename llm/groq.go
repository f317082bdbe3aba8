package llm

import (
	"context"
	"time"
)

// groqAdapter is the Tertiary adapter: Groq's low-latency inference API
// for open-source models (Llama, Mixtral, Gemma), used as the fast
// fallback once Primary/Secondary are exhausted (SPEC_FULL §4.4.2.3).
//
// API key: GROQ_API_KEY.
type groqAdapter struct {
	*baseAdapter
}

// NewGroqAdapter creates the Tertiary provider adapter.
func NewGroqAdapter(cfg ProviderConfig) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.groq.com/openai/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "llama-3.1-8b-instant"
	}
	return &groqAdapter{baseAdapter: newBaseAdapter("Tertiary", 3, cfg, 30, 60*time.Second, false)}
}

func (p *groqAdapter) SolveBatch(ctx context.Context, questions []QuestionInput) (BatchResult, error) {
	return p.solveBatch(ctx, questions)
}

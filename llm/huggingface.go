package llm

import (
	"context"
	"time"
)

// hfAdapter is the Last-resort adapter: Hugging Face's generic inference
// API, run with smaller batches and a longer rate-limit window (120s
// rather than the default 60s) since it is the final fallback
// (SPEC_FULL §4.4.2.4).
//
// Token: HF_ACCESS_TOKEN.
type hfAdapter struct {
	*baseAdapter
}

// NewHFAdapter creates the Last-resort provider adapter.
func NewHFAdapter(cfg ProviderConfig) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api-inference.huggingface.co/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "meta-llama/Llama-3.1-8B-Instruct"
	}
	return &hfAdapter{baseAdapter: newBaseAdapter("Last-resort", 4, cfg, 15, 120*time.Second, false)}
}

func (p *hfAdapter) SolveBatch(ctx context.Context, questions []QuestionInput) (BatchResult, error) {
	return p.solveBatch(ctx, questions)
}

package llm

import (
	"context"
	"time"
)

// geminiAdapter is the Primary adapter: Google's Gemini API over its
// OpenAI-compatible endpoint. Gemini uses a different path prefix than
// standard OpenAI providers (no /v1) and supports explicit JSON output
// mode, so it runs batches up to ~40 questions (SPEC_FULL §4.4.2.1).
//
// Supported chat models:
//
//	gemini-2.5-flash       — fast, cost-effective
//	gemini-2.5-pro         — highest capability
//	gemini-2.0-flash       — previous gen fast
//
// API keys: GEMINI_API_KEYS (comma-separated) or GEMINI_API_KEY.
type geminiAdapter struct {
	*baseAdapter
}

// NewGeminiAdapter creates the Primary provider adapter.
func NewGeminiAdapter(cfg ProviderConfig) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	}
	base := newBaseAdapter("Primary", 1, cfg, 40, 60*time.Second, true)
	base.pathPrefix = ""
	return &geminiAdapter{baseAdapter: base}
}

func (p *geminiAdapter) SolveBatch(ctx context.Context, questions []QuestionInput) (BatchResult, error) {
	return p.solveBatch(ctx, questions)
}

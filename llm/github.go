package llm

import (
	"context"
	"time"
)

// githubAdapter is the Secondary adapter: GitHub Models' conversational
// OpenAI-compatible endpoint, used with a short system message to
// minimize input tokens rather than an explicit JSON response mode
// (SPEC_FULL §4.4.2.2).
//
// Token: GITHUB_TOKEN. Model: GITHUB_MODEL (default gpt-4o-mini).
type githubAdapter struct {
	*baseAdapter
}

// NewGitHubAdapter creates the Secondary provider adapter.
func NewGitHubAdapter(cfg ProviderConfig) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://models.inference.ai.azure.com"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	return &githubAdapter{baseAdapter: newBaseAdapter("Secondary", 2, cfg, 20, 60*time.Second, false)}
}

func (p *githubAdapter) SolveBatch(ctx context.Context, questions []QuestionInput) (BatchResult, error) {
	return p.solveBatch(ctx, questions)
}

package llm

// Adapters bundles the four required provider adapters in priority order
// (SPEC_FULL §4.4.2): Primary, Secondary, Tertiary, Last-resort.
type Adapters struct {
	Gemini ProviderConfig
	GitHub ProviderConfig
	Groq   ProviderConfig
	HF     ProviderConfig
}

// Build constructs the ordered adapter list the orchestrator iterates.
func (a Adapters) Build() []Provider {
	return []Provider{
		NewGeminiAdapter(a.Gemini),
		NewGitHubAdapter(a.GitHub),
		NewGroqAdapter(a.Groq),
		NewHFAdapter(a.HF),
	}
}

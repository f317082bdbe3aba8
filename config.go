package quizforge

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/brunobiangulo/quizforge/llm"
)

// Config holds all configuration for the quizforge engine.
type Config struct {
	// DBPath is the full path to the SQLite database file.
	// If empty, defaults to ~/.quizforge/<DBName>.db
	DBPath string `json:"db_path" yaml:"db_path"`

	// DBName is the name for the database (used when DBPath is empty).
	DBName string `json:"db_name" yaml:"db_name"`

	// StorageDir controls where the database is created when DBPath
	// is not explicitly set. Options: "home" (default) or "local".
	StorageDir string `json:"storage_dir" yaml:"storage_dir"`

	// LocalBlobDir is where uploaded documents are kept pending
	// long-term storage (SPEC_FULL §6 BlobStore, local-only).
	LocalBlobDir string `json:"local_blob_dir" yaml:"local_blob_dir"`

	// Providers, in priority order: Primary, Secondary, Tertiary, Last-resort.
	Gemini ProviderConfig `json:"gemini" yaml:"gemini"`
	GitHub ProviderConfig `json:"github" yaml:"github"`
	Groq   ProviderConfig `json:"groq" yaml:"groq"`
	HF     ProviderConfig `json:"huggingface" yaml:"huggingface"`

	// Orchestrator
	ChunkSize           int `json:"chunk_size" yaml:"chunk_size"`
	MaxRetriesPerChunk  int `json:"max_retries_per_chunk" yaml:"max_retries_per_chunk"`
	PromptMaxChars      int `json:"prompt_max_chars" yaml:"prompt_max_chars"`

	// Queue / worker (SPEC_FULL §6)
	RedisHost            string `json:"redis_host" yaml:"redis_host"`
	RedisPort            string `json:"redis_port" yaml:"redis_port"`
	QuizWorkerConcurrency int   `json:"quiz_worker_concurrency" yaml:"quiz_worker_concurrency"`
	JobMaxAttempts       int   `json:"job_max_attempts" yaml:"job_max_attempts"`
}

// ProviderConfig configures one LLM provider adapter.
type ProviderConfig struct {
	// APIKeys is the ordered list of rotating keys. For providers with a
	// single token env var (GitHub, HF) this holds exactly one entry.
	APIKeys []string `json:"api_keys" yaml:"api_keys"`
	Model   string   `json:"model" yaml:"model"`
	BaseURL string   `json:"base_url" yaml:"base_url"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DBName:                "quizforge",
		StorageDir:            "home",
		LocalBlobDir:          "uploads",
		Gemini: ProviderConfig{
			Model:   "gemini-1.5-flash",
			BaseURL: "https://generativelanguage.googleapis.com/v1beta/openai",
		},
		GitHub: ProviderConfig{
			Model:   "gpt-4o-mini",
			BaseURL: "https://models.inference.ai.azure.com",
		},
		Groq: ProviderConfig{
			Model:   "llama-3.1-8b-instant",
			BaseURL: "https://api.groq.com/openai/v1",
		},
		HF: ProviderConfig{
			Model:   "meta-llama/Llama-3.1-8B-Instruct",
			BaseURL: "https://api-inference.huggingface.co/v1",
		},
		ChunkSize:             30,
		MaxRetriesPerChunk:    2,
		PromptMaxChars:        50000,
		RedisHost:             "localhost",
		RedisPort:             "6379",
		QuizWorkerConcurrency: 1,
		JobMaxAttempts:        3,
	}
}

// Adapters converts the four provider sub-configs into the shape the
// llm package's adapter constructors expect.
func (c *Config) Adapters() llm.Adapters {
	toLLM := func(p ProviderConfig) llm.ProviderConfig {
		return llm.ProviderConfig{APIKeys: p.APIKeys, Model: p.Model, BaseURL: p.BaseURL}
	}
	return llm.Adapters{
		Gemini: toLLM(c.Gemini),
		GitHub: toLLM(c.GitHub),
		Groq:   toLLM(c.Groq),
		HF:     toLLM(c.HF),
	}
}

// ResolveDBPath computes the final database path from config fields.
func (c *Config) ResolveDBPath() string {
	if c.DBPath != "" {
		return c.DBPath
	}

	name := c.DBName
	if name == "" {
		name = "quizforge"
	}

	switch c.StorageDir {
	case "local", "cwd":
		return name + ".db"
	default: // "home" or empty
		home, err := os.UserHomeDir()
		if err != nil {
			return name + ".db"
		}
		dir := filepath.Join(home, ".quizforge")
		return filepath.Join(dir, name+".db")
	}
}

// splitKeys parses a comma-separated key list, trimming whitespace and
// dropping empty entries.
func splitKeys(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LoadProvidersFromEnv fills provider API keys/models from the
// environment variables named in SPEC_FULL §6.
func (c *Config) LoadProvidersFromEnv(getenv func(string) string) {
	if v := getenv("GEMINI_API_KEYS"); v != "" {
		c.Gemini.APIKeys = splitKeys(v)
	} else if v := getenv("GEMINI_API_KEY"); v != "" {
		c.Gemini.APIKeys = []string{v}
	}
	if v := getenv("GITHUB_TOKEN"); v != "" {
		c.GitHub.APIKeys = []string{v}
	}
	if v := getenv("GITHUB_MODEL"); v != "" {
		c.GitHub.Model = v
	}
	if v := getenv("GROQ_API_KEY"); v != "" {
		c.Groq.APIKeys = []string{v}
	}
	if v := getenv("HF_ACCESS_TOKEN"); v != "" {
		c.HF.APIKeys = []string{v}
	}
	if v := getenv("REDIS_HOST"); v != "" {
		c.RedisHost = v
	}
	if v := getenv("REDIS_PORT"); v != "" {
		c.RedisPort = v
	}
}

package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// baseAdapter is the shared base every OpenAI-compatible provider adapter
// embeds: key rotation, rate-limit bookkeeping, prompt building and
// response parsing, and the HTTP retry/backoff loop. Grounded on the
// teacher's openAICompatClient; generalized from a single provider shape
// to the four variants in SPEC_FULL §4.4.2.
type baseAdapter struct {
	name             string
	priority         int
	baseURL          string
	pathPrefix       string
	model            string
	batchSize        int
	promptMaxChars   int
	defaultRetryAfter time.Duration
	jsonMode         bool

	keys     *keyRotator
	rateLimit *rateLimitState
	client   *http.Client
}

func newBaseAdapter(name string, priority int, cfg ProviderConfig, batchSize int, defaultRetryAfter time.Duration, jsonMode bool) *baseAdapter {
	return &baseAdapter{
		name:              name,
		priority:          priority,
		baseURL:           cfg.BaseURL,
		pathPrefix:        "/v1",
		model:             cfg.Model,
		batchSize:         batchSize,
		promptMaxChars:    defaultPromptMaxChars,
		defaultRetryAfter: defaultRetryAfter,
		jsonMode:          jsonMode,
		keys:              newKeyRotator(cfg.APIKeys),
		rateLimit:         newRateLimitState(),
		client:            &http.Client{Timeout: 60 * time.Second},
	}
}

// ProviderConfig mirrors quizforge.ProviderConfig without importing the
// root package (avoids an import cycle); the root facade translates.
type ProviderConfig struct {
	APIKeys []string
	Model   string
	BaseURL string
}

func (a *baseAdapter) Name() string   { return a.name }
func (a *baseAdapter) Priority() int  { return a.priority }
func (a *baseAdapter) IsAvailable() bool { return a.keys.available() }
func (a *baseAdapter) RateLimitStatus() RateLimitStatus { return a.rateLimit.status() }

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       json.RawMessage `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// solveBatch issues one chat-completion request for as many questions as
// fit the adapter's batch size and parses the answer map out of the
// response, repairing truncated JSON if necessary (SPEC_FULL §4.4).
func (a *baseAdapter) solveBatch(ctx context.Context, questions []QuestionInput) (BatchResult, error) {
	start := time.Now()
	if len(questions) > a.batchSize && a.batchSize > 0 {
		questions = questions[:a.batchSize]
	}

	prompt := buildPrompt(questions, a.promptMaxChars)
	messages, _ := json.Marshal([]chatMessage{
		{Role: "system", Content: "Return ONLY JSON. No commentary, no markdown fences."},
		{Role: "user", Content: prompt},
	})

	body := chatCompletionRequest{
		Model:    a.model,
		Messages: messages,
	}
	if a.jsonMode {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	respBody, status, retryAfter, err := a.doPost(ctx, a.pathPrefix+"/chat/completions", body, a.keys.nextKey())
	duration := time.Since(start)

	if status == http.StatusTooManyRequests {
		if retryAfter <= 0 {
			retryAfter = a.defaultRetryAfter
		}
		a.rateLimit.recordRateLimited(retryAfter)
		return failedBatch(a.name, questions, duration), nil
	}
	if err != nil {
		return failedBatch(a.name, questions, duration), nil
	}
	a.rateLimit.recordSuccess()

	var resp chatCompletionResponse
	if jsonErr := json.Unmarshal(respBody, &resp); jsonErr != nil || len(resp.Choices) == 0 {
		return failedBatch(a.name, questions, duration), nil
	}

	answers := parseAnswerMap(resp.Choices[0].Message.Content)
	if len(answers) == 0 {
		return failedBatch(a.name, questions, duration), nil
	}

	return BatchResult{
		Responses:         answers,
		Provider:          a.name,
		TokensUsed:        resp.Usage.TotalTokens,
		Duration:          duration,
		QuestionsAnswered: len(answers),
		QuestionsFailed:   len(questions) - len(answers),
	}, nil
}

func failedBatch(name string, questions []QuestionInput, d time.Duration) BatchResult {
	return BatchResult{
		Responses:         map[int]string{},
		Provider:          name,
		Duration:          d,
		QuestionsAnswered: 0,
		QuestionsFailed:   len(questions),
	}
}

const (
	transientMaxRetries = 2
	transientBaseDelay  = 500 * time.Millisecond
)

// retryableStatusCode returns true for HTTP status codes that warrant an
// internal transient retry: any 5xx server error. 429 is never retried
// here; the orchestrator owns it per SPEC_FULL §4.4/§4.5.
func retryableStatusCode(code int) bool {
	return code >= http.StatusInternalServerError && code <= 599
}

// doPost performs the HTTP call, retrying a bounded number of times on
// transient network/5xx errors (ProviderTransient), but returning
// immediately on 429 (ProviderRateLimit) so the caller can record
// rate-limit state without an internal sleep.
func (a *baseAdapter) doPost(ctx context.Context, path string, body interface{}, apiKey string) ([]byte, int, time.Duration, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, 0, 0, err
	}
	url := a.baseURL + path

	var lastErr error
	for attempt := 0; attempt <= transientMaxRetries; attempt++ {
		if attempt > 0 {
			delay := transientBaseDelay * time.Duration(1<<(attempt-1))
			slog.Warn("llm: retrying transient failure", "provider", a.name, "attempt", attempt, "delay", delay, "error", lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, 0, 0, ctx.Err()
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return nil, 0, 0, err
		}
		req.Header.Set("Content-Type", "application/json")
		if apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+apiKey)
		}

		resp, err := a.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, 0, 0, ctx.Err()
			}
			lastErr = fmt.Errorf("request to %s failed: %w", url, err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("reading response body: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return respBody, resp.StatusCode, 0, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			return respBody, resp.StatusCode, parseRetryAfter(resp.Header.Get("Retry-After")), fmt.Errorf("rate limited")
		}

		lastErr = fmt.Errorf("provider %s HTTP %d: %s", a.name, resp.StatusCode, string(respBody))
		if !retryableStatusCode(resp.StatusCode) {
			return nil, resp.StatusCode, 0, lastErr
		}
	}

	return nil, 0, 0, fmt.Errorf("max transient retries exceeded: %w", lastErr)
}

func parseRetryAfter(h string) time.Duration {
	if h == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(h); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return 0
}

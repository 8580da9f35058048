// Package openrouter talks to OpenRouter's OpenAI-compatible chat API to
// turn free text into ranking hints and to write short travel blurbs.
package openrouter

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"stayfinder/internal/adapters/observability"
	"stayfinder/internal/domain"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultModel   = "deepseek/deepseek-chat-v3-0324:free"
)

const (
	systemPromptHints = "You are an assistant for an Airbnb-like vacation property search. " +
		"Given a list of properties (JSON) and a user request, return a JSON object with " +
		"`tags`, `features`, `locations` and `environments` (lists of strings) inferred from the request, " +
		"and optionally `property_ids` (list of ids) that might match. " +
		"Only return valid JSON. Do not include commentary."
	systemPromptBlurb = "You write short, lively travel blurbs for vacation rentals. " +
		"Keep it under 80 words. No emojis, no markdown."
)

// CatalogFunc returns the properties shown to the model as context.
type CatalogFunc func() []domain.Property

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	RPS     int
	Timeout time.Duration
	// Catalog is optional; without it the model sees only the request.
	Catalog CatalogFunc
	// MaxCatalog caps how many properties are embedded in the prompt.
	MaxCatalog int
}

type Client struct {
	api        *openai.Client
	model      string
	rl         *rate.Limiter
	catalog    CatalogFunc
	maxCatalog int
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openrouter API key is required: %w", domain.ErrLLMUnavailable)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 2
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxCatalog <= 0 {
		cfg.MaxCatalog = 200
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		api:        openai.NewClientWithConfig(oc),
		model:      cfg.Model,
		rl:         rate.NewLimiter(rate.Limit(cfg.RPS), cfg.RPS),
		catalog:    cfg.Catalog,
		maxCatalog: cfg.MaxCatalog,
	}, nil
}

// ExtractHints implements domain.HintProvider.
func (c *Client) ExtractHints(ctx context.Context, text string) (domain.Hints, error) {
	user, err := c.hintsPrompt(text)
	if err != nil {
		return domain.Hints{}, err
	}
	msg, err := c.complete(ctx, "hints", openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPromptHints},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.2,
	})
	if err != nil {
		return domain.Hints{}, err
	}
	return ParseHints(msg)
}

// Blurb implements domain.BlurbWriter.
func (c *Client) Blurb(ctx context.Context, prompt string) (string, error) {
	msg, err := c.complete(ctx, "blurb", openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPromptBlurb},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.6,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(msg), nil
}

// ---- Internals ----

// complete runs one chat completion with client-side rate limiting and
// retries on 429, 5xx and network errors. Other 4xx fail fast.
func (c *Client) complete(ctx context.Context, endpoint string, req openai.ChatCompletionRequest) (string, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return "", err
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		start := time.Now()
		resp, err := c.api.CreateChatCompletion(ctx, req)
		status := statusOf(err)
		observability.ObserveExternal("openrouter", endpoint, status, time.Since(start))

		if err == nil {
			if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
				return "", fmt.Errorf("empty completion: %w", domain.ErrLLMUnavailable)
			}
			return resp.Choices[0].Message.Content, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		lastErr = err
		if !retryable(status) {
			return "", wrap(err)
		}
		if i < 3 && sleepCtx(ctx, backoff(i)) {
			continue
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", wrap(lastErr)
}

// statusOf extracts the HTTP status from a go-openai error; 0 means the
// request never got a response.
func statusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

func retryable(status int) bool {
	return status == 0 || status == http.StatusTooManyRequests || status >= 500
}

func wrap(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("openrouter %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, domain.ErrLLMUnavailable)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		body := strings.TrimSpace(string(reqErr.Body))
		if len(body) > 240 {
			body = body[:240]
		}
		return fmt.Errorf("openrouter %d: %s: %w", reqErr.HTTPStatusCode, body, domain.ErrLLMUnavailable)
	}
	return fmt.Errorf("openrouter request failed: %v: %w", err, domain.ErrLLMUnavailable)
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// backoff returns 200ms, 400ms, 800ms... plus up to 50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}

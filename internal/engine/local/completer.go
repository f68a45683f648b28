package local

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
	ooption "github.com/openai/openai-go/option"
)

// Completer is the part of the chat-completions API a session needs.
type Completer interface {
	Complete(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

type openAICompleter struct {
	client openai.Client
}

// NewOpenAICompleter talks to any OpenAI-compatible endpoint. An empty
// baseURL means api.openai.com. The client's own retries are disabled;
// wrap the result with WithRetry instead.
func NewOpenAICompleter(baseURL, apiKey string) Completer {
	opts := []ooption.RequestOption{ooption.WithMaxRetries(0)}
	if apiKey != "" {
		opts = append(opts, ooption.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, ooption.WithBaseURL(baseURL))
	}
	return openAICompleter{client: openai.NewClient(opts...)}
}

func (c openAICompleter) Complete(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}

// retryCompleter wraps a Completer with exponential backoff.
type retryCompleter struct {
	inner      Completer
	maxRetries int
	baseDelay  time.Duration
}

func WithRetry(c Completer, maxRetries int) Completer {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &retryCompleter{inner: c, maxRetries: maxRetries, baseDelay: 500 * time.Millisecond}
}

func (r *retryCompleter) Complete(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		resp, err := r.inner.Complete(ctx, params)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryable(err) || attempt == r.maxRetries {
			break
		}
		if err := r.backoff(ctx, attempt); err != nil {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	msg := err.Error()
	// Connection-level failures carry no status code.
	for _, s := range []string{"connection refused", "timeout", "deadline exceeded", "EOF", "reset by peer"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (r *retryCompleter) backoff(ctx context.Context, attempt int) error {
	delay := time.Duration(float64(r.baseDelay) * math.Pow(2, float64(attempt)))
	if delay > 30*time.Second {
		delay = 30 * time.Second
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// friendlyError turns provider and network failures into the message a
// sub-agent's warnings show.
func friendlyError(err error) string {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		switch apiErr.StatusCode {
		case 401:
			return "authentication failed, check the API key"
		case 403:
			return "access denied by the provider"
		case 404:
			return "model or endpoint not found"
		case 429:
			return "rate limited by the provider"
		case 500, 502, 503:
			return "provider service temporarily unavailable"
		}
		return fmt.Sprintf("provider returned HTTP %d", apiErr.StatusCode)
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return "connection refused (is the service running?)"
	case strings.Contains(msg, "no such host"):
		return "host not found (check the base URL)"
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return "connection timed out"
	case strings.Contains(msg, "reset by peer"):
		return "connection reset by server"
	}
	return msg
}

// Package health probes model providers.
package health

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
	ooption "github.com/openai/openai-go/option"
)

type Status struct {
	Provider  string
	BaseURL   string
	Reachable bool
	Models    []string
	Error     string
	Latency   time.Duration
}

// Check lists the models of an OpenAI-compatible endpoint.
func Check(ctx context.Context, name, baseURL, apiKey string) Status {
	s := Status{Provider: name, BaseURL: baseURL}
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := []ooption.RequestOption{ooption.WithMaxRetries(0)}
	if apiKey != "" {
		opts = append(opts, ooption.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, ooption.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)

	page, err := client.Models.List(ctx)
	if err != nil {
		s.Error = friendlyError(err)
		s.Latency = time.Since(start)
		return s
	}
	s.Reachable = true
	for _, m := range page.Data {
		s.Models = append(s.Models, m.ID)
	}
	s.Latency = time.Since(start)
	return s
}

// CheckModel verifies that a specific model is available on the provider.
// Endpoints that list no models are given the benefit of the doubt.
func CheckModel(s Status, modelName string) error {
	if !s.Reachable {
		return fmt.Errorf("provider not reachable: %s", s.Error)
	}
	if len(s.Models) == 0 {
		return nil
	}
	for _, m := range s.Models {
		if m == modelName {
			return nil
		}
	}
	return fmt.Errorf("model %q not found, available: %s", modelName, strings.Join(s.Models, ", "))
}

func friendlyError(err error) string {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 401 || apiErr.StatusCode == 403 {
			return "authentication failed, check the API key"
		}
		return fmt.Sprintf("endpoint returned HTTP %d", apiErr.StatusCode)
	}
	msg := err.Error()
	if strings.Contains(msg, "connection refused") {
		return "connection refused (is the service running?)"
	}
	if strings.Contains(msg, "no such host") {
		return "host not found (check the URL)"
	}
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded") {
		return "connection timed out (service may be starting up)"
	}
	return msg
}

// Package genaiclient constructs Gemini API clients and maps their errors
// onto the retry classification used by every provider adapter.
package genaiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"google.golang.org/genai"

	"contextiq/internal/domain"
	"contextiq/internal/retry"
)

// New builds a Gemini API client from the key stored in apiKeyEnv.
func New(ctx context.Context, apiKeyEnv string) (*genai.Client, error) {
	key := strings.TrimSpace(os.Getenv(apiKeyEnv))
	if key == "" {
		return nil, fmt.Errorf("%w: env %s is empty", domain.ErrMissingCredential, apiKeyEnv)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	return client, nil
}

// Classify converts a genai API error into a retry.StatusError so throttling
// and server faults are retried and other API errors are not.
func Classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &retry.StatusError{
			Code:   apiErr.Code,
			Status: fmt.Sprintf("%d %s", apiErr.Code, http.StatusText(apiErr.Code)),
			Body:   apiErr.Message,
		}
	}
	return err
}

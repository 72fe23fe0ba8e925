package gemini

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/genai"

	"contextiq/internal/domain"
	"contextiq/internal/genaiclient"
	"contextiq/internal/retry"
)

var _ domain.Generator = (*Generator)(nil)

type generateAPI interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Config struct {
	Name       string
	APIKeyEnv  string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// Generator answers prompts with a Gemini model at temperature 0.
type Generator struct {
	name    string
	api     generateAPI
	model   string
	timeout time.Duration
	policy  retry.Policy
}

func New(ctx context.Context, cfg Config) (*Generator, error) {
	client, err := genaiclient.New(ctx, cfg.APIKeyEnv)
	if err != nil {
		return nil, err
	}
	return newGenerator(client.Models, cfg), nil
}

func newGenerator(api generateAPI, cfg Config) *Generator {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.Name == "" {
		cfg.Name = "gemini"
	}
	return &Generator{
		name:    cfg.Name,
		api:     api,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		policy:  retry.DefaultPolicy(cfg.MaxRetries),
	}
}

func (g *Generator) Name() string { return g.name }

func (g *Generator) Generate(ctx context.Context, prompt, systemPrompt string) (string, error) {
	var temperature float32
	config := &genai.GenerateContentConfig{Temperature: &temperature}
	if systemPrompt != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}}
	}
	contents := []*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: prompt}}}}

	return retry.Do(ctx, g.policy, g.name, func(ctx context.Context) (string, error) {
		if g.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		resp, err := g.api.GenerateContent(ctx, g.model, contents, config)
		if err != nil {
			return "", genaiclient.Classify(err)
		}
		text := strings.TrimSpace(resp.Text())
		if text == "" {
			return "", errors.New("gemini returned no text")
		}
		return text, nil
	})
}

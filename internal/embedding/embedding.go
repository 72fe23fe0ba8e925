// Package embedding selects the text embedder from configuration.
package embedding

import (
	"context"
	"fmt"
	"time"

	"contextiq/internal/config"
	"contextiq/internal/domain"
	"contextiq/internal/embedding/gemini"
	"contextiq/internal/embedding/hashing"
	"contextiq/internal/embedding/openai"
)

// New constructs the configured embedder. Remote embedders fail here, before
// any request, when their credential is missing.
func New(ctx context.Context, cfg config.EmbedderConfig) (domain.Embedder, error) {
	var e domain.Embedder
	switch cfg.Type {
	case "", "hashing":
		dim := 0
		if cfg.Hashing != nil {
			dim = cfg.Hashing.Dimension
		}
		e = hashing.NewEmbedder(dim)
	case "openai":
		if cfg.OpenAI == nil {
			return nil, fmt.Errorf("embedder.openai config is required")
		}
		c, err := openai.NewClient(openai.Config{
			BaseURL:    cfg.OpenAI.BaseURL,
			APIKeyEnv:  cfg.OpenAI.APIKeyEnv,
			Model:      cfg.OpenAI.Model,
			Timeout:    time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
			MaxRetries: cfg.OpenAI.MaxRetries,
			BatchSize:  cfg.OpenAI.BatchSize,
		})
		if err != nil {
			return nil, err
		}
		e = c
	case "gemini":
		if cfg.Gemini == nil {
			return nil, fmt.Errorf("embedder.gemini config is required")
		}
		g, err := gemini.NewEmbedder(ctx, gemini.Config{
			APIKeyEnv:  cfg.Gemini.APIKeyEnv,
			Model:      cfg.Gemini.Model,
			BatchSize:  cfg.Gemini.BatchSize,
			Timeout:    time.Duration(cfg.Gemini.TimeoutSecs) * time.Second,
			MaxRetries: cfg.Gemini.MaxRetries,
		})
		if err != nil {
			return nil, err
		}
		e = g
	default:
		return nil, fmt.Errorf("unsupported embedder type: %s", cfg.Type)
	}
	return WrapLRU(e, cfg.Cache.Size, time.Duration(cfg.Cache.TTLSecs)*time.Second), nil
}

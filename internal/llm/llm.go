// Package llm builds the immutable registry of generation providers that
// requests select from by name.
package llm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"contextiq/internal/config"
	"contextiq/internal/domain"
	"contextiq/internal/llm/gemini"
	"contextiq/internal/llm/openai"
)

// Registry maps provider names to generators. It is never mutated after construction.
type Registry struct {
	generators map[string]domain.Generator
	def        string
}

// NewRegistry wraps prebuilt generators. def must name one of them.
func NewRegistry(def string, generators ...domain.Generator) (*Registry, error) {
	m := make(map[string]domain.Generator, len(generators))
	for _, g := range generators {
		m[g.Name()] = g
	}
	if _, ok := m[def]; !ok {
		return nil, fmt.Errorf("%w: default %q", domain.ErrUnknownModel, def)
	}
	return &Registry{generators: m, def: def}, nil
}

// FromConfig constructs every configured provider. The default provider must
// construct; other providers without credentials are skipped with a warning,
// so requests naming them fail with ErrUnknownModel rather than per call.
func FromConfig(ctx context.Context, cfg config.GeneratorsConfig, log *zap.Logger) (*Registry, error) {
	var gens []domain.Generator
	for _, p := range cfg.Providers {
		g, err := newGenerator(ctx, p)
		if err != nil {
			if p.Name != cfg.Default && errors.Is(err, domain.ErrMissingCredential) {
				log.Warn("generation provider disabled", zap.String("provider", p.Name), zap.Error(err))
				continue
			}
			return nil, fmt.Errorf("provider %s: %w", p.Name, err)
		}
		gens = append(gens, g)
	}
	return NewRegistry(cfg.Default, gens...)
}

func newGenerator(ctx context.Context, p config.ProviderConfig) (domain.Generator, error) {
	timeout := time.Duration(p.TimeoutSecs) * time.Second
	switch p.Type {
	case "openai", "groq":
		return openai.New(openai.Config{
			Name:       p.Name,
			BaseURL:    p.BaseURL,
			APIKeyEnv:  p.APIKeyEnv,
			Model:      p.Model,
			Timeout:    timeout,
			MaxRetries: p.MaxRetries,
		})
	case "gemini":
		return gemini.New(ctx, gemini.Config{
			Name:       p.Name,
			APIKeyEnv:  p.APIKeyEnv,
			Model:      p.Model,
			Timeout:    timeout,
			MaxRetries: p.MaxRetries,
		})
	default:
		return nil, fmt.Errorf("unsupported generation provider type: %s", p.Type)
	}
}

// Get resolves a provider by name. The empty name selects the default.
func (r *Registry) Get(name string) (domain.Generator, error) {
	if name == "" {
		name = r.def
	}
	g, ok := r.generators[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownModel, name)
	}
	return g, nil
}

// Default returns the name of the default provider.
func (r *Registry) Default() string { return r.def }

// Names lists the registered providers, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.generators))
	for n := range r.generators {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

package gemini

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"contextiq/internal/genaiclient"
	"contextiq/internal/retry"
)

// DefaultBatchSize is the batchEmbedContents request limit.
const DefaultBatchSize = 100

type embedAPI interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Embedder calls the Gemini embedContent API.
type Embedder struct {
	api       embedAPI
	model     string
	batchSize int
	timeout   time.Duration
	policy    retry.Policy
}

type Config struct {
	APIKeyEnv  string
	Model      string
	BatchSize  int
	Timeout    time.Duration
	MaxRetries int
}

func NewEmbedder(ctx context.Context, cfg Config) (*Embedder, error) {
	client, err := genaiclient.New(ctx, cfg.APIKeyEnv)
	if err != nil {
		return nil, err
	}
	return newEmbedder(client.Models, cfg), nil
}

func newEmbedder(api embedAPI, cfg Config) *Embedder {
	model := cfg.Model
	if model == "" {
		model = "text-embedding-004"
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 || batchSize > DefaultBatchSize {
		batchSize = DefaultBatchSize
	}
	return &Embedder{
		api:       api,
		model:     model,
		batchSize: batchSize,
		timeout:   cfg.Timeout,
		policy:    retry.DefaultPolicy(cfg.MaxRetries),
	}
}

func (e *Embedder) Name() string { return "gemini:" + e.model }

// Embed sends texts in batches of at most batchSize and returns vectors in input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		vecs, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *Embedder) embedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = &genai.Content{Parts: []*genai.Part{{Text: text}}}
	}
	return retry.Do(ctx, e.policy, e.Name(), func(ctx context.Context) ([][]float64, error) {
		if e.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, e.timeout)
			defer cancel()
		}
		resp, err := e.api.EmbedContent(ctx, e.model, contents, nil)
		if err != nil {
			return nil, genaiclient.Classify(err)
		}
		if len(resp.Embeddings) != len(texts) {
			return nil, fmt.Errorf("gemini returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
		}
		out := make([][]float64, len(resp.Embeddings))
		for i, emb := range resp.Embeddings {
			vec := make([]float64, len(emb.Values))
			for j, v := range emb.Values {
				vec[j] = float64(v)
			}
			out[i] = vec
		}
		return out, nil
	})
}

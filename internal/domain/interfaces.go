package domain

import "context"

// Extractor turns a file on disk into a normalised Document.
type Extractor interface {
	Extract(ctx context.Context, path string) (*Document, error)
}

// Chunker splits a document's full text into overlapping chunks.
type Chunker interface {
	Chunk(document *Document) ([]Chunk, error)
}

// Embedder converts texts into vectors of a fixed dimension.
// The returned slice is order-preserving: output[i] belongs to texts[i].
type Embedder interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Generator produces an answer for a prompt under a system prompt.
type Generator interface {
	Name() string
	Generate(ctx context.Context, prompt, systemPrompt string) (string, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

// RAGService defines the operations exposed by the application core.
type RAGService interface {
	IngestFiles(ctx context.Context, paths []string) (*IngestReport, error)
	Search(ctx context.Context, query string, topK int) ([]RetrievalResult, error)
	Answer(ctx context.Context, req AskRequest) (*Answer, error)
	Models() []string
}

package vectorstore

import (
	"context"

	"contextiq/internal/domain"
)

// Storage is an append-only vector index with cosine-similarity search.
type Storage interface {
	// Add normalises vector and stores it with chunk as payload. An empty id
	// is replaced by the index size at insertion time. It returns the id used.
	Add(ctx context.Context, vector []float64, chunk domain.Chunk, id string) (string, error)
	// Search returns up to topK entries in descending score order, ties in insertion order.
	Search(ctx context.Context, vector []float64, topK int) ([]domain.RetrievalResult, error)
	// Len reports the number of stored vectors.
	Len() int
}

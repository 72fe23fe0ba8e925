package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"contextiq/internal/domain"
	"contextiq/internal/vectorstore"
)

type record struct {
	id     string
	vector []float64
	chunk  domain.Chunk
}

// Storage is an in-memory vector index using brute-force cosine similarity.
// Writes take the exclusive lock; searches share the read lock.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	records   []record
}

func NewStorage() *Storage { return &Storage{} }

func (s *Storage) Add(_ context.Context, vector []float64, chunk domain.Chunk, id string) (string, error) {
	if len(vector) == 0 {
		return "", fmt.Errorf("%w: empty vector", domain.ErrInvalidInput)
	}
	normalized := vectorstore.Normalize(vector)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension == 0 {
		s.dimension = len(vector)
	} else if len(vector) != s.dimension {
		return "", fmt.Errorf("%w: got %d, index has %d", domain.ErrDimensionMismatch, len(vector), s.dimension)
	}
	if id == "" {
		id = strconv.Itoa(len(s.records))
	}
	s.records = append(s.records, record{id: id, vector: normalized, chunk: chunk})
	return id, nil
}

func (s *Storage) Search(_ context.Context, vector []float64, topK int) ([]domain.RetrievalResult, error) {
	if topK <= 0 {
		topK = vectorstore.DefaultTopK
	}
	query := vectorstore.Normalize(vector)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.records) == 0 {
		return []domain.RetrievalResult{}, nil
	}
	if len(query) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d, index has %d", domain.ErrDimensionMismatch, len(query), s.dimension)
	}

	scores := make([]float64, len(s.records))
	idxs := make([]int, len(s.records))
	for i := range s.records {
		scores[i] = vectorstore.Dot(s.records[i].vector, query)
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool { return scores[idxs[a]] > scores[idxs[b]] })

	topK = min(topK, len(idxs))
	results := make([]domain.RetrievalResult, 0, topK)
	for _, j := range idxs[:topK] {
		r := s.records[j]
		results = append(results, domain.RetrievalResult{ID: r.id, Score: scores[j], Chunk: r.chunk})
	}
	return results, nil
}

func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"contextiq/internal/domain"
	"contextiq/internal/vectorstore"
)

// Storage is a minimal REST client to Qdrant.
// The collection is recreated on the first Add so every process starts from an empty index.
type Storage struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client

	mu        sync.Mutex
	dimension int
	// ids holds every record id upserted so far; a repeated id overwrites its point.
	ids map[string]struct{}
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

type payload struct {
	RecordID string       `json:"record_id"`
	Chunk    domain.Chunk `json:"chunk"`
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "contextiq"
	}
	return &Storage{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: collection,
		client:     &http.Client{Timeout: timeout},
		ids:        make(map[string]struct{}),
	}
}

func (s *Storage) Add(ctx context.Context, vector []float64, chunk domain.Chunk, id string) (string, error) {
	if len(vector) == 0 {
		return "", fmt.Errorf("%w: empty vector", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimension == 0 {
		if err := s.createCollection(ctx, len(vector)); err != nil {
			return "", err
		}
		s.dimension = len(vector)
	} else if len(vector) != s.dimension {
		return "", fmt.Errorf("%w: got %d, index has %d", domain.ErrDimensionMismatch, len(vector), s.dimension)
	}
	if id == "" {
		id = strconv.Itoa(len(s.ids))
	}

	body := map[string]any{
		"points": []map[string]any{{
			"id":      pointID(id),
			"vector":  vectorstore.Normalize(vector),
			"payload": payload{RecordID: id, Chunk: chunk},
		}},
	}
	if err := s.do(ctx, http.MethodPut, s.collectionURL()+"/points?wait=true", body, nil); err != nil {
		return "", err
	}
	s.ids[id] = struct{}{}
	return id, nil
}

func (s *Storage) Search(ctx context.Context, vector []float64, topK int) ([]domain.RetrievalResult, error) {
	if topK <= 0 {
		topK = vectorstore.DefaultTopK
	}
	s.mu.Lock()
	empty := len(s.ids) == 0
	s.mu.Unlock()
	if empty {
		return []domain.RetrievalResult{}, nil
	}

	req := map[string]any{
		"vector":       vectorstore.Normalize(vector),
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64 `json:"score"`
			Payload payload `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/search", req, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.RetrievalResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, domain.RetrievalResult{
			ID:    r.Payload.RecordID,
			Score: r.Score,
			Chunk: r.Payload.Chunk,
		})
	}
	return results, nil
}

// Len reports the number of distinct points in the collection.
func (s *Storage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

func (s *Storage) createCollection(ctx context.Context, dimension int) error {
	// A missing collection answers 404 here, which is fine.
	_ = s.do(ctx, http.MethodDelete, s.collectionURL(), nil, nil)
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	return s.do(ctx, http.MethodPut, s.collectionURL(), body, nil)
}

func (s *Storage) collectionURL() string {
	return fmt.Sprintf("%s/collections/%s", s.url, s.collection)
}

// pointID maps an arbitrary record id onto the UUID space Qdrant accepts.
func pointID(id string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

func (s *Storage) do(ctx context.Context, method, url string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("qdrant %s %s failed: %s: %s", method, url, resp.Status, bytes.TrimSpace(msg))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

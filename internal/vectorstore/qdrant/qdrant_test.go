package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contextiq/internal/domain"
	"contextiq/internal/vectorstore"
)

var _ vectorstore.Storage = (*Storage)(nil)

type fakeQdrant struct {
	mu       sync.Mutex
	calls    []string
	points   []json.RawMessage
	pointIDs []string
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)

	switch {
	case r.Method == http.MethodDelete:
		w.WriteHeader(http.StatusNotFound)
	case r.Method == http.MethodPut && r.URL.Path == "/collections/test":
		_, _ = w.Write([]byte(`{"result":true}`))
	case r.Method == http.MethodPut && r.URL.Path == "/collections/test/points":
		var body struct {
			Points []struct {
				ID      string          `json:"id"`
				Payload json.RawMessage `json:"payload"`
			} `json:"points"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, p := range body.Points {
			f.pointIDs = append(f.pointIDs, p.ID)
			f.points = append(f.points, p.Payload)
		}
		_, _ = w.Write([]byte(`{"result":{"status":"completed"}}`))
	case r.Method == http.MethodPost && r.URL.Path == "/collections/test/points/search":
		type hit struct {
			Score   float64         `json:"score"`
			Payload json.RawMessage `json:"payload"`
		}
		var hits []hit
		for i := len(f.points) - 1; i >= 0; i-- {
			hits = append(hits, hit{Score: 0.5 + 0.1*float64(i), Payload: f.points[i]})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": hits})
	default:
		http.Error(w, "unexpected", http.StatusTeapot)
	}
}

func TestStorageAddAndSearch(t *testing.T) {
	fake := &fakeQdrant{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL, Collection: "test"})
	ctx := context.Background()

	results, err := s.Search(ctx, []float64{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, results)

	page := 3
	id, err := s.Add(ctx, []float64{1, 0}, domain.Chunk{ID: "doc:0", Text: "alpha", Meta: domain.ChunkMeta{Page: &page}}, "doc:0")
	require.NoError(t, err)
	assert.Equal(t, "doc:0", id)
	id, err = s.Add(ctx, []float64{0, 1}, domain.Chunk{ID: "x", Text: "beta"}, "")
	require.NoError(t, err)
	assert.Equal(t, "1", id)
	assert.Equal(t, 2, s.Len())

	_, err = s.Add(ctx, []float64{0, 1, 2}, domain.Chunk{}, "")
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	results, err = s.Search(ctx, []float64{1, 0}, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "1", results[0].ID)
	assert.Equal(t, "beta", results[0].Chunk.Text)
	assert.Equal(t, "doc:0", results[1].ID)
	require.NotNil(t, results[1].Chunk.Meta.Page)
	assert.Equal(t, 3, *results[1].Chunk.Meta.Page)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, []string{
		"DELETE /collections/test",
		"PUT /collections/test",
		"PUT /collections/test/points",
		"PUT /collections/test/points",
		"POST /collections/test/points/search",
	}, fake.calls)
	assert.Equal(t, pointID("doc:0"), fake.pointIDs[0])
	assert.NotEqual(t, fake.pointIDs[0], fake.pointIDs[1])
}

func TestStorageLenCountsDistinctPoints(t *testing.T) {
	fake := &fakeQdrant{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL, Collection: "test"})
	ctx := context.Background()
	for range 2 {
		_, err := s.Add(ctx, []float64{1, 0}, domain.Chunk{ID: "doc:0", Text: "alpha"}, "doc:0")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, s.Len())

	_, err := s.Add(ctx, []float64{0, 1}, domain.Chunk{ID: "doc:1", Text: "beta"}, "doc:1")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, fake.pointIDs[0], fake.pointIDs[1])
}

func TestStorageSurfacesServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL, Collection: "test"})
	_, err := s.Add(context.Background(), []float64{1}, domain.Chunk{}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, 0, s.Len())
}

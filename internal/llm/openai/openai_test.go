package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contextiq/internal/domain"
	"contextiq/internal/retry"
)

func newGenerator(t *testing.T, url string) *Generator {
	t.Helper()
	t.Setenv("TEST_GROQ_KEY", "gsk-test")
	g, err := New(Config{
		Name:      "groq",
		BaseURL:   url + "/",
		APIKeyEnv: "TEST_GROQ_KEY",
		Model:     "llama-test",
		Policy:    &retry.Policy{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond},
	})
	require.NoError(t, err)
	return g
}

func TestNewRequiresKey(t *testing.T) {
	t.Setenv("TEST_EMPTY", "  ")
	_, err := New(Config{APIKeyEnv: "TEST_EMPTY"})
	assert.ErrorIs(t, err, domain.ErrMissingCredential)
}

func TestGenerateSendsSystemPromptAndZeroTemperature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer gsk-test", r.Header.Get("Authorization"))

		var raw map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		assert.Equal(t, "llama-test", raw["model"])
		temp, ok := raw["temperature"]
		assert.True(t, ok, "temperature must be sent explicitly")
		assert.Equal(t, 0.0, temp)

		msgs := raw["messages"].([]any)
		require.Len(t, msgs, 2)
		assert.Equal(t, map[string]any{"role": "system", "content": "be brief"}, msgs[0])
		assert.Equal(t, map[string]any{"role": "user", "content": "what?"}, msgs[1])

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"  forty two \n"}}]}`))
	}))
	defer srv.Close()

	g := newGenerator(t, srv.URL)
	out, err := g.Generate(context.Background(), "what?", "be brief")
	require.NoError(t, err)
	assert.Equal(t, "forty two", out)
	assert.Equal(t, "groq", g.Name())
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	out, err := newGenerator(t, srv.URL).Generate(context.Background(), "q", "s")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGenerateFailsAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newGenerator(t, srv.URL).Generate(context.Background(), "q", "s")
	assert.ErrorIs(t, err, domain.ErrProviderCall)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGenerateEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := newGenerator(t, srv.URL).Generate(context.Background(), "q", "s")
	assert.ErrorIs(t, err, domain.ErrProviderCall)
}

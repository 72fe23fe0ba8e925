package hashing

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cosine(a, b []float64) float64 {
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot
}

func TestEmbedShapeAndNorm(t *testing.T) {
	e := NewEmbedder(64)
	vecs, err := e.Embed(context.Background(), []string{"Transformers use attention.", "", "the and of"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	for _, v := range vecs {
		assert.Len(t, v, 64)
	}

	var sum float64
	for _, x := range vecs[0] {
		sum += x * x
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-9)
	assert.Equal(t, make([]float64, 64), vecs[1])
	assert.Equal(t, make([]float64, 64), vecs[2])
}

func TestEmbedIsDeterministicAndOrderPreserving(t *testing.T) {
	e := NewEmbedder(0)
	assert.Equal(t, DefaultDimension, e.Dimension())

	ctx := context.Background()
	a, err := e.Embed(ctx, []string{"alpha beta", "gamma delta"})
	require.NoError(t, err)
	b, err := e.Embed(ctx, []string{"gamma delta", "alpha beta"})
	require.NoError(t, err)
	assert.Equal(t, a[0], b[1])
	assert.Equal(t, a[1], b[0])
}

func TestEmbedRanksOverlappingTextHigher(t *testing.T) {
	e := NewEmbedder(512)
	vecs, err := e.Embed(context.Background(), []string{
		"retrieval augmented generation grounds answers in documents",
		"how does retrieval augmented generation ground answers",
		"the recipe needs flour sugar and butter",
	})
	require.NoError(t, err)
	assert.Greater(t, cosine(vecs[0], vecs[1]), cosine(vecs[2], vecs[1]))
}

func TestEmbedHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEmbedder(8).Embed(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
}

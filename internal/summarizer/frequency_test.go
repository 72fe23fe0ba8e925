package summarizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeKeepsDocumentOrder(t *testing.T) {
	text := "Transformers use attention. The weather was mild. Attention layers let transformers scale. Lunch was late."
	got, err := New().Summarize(text, 2)
	require.NoError(t, err)
	assert.Equal(t, "Transformers use attention. Attention layers let transformers scale.", got)
}

func TestSummarizeStripsPageMarkers(t *testing.T) {
	got, err := New().Summarize("[PAGE 1]\nRetrieval grounds answers.\n\n[PAGE 2]\nRetrieval is cheap.", 5)
	require.NoError(t, err)
	assert.Equal(t, "Retrieval grounds answers. Retrieval is cheap.", got)
	assert.NotContains(t, got, "[PAGE")
}

func TestSummarizeWithoutSentenceBoundaries(t *testing.T) {
	got, err := New().Summarize("  a heading   with no\nterminal punctuation ", 3)
	require.NoError(t, err)
	assert.Equal(t, "a heading with no terminal punctuation", got)
}

func TestSummarizeDefaultLimit(t *testing.T) {
	got, err := New().Summarize("One fact. Two facts. Three facts. Four facts. Five facts.", 0)
	require.NoError(t, err)
	assert.Len(t, sentencePattern.FindAllString(got, -1), DefaultMaxSentences)
}

func TestSummarizeEmpty(t *testing.T) {
	got, err := New().Summarize("", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

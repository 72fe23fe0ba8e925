package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contextiq/internal/chunker"
	"contextiq/internal/domain"
	"contextiq/internal/extractor"
	"contextiq/internal/llm"
	"contextiq/internal/summarizer"
	"contextiq/internal/vectorstore/memory"
)

// fakeEmbedder maps known texts to fixed vectors and everything else to a fallback.
type fakeEmbedder struct {
	mu       sync.Mutex
	vectors  map[string][]float64
	fallback []float64
	err      error
	calls    int
}

func (f *fakeEmbedder) Name() string { return "fake-embedder" }

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		if v, ok := f.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = f.fallback
		}
	}
	return out, nil
}

type fakeGenerator struct {
	name    string
	err     error
	prompts []string
	systems []string
}

func (g *fakeGenerator) Name() string { return g.name }

func (g *fakeGenerator) Generate(_ context.Context, prompt, systemPrompt string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	g.prompts = append(g.prompts, prompt)
	g.systems = append(g.systems, systemPrompt)
	return "answer " + string(rune('A'+len(g.prompts)-1)), nil
}

func intPtr(n int) *int { return &n }

func chunkOf(id, doc, text string, page *int) domain.Chunk {
	return domain.Chunk{
		ID:   id,
		Text: text,
		Meta: domain.ChunkMeta{
			SourceDocument: doc,
			SourceFileName: doc + ".pdf",
			DocumentName:   doc,
			DocumentTitle:  doc,
			SourcePath:     "/docs/" + doc + ".pdf",
			Page:           page,
		},
	}
}

func newTestService(t *testing.T, emb *fakeEmbedder, gens ...domain.Generator) *Service {
	t.Helper()
	reg, err := llm.NewRegistry(gens[0].Name(), gens...)
	require.NoError(t, err)
	return New(nil, nil, emb, memory.NewStorage(), reg)
}

func seedTwoDocuments(t *testing.T, svc *Service) {
	t.Helper()
	n, err := svc.IngestChunks(context.Background(), []domain.Chunk{
		chunkOf("a:0", "Paper A", "alpha evidence", intPtr(1)),
		chunkOf("b:0", "Paper B", "beta evidence", intPtr(2)),
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func twoDocEmbedder() *fakeEmbedder {
	return &fakeEmbedder{
		vectors: map[string][]float64{
			"alpha evidence": {1, 0},
			"beta evidence":  {0.8, 0.6},
		},
		fallback: []float64{1, 0},
	}
}

func TestComputeConfidence(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		want   domain.ConfidenceLabel
	}{
		{"high", []float64{0.9, 0.9}, domain.ConfidenceHigh},
		{"medium", []float64{0.7, 0.5}, domain.ConfidenceMedium},
		{"low", []float64{0.2}, domain.ConfidenceLow},
		{"max at high boundary is medium", []float64{0.85, 0.85}, domain.ConfidenceMedium},
		{"avg at high boundary is medium", []float64{0.9, 0.4}, domain.ConfidenceMedium},
		{"medium boundary is low", []float64{0.6, 0.6}, domain.ConfidenceLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ComputeConfidence(tt.scores)
			assert.Equal(t, tt.want, c.Label)
			assert.Equal(t, scoreExplanation, c.Explanation)
		})
	}

	empty := ComputeConfidence(nil)
	assert.Equal(t, domain.ConfidenceLow, empty.Label)
	assert.Zero(t, empty.MaxScore)
	assert.Zero(t, empty.AvgScore)
	assert.Equal(t, noEvidenceExplanation, empty.Explanation)

	c := ComputeConfidence([]float64{0.7, 0.5})
	assert.InDelta(t, 0.7, c.MaxScore, 1e-12)
	assert.InDelta(t, 0.6, c.AvgScore, 1e-12)
}

func TestSelectMode(t *testing.T) {
	for _, q := range []string{"Compare THESE PAPERS", "across all papers", "a Combined view", "put it together"} {
		assert.Equal(t, domain.ModeCombined, SelectMode(q), q)
	}
	for _, q := range []string{"what is attention", "compare the papers", ""} {
		assert.Equal(t, domain.ModePerDocument, SelectMode(q), q)
	}
}

func TestGroupByDocument(t *testing.T) {
	results := []domain.RetrievalResult{
		{Score: 0.9, Chunk: chunkOf("a:0", "A", "a0", intPtr(3))},
		{Score: 0.8, Chunk: domain.Chunk{Text: "t0", Meta: domain.ChunkMeta{DocumentTitle: "Titled"}}},
		{Score: 0.7, Chunk: chunkOf("a:1", "A", "a1", intPtr(1))},
		{Score: 0.6, Chunk: domain.Chunk{Text: "f0", Meta: domain.ChunkMeta{SourceFileName: "f.html", SourcePath: "/x/f.html"}}},
		{Score: 0.5, Chunk: chunkOf("a:2", "A", "a2", intPtr(3))},
		{Score: 0.4, Chunk: domain.Chunk{Text: "u0"}},
		{Score: 0.3, Chunk: chunkOf("a:3", "A", "a3", nil)},
	}
	groups := groupByDocument(results)
	require.Len(t, groups, 4)

	assert.Equal(t, "A", groups[0].key)
	assert.Equal(t, []string{"a0", "a1", "a2", "a3"}, groups[0].texts)
	assert.Equal(t, []float64{0.9, 0.7, 0.5, 0.3}, groups[0].scores)
	assert.Equal(t, []int{1, 3}, groups[0].source.Pages)
	assert.Equal(t, "A.pdf", groups[0].source.SourceFileName)

	assert.Equal(t, "Titled", groups[1].key)
	assert.Equal(t, []int{}, groups[1].source.Pages)

	assert.Equal(t, "f.html", groups[2].key)
	assert.Equal(t, "f.html", groups[2].source.DocumentName)
	assert.Equal(t, "/x/f.html", groups[2].source.SourcePath)

	assert.Equal(t, unknownDocument, groups[3].key)
	assert.Equal(t, unknownDocument, groups[3].source.DocumentName)
}

func TestAnswerCombined(t *testing.T) {
	gen := &fakeGenerator{name: "fake"}
	svc := newTestService(t, twoDocEmbedder(), gen)
	seedTwoDocuments(t, svc)

	ans, err := svc.Answer(context.Background(), domain.AskRequest{Query: "Summarise these papers combined", TopK: 5})
	require.NoError(t, err)

	assert.Equal(t, domain.ModeCombined, ans.Mode)
	assert.Equal(t, "answer A", ans.Answer)
	assert.Empty(t, ans.Answers)
	require.Len(t, gen.prompts, 1)
	assert.Contains(t, gen.prompts[0], "Context:\nalpha evidence\n\nbeta evidence\n")
	assert.Contains(t, gen.prompts[0], "Question: Summarise these papers combined\n")
	assert.Equal(t, SystemPrompt, gen.systems[0])

	require.Len(t, ans.Sources, 2)
	assert.Equal(t, "Paper A", ans.Sources[0].DocumentName)
	assert.Equal(t, []int{1}, ans.Sources[0].Pages)
	assert.Equal(t, "Paper B", ans.Sources[1].DocumentName)
	assert.Equal(t, []int{2}, ans.Sources[1].Pages)

	assert.Equal(t, domain.ConfidenceHigh, ans.Confidence.Label)
	assert.InDelta(t, 1.0, ans.Confidence.MaxScore, 1e-6)
	assert.InDelta(t, 0.9, ans.Confidence.AvgScore, 1e-6)
}

func TestAnswerPerDocument(t *testing.T) {
	gen := &fakeGenerator{name: "fake"}
	svc := newTestService(t, twoDocEmbedder(), gen)
	seedTwoDocuments(t, svc)

	ans, err := svc.Answer(context.Background(), domain.AskRequest{Query: "what is alpha?"})
	require.NoError(t, err)

	assert.Equal(t, domain.ModePerDocument, ans.Mode)
	assert.Empty(t, ans.Answer)
	assert.Equal(t, map[string]string{"Paper A": "answer A", "Paper B": "answer B"}, ans.Answers)
	require.Len(t, gen.prompts, 2)
	assert.Contains(t, gen.prompts[0], "Context:\nalpha evidence\n\nQuestion: what is alpha?")
	assert.NotContains(t, gen.prompts[0], "beta")
	assert.Contains(t, gen.prompts[1], "about a single document")
	assert.Contains(t, gen.prompts[1], "beta evidence")
}

func TestAnswerWithoutEvidence(t *testing.T) {
	gen := &fakeGenerator{name: "fake"}
	svc := newTestService(t, twoDocEmbedder(), gen)

	ans, err := svc.Answer(context.Background(), domain.AskRequest{Query: "anything", TopK: 3})
	require.NoError(t, err)
	assert.Equal(t, domain.ModeNone, ans.Mode)
	assert.Equal(t, noEvidenceAnswer, ans.Answer)
	assert.Empty(t, ans.Sources)
	assert.NotNil(t, ans.Sources)
	assert.Equal(t, domain.ConfidenceLow, ans.Confidence.Label)
	assert.Zero(t, ans.Confidence.MaxScore)
	assert.Zero(t, ans.Confidence.AvgScore)
	assert.Empty(t, gen.prompts, "generator must not be called")
}

func TestAnswerGenerationFailureFailsRequest(t *testing.T) {
	boom := errors.New("upstream 500")
	gen := &fakeGenerator{name: "fake", err: boom}
	svc := newTestService(t, twoDocEmbedder(), gen)
	seedTwoDocuments(t, svc)

	ans, err := svc.Answer(context.Background(), domain.AskRequest{Query: "per document please"})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, ans)
}

func TestAnswerSelectsModelPerRequest(t *testing.T) {
	def := &fakeGenerator{name: "groq"}
	other := &fakeGenerator{name: "gemini"}
	emb := twoDocEmbedder()
	svc := newTestService(t, emb, def, other)
	seedTwoDocuments(t, svc)

	_, err := svc.Answer(context.Background(), domain.AskRequest{Query: "combined", Model: "gemini"})
	require.NoError(t, err)
	assert.Len(t, other.prompts, 1)
	assert.Empty(t, def.prompts)

	_, err = svc.Answer(context.Background(), domain.AskRequest{Query: "combined"})
	require.NoError(t, err)
	assert.Len(t, def.prompts, 1)

	calls := emb.calls
	_, err = svc.Answer(context.Background(), domain.AskRequest{Query: "combined", Model: "gpt-9"})
	assert.ErrorIs(t, err, domain.ErrUnknownModel)
	assert.True(t, IsClientError(err))
	assert.Equal(t, calls, emb.calls, "unknown model fails before embedding")

	assert.Equal(t, []string{"gemini", "groq"}, svc.Models())
	assert.Equal(t, "groq", svc.DefaultModel())
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	svc := newTestService(t, twoDocEmbedder(), &fakeGenerator{name: "fake"})
	_, err := svc.Search(context.Background(), "   ", 3)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIngestChunksEmbeddingFailure(t *testing.T) {
	emb := &fakeEmbedder{err: domain.ErrProviderCall}
	svc := newTestService(t, emb, &fakeGenerator{name: "fake"})
	n, err := svc.IngestChunks(context.Background(), []domain.Chunk{chunkOf("a:0", "A", "x", nil)})
	assert.ErrorIs(t, err, domain.ErrProviderCall)
	assert.Zero(t, n)
	assert.Zero(t, svc.store.Len())
}

func TestIngestFiles(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}
	write("one.html", "<title>First Doc</title><p>Retrieval grounds answers in evidence.</p>")
	write("two.html", "<title>Second Doc</title><p>"+strings.Repeat("Chunked text keeps overlapping windows. ", 5)+"</p>")
	write("blank.html", "<html><body>   </body></html>")
	write("notes.txt", "plain text")

	ch, err := chunker.New(chunker.WithChunkSize(80), chunker.WithOverlap(10))
	require.NoError(t, err)
	reg, err := llm.NewRegistry("fake", &fakeGenerator{name: "fake"})
	require.NoError(t, err)
	store := memory.NewStorage()
	emb := &fakeEmbedder{fallback: []float64{0.5, 0.5, 0.1}}
	svc := New(extractor.New(nil), ch, emb, store, reg,
		WithWorkers(2),
		WithSummarizer(summarizer.New(), 1))

	report, err := svc.IngestFiles(context.Background(), []string{
		filepath.Join(dir, "*.html"),
		filepath.Join(dir, "missing.pdf"),
		filepath.Join(dir, "notes.txt"),
	})
	require.NoError(t, err)
	require.Len(t, report.Files, 5)

	// Glob matches come back sorted.
	blank, one, two := report.Files[0], report.Files[1], report.Files[2]
	assert.Equal(t, filepath.Join(dir, "blank.html"), blank.Path)
	assert.Zero(t, blank.Chunks)
	assert.Equal(t, domain.ErrEmptyContent.Error(), blank.Error)

	assert.Equal(t, "First Doc", one.Title)
	assert.Equal(t, 1, one.Chunks)
	assert.Empty(t, one.Error)
	assert.Equal(t, extractor.DocumentID(one.Path), one.DocumentID)
	assert.Equal(t, "First Doc Retrieval grounds answers in evidence.", one.Summary)

	assert.Greater(t, two.Chunks, 1)
	assert.Empty(t, two.Error)

	assert.Contains(t, report.Files[3].Error, domain.ErrFileNotFound.Error())
	assert.Contains(t, report.Files[4].Error, domain.ErrUnsupportedFormat.Error())

	assert.Equal(t, one.Chunks+two.Chunks, report.ChunksAdded)
	assert.Equal(t, report.ChunksAdded, store.Len())
	assert.Equal(t, 2, emb.calls, "one embedding batch per non-empty file")

	indexed, err := store.Search(context.Background(), emb.fallback, store.Len())
	require.NoError(t, err)
	var ids []string
	for _, r := range indexed {
		ids = append(ids, r.ID)
	}
	assert.Contains(t, ids, one.DocumentID+":0", "chunks are keyed by chunk id")
}

func TestIngestFilesStopsOnProviderFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.html")
	require.NoError(t, os.WriteFile(path, []byte("<p>Some indexed content.</p>"), 0o644))

	ch, err := chunker.New()
	require.NoError(t, err)
	reg, err := llm.NewRegistry("fake", &fakeGenerator{name: "fake"})
	require.NoError(t, err)
	svc := New(extractor.New(nil), ch, &fakeEmbedder{err: domain.ErrProviderCall}, memory.NewStorage(), reg)

	report, err := svc.IngestFiles(context.Background(), []string{path})
	assert.ErrorIs(t, err, domain.ErrProviderCall)
	require.NotNil(t, report)
	require.Len(t, report.Files, 1)
	assert.NotEmpty(t, report.Files[0].Error)
}

func TestIngestFilesRequiresPaths(t *testing.T) {
	svc := newTestService(t, twoDocEmbedder(), &fakeGenerator{name: "fake"})
	_, err := svc.IngestFiles(context.Background(), []string{" "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

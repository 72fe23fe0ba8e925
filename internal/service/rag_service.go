// Package service is the retrieval orchestrator: it ingests files into the
// similarity index and answers questions over the indexed evidence.
package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"contextiq/internal/domain"
	"contextiq/internal/llm"
	"contextiq/internal/metrics"
	"contextiq/internal/vectorstore"
)

const (
	DefaultWorkers          = 4
	DefaultTopK             = 10
	DefaultSummarySentences = 3
)

var _ domain.RAGService = (*Service)(nil)

type Service struct {
	extractor  domain.Extractor
	chunker    domain.Chunker
	embedder   domain.Embedder
	store      vectorstore.Storage
	generators *llm.Registry

	summarizer       domain.Summarizer
	summarySentences int
	workers          int
	topK             int
	answerTimeout    time.Duration
	metrics          *metrics.Metrics
	logger           *zap.Logger
}

type Option func(*Service)

// WithSummarizer enables a preview summary per ingested file.
func WithSummarizer(s domain.Summarizer, maxSentences int) Option {
	return func(svc *Service) {
		svc.summarizer = s
		if maxSentences > 0 {
			svc.summarySentences = maxSentences
		}
	}
}

// WithWorkers bounds how many files are extracted concurrently.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithTopK sets the result count used when a request leaves it unset.
func WithTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithAnswerTimeout bounds a whole Answer call. Zero disables the deadline.
func WithAnswerTimeout(d time.Duration) Option {
	return func(s *Service) { s.answerTimeout = d }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func New(extractor domain.Extractor, chunker domain.Chunker, embedder domain.Embedder, store vectorstore.Storage, generators *llm.Registry, opts ...Option) *Service {
	s := &Service{
		extractor:        extractor,
		chunker:          chunker,
		embedder:         embedder,
		store:            store,
		generators:       generators,
		summarySentences: DefaultSummarySentences,
		workers:          DefaultWorkers,
		topK:             DefaultTopK,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// prepared is the CPU and disk bound part of ingesting one file.
type prepared struct {
	doc     *domain.Document
	chunks  []domain.Chunk
	summary string
	err     error
}

// IngestFiles extracts and chunks files on a bounded worker pool, then embeds
// and indexes them one file at a time in input order. A file that cannot be
// extracted is reported and skipped. A provider failure stops the batch and
// returns the report built so far.
func (s *Service) IngestFiles(ctx context.Context, paths []string) (*domain.IngestReport, error) {
	files := expandPaths(paths)
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files to ingest", domain.ErrInvalidInput)
	}

	work := make([]prepared, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				work[i].err = err
				return nil
			}
			work[i] = s.prepare(gctx, path)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &domain.IngestReport{Files: make([]domain.FileReport, 0, len(files))}
	for i, path := range files {
		w := work[i]
		fr := domain.FileReport{Path: path}
		log := s.logger.With(zap.String("path", path))
		if w.err != nil {
			log.Warn("skipping file", zap.Error(w.err))
			fr.Error = w.err.Error()
			report.Files = append(report.Files, fr)
			s.metrics.DocumentIngested("failed")
			continue
		}
		fr.DocumentID = w.doc.ID
		fr.Title = w.doc.Title
		fr.Pages = len(w.doc.Pages)
		fr.Tables = len(w.doc.Tables)
		fr.Summary = w.summary

		if len(w.chunks) == 0 {
			log.Warn("document has no usable text", zap.String("document_id", w.doc.ID), zap.Error(domain.ErrEmptyContent))
			fr.Error = domain.ErrEmptyContent.Error()
			report.Files = append(report.Files, fr)
			s.metrics.DocumentIngested("empty")
			continue
		}

		n, err := s.IngestChunks(ctx, w.chunks)
		report.ChunksAdded += n
		fr.Chunks = n
		if err != nil {
			fr.Error = err.Error()
			report.Files = append(report.Files, fr)
			s.metrics.DocumentIngested("failed")
			return report, fmt.Errorf("ingest %s: %w", path, err)
		}
		log.Info("document indexed", zap.String("document_id", w.doc.ID), zap.Int("chunks", n))
		report.Files = append(report.Files, fr)
		s.metrics.DocumentIngested("ok")
	}
	return report, nil
}

func (s *Service) prepare(ctx context.Context, path string) prepared {
	doc, err := s.extractor.Extract(ctx, path)
	if err != nil {
		return prepared{err: err}
	}
	chunks, err := s.chunker.Chunk(doc)
	if err != nil {
		return prepared{err: fmt.Errorf("chunk %s: %w", path, err)}
	}
	out := prepared{doc: doc, chunks: chunks}
	if s.summarizer != nil && len(chunks) > 0 {
		summary, err := s.summarizer.Summarize(doc.FullText, s.summarySentences)
		if err != nil {
			s.logger.Warn("summary failed", zap.String("path", path), zap.Error(err))
		}
		out.summary = summary
	}
	return out
}

// expandPaths resolves glob patterns. A pattern with no match is kept as a
// literal path so the extractor reports it.
func expandPaths(paths []string) []string {
	var files []string
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		matches, err := filepath.Glob(p)
		if err != nil || len(matches) == 0 {
			files = append(files, p)
			continue
		}
		files = append(files, matches...)
	}
	return files
}

// IngestChunks embeds every chunk text in one batch and adds each vector
// under its chunk id. It returns how many chunks were added.
func (s *Service) IngestChunks(ctx context.Context, chunks []domain.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("%w: %s returned %d vectors for %d chunks", domain.ErrProviderCall, s.embedder.Name(), len(vectors), len(chunks))
	}
	added := 0
	for i, c := range chunks {
		if _, err := s.store.Add(ctx, vectors[i], c, c.ID); err != nil {
			s.metrics.ChunksIndexed(added)
			return added, fmt.Errorf("index chunk %s: %w", c.ID, err)
		}
		added++
	}
	s.metrics.ChunksIndexed(added)
	return added, nil
}

// Search returns the topK most similar chunks for query.
func (s *Service) Search(ctx context.Context, query string, topK int) ([]domain.RetrievalResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}
	if topK <= 0 {
		topK = s.topK
	}
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: %s returned %d vectors for the query", domain.ErrProviderCall, s.embedder.Name(), len(vectors))
	}
	return s.store.Search(ctx, vectors[0], topK)
}

// Answer retrieves evidence for req.Query, groups it by document and asks the
// selected generator for one combined answer or one answer per document.
// Generation errors fail the whole request.
func (s *Service) Answer(ctx context.Context, req domain.AskRequest) (*domain.Answer, error) {
	gen, err := s.generators.Get(req.Model)
	if err != nil {
		return nil, err
	}
	if s.answerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.answerTimeout)
		defer cancel()
	}
	log := s.logger.With(zap.String("model", gen.Name()))

	results, err := s.Search(ctx, req.Query, req.TopK)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		log.Info("no evidence retrieved", zap.String("query", req.Query))
		s.metrics.Answered(string(domain.ModeNone), string(domain.ConfidenceLow))
		return &domain.Answer{
			Mode:       domain.ModeNone,
			Answer:     noEvidenceAnswer,
			Sources:    []domain.Source{},
			Confidence: ComputeConfidence(nil),
		}, nil
	}

	groups := groupByDocument(results)
	var scores []float64
	sources := make([]domain.Source, 0, len(groups))
	for _, g := range groups {
		scores = append(scores, g.scores...)
		sources = append(sources, g.source)
		for i := range g.texts {
			log.Debug("retrieved chunk", zap.String("document", g.key), zap.Float64("score", g.scores[i]))
		}
	}
	confidence := ComputeConfidence(scores)
	mode := SelectMode(req.Query)
	log.Info("answering",
		zap.String("mode", string(mode)),
		zap.Int("documents", len(groups)),
		zap.String("confidence", string(confidence.Label)),
		zap.Float64("max_score", confidence.MaxScore),
		zap.Float64("avg_score", confidence.AvgScore))

	out := &domain.Answer{Mode: mode, Sources: sources, Confidence: confidence}
	if mode == domain.ModeCombined {
		var texts []string
		for _, g := range groups {
			texts = append(texts, g.texts...)
		}
		answer, err := gen.Generate(ctx, combinedPrompt(strings.Join(texts, "\n\n"), req.Query), SystemPrompt)
		if err != nil {
			return nil, fmt.Errorf("generate combined answer: %w", err)
		}
		out.Answer = answer
	} else {
		out.Answers = make(map[string]string, len(groups))
		for _, g := range groups {
			answer, err := gen.Generate(ctx, documentPrompt(strings.Join(g.texts, "\n\n"), req.Query), SystemPrompt)
			if err != nil {
				return nil, fmt.Errorf("generate answer for %s: %w", g.key, err)
			}
			out.Answers[g.key] = answer
		}
	}
	s.metrics.Answered(string(mode), string(confidence.Label))
	return out, nil
}

// Models lists the generation providers a request may select.
func (s *Service) Models() []string { return s.generators.Names() }

// DefaultModel names the provider used when a request does not pick one.
func (s *Service) DefaultModel() string { return s.generators.Default() }

// IsClientError reports whether err was caused by the request rather than the system.
func IsClientError(err error) bool {
	return errors.Is(err, domain.ErrInvalidInput) ||
		errors.Is(err, domain.ErrUnknownModel) ||
		errors.Is(err, domain.ErrUnsupportedFormat) ||
		errors.Is(err, domain.ErrFileNotFound)
}

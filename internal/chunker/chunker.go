// Package chunker splits extracted documents into overlapping character windows.
package chunker

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"contextiq/internal/domain"
)

const (
	DefaultChunkSize = 1500
	DefaultOverlap   = 200
	DefaultMaxChunks = 500
)

// Span is one window over a text. Start and End are rune offsets, End exclusive.
type Span struct {
	Start int
	End   int
	Text  string
}

// WindowChunker emits fixed-size windows that overlap by a fixed number of characters.
type WindowChunker struct {
	chunkSize int
	overlap   int
	maxChunks int
	logger    *zap.Logger
}

// Option configures a WindowChunker.
type Option func(*WindowChunker)

// WithChunkSize sets the window size in characters.
func WithChunkSize(size int) Option {
	return func(c *WindowChunker) { c.chunkSize = size }
}

// WithOverlap sets how many characters consecutive windows share.
func WithOverlap(overlap int) Option {
	return func(c *WindowChunker) { c.overlap = overlap }
}

// WithMaxChunks caps the number of windows per document. The tail beyond the cap is dropped.
func WithMaxChunks(n int) Option {
	return func(c *WindowChunker) { c.maxChunks = n }
}

// WithLogger sets the logger used for truncation and empty-input warnings.
func WithLogger(l *zap.Logger) Option {
	return func(c *WindowChunker) { c.logger = l }
}

// New builds a WindowChunker. It rejects size, overlap or cap combinations
// that cannot make progress.
func New(opts ...Option) (*WindowChunker, error) {
	c := &WindowChunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultOverlap,
		maxChunks: DefaultMaxChunks,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	switch {
	case c.chunkSize <= 0:
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidInput, c.chunkSize)
	case c.overlap < 0 || c.overlap >= c.chunkSize:
		return nil, fmt.Errorf("%w: overlap must be in [0, %d), got %d", domain.ErrInvalidInput, c.chunkSize, c.overlap)
	case c.maxChunks <= 0:
		return nil, fmt.Errorf("%w: max chunks must be positive, got %d", domain.ErrInvalidInput, c.maxChunks)
	}
	return c, nil
}

// Split slides the window over text. CR characters are removed first, so
// offsets refer to the CR-free text. Blank input yields no spans.
func (c *WindowChunker) Split(text string) []Span {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(strings.ReplaceAll(text, "\r", ""))
	n := len(runes)

	spans := make([]Span, 0, min(c.maxChunks, n/(c.chunkSize-c.overlap)+1))
	start := 0
	for {
		end := min(start+c.chunkSize, n)
		spans = append(spans, Span{Start: start, End: end, Text: string(runes[start:end])})
		if end >= n {
			break
		}
		if len(spans) == c.maxChunks {
			c.logger.Warn("document truncated at chunk cap",
				zap.Int("max_chunks", c.maxChunks),
				zap.Int("covered", end),
				zap.Int("length", n))
			break
		}
		start = max(0, end-c.overlap)
	}
	return spans
}

// Chunk splits the document's full text and annotates every chunk with its provenance.
func (c *WindowChunker) Chunk(document *domain.Document) ([]domain.Chunk, error) {
	if document == nil {
		return nil, fmt.Errorf("%w: nil document", domain.ErrInvalidInput)
	}
	spans := c.Split(document.FullText)
	if len(spans) == 0 {
		c.logger.Warn("no text to chunk", zap.String("path", document.Path))
		return nil, nil
	}

	fullText := strings.ReplaceAll(document.FullText, "\r", "")
	fileName := filepath.Base(document.Path)
	chunks := make([]domain.Chunk, 0, len(spans))
	for i, span := range spans {
		meta := domain.ChunkMeta{
			StartOffset:    span.Start,
			EndOffset:      span.End,
			SourceDocument: document.ID,
			SourceFileName: fileName,
			DocumentName:   document.Title,
			DocumentTitle:  document.Title,
			SourcePath:     document.Path,
		}
		if page, ok := spanPage(fullText, span); ok {
			meta.Page = &page
		}
		chunks = append(chunks, domain.Chunk{
			ID:   document.ID + ":" + strconv.Itoa(i),
			Text: span.Text,
			Meta: meta,
		})
	}
	return chunks, nil
}

// spanPage attributes a span to the page marker preceding its start. A span
// that opens before any complete marker takes the first marker inside it.
func spanPage(fullText string, span Span) (int, bool) {
	if page, ok := ResolvePage(fullText, span.Start); ok {
		return page, true
	}
	idx := strings.Index(span.Text, pageMarker)
	if idx < 0 {
		return 0, false
	}
	return ResolvePage(fullText, span.Start+utf8.RuneCountInString(span.Text[:idx])+len(pageMarker))
}

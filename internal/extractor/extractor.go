// Package extractor converts PDF, DOCX and HTML files into normalised documents.
package extractor

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"contextiq/internal/assets"
	"contextiq/internal/domain"
)

var _ domain.Extractor = (*Extractor)(nil)

// Format names reported on Document.Format.
const (
	FormatPDF  = "pdf"
	FormatDOCX = "docx"
	FormatHTML = "html"
)

// Extractor dispatches on file extension.
type Extractor struct {
	runner CommandRunner
	sink   assets.Sink
	logger *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithRunner replaces the command runner used for the poppler tools.
func WithRunner(r CommandRunner) Option {
	return func(e *Extractor) { e.runner = r }
}

// WithLogger sets the logger for non-fatal extraction warnings.
func WithLogger(l *zap.Logger) Option {
	return func(e *Extractor) { e.logger = l }
}

// New creates an Extractor that writes page images and tables into sink.
// A nil sink disables artifact export.
func New(sink assets.Sink, opts ...Option) *Extractor {
	e := &Extractor{runner: execRunner{}, sink: sink}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// FormatOf maps a path's extension to a format, case-insensitively.
func FormatOf(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".pdf":
		return FormatPDF, nil
	case ".docx":
		return FormatDOCX, nil
	case ".html", ".htm":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, ext)
	}
}

// Extract reads path into a Document. The format and existence checks both
// run before any format-specific work.
func (e *Extractor) Extract(ctx context.Context, path string) (*domain.Document, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrExtraction, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrInvalidInput, path)
	}

	doc := &domain.Document{
		ID:     DocumentID(path),
		Path:   path,
		Format: format,
		Pages:  []domain.PageRecord{},
		Tables: []domain.TableRef{},
	}
	var metaTitle string
	switch format {
	case FormatPDF:
		metaTitle, err = e.extractPDF(ctx, doc)
	case FormatDOCX:
		metaTitle, err = extractDOCX(doc)
	case FormatHTML:
		metaTitle, err = extractHTML(doc)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrExtraction, path, err)
	}
	doc.Title = ResolveTitle(path, metaTitle, doc.FullText)
	return doc, nil
}

// DocumentID is the first 10 hex characters of SHA-1 over the path.
// Identity follows the path, not the content.
func DocumentID(path string) string {
	sum := sha1.Sum([]byte(path))
	return hex.EncodeToString(sum[:])[:10]
}

func stripCR(s string) string {
	return strings.ReplaceAll(s, "\r", "")
}

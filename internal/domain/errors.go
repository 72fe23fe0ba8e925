package domain

import "errors"

// Sentinel errors. Callers wrap them with context and match with errors.Is.
var (
	// ErrFileNotFound indicates the source path does not exist.
	ErrFileNotFound = errors.New("file not found")

	// ErrUnsupportedFormat indicates an extension with no extractor.
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrExtraction indicates the format library failed mid-extraction.
	ErrExtraction = errors.New("extraction failed")

	// ErrEmptyContent indicates a document produced no usable text.
	// It is a warning: ingestion proceeds with zero chunks.
	ErrEmptyContent = errors.New("empty content")

	// ErrTableExtraction indicates the best-effort table pass failed.
	ErrTableExtraction = errors.New("table extraction failed")

	// ErrMissingCredential indicates a provider was configured without an API key.
	ErrMissingCredential = errors.New("missing provider credential")

	// ErrProviderCall indicates an embedding or generation call failed.
	ErrProviderCall = errors.New("provider call failed")

	// ErrUnknownModel indicates a request named a generation provider that is not registered.
	ErrUnknownModel = errors.New("unknown model")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDimensionMismatch indicates a vector does not match the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

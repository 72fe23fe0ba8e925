// Package assets persists extraction side artifacts (page images, table CSVs)
// outside the index. Only the returned locations travel with documents.
package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"contextiq/internal/config"
)

// Sink stores an artifact under key and returns where it can be found.
type Sink interface {
	Save(ctx context.Context, key string, data []byte) (string, error)
}

// New builds the configured sink.
func New(ctx context.Context, cfg config.AssetsConfig) (Sink, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "", "local":
		return NewLocal(cfg.Dir)
	case "s3":
		if cfg.S3 == nil {
			return nil, fmt.Errorf("assets.s3 config is required")
		}
		return NewS3(ctx, S3Config{
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
			AccessKey: os.Getenv(cfg.S3.AccessKeyEnv),
			SecretKey: os.Getenv(cfg.S3.SecretKeyEnv),
		})
	default:
		return nil, fmt.Errorf("unsupported assets type: %s", cfg.Type)
	}
}

func validKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return fmt.Errorf("invalid asset key %q", key)
	}
	return nil
}

// LocalSink writes artifacts into a flat directory.
type LocalSink struct {
	dir string
}

func NewLocal(dir string) (*LocalSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("assets dir is required")
	}
	return &LocalSink{dir: dir}, nil
}

func (s *LocalSink) Save(_ context.Context, key string, data []byte) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, key)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

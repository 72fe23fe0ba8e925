package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"contextiq/internal/assets"
	"contextiq/internal/chunker"
	"contextiq/internal/config"
	"contextiq/internal/domain"
	"contextiq/internal/embedding"
	"contextiq/internal/extractor"
	"contextiq/internal/llm"
	"contextiq/internal/logger"
	"contextiq/internal/metrics"
	"contextiq/internal/service"
	"contextiq/internal/summarizer"
	"contextiq/internal/vectorstore"
	"contextiq/internal/vectorstore/memory"
	"contextiq/internal/vectorstore/qdrant"
)

// app holds the assembled components shared by every subcommand.
type app struct {
	cfg     *config.AppConfig
	log     *zap.Logger
	metrics *metrics.Metrics
	svc     *service.Service
}

func loadConfig() (*config.AppConfig, error) {
	if configPath == "" {
		cfg, _, err := config.LoadDefault()
		return cfg, err
	}
	return config.Load(configPath)
}

// newApp builds the pipeline from config. logFile overrides the configured
// log destination, which the chat UI uses to keep stderr clean.
func newApp(ctx context.Context, logFile string) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logFile != "" {
		cfg.Log.File = logFile
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	sink, err := assets.New(ctx, cfg.Assets)
	if err != nil {
		return nil, fmt.Errorf("assets: %w", err)
	}
	ext := extractor.New(sink, extractor.WithLogger(log.Named("extractor")))

	ch, err := chunker.New(
		chunker.WithChunkSize(cfg.Chunker.ChunkSize),
		chunker.WithOverlap(cfg.Chunker.Overlap),
		chunker.WithMaxChunks(cfg.Chunker.MaxChunks),
		chunker.WithLogger(log.Named("chunker")),
	)
	if err != nil {
		return nil, fmt.Errorf("chunker: %w", err)
	}

	emb, err := embedding.New(ctx, cfg.Embedder)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	gens, err := llm.FromConfig(ctx, cfg.Generators, log.Named("llm"))
	if err != nil {
		return nil, fmt.Errorf("generators: %w", err)
	}
	store, err := newStorage(cfg.VectorStore)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	opts := []service.Option{
		service.WithWorkers(cfg.Ingest.Workers),
		service.WithTopK(cfg.Retrieval.TopK),
		service.WithAnswerTimeout(time.Duration(cfg.Retrieval.AnswerTimeoutSecs) * time.Second),
		service.WithMetrics(m),
		service.WithLogger(log.Named("service")),
	}
	sum, err := newSummarizer(cfg.Summarizer)
	if err != nil {
		return nil, err
	}
	if sum != nil {
		opts = append(opts, service.WithSummarizer(sum, cfg.Summarizer.MaxSentences))
	}

	log.Info("pipeline ready",
		zap.String("embedder", emb.Name()),
		zap.Strings("models", gens.Names()),
		zap.String("default_model", gens.Default()),
		zap.String("vector_store", cfg.VectorStore.Type),
		zap.String("assets", cfg.Assets.Type))

	return &app{
		cfg:     cfg,
		log:     log,
		metrics: m,
		svc:     service.New(ext, ch, emb, store, gens, opts...),
	}, nil
}

func newStorage(cfg config.VectorStoreConfig) (vectorstore.Storage, error) {
	switch strings.ToLower(cfg.Type) {
	case "memory", "":
		return memory.NewStorage(), nil
	case "qdrant":
		if cfg.Qdrant == nil {
			return nil, fmt.Errorf("vector_store.qdrant config missing")
		}
		return qdrant.NewStorage(qdrant.Config{
			URL:        cfg.Qdrant.URL,
			APIKey:     cfg.Qdrant.APIKey,
			Collection: cfg.Qdrant.Collection,
			Timeout:    time.Duration(cfg.Qdrant.TimeoutSecs) * time.Second,
		}), nil
	default:
		return nil, fmt.Errorf("unknown vector store: %s", cfg.Type)
	}
}

func newSummarizer(cfg config.SummarizerConfig) (domain.Summarizer, error) {
	switch strings.ToLower(cfg.Type) {
	case "frequency", "":
		return summarizer.New(), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown summarizer: %s", cfg.Type)
	}
}

func (a *app) close() {
	_ = a.log.Sync()
}

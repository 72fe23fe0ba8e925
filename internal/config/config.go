package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
	// File redirects output away from stderr; the chat UI needs this.
	File string `yaml:"file,omitempty"`
}

// ProviderConfig configures a remote embedding or generation provider.
type ProviderConfig struct {
	Name        string `yaml:"name,omitempty"`
	Type        string `yaml:"type"`
	BaseURL     string `yaml:"base_url,omitempty"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries"`
	BatchSize   int    `yaml:"batch_size,omitempty"`
}

// HashingEmbedderConfig configures the local feature-hashing embedder.
type HashingEmbedderConfig struct {
	Dimension int `yaml:"dimension"`
}

// EmbedCacheConfig configures the in-process embedding cache. Size 0 disables it.
type EmbedCacheConfig struct {
	Size    int `yaml:"size"`
	TTLSecs int `yaml:"ttl_secs"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type    string                 `yaml:"type"`
	Hashing *HashingEmbedderConfig `yaml:"hashing,omitempty"`
	OpenAI  *ProviderConfig        `yaml:"openai,omitempty"`
	Gemini  *ProviderConfig        `yaml:"gemini,omitempty"`
	Cache   EmbedCacheConfig       `yaml:"cache"`
}

// GeneratorsConfig lists the generation providers a request may select.
type GeneratorsConfig struct {
	Default   string           `yaml:"default"`
	Providers []ProviderConfig `yaml:"providers"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	Overlap   int `yaml:"overlap"`
	MaxChunks int `yaml:"max_chunks"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// AssetsConfig selects where extracted images and tables are written.
type AssetsConfig struct {
	Type string    `yaml:"type"`
	Dir  string    `yaml:"dir"`
	S3   *S3Config `yaml:"s3,omitempty"`
}

// S3Config contains connection details for an S3-compatible bucket.
type S3Config struct {
	Endpoint     string `yaml:"endpoint"`
	Region       string `yaml:"region"`
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	AccessKeyEnv string `yaml:"access_key_env"`
	SecretKeyEnv string `yaml:"secret_key_env"`
}

// IngestConfig configures batch ingestion.
type IngestConfig struct {
	Workers   int    `yaml:"workers"`
	UploadDir string `yaml:"upload_dir"`
}

// RetrievalConfig configures question answering.
type RetrievalConfig struct {
	TopK              int `yaml:"top_k"`
	AnswerTimeoutSecs int `yaml:"answer_timeout_secs"`
}

// SummarizerConfig selects and configures the summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
}

// ServerConfig configures the HTTP front door.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Log         LogConfig         `yaml:"log"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Generators  GeneratorsConfig  `yaml:"generators"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Assets      AssetsConfig      `yaml:"assets"`
	Ingest      IngestConfig      `yaml:"ingest"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Server      ServerConfig      `yaml:"server"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/contextiq/config.yaml.
// If neither exists, it writes defaults to ~/.config/contextiq/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks the invariants that defaults cannot repair.
func (c *AppConfig) Validate() error {
	if c.Chunker.Overlap < 0 || c.Chunker.Overlap >= c.Chunker.ChunkSize {
		return fmt.Errorf("chunker.overlap must be in [0, chunk_size), got %d", c.Chunker.Overlap)
	}
	if c.Generators.Default != "" && len(c.Generators.Providers) > 0 {
		found := false
		for _, p := range c.Generators.Providers {
			if p.Name == c.Generators.Default {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("generators.default %q is not a configured provider", c.Generators.Default)
		}
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "contextiq", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Embedder: EmbedderConfig{Type: "hashing"},
		Generators: GeneratorsConfig{
			Default: "groq",
			Providers: []ProviderConfig{
				{Name: "groq", Type: "openai", BaseURL: "https://api.groq.com/openai/v1", APIKeyEnv: "GROQ_API_KEY", Model: "groq/compound"},
				{Name: "gemini", Type: "gemini", APIKeyEnv: "GEMINI_API_KEY", Model: "gemini-2.5-flash"},
			},
		},
		VectorStore: VectorStoreConfig{Type: "memory"},
		Assets:      AssetsConfig{Type: "local"},
		Summarizer:  SummarizerConfig{Type: "frequency"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "hashing"
	}
	if cfg.Embedder.Type == "hashing" {
		if cfg.Embedder.Hashing == nil {
			cfg.Embedder.Hashing = &HashingEmbedderConfig{}
		}
		if cfg.Embedder.Hashing.Dimension == 0 {
			cfg.Embedder.Hashing.Dimension = 384
		}
	}
	if cfg.Embedder.Type == "openai" && cfg.Embedder.OpenAI != nil {
		p := cfg.Embedder.OpenAI
		if p.BaseURL == "" {
			p.BaseURL = "https://api.openai.com/v1"
		}
		if p.APIKeyEnv == "" {
			p.APIKeyEnv = "OPENAI_API_KEY"
		}
		if p.Model == "" {
			p.Model = "text-embedding-3-small"
		}
		if p.BatchSize == 0 {
			p.BatchSize = 32
		}
		applyProviderDefaults(p)
	}
	if cfg.Embedder.Type == "gemini" && cfg.Embedder.Gemini != nil {
		p := cfg.Embedder.Gemini
		if p.APIKeyEnv == "" {
			p.APIKeyEnv = "GEMINI_API_KEY"
		}
		if p.Model == "" {
			p.Model = "text-embedding-004"
		}
		if p.BatchSize == 0 {
			p.BatchSize = 100
		}
		applyProviderDefaults(p)
	}
	if cfg.Embedder.Cache.Size > 0 && cfg.Embedder.Cache.TTLSecs == 0 {
		cfg.Embedder.Cache.TTLSecs = 3600
	}
	for i := range cfg.Generators.Providers {
		p := &cfg.Generators.Providers[i]
		if p.Name == "" {
			p.Name = p.Type
		}
		if p.Type == "openai" && p.BaseURL == "" {
			p.BaseURL = "https://api.openai.com/v1"
		}
		applyProviderDefaults(p)
	}
	if cfg.Generators.Default == "" && len(cfg.Generators.Providers) > 0 {
		cfg.Generators.Default = cfg.Generators.Providers[0].Name
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = 1500
	}
	if cfg.Chunker.Overlap == 0 && cfg.Chunker.ChunkSize > 200 {
		cfg.Chunker.Overlap = 200
	}
	if cfg.Chunker.MaxChunks == 0 {
		cfg.Chunker.MaxChunks = 500
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "memory"
	}
	if cfg.Assets.Type == "" {
		cfg.Assets.Type = "local"
	}
	if cfg.Assets.Dir == "" {
		cfg.Assets.Dir = filepath.Join("data", "assets")
	}
	if cfg.Ingest.Workers == 0 {
		cfg.Ingest.Workers = 4
	}
	if cfg.Ingest.UploadDir == "" {
		cfg.Ingest.UploadDir = filepath.Join("data", "uploads")
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 10
	}
	if cfg.Retrieval.AnswerTimeoutSecs == 0 {
		cfg.Retrieval.AnswerTimeoutSecs = 120
	}
	if cfg.Summarizer.Type == "" {
		cfg.Summarizer.Type = "frequency"
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 3
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
}

func applyProviderDefaults(p *ProviderConfig) {
	if p.TimeoutSecs == 0 {
		p.TimeoutSecs = 60
	}
	if p.MaxRetries == 0 {
		p.MaxRetries = 3
	}
}

package recall

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kentyler/recall/ai"
	"github.com/kentyler/recall/backfill"
	"github.com/kentyler/recall/buffer"
	"github.com/kentyler/recall/ingestion"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when a configuration file fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the file form of a recall deployment's settings.
// Zero values in the file keep the defaults.
type Config struct {
	Storage   StorageConfig   `yaml:"storage"`
	Buffer    BufferConfig    `yaml:"buffer"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Backfill  BackfillConfig  `yaml:"backfill"`
}

// StorageConfig locates the turn database.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// BufferConfig tunes speaker buffers and their registry.
type BufferConfig struct {
	MaxLength   int           `yaml:"max_length"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// PipelineConfig tunes the turn pipeline.
type PipelineConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// EmbeddingConfig describes the embedding provider.
type EmbeddingConfig struct {
	Host          string        `yaml:"host"`
	Model         string        `yaml:"model"`
	APIToken      string        `yaml:"api_token"`
	Dimensions    int           `yaml:"dimensions"`
	MaxAttempts   int           `yaml:"max_attempts"`
	RetryDelay    time.Duration `yaml:"retry_delay"`
	MaxRetryDelay time.Duration `yaml:"max_retry_delay"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
}

// BackfillConfig tunes the embedding backfill.
type BackfillConfig struct {
	BatchSize  int           `yaml:"batch_size"`
	BatchDelay time.Duration `yaml:"batch_delay"`
}

// DefaultConfig returns the settings used when no file is given.
func DefaultConfig() *Config {
	aiConfig := ai.DefaultConfig()
	backfillConfig := backfill.DefaultConfig()
	return &Config{
		Storage: StorageConfig{Path: "recall.db"},
		Buffer: BufferConfig{
			MaxLength:   buffer.DefaultMaxLength,
			IdleTimeout: buffer.DefaultIdleTimeout,
		},
		Pipeline: PipelineConfig{Concurrency: ingestion.DefaultConcurrency},
		Embedding: EmbeddingConfig{
			Host:          aiConfig.EmbeddingHost,
			Model:         aiConfig.EmbeddingModel,
			Dimensions:    aiConfig.Dimensions,
			MaxAttempts:   aiConfig.MaxAttempts,
			RetryDelay:    aiConfig.RetryDelay,
			MaxRetryDelay: aiConfig.MaxRetryDelay,
			CacheTTL:      aiConfig.CacheTTL,
		},
		Backfill: BackfillConfig{
			BatchSize:  backfillConfig.BatchSize,
			BatchDelay: backfillConfig.BatchDelay,
		},
	}
}

// LoadConfig reads a YAML file over the defaults. An empty path returns the
// defaults. The API token falls back to OPENAI_API_KEY.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
		}
	}
	if cfg.Embedding.APIToken == "" {
		cfg.Embedding.APIToken = os.Getenv("OPENAI_API_KEY")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges. Embedding settings are checked by ai.Config.
func (c *Config) Validate() error {
	switch {
	case c.Buffer.MaxLength <= 0:
		return fmt.Errorf("%w: buffer.max_length must be positive", ErrInvalidConfig)
	case c.Buffer.IdleTimeout < 0:
		return fmt.Errorf("%w: buffer.idle_timeout cannot be negative", ErrInvalidConfig)
	case c.Pipeline.Concurrency <= 0:
		return fmt.Errorf("%w: pipeline.concurrency must be positive", ErrInvalidConfig)
	case c.Backfill.BatchSize <= 0:
		return fmt.Errorf("%w: backfill.batch_size must be positive", ErrInvalidConfig)
	case c.Backfill.BatchDelay < 0:
		return fmt.Errorf("%w: backfill.batch_delay cannot be negative", ErrInvalidConfig)
	}
	if err := c.AIConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// AIConfig converts the embedding section to an ai.Config.
func (c *Config) AIConfig() *ai.Config {
	e := c.Embedding
	return ai.NewConfig(
		ai.WithEmbeddingHost(e.Host),
		ai.WithEmbeddingModel(e.Model),
		ai.WithAPIToken(e.APIToken),
		ai.WithDimensions(e.Dimensions),
		ai.WithRetry(e.MaxAttempts, e.RetryDelay, e.MaxRetryDelay),
		ai.WithCacheTTL(e.CacheTTL),
	)
}

// BackfillConfig converts the backfill and retry settings to a backfill.Config.
func (c *Config) BackfillConfig() *backfill.Config {
	cfg := backfill.DefaultConfig()
	cfg.BatchSize = c.Backfill.BatchSize
	cfg.ReportInterval = c.Backfill.BatchSize
	cfg.BatchDelay = c.Backfill.BatchDelay
	cfg.MaxRetries = c.Embedding.MaxAttempts
	cfg.RetryDelay = c.Embedding.RetryDelay
	cfg.MaxRetryDelay = c.Embedding.MaxRetryDelay
	cfg.Dimensions = c.Embedding.Dimensions
	return cfg
}

// BufferOptions returns the registry options described by the buffer section.
func (c *Config) BufferOptions() []buffer.RegistryOption {
	return []buffer.RegistryOption{
		buffer.WithIdleTimeout(c.Buffer.IdleTimeout),
		buffer.WithBufferOptions(buffer.WithMaxLength(c.Buffer.MaxLength)),
	}
}

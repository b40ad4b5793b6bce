package recall

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kentyler/recall/buffer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recall.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, buffer.DefaultMaxLength, cfg.Buffer.MaxLength)
	assert.Equal(t, 2*time.Hour, cfg.Buffer.IdleTimeout)
	assert.Equal(t, 3, cfg.Pipeline.Concurrency)
	assert.Equal(t, 1536, cfg.Embedding.Dimensions)
}

func TestLoadConfig_File(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	path := writeConfig(t, `
storage:
  path: /var/lib/recall
buffer:
  max_length: 500
  idle_timeout: 30m
pipeline:
  concurrency: 8
embedding:
  host: http://localhost:11434
  model: embeddinggemma
  dimensions: 768
  retry_delay: 250ms
backfill:
  batch_size: 50
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/recall", cfg.Storage.Path)
	assert.Equal(t, 500, cfg.Buffer.MaxLength)
	assert.Equal(t, 30*time.Minute, cfg.Buffer.IdleTimeout)
	assert.Equal(t, 8, cfg.Pipeline.Concurrency)
	assert.Equal(t, "embeddinggemma", cfg.Embedding.Model)
	assert.Equal(t, 250*time.Millisecond, cfg.Embedding.RetryDelay)
	assert.Equal(t, 50, cfg.Backfill.BatchSize)

	// Keys left out keep their defaults
	assert.Equal(t, 3, cfg.Embedding.MaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.Embedding.MaxRetryDelay)
	assert.Equal(t, time.Second, cfg.Backfill.BatchDelay)

	aiConfig := cfg.AIConfig()
	require.NoError(t, aiConfig.Validate())
	assert.Equal(t, "http://localhost:11434/v1", aiConfig.EmbeddingHost)
	assert.Equal(t, 768, aiConfig.Dimensions)

	backfillConfig := cfg.BackfillConfig()
	assert.Equal(t, 50, backfillConfig.BatchSize)
	assert.Equal(t, 768, backfillConfig.Dimensions)
	assert.Equal(t, 3, backfillConfig.MaxRetries)
	assert.Equal(t, 250*time.Millisecond, backfillConfig.RetryDelay)
}

func TestLoadConfig_TokenFromEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg, err := LoadConfig(writeConfig(t, "pipeline:\n  concurrency: 2\n"))
	require.NoError(t, err)
	assert.Equal(t, "sk-env", cfg.Embedding.APIToken)

	cfg, err = LoadConfig(writeConfig(t, "embedding:\n  api_token: sk-file\n"))
	require.NoError(t, err)
	assert.Equal(t, "sk-file", cfg.Embedding.APIToken, "file value wins")
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	tests := []struct {
		name     string
		contents string
	}{
		{"malformed yaml", "buffer: [unterminated"},
		{"bad duration", "buffer:\n  idle_timeout: soon\n"},
		{"zero concurrency", "pipeline:\n  concurrency: -1\n"},
		{"negative max length", "buffer:\n  max_length: -5\n"},
		{"negative idle timeout", "buffer:\n  idle_timeout: -1m\n"},
		{"zero attempts", "embedding:\n  max_attempts: -1\n"},
		{"empty model", "embedding:\n  model: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.contents))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestConfig_BufferOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Buffer.MaxLength = 5

	_, err := buffer.NewRegistry(buffer.Discard, cfg.BufferOptions()...)
	require.NoError(t, err)

	cfg.Buffer.MaxLength = 0
	_, err = buffer.NewRegistry(buffer.Discard, cfg.BufferOptions()...)
	assert.ErrorIs(t, err, buffer.ErrInvalidMaxLength)
}

package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/kentyler/recall/core"
	"github.com/kentyler/recall/retry"
	"github.com/patrickmn/go-cache"
)

var (
	// ErrEmbedderRequired is returned when a client is built without an embedder.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrDimensionMismatch indicates the provider returned a vector of unexpected length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmptyEmbedding indicates the provider returned no vector.
	ErrEmptyEmbedding = errors.New("empty embedding")
)

// healthCheckText is embedded by HealthCheck.
const healthCheckText = "test"

// Client applies the configured retry policy, dimension check and dedupe cache
// to an Embedder.
type Client struct {
	embedder   Embedder
	policy     retry.Policy
	dimensions int
	cache      *cache.Cache
	logger     *slog.Logger
}

var _ EmbeddingClient = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client) error

// WithClientLogger sets the logger for the client.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// WithRetryPolicy overrides the policy taken from the config.
func WithRetryPolicy(policy retry.Policy) ClientOption {
	return func(c *Client) error {
		if policy.MaxAttempts < 1 {
			return retry.ErrInvalidMaxAttempts
		}
		c.policy = policy
		return nil
	}
}

// NewClient creates an embedding client. A nil config uses DefaultConfig.
func NewClient(embedder Embedder, config *Config, opts ...ClientOption) (*Client, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		embedder:   embedder,
		policy:     config.RetryPolicy(),
		dimensions: config.Dimensions,
		logger:     slog.Default(),
	}
	if config.CacheTTL > 0 {
		c.cache = cache.New(config.CacheTTL, 2*config.CacheTTL)
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.logger = c.logger.With("component", "embedding-client")

	return c, nil
}

// EmbedWithRetry returns a vector for text. Identical text embedded within the
// cache TTL is served from the cache.
func (c *Client) EmbedWithRetry(ctx context.Context, text string) ([]float64, error) {
	key := cacheKey(text)
	if c.cache != nil {
		if cached, found := c.cache.Get(key); found {
			c.logger.Debug("embedding cache hit", "length", len(text))
			return slices.Clone(cached.([]float64)), nil
		}
	}

	var (
		vector   []float64
		attempts int
	)
	err := retry.Do(ctx, c.policy, func() error {
		attempts++
		v, err := c.embed(ctx, text)
		if err != nil {
			c.logger.Warn("embedding attempt failed", "attempt", attempts, "maxAttempts", c.policy.MaxAttempts, "err", err)
			return err
		}
		vector = v
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: after %d attempts: %w", core.ErrEmbeddingProvider, attempts, err)
	}

	if c.cache != nil {
		c.cache.Set(key, slices.Clone(vector), cache.DefaultExpiration)
	}
	return vector, nil
}

// HealthCheck embeds a fixed text once, without retries or cache.
func (c *Client) HealthCheck(ctx context.Context) bool {
	if _, err := c.embed(ctx, healthCheckText); err != nil {
		c.logger.Error("embedding health check failed", "err", err)
		return false
	}
	return true
}

func (c *Client) embed(ctx context.Context, text string) ([]float64, error) {
	vector, err := c.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vector) == 0 {
		return nil, ErrEmptyEmbedding
	}
	if c.dimensions > 0 && len(vector) != c.dimensions {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), c.dimensions)
	}
	return vector, nil
}

func cacheKey(text string) string {
	return strconv.FormatUint(uint64(core.IDFromContent(text)), 16)
}

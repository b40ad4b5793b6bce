package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float64, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float64, error)
}

// EmbeddingClient is the pipeline's view of the provider: an embedder with a
// retry policy applied.
type EmbeddingClient interface {
	// EmbedWithRetry returns a vector for text, retrying transient failures.
	// After the attempt budget is spent the error wraps core.ErrEmbeddingProvider.
	EmbedWithRetry(ctx context.Context, text string) ([]float64, error)

	// HealthCheck makes one embedding call and reports whether it produced a
	// usable vector.
	HealthCheck(ctx context.Context) bool
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}

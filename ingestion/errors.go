package ingestion

import "errors"

var (
	// ErrStoreRequired is returned when a turn store is not provided.
	ErrStoreRequired = errors.New("turn store required")

	// ErrIndexerRequired is returned when an order indexer is not provided.
	ErrIndexerRequired = errors.New("order indexer required")

	// ErrEmbeddingClientRequired is returned when an embedding client is not provided.
	ErrEmbeddingClientRequired = errors.New("embedding client required")

	// ErrInvalidConcurrency is returned for a concurrency below 1.
	ErrInvalidConcurrency = errors.New("concurrency must be at least 1")

	// ErrProcessingPanicked is returned for a draft whose processing panicked.
	ErrProcessingPanicked = errors.New("turn processing panicked")
)

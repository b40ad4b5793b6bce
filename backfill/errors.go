package backfill

import "errors"

var (
	// ErrRepositoryRequired is returned when a turn repository is not provided.
	ErrRepositoryRequired = errors.New("turn repository required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrEmbeddingCount is returned when the provider returns a different
	// number of vectors than texts sent.
	ErrEmbeddingCount = errors.New("embedding count mismatch")
)

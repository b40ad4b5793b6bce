package backfill

import (
	"context"
	"fmt"

	"github.com/kentyler/recall/ai"
	"github.com/kentyler/recall/core"
	"github.com/kentyler/recall/retry"
)

// TurnUpdater writes re-embedded turns back to storage.
type TurnUpdater interface {
	UpdateTurns(ctx context.Context, turns ...*core.Turn) ([]*core.Turn, error)
}

// BatchProcessor handles embedding generation for batches of turns.
type BatchProcessor struct {
	repo       TurnUpdater
	embedder   ai.Embedder
	policy     retry.Policy
	dimensions int
}

// NewBatchProcessor creates a new batch processor.
// dimensions: expected vector length, or 0 to accept any
func NewBatchProcessor(repo TurnUpdater, embedder ai.Embedder, policy retry.Policy, dimensions int) *BatchProcessor {
	return &BatchProcessor{
		repo:       repo,
		embedder:   embedder,
		policy:     policy,
		dimensions: dimensions,
	}
}

// Process embeds a batch of turns in one request and updates them,
// clearing their recorded embedding errors.
func (bp *BatchProcessor) Process(ctx context.Context, turns []*core.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	texts := make([]string, len(turns))
	for i, turn := range turns {
		texts[i] = turn.Content
	}

	var embeddings [][]float64
	err := retry.Do(ctx, bp.policy, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: after %d attempts: %w", core.ErrEmbeddingProvider, bp.policy.MaxAttempts, err)
	}

	if len(embeddings) != len(turns) {
		return fmt.Errorf("%w: expected %d, got %d", ErrEmbeddingCount, len(turns), len(embeddings))
	}
	for i, vector := range embeddings {
		if len(vector) == 0 || (bp.dimensions > 0 && len(vector) != bp.dimensions) {
			return fmt.Errorf("%w: turn %d got %d dimensions, want %d",
				ai.ErrDimensionMismatch, turns[i].ID, len(vector), bp.dimensions)
		}
	}

	updated := make([]*core.Turn, len(turns))
	for i, turn := range turns {
		copied := *turn
		copied.SetEmbedding(embeddings[i])
		updated[i] = &copied
	}

	if _, err := bp.repo.UpdateTurns(ctx, updated...); err != nil {
		return fmt.Errorf("failed to update turns: %w", err)
	}
	return nil
}

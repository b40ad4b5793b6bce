package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kentyler/recall/ai"
	"github.com/kentyler/recall/core"
	"github.com/kentyler/recall/storage"
)

// embeddingProcessor attaches an embedding to a turn and stores it.
type embeddingProcessor struct {
	store    storage.TurnStore
	embedder ai.EmbeddingClient
	logger   *slog.Logger
}

var _ processor = (*embeddingProcessor)(nil)

// newEmbeddingProcessor creates a new embedding processor.
func newEmbeddingProcessor(store storage.TurnStore, embedder ai.EmbeddingClient, logger *slog.Logger) (processor, error) {
	if store == nil {
		return nil, fmt.Errorf("turn store required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedding client required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &embeddingProcessor{
		store:    store,
		embedder: embedder,
		logger:   logger.With("processor", "embeddings"),
	}, nil
}

// process embeds the turn's content and saves it. A turn whose embedding
// fails is saved with the failure recorded instead of a vector. Save errors
// are returned as they are.
func (ep *embeddingProcessor) process(ctx context.Context, turn *core.Turn) (*core.Turn, error) {
	vector, err := ep.embedder.EmbedWithRetry(ctx, turn.Content)
	if err != nil {
		ep.logger.Warn("embedding failed, storing turn without vector",
			"session", turn.SessionID, "sequence", turn.SequenceInSession, "err", err)
		turn.SetEmbeddingError(err)
	} else {
		turn.SetEmbedding(vector)
	}

	saved, err := ep.store.Save(ctx, turn)
	if err != nil {
		ep.logger.Error("error storing turn", "session", turn.SessionID, "sequence", turn.SequenceInSession, "err", err)
		return nil, err
	}

	ep.logger.Debug("stored turn", "id", saved.ID, "session", saved.SessionID, "embedded", saved.HasEmbedding())
	return saved, nil
}

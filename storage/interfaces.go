package storage

import (
	"context"

	"github.com/kentyler/recall/core"
)

// TurnStore persists turns. It is the only storage the ingestion pipeline writes to.
type TurnStore interface {
	// Save persists a turn and returns it with ID and InsertedAt populated.
	// Every call appends a new record; saving the same draft twice yields two
	// turns with the same Fingerprint.
	// Failures wrap core.ErrStorage.
	Save(ctx context.Context, turn *core.Turn) (*core.Turn, error)
}

// TurnRepository is the full read/write interface over stored turns.
type TurnRepository interface {
	TurnStore

	// UpdateTurns updates existing turns.
	// Updates the UpdatedAt timestamp automatically.
	// Returns ErrNotFound if any turn doesn't exist.
	UpdateTurns(ctx context.Context, turns ...*core.Turn) ([]*core.Turn, error)

	// GetTurn retrieves a single turn by ID.
	// Returns ErrNotFound if the turn doesn't exist.
	GetTurn(ctx context.Context, id core.ID) (*core.Turn, error)

	// GetTurns retrieves multiple turns by their IDs.
	// Returns only the turns that exist (no error for missing turns).
	GetTurns(ctx context.Context, ids ...core.ID) ([]*core.Turn, error)

	// ListByClient returns a client's turns ordered by order key, then
	// timestamp, then ID.
	ListByClient(ctx context.Context, clientID string) ([]*core.Turn, error)

	// ListBySession returns a session's turns ordered by SequenceInSession.
	ListBySession(ctx context.Context, sessionID string) ([]*core.Turn, error)

	// AdjacentTurn returns the nearest turn of ref's client whose order key
	// differs from ref's, after ref when forward is true and before it otherwise.
	// Returns nil, nil when there is none.
	AdjacentTurn(ctx context.Context, ref *core.Turn, forward bool) (*core.Turn, error)

	// MaxOrderIndex returns the largest OrderIndex of a client's turns.
	// found is false when the client has no turns.
	MaxOrderIndex(ctx context.Context, clientID string) (index float64, found bool, err error)

	// OrderIndexExists reports whether any turn of the client has exactly index.
	OrderIndexExists(ctx context.Context, clientID string, index float64) (bool, error)

	// ListMissingEmbeddings returns up to limit turns without an embedding whose
	// ID is greater than afterID, in ID order.
	ListMissingEmbeddings(ctx context.Context, afterID core.ID, limit int) ([]*core.Turn, error)

	// SessionStats summarizes a session's stored turns.
	// Returns ErrNotFound if the session has no turns.
	SessionStats(ctx context.Context, sessionID string) (*core.SessionStats, error)

	// Close closes the storage backend and releases resources.
	Close() error
}

// CheckpointRepository stores progress markers for resumable jobs.
type CheckpointRepository interface {
	// SaveCheckpoint persists a checkpoint, setting UpdatedAt.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint retrieves a checkpoint by name.
	// Returns nil, nil if no checkpoint exists.
	LoadCheckpoint(ctx context.Context, name string) (*core.Checkpoint, error)

	// DeleteCheckpoint removes a checkpoint. Missing checkpoints are not an error.
	DeleteCheckpoint(ctx context.Context, name string) error
}

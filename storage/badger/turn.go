package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/kentyler/recall/core"
	"github.com/kentyler/recall/storage"
)

// TurnRepository implements storage.TurnRepository for BadgerDB.
//
// Besides the primary record each turn has three index entries: the client
// order index (order key, timestamp, ID), the session index (sequence, ID)
// and, while it has no embedding, an entry in the missing-embedding index.
type TurnRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.TurnRepository = (*TurnRepository)(nil)

// NewTurnRepository creates a new TurnRepository.
func NewTurnRepository(backend *Backend) (*TurnRepository, error) {
	idSeq, err := backend.GetSequence(turnIDSeq)
	if err != nil {
		return nil, err
	}

	return &TurnRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the ID sequence.
func (r *TurnRepository) Close() error {
	return r.idSeq.Release()
}

// Save persists a new turn with a fresh ID.
func (r *TurnRepository) Save(ctx context.Context, turn *core.Turn) (*core.Turn, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapStorage("save turn", err)
	}
	if err := core.ValidateTurn(turn); err != nil {
		return nil, wrapStorage("save turn", err)
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		nextID, err := r.idSeq.Next()
		if err != nil {
			return err
		}
		// BadgerDB sequences can return 0 on first call, so we skip it
		if nextID == 0 {
			nextID, err = r.idSeq.Next()
			if err != nil {
				return err
			}
		}
		turn.ID = core.ID(nextID)

		turn.InsertedAt = time.Now().UTC()
		turn.UpdatedAt = turn.InsertedAt

		if err := tx.Set(makeTurnKey(turn.ID), storage.MarshalTurn(turn)); err != nil {
			return err
		}
		if err := r.setIndices(tx, turn); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, wrapStorage("save turn", err)
	}

	return turn, nil
}

// UpdateTurns updates existing turns, keeping their indices in step.
func (r *TurnRepository) UpdateTurns(ctx context.Context, turns ...*core.Turn) ([]*core.Turn, error) {
	for _, turn := range turns {
		if err := core.ValidateTurn(turn); err != nil {
			return nil, wrapStorage("update turns", err)
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, turn := range turns {
			key := makeTurnKey(turn.ID)

			old, err := readTurn(tx, key)
			if err != nil {
				return err
			}
			if old == nil {
				return fmt.Errorf("%w: turn %d", storage.ErrNotFound, turn.ID)
			}

			turn.InsertedAt = old.InsertedAt
			turn.UpdatedAt = time.Now().UTC()

			if err := tx.Set(key, storage.MarshalTurn(turn)); err != nil {
				return err
			}
			if err := r.deleteIndices(tx, old); err != nil {
				return err
			}
			if err := r.setIndices(tx, turn); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, wrapStorage("update turns", err)
	}

	return turns, nil
}

// GetTurn retrieves a single turn by ID.
func (r *TurnRepository) GetTurn(ctx context.Context, id core.ID) (*core.Turn, error) {
	var result *core.Turn
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readTurn(tx, makeTurnKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	if err != nil {
		return nil, wrapStorage("get turn", err)
	}
	return result, nil
}

// GetTurns retrieves multiple turns by their IDs.
func (r *TurnRepository) GetTurns(ctx context.Context, ids ...core.ID) ([]*core.Turn, error) {
	var result []*core.Turn
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			turn, err := readTurn(tx, makeTurnKey(id))
			if err != nil {
				return err
			}
			if turn != nil {
				result = append(result, turn)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, wrapStorage("get turns", err)
	}
	return result, nil
}

// ListByClient returns a client's turns in order.
func (r *TurnRepository) ListByClient(ctx context.Context, clientID string) ([]*core.Turn, error) {
	var results []*core.Turn
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanClient(tx, clientID, func(id core.ID, _ float64) (bool, error) {
			turn, err := readTurn(tx, makeTurnKey(id))
			if err != nil {
				return false, err
			}
			if turn != nil {
				results = append(results, turn)
			}
			return true, nil
		})
	}, false)
	if err != nil {
		return nil, wrapStorage("list client turns", err)
	}
	return results, nil
}

// ListBySession returns a session's turns in sequence order.
func (r *TurnRepository) ListBySession(ctx context.Context, sessionID string) ([]*core.Turn, error) {
	var results []*core.Turn
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeSessionPrefix(sessionID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(prefix); iter.ValidForPrefix(prefix); iter.Next() {
			var id core.ID
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				id, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				return err
			}

			turn, err := readTurn(tx, makeTurnKey(id))
			if err != nil {
				return err
			}
			if turn != nil {
				results = append(results, turn)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, wrapStorage("list session turns", err)
	}
	return results, nil
}

// AdjacentTurn returns ref's nearest neighbour with a different order key.
func (r *TurnRepository) AdjacentTurn(ctx context.Context, ref *core.Turn, forward bool) (*core.Turn, error) {
	var result *core.Turn
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makeClientPrefix(ref.ClientID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = !forward
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// In both directions Seek lands on ref's own entry first
		for iter.Seek(makeClientOrderKey(ref)); iter.ValidForPrefix(prefix); iter.Next() {
			var id core.ID
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				id, _, err = parseClientOrderValue(val)
				return err
			}); err != nil {
				return err
			}
			if id == ref.ID {
				continue
			}

			turn, err := readTurn(tx, makeTurnKey(id))
			if err != nil {
				return err
			}
			if turn == nil || turn.OrderKey == ref.OrderKey {
				continue
			}
			result = turn
			return nil
		}
		return nil
	}, false)
	if err != nil {
		return nil, wrapStorage("find adjacent turn", err)
	}
	return result, nil
}

// MaxOrderIndex returns the largest OrderIndex among a client's turns.
func (r *TurnRepository) MaxOrderIndex(ctx context.Context, clientID string) (float64, bool, error) {
	var (
		maxIndex float64
		found    bool
	)
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanClient(tx, clientID, func(_ core.ID, index float64) (bool, error) {
			if !found || index > maxIndex {
				maxIndex = index
				found = true
			}
			return true, nil
		})
	}, false)
	if err != nil {
		return 0, false, wrapStorage("max order index", err)
	}
	return maxIndex, found, nil
}

// OrderIndexExists reports whether a turn of the client has exactly index.
func (r *TurnRepository) OrderIndexExists(ctx context.Context, clientID string, index float64) (bool, error) {
	var exists bool
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanClient(tx, clientID, func(_ core.ID, existing float64) (bool, error) {
			exists = existing == index
			return !exists, nil
		})
	}, false)
	if err != nil {
		return false, wrapStorage("check order index", err)
	}
	return exists, nil
}

// ListMissingEmbeddings pages through turns without embeddings in ID order.
func (r *TurnRepository) ListMissingEmbeddings(ctx context.Context, afterID core.ID, limit int) ([]*core.Turn, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}

	var results []*core.Turn
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := []byte(turnMissingPrefix)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(makeMissingKey(afterID + 1)); iter.ValidForPrefix(prefix) && len(results) < limit; iter.Next() {
			var id core.ID
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				id, err = storage.UnmarshalID(val)
				return err
			}); err != nil {
				return err
			}
			if id <= afterID {
				continue
			}

			turn, err := readTurn(tx, makeTurnKey(id))
			if err != nil {
				return err
			}
			if turn != nil {
				results = append(results, turn)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, wrapStorage("list missing embeddings", err)
	}
	return results, nil
}

// SessionStats summarizes a session's stored turns.
func (r *TurnRepository) SessionStats(ctx context.Context, sessionID string) (*core.SessionStats, error) {
	turns, err := r.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(turns) == 0 {
		return nil, wrapStorage("session stats", fmt.Errorf("%w: session %q", storage.ErrNotFound, sessionID))
	}

	stats := &core.SessionStats{
		SessionID:      sessionID,
		TotalTurns:     len(turns),
		FirstSequence:  turns[0].SequenceInSession,
		LastSequence:   turns[len(turns)-1].SequenceInSession,
		FirstTimestamp: turns[0].Timestamp,
		LastTimestamp:  turns[0].Timestamp,
	}

	seen := make(map[core.ID]bool, len(turns))
	var totalChars int
	for _, turn := range turns {
		if turn.HasEmbedding() {
			stats.WithEmbeddings++
		} else {
			stats.WithoutEmbeddings++
		}
		if seen[turn.Fingerprint] {
			stats.DuplicateTurns++
		}
		seen[turn.Fingerprint] = true
		totalChars += len([]rune(turn.Content))

		if turn.Timestamp.Before(stats.FirstTimestamp) {
			stats.FirstTimestamp = turn.Timestamp
		}
		if turn.Timestamp.After(stats.LastTimestamp) {
			stats.LastTimestamp = turn.Timestamp
		}
	}
	stats.AverageContentSize = float64(totalChars) / float64(len(turns))

	return stats, nil
}

// Helper methods

func (r *TurnRepository) setIndices(tx *badger.Txn, turn *core.Turn) error {
	if err := tx.Set(makeClientOrderKey(turn), makeClientOrderValue(turn)); err != nil {
		return err
	}
	if err := tx.Set(makeSessionKey(turn), storage.MarshalID(turn.ID)); err != nil {
		return err
	}
	if !turn.HasEmbedding() {
		if err := tx.Set(makeMissingKey(turn.ID), storage.MarshalID(turn.ID)); err != nil {
			return err
		}
	}
	return nil
}

func (r *TurnRepository) deleteIndices(tx *badger.Txn, turn *core.Turn) error {
	if err := tx.Delete(makeClientOrderKey(turn)); err != nil {
		return err
	}
	if err := tx.Delete(makeSessionKey(turn)); err != nil {
		return err
	}
	if !turn.HasEmbedding() {
		if err := tx.Delete(makeMissingKey(turn.ID)); err != nil {
			return err
		}
	}
	return nil
}

// scanClient walks a client's order index in order until fn returns false.
func scanClient(tx *badger.Txn, clientID string, fn func(id core.ID, index float64) (bool, error)) error {
	prefix := makeClientPrefix(clientID)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Seek(prefix); iter.ValidForPrefix(prefix); iter.Next() {
		var (
			id    core.ID
			index float64
		)
		if err := iter.Item().Value(func(val []byte) error {
			var err error
			id, index, err = parseClientOrderValue(val)
			return err
		}); err != nil {
			return err
		}
		more, err := fn(id, index)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}

// readTurn reads a turn from the transaction. Returns nil, nil if absent.
func readTurn(tx *badger.Txn, key []byte) (*core.Turn, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var turn *core.Turn
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		turn, unmarshalErr = storage.UnmarshalTurn(val)
		return unmarshalErr
	})
	return turn, err
}

// wrapStorage marks backend failures with core.ErrStorage. A missing record
// is not a failure and only gains the operation name.
func wrapStorage(op string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if errors.Is(err, badger.ErrDBClosed) {
		err = fmt.Errorf("%w: %w", storage.ErrStorageClosed, err)
	}
	return fmt.Errorf("%w: %s: %w", core.ErrStorage, op, err)
}

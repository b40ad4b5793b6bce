// Copyright 2025 The Recall Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package backfill

import (
	"context"

	"github.com/kentyler/recall/core"
)

const (
	// DefaultBatchSize is the default number of turns embedded per request
	DefaultBatchSize = 10
)

// MissingLister pages through turns that have no embedding.
type MissingLister interface {
	ListMissingEmbeddings(ctx context.Context, afterID core.ID, limit int) ([]*core.Turn, error)
}

// MissingIterator iterates over turns without embeddings in batches.
type MissingIterator struct {
	repo      MissingLister
	batchSize int
	afterID   core.ID
}

// NewMissingIterator creates a new iterator starting after afterID.
// batchSize: number of turns to fetch in each batch (must be > 0)
func NewMissingIterator(repo MissingLister, batchSize int, afterID core.ID) *MissingIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &MissingIterator{
		repo:      repo,
		batchSize: batchSize,
		afterID:   afterID,
	}
}

// ForEach calls fn for each batch in ID order. Paging continues after the
// last ID of every batch, so turns fn leaves unembedded are not revisited.
// Iteration stops on the first error from fn. Context cancellation is
// checked between batches.
func (it *MissingIterator) ForEach(ctx context.Context, fn func([]*core.Turn) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		turns, err := it.repo.ListMissingEmbeddings(ctx, it.afterID, it.batchSize)
		if err != nil {
			return err
		}
		if len(turns) == 0 {
			return nil
		}

		// Advance before fn so a failing batch is skipped, not retried forever
		it.afterID = turns[len(turns)-1].ID

		if err := fn(turns); err != nil {
			return err
		}

		if len(turns) < it.batchSize {
			return nil
		}
	}
}

// LastID returns the ID of the last turn handed to fn.
func (it *MissingIterator) LastID() core.ID {
	return it.afterID
}

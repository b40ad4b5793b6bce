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


package ordering

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/kentyler/recall/core"
	"github.com/kentyler/recall/storage"
)

// DefaultStep is the gap left after (or before) a single insertion bound.
const DefaultStep = 1.0

// ErrLookupRequired is returned when an Indexer is built without a Lookup.
var ErrLookupRequired = errors.New("turn lookup is required")

// Lookup is the read side of the turn store used to place turns.
type Lookup interface {
	GetTurn(ctx context.Context, id core.ID) (*core.Turn, error)
	AdjacentTurn(ctx context.Context, ref *core.Turn, forward bool) (*core.Turn, error)
	MaxOrderIndex(ctx context.Context, clientID string) (float64, bool, error)
	OrderIndexExists(ctx context.Context, clientID string, index float64) (bool, error)
}

// Indexer assigns turns a position in their client's total order.
// It is safe for concurrent use.
type Indexer struct {
	lookup Lookup
	step   float64
	now    func() time.Time
	logger *slog.Logger

	mu   sync.Mutex
	next map[string]float64 // Next append index per client, seeded from storage
}

// Option configures an Indexer.
type Option func(*Indexer) error

// WithStep sets the gap used when only one insertion bound exists.
func WithStep(step float64) Option {
	return func(ix *Indexer) error {
		if step <= 0 || math.IsNaN(step) || math.IsInf(step, 0) {
			return fmt.Errorf("%w: step %v", core.ErrInvalidIndex, step)
		}
		ix.step = step
		return nil
	}
}

// WithLogger sets the logger for the indexer.
func WithLogger(logger *slog.Logger) Option {
	return func(ix *Indexer) error {
		ix.logger = logger
		return nil
	}
}

// WithClock replaces time.Now for append positions.
func WithClock(now func() time.Time) Option {
	return func(ix *Indexer) error {
		ix.now = now
		return nil
	}
}

// NewIndexer creates an indexer reading existing positions through lookup.
func NewIndexer(lookup Lookup, opts ...Option) (*Indexer, error) {
	if lookup == nil {
		return nil, ErrLookupRequired
	}
	ix := &Indexer{
		lookup: lookup,
		step:   DefaultStep,
		now:    time.Now,
		logger: slog.Default(),
		next:   make(map[string]float64),
	}
	for _, opt := range opts {
		if err := opt(ix); err != nil {
			return nil, err
		}
	}
	ix.logger = ix.logger.With("component", "order-indexer")
	return ix, nil
}

// Assign computes the position of a new turn.
//
// An explicit placement is validated and used as is. An insertion placement
// lands strictly between its bounds; when only one bound is given the turn's
// neighbour on the other side is looked up. Without a placement the position
// is the timestamp in epoch seconds.
//
// ErrInvalidIndex and ErrReferenceNotFound are returned without side effects.
// Any other lookup failure falls back to the append position.
func (ix *Indexer) Assign(ctx context.Context, placement core.Placement, timestamp time.Time, clientID string) (core.Position, error) {
	switch {
	case placement.IsExplicit():
		index := *placement.OrderIndex
		if err := core.ValidateOrderIndex(index); err != nil {
			return core.Position{}, err
		}
		ix.observe(clientID, index)
		return core.Position{Index: index, Key: EncodeIndex(index)}, nil

	case placement.IsInsertion():
		pos, err := ix.insertionPosition(ctx, placement, clientID)
		if err == nil {
			ix.logger.Debug("insertion position assigned", "client", clientID, "index", pos.Index, "key", pos.Key)
			return pos, nil
		}
		if errors.Is(err, core.ErrInvalidIndex) || errors.Is(err, core.ErrReferenceNotFound) {
			return core.Position{}, err
		}
		ix.logger.Error("insertion lookup failed, falling back to append order",
			"client", clientID, "after", placement.InsertAfter, "before", placement.InsertBefore, "err", err)
		return ix.appendPosition(ctx, ix.now(), clientID), nil

	default:
		return ix.appendPosition(ctx, timestamp, clientID), nil
	}
}

// NextAppendIndex returns one more than the client's largest index, or 1 for
// a client with no turns. Storage is read once per client; later calls are
// served from an in-memory sequence so concurrent callers never share a value.
// A storage failure falls back to the current time in epoch seconds.
func (ix *Indexer) NextAppendIndex(ctx context.Context, clientID string) float64 {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	next, seeded := ix.next[clientID]
	if !seeded {
		maxIndex, found, err := ix.lookup.MaxOrderIndex(ctx, clientID)
		if err != nil {
			ix.logger.Error("failed to read max order index, using timestamp", "client", clientID, "err", err)
			return epochSeconds(ix.now())
		}
		next = 1
		if found {
			next = maxIndex + 1
		}
	}
	ix.next[clientID] = next + 1
	return next
}

// CheckIndexAvailable reports whether no turn of the client holds index.
// A taken index is logged but is not an error; lookup failures report false.
func (ix *Indexer) CheckIndexAvailable(ctx context.Context, index float64, clientID string) bool {
	exists, err := ix.lookup.OrderIndexExists(ctx, clientID, index)
	if err != nil {
		ix.logger.Error("failed to check order index availability", "client", clientID, "index", index, "err", err)
		return false
	}
	if exists {
		ix.logger.Warn("order index already in use", "client", clientID, "index", index)
		return false
	}
	return true
}

// observe keeps the append sequence ahead of explicitly assigned indices.
func (ix *Indexer) observe(clientID string, index float64) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if next, seeded := ix.next[clientID]; seeded && index >= next {
		ix.next[clientID] = math.Floor(index) + 1
	}
}

func (ix *Indexer) appendPosition(ctx context.Context, timestamp time.Time, clientID string) core.Position {
	var index float64
	if timestamp.IsZero() {
		index = ix.NextAppendIndex(ctx, clientID)
	} else {
		index = epochSeconds(timestamp)
		if index < 0 {
			index = epochSeconds(ix.now())
		}
		ix.observe(clientID, index)
	}
	return core.Position{Index: index, Key: EncodeIndex(index)}
}

func (ix *Indexer) insertionPosition(ctx context.Context, p core.Placement, clientID string) (core.Position, error) {
	var lower, upper *core.Turn
	var err error

	if p.InsertAfter != 0 {
		if lower, err = ix.reference(ctx, p.InsertAfter, clientID); err != nil {
			return core.Position{}, err
		}
	}
	if p.InsertBefore != 0 {
		if upper, err = ix.reference(ctx, p.InsertBefore, clientID); err != nil {
			return core.Position{}, err
		}
	}

	// Complete a one-sided insertion with the neighbour on the open side
	switch {
	case upper == nil:
		if upper, err = ix.lookup.AdjacentTurn(ctx, lower, true); err != nil {
			return core.Position{}, err
		}
	case lower == nil:
		if lower, err = ix.lookup.AdjacentTurn(ctx, upper, false); err != nil {
			return core.Position{}, err
		}
	}

	switch {
	case lower != nil && upper != nil:
		return ix.between(lower, upper)
	case lower != nil:
		return ix.after(lower)
	default:
		return ix.before(upper)
	}
}

func (ix *Indexer) reference(ctx context.Context, id core.ID, clientID string) (*core.Turn, error) {
	turn, err := ix.lookup.GetTurn(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: turn %d", core.ErrReferenceNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if turn.ClientID != clientID {
		return nil, fmt.Errorf("%w: turn %d belongs to another client", core.ErrReferenceNotFound, id)
	}
	return turn, nil
}

// between places a turn at the midpoint of its neighbours. The key is the
// encoded midpoint, so index and key order agree with explicit and appended
// turns; the key is only subdivided once the float view cannot split the gap
// or a neighbour already carries a subdivided key.
func (ix *Indexer) between(lower, upper *core.Turn) (core.Position, error) {
	if lower.OrderKey >= upper.OrderKey {
		return core.Position{}, fmt.Errorf("%w: turn %d does not precede turn %d", core.ErrInvalidIndex, lower.ID, upper.ID)
	}

	a, b := lower.OrderIndex, upper.OrderIndex
	index := a + (b-a)/2
	if index > a && index < b {
		if key := EncodeIndex(index); key > lower.OrderKey && key < upper.OrderKey {
			return core.Position{Index: index, Key: key}, nil
		}
	}

	key, err := KeyBetween(lower.OrderKey, upper.OrderKey, true)
	if err != nil {
		return core.Position{}, err
	}
	if !(index > a && index < b) {
		// The key still orders the turn; only the float view collides
		ix.logger.Warn("order index precision exhausted", "lower", a, "upper", b, "key", key)
		index = a
	}
	return core.Position{Index: index, Key: key}, nil
}

func (ix *Indexer) after(lower *core.Turn) (core.Position, error) {
	index := lower.OrderIndex + ix.step
	key := EncodeIndex(index)
	if key <= lower.OrderKey {
		var err error
		if key, err = KeyBetween(lower.OrderKey, "", false); err != nil {
			return core.Position{}, err
		}
	}
	return core.Position{Index: index, Key: key}, nil
}

func (ix *Indexer) before(upper *core.Turn) (core.Position, error) {
	index := upper.OrderIndex - ix.step
	if index < 0 {
		index = upper.OrderIndex / 2
	}
	key := EncodeIndex(index)
	if key >= upper.OrderKey {
		if upper.OrderKey == "" {
			// Nothing sorts below the empty key
			ix.logger.Warn("no order key below turn, sharing its position", "turn", upper.ID)
			return core.Position{Index: upper.OrderIndex, Key: ""}, nil
		}
		var err error
		if key, err = KeyBetween("", upper.OrderKey, true); err != nil {
			return core.Position{}, err
		}
	}
	return core.Position{Index: index, Key: key}, nil
}

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}

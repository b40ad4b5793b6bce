package ordering

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/kentyler/recall/core"
	"github.com/kentyler/recall/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memLookup is an in-memory Lookup over a fixed set of turns.
type memLookup struct {
	mu    sync.Mutex
	turns map[core.ID]*core.Turn
	err   error
	reads int
}

func newMemLookup(turns ...*core.Turn) *memLookup {
	m := &memLookup{turns: make(map[core.ID]*core.Turn)}
	for _, turn := range turns {
		m.turns[turn.ID] = turn
	}
	return m
}

func (m *memLookup) add(turn *core.Turn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns[turn.ID] = turn
}

func (m *memLookup) GetTurn(ctx context.Context, id core.ID) (*core.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	turn, ok := m.turns[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return turn, nil
}

func (m *memLookup) AdjacentTurn(ctx context.Context, ref *core.Turn, forward bool) (*core.Turn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *core.Turn
	for _, turn := range m.turns {
		if turn.ClientID != ref.ClientID || turn.OrderKey == ref.OrderKey {
			continue
		}
		if forward && turn.OrderKey > ref.OrderKey && (best == nil || turn.OrderKey < best.OrderKey) {
			best = turn
		}
		if !forward && turn.OrderKey < ref.OrderKey && (best == nil || turn.OrderKey > best.OrderKey) {
			best = turn
		}
	}
	return best, nil
}

func (m *memLookup) MaxOrderIndex(ctx context.Context, clientID string) (float64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.err != nil {
		return 0, false, m.err
	}
	var maxIndex float64
	found := false
	for _, turn := range m.turns {
		if turn.ClientID == clientID && (!found || turn.OrderIndex > maxIndex) {
			maxIndex, found = turn.OrderIndex, true
		}
	}
	return maxIndex, found, nil
}

func (m *memLookup) OrderIndexExists(ctx context.Context, clientID string, index float64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	for _, turn := range m.turns {
		if turn.ClientID == clientID && turn.OrderIndex == index {
			return true, nil
		}
	}
	return false, nil
}

func storedTurn(id core.ID, clientID string, index float64) *core.Turn {
	turn := core.NewTurn(&core.Draft{ClientID: clientID, Content: "stored"}, core.Position{Index: index, Key: EncodeIndex(index)})
	turn.ID = id
	return turn
}

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestIndexer(t *testing.T, lookup Lookup) *Indexer {
	t.Helper()
	ix, err := NewIndexer(lookup, WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return ix
}

func ptr(f float64) *float64 { return &f }

func TestNewIndexer(t *testing.T) {
	_, err := NewIndexer(nil)
	assert.ErrorIs(t, err, ErrLookupRequired)

	_, err = NewIndexer(newMemLookup(), WithStep(0))
	assert.ErrorIs(t, err, core.ErrInvalidIndex)

	ix, err := NewIndexer(newMemLookup(), WithStep(0.5))
	require.NoError(t, err)
	assert.Equal(t, 0.5, ix.step)
}

func TestAssign_Explicit(t *testing.T) {
	ix := newTestIndexer(t, newMemLookup())

	pos, err := ix.Assign(context.Background(), core.Placement{OrderIndex: ptr(5)}, time.Time{}, "c")
	require.NoError(t, err)
	assert.Equal(t, 5.0, pos.Index)
	assert.Equal(t, EncodeIndex(5), pos.Key)

	pos, err = ix.Assign(context.Background(), core.Placement{OrderIndex: ptr(0)}, time.Time{}, "c")
	require.NoError(t, err)
	assert.Equal(t, 0.0, pos.Index)
	assert.Equal(t, "", pos.Key)
}

func TestAssign_ExplicitInvalid(t *testing.T) {
	lookup := newMemLookup(storedTurn(1, "c", 3))
	ix := newTestIndexer(t, lookup)
	ctx := context.Background()

	for _, index := range []float64{-1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := ix.Assign(ctx, core.Placement{OrderIndex: ptr(index)}, fixedNow, "c")
		assert.ErrorIs(t, err, core.ErrInvalidIndex, "index %v", index)
	}

	// Rejected placements leave the append sequence untouched
	assert.Equal(t, 4.0, ix.NextAppendIndex(ctx, "c"))
}

func TestAssign_AppendUsesTimestamp(t *testing.T) {
	ix := newTestIndexer(t, newMemLookup())
	ts := time.Date(2025, 1, 2, 3, 4, 5, 500_000_000, time.UTC)

	pos, err := ix.Assign(context.Background(), core.Placement{}, ts, "c")
	require.NoError(t, err)
	assert.Equal(t, float64(ts.Unix())+0.5, pos.Index)
	assert.Equal(t, EncodeIndex(pos.Index), pos.Key)
}

func TestAssign_AppendMonotonicTimestamps(t *testing.T) {
	ix := newTestIndexer(t, newMemLookup())
	ctx := context.Background()

	var prev core.Position
	for i := 0; i < 50; i++ {
		pos, err := ix.Assign(ctx, core.Placement{}, fixedNow.Add(time.Duration(i)*time.Millisecond), "c")
		require.NoError(t, err)
		if i > 0 {
			assert.Greater(t, pos.Index, prev.Index)
			assert.Greater(t, pos.Key, prev.Key)
		}
		prev = pos
	}
}

func TestAssign_AppendWithoutTimestamp(t *testing.T) {
	ix := newTestIndexer(t, newMemLookup(storedTurn(1, "c", 7)))

	pos, err := ix.Assign(context.Background(), core.Placement{}, time.Time{}, "c")
	require.NoError(t, err)
	assert.Equal(t, 8.0, pos.Index)
}

func TestAssign_InsertBetween(t *testing.T) {
	a, b := storedTurn(1, "c", 1), storedTurn(2, "c", 2)
	ix := newTestIndexer(t, newMemLookup(a, b))

	pos, err := ix.Assign(context.Background(), core.Placement{InsertAfter: a.ID, InsertBefore: b.ID}, fixedNow, "c")
	require.NoError(t, err)
	assert.Equal(t, 1.5, pos.Index)
	assert.Greater(t, pos.Key, a.OrderKey)
	assert.Less(t, pos.Key, b.OrderKey)
}

func TestAssign_InsertedKeyMatchesIndex(t *testing.T) {
	a, b := storedTurn(1, "c", 1), storedTurn(2, "c", 3)
	lookup := newMemLookup(a, b)
	ix := newTestIndexer(t, lookup)
	ctx := context.Background()

	pos, err := ix.Assign(ctx, core.Placement{InsertAfter: a.ID, InsertBefore: b.ID}, fixedNow, "c")
	require.NoError(t, err)
	assert.Equal(t, 2.0, pos.Index)
	assert.Equal(t, EncodeIndex(2), pos.Key)

	inserted := core.NewTurn(&core.Draft{ClientID: "c", Content: "inserted"}, pos)
	inserted.ID = 3
	lookup.add(inserted)

	// Explicit turns landing on either side of the inserted one sort the same
	// way by index and by key
	for _, index := range []float64{1.5, 1.9, 1.99, 1.999999, 2.000001, 2.01, 2.5} {
		explicit, err := ix.Assign(ctx, core.Placement{OrderIndex: ptr(index)}, fixedNow, "c")
		require.NoError(t, err)
		assert.Equal(t, explicit.Index < inserted.OrderIndex, explicit.Key < inserted.OrderKey, "index %v", index)
		assert.Equal(t, explicit.Index > inserted.OrderIndex, explicit.Key > inserted.OrderKey, "index %v", index)
	}

	// A one-sided insertion after the inserted turn sees its real neighbour
	next, err := ix.Assign(ctx, core.Placement{InsertAfter: inserted.ID}, fixedNow, "c")
	require.NoError(t, err)
	assert.Equal(t, 2.5, next.Index)
	assert.Equal(t, EncodeIndex(2.5), next.Key)
}

func TestAssign_InsertionFallsBackToSubdividedKey(t *testing.T) {
	// Adjacent floats leave no midpoint to encode
	lo := 1.0
	hi := math.Nextafter(lo, 2)
	a, b := storedTurn(1, "c", lo), storedTurn(2, "c", hi)
	ix := newTestIndexer(t, newMemLookup(a, b))

	pos, err := ix.Assign(context.Background(), core.Placement{InsertAfter: a.ID, InsertBefore: b.ID}, fixedNow, "c")
	require.NoError(t, err)
	assert.Equal(t, lo, pos.Index)
	assert.Greater(t, pos.Key, a.OrderKey)
	assert.Less(t, pos.Key, b.OrderKey)
}

func TestAssign_InsertAfterUsesNeighbour(t *testing.T) {
	a, b := storedTurn(1, "c", 1), storedTurn(2, "c", 2)
	ix := newTestIndexer(t, newMemLookup(a, b))

	pos, err := ix.Assign(context.Background(), core.Placement{InsertAfter: a.ID}, fixedNow, "c")
	require.NoError(t, err)
	assert.Greater(t, pos.Key, a.OrderKey)
	assert.Less(t, pos.Key, b.OrderKey)
}

func TestAssign_InsertBeforeUsesNeighbour(t *testing.T) {
	a, b := storedTurn(1, "c", 1), storedTurn(2, "c", 2)
	ix := newTestIndexer(t, newMemLookup(a, b))

	pos, err := ix.Assign(context.Background(), core.Placement{InsertBefore: b.ID}, fixedNow, "c")
	require.NoError(t, err)
	assert.Greater(t, pos.Key, a.OrderKey)
	assert.Less(t, pos.Key, b.OrderKey)
}

func TestAssign_InsertAfterLast(t *testing.T) {
	a := storedTurn(1, "c", 4)
	ix := newTestIndexer(t, newMemLookup(a))

	pos, err := ix.Assign(context.Background(), core.Placement{InsertAfter: a.ID}, fixedNow, "c")
	require.NoError(t, err)
	assert.Equal(t, 5.0, pos.Index)
	assert.Equal(t, EncodeIndex(5), pos.Key)
}

func TestAssign_InsertBeforeFirst(t *testing.T) {
	a := storedTurn(1, "c", 4)
	ix := newTestIndexer(t, newMemLookup(a))

	pos, err := ix.Assign(context.Background(), core.Placement{InsertBefore: a.ID}, fixedNow, "c")
	require.NoError(t, err)
	assert.Equal(t, 3.0, pos.Index)
	assert.Less(t, pos.Key, a.OrderKey)

	small := storedTurn(2, "d", 0.5)
	ix = newTestIndexer(t, newMemLookup(small))
	pos, err = ix.Assign(context.Background(), core.Placement{InsertBefore: small.ID}, fixedNow, "d")
	require.NoError(t, err)
	assert.Equal(t, 0.25, pos.Index)
	assert.Less(t, pos.Key, small.OrderKey)
}

func TestAssign_RepeatedInsertionKeepsOrder(t *testing.T) {
	a, b := storedTurn(1, "c", 1), storedTurn(2, "c", 2)
	lookup := newMemLookup(a, b)
	ix := newTestIndexer(t, lookup)
	ctx := context.Background()

	// Each new turn goes right after a, ahead of the previous insertion
	upper := b
	for i := 0; i < 100; i++ {
		pos, err := ix.Assign(ctx, core.Placement{InsertAfter: a.ID, InsertBefore: upper.ID}, fixedNow, "c")
		require.NoError(t, err)
		require.Greater(t, pos.Key, a.OrderKey)
		require.Less(t, pos.Key, upper.OrderKey)

		turn := core.NewTurn(&core.Draft{ClientID: "c", Content: "inserted"}, pos)
		turn.ID = core.ID(10 + i)
		lookup.add(turn)
		upper = turn
	}

	keys := make(map[string]bool)
	var sorted []string
	for _, turn := range lookup.turns {
		keys[turn.OrderKey] = true
		sorted = append(sorted, turn.OrderKey)
	}
	sort.Strings(sorted)
	assert.Len(t, keys, 102, "every insertion got its own key")
	assert.Equal(t, a.OrderKey, sorted[0])
	assert.Equal(t, b.OrderKey, sorted[len(sorted)-1])
	assert.Equal(t, upper.OrderKey, sorted[1])
}

func TestAssign_ReferenceNotFound(t *testing.T) {
	a := storedTurn(1, "c", 1)
	ix := newTestIndexer(t, newMemLookup(a, storedTurn(2, "other", 2)))
	ctx := context.Background()

	_, err := ix.Assign(ctx, core.Placement{InsertAfter: 99}, fixedNow, "c")
	assert.ErrorIs(t, err, core.ErrReferenceNotFound)

	_, err = ix.Assign(ctx, core.Placement{InsertAfter: a.ID, InsertBefore: 99}, fixedNow, "c")
	assert.ErrorIs(t, err, core.ErrReferenceNotFound)

	// Turns of another client cannot anchor an insertion
	_, err = ix.Assign(ctx, core.Placement{InsertAfter: 2}, fixedNow, "c")
	assert.ErrorIs(t, err, core.ErrReferenceNotFound)
}

func TestAssign_InsertBoundsReversed(t *testing.T) {
	a, b := storedTurn(1, "c", 1), storedTurn(2, "c", 2)
	ix := newTestIndexer(t, newMemLookup(a, b))

	_, err := ix.Assign(context.Background(), core.Placement{InsertAfter: b.ID, InsertBefore: a.ID}, fixedNow, "c")
	assert.ErrorIs(t, err, core.ErrInvalidIndex)
}

func TestAssign_LookupFailureFallsBackToAppend(t *testing.T) {
	lookup := newMemLookup(storedTurn(1, "c", 1))
	lookup.err = errors.New("connection reset")
	ix := newTestIndexer(t, lookup)

	pos, err := ix.Assign(context.Background(), core.Placement{InsertAfter: 1}, time.Time{}, "c")
	require.NoError(t, err)
	assert.Equal(t, epochSeconds(fixedNow), pos.Index)
	assert.Equal(t, EncodeIndex(pos.Index), pos.Key)
}

func TestNextAppendIndex(t *testing.T) {
	lookup := newMemLookup(storedTurn(1, "c", 3))
	ix := newTestIndexer(t, lookup)
	ctx := context.Background()

	assert.Equal(t, 4.0, ix.NextAppendIndex(ctx, "c"))
	assert.Equal(t, 5.0, ix.NextAppendIndex(ctx, "c"))
	assert.Equal(t, 1.0, ix.NextAppendIndex(ctx, "fresh"))
	assert.Equal(t, 2, lookup.reads, "storage is read once per client")
}

func TestNextAppendIndex_FollowsExplicitIndices(t *testing.T) {
	ix := newTestIndexer(t, newMemLookup())
	ctx := context.Background()

	assert.Equal(t, 1.0, ix.NextAppendIndex(ctx, "c"))
	_, err := ix.Assign(ctx, core.Placement{OrderIndex: ptr(10.5)}, time.Time{}, "c")
	require.NoError(t, err)
	assert.Equal(t, 11.0, ix.NextAppendIndex(ctx, "c"))
}

func TestNextAppendIndex_Concurrent(t *testing.T) {
	ix := newTestIndexer(t, newMemLookup(storedTurn(1, "c", 10)))
	ctx := context.Background()

	const workers = 50
	results := make(chan float64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- ix.NextAppendIndex(ctx, "c")
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[float64]bool)
	for index := range results {
		assert.False(t, seen[index], "index %v handed out twice", index)
		seen[index] = true
		assert.Greater(t, index, 10.0)
	}
	assert.Len(t, seen, workers)
}

func TestNextAppendIndex_LookupFailure(t *testing.T) {
	lookup := newMemLookup()
	lookup.err = errors.New("unavailable")
	ix := newTestIndexer(t, lookup)

	assert.Equal(t, epochSeconds(fixedNow), ix.NextAppendIndex(context.Background(), "c"))
}

func TestCheckIndexAvailable(t *testing.T) {
	lookup := newMemLookup(storedTurn(1, "c", 3))
	ix := newTestIndexer(t, lookup)
	ctx := context.Background()

	assert.False(t, ix.CheckIndexAvailable(ctx, 3, "c"))
	assert.True(t, ix.CheckIndexAvailable(ctx, 4, "c"))
	assert.True(t, ix.CheckIndexAvailable(ctx, 3, "other"))

	lookup.err = errors.New("unavailable")
	assert.False(t, ix.CheckIndexAvailable(ctx, 4, "c"))
}

package backfill

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/kentyler/recall/ai/mock"
	"github.com/kentyler/recall/core"
	"github.com/kentyler/recall/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		BatchSize:      3,
		ReportInterval: 3,
		MaxRetries:     2,
		RetryDelay:     time.Millisecond,
		MaxRetryDelay:  5 * time.Millisecond,
		Dimensions:     4,
	}
}

func smallEmbedder() *mock.MockEmbedder {
	embedder := mock.NewMockEmbedder()
	embedder.Dimensions = 4
	return embedder
}

func TestBackfiller_Run(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	added := addTurns(t, db.turns, 12, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)

	var buf bytes.Buffer
	embedder := smallEmbedder()
	backfiller, err := NewBackfiller(db.turns, db.checkpoints, embedder, testConfig(), &buf)
	require.NoError(t, err)

	report, err := backfiller.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, report.Embedded)
	assert.Zero(t, report.Failed)
	assert.Equal(t, added[9].ID, report.LastID)
	assert.Equal(t, 4, embedder.CallCount(), "batches of 3 over 10 turns")

	assert.Empty(t, listMissing(t, db))
	for _, turn := range added[:10] {
		stored, err := db.turns.GetTurn(ctx, turn.ID)
		require.NoError(t, err)
		assert.Len(t, stored.Embedding, 4, "turn %d should have embedding", turn.ID)
		assert.Empty(t, stored.EmbeddingError)
	}

	output := buf.String()
	assert.Contains(t, output, "Backfilling 10 turns")
	assert.Contains(t, output, "10/10", "should show completion")
	assert.Contains(t, output, "Embedded 10 turns, 0 failed")

	// A clean run leaves no checkpoint behind
	checkpoint, err := db.checkpoints.LoadCheckpoint(ctx, CheckpointName)
	require.NoError(t, err)
	assert.Nil(t, checkpoint)
}

func TestBackfiller_NothingMissing(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	addTurns(t, db.turns, 3)

	var buf bytes.Buffer
	embedder := smallEmbedder()
	backfiller, err := NewBackfiller(db.turns, db.checkpoints, embedder, testConfig(), &buf)
	require.NoError(t, err)

	report, err := backfiller.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Embedded)
	assert.Zero(t, embedder.CallCount())
	assert.Contains(t, buf.String(), "No turns missing embeddings")
}

func TestBackfiller_FailedBatchIsSkipped(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	added := addTurns(t, db.turns, 9, 1, 2, 3, 4, 5, 6, 7, 8, 9)

	embedder := smallEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float64, error) {
		if slices.Contains(texts, "turn 4") {
			return nil, errors.New("content rejected")
		}
		out := make([][]float64, len(texts))
		for i, text := range texts {
			out[i] = mock.GenerateVector(text, 4)
		}
		return out, nil
	}

	var buf bytes.Buffer
	backfiller, err := NewBackfiller(db.turns, db.checkpoints, embedder, testConfig(), &buf)
	require.NoError(t, err)

	report, err := backfiller.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmbeddingProvider)
	assert.Contains(t, err.Error(), "content rejected")

	// The batch after the failure still ran
	assert.Equal(t, 6, report.Embedded)
	assert.Equal(t, 3, report.Failed)
	assert.Equal(t, added[8].ID, report.LastID)

	missing := listMissing(t, db)
	require.Len(t, missing, 3)
	assert.Equal(t, added[3].ID, missing[0].ID)

	// The checkpoint is kept so the failure is visible
	checkpoint, err := db.checkpoints.LoadCheckpoint(ctx, CheckpointName)
	require.NoError(t, err)
	require.NotNil(t, checkpoint)
	assert.Equal(t, added[8].ID, checkpoint.LastID)
	assert.Equal(t, 6, checkpoint.Processed)
}

func TestBackfiller_Resume(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	added := addTurns(t, db.turns, 6, 1, 2, 3, 4, 5, 6)

	require.NoError(t, db.checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{
		Name:      CheckpointName,
		LastID:    added[2].ID,
		Processed: 3,
	}))

	config := testConfig()
	config.Resume = true

	var buf bytes.Buffer
	embedder := smallEmbedder()
	backfiller, err := NewBackfiller(db.turns, db.checkpoints, embedder, config, &buf)
	require.NoError(t, err)

	report, err := backfiller.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Embedded)
	assert.Equal(t, []string{"turn 4", "turn 5", "turn 6"}, embedder.Texts())
	assert.Contains(t, buf.String(), "Resuming after turn")

	// Turns before the checkpoint are untouched
	missing := listMissing(t, db)
	require.Len(t, missing, 3)
	assert.Equal(t, added[2].ID, missing[2].ID)
}

func TestBackfiller_ResumeIgnoredWithoutFlag(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	added := addTurns(t, db.turns, 4, 1, 2, 3, 4)

	require.NoError(t, db.checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{
		Name:   CheckpointName,
		LastID: added[1].ID,
	}))

	backfiller, err := NewBackfiller(db.turns, db.checkpoints, smallEmbedder(), testConfig(), nil)
	require.NoError(t, err)

	report, err := backfiller.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Embedded)
}

func TestBackfiller_WithoutCheckpoints(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	addTurns(t, db.turns, 2, 1, 2)

	config := testConfig()
	config.Resume = true
	backfiller, err := NewBackfiller(db.turns, nil, smallEmbedder(), config, nil)
	require.NoError(t, err)

	report, err := backfiller.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Embedded)
}

func TestBackfiller_ContextCancellation(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	addTurns(t, db.turns, 10, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	callCount := 0
	embedder := smallEmbedder()
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float64, error) {
		callCount++
		if callCount == 2 {
			cancel()
		}
		out := make([][]float64, len(texts))
		for i := range out {
			out[i] = []float64{1, 0, 0, 0}
		}
		return out, nil
	}

	backfiller, err := NewBackfiller(db.turns, db.checkpoints, embedder, testConfig(), nil)
	require.NoError(t, err)

	report, err := backfiller.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 6, report.Embedded)
	assert.Equal(t, 2, callCount)
}

func TestBackfiller_Analyze(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	// "turn 1" and "turn 2" are six characters each
	addTurns(t, db.turns, 3, 1, 2)

	embedder := smallEmbedder()
	backfiller, err := NewBackfiller(db.turns, db.checkpoints, embedder, testConfig(), nil)
	require.NoError(t, err)

	estimate, err := backfiller.Analyze(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, estimate.Turns)
	assert.Equal(t, 12, estimate.Characters)
	assert.Equal(t, 3, estimate.Tokens)
	assert.InDelta(t, 0.00000006, estimate.CostUSD, 1e-12)
	assert.Zero(t, embedder.CallCount(), "analysis must not call the provider")
}

func TestNewBackfiller_Validation(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := NewBackfiller(nil, nil, smallEmbedder(), nil, nil)
	assert.ErrorIs(t, err, ErrRepositoryRequired)

	_, err = NewBackfiller(db.turns, nil, nil, nil, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	config := testConfig()
	config.MaxRetries = 0
	_, err = NewBackfiller(db.turns, nil, smallEmbedder(), config, nil)
	assert.ErrorIs(t, err, retry.ErrInvalidMaxAttempts)

	backfiller, err := NewBackfiller(db.turns, nil, smallEmbedder(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), backfiller.config)
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Greater(t, config.BatchSize, 0, "batch size should be positive")
	assert.Greater(t, config.ReportInterval, 0, "report interval should be positive")
	assert.Greater(t, config.MaxRetries, 0, "max retries should be positive")
	assert.Greater(t, config.RetryDelay, time.Duration(0), "retry delay should be positive")
	assert.False(t, config.Resume)
}

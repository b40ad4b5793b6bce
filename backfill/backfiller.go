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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"
	"unicode/utf8"

	"github.com/kentyler/recall/ai"
	"github.com/kentyler/recall/core"
	"github.com/kentyler/recall/retry"
	"github.com/kentyler/recall/storage"
)

// CheckpointName is the checkpoint a backfill run records its position under.
const CheckpointName = "embedding-backfill"

// Cost model for text-embedding-3-small.
const (
	TokensPerChar   = 0.25
	CostPer1KTokens = 0.00002
)

// Repository is the storage a backfill reads from and writes to.
type Repository interface {
	MissingLister
	TurnUpdater
}

// Config holds configuration for a backfill run.
type Config struct {
	// BatchSize is the number of turns embedded per provider request
	BatchSize int

	// ReportInterval is how often to report progress (number of turns)
	ReportInterval int

	// MaxRetries is the maximum number of attempts per batch
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// MaxRetryDelay caps the backoff delay
	MaxRetryDelay time.Duration

	// BatchDelay is the pause between batches, to stay under rate limits
	BatchDelay time.Duration

	// Dimensions is the expected vector length; 0 accepts any
	Dimensions int

	// Resume continues from the last checkpoint instead of the first turn
	Resume bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: DefaultBatchSize,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
		MaxRetryDelay:  10 * time.Second,
		BatchDelay:     1 * time.Second,
	}
}

// Estimate is the projected size and cost of a backfill.
type Estimate struct {
	Turns      int
	Characters int
	Tokens     int
	CostUSD    float64
}

// Report summarizes a backfill run.
type Report struct {
	Embedded int
	Failed   int
	LastID   core.ID
	Elapsed  time.Duration
}

// Backfiller re-embeds every turn stored without an embedding.
type Backfiller struct {
	repo        Repository
	checkpoints storage.CheckpointRepository
	config      *Config
	progress    io.Writer
	processor   *BatchProcessor
	logger      *slog.Logger
}

// NewBackfiller creates a new backfiller.
// checkpoints may be nil, which disables resuming.
// progress: where to write progress output (typically os.Stderr)
func NewBackfiller(repo Repository, checkpoints storage.CheckpointRepository, embedder ai.Embedder, config *Config, progress io.Writer) (*Backfiller, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	policy := retry.Policy{
		MaxAttempts: config.MaxRetries,
		BaseDelay:   config.RetryDelay,
		MaxDelay:    config.MaxRetryDelay,
	}
	if policy.MaxAttempts <= 0 {
		return nil, retry.ErrInvalidMaxAttempts
	}

	return &Backfiller{
		repo:        repo,
		checkpoints: checkpoints,
		config:      config,
		progress:    progress,
		processor:   NewBatchProcessor(repo, embedder, policy, config.Dimensions),
		logger:      slog.Default().With("component", "backfill"),
	}, nil
}

// Analyze counts the turns missing embeddings and estimates the cost of
// embedding them. It does not call the provider.
func (b *Backfiller) Analyze(ctx context.Context) (*Estimate, error) {
	return b.analyze(ctx, 0)
}

// Run embeds every turn missing an embedding. A failed batch is skipped and
// reported; the run carries on with the next one. The returned error joins
// all batch failures.
func (b *Backfiller) Run(ctx context.Context) (*Report, error) {
	var (
		afterID   core.ID
		processed int
	)
	if b.config.Resume && b.checkpoints != nil {
		checkpoint, err := b.checkpoints.LoadCheckpoint(ctx, CheckpointName)
		if err != nil {
			return nil, fmt.Errorf("failed to load checkpoint: %w", err)
		}
		if checkpoint != nil {
			afterID, processed = checkpoint.LastID, checkpoint.Processed
			fmt.Fprintf(b.progress, "Resuming after turn %d (%d already embedded)\n", afterID, processed)
		}
	}

	estimate, err := b.analyze(ctx, afterID)
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	report := &Report{LastID: afterID}
	if estimate.Turns == 0 {
		fmt.Fprintf(b.progress, "No turns missing embeddings\n")
		return report, nil
	}

	fmt.Fprintf(b.progress, "Backfilling %d turns (batch size: %d, estimated cost: $%.4f)\n",
		estimate.Turns, b.config.BatchSize, estimate.CostUSD)

	tracker := NewProgressTracker(b.progress, estimate.Turns, b.config.ReportInterval)
	tracker.Start()

	var errs []error
	first := true
	iterator := NewMissingIterator(b.repo, b.config.BatchSize, afterID)
	err = iterator.ForEach(ctx, func(turns []*core.Turn) error {
		if !first {
			if err := pause(ctx, b.config.BatchDelay); err != nil {
				return err
			}
		}
		first = false

		lo, hi := turns[0].ID, turns[len(turns)-1].ID
		if err := b.processor.Process(ctx, turns); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.Warn("batch failed, skipping", "from", lo, "to", hi, "err", err)
			errs = append(errs, fmt.Errorf("turns %d-%d: %w", lo, hi, err))
			tracker.Add(0, len(turns))
		} else {
			tracker.Add(len(turns), 0)
		}

		report.LastID = hi
		done, _ := tracker.Counts()
		b.saveCheckpoint(ctx, hi, processed+done)
		return nil
	})
	tracker.Finish()

	report.Embedded, report.Failed = tracker.Counts()
	report.Elapsed = tracker.Elapsed()

	switch {
	case err != nil:
		errs = append(errs, err)
	case len(errs) == 0 && b.checkpoints != nil:
		if err := b.checkpoints.DeleteCheckpoint(ctx, CheckpointName); err != nil {
			b.logger.Warn("failed to clear checkpoint", "err", err)
		}
	}

	fmt.Fprintf(b.progress, "Backfill complete. Embedded %d turns, %d failed, in %v\n",
		report.Embedded, report.Failed, report.Elapsed.Round(time.Millisecond))

	return report, errors.Join(errs...)
}

func (b *Backfiller) analyze(ctx context.Context, afterID core.ID) (*Estimate, error) {
	estimate := &Estimate{}
	iterator := NewMissingIterator(b.repo, max(b.config.BatchSize, 100), afterID)
	err := iterator.ForEach(ctx, func(turns []*core.Turn) error {
		for _, turn := range turns {
			estimate.Turns++
			estimate.Characters += utf8.RuneCountInString(turn.Content)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	estimate.Tokens = int(math.Ceil(float64(estimate.Characters) * TokensPerChar))
	estimate.CostUSD = float64(estimate.Tokens) / 1000 * CostPer1KTokens
	return estimate, nil
}

func (b *Backfiller) saveCheckpoint(ctx context.Context, lastID core.ID, processed int) {
	if b.checkpoints == nil {
		return
	}
	checkpoint := &core.Checkpoint{
		Name:      CheckpointName,
		LastID:    lastID,
		Processed: processed,
	}
	if err := b.checkpoints.SaveCheckpoint(ctx, checkpoint); err != nil {
		b.logger.Warn("failed to save checkpoint", "lastID", lastID, "err", err)
	}
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

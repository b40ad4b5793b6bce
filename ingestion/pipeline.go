package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kentyler/recall/ai"
	"github.com/kentyler/recall/buffer"
	"github.com/kentyler/recall/core"
	"github.com/kentyler/recall/storage"
	"github.com/panjf2000/ants/v2"
)

// DefaultConcurrency is the number of drafts embedded and stored at once.
const DefaultConcurrency = 3

// Indexer assigns positions to drafts.
type Indexer interface {
	Assign(ctx context.Context, placement core.Placement, timestamp time.Time, clientID string) (core.Position, error)
	CheckIndexAvailable(ctx context.Context, index float64, clientID string) bool
}

// Result is the outcome for one draft. Exactly one of Turn and Err is set.
type Result struct {
	Draft *core.Draft
	Turn  *core.Turn
	Err   error
}

// ResultHandler receives the outcome of every accepted draft.
type ResultHandler func(Result)

// Pipeline positions, embeds and stores turn drafts.
// Positions are assigned synchronously in arrival order; embedding and
// storage run concurrently on a bounded worker pool.
type Pipeline struct {
	indexer     Indexer
	proc        processor
	pool        *ants.Pool
	concurrency int
	onResult    ResultHandler
	inflight    sync.WaitGroup
	logger      *slog.Logger
}

var _ buffer.TurnSink = (*Pipeline)(nil)

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithConcurrency sets how many drafts are embedded and stored at once.
// Default is DefaultConcurrency.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			return fmt.Errorf("%w: %d", ErrInvalidConcurrency, n)
		}
		p.concurrency = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithResultHandler sets a callback for drafts submitted through Accept.
func WithResultHandler(handler ResultHandler) Option {
	return func(p *Pipeline) error {
		p.onResult = handler
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	store storage.TurnStore,
	indexer Indexer,
	embedder ai.EmbeddingClient,
	opts ...Option,
) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if indexer == nil {
		return nil, ErrIndexerRequired
	}
	if embedder == nil {
		return nil, ErrEmbeddingClientRequired
	}

	p := &Pipeline{
		indexer:     indexer,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "turn-pipeline")

	proc, err := newEmbeddingProcessor(store, embedder, p.logger)
	if err != nil {
		return nil, err
	}
	p.proc = proc

	// Blocking pool: Submit waits for a free worker, which is the
	// pipeline's only backpressure
	pool, err := ants.NewPool(p.concurrency)
	if err != nil {
		return nil, err
	}
	p.pool = pool

	return p, nil
}

// Concurrency returns the worker pool size.
func (p *Pipeline) Concurrency() int {
	return p.concurrency
}

// ProcessOne positions, embeds and stores a single draft.
// An embedding failure still yields a stored turn; a storage failure is
// returned unchanged.
func (p *Pipeline) ProcessOne(ctx context.Context, draft *core.Draft) (*core.Turn, error) {
	turn, err := p.prepare(ctx, draft)
	if err != nil {
		return nil, err
	}
	return p.persist(ctx, turn)
}

// ProcessMany processes drafts in sequential batches of the pipeline's
// concurrency. Positions are assigned in input order before any embedding
// starts. Results are returned in input order; one failure does not stop the
// remaining drafts.
func (p *Pipeline) ProcessMany(ctx context.Context, drafts []*core.Draft) []Result {
	results := make([]Result, len(drafts))
	turns := make([]*core.Turn, len(drafts))
	for i, draft := range drafts {
		results[i].Draft = draft
		turns[i], results[i].Err = p.prepare(ctx, draft)
	}

	for start := 0; start < len(drafts); start += p.concurrency {
		end := min(start+p.concurrency, len(drafts))

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			if turns[i] == nil {
				continue
			}
			wg.Add(1)
			err := p.pool.Submit(func() {
				defer wg.Done()
				results[i].Turn, results[i].Err = p.persist(ctx, turns[i])
			})
			if err != nil {
				wg.Done()
				results[i].Err = err
			}
		}
		wg.Wait()
	}

	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	p.logger.Info("processed drafts", "drafts", len(drafts), "failed", failed)
	return results
}

// Accept positions a draft immediately and stores it in the background.
// It blocks while all workers are busy. Outcomes go to the result handler.
func (p *Pipeline) Accept(ctx context.Context, draft *core.Draft) error {
	turn, err := p.prepare(ctx, draft)
	if err != nil {
		return err
	}

	// The caller's context usually ends with its request; the turn must not
	// be lost with it
	ctx = context.WithoutCancel(ctx)

	p.inflight.Add(1)
	err = p.pool.Submit(func() {
		defer p.inflight.Done()
		saved, err := p.persist(ctx, turn)
		p.deliver(Result{Draft: draft, Turn: saved, Err: err})
	})
	if err != nil {
		p.inflight.Done()
		return err
	}
	return nil
}

// Wait blocks until every accepted draft is stored or has failed.
func (p *Pipeline) Wait() {
	p.inflight.Wait()
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// prepare validates a draft and builds its turn with an assigned position.
func (p *Pipeline) prepare(ctx context.Context, draft *core.Draft) (*core.Turn, error) {
	// A bad explicit index is not fatal; prepare falls back to append order
	if err := core.ValidateDraft(draft); err != nil && !errors.Is(err, core.ErrInvalidIndex) {
		return nil, err
	}

	pos, err := p.indexer.Assign(ctx, draft.Placement, draft.Timestamp, draft.ClientID)
	if err != nil {
		p.logger.Warn("placement rejected, using append order",
			"session", draft.SessionID, "sequence", draft.SequenceInSession, "err", err)
		if pos, err = p.indexer.Assign(ctx, core.Placement{}, draft.Timestamp, draft.ClientID); err != nil {
			return nil, err
		}
	} else if draft.Placement.IsExplicit() {
		p.indexer.CheckIndexAvailable(ctx, pos.Index, draft.ClientID)
	}

	return core.NewTurn(draft, pos), nil
}

func (p *Pipeline) persist(ctx context.Context, turn *core.Turn) (saved *core.Turn, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("turn processing panicked", "session", turn.SessionID, "sequence", turn.SequenceInSession, "panic", r)
			saved, err = nil, fmt.Errorf("%w: %v", ErrProcessingPanicked, r)
		}
	}()
	return p.proc.process(ctx, turn)
}

func (p *Pipeline) deliver(result Result) {
	if result.Err != nil {
		p.logger.Error("failed to process turn",
			"session", result.Draft.SessionID, "sequence", result.Draft.SequenceInSession, "err", result.Err)
	}
	if p.onResult != nil {
		p.onResult(result)
	}
}

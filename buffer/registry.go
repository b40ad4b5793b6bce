package buffer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kentyler/recall/core"
	"github.com/patrickmn/go-cache"
)

// DefaultIdleTimeout is how long a session may go without chunks before the
// registry ends it.
const DefaultIdleTimeout = 2 * time.Hour

var (
	// ErrUnknownSession is returned for a session that was never started or
	// has already ended.
	ErrUnknownSession = errors.New("unknown session")

	// ErrSessionExists is returned when starting a session that is active.
	ErrSessionExists = errors.New("session already started")
)

// session guards one buffer. ended flips once, by End or by eviction.
type session struct {
	mu    sync.Mutex
	buf   *SpeakerBuffer
	ended atomic.Bool
}

// Registry owns the buffers of all active sessions.
// It is safe for concurrent use; calls for one session are serialized.
type Registry struct {
	sink       TurnSink
	bufferOpts []Option
	idle       time.Duration
	sessions   *cache.Cache
	logger     *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry) error

// WithIdleTimeout sets how long an idle session survives. Zero disables expiry.
func WithIdleTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) error {
		if d < 0 {
			return fmt.Errorf("idle timeout must not be negative: %v", d)
		}
		r.idle = d
		return nil
	}
}

// WithBufferOptions sets the options applied to every session's buffer.
func WithBufferOptions(opts ...Option) RegistryOption {
	return func(r *Registry) error {
		r.bufferOpts = append(r.bufferOpts, opts...)
		return nil
	}
}

// WithRegistryLogger sets the logger for the registry.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) error {
		r.logger = logger
		return nil
	}
}

// NewRegistry creates a registry whose buffers flush to sink.
func NewRegistry(sink TurnSink, opts ...RegistryOption) (*Registry, error) {
	if sink == nil {
		return nil, ErrSinkRequired
	}
	r := &Registry{
		sink:   sink,
		idle:   DefaultIdleTimeout,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.bufferOpts = append([]Option{WithLogger(r.logger)}, r.bufferOpts...)
	r.logger = r.logger.With("component", "session-registry")

	// Validate buffer options once so Start cannot fail on them later
	if _, err := New(sink, r.bufferOpts...); err != nil {
		return nil, err
	}

	expiration, cleanup := cache.NoExpiration, time.Duration(0)
	if r.idle > 0 {
		expiration, cleanup = r.idle, r.idle/2
	}
	r.sessions = cache.New(expiration, cleanup)
	r.sessions.OnEvicted(r.evicted)
	return r, nil
}

// Start opens a session with its own buffer.
func (r *Registry) Start(sessionID, clientID string) error {
	// Expired sessions must be ended before their ID can be reused
	r.sessions.DeleteExpired()

	buf, err := New(r.sink, r.bufferOpts...)
	if err != nil {
		return err
	}
	if err := buf.Start(sessionID, clientID); err != nil {
		return err
	}

	if err := r.sessions.Add(sessionID, &session{buf: buf}, cache.DefaultExpiration); err != nil {
		return fmt.Errorf("%w: %s", ErrSessionExists, sessionID)
	}
	return nil
}

// AddChunk buffers a chunk for a session.
func (r *Registry) AddChunk(ctx context.Context, sessionID string, chunk core.Chunk) error {
	return r.with(sessionID, func(buf *SpeakerBuffer) error {
		return buf.AddChunk(ctx, chunk)
	})
}

// Flush emits a session's buffered text as a draft. It returns nil when the
// buffer is empty.
func (r *Registry) Flush(ctx context.Context, sessionID string) (*core.Draft, error) {
	var draft *core.Draft
	err := r.with(sessionID, func(buf *SpeakerBuffer) error {
		draft = buf.Flush(ctx)
		return nil
	})
	return draft, err
}

// State reports a session's buffer state.
func (r *Registry) State(sessionID string) (core.BufferState, error) {
	var state core.BufferState
	err := r.with(sessionID, func(buf *SpeakerBuffer) error {
		state = buf.State()
		return nil
	})
	return state, err
}

// End flushes and removes a session.
func (r *Registry) End(ctx context.Context, sessionID string) (core.SessionSummary, error) {
	s, err := r.lookup(sessionID)
	if err != nil {
		return core.SessionSummary{}, err
	}

	s.mu.Lock()
	if !s.ended.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return core.SessionSummary{}, unknownSession(sessionID)
	}
	summary, err := s.buf.End(ctx)
	s.mu.Unlock()

	r.forget(sessionID, s)
	return summary, err
}

// Sessions lists the IDs of active sessions in sorted order.
func (r *Registry) Sessions() []string {
	items := r.sessions.Items()
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close ends every active session and returns their summaries.
func (r *Registry) Close(ctx context.Context) []core.SessionSummary {
	var summaries []core.SessionSummary
	for _, id := range r.Sessions() {
		summary, err := r.End(ctx, id)
		if err != nil {
			r.logger.Warn("failed to end session on close", "session", id, "err", err)
			continue
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

// with runs fn on a session's buffer under its lock and refreshes its expiry.
func (r *Registry) with(sessionID string, fn func(buf *SpeakerBuffer) error) error {
	s, err := r.lookup(sessionID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended.Load() {
		return unknownSession(sessionID)
	}
	if err := fn(s.buf); err != nil {
		return err
	}
	r.sessions.Set(sessionID, s, cache.DefaultExpiration)
	return nil
}

func (r *Registry) lookup(sessionID string) (*session, error) {
	v, found := r.sessions.Get(sessionID)
	if !found {
		return nil, unknownSession(sessionID)
	}
	return v.(*session), nil
}

// forget drops sessionID from the cache if it still maps to s.
func (r *Registry) forget(sessionID string, s *session) {
	if v, found := r.sessions.Get(sessionID); found && v.(*session) == s {
		r.sessions.Delete(sessionID)
	}
}

// evicted ends a session removed by expiry. Sessions removed by End are
// already marked and skipped.
func (r *Registry) evicted(sessionID string, v interface{}) {
	s := v.(*session)
	if !s.ended.CompareAndSwap(false, true) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	summary, err := s.buf.End(context.Background())
	if err != nil {
		r.logger.Error("failed to end idle session", "session", sessionID, "err", err)
		return
	}
	r.logger.Info("ended idle session", "session", sessionID, "turns", summary.TotalTurns)
}

func unknownSession(sessionID string) error {
	return fmt.Errorf("%w: %w: %s", core.ErrInvalidState, ErrUnknownSession, sessionID)
}

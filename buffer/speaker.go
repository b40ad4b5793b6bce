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


package buffer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/kentyler/recall/core"
)

// DefaultMaxLength is the buffered length, in characters, past which a
// buffer flushes before taking more text from the same speaker.
const DefaultMaxLength = 1000

var (
	// ErrSinkRequired is returned when a buffer is built without a sink.
	ErrSinkRequired = errors.New("turn sink is required")

	// ErrInvalidMaxLength is returned for a non-positive maximum length.
	ErrInvalidMaxLength = errors.New("max length must be positive")
)

// SpeakerBuffer accumulates one session's chunks into speaker-homogeneous
// drafts. It is not safe for concurrent use.
type SpeakerBuffer struct {
	sink      TurnSink
	maxLength int
	now       func() time.Time
	logger    *slog.Logger

	active    bool
	sessionID string
	clientID  string
	speaker   string
	text      string
	length    int       // characters in text
	first     time.Time // timestamp of the first buffered chunk
	sequence  int
	last      time.Time // timestamp of the previous draft
}

// Option configures a SpeakerBuffer.
type Option func(*SpeakerBuffer) error

// WithMaxLength sets the flush threshold in characters.
func WithMaxLength(n int) Option {
	return func(b *SpeakerBuffer) error {
		if n <= 0 {
			return fmt.Errorf("%w: %d", ErrInvalidMaxLength, n)
		}
		b.maxLength = n
		return nil
	}
}

// WithLogger sets the logger for the buffer.
func WithLogger(logger *slog.Logger) Option {
	return func(b *SpeakerBuffer) error {
		b.logger = logger
		return nil
	}
}

// WithClock replaces time.Now for drafts whose chunks carry no timestamp.
func WithClock(now func() time.Time) Option {
	return func(b *SpeakerBuffer) error {
		b.now = now
		return nil
	}
}

// New creates a buffer that hands its drafts to sink.
func New(sink TurnSink, opts ...Option) (*SpeakerBuffer, error) {
	if sink == nil {
		return nil, ErrSinkRequired
	}
	b := &SpeakerBuffer{
		sink:      sink,
		maxLength: DefaultMaxLength,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	b.logger = b.logger.With("component", "speaker-buffer")
	return b, nil
}

// Start resets the buffer for a new session.
func (b *SpeakerBuffer) Start(sessionID, clientID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("%w: session id is required", core.ErrInvalidState)
	}
	if err := core.ValidateClientID(clientID); err != nil {
		return fmt.Errorf("%w: %w", core.ErrInvalidState, err)
	}

	b.reset()
	b.active = true
	b.sessionID = sessionID
	b.clientID = clientID
	b.logger.Info("session started", "session", sessionID, "client", clientID)
	return nil
}

// AddChunk buffers a chunk, flushing first when the speaker changes or the
// chunk would push a non-empty buffer past the maximum length. A single chunk
// longer than the maximum is kept whole.
func (b *SpeakerBuffer) AddChunk(ctx context.Context, chunk core.Chunk) error {
	if !b.active {
		return fmt.Errorf("%w: chunk added before session start", core.ErrInvalidState)
	}

	speaker := core.NormalizeSpeaker(chunk.Speaker)
	if b.speaker != "" && speaker != b.speaker {
		b.Flush(ctx)
	}
	b.speaker = speaker

	n := utf8.RuneCountInString(chunk.Text)
	if b.length > 0 && b.length+n > b.maxLength {
		b.Flush(ctx)
	}

	b.append(chunk.Text, chunk.Timestamp)
	return nil
}

// Flush emits the buffered text as a draft and returns it. It returns nil
// when there is nothing to emit. The current speaker is kept.
func (b *SpeakerBuffer) Flush(ctx context.Context) *core.Draft {
	if b.text == "" || b.speaker == "" {
		return nil
	}

	content := strings.TrimSpace(b.text)
	length := b.length
	first := b.first
	b.text, b.length, b.first = "", 0, time.Time{}

	if content == "" {
		b.logger.Debug("discarding whitespace-only buffer", "session", b.sessionID, "speaker", b.speaker)
		return nil
	}

	b.sequence++
	draft := &core.Draft{
		SessionID:         b.sessionID,
		ClientID:          b.clientID,
		Speaker:           b.speaker,
		Content:           content,
		SequenceInSession: b.sequence,
		Timestamp:         b.stamp(first),
		Metadata: core.Metadata{
			SpeakerLabel: b.speaker,
			ChunkLength:  length,
		},
	}

	b.logger.Debug("flushing turn",
		"session", b.sessionID, "sequence", draft.SequenceInSession,
		"speaker", draft.Speaker, "chars", utf8.RuneCountInString(content))
	b.deliver(ctx, draft)
	return draft
}

// End flushes what is left and closes the session. Start must be called
// again before the buffer is reused.
func (b *SpeakerBuffer) End(ctx context.Context) (core.SessionSummary, error) {
	if !b.active {
		return core.SessionSummary{}, fmt.Errorf("%w: no session to end", core.ErrInvalidState)
	}

	b.Flush(ctx)
	summary := core.SessionSummary{
		SessionID:   b.sessionID,
		TotalTurns:  b.sequence,
		LastSpeaker: b.speaker,
	}
	b.logger.Info("session ended", "session", summary.SessionID, "turns", summary.TotalTurns)

	b.reset()
	return summary, nil
}

// State reports the buffer's current state.
func (b *SpeakerBuffer) State() core.BufferState {
	return core.BufferState{
		SessionID:      b.sessionID,
		ClientID:       b.clientID,
		CurrentSpeaker: b.speaker,
		BufferLength:   b.length,
		Sequence:       b.sequence,
		HasContent:     b.length > 0,
	}
}

// Active reports whether a session is in progress.
func (b *SpeakerBuffer) Active() bool {
	return b.active
}

func (b *SpeakerBuffer) append(text string, timestamp time.Time) {
	if text == "" {
		return
	}
	if b.text == "" {
		b.first = timestamp
	} else if !endsWithSpace(b.text) && !startsWithSpace(text) {
		b.text += " "
		b.length++
	}
	b.text += text
	b.length += utf8.RuneCountInString(text)
}

// stamp picks a draft timestamp that is strictly after the previous one.
func (b *SpeakerBuffer) stamp(ts time.Time) time.Time {
	if ts.IsZero() {
		ts = b.now()
	}
	if !b.last.IsZero() && !ts.After(b.last) {
		ts = b.last.Add(time.Microsecond)
	}
	b.last = ts
	return ts
}

func (b *SpeakerBuffer) deliver(ctx context.Context, draft *core.Draft) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("turn sink panicked", "session", draft.SessionID, "sequence", draft.SequenceInSession, "panic", r)
		}
	}()
	if err := b.sink.Accept(ctx, draft); err != nil {
		b.logger.Error("turn sink failed", "session", draft.SessionID, "sequence", draft.SequenceInSession, "err", err)
	}
}

func (b *SpeakerBuffer) reset() {
	b.active = false
	b.sessionID = ""
	b.clientID = ""
	b.speaker = ""
	b.text = ""
	b.length = 0
	b.first = time.Time{}
	b.sequence = 0
	b.last = time.Time{}
}

func endsWithSpace(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return unicode.IsSpace(r)
}

func startsWithSpace(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsSpace(r)
}

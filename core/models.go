package core

//go:generate go run ../cmd/musgen

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing or database sequences.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// UnknownSpeaker is the label used when a chunk arrives without a speaker name.
const UnknownSpeaker = "Unknown Speaker"

// Chunk is a raw transcript fragment as delivered by a live source.
// Chunks are consumed immediately by a buffer and never persisted.
type Chunk struct {
	Speaker   string
	Text      string
	Timestamp time.Time // Optional; zero means "now"
}

// Metadata describes how a turn was assembled.
type Metadata struct {
	SpeakerLabel string            `json:"speakerLabel"`
	ChunkLength  int               `json:"chunkLength"`          // Buffer length in characters before trimming
	Attributes   map[string]string `json:"attributes,omitempty"` // Producer supplied extras
}

// Placement is an optional instruction for where a turn belongs in its client's order.
// The zero value means "append".
type Placement struct {
	OrderIndex   *float64 // Explicit index, must be finite and non-negative
	InsertAfter  ID       // Turn the new turn follows
	InsertBefore ID       // Turn the new turn precedes
}

// IsExplicit reports whether the placement names an exact order index.
func (p Placement) IsExplicit() bool {
	return p.OrderIndex != nil
}

// IsInsertion reports whether the placement is relative to existing turns.
func (p Placement) IsInsertion() bool {
	return p.OrderIndex == nil && (p.InsertAfter != 0 || p.InsertBefore != 0)
}

// Draft is a speaker-attributed turn produced by a buffer flush.
// Content is always trimmed and non-empty. Drafts are immutable once emitted.
type Draft struct {
	SessionID         string    `json:"sessionId"`
	ClientID          string    `json:"clientId"`
	Speaker           string    `json:"speaker"`
	Content           string    `json:"content"`
	SequenceInSession int       `json:"sequenceInSession"`
	Timestamp         time.Time `json:"timestamp"`
	Metadata          Metadata  `json:"metadata"`
	Placement         Placement `json:"-"`
}

// Fingerprint identifies the draft's content within its session.
// Re-submitting the same draft yields the same fingerprint.
func (d *Draft) Fingerprint() ID {
	return IDFromContent(d.SessionID + "\x00" + strconv.Itoa(d.SequenceInSession) + "\x00" + d.Content)
}

// Position is a turn's place in its client's total order.
// Key is authoritative; Index is the float view of the same position.
type Position struct {
	Index float64
	Key   string
}

// Turn is a persisted, ordered draft. Embedding is nil exactly when EmbeddingError is set.
type Turn struct {
	Draft
	ID             ID        `json:"id"`
	OrderIndex     float64   `json:"orderIndex"`
	OrderKey       string    `json:"orderKey"`
	Embedding      []float64 `json:"embedding"`
	EmbeddingError string    `json:"embeddingError,omitempty"`
	Fingerprint    ID        `json:"fingerprint"`
	InsertedAt     time.Time `json:"insertedAt"` // When the turn was inserted into the database
	UpdatedAt      time.Time `json:"updatedAt"`  // When the turn was last updated
}

// NewTurn builds an unsaved turn from a draft and its assigned position.
func NewTurn(d *Draft, pos Position) *Turn {
	return &Turn{
		Draft:       *d,
		OrderIndex:  pos.Index,
		OrderKey:    pos.Key,
		Fingerprint: d.Fingerprint(),
	}
}

// Position returns the turn's order position.
func (t *Turn) Position() Position {
	return Position{Index: t.OrderIndex, Key: t.OrderKey}
}

// HasEmbedding reports whether the turn carries a vector.
func (t *Turn) HasEmbedding() bool {
	return t.Embedding != nil
}

// SetEmbedding attaches a vector and clears any previous embedding error.
func (t *Turn) SetEmbedding(vector []float64) {
	t.Embedding = vector
	t.EmbeddingError = ""
}

// SetEmbeddingError records why no vector could be produced.
func (t *Turn) SetEmbeddingError(err error) {
	t.Embedding = nil
	t.EmbeddingError = ""
	if err != nil {
		t.EmbeddingError = err.Error()
	}
	if t.EmbeddingError == "" {
		t.EmbeddingError = ErrEmbeddingProvider.Error()
	}
}

// SessionSummary is returned when a buffer session ends.
type SessionSummary struct {
	SessionID   string
	TotalTurns  int
	LastSpeaker string
}

// BufferState is a snapshot of a speaker buffer.
type BufferState struct {
	SessionID      string
	ClientID       string
	CurrentSpeaker string
	BufferLength   int
	Sequence       int
	HasContent     bool
}

// SessionStats summarizes the persisted turns of one session.
type SessionStats struct {
	SessionID          string
	TotalTurns         int
	WithEmbeddings     int
	WithoutEmbeddings  int
	DuplicateTurns     int // Turns whose fingerprint repeats an earlier turn
	AverageContentSize float64
	FirstSequence      int
	LastSequence       int
	FirstTimestamp     time.Time
	LastTimestamp      time.Time
}

// Checkpoint records how far a resumable job has progressed.
type Checkpoint struct {
	Name      string
	LastID    ID
	Processed int
	UpdatedAt time.Time
}

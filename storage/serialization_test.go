package storage

import (
	"testing"
	"time"

	"github.com/kentyler/recall/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalID(t *testing.T) {
	for _, id := range []core.ID{0, 42, core.ID(18446744073709551615), core.IDFromContent("test content")} {
		decoded, err := UnmarshalID(MarshalID(id))
		require.NoError(t, err)
		assert.Equal(t, id, decoded)
	}
}

func TestUnmarshalID_Invalid(t *testing.T) {
	_, err := UnmarshalID([]byte{})
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestMarshalUnmarshalTurn(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)

	original := &core.Turn{
		Draft: core.Draft{
			SessionID:         "meeting-1",
			ClientID:          "client-1",
			Speaker:           "Alice",
			Content:           "Hello 世界 🌍",
			SequenceInSession: 7,
			Timestamp:         now,
			Metadata: core.Metadata{
				SpeakerLabel: "Alice",
				ChunkLength:  14,
				Attributes:   map[string]string{"source": "zoom", "lang": "en"},
			},
		},
		ID:          core.ID(99),
		OrderIndex:  1.7e9 + 0.25,
		OrderKey:    "5Xq3",
		Embedding:   make([]float64, 1536),
		Fingerprint: core.IDFromContent("x"),
		InsertedAt:  now,
		UpdatedAt:   now.Add(time.Second),
	}
	original.Embedding[0] = 0.125

	decoded, err := UnmarshalTurn(MarshalTurn(original))
	require.NoError(t, err)

	assert.True(t, original.Timestamp.Equal(decoded.Timestamp))
	assert.True(t, original.InsertedAt.Equal(decoded.InsertedAt))
	assert.True(t, original.UpdatedAt.Equal(decoded.UpdatedAt))

	// Times compared above; align them for a whole-struct comparison
	decoded.Timestamp, decoded.InsertedAt, decoded.UpdatedAt = original.Timestamp, original.InsertedAt, original.UpdatedAt
	assert.Equal(t, original, decoded)
}

func TestMarshalUnmarshalTurn_EmbeddingPresence(t *testing.T) {
	t.Run("nil embedding stays nil", func(t *testing.T) {
		turn := &core.Turn{Draft: core.Draft{ClientID: "c", Content: "x"}, EmbeddingError: "provider down"}

		decoded, err := UnmarshalTurn(MarshalTurn(turn))
		require.NoError(t, err)

		assert.Nil(t, decoded.Embedding)
		assert.False(t, decoded.HasEmbedding())
		assert.Equal(t, "provider down", decoded.EmbeddingError)
	})

	t.Run("empty embedding stays non-nil", func(t *testing.T) {
		turn := &core.Turn{Draft: core.Draft{ClientID: "c", Content: "x"}, Embedding: []float64{}}

		decoded, err := UnmarshalTurn(MarshalTurn(turn))
		require.NoError(t, err)

		assert.NotNil(t, decoded.Embedding)
		assert.Empty(t, decoded.Embedding)
	})

	t.Run("zero timestamps stay zero", func(t *testing.T) {
		decoded, err := UnmarshalTurn(MarshalTurn(&core.Turn{}))
		require.NoError(t, err)

		assert.True(t, decoded.Timestamp.IsZero())
		assert.True(t, decoded.InsertedAt.IsZero())
	})
}

func TestMarshalUnmarshalTurn_Placement(t *testing.T) {
	index := 2.5
	turn := &core.Turn{
		Draft:          core.Draft{ClientID: "c", Content: "x", Placement: core.Placement{OrderIndex: &index, InsertAfter: 7}},
		EmbeddingError: "provider down",
	}

	data := MarshalTurn(turn)
	decoded, err := UnmarshalTurn(data)
	require.NoError(t, err)

	require.NotNil(t, decoded.Placement.OrderIndex)
	assert.Equal(t, 2.5, *decoded.Placement.OrderIndex)
	assert.Equal(t, core.ID(7), decoded.Placement.InsertAfter)

	n, err := core.TurnMUS.Skip(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
}

func TestUnmarshalTurn_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty data", []byte{}},
		{"truncated varint", []byte{0xFF, 0xFF, 0xFF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalTurn(tt.data)
			assert.ErrorIs(t, err, ErrSerializationFailed)
		})
	}

	t.Run("truncated record", func(t *testing.T) {
		data := MarshalTurn(&core.Turn{Draft: core.Draft{Content: "a longer piece of content"}})
		_, err := UnmarshalTurn(data[:len(data)/2])
		assert.Error(t, err)
	})
}

func TestMarshalUnmarshalCheckpoint(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	original := &core.Checkpoint{Name: "embedding-backfill", LastID: 1234, Processed: 17, UpdatedAt: now}

	decoded, err := UnmarshalCheckpoint(MarshalCheckpoint(original))
	require.NoError(t, err)

	assert.Equal(t, original.Name, decoded.Name)
	assert.Equal(t, original.LastID, decoded.LastID)
	assert.Equal(t, original.Processed, decoded.Processed)
	assert.True(t, original.UpdatedAt.Equal(decoded.UpdatedAt))
}

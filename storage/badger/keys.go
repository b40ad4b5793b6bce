package badger

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/kentyler/recall/core"
)

// Key prefixes for different data types. Each ends in ':' so no prefix is a
// prefix of another.
const (
	turnPrefix        = "turn:"
	turnClientPrefix  = "turnc:"
	turnSessionPrefix = "turns:"
	turnMissingPrefix = "turnm:"
	turnIDSeq         = "turnseq"
	checkpointPrefix  = "chkpt:"
)

// makeTurnKey generates a key for a turn by ID.
func makeTurnKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s%d", turnPrefix, id))
}

// makeClientPrefix generates the prefix shared by a client's order index.
// Format: prefix clientID 0x00
func makeClientPrefix(clientID string) []byte {
	buf := make([]byte, 0, len(turnClientPrefix)+len(clientID)+1)
	buf = append(buf, turnClientPrefix...)
	buf = append(buf, clientID...)
	return append(buf, 0)
}

// makeClientOrderKey generates a composite key for the client order index.
// Format: prefix clientID 0x00 orderKey 0x00 timestamp id
// Order keys are base-62 so the 0x00 separator sorts a key before its extensions.
func makeClientOrderKey(turn *core.Turn) []byte {
	buf := makeClientPrefix(turn.ClientID)
	buf = append(buf, turn.OrderKey...)
	buf = append(buf, 0)
	// BigEndian so lexicographic sort follows time, then ID
	buf = binary.BigEndian.AppendUint64(buf, uint64(turn.Timestamp.UnixMicro()))
	return binary.BigEndian.AppendUint64(buf, uint64(turn.ID))
}

// makeClientOrderValue stores the ID and float index beside each order entry
// so index scans don't need to load turns.
func makeClientOrderValue(turn *core.Turn) []byte {
	buf := make([]byte, 0, 16)
	buf = binary.BigEndian.AppendUint64(buf, uint64(turn.ID))
	return binary.BigEndian.AppendUint64(buf, math.Float64bits(turn.OrderIndex))
}

// parseClientOrderValue reverses makeClientOrderValue.
func parseClientOrderValue(val []byte) (core.ID, float64, error) {
	if len(val) != 16 {
		return 0, 0, fmt.Errorf("order index entry has %d bytes", len(val))
	}
	id := core.ID(binary.BigEndian.Uint64(val[:8]))
	index := math.Float64frombits(binary.BigEndian.Uint64(val[8:]))
	return id, index, nil
}

// makeSessionPrefix generates the prefix shared by a session's sequence index.
func makeSessionPrefix(sessionID string) []byte {
	buf := make([]byte, 0, len(turnSessionPrefix)+len(sessionID)+1)
	buf = append(buf, turnSessionPrefix...)
	buf = append(buf, sessionID...)
	return append(buf, 0)
}

// makeSessionKey generates a composite key for the session index.
// Format: prefix sessionID 0x00 sequence id
func makeSessionKey(turn *core.Turn) []byte {
	buf := makeSessionPrefix(turn.SessionID)
	buf = binary.BigEndian.AppendUint64(buf, uint64(turn.SequenceInSession))
	return binary.BigEndian.AppendUint64(buf, uint64(turn.ID))
}

// makeMissingKey generates a key for the missing-embedding index.
// Format: prefix id
func makeMissingKey(id core.ID) []byte {
	buf := make([]byte, 0, len(turnMissingPrefix)+8)
	buf = append(buf, turnMissingPrefix...)
	return binary.BigEndian.AppendUint64(buf, uint64(id))
}

// makeCheckpointKey generates a key for job checkpoints.
func makeCheckpointKey(name string) []byte {
	return []byte(checkpointPrefix + name)
}

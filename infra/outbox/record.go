package outbox

import (
	"encoding/binary"
	"hash/crc32"
	"time"

	"github.com/cockroachdb/errors"

	"lob/domain/execution"
)

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
	StateFailed
	StateDead
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	case StateDead:
		return "DEAD"
	default:
		return "UNKNOWN"
	}
}

// Key addresses one report: the engine sequence of the command that
// produced it and its index within that command.
type Key struct {
	Seq   uint64
	Index uint32
}

// Entry is a stored report together with its delivery state.
type Entry struct {
	Key
	State       State
	Retries     uint32
	LastAttempt time.Time
	Payload     []byte
}

// Report decodes the stored payload.
func (e Entry) Report() (execution.Report, error) {
	return execution.Unmarshal(e.Payload)
}

// [state:1][retries:4][lastAttempt:8][crc:4][payload]
const headerLen = 1 + 4 + 8 + 4

var ErrCorruptEntry = errors.New("outbox: corrupt entry")

func encodeEntry(e Entry) []byte {
	buf := make([]byte, headerLen+len(e.Payload))
	buf[0] = byte(e.State)
	binary.BigEndian.PutUint32(buf[1:5], e.Retries)
	var nanos int64
	if !e.LastAttempt.IsZero() {
		nanos = e.LastAttempt.UnixNano()
	}
	binary.BigEndian.PutUint64(buf[5:13], uint64(nanos))
	binary.BigEndian.PutUint32(buf[13:17], crc32.ChecksumIEEE(e.Payload))
	copy(buf[headerLen:], e.Payload)
	return buf
}

// decodeEntry copies the payload out of b; pebble owns b only until the
// iterator moves.
func decodeEntry(k Key, b []byte) (Entry, error) {
	if len(b) < headerLen {
		return Entry{}, errors.Wrapf(ErrCorruptEntry, "%v: %d bytes", k, len(b))
	}
	payload := b[headerLen:]
	if crc32.ChecksumIEEE(payload) != binary.BigEndian.Uint32(b[13:17]) {
		return Entry{}, errors.Wrapf(ErrCorruptEntry, "%v: checksum mismatch", k)
	}
	e := Entry{
		Key:     k,
		State:   State(b[0]),
		Retries: binary.BigEndian.Uint32(b[1:5]),
		Payload: append([]byte(nil), payload...),
	}
	if nanos := int64(binary.BigEndian.Uint64(b[5:13])); nanos != 0 {
		e.LastAttempt = time.Unix(0, nanos).UTC()
	}
	return e, nil
}

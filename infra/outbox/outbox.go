// Package outbox is the durable hand-off between the engine and the
// publishers. Every execution report is written here before the command
// that produced it returns, then drained to the broker by the
// broadcaster. Delivery is at least once.
package outbox

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"

	"lob/domain/execution"
)

var ErrNotFound = errors.New("outbox: entry not found")

var (
	keyPrefix = []byte("report/")
	keyUpper  = []byte("report/~")

	// highest seq ever reported; outlives pruning
	lastSeqKey = []byte("meta/last_seq")
)

type Outbox struct {
	db  *pebble.DB
	now func() time.Time
}

type Option func(*Outbox)

// WithClock overrides the clock used for LastAttempt.
func WithClock(now func() time.Time) Option {
	return func(o *Outbox) { o.now = now }
}

func Open(dir string, opts ...Option) (*Outbox, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "open outbox at %s", dir)
	}
	o := &Outbox{db: db, now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// Report stores reports as NEW in one synced batch. The batch also moves
// the sequence high-water mark forward.
func (o *Outbox) Report(reports []execution.Report) error {
	if len(reports) == 0 {
		return nil
	}
	mark, err := o.highWater()
	if err != nil {
		return err
	}
	b := o.db.NewBatch()
	defer b.Close()
	top := mark
	for _, r := range reports {
		top = max(top, r.Seq)
		e := Entry{
			Key:     Key{Seq: r.Seq, Index: r.Index},
			State:   StateNew,
			Payload: execution.Marshal(r),
		}
		if err := b.Set(keyFor(e.Key), encodeEntry(e), nil); err != nil {
			return errors.Wrapf(err, "stage report %v", e.Key)
		}
	}
	if top > mark {
		if err := b.Set(lastSeqKey, binary.BigEndian.AppendUint64(nil, top), nil); err != nil {
			return errors.Wrap(err, "stage last seq")
		}
	}
	return errors.Wrap(b.Commit(pebble.Sync), "commit reports")
}

func (o *Outbox) Get(k Key) (Entry, error) {
	val, closer, err := o.db.Get(keyFor(k))
	if errors.Is(err, pebble.ErrNotFound) {
		return Entry{}, errors.Wrapf(ErrNotFound, "%v", k)
	}
	if err != nil {
		return Entry{}, err
	}
	defer closer.Close()
	return decodeEntry(k, val)
}

func (o *Outbox) MarkSent(k Key) error {
	return o.transition(k, StateSent, false)
}

func (o *Outbox) MarkAcked(k Key) error {
	return o.transition(k, StateAcked, false)
}

// MarkFailed records a failed attempt and bumps the retry count.
func (o *Outbox) MarkFailed(k Key) error {
	return o.transition(k, StateFailed, true)
}

// MarkDead parks an entry that will not be retried again.
func (o *Outbox) MarkDead(k Key) error {
	return o.transition(k, StateDead, false)
}

func (o *Outbox) transition(k Key, state State, attempt bool) error {
	e, err := o.Get(k)
	if err != nil {
		return err
	}
	e.State = state
	e.LastAttempt = o.now()
	if attempt {
		e.Retries++
	}
	return o.db.Set(keyFor(k), encodeEntry(e), pebble.Sync)
}

// ScanPending calls fn for every entry still awaiting delivery, in key
// order. SENT entries are included: a crash between send and ack leaves
// them behind, and the broker side deduplicates on (seq, index).
func (o *Outbox) ScanPending(fn func(Entry) error) error {
	return o.scan(func(e Entry) error {
		switch e.State {
		case StateNew, StateSent, StateFailed:
			return fn(e)
		}
		return nil
	})
}

// ScanByState calls fn for every entry in state.
func (o *Outbox) ScanByState(state State, fn func(Entry) error) error {
	return o.scan(func(e Entry) error {
		if e.State != state {
			return nil
		}
		return fn(e)
	})
}

// DeleteAcked removes every ACKED entry and returns how many it removed.
func (o *Outbox) DeleteAcked() (int, error) {
	var acked [][]byte
	err := o.ScanByState(StateAcked, func(e Entry) error {
		acked = append(acked, keyFor(e.Key))
		return nil
	})
	if err != nil || len(acked) == 0 {
		return 0, err
	}

	b := o.db.NewBatch()
	defer b.Close()
	for _, k := range acked {
		if err := b.Delete(k, nil); err != nil {
			return 0, err
		}
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return 0, errors.Wrap(err, "delete acked")
	}
	return len(acked), nil
}

// LastSeq returns the highest sequence ever reported, or 0 for a fresh
// outbox. Pruning acked entries does not lower it.
func (o *Outbox) LastSeq() (uint64, error) {
	mark, err := o.highWater()
	if err != nil {
		return 0, err
	}
	iter, err := o.db.NewIter(&pebble.IterOptions{LowerBound: keyPrefix, UpperBound: keyUpper})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	if !iter.Last() {
		return mark, iter.Error()
	}
	k, err := parseKey(iter.Key())
	if err != nil {
		return 0, err
	}
	return max(mark, k.Seq), nil
}

func (o *Outbox) highWater() (uint64, error) {
	val, closer, err := o.db.Get(lastSeqKey)
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "read last seq")
	}
	defer closer.Close()
	if len(val) != 8 {
		return 0, errors.Wrapf(ErrCorruptEntry, "last seq is %d bytes", len(val))
	}
	return binary.BigEndian.Uint64(val), nil
}

func (o *Outbox) scan(fn func(Entry) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{LowerBound: keyPrefix, UpperBound: keyUpper})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		k, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		e, err := decodeEntry(k, iter.Value())
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return iter.Error()
}

func keyFor(k Key) []byte {
	return []byte(fmt.Sprintf("report/%020d/%010d", k.Seq, k.Index))
}

func parseKey(b []byte) (Key, error) {
	var k Key
	_, err := fmt.Sscanf(string(bytes.TrimPrefix(b, keyPrefix)), "%d/%d", &k.Seq, &k.Index)
	if err != nil {
		return Key{}, errors.Wrapf(ErrCorruptEntry, "key %q", b)
	}
	return k, nil
}

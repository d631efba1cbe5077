package outbox

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lob/domain/execution"
	"lob/domain/orderbook"
)

var t0 = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func openTest(t *testing.T) *Outbox {
	t.Helper()
	o, err := Open(t.TempDir(), WithClock(func() time.Time { return t0 }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close() })
	return o
}

func reports(seq uint64, ids ...string) []execution.Report {
	out := make([]execution.Report, len(ids))
	for i, id := range ids {
		out[i] = execution.Report{
			Seq: seq, Index: uint32(i), Kind: execution.KindFill,
			OrderID: id, Side: orderbook.Buy, Price: 100, Quantity: 1, Time: t0,
		}
	}
	return out
}

func pending(t *testing.T, o *Outbox) []Key {
	t.Helper()
	var keys []Key
	require.NoError(t, o.ScanPending(func(e Entry) error {
		keys = append(keys, e.Key)
		return nil
	}))
	return keys
}

func TestOutbox_ReportAndGet(t *testing.T) {
	o := openTest(t)
	require.NoError(t, o.Report(reports(1, "a", "b")))
	require.NoError(t, o.Report(nil))

	e, err := o.Get(Key{Seq: 1, Index: 1})
	require.NoError(t, err)
	assert.Equal(t, StateNew, e.State)
	assert.Zero(t, e.Retries)
	assert.True(t, e.LastAttempt.IsZero())

	r, err := e.Report()
	require.NoError(t, err)
	assert.Equal(t, "b", r.OrderID)
	assert.Equal(t, t0, r.Time)

	_, err = o.Get(Key{Seq: 9})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestOutbox_ScanPendingInSeqOrder(t *testing.T) {
	o := openTest(t)
	// seq 10 sorts after 9 only because keys are zero padded
	require.NoError(t, o.Report(reports(10, "c")))
	require.NoError(t, o.Report(reports(9, "a", "b")))

	assert.Equal(t, []Key{{9, 0}, {9, 1}, {10, 0}}, pending(t, o))
}

func TestOutbox_Lifecycle(t *testing.T) {
	o := openTest(t)
	require.NoError(t, o.Report(reports(1, "a", "b", "c")))

	require.NoError(t, o.MarkSent(Key{1, 0}))
	require.NoError(t, o.MarkAcked(Key{1, 0}))
	require.NoError(t, o.MarkFailed(Key{1, 1}))
	require.NoError(t, o.MarkFailed(Key{1, 1}))
	require.NoError(t, o.MarkDead(Key{1, 2}))

	e, err := o.Get(Key{1, 1})
	require.NoError(t, err)
	assert.Equal(t, StateFailed, e.State)
	assert.Equal(t, uint32(2), e.Retries)
	assert.Equal(t, t0, e.LastAttempt)

	assert.Equal(t, []Key{{1, 1}}, pending(t, o))

	n, err := o.DeleteAcked()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = o.Get(Key{1, 0})
	assert.True(t, errors.Is(err, ErrNotFound))

	n, err = o.DeleteAcked()
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.True(t, errors.Is(o.MarkSent(Key{7, 0}), ErrNotFound))
}

func TestOutbox_LastSeqSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	o, err := Open(dir)
	require.NoError(t, err)

	seq, err := o.LastSeq()
	require.NoError(t, err)
	assert.Zero(t, seq)

	require.NoError(t, o.Report(reports(3, "a")))
	require.NoError(t, o.Report(reports(12, "b", "c")))
	require.NoError(t, o.Close())

	o, err = Open(dir)
	require.NoError(t, err)
	defer o.Close()

	seq, err = o.LastSeq()
	require.NoError(t, err)
	assert.Equal(t, uint64(12), seq)
	assert.Len(t, pending(t, o), 3)
}

func TestOutbox_LastSeqSurvivesPrune(t *testing.T) {
	dir := t.TempDir()
	o, err := Open(dir)
	require.NoError(t, err)

	require.NoError(t, o.Report(reports(41, "a")))
	require.NoError(t, o.MarkAcked(Key{41, 0}))
	n, err := o.DeleteAcked()
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Empty(t, pending(t, o))
	require.NoError(t, o.Close())

	o, err = Open(dir)
	require.NoError(t, err)
	defer o.Close()

	seq, err := o.LastSeq()
	require.NoError(t, err)
	assert.Equal(t, uint64(41), seq)

	// a replayed lower seq does not pull the mark back
	require.NoError(t, o.Report(reports(7, "b")))
	seq, err = o.LastSeq()
	require.NoError(t, err)
	assert.Equal(t, uint64(41), seq)
	assert.Len(t, pending(t, o), 1)
}

func TestDecodeEntry_Corrupt(t *testing.T) {
	raw := encodeEntry(Entry{State: StateNew, Payload: []byte("payload")})
	raw[len(raw)-1] ^= 0xff

	_, err := decodeEntry(Key{}, raw)
	assert.True(t, errors.Is(err, ErrCorruptEntry))

	_, err = decodeEntry(Key{}, raw[:3])
	assert.True(t, errors.Is(err, ErrCorruptEntry))
}

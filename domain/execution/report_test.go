package execution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ob "lob/domain/orderbook"
)

var t0 = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func kinds(rs []Report) []Kind {
	out := make([]Kind, len(rs))
	for i, r := range rs {
		out[i] = r.Kind
	}
	return out
}

func TestFromMarket_SweepWithUnfilledRemainder(t *testing.T) {
	book := ob.NewOrderBook()
	_, err := book.ProcessLimitOrder(ob.Sell, "a1", 2, 100, t0)
	require.NoError(t, err)
	_, err = book.ProcessLimitOrder(ob.Sell, "a2", 3, 101, t0)
	require.NoError(t, err)

	res := book.ProcessMarketOrder(ob.Buy, 7)
	taker := Taker{ID: "m1", Side: ob.Buy, Time: t0}
	rs := FromMarket(9, t0, taker, res)

	require.Equal(t, []Kind{KindFill, KindFill, KindPartialFill, KindUnfilled}, kinds(rs))
	assert.Equal(t, "a1", rs[0].OrderID)
	assert.Equal(t, 2.0, rs[0].Quantity)
	assert.Equal(t, "a2", rs[1].OrderID)

	assert.Equal(t, "m1", rs[2].OrderID)
	assert.Equal(t, 5.0, rs[2].Quantity)
	assert.Equal(t, 2.0, rs[2].Remaining)

	assert.Equal(t, 2.0, rs[3].Quantity)
	assert.NotEmpty(t, rs[3].Reason)

	for i, r := range rs {
		assert.Equal(t, uint64(9), r.Seq)
		assert.Equal(t, uint32(i), r.Index)
	}
}

func TestFromMarket_EmptyBook(t *testing.T) {
	res := ob.NewOrderBook().ProcessMarketOrder(ob.Sell, 4)
	rs := FromMarket(1, t0, Taker{ID: "m", Side: ob.Sell}, res)

	require.Equal(t, []Kind{KindUnfilled}, kinds(rs))
	assert.Equal(t, 4.0, rs[0].Quantity)
	assert.Equal(t, t0, rs[0].Time)
}

func TestFromLimit_PartialMakerAndRest(t *testing.T) {
	book := ob.NewOrderBook()
	_, err := book.ProcessLimitOrder(ob.Buy, "b1", 5, 99, t0)
	require.NoError(t, err)

	res, err := book.ProcessLimitOrder(ob.Sell, "s1", 3, 99, t0)
	require.NoError(t, err)
	rs := FromLimit(2, t0, Taker{ID: "s1", Side: ob.Sell, Price: 99, Time: t0}, res)
	require.Equal(t, []Kind{KindPartialFill, KindFill}, kinds(rs))
	assert.Equal(t, "b1", rs[0].OrderID)
	assert.Equal(t, 3.0, rs[0].Quantity)
	assert.Equal(t, 2.0, rs[0].Remaining)
	assert.Equal(t, "s1", rs[1].OrderID)
	assert.Zero(t, rs[1].Remaining)

	res, err = book.ProcessLimitOrder(ob.Sell, "s2", 4, 99, t0)
	require.NoError(t, err)
	rs = FromLimit(3, t0, Taker{ID: "s2", Side: ob.Sell, Price: 99, Time: t0}, res)
	require.Equal(t, []Kind{KindFill, KindPartialFill, KindRested}, kinds(rs))
	assert.Equal(t, "b1", rs[0].OrderID)
	assert.Equal(t, 2.0, rs[1].Quantity)
	assert.Equal(t, 2.0, rs[2].Quantity)
	assert.Equal(t, ob.Sell, rs[2].Side)
	assert.Equal(t, 99.0, rs[2].Price)
}

func TestFromLimit_RestsWithoutMatch(t *testing.T) {
	book := ob.NewOrderBook()
	res, err := book.ProcessLimitOrder(ob.Buy, "b1", 5, 99, t0)
	require.NoError(t, err)

	rs := FromLimit(1, t0, Taker{ID: "b1", Side: ob.Buy, Price: 99, Time: t0}, res)
	require.Equal(t, []Kind{KindRested}, kinds(rs))
	assert.Equal(t, 5.0, rs[0].Remaining)
}

func TestFromCancelAndRejected(t *testing.T) {
	o := ob.NewOrder("x", ob.Buy, 2, 98, t0)
	rs := FromCancel(4, t0, o)
	require.Len(t, rs, 1)
	assert.Equal(t, KindCancelled, rs[0].Kind)
	assert.Equal(t, 98.0, rs[0].Price)

	rs = Rejected(5, t0, Taker{ID: "y", Side: ob.Sell}, -1, "quantity must be positive")
	require.Len(t, rs, 1)
	assert.Equal(t, KindRejected, rs[0].Kind)
	assert.Equal(t, "quantity must be positive", rs[0].Reason)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "PARTIAL_FILL", KindPartialFill.String())
	assert.Equal(t, "KIND(42)", Kind(42).String())
}

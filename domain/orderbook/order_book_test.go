package orderbook

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderBook_LimitCrossesResting(t *testing.T) {
	book := NewOrderBook()

	res, err := book.ProcessLimitOrder(Buy, "a", 10, 100, t0)
	require.NoError(t, err)
	assert.Empty(t, res.Done)
	require.NotNil(t, res.Resting)
	assert.Equal(t, 10.0, res.Resting.Quantity())

	asks, bids := book.Depth()
	assert.Empty(t, asks)
	assert.Equal(t, []PriceLevel{{Price: 100, Volume: 10}}, bids)

	res, err = book.ProcessLimitOrder(Sell, "b", 4, 100, t0)
	require.NoError(t, err)
	assert.Empty(t, res.Done)
	require.NotNil(t, res.Partial)
	assert.Equal(t, "a", res.Partial.ID())
	assert.Equal(t, 6.0, res.Partial.Quantity())
	assert.Equal(t, 4.0, res.PartialQuantityProcessed)
	assert.Equal(t, 0.0, res.QuantityLeft)
	assert.Nil(t, res.Resting, "fully filled incoming order must not rest")

	a, ok := book.Order("a")
	require.True(t, ok)
	assert.Equal(t, 6.0, a.Quantity())
	assert.Equal(t, 100.0, a.Price())

	_, ok = book.Order("b")
	assert.False(t, ok)

	asks, bids = book.Depth()
	assert.Empty(t, asks)
	assert.Equal(t, []PriceLevel{{Price: 100, Volume: 6}}, bids)
	require.NoError(t, book.Validate())
}

func TestOrderBook_MarketAgainstEmptySide(t *testing.T) {
	book := NewOrderBook()

	res := book.ProcessMarketOrder(Sell, 5)

	assert.Equal(t, 5.0, res.QuantityLeft)
	assert.Empty(t, res.Done)
	assert.Nil(t, res.Partial)
	assert.Equal(t, 0, book.Len())
}

func TestOrderBook_MarketBuyWalksAsks(t *testing.T) {
	book := NewOrderBook()
	_, err := book.ProcessLimitOrder(Sell, "s10", 3, 10, t0)
	require.NoError(t, err)
	_, err = book.ProcessLimitOrder(Sell, "s11", 5, 11, t0)
	require.NoError(t, err)

	res := book.ProcessMarketOrder(Buy, 6)

	require.Len(t, res.Done, 1)
	assert.Equal(t, "s10", res.Done[0].ID())
	assert.Equal(t, 10.0, res.Done[0].Price())
	require.NotNil(t, res.Partial)
	assert.Equal(t, "s11", res.Partial.ID())
	assert.Equal(t, 2.0, res.Partial.Quantity())
	assert.Equal(t, 3.0, res.PartialQuantityProcessed)
	assert.Equal(t, 0.0, res.QuantityLeft)

	_, ok := book.Order("s10")
	assert.False(t, ok, "filled order must leave the id index")
	o, ok := book.Order("s11")
	require.True(t, ok)
	assert.Equal(t, 2.0, o.Quantity())
	require.NoError(t, book.Validate())
}

func TestOrderBook_PricePriority(t *testing.T) {
	book := NewOrderBook()
	for i, p := range []float64{9, 7, 8} {
		_, err := book.ProcessLimitOrder(Buy, fmt.Sprintf("b%d", i), 1, p, t0)
		require.NoError(t, err)
	}

	res := book.ProcessMarketOrder(Sell, 3)

	var prices []float64
	for _, o := range res.Done {
		prices = append(prices, o.Price())
	}
	assert.Equal(t, []float64{9, 8, 7}, prices)
}

func TestOrderBook_LimitRestsRemainder(t *testing.T) {
	book := NewOrderBook()
	_, err := book.ProcessLimitOrder(Sell, "s1", 2, 101, t0)
	require.NoError(t, err)
	_, err = book.ProcessLimitOrder(Sell, "s2", 2, 105, t0)
	require.NoError(t, err)

	res, err := book.ProcessLimitOrder(Buy, "b1", 5, 102, t0)
	require.NoError(t, err)

	assert.Equal(t, []string{"s1"}, ids(res.Done))
	assert.Equal(t, 3.0, res.QuantityLeft)
	require.NotNil(t, res.Resting)
	assert.Equal(t, Buy, res.Resting.Side())
	assert.Equal(t, 102.0, res.Resting.Price())
	assert.Equal(t, t0, res.Resting.Time())

	asks, bids := book.Depth()
	assert.Equal(t, []PriceLevel{{105, 2}}, asks)
	assert.Equal(t, []PriceLevel{{102, 3}}, bids)
	require.NoError(t, book.Validate())
}

func TestOrderBook_DuplicateID(t *testing.T) {
	book := NewOrderBook()
	_, err := book.ProcessLimitOrder(Buy, "a", 1, 10, t0)
	require.NoError(t, err)

	_, err = book.ProcessLimitOrder(Sell, "a", 1, 20, t0)
	assert.ErrorIs(t, err, ErrOrderExists)
	assert.Equal(t, 1, book.Len())

	// once "a" is gone the id is free again
	book.CancelOrder("a")
	_, err = book.ProcessLimitOrder(Sell, "a", 1, 20, t0)
	assert.NoError(t, err)
}

func TestOrderBook_CancelOrder(t *testing.T) {
	book := NewOrderBook()
	for _, id := range []string{"a", "b", "c"} {
		_, err := book.ProcessLimitOrder(Buy, id, 2, 50, t0)
		require.NoError(t, err)
	}

	t.Run("unknown id", func(t *testing.T) {
		_, ok := book.CancelOrder("nope")
		assert.False(t, ok)
		assert.Equal(t, 3, book.Len())
	})

	t.Run("order behind the head", func(t *testing.T) {
		before := book.Bids().Volume()
		o, ok := book.CancelOrder("b")
		require.True(t, ok)
		assert.Equal(t, "b", o.ID())
		assert.Equal(t, before-2, book.Bids().Volume())

		_, ok = book.Order("b")
		assert.False(t, ok)
		_, ok = book.CancelOrder("b")
		assert.False(t, ok)
		require.NoError(t, book.Validate())
	})

	t.Run("FIFO survives the cancel", func(t *testing.T) {
		res := book.ProcessMarketOrder(Sell, 3)
		assert.Equal(t, []string{"a"}, ids(res.Done))
		require.NotNil(t, res.Partial)
		assert.Equal(t, "c", res.Partial.ID())
	})

	t.Run("partially filled order", func(t *testing.T) {
		o, ok := book.CancelOrder("c")
		require.True(t, ok)
		assert.Equal(t, 1.0, o.Quantity())
		assert.Equal(t, 0, book.Len())
		asks, bids := book.Depth()
		assert.Empty(t, asks)
		assert.Empty(t, bids)
	})
}

func TestOrderBook_CalculateMarketPrice(t *testing.T) {
	book := NewOrderBook()
	_, _ = book.ProcessLimitOrder(Buy, "b1", 1, 99, t0)
	_, _ = book.ProcessLimitOrder(Buy, "b2", 1, 98, t0)

	price, err := book.CalculateMarketPrice(Sell, 2)
	require.NoError(t, err)
	assert.Equal(t, 98.5, price)

	_, err = book.CalculateMarketPrice(Buy, 1)
	assert.ErrorIs(t, err, ErrInsufficientLiquidity)

	_, err = book.CalculateMarketPrice(Sell, 3)
	assert.ErrorIs(t, err, ErrInsufficientLiquidity)
	assert.Equal(t, 2, book.Len())
}

// TestOrderBook_RandomFlow drives a long random mix of limits, markets and
// cancels and checks every structural invariant after each step.
func TestOrderBook_RandomFlow(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	book := NewOrderBook()
	var issued []string

	for i := 0; i < 3000; i++ {
		side := Side(rng.Intn(2))
		qty := float64(1 + rng.Intn(10))

		switch r := rng.Intn(10); {
		case r < 6:
			id := fmt.Sprintf("o%d", i)
			price := float64(95 + rng.Intn(11))
			before := book.Asks().Volume() + book.Bids().Volume()
			res, err := book.ProcessLimitOrder(side, id, qty, price, t0)
			require.NoError(t, err)
			after := book.Asks().Volume() + book.Bids().Volume()
			assert.InDelta(t, before-res.QuantityProcessed()+res.QuantityLeft, after, 1e-9)
			issued = append(issued, id)
		case r < 8:
			before := book.opposite(side).Volume()
			res := book.ProcessMarketOrder(side, qty)
			assert.InDelta(t, qty, res.QuantityProcessed()+res.QuantityLeft, 1e-9)
			assert.InDelta(t, before-res.QuantityProcessed(), book.opposite(side).Volume(), 1e-9)
		default:
			if len(issued) == 0 {
				continue
			}
			id := issued[rng.Intn(len(issued))]
			resting, known := book.Order(id)
			o, ok := book.CancelOrder(id)
			assert.Equal(t, known, ok)
			if ok {
				assert.Equal(t, resting, o)
			}
		}

		require.NoError(t, book.Validate(), "step %d", i)
		assertDepthOrdered(t, book)
	}
}

func assertDepthOrdered(t *testing.T, book *OrderBook) {
	t.Helper()
	asks, bids := book.Depth()
	for i := 1; i < len(asks); i++ {
		require.Less(t, asks[i-1].Price, asks[i].Price)
	}
	for i := 1; i < len(bids); i++ {
		require.Greater(t, bids[i-1].Price, bids[i].Price)
	}
	if len(asks) > 0 && len(bids) > 0 {
		require.Less(t, bids[0].Price, asks[0].Price, "book left crossed")
	}
}

package simulator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lob/domain/orderbook"
	"lob/service"
)

var t0 = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func runOnce(t *testing.T, cfg Config) (Summary, *service.Engine) {
	t.Helper()
	e := service.NewEngine(orderbook.NewOrderBook(),
		service.WithInvariantChecks(true),
		service.WithClock(func() time.Time { return t0 }),
	)
	e.Start(context.Background())
	t.Cleanup(func() { _ = e.Stop(context.Background()) })

	sim := New(cfg, e, zap.NewNop())
	sim.now = func() time.Time { return t0 }
	sum, err := sim.Run(context.Background())
	require.NoError(t, err)
	return sum, e
}

func testConfig() Config {
	return Config{
		Orders:      3000,
		Seed:        7,
		MidPrice:    100,
		Spread:      5,
		Tick:        0.5,
		MaxQuantity: 10,
		MarketRatio: 0.1,
		CancelRatio: 0.2,
	}
}

func TestSimulator_Run(t *testing.T) {
	cfg := testConfig()
	sum, e := runOnce(t, cfg)

	assert.Equal(t, cfg.Orders, sum.Submitted)
	assert.Equal(t, sum.Submitted, sum.Limits+sum.Markets+sum.Cancels)
	assert.Zero(t, sum.Rejected)
	assert.Positive(t, sum.Rested)
	assert.Positive(t, sum.Fills)
	assert.Positive(t, sum.Markets)
	assert.Positive(t, sum.Cancels)
	assert.LessOrEqual(t, sum.CancelsMissed, sum.Cancels)

	d := e.Depth()
	bid, okBid := d.BestBid()
	ask, okAsk := d.BestAsk()
	if okBid && okAsk {
		assert.Less(t, bid.Price, ask.Price)
	}
}

func TestSimulator_Deterministic(t *testing.T) {
	a, ea := runOnce(t, testConfig())
	b, eb := runOnce(t, testConfig())

	a.Elapsed, b.Elapsed = 0, 0
	assert.Equal(t, a, b)
	assert.Equal(t, ea.Depth().Asks, eb.Depth().Asks)
	assert.Equal(t, ea.Depth().Bids, eb.Depth().Bids)
}

func TestSimulator_StopsOnCancelledContext(t *testing.T) {
	e := service.NewEngine(orderbook.NewOrderBook())
	e.Start(context.Background())
	defer e.Stop(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sum, err := New(testConfig(), e, nil).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, sum.Submitted)
}

func TestSimulator_PriceOnTick(t *testing.T) {
	s := New(testConfig(), nil, nil)
	for i := 0; i < 1000; i++ {
		p := s.price(orderbook.Buy)
		assert.Equal(t, 0.0, p-float64(int(p*2))/2, "price %v off tick", p)
		assert.GreaterOrEqual(t, p, 0.5)
	}
}

// Package simulator drives an engine with seeded random order flow. It is
// the load and soak tool for the book: limit orders around a mid price,
// occasional market orders, and cancels of earlier orders.
package simulator

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"lob/domain/orderbook"
	"lob/infra/logging"
	"lob/service"
)

// Engine is what the simulator submits to.
type Engine interface {
	SubmitLimit(ctx context.Context, req service.LimitRequest) (service.LimitReport, error)
	SubmitMarket(ctx context.Context, req service.MarketRequest) (service.MarketReport, error)
	Cancel(ctx context.Context, id string) (orderbook.Order, bool, error)
}

type Config struct {
	Orders      int
	Seed        int64
	MidPrice    float64
	Spread      float64 // limit prices fall within MidPrice ± Spread
	Tick        float64
	MaxQuantity float64
	MarketRatio float64
	CancelRatio float64
}

type Summary struct {
	Submitted     int
	Limits        int
	Markets       int
	Cancels       int
	CancelsMissed int
	Rested        int
	Fills         int
	Volume        float64
	Unfilled      float64
	Rejected      int
	Elapsed       time.Duration
}

type Simulator struct {
	cfg     Config
	engine  Engine
	log     *zap.Logger
	rng     *rand.Rand
	entropy *ulid.MonotonicEntropy
	now     func() time.Time

	live []string
}

func New(cfg Config, engine Engine, log *zap.Logger) *Simulator {
	if cfg.Tick <= 0 {
		cfg.Tick = 1
	}
	if cfg.MaxQuantity < 1 {
		cfg.MaxQuantity = 1
	}
	if cfg.MidPrice <= 0 {
		cfg.MidPrice = 100
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	return &Simulator{
		cfg:     cfg,
		engine:  engine,
		log:     logging.Named(log, "simulator"),
		rng:     rng,
		entropy: ulid.Monotonic(rng, 0),
		now:     time.Now,
	}
}

// Run submits cfg.Orders requests, one at a time, and summarises what the
// engine did with them. Rejections are counted; any other error stops the
// run.
func (s *Simulator) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	start := time.Now()
	s.log.Info("simulation started", zap.Int("orders", s.cfg.Orders), zap.Int64("seed", s.cfg.Seed))

	for i := 0; i < s.cfg.Orders; i++ {
		if err := ctx.Err(); err != nil {
			sum.Elapsed = time.Since(start)
			return sum, err
		}
		if err := s.step(ctx, &sum); err != nil {
			if errors.Is(err, service.ErrInvalidRequest) {
				sum.Rejected++
				continue
			}
			sum.Elapsed = time.Since(start)
			return sum, err
		}
	}

	sum.Elapsed = time.Since(start)
	s.log.Info("simulation finished",
		zap.Int("submitted", sum.Submitted),
		zap.Int("rested", sum.Rested),
		zap.Int("fills", sum.Fills),
		zap.Float64("volume", sum.Volume),
		zap.Int("cancels", sum.Cancels),
		zap.Int("rejected", sum.Rejected),
		zap.Duration("elapsed", sum.Elapsed),
	)
	return sum, nil
}

func (s *Simulator) step(ctx context.Context, sum *Summary) error {
	sum.Submitted++
	roll := s.rng.Float64()

	switch {
	case roll < s.cfg.CancelRatio && len(s.live) > 0:
		sum.Cancels++
		_, ok, err := s.engine.Cancel(ctx, s.takeLive())
		if err == nil && !ok {
			sum.CancelsMissed++
		}
		return err

	case roll < s.cfg.CancelRatio+s.cfg.MarketRatio:
		sum.Markets++
		rep, err := s.engine.SubmitMarket(ctx, service.MarketRequest{
			ID:       s.newID(),
			Side:     s.side(),
			Quantity: s.quantity(),
		})
		if err != nil {
			return err
		}
		sum.Fills += fills(rep.Result.Done, rep.Result.Partial)
		sum.Volume += rep.Result.QuantityProcessed()
		sum.Unfilled += rep.Result.QuantityLeft
		return nil

	default:
		sum.Limits++
		side := s.side()
		rep, err := s.engine.SubmitLimit(ctx, service.LimitRequest{
			ID:       s.newID(),
			Side:     side,
			Quantity: s.quantity(),
			Price:    s.price(side),
		})
		if err != nil {
			return err
		}
		sum.Fills += fills(rep.Result.Done, rep.Result.Partial)
		sum.Volume += rep.Result.QuantityProcessed()
		if rep.Result.Resting != nil {
			sum.Rested++
			s.live = append(s.live, rep.Result.Resting.ID())
		}
		return nil
	}
}

func (s *Simulator) newID() string {
	return ulid.MustNew(ulid.Timestamp(s.now()), s.entropy).String()
}

func (s *Simulator) side() orderbook.Side {
	if s.rng.Intn(2) == 0 {
		return orderbook.Buy
	}
	return orderbook.Sell
}

// quantity is a whole number in [1, MaxQuantity].
func (s *Simulator) quantity() float64 {
	return float64(1 + s.rng.Intn(int(s.cfg.MaxQuantity)))
}

// price leans each side towards its own half of the spread so most orders
// rest and some cross.
func (s *Simulator) price(side orderbook.Side) float64 {
	offset := s.cfg.Spread * (s.rng.Float64()*1.25 - 0.25)
	p := s.cfg.MidPrice - offset
	if side == orderbook.Sell {
		p = s.cfg.MidPrice + offset
	}
	p = math.Round(p/s.cfg.Tick) * s.cfg.Tick
	return math.Max(p, s.cfg.Tick)
}

// takeLive removes and returns a random earlier order id. The order may
// have traded away since; the cancel then misses.
func (s *Simulator) takeLive() string {
	i := s.rng.Intn(len(s.live))
	id := s.live[i]
	last := len(s.live) - 1
	s.live[i] = s.live[last]
	s.live = s.live[:last]
	return id
}

func fills(done []orderbook.Order, partial *orderbook.Order) int {
	n := len(done)
	if partial != nil {
		n++
	}
	return n
}

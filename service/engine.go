package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"lob/domain/execution"
	"lob/domain/orderbook"
	"lob/infra/logging"
	"lob/infra/metrics"
	"lob/infra/sequence"
	"lob/snapshot"
)

const defaultInboxSize = 1024

type command struct {
	name  string
	apply func()
	done  chan struct{}
}

type Engine struct {
	book            *orderbook.OrderBook
	symbol          string
	log             *zap.Logger
	metrics         *metrics.Metrics
	reporter        Reporter
	snapshots       *snapshot.Store
	seq             *sequence.Sequencer
	now             func() time.Time
	inboxSize       int
	checkInvariants bool

	inbox     chan command
	quit      chan struct{}
	stopped   chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	started   bool
	mu        sync.Mutex
}

// NewEngine wraps book. From here on only the engine may touch it.
func NewEngine(book *orderbook.OrderBook, opts ...Option) *Engine {
	e := &Engine{
		book:      book,
		symbol:    "default",
		inboxSize: defaultInboxSize,
		now:       time.Now,
		quit:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = metrics.New("lob")
	}
	if e.snapshots == nil {
		e.snapshots = snapshot.NewStore()
	}
	if e.seq == nil {
		e.seq = sequence.New(0)
	}
	e.log = logging.Named(e.log, "engine").With(zap.String("symbol", e.symbol))
	e.inbox = make(chan command, e.inboxSize)
	e.snapshots.Publish(snapshot.Capture(e.seq.Current(), book, e.now()))
	return e
}

// Start launches the engine loop. It returns immediately; the loop runs
// until Stop is called or ctx is cancelled.
func (e *Engine) Start(ctx context.Context) {
	e.startOnce.Do(func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		select {
		case <-e.quit:
			return
		default:
		}
		e.started = true
		e.log.Info("engine started", zap.Int("inbox", e.inboxSize), zap.Bool("invariants", e.checkInvariants))
		go e.run(ctx)
	})
}

// Stop asks the loop to finish the commands already queued and waits for
// it, or for ctx.
func (e *Engine) Stop(ctx context.Context) error {
	e.stopOnce.Do(func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		close(e.quit)
		if !e.started {
			close(e.stopped)
		}
	})
	select {
	case <-e.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.stopped)
	for {
		select {
		case cmd := <-e.inbox:
			e.execute(cmd)
		case <-e.quit:
			e.drain()
			e.log.Info("engine stopped", zap.Uint64("seq", e.seq.Current()))
			return
		case <-ctx.Done():
			e.drain()
			e.log.Info("engine stopped by context", zap.Uint64("seq", e.seq.Current()))
			return
		}
	}
}

func (e *Engine) drain() {
	for {
		select {
		case cmd := <-e.inbox:
			e.execute(cmd)
		default:
			return
		}
	}
}

func (e *Engine) execute(cmd command) {
	start := time.Now()
	cmd.apply()
	e.metrics.CommandLatency.WithLabelValues(cmd.name).Observe(time.Since(start).Seconds())
	close(cmd.done)
}

// submit queues fn and waits for the loop to run it. A command that was
// queued runs even if ctx expires while waiting for it.
func (e *Engine) submit(ctx context.Context, name string, fn func()) error {
	cmd := command{name: name, apply: fn, done: make(chan struct{})}
	select {
	case e.inbox <- cmd:
	case <-e.quit:
		return ErrEngineStopped
	case <-e.stopped:
		return ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-cmd.done:
		return nil
	case <-e.stopped:
		// the loop may have exited between our send and its drain
		select {
		case <-cmd.done:
			return nil
		default:
			return ErrEngineStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitLimit matches a limit order and rests what is left. Invalid
// requests and duplicate ids are rejected with a REJECTED report and an
// error marked ErrInvalidRequest.
func (e *Engine) SubmitLimit(ctx context.Context, req LimitRequest) (LimitReport, error) {
	var (
		rep LimitReport
		err error
	)
	if serr := e.submit(ctx, "limit", func() { rep, err = e.applyLimit(req) }); serr != nil {
		return LimitReport{}, serr
	}
	return rep, err
}

// SubmitMarket matches a market order. Whatever finds no liquidity is
// reported UNFILLED and dropped.
func (e *Engine) SubmitMarket(ctx context.Context, req MarketRequest) (MarketReport, error) {
	var (
		rep MarketReport
		err error
	)
	if serr := e.submit(ctx, "market", func() { rep, err = e.applyMarket(req) }); serr != nil {
		return MarketReport{}, serr
	}
	return rep, err
}

// Cancel removes a resting order. ok is false when no such order rests.
func (e *Engine) Cancel(ctx context.Context, id string) (o orderbook.Order, ok bool, err error) {
	if err := validateRequest(cancelRequest{ID: id}); err != nil {
		return orderbook.Order{}, false, err
	}
	if serr := e.submit(ctx, "cancel", func() { o, ok, err = e.applyCancel(id) }); serr != nil {
		return orderbook.Order{}, false, serr
	}
	return o, ok, err
}

// Lookup returns the resting order with the given id.
func (e *Engine) Lookup(ctx context.Context, id string) (o orderbook.Order, ok bool, err error) {
	err = e.submit(ctx, "lookup", func() { o, ok = e.book.Order(id) })
	return o, ok, err
}

// EstimatePrice is the average price a market order of quantity on side
// would get right now. A zero quantity estimates to 0; negative ones are
// refused.
func (e *Engine) EstimatePrice(ctx context.Context, side orderbook.Side, quantity float64) (float64, error) {
	if err := validateRequest(estimateRequest{Side: side, Quantity: quantity}); err != nil {
		return 0, err
	}
	var (
		price float64
		err   error
	)
	if serr := e.submit(ctx, "estimate", func() { price, err = e.book.CalculateMarketPrice(side, quantity) }); serr != nil {
		return 0, serr
	}
	return price, err
}

// Depth returns the latest published snapshot without entering the loop.
func (e *Engine) Depth() *snapshot.Depth {
	return e.snapshots.Load()
}

// Seq is the last sequence issued.
func (e *Engine) Seq() uint64 {
	return e.seq.Current()
}

/******************** Engine loop ********************/

func (e *Engine) applyLimit(req LimitRequest) (LimitReport, error) {
	now := e.now()
	if req.Time.IsZero() {
		req.Time = now
	}
	taker := execution.Taker{ID: req.ID, Side: req.Side, Price: req.Price, Time: req.Time}

	if err := validateRequest(req); err != nil {
		seq, reports := e.reject("limit", now, taker, req.Quantity, err)
		return LimitReport{Seq: seq, Reports: reports}, err
	}

	res, err := e.book.ProcessLimitOrder(req.Side, req.ID, req.Quantity, req.Price, req.Time)
	if err != nil {
		err = errors.Mark(err, ErrInvalidRequest)
		seq, reports := e.reject("limit", now, taker, req.Quantity, err)
		return LimitReport{Seq: seq, Result: res, Reports: reports}, err
	}

	seq := e.seq.Next()
	reports := execution.FromLimit(seq, now, taker, res)
	e.metrics.OrdersAccepted.WithLabelValues("limit").Inc()
	e.recordMatch(res.Done, res.Partial, res.QuantityProcessed())

	e.log.Debug("limit",
		zap.Uint64("seq", seq),
		zap.String("order_id", req.ID),
		zap.Stringer("side", req.Side),
		zap.Float64("price", req.Price),
		zap.Float64("quantity", req.Quantity),
		zap.Float64("processed", res.QuantityProcessed()),
		zap.Bool("rested", res.Resting != nil),
	)
	err = e.commit(seq, now, reports)
	return LimitReport{Seq: seq, Result: res, Reports: reports}, err
}

func (e *Engine) applyMarket(req MarketRequest) (MarketReport, error) {
	now := e.now()
	if req.Time.IsZero() {
		req.Time = now
	}
	taker := execution.Taker{ID: req.ID, Side: req.Side, Time: req.Time}

	if err := validateRequest(req); err != nil {
		seq, reports := e.reject("market", now, taker, req.Quantity, err)
		return MarketReport{Seq: seq, OrderID: req.ID, Reports: reports}, err
	}

	seq := e.seq.Next()
	if taker.ID == "" {
		taker.ID = fmt.Sprintf("market-%d", seq)
	}
	res := e.book.ProcessMarketOrder(req.Side, req.Quantity)
	reports := execution.FromMarket(seq, now, taker, res)
	e.metrics.OrdersAccepted.WithLabelValues("market").Inc()
	e.recordMatch(res.Done, res.Partial, res.QuantityProcessed())
	if res.QuantityLeft > 0 {
		e.metrics.Unfilled.Add(res.QuantityLeft)
	}

	e.log.Debug("market",
		zap.Uint64("seq", seq),
		zap.String("order_id", taker.ID),
		zap.Stringer("side", req.Side),
		zap.Float64("quantity", req.Quantity),
		zap.Float64("processed", res.QuantityProcessed()),
		zap.Float64("unfilled", res.QuantityLeft),
	)
	err := e.commit(seq, now, reports)
	return MarketReport{Seq: seq, OrderID: taker.ID, Result: res, Reports: reports}, err
}

func (e *Engine) applyCancel(id string) (orderbook.Order, bool, error) {
	o, ok := e.book.CancelOrder(id)
	if !ok {
		return orderbook.Order{}, false, nil
	}
	now := e.now()
	seq := e.seq.Next()
	e.metrics.Cancels.Inc()
	e.log.Debug("cancel", zap.Uint64("seq", seq), zap.String("order_id", id))
	return o, true, e.commit(seq, now, execution.FromCancel(seq, now, o))
}

func (e *Engine) reject(kind string, now time.Time, taker execution.Taker, quantity float64, cause error) (uint64, []execution.Report) {
	seq := e.seq.Next()
	reports := execution.Rejected(seq, now, taker, quantity, cause.Error())
	e.metrics.OrdersRejected.WithLabelValues(kind).Inc()
	e.log.Warn("request rejected",
		zap.Uint64("seq", seq),
		zap.String("type", kind),
		zap.String("order_id", taker.ID),
		zap.Error(cause),
	)
	if err := e.emit(reports); err != nil {
		e.log.Error("record rejection", zap.Uint64("seq", seq), zap.Error(err))
	}
	return seq, reports
}

func (e *Engine) recordMatch(done []orderbook.Order, partial *orderbook.Order, processed float64) {
	fills := len(done)
	if partial != nil {
		fills++
	}
	if fills > 0 {
		e.metrics.Fills.Add(float64(fills))
		e.metrics.FilledVolume.Add(processed)
	}
}

// commit runs after every book mutation: reports first, then the new
// depth view, then the optional invariant check. A reporter failure does
// not undo the book change; it is logged and returned to the caller.
func (e *Engine) commit(seq uint64, now time.Time, reports []execution.Report) error {
	err := e.emit(reports)
	if err != nil {
		e.log.Error("record reports", zap.Uint64("seq", seq), zap.Error(err))
		err = errors.Wrapf(err, "record reports for seq %d", seq)
	}

	e.snapshots.Publish(snapshot.Capture(seq, e.book, now))

	if e.checkInvariants {
		if verr := e.book.Validate(); verr != nil {
			e.log.Error("book invariant violated", zap.Uint64("seq", seq), zap.Error(verr))
			panic(verr)
		}
	}
	return err
}

func (e *Engine) emit(reports []execution.Report) error {
	if e.reporter == nil || len(reports) == 0 {
		return nil
	}
	return e.reporter.Report(reports)
}

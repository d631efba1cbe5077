package orderbook

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"
)

// OrderSide holds every resting order of one side of the book.
//
// The price tree is a plain ascending order over price; which end is
// "best" depends on the side: the lowest ask, the highest bid.
type OrderSide struct {
	side      Side
	prices    *priceTree
	volume    float64
	numOrders int
	depth     int
}

func NewOrderSide(side Side) *OrderSide {
	return &OrderSide{
		side:   side,
		prices: newPriceTree(),
	}
}

func (s *OrderSide) Side() Side      { return s.side }
func (s *OrderSide) Len() int        { return s.numOrders }
func (s *OrderSide) Depth() int      { return s.depth }
func (s *OrderSide) Volume() float64 { return s.volume }

// Queue returns the queue resting at price, or nil.
func (s *OrderSide) Queue(price float64) *OrderQueue {
	return s.prices.Get(price)
}

// Append rests o at its price and returns the queue that now holds it.
func (s *OrderSide) Append(o Order) *OrderQueue {
	q, created := s.prices.Upsert(o.price)
	if created {
		s.depth++
	}
	q.Append(o)
	s.numOrders++
	s.volume += o.quantity
	return q
}

// Remove takes the head order off q. Matching always consumes oldest
// first, so this is the only removal the match loop uses.
func (s *OrderSide) Remove(q *OrderQueue) (Order, bool) {
	o, ok := q.RemoveHead()
	if !ok {
		return Order{}, false
	}
	s.removed(q, o)
	return o, true
}

// RemoveOrder takes the order with the given id off q, wherever it sits.
func (s *OrderSide) RemoveOrder(q *OrderQueue, id string) (Order, bool) {
	o, ok := q.RemoveByID(id)
	if !ok {
		return Order{}, false
	}
	s.removed(q, o)
	return o, true
}

// CancelOrder removes order id from the level at price. The caller knows
// the location; the side keeps its counters and the tree in step.
func (s *OrderSide) CancelOrder(id string, price float64) (Order, bool) {
	q := s.prices.Get(price)
	if q == nil {
		return Order{}, false
	}
	return s.RemoveOrder(q, id)
}

func (s *OrderSide) removed(q *OrderQueue, o Order) {
	s.numOrders--
	s.volume -= o.quantity
	if q.Len() == 0 {
		s.prices.Delete(q.Price())
		s.depth--
	}
	if s.numOrders == 0 {
		s.volume = 0
	}
}

func (s *OrderSide) MaxPriceQueue() *OrderQueue {
	if s.depth == 0 {
		return nil
	}
	return s.prices.Max()
}

func (s *OrderSide) MinPriceQueue() *OrderQueue {
	if s.depth == 0 {
		return nil
	}
	return s.prices.Min()
}

// LessThan returns the level with the highest price strictly below price.
func (s *OrderSide) LessThan(price float64) *OrderQueue {
	return s.prices.Predecessor(price)
}

// GreaterThan returns the level with the lowest price strictly above price.
func (s *OrderSide) GreaterThan(price float64) *OrderQueue {
	return s.prices.Successor(price)
}

// Best returns the level a taker reaches first.
func (s *OrderSide) Best() *OrderQueue {
	if s.side == Sell {
		return s.MinPriceQueue()
	}
	return s.MaxPriceQueue()
}

// worse returns the next level after price, walking away from the best.
func (s *OrderSide) worse(price float64) *OrderQueue {
	if s.side == Sell {
		return s.GreaterThan(price)
	}
	return s.LessThan(price)
}

// marketable reports whether a level at levelPrice can trade with an
// incoming limit at limit.
func (s *OrderSide) marketable(levelPrice, limit float64) bool {
	if s.side == Sell {
		return levelPrice <= limit
	}
	return levelPrice >= limit
}

// CalculateMarketPrice returns the volume-weighted price a market order of
// quantity would achieve against this side. It does not touch the book.
func (s *OrderSide) CalculateMarketPrice(quantity float64) (float64, error) {
	if quantity <= 0 {
		return 0, nil
	}

	left := decimal.NewFromFloat(quantity)
	notional := decimal.Zero
	for q := s.Best(); q != nil && left.IsPositive(); q = s.worse(q.Price()) {
		take := decimal.Min(left, decimal.NewFromFloat(q.Volume()))
		notional = notional.Add(take.Mul(decimal.NewFromFloat(q.Price())))
		left = left.Sub(take)
	}
	if left.IsPositive() {
		return 0, errors.Wrapf(ErrInsufficientLiquidity,
			"%s side holds %v, requested %v", s.side, s.volume, quantity)
	}

	price, _ := notional.Div(decimal.NewFromFloat(quantity)).Float64()
	return price, nil
}

// ProcessMarketOrder matches quantity against this side from the best
// level outward until it is filled or the side runs dry.
func (s *OrderSide) ProcessMarketOrder(quantity float64) MarketResult {
	done, partial, partialQty, left := s.match(quantity, math.NaN())
	return MarketResult{
		Done:                     done,
		Partial:                  partial,
		PartialQuantityProcessed: partialQty,
		QuantityLeft:             left,
	}
}

// ProcessLimitOrder matches like ProcessMarketOrder but stops at the
// first level that is not marketable against price. Resting the
// remainder on the other side is the book's job.
func (s *OrderSide) ProcessLimitOrder(orderID string, quantity, price float64) LimitResult {
	done, partial, partialQty, left := s.match(quantity, price)
	return LimitResult{
		OrderID:                  orderID,
		Done:                     done,
		Partial:                  partial,
		PartialQuantityProcessed: partialQty,
		QuantityLeft:             left,
	}
}

// match consumes resting orders head first. A NaN limit means no bound.
func (s *OrderSide) match(quantity, limit float64) (done []Order, partial *Order, partialQty, left float64) {
	left = quantity
	for left > 0 {
		q := s.Best()
		if q == nil {
			break
		}
		if !math.IsNaN(limit) && !s.marketable(q.Price(), limit) {
			break
		}

		for left > 0 && q.Len() > 0 {
			head, _ := q.Head()
			if head.quantity <= left {
				left -= head.quantity
				o, _ := s.Remove(q)
				done = append(done, o)
				continue
			}

			reduced := head.withQuantity(head.quantity - left)
			q.Update(0, reduced)
			s.volume -= left
			partial = &reduced
			partialQty = left
			left = 0
		}
	}
	return done, partial, partialQty, left
}

// Levels returns the side's depth view, best price first.
func (s *OrderSide) Levels() []PriceLevel {
	levels := make([]PriceLevel, 0, s.depth)
	visit := func(q *OrderQueue) bool {
		levels = append(levels, PriceLevel{Price: q.Price(), Volume: q.Volume()})
		return true
	}
	if s.side == Sell {
		s.prices.ForEachAscending(visit)
	} else {
		s.prices.ForEachDescending(visit)
	}
	return levels
}

// volumeTolerance bounds the float drift allowed between the running
// totals and a fresh recount.
const volumeTolerance = 1e-9

// Validate recounts the side and checks it against the running totals.
// A failure is a bug in the book, never a caller error.
func (s *OrderSide) Validate() error {
	if s.prices.blackHeight(s.prices.root) < 0 {
		return errors.AssertionFailedf("%s side: price tree is not a valid red-black tree", s.side)
	}
	if s.depth != s.prices.Size() {
		return errors.AssertionFailedf("%s side: depth %d, tree holds %d levels", s.side, s.depth, s.prices.Size())
	}

	var (
		count  int
		volume float64
		err    error
	)
	s.prices.ForEachAscending(func(q *OrderQueue) bool {
		if q.Len() == 0 {
			err = errors.AssertionFailedf("%s side: empty level at %v", s.side, q.Price())
			return false
		}
		var qv float64
		for _, o := range q.Orders() {
			if o.price != q.Price() || o.side != s.side {
				err = errors.AssertionFailedf("%s side: order %s (%s @ %v) filed under %v",
					s.side, o.id, o.side, o.price, q.Price())
				return false
			}
			qv += o.quantity
		}
		if math.Abs(qv-q.Volume()) > volumeTolerance {
			err = errors.AssertionFailedf("%s side: level %v volume %v, orders sum to %v",
				s.side, q.Price(), q.Volume(), qv)
			return false
		}
		count += q.Len()
		volume += qv
		return true
	})
	if err != nil {
		return err
	}
	if count != s.numOrders {
		return errors.AssertionFailedf("%s side: order count %d, levels hold %d", s.side, s.numOrders, count)
	}
	if math.Abs(volume-s.volume) > volumeTolerance {
		return errors.AssertionFailedf("%s side: volume %v, levels sum to %v", s.side, s.volume, volume)
	}
	return nil
}

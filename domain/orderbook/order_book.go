package orderbook

import (
	"time"

	"github.com/cockroachdb/errors"
)

// location is where a resting order lives: the side it rests on and the
// price level holding it.
type location struct {
	side  Side
	price float64
}

// OrderBook is single-writer and deterministic.
type OrderBook struct {
	asks   *OrderSide
	bids   *OrderSide
	orders map[string]location
}

// NewOrderBook creates a new empty order book.
func NewOrderBook() *OrderBook {
	return &OrderBook{
		asks:   NewOrderSide(Sell),
		bids:   NewOrderSide(Buy),
		orders: make(map[string]location),
	}
}

func (b *OrderBook) Asks() *OrderSide { return b.asks }
func (b *OrderBook) Bids() *OrderSide { return b.bids }

// Len is the number of resting orders on both sides.
func (b *OrderBook) Len() int { return len(b.orders) }

func (b *OrderBook) own(side Side) *OrderSide {
	if side == Sell {
		return b.asks
	}
	return b.bids
}

func (b *OrderBook) opposite(side Side) *OrderSide {
	return b.own(side.Opposite())
}

// ProcessMarketOrder matches quantity against the opposite side. A buy
// lifts asks, a sell hits bids. Whatever cannot be filled is reported in
// QuantityLeft and dropped.
func (b *OrderBook) ProcessMarketOrder(side Side, quantity float64) MarketResult {
	res := b.opposite(side).ProcessMarketOrder(quantity)
	b.evict(res.Done)
	return res
}

// ProcessLimitOrder matches against the opposite side up to price and
// rests any remainder under orderID on the order's own side.
func (b *OrderBook) ProcessLimitOrder(side Side, orderID string, quantity, price float64, ts time.Time) (LimitResult, error) {
	if _, ok := b.orders[orderID]; ok {
		return LimitResult{OrderID: orderID}, errors.Wrapf(ErrOrderExists, "order %q", orderID)
	}

	res := b.opposite(side).ProcessLimitOrder(orderID, quantity, price)
	b.evict(res.Done)

	if res.QuantityLeft > 0 {
		o := NewOrder(orderID, side, res.QuantityLeft, price, ts)
		b.own(side).Append(o)
		b.orders[orderID] = location{side: side, price: price}
		res.Resting = &o
	}
	return res, nil
}

// evict drops fully matched orders from the id index. A partially
// matched order keeps its entry: same side, same price, same slot.
func (b *OrderBook) evict(done []Order) {
	for _, o := range done {
		delete(b.orders, o.id)
	}
}

// Order returns the resting order with the given id.
func (b *OrderBook) Order(orderID string) (Order, bool) {
	loc, ok := b.orders[orderID]
	if !ok {
		return Order{}, false
	}
	q := b.own(loc.side).Queue(loc.price)
	if q == nil {
		return Order{}, false
	}
	return q.Find(orderID)
}

// CancelOrder removes the resting order with the given id and returns it.
func (b *OrderBook) CancelOrder(orderID string) (Order, bool) {
	loc, ok := b.orders[orderID]
	if !ok {
		return Order{}, false
	}
	delete(b.orders, orderID)
	return b.own(loc.side).CancelOrder(orderID, loc.price)
}

// Depth returns the book view: asks by ascending price, bids by
// descending price.
func (b *OrderBook) Depth() (asks, bids []PriceLevel) {
	return b.asks.Levels(), b.bids.Levels()
}

// CalculateMarketPrice estimates the average price a market order of
// quantity on side would get, without executing it.
func (b *OrderBook) CalculateMarketPrice(side Side, quantity float64) (float64, error) {
	return b.opposite(side).CalculateMarketPrice(quantity)
}

// Validate checks both sides and that the id index and the queues agree
// in both directions.
func (b *OrderBook) Validate() error {
	for _, s := range []*OrderSide{b.asks, b.bids} {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	if n := b.asks.Len() + b.bids.Len(); n != len(b.orders) {
		return errors.AssertionFailedf("book: %d resting orders, id index holds %d", n, len(b.orders))
	}
	for id, loc := range b.orders {
		q := b.own(loc.side).Queue(loc.price)
		if q == nil {
			return errors.AssertionFailedf("book: order %s indexed at %s %v, no such level", id, loc.side, loc.price)
		}
		if _, ok := q.Find(id); !ok {
			return errors.AssertionFailedf("book: order %s indexed at %s %v, not in queue", id, loc.side, loc.price)
		}
	}
	return nil
}

package orderbook

import (
	"fmt"
	"time"
)

type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

// Opposite returns the side an order of side s matches against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

// Order is an immutable order value. A partial fill produces a new value
// with a smaller quantity; the original is never modified.
type Order struct {
	id        string
	side      Side
	quantity  float64
	price     float64
	timestamp time.Time
}

func NewOrder(id string, side Side, quantity, price float64, timestamp time.Time) Order {
	return Order{
		id:        id,
		side:      side,
		quantity:  quantity,
		price:     price,
		timestamp: timestamp,
	}
}

func (o Order) ID() string        { return o.id }
func (o Order) Side() Side        { return o.side }
func (o Order) Quantity() float64 { return o.quantity }
func (o Order) Price() float64    { return o.price }
func (o Order) Time() time.Time   { return o.timestamp }

// withQuantity returns a copy of o carrying quantity q.
func (o Order) withQuantity(q float64) Order {
	o.quantity = q
	return o
}

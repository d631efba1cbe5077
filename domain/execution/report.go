// Package execution turns order book results into execution reports,
// the records a venue hands to downstream consumers (fills, rests,
// cancels, rejections).
package execution

import (
	"fmt"
	"time"

	"lob/domain/orderbook"
)

type Kind uint8

const (
	KindFill Kind = iota + 1
	KindPartialFill
	KindRested
	KindCancelled
	KindUnfilled
	KindRejected
)

func (k Kind) String() string {
	switch k {
	case KindFill:
		return "FILL"
	case KindPartialFill:
		return "PARTIAL_FILL"
	case KindRested:
		return "RESTED"
	case KindCancelled:
		return "CANCELLED"
	case KindUnfilled:
		return "UNFILLED"
	case KindRejected:
		return "REJECTED"
	default:
		return fmt.Sprintf("KIND(%d)", uint8(k))
	}
}

// Report is one execution record. Seq is the engine command sequence
// that produced it and Index its position among that command's reports,
// so (Seq, Index) is unique and ordered.
//
// Quantity is the amount the report is about (filled, rested, cancelled
// or left unfilled). Remaining is what is still open on the order after
// the event.
type Report struct {
	Seq       uint64
	Index     uint32
	Kind      Kind
	OrderID   string
	Side      orderbook.Side
	Price     float64
	Quantity  float64
	Remaining float64
	Time      time.Time
	Reason    string
}

// Taker describes the incoming order a command acted for.
type Taker struct {
	ID    string
	Side  orderbook.Side
	Price float64 // zero for market orders
	Time  time.Time
}

type builder struct {
	seq     uint64
	at      time.Time
	reports []Report
}

func (b *builder) add(r Report) {
	r.Seq = b.seq
	r.Index = uint32(len(b.reports))
	if r.Time.IsZero() {
		r.Time = b.at
	}
	b.reports = append(b.reports, r)
}

// makers reports the resting side of a match: one FILL per consumed order
// and a PARTIAL_FILL for the order left with reduced size.
func (b *builder) makers(done []orderbook.Order, partial *orderbook.Order, partialQty float64) {
	for _, o := range done {
		b.add(Report{
			Kind:     KindFill,
			OrderID:  o.ID(),
			Side:     o.Side(),
			Price:    o.Price(),
			Quantity: o.Quantity(),
		})
	}
	if partial != nil {
		b.add(Report{
			Kind:      KindPartialFill,
			OrderID:   partial.ID(),
			Side:      partial.Side(),
			Price:     partial.Price(),
			Quantity:  partialQty,
			Remaining: partial.Quantity(),
		})
	}
}

func (b *builder) taker(t Taker, processed, left float64) {
	if processed <= 0 {
		return
	}
	kind := KindFill
	if left > 0 {
		kind = KindPartialFill
	}
	b.add(Report{
		Kind:      kind,
		OrderID:   t.ID,
		Side:      t.Side,
		Price:     t.Price,
		Quantity:  processed,
		Remaining: left,
		Time:      t.Time,
	})
}

// FromMarket builds the reports for a market order: maker fills, the
// taker's own fill and, when the book ran dry, an UNFILLED remainder.
func FromMarket(seq uint64, at time.Time, t Taker, res orderbook.MarketResult) []Report {
	b := &builder{seq: seq, at: at}
	b.makers(res.Done, res.Partial, res.PartialQuantityProcessed)
	b.taker(t, res.QuantityProcessed(), res.QuantityLeft)
	if res.QuantityLeft > 0 {
		b.add(Report{
			Kind:     KindUnfilled,
			OrderID:  t.ID,
			Side:     t.Side,
			Quantity: res.QuantityLeft,
			Time:     t.Time,
			Reason:   "insufficient liquidity",
		})
	}
	return b.reports
}

// FromLimit builds the reports for a limit order: maker fills, the
// taker's own fill and a RESTED record when the remainder joined the book.
func FromLimit(seq uint64, at time.Time, t Taker, res orderbook.LimitResult) []Report {
	b := &builder{seq: seq, at: at}
	b.makers(res.Done, res.Partial, res.PartialQuantityProcessed)
	b.taker(t, res.QuantityProcessed(), res.QuantityLeft)
	if res.Resting != nil {
		b.add(Report{
			Kind:      KindRested,
			OrderID:   res.Resting.ID(),
			Side:      res.Resting.Side(),
			Price:     res.Resting.Price(),
			Quantity:  res.Resting.Quantity(),
			Remaining: res.Resting.Quantity(),
			Time:      t.Time,
		})
	}
	return b.reports
}

// FromCancel reports a successful cancel.
func FromCancel(seq uint64, at time.Time, o orderbook.Order) []Report {
	b := &builder{seq: seq, at: at}
	b.add(Report{
		Kind:     KindCancelled,
		OrderID:  o.ID(),
		Side:     o.Side(),
		Price:    o.Price(),
		Quantity: o.Quantity(),
	})
	return b.reports
}

// Rejected reports a request the engine refused before it reached the book.
func Rejected(seq uint64, at time.Time, t Taker, quantity float64, reason string) []Report {
	b := &builder{seq: seq, at: at}
	b.add(Report{
		Kind:     KindRejected,
		OrderID:  t.ID,
		Side:     t.Side,
		Price:    t.Price,
		Quantity: quantity,
		Reason:   reason,
	})
	return b.reports
}

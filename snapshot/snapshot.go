package snapshot

import (
	"time"

	"lob/domain/orderbook"
)

// Depth is the aggregated book at one engine sequence. Asks are ascending
// and bids descending, so index 0 is the top of book on both sides.
type Depth struct {
	Seq       uint64                 `json:"seq"`
	Taken     time.Time              `json:"taken"`
	Asks      []orderbook.PriceLevel `json:"asks"`
	Bids      []orderbook.PriceLevel `json:"bids"`
	AskOrders int                    `json:"ask_orders"`
	BidOrders int                    `json:"bid_orders"`
}

// Capture reads the book into a new Depth. It must run on the goroutine
// that owns the book.
func Capture(seq uint64, book *orderbook.OrderBook, at time.Time) *Depth {
	asks, bids := book.Depth()
	return &Depth{
		Seq:       seq,
		Taken:     at,
		Asks:      asks,
		Bids:      bids,
		AskOrders: book.Asks().Len(),
		BidOrders: book.Bids().Len(),
	}
}

// Orders is the number of resting orders on both sides.
func (d *Depth) Orders() int {
	if d == nil {
		return 0
	}
	return d.AskOrders + d.BidOrders
}

// Volume sums the resting quantity of levels.
func Volume(levels []orderbook.PriceLevel) float64 {
	var v float64
	for _, l := range levels {
		v += l.Volume
	}
	return v
}

func (d *Depth) BestBid() (orderbook.PriceLevel, bool) {
	if d == nil || len(d.Bids) == 0 {
		return orderbook.PriceLevel{}, false
	}
	return d.Bids[0], true
}

func (d *Depth) BestAsk() (orderbook.PriceLevel, bool) {
	if d == nil || len(d.Asks) == 0 {
		return orderbook.PriceLevel{}, false
	}
	return d.Asks[0], true
}

// Spread is best ask minus best bid; ok is false unless both sides quote.
func (d *Depth) Spread() (spread float64, ok bool) {
	bid, okBid := d.BestBid()
	ask, okAsk := d.BestAsk()
	if !okBid || !okAsk {
		return 0, false
	}
	return ask.Price - bid.Price, true
}

// Top returns at most n levels per side.
func (d *Depth) Top(n int) (asks, bids []orderbook.PriceLevel) {
	if d == nil {
		return nil, nil
	}
	return head(d.Asks, n), head(d.Bids, n)
}

func head(levels []orderbook.PriceLevel, n int) []orderbook.PriceLevel {
	if n < 0 || n >= len(levels) {
		return levels
	}
	return levels[:n]
}

package orderbook

// MarketResult describes what a market order did to the side it hit.
//
// Done holds the resting orders consumed in full, in match order, with the
// quantity they had when consumed. Partial is the resting order left behind
// with a reduced quantity, if any, and PartialQuantityProcessed is how much
// was taken from it. QuantityLeft is the part of the request that found no
// liquidity; market orders never rest, so it is simply unfilled.
type MarketResult struct {
	Done                     []Order
	Partial                  *Order
	PartialQuantityProcessed float64
	QuantityLeft             float64
}

// QuantityProcessed is the total quantity matched.
func (r MarketResult) QuantityProcessed() float64 {
	return sumQuantity(r.Done) + r.PartialQuantityProcessed
}

// LimitResult describes the outcome of a limit order. Done, Partial and
// PartialQuantityProcessed have the same meaning as in MarketResult.
// QuantityLeft is the unmatched remainder; when the book rested it,
// Resting is the new order on the incoming order's own side.
type LimitResult struct {
	OrderID                  string
	Done                     []Order
	Partial                  *Order
	PartialQuantityProcessed float64
	QuantityLeft             float64
	Resting                  *Order
}

func (r LimitResult) QuantityProcessed() float64 {
	return sumQuantity(r.Done) + r.PartialQuantityProcessed
}

func sumQuantity(orders []Order) float64 {
	var total float64
	for _, o := range orders {
		total += o.quantity
	}
	return total
}

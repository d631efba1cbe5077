package orderbook

// PriceLevel is one row of a depth view: the aggregate resting volume at
// a single price.
type PriceLevel struct {
	Price  float64 `json:"price"`
	Volume float64 `json:"volume"`
}

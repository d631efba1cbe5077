package orderbook

import "github.com/cockroachdb/errors"

var (
	// ErrInsufficientLiquidity is returned by price estimation when the
	// side cannot cover the requested quantity.
	ErrInsufficientLiquidity = errors.New("orderbook: insufficient liquidity")

	// ErrOrderExists is returned when a limit order reuses the id of an
	// order that is still resting.
	ErrOrderExists = errors.New("orderbook: order already exists")
)

package service

import (
	"time"

	"lob/domain/execution"
	"lob/domain/orderbook"
)

type LimitRequest struct {
	ID       string         `validate:"required"`
	Side     orderbook.Side `validate:"side"`
	Quantity float64        `validate:"finite,gt=0"`
	Price    float64        `validate:"finite,gt=0"`
	Time     time.Time      // engine clock when zero
}

// MarketRequest is matched immediately and never rests. ID is optional
// and only used to label the reports; the engine names the order after its
// sequence when it is empty.
type MarketRequest struct {
	ID       string
	Side     orderbook.Side `validate:"side"`
	Quantity float64        `validate:"finite,gt=0"`
	Time     time.Time
}

type LimitReport struct {
	Seq     uint64
	Result  orderbook.LimitResult
	Reports []execution.Report
}

type MarketReport struct {
	Seq     uint64
	OrderID string
	Result  orderbook.MarketResult
	Reports []execution.Report
}

// Reporter receives the reports of every command, in sequence order, on
// the engine goroutine.
type Reporter interface {
	Report(reports []execution.Report) error
}

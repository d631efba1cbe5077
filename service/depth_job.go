package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"lob/snapshot"
)

// StartDepthJob refreshes the book gauges from the published snapshot
// every interval until ctx is cancelled. It never enters the engine loop.
func (e *Engine) StartDepthJob(ctx context.Context, interval time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		var lastSeq uint64
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				d := e.Depth()
				e.observeDepth(d)
				if d.Seq != lastSeq {
					lastSeq = d.Seq
					e.logTopOfBook(d)
				}
			}
		}
	}()
}

func (e *Engine) observeDepth(d *snapshot.Depth) {
	m := e.metrics
	m.DepthLevels.WithLabelValues("ask").Set(float64(len(d.Asks)))
	m.DepthLevels.WithLabelValues("bid").Set(float64(len(d.Bids)))
	m.RestingOrders.WithLabelValues("ask").Set(float64(d.AskOrders))
	m.RestingOrders.WithLabelValues("bid").Set(float64(d.BidOrders))
	m.SideVolume.WithLabelValues("ask").Set(snapshot.Volume(d.Asks))
	m.SideVolume.WithLabelValues("bid").Set(snapshot.Volume(d.Bids))

	spread, _ := d.Spread()
	m.Spread.Set(spread)
}

func (e *Engine) logTopOfBook(d *snapshot.Depth) {
	if ce := e.log.Check(zap.DebugLevel, "top of book"); ce != nil {
		bid, _ := d.BestBid()
		ask, _ := d.BestAsk()
		ce.Write(
			zap.Uint64("seq", d.Seq),
			zap.Float64("bid", bid.Price),
			zap.Float64("bid_volume", bid.Volume),
			zap.Float64("ask", ask.Price),
			zap.Float64("ask_volume", ask.Volume),
			zap.Int("orders", d.Orders()),
		)
	}
}

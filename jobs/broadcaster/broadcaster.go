// Package broadcaster drains the report outbox to a broker.
package broadcaster

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"lob/infra/logging"
	"lob/infra/metrics"
	"lob/infra/outbox"
)

// Store is the part of the outbox the broadcaster drives.
type Store interface {
	ScanPending(fn func(outbox.Entry) error) error
	MarkSent(outbox.Key) error
	MarkAcked(outbox.Key) error
	MarkFailed(outbox.Key) error
	MarkDead(outbox.Key) error
	DeleteAcked() (int, error)
}

type Config struct {
	Interval   time.Duration
	MaxRetries uint32
}

type Broadcaster struct {
	store     Store
	publisher Publisher
	cfg       Config
	log       *zap.Logger
	metrics   *metrics.Metrics

	done chan struct{}
}

// errStopPass ends a pass early so a failed report is retried before
// anything queued behind it.
var errStopPass = errors.New("stop pass")

func New(store Store, publisher Publisher, cfg Config, log *zap.Logger, m *metrics.Metrics) *Broadcaster {
	if cfg.Interval <= 0 {
		cfg.Interval = 250 * time.Millisecond
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	return &Broadcaster{
		store:     store,
		publisher: publisher,
		cfg:       cfg,
		log:       logging.Named(log, "broadcaster"),
		metrics:   m,
		done:      make(chan struct{}),
	}
}

// Start runs the drain loop until ctx is cancelled. Done is closed once
// the loop has exited.
func (b *Broadcaster) Start(ctx context.Context) {
	b.log.Info("started", zap.Duration("interval", b.cfg.Interval))

	go func() {
		defer close(b.done)
		ticker := time.NewTicker(b.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				b.log.Info("stopped")
				return
			case <-ticker.C:
				if _, err := b.Drain(ctx); err != nil && ctx.Err() == nil {
					b.log.Error("drain", zap.Error(err))
				}
			}
		}
	}()
}

func (b *Broadcaster) Done() <-chan struct{} { return b.done }

// Drain makes one pass over the pending reports, in order, and returns how
// many were acknowledged. It stops at the first publish failure.
func (b *Broadcaster) Drain(ctx context.Context) (int, error) {
	var published int
	err := b.store.ScanPending(func(e outbox.Entry) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if e.Retries >= b.cfg.MaxRetries {
			b.log.Error("report dropped after retries",
				zap.Uint64("seq", e.Seq), zap.Uint32("index", e.Index), zap.Uint32("retries", e.Retries))
			if b.metrics != nil {
				b.metrics.ReportsDropped.Inc()
			}
			return b.store.MarkDead(e.Key)
		}

		if err := b.store.MarkSent(e.Key); err != nil {
			return err
		}
		if err := b.publisher.Publish(ctx, messageKey(e.Key), e.Payload); err != nil {
			b.log.Warn("publish failed",
				zap.Uint64("seq", e.Seq), zap.Uint32("index", e.Index), zap.Error(err))
			if b.metrics != nil {
				b.metrics.PublishFailures.Inc()
			}
			if err := b.store.MarkFailed(e.Key); err != nil {
				return err
			}
			return errStopPass
		}
		if err := b.store.MarkAcked(e.Key); err != nil {
			return err
		}
		published++
		if b.metrics != nil {
			b.metrics.ReportsPublished.Inc()
		}
		return nil
	})
	if errors.Is(err, errStopPass) {
		err = nil
	}
	if err != nil {
		return published, err
	}

	if published > 0 {
		if _, err := b.store.DeleteAcked(); err != nil {
			return published, errors.Wrap(err, "prune acked")
		}
	}
	return published, nil
}

// Close closes the publisher. Call it after the loop has exited.
func (b *Broadcaster) Close() error {
	return b.publisher.Close()
}

// messageKey identifies a report to consumers, who deduplicate on it.
func messageKey(k outbox.Key) []byte {
	return []byte(fmt.Sprintf("%d/%d", k.Seq, k.Index))
}

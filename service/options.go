package service

import (
	"time"

	"go.uber.org/zap"

	"lob/infra/metrics"
	"lob/infra/sequence"
	"lob/snapshot"
)

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithReporter(r Reporter) Option {
	return func(e *Engine) { e.reporter = r }
}

func WithSnapshotStore(s *snapshot.Store) Option {
	return func(e *Engine) { e.snapshots = s }
}

// WithSequencer continues numbering from an existing sequencer, e.g. one
// seeded from the outbox after a restart.
func WithSequencer(s *sequence.Sequencer) Option {
	return func(e *Engine) { e.seq = s }
}

func WithInboxSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.inboxSize = n
		}
	}
}

// WithInvariantChecks validates the whole book after every mutation and
// panics on the first violation. Expensive; meant for tests and soak runs.
func WithInvariantChecks(on bool) Option {
	return func(e *Engine) { e.checkInvariants = on }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithSymbol(symbol string) Option {
	return func(e *Engine) { e.symbol = symbol }
}

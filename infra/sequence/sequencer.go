package sequence

import "sync/atomic"

// Sequencer hands out strictly increasing command sequence numbers.
// The engine takes one per accepted command; every report the command
// produces carries it.
type Sequencer struct {
	last atomic.Uint64
}

// New creates a sequencer whose first Next returns start+1. Pass the last
// sequence the outbox has seen to continue after a restart.
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(start)
	return s
}

func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Current returns the last issued sequence.
func (s *Sequencer) Current() uint64 {
	return s.last.Load()
}

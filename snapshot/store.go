package snapshot

import "sync/atomic"

// Store holds the latest published Depth. One writer, any number of
// readers.
type Store struct {
	cur atomic.Pointer[Depth]
}

func NewStore() *Store {
	s := &Store{}
	s.cur.Store(&Depth{})
	return s
}

// Publish replaces the current view. Views with an older sequence are
// ignored.
func (s *Store) Publish(d *Depth) bool {
	for {
		old := s.cur.Load()
		if old != nil && d.Seq < old.Seq {
			return false
		}
		if s.cur.CompareAndSwap(old, d) {
			return true
		}
	}
}

// Load returns the current view. Callers must not modify it.
func (s *Store) Load() *Depth {
	return s.cur.Load()
}

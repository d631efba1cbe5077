package memory

import "sync"

// Pool is a typed free list on top of sync.Pool.
// Objects handed back through Put are cleared by reset first, so a
// recycled value never carries state from its previous owner.
type Pool[T any] struct {
	p     sync.Pool
	reset func(*T)
}

// NewPool builds a pool. reset may be nil when T needs no clearing.
func NewPool[T any](ctor func() *T, reset func(*T)) *Pool[T] {
	pool := &Pool[T]{reset: reset}
	pool.p.New = func() any { return ctor() }
	return pool
}

func (p *Pool[T]) Get() *T {
	return p.p.Get().(*T)
}

func (p *Pool[T]) Put(v *T) {
	if v == nil {
		return
	}
	if p.reset != nil {
		p.reset(v)
	}
	p.p.Put(v)
}

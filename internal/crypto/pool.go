package crypto

import (
	"sync"
	"sync/atomic"
)

// Pool is an unbounded reuse pool with create-on-miss semantics. Get hands
// out exclusive ownership of an instance; Put returns it for reuse. The
// pool never blocks and never shrinks on its own: its idle set converges to
// the peak number of concurrent checkouts. Drain empties it at stream-close
// time.
//
// Hit/miss counters are kept so tests and metrics can observe reuse.
type Pool[T any] struct {
	mu   sync.Mutex
	idle []T

	newFn  func() (T, error)
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewPool creates a pool that constructs instances with newFn on miss.
// Construction errors propagate from Get; nothing is inserted on failure.
func NewPool[T any](newFn func() (T, error)) *Pool[T] {
	return &Pool[T]{newFn: newFn}
}

// Get returns an idle instance, or constructs a new one if none is idle.
func (p *Pool[T]) Get() (T, error) {
	p.mu.Lock()
	if n := len(p.idle); n > 0 {
		v := p.idle[n-1]
		var zero T
		p.idle[n-1] = zero
		p.idle = p.idle[:n-1]
		p.mu.Unlock()
		p.hits.Add(1)
		return v, nil
	}
	p.mu.Unlock()
	p.misses.Add(1)
	return p.newFn()
}

// Put returns an instance to the pool. Must be called exactly once per
// successful Get.
func (p *Pool[T]) Put(v T) {
	p.mu.Lock()
	p.idle = append(p.idle, v)
	p.mu.Unlock()
}

// Drain removes all idle instances, applying dispose to each. Instances
// checked out at the time of the call are not affected; they are simply
// never accepted back by a drained-and-closed owner.
func (p *Pool[T]) Drain(dispose func(T)) {
	p.mu.Lock()
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()
	if dispose != nil {
		for _, v := range idle {
			dispose(v)
		}
	}
}

// Stats reports lifetime hit/miss counts and the current idle size.
func (p *Pool[T]) Stats() (hits, misses uint64, idle int) {
	p.mu.Lock()
	idle = len(p.idle)
	p.mu.Unlock()
	return p.hits.Load(), p.misses.Load(), idle
}

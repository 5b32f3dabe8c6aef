package sim

import (
	"sync"
	"sync/atomic"

	"sui-arb-engine/internal/arberr"
)

// member is one pooled Simulator plus its outstanding-reference counter.
// Go has no equivalent of Rust's Arc::strong_count introspection and GC
// finalizer timing is unspecified, so the pool tracks outstanding handles
// explicitly: Get increments refs before handing out a Handle, Release
// decrements it.
type member struct {
	sim  Simulator
	refs atomic.Int64
}

// Pool hands out shared Simulator instances, always preferring the member
// with the fewest outstanding handles. This mirrors the source's
// object-pool "fewest outstanding references" selection rule without
// relying on Arc strong-count introspection.
type Pool struct {
	mu      sync.Mutex
	members []*member
}

// NewPool builds n simulators concurrently via factory and wraps them in a
// load-balancing pool. Each factory call runs in its own goroutine with a
// recover()-guarded panic handler, since a single misbehaving backend (a
// bad RPC dial, a corrupt snapshot) must not take the whole startup down;
// a panicking or erroring factory call makes NewPool return an error (that
// of the lowest-index failing call) rather than silently yielding a short
// pool. n must be at least 1.
func NewPool(factory func() (Simulator, error), n int) (*Pool, error) {
	if n <= 0 {
		return nil, arberr.Wrap(arberr.ErrConfigInvalid, "simulator pool requires at least one simulator")
	}

	sims := make([]Simulator, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					errs[i] = arberr.Wrapf(arberr.ErrConfigInvalid, "simulator %d construction panicked: %v", i, r)
				}
			}()
			s, err := factory()
			if err != nil {
				errs[i] = arberr.Wrapf(err, "construct simulator %d", i)
				return
			}
			sims[i] = s
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, err
		}
		if sims[i] == nil {
			return nil, arberr.Wrapf(arberr.ErrConfigInvalid, "simulator %d factory returned nil without error", i)
		}
	}

	p := &Pool{members: make([]*member, n)}
	for i, s := range sims {
		p.members[i] = &member{sim: s}
	}
	return p, nil
}

// Handle is a borrowed reference to a pooled Simulator. Callers must call
// Release exactly once when done.
type Handle struct {
	m   *member
	Sim Simulator
}

// Release decrements the handle's member's outstanding-reference count. It
// is safe to call at most once; calling it twice double-releases the
// counter and will bias future selections.
func (h *Handle) Release() {
	h.m.refs.Add(-1)
}

// Get returns a Handle to the pool member with the fewest outstanding
// references, breaking ties by lowest index. The scan is O(n) in pool
// size, which is small (bounded by Simulator.PoolSize) so this is cheap
// compared to the simulation work performed under the handle.
func (p *Pool) Get() *Handle {
	p.mu.Lock()
	best := p.members[0]
	bestRefs := best.refs.Load()
	for _, m := range p.members[1:] {
		if r := m.refs.Load(); r < bestRefs {
			best, bestRefs = m, r
		}
	}
	best.refs.Add(1)
	p.mu.Unlock()
	return &Handle{m: best, Sim: best.sim}
}

// Len reports the number of simulators backing the pool.
func (p *Pool) Len() int {
	return len(p.members)
}

// Outstanding returns the current outstanding-handle count for each member,
// in pool order. Intended for tests and the status surface's pool gauge.
func (p *Pool) Outstanding() []int64 {
	out := make([]int64, len(p.members))
	for i, m := range p.members {
		out[i] = m.refs.Load()
	}
	return out
}

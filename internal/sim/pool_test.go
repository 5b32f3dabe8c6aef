package sim

import (
	"context"
	"sync"
	"testing"

	"sui-arb-engine/internal/arberr"
	"sui-arb-engine/internal/types"
)

type stubSimulator struct{ name string }

func (s *stubSimulator) Name() string { return s.name }
func (s *stubSimulator) GetObject(context.Context, types.ObjectId) (*types.Object, error) {
	return nil, nil
}
func (s *stubSimulator) GetObjectLayout(context.Context, types.ObjectId) (*types.Layout, error) {
	return nil, nil
}
func (s *stubSimulator) Simulate(context.Context, TxData, SimulateCtx) (SimulateResult, error) {
	return SimulateResult{}, nil
}

func newStubPool(t *testing.T, n int) *Pool {
	t.Helper()
	p, err := NewPool(func() (Simulator, error) { return &stubSimulator{name: "stub"}, nil }, n)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	return p
}

func TestPoolGetPrefersFewestOutstanding(t *testing.T) {
	p := newStubPool(t, 3)

	h0 := p.Get()
	h1 := p.Get()
	if h0.m == h1.m {
		t.Fatalf("second Get should have chosen a different, idle member")
	}

	h0.Release()
	h2 := p.Get()
	if h2.m != h0.m {
		t.Fatalf("Get after Release should re-select the now-idle member")
	}
}

func TestPoolLoadBalancesUnderConcurrency(t *testing.T) {
	p := newStubPool(t, 4)

	var wg sync.WaitGroup
	handles := make([]*Handle, 100)
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i] = p.Get()
		}(i)
	}
	wg.Wait()

	counts := map[*member]int{}
	for _, h := range handles {
		counts[h.m]++
	}
	if len(counts) != p.Len() {
		t.Fatalf("expected all %d members to receive at least one handle, got %d", p.Len(), len(counts))
	}
	for m, c := range counts {
		if c < 20 || c > 30 {
			t.Fatalf("member %p got %d handles, expected roughly even distribution around 25", m, c)
		}
	}

	for _, h := range handles {
		h.Release()
	}
	for _, o := range p.Outstanding() {
		if o != 0 {
			t.Fatalf("expected all outstanding counts to return to 0 after Release, got %v", p.Outstanding())
		}
	}
}

func TestNewPoolRejectsEmpty(t *testing.T) {
	if _, err := NewPool(func() (Simulator, error) { return &stubSimulator{}, nil }, 0); err == nil {
		t.Fatal("expected error constructing pool with zero simulators")
	}
}

func TestNewPoolSurfacesFactoryError(t *testing.T) {
	boom := arberr.Wrap(arberr.ErrConfigInvalid, "dial failed")
	if _, err := NewPool(func() (Simulator, error) { return nil, boom }, 3); err == nil {
		t.Fatal("expected error when a factory call fails")
	}
}

func TestNewPoolRecoversFactoryPanic(t *testing.T) {
	if _, err := NewPool(func() (Simulator, error) { panic("boom") }, 2); err == nil {
		t.Fatal("expected error when a factory call panics")
	}
}

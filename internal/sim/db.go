package sim

import (
	"context"
	"sync"

	"sui-arb-engine/internal/arberr"
	"sui-arb-engine/internal/types"
)

// DBSimulator replays transactions against an in-memory snapshot of object
// state, refreshed periodically from a full-node. It is the default, fast
// path: no network round-trip is made per Simulate call, only for periodic
// snapshot refresh (handled by the caller via LoadObjects).
type DBSimulator struct {
	mu      sync.RWMutex
	objects map[types.ObjectId]types.Object
	epoch   SimEpoch
}

// NewDBSimulator returns an empty DBSimulator; call LoadObjects and
// SetEpoch before first use.
func NewDBSimulator() *DBSimulator {
	return &DBSimulator{objects: make(map[types.ObjectId]types.Object)}
}

// LoadObjects replaces the simulator's object snapshot wholesale. Intended
// for both initial preload (see Simulator.PreloadFile) and periodic
// refresh from the indexer.
func (d *DBSimulator) LoadObjects(objs []types.Object) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.objects = make(map[types.ObjectId]types.Object, len(objs))
	for _, o := range objs {
		d.objects[o.Ref.ID] = o
	}
}

// UpsertObject updates a single object in the snapshot, used to apply
// object changes observed from a prior simulation so later simulations in
// the same batch see a consistent view.
func (d *DBSimulator) UpsertObject(o types.Object) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.objects[o.Ref.ID] = o
}

// SetEpoch updates the epoch the simulator reports to callers and bakes
// into simulations that don't supply an override.
func (d *DBSimulator) SetEpoch(e SimEpoch) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.epoch = e
}

func (d *DBSimulator) Name() string { return "db" }

func (d *DBSimulator) GetObject(_ context.Context, id types.ObjectId) (*types.Object, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	o, ok := d.objects[id]
	if !ok {
		return nil, arberr.ErrPoolMissing
	}
	return &o, nil
}

// GetObjectLayout derives a trivial single-field layout from the object's
// recorded type tag; the snapshot never carries a real Move struct
// definition, only the bytes each adapter already knows how to decode.
func (d *DBSimulator) GetObjectLayout(_ context.Context, id types.ObjectId) (*types.Layout, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	o, ok := d.objects[id]
	if !ok {
		return nil, arberr.ErrPoolMissing
	}
	return &types.Layout{Type: o.Type, Fields: []string{"bcs"}}, nil
}

// Simulate executes tx against the snapshot plus sctx's per-call overrides.
// Object writes reported by tx's executor are not committed back to the snapshot here
// — callers that want read-your-writes across a sequence of speculative
// simulations must call UpsertObject explicitly with the returned
// ObjectChanges, keeping Simulate itself free of hidden mutation.
func (d *DBSimulator) Simulate(_ context.Context, tx TxData, sctx SimulateCtx) (SimulateResult, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	overrides := make(map[types.ObjectId]types.Object, len(sctx.OverrideObjects))
	for _, o := range sctx.OverrideObjects {
		overrides[o.Ref.ID] = o
	}

	var misses uint64
	lookup := func(id types.ObjectId) (types.Object, bool) {
		if o, ok := overrides[id]; ok {
			return o, true
		}
		if o, ok := d.objects[id]; ok {
			return o, true
		}
		misses++
		return types.Object{}, false
	}

	executor, ok := executorFor(tx)
	if !ok {
		return SimulateResult{}, arberr.Wrap(arberr.ErrSimulationFailed, "no executor registered for transaction")
	}
	result, err := executor(tx, sctx, lookup)
	if err != nil {
		return SimulateResult{}, arberr.Wrap(err, "db simulate")
	}
	result.CacheMisses = misses
	return result, nil
}

// txExecutor runs a single TxData's Move calls against a lookup function
// and produces the resulting effects. Real adapters register one per
// protocol-specific move-call shape; this package ships only the registry
// and the DBSimulator plumbing, since the call shapes themselves belong to
// the packages that build transactions; internal/trade registers its
// "trade.ptb" executor in its init function.
type txExecutor func(tx TxData, sctx SimulateCtx, lookup func(types.ObjectId) (types.Object, bool)) (SimulateResult, error)

var (
	executorsMu sync.RWMutex
	executors   = map[string]txExecutor{}
)

// RegisterExecutor installs the handler used for transactions tagged with
// the given kind. Kept as a package-level registry, mirroring this
// codebase's Init-then-Manager singleton idiom, so internal/dex and
// internal/trade can wire their move-call interpreters without sim
// depending on them.
func RegisterExecutor(kind string, fn txExecutor) {
	executorsMu.Lock()
	defer executorsMu.Unlock()
	executors[kind] = fn
}

func executorFor(tx TxData) (txExecutor, bool) {
	executorsMu.RLock()
	defer executorsMu.RUnlock()
	fn, ok := executors[tx.Kind]
	return fn, ok
}

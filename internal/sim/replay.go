package sim

import (
	"context"
	"sync"

	"sui-arb-engine/internal/arberr"
	"sui-arb-engine/internal/types"
)

// ReplayRecord is one recorded (request, response) pair used to drive a
// ReplaySimulator deterministically in tests.
type ReplayRecord struct {
	Tx     TxData
	Result SimulateResult
	Err    error
}

// ReplaySimulator serves canned results recorded from a prior live run, in
// FIFO order, regardless of the TxData it's called with. It exists purely
// for tests and golden-file scenario replay (see SearchGoal and strategy
// package tests), never for production traffic.
type ReplaySimulator struct {
	mu      sync.Mutex
	records []ReplayRecord
	objects map[types.ObjectId]types.Object
	next    int
}

// NewReplaySimulator returns a simulator that replays records in order.
func NewReplaySimulator(records []ReplayRecord, objects []types.Object) *ReplaySimulator {
	objMap := make(map[types.ObjectId]types.Object, len(objects))
	for _, o := range objects {
		objMap[o.Ref.ID] = o
	}
	return &ReplaySimulator{records: records, objects: objMap}
}

func (r *ReplaySimulator) Name() string { return "replay" }

func (r *ReplaySimulator) GetObject(_ context.Context, id types.ObjectId) (*types.Object, error) {
	o, ok := r.objects[id]
	if !ok {
		return nil, arberr.ErrPoolMissing
	}
	return &o, nil
}

// GetObjectLayout reports the recorded fixture's type tag; replay fixtures
// never carry a real struct definition.
func (r *ReplaySimulator) GetObjectLayout(_ context.Context, id types.ObjectId) (*types.Layout, error) {
	o, ok := r.objects[id]
	if !ok {
		return nil, arberr.ErrPoolMissing
	}
	return &types.Layout{Type: o.Type, Fields: []string{"bcs"}}, nil
}

// Simulate ignores tx and returns the next recorded result. It returns
// ErrSimulationFailed once records are exhausted rather than looping, so a
// test that over-calls a replay fixture fails loudly instead of silently
// repeating stale data.
func (r *ReplaySimulator) Simulate(_ context.Context, _ TxData, _ SimulateCtx) (SimulateResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.next >= len(r.records) {
		return SimulateResult{}, arberr.Wrap(arberr.ErrSimulationFailed, "replay records exhausted")
	}
	rec := r.records[r.next]
	r.next++
	return rec.Result, rec.Err
}

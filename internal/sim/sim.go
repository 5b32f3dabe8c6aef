// Package sim defines the Simulator capability and its supporting envelope
// types (SimEpoch, SimulateCtx, SimulateResult), plus the load-balanced
// simulator pool that hands out shared instances to callers.
package sim

import (
	"context"
	"time"

	"sui-arb-engine/internal/types"
)

// SimEpoch carries the on-chain epoch information a simulation needs for
// gas pricing and epoch-dependent opcodes.
type SimEpoch struct {
	EpochID           uint64
	EpochStartMs      uint64
	EpochDurationMs   uint64
	GasPrice          uint64
}

// IsStale reports whether now is past the epoch's end. An epoch that has
// not yet ended is fresh; one whose end has passed is stale and its
// gas-price/epoch-id fields should be refreshed before reuse.
func (e SimEpoch) IsStale(now time.Time) bool {
	endMs := e.EpochStartMs + e.EpochDurationMs
	return uint64(now.UnixMilli()) >= endMs
}

// SimulateCtx bundles the environment a single simulate() call runs
// against: the epoch, a set of object overrides, and an optional
// synthetic "borrowed coin" used to model flash-loan proceeds before any
// real flash-loan fragment has been emitted.
type SimulateCtx struct {
	Epoch            SimEpoch
	OverrideObjects  []types.Object
	BorrowedCoin     *BorrowedCoin
}

// BorrowedCoin models a synthetic coin object injected into a simulation to
// represent flash-loan proceeds ahead of constructing the real fragment.
type BorrowedCoin struct {
	Coin   types.Object
	Amount uint64
}

// WithBorrowedCoin returns a copy of ctx carrying the given borrowed coin.
func (ctx SimulateCtx) WithBorrowedCoin(coin types.Object, amount uint64) SimulateCtx {
	ctx.BorrowedCoin = &BorrowedCoin{Coin: coin, Amount: amount}
	return ctx
}

// WithGasPrice returns a copy of ctx with the epoch's gas price overridden;
// useful when evaluating an opportunity at an auction-provided gas price.
func (ctx SimulateCtx) WithGasPrice(price uint64) SimulateCtx {
	ctx.Epoch.GasPrice = price
	return ctx
}

// BalanceChange is a single per-address, per-coin delta observed from a
// simulation's effects.
type BalanceChange struct {
	Owner   string
	Coin    types.TypeTag
	Amount  int64 // signed; negative is a debit
}

// PositivePart returns amount if positive, else 0.
func (b BalanceChange) PositivePart() uint64 {
	if b.Amount <= 0 {
		return 0
	}
	return uint64(b.Amount)
}

// Effects summarises a transaction's execution outcome.
type Effects struct {
	Status       string // "success" or a revert reason
	GasUsed      uint64
}

// Event is a single Move event emitted during simulation.
type Event struct {
	Type   types.TypeTag
	Sender string
	BCS    []byte
}

// SimulateResult is the standardised output of a simulate() call.
type SimulateResult struct {
	Effects         Effects
	Events          []Event
	ObjectChanges   []types.Object
	BalanceChanges  []BalanceChange
	CacheMisses     uint64
}

// BalanceChangeFor returns the balance change for (owner, coin), or the
// zero value and false if none is present.
func (r SimulateResult) BalanceChangeFor(owner string, coin types.TypeTag) (BalanceChange, bool) {
	for _, bc := range r.BalanceChanges {
		if bc.Owner == owner && bc.Coin == coin {
			return bc, true
		}
	}
	return BalanceChange{}, false
}

// TxData is an unsigned, fully-assembled programmable transaction, ready to
// be simulated or signed. The bytes are kept opaque (BCS-encoded) since
// nothing in this engine needs to decode a foreign transaction's contents;
// Kind names the executor (registered via RegisterExecutor) that knows how
// to interpret this particular shape of move calls.
type TxData struct {
	Kind      string
	Sender    string
	GasBudget uint64
	BCS       []byte
}

// Simulator is the capability every backing variant (Db, Http, Replay)
// implements. Implementations must be safe for concurrent use and must be
// side-effect-free with respect to subsequent calls: two calls with the
// same (tx, ctx) against an unchanged backing snapshot must agree (see
// Simulator determinism in the testable properties).
type Simulator interface {
	Simulate(ctx context.Context, tx TxData, sctx SimulateCtx) (SimulateResult, error)
	GetObject(ctx context.Context, id types.ObjectId) (*types.Object, error)

	// GetObjectLayout returns the Move struct shape for id, or nil if this
	// backend has no type information for it (a legitimate outcome, not an
	// error: callers that only need raw BCS bytes should use GetObject).
	GetObjectLayout(ctx context.Context, id types.ObjectId) (*types.Layout, error)

	Name() string
}

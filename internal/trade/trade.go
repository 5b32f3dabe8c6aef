// Package trade assembles a validated multi-hop Path of dex.Dex adapters
// into a simulatable, then signable, transaction, and implements the
// hot-pool / pools-for-coin path enumeration the strategy and worker
// packages use to discover candidate cycles from the pool catalog.
package trade

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"strings"

	"sui-arb-engine/internal/arberr"
	"sui-arb-engine/internal/dex"
	"sui-arb-engine/internal/sim"
	"sui-arb-engine/internal/types"
)

// Path is an ordered sequence of pool hops, each consuming the prior hop's
// CoinOutType. A Path's integrity invariant is that for every adjacent
// pair (Hops[i], Hops[i+1]), Hops[i].CoinOutType() == Hops[i+1].CoinInType();
// Validate checks this and that the path starts and ends on the same coin
// (a closed arbitrage cycle).
type Path struct {
	Hops []dex.Dex
}

// Validate checks the path integrity invariant described on Path.
func (p Path) Validate() error {
	if len(p.Hops) == 0 {
		return arberr.Wrap(arberr.ErrPathMismatch, "empty path")
	}
	for i := 0; i+1 < len(p.Hops); i++ {
		if p.Hops[i].CoinOutType() != p.Hops[i+1].CoinInType() {
			return arberr.Wrapf(arberr.ErrPathMismatch, "hop %d out coin %s does not match hop %d in coin %s",
				i, p.Hops[i].CoinOutType(), i+1, p.Hops[i+1].CoinInType())
		}
	}
	first, last := p.Hops[0], p.Hops[len(p.Hops)-1]
	if first.CoinInType() != last.CoinOutType() {
		return arberr.Wrapf(arberr.ErrPathMismatch, "path is not closed: starts on %s, ends on %s",
			first.CoinInType(), last.CoinOutType())
	}
	return nil
}

// StartCoin is the coin type the cycle borrows and repays.
func (p Path) StartCoin() types.TypeTag {
	return p.Hops[0].CoinInType()
}

// PoolIDs returns the ordered sequence of pool object ids a Path walks,
// the key used to dedupe candidate cycles during enumeration.
func (p Path) PoolIDs() []types.ObjectId {
	ids := make([]types.ObjectId, len(p.Hops))
	for i, hop := range p.Hops {
		ids[i] = hop.ObjectID()
	}
	return ids
}

// Mode selects how a Path's starting capital is sourced.
type Mode uint8

const (
	// ModeNormal spends a coin the trader already owns.
	ModeNormal Mode = iota
	// ModeFlashloan borrows the starting coin from FlashVenue and must
	// repay it within the same transaction.
	ModeFlashloan
)

// TradeCtx bundles the inputs a single GetTradeResult call needs beyond
// the Path itself.
type TradeCtx struct {
	Sender     string
	Mode       Mode
	AmountIn   uint64
	MinProfit  uint64
	GasBudget  uint64
	FlashVenue dex.Dex // required when Mode == ModeFlashloan
}

// TradeResult is the simulated outcome of running a Path end to end, plus
// the assembled transaction ready to simulate again (dry run) or sign.
type TradeResult struct {
	AmountOut uint64
	Profit    int64 // AmountOut - AmountIn, signed since a bad quote can be negative
	GasUsed   uint64
	TxData    sim.TxData
}

// ArbItem is a candidate opportunity derived from an observed chain event:
// a coin worth searching for arbitrage on, optionally anchored to the pool
// that moved, and the sim context to price it against. No path has been
// chosen yet; that's the worker's job (see EnumeratePaths).
type ArbItem struct {
	Coin           types.TypeTag
	Pool           *types.Pool
	SourceTxDigest string
	SimCtx         sim.SimulateCtx
	Source         types.Source
}

// Timing breaks down where sizing an opportunity spent its time, surfaced
// end to end in notify.ArbReport.
type Timing struct {
	CtxCreateMs  int64
	GridSearchMs int64
	GSSMs        int64
}

// TrialResult is one sized path's simulated outcome, the unit search.Run
// optimises over.
type TrialResult struct {
	AmountIn    uint64
	Profit      int64
	CoinType    types.TypeTag
	TradePath   Path
	CacheMisses uint64
}

// ArbResult is the best TrialResult found for an ArbItem, plus the
// ready-to-sign transaction and timing breakdown a worker needs in order
// to submit or notify.
type ArbResult struct {
	Best   TrialResult
	Timing Timing
	TxData sim.TxData
	Source types.Source
}

// Trader drives Path simulation and PTB assembly against a sim.Simulator.
// It carries no state of its own: every call builds a fresh PTBBuilder, so
// concurrent GetTradeResult calls from different workers never share
// mutable plan state.
type Trader struct{}

// GetTradeResult quotes the full path, hop by hop, starting from
// tc.AmountIn, assembling a real (synthetic-BCS) PTB as it goes via a fresh
// PTBBuilder, and reports the final coin amount, signed profit and the
// resulting sim.TxData. It does not mutate any adapter's reserve state;
// each hop's quote is taken against the adapter's reserves as loaded at
// path-construction time, so a caller that wants a fresh quote must
// rebuild the Path from a fresh catalog read.
func (t *Trader) GetTradeResult(sm sim.Simulator, sctx sim.SimulateCtx, path Path, tc TradeCtx) (TradeResult, error) {
	if err := path.Validate(); err != nil {
		return TradeResult{}, err
	}
	if tc.Mode == ModeFlashloan && tc.FlashVenue == nil {
		return TradeResult{}, arberr.ErrNoFlashVenue
	}

	builder := NewPTBBuilder()
	hops := make([]planHop, 0, len(path.Hops))

	var inputCoin any
	var flashReceipt any
	if tc.Mode == ModeFlashloan {
		borrowed, receipt, err := tc.FlashVenue.ExtendFlashloanTx(builder, tc.AmountIn)
		if err != nil {
			return TradeResult{}, err
		}
		inputCoin, flashReceipt = borrowed, receipt
	}

	amount := tc.AmountIn
	for _, hop := range path.Hops {
		out, err := hop.SwapTx(sm, amount, sctx)
		if err != nil {
			return TradeResult{}, arberr.Wrapf(err, "hop %s", hop.ObjectID())
		}
		outCoin, err := hop.ExtendTradeTx(builder, amount, 0, inputCoin)
		if err != nil {
			return TradeResult{}, arberr.Wrapf(err, "extend hop %s", hop.ObjectID())
		}
		hops = append(hops, planHop{Pool: hop.PoolSnapshot(), CoinIn: hop.CoinInType()})
		inputCoin = outCoin
		amount = out
	}

	if tc.Mode == ModeFlashloan {
		lv, ok := tc.FlashVenue.(interface{ RepayAmount(uint64) uint64 })
		if !ok {
			return TradeResult{}, arberr.Wrap(arberr.ErrFlashNotRepaid, "flash venue cannot compute repay amount")
		}
		owed := lv.RepayAmount(tc.AmountIn)
		if amount < owed {
			return TradeResult{}, arberr.Wrapf(arberr.ErrFlashNotRepaid, "amount out %d below owed %d", amount, owed)
		}
		if err := tc.FlashVenue.ExtendRepayTx(builder, flashReceipt, inputCoin); err != nil {
			return TradeResult{}, err
		}
	}

	profit := int64(amount) - int64(tc.AmountIn)
	if profit < int64(tc.MinProfit) {
		return TradeResult{}, arberr.ErrNoOpportunity
	}

	var flashPool *types.Pool
	if tc.Mode == ModeFlashloan {
		snap := tc.FlashVenue.PoolSnapshot()
		flashPool = &snap
	}
	txData, err := builder.Finalize(tc.Sender, tc.AmountIn, tc.Mode, hops, flashPool)
	if err != nil {
		return TradeResult{}, err
	}
	txData.GasBudget = tc.GasBudget

	return TradeResult{AmountOut: amount, Profit: profit, TxData: txData}, nil
}

// PoolSearcher is the structural subset of indexer.DexSearcher path
// enumeration needs: every pool incident to a given coin. Any concrete
// searcher satisfies this automatically since Go interfaces are
// structural; trade never imports internal/indexer directly.
type PoolSearcher interface {
	PoolsForCoin(coin types.TypeTag) []types.Pool
}

// EnumeratePaths implements the fixed-hot-pool / iterate-pools-for-coin
// cycle discovery algorithm: starting from either hotPool (when an event
// names the pool that moved) or every pool incident to startCoin, it walks
// one or two additional legs back to startCoin, builds every valid,
// deduplicated Path of length 2-3 with no repeated pool object, and
// returns them sorted by descending minimum-hop liquidity, capped at
// maxCandidates.
func EnumeratePaths(ctx context.Context, sm sim.Simulator, searcher PoolSearcher, startCoin types.TypeTag, hotPool *types.Pool, maxHops, maxCandidates int) ([]Path, error) {
	if maxHops > 3 {
		maxHops = 3
	}
	if maxHops < 2 {
		maxHops = 2
	}

	var firstPools []types.Pool
	if hotPool != nil {
		firstPools = []types.Pool{*hotPool}
	} else {
		firstPools = searcher.PoolsForCoin(startCoin)
	}

	seen := make(map[string]bool)
	var candidates []Path

	tryPath := func(poolSeq []types.Pool) {
		key := pathKey(poolSeq)
		if seen[key] {
			return
		}
		seen[key] = true
		path, err := buildPath(ctx, sm, poolSeq, startCoin)
		if err != nil {
			return
		}
		candidates = append(candidates, path)
	}

	for _, p1 := range firstPools {
		mid, ok := otherToken(p1, startCoin)
		if !ok {
			continue
		}

		// Length-2 cycles: p1, then any pool closing directly back to
		// startCoin.
		for _, p2 := range searcher.PoolsForCoin(mid) {
			if p2.ID == p1.ID || !poolHasCoin(p2, startCoin) {
				continue
			}
			tryPath([]types.Pool{p1, p2})
		}

		if maxHops < 3 {
			continue
		}
		// Length-3 cycles: p1 (startCoin -> mid), p2 (mid -> mid2), p3
		// (mid2 -> startCoin).
		for _, p2 := range searcher.PoolsForCoin(mid) {
			if p2.ID == p1.ID {
				continue
			}
			mid2, ok := otherToken(p2, mid)
			if !ok || mid2 == startCoin {
				continue
			}
			for _, p3 := range searcher.PoolsForCoin(mid2) {
				if p3.ID == p1.ID || p3.ID == p2.ID || !poolHasCoin(p3, startCoin) {
					continue
				}
				tryPath([]types.Pool{p1, p2, p3})
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return minHopLiquidity(candidates[i]) > minHopLiquidity(candidates[j])
	})
	if maxCandidates > 0 && len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}
	return candidates, nil
}

func buildPath(ctx context.Context, sm sim.Simulator, poolSeq []types.Pool, startCoin types.TypeTag) (Path, error) {
	hops := make([]dex.Dex, 0, len(poolSeq))
	coin := startCoin
	for _, pool := range poolSeq {
		d, err := dex.New(ctx, sm, pool, coin)
		if err != nil {
			return Path{}, err
		}
		hops = append(hops, d)
		coin = d.CoinOutType()
	}
	path := Path{Hops: hops}
	if err := path.Validate(); err != nil {
		return Path{}, err
	}
	return path, nil
}

func otherToken(pool types.Pool, coin types.TypeTag) (types.TypeTag, bool) {
	if len(pool.Tokens) != 2 {
		return "", false
	}
	switch coin {
	case pool.Tokens[0].Type:
		return pool.Tokens[1].Type, true
	case pool.Tokens[1].Type:
		return pool.Tokens[0].Type, true
	default:
		return "", false
	}
}

func poolHasCoin(pool types.Pool, coin types.TypeTag) bool {
	for _, tok := range pool.Tokens {
		if tok.Type == coin {
			return true
		}
	}
	return false
}

// pathKey is the ordered pool-id sequence EnumeratePaths dedupes on;
// distinct orderings of the same pool set are kept as distinct candidates
// since they represent different swap directions.
func pathKey(poolSeq []types.Pool) string {
	ids := make([]string, len(poolSeq))
	for i, p := range poolSeq {
		ids[i] = string(p.ID)
	}
	return strings.Join(ids, "|")
}

func minHopLiquidity(path Path) uint64 {
	min := uint64(math.MaxUint64)
	for _, hop := range path.Hops {
		if l := hop.Liquidity(); l < min {
			min = l
		}
	}
	return min
}

// Argument is the handle PTBBuilder hands back for each accumulated
// MoveCall, analogous to a real PTB's Argument enum but simplified to an
// opaque index into the builder's command list.
type Argument struct {
	Index int
}

// ptbCommand records one accumulated MoveCall fragment.
type ptbCommand struct {
	Package  string
	Module   string
	Function string
	TypeArgs []string
	Args     []any
}

// planHop is one PTB hop as replayed by the "trade.ptb" executor: enough
// to re-derive the swap without re-walking the accumulated MoveCalls.
type planHop struct {
	Pool   types.Pool
	CoinIn types.TypeTag
}

// tradePlan is PTBBuilder.Finalize's wire payload, and the shape the
// "trade.ptb" executor registered below unmarshals to replay a dry run.
type tradePlan struct {
	Sender    string
	AmountIn  uint64
	Mode      Mode
	Hops      []planHop
	FlashPool *types.Pool
}

// PTBBuilder accumulates Move calls into a plan, implementing
// dex.TxBuilder. It never talks to a real Move VM; Finalize serialises the
// accumulated plan into an opaque sim.TxData whose Kind ("trade.ptb") is
// replayed by this package's registered executor, since no Move VM is in
// scope for this engine (see DESIGN.md).
type PTBBuilder struct {
	commands []ptbCommand
}

// NewPTBBuilder returns an empty builder. A fresh builder must be used per
// GetTradeResult call; a TradeCtx is built once and consumed, never reused
// across trades.
func NewPTBBuilder() *PTBBuilder { return &PTBBuilder{} }

// MoveCall implements dex.TxBuilder.
func (b *PTBBuilder) MoveCall(pkg, module, function string, typeArgs []string, args []any) any {
	b.commands = append(b.commands, ptbCommand{Package: pkg, Module: module, Function: function, TypeArgs: typeArgs, Args: args})
	return Argument{Index: len(b.commands) - 1}
}

// Commands returns how many Move call fragments have been accumulated, for
// tests and logging that want to check what a trade actually built.
func (b *PTBBuilder) Commands() int { return len(b.commands) }

// Finalize serialises the accumulated plan (hops, mode, flash venue) into
// a sim.TxData tagged "trade.ptb", ready for a dry-run Simulate call or,
// once signed, real submission.
func (b *PTBBuilder) Finalize(sender string, amountIn uint64, mode Mode, hops []planHop, flashPool *types.Pool) (sim.TxData, error) {
	bz, err := json.Marshal(tradePlan{Sender: sender, AmountIn: amountIn, Mode: mode, Hops: hops, FlashPool: flashPool})
	if err != nil {
		return sim.TxData{}, arberr.Wrap(err, "marshal trade plan")
	}
	return sim.TxData{Kind: tradePTBKind, Sender: sender, BCS: bz}, nil
}

const tradePTBKind = "trade.ptb"

func init() {
	sim.RegisterExecutor(tradePTBKind, replayTradePlan)
}

// replayTradePlan re-prices every hop of a previously-assembled trade plan
// against the lookup function's current object view, producing the sender
// balance change a final dry run checks for strict positivity. This is the
// engine's stand-in for a real Move VM executing the PTB.
func replayTradePlan(tx sim.TxData, sctx sim.SimulateCtx, lookup func(types.ObjectId) (types.Object, bool)) (sim.SimulateResult, error) {
	var plan tradePlan
	if err := json.Unmarshal(tx.BCS, &plan); err != nil {
		return sim.SimulateResult{}, arberr.Wrap(err, "unmarshal trade plan")
	}
	if len(plan.Hops) == 0 {
		return sim.SimulateResult{}, arberr.Wrap(arberr.ErrPathMismatch, "trade plan has no hops")
	}

	amount := plan.AmountIn
	var changes []types.Object
	for _, hop := range plan.Hops {
		obj, ok := lookup(hop.Pool.ID)
		if !ok {
			return sim.SimulateResult{}, arberr.Wrapf(arberr.ErrPoolMissing, "pool %s", hop.Pool.ID)
		}
		out, err := dex.QuoteAgainstObject(hop.Pool, hop.CoinIn, obj, amount)
		if err != nil {
			return sim.SimulateResult{}, err
		}
		amount = out
		changes = append(changes, obj)
	}

	startCoin := plan.Hops[0].CoinIn
	profit := int64(amount) - int64(plan.AmountIn)
	if plan.Mode == ModeFlashloan && plan.FlashPool != nil {
		venue, err := dex.New(context.Background(), replayObjectSimulator{lookup}, *plan.FlashPool, startCoin)
		if err == nil {
			if lv, ok := venue.(interface{ RepayAmount(uint64) uint64 }); ok {
				owed := lv.RepayAmount(plan.AmountIn)
				profit = int64(amount) - int64(owed)
			}
		}
	}

	status := "success"
	if profit < 0 {
		status = "insufficient profit"
	}
	return sim.SimulateResult{
		Effects:        sim.Effects{Status: status},
		ObjectChanges:  changes,
		BalanceChanges: []sim.BalanceChange{{Owner: plan.Sender, Coin: startCoin, Amount: profit}},
	}, nil
}

// replayObjectSimulator adapts a db-style lookup function to sim.Simulator
// just well enough for dex.New's single GetObject call during replay.
type replayObjectSimulator struct {
	lookup func(types.ObjectId) (types.Object, bool)
}

func (r replayObjectSimulator) Name() string { return "trade-replay" }

func (r replayObjectSimulator) GetObject(_ context.Context, id types.ObjectId) (*types.Object, error) {
	o, ok := r.lookup(id)
	if !ok {
		return nil, arberr.ErrPoolMissing
	}
	return &o, nil
}

func (r replayObjectSimulator) GetObjectLayout(_ context.Context, id types.ObjectId) (*types.Layout, error) {
	return nil, nil
}

func (r replayObjectSimulator) Simulate(context.Context, sim.TxData, sim.SimulateCtx) (sim.SimulateResult, error) {
	return sim.SimulateResult{}, arberr.Wrap(arberr.ErrSimulationFailed, "replayObjectSimulator cannot simulate")
}

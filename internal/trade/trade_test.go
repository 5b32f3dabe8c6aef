package trade

import (
	"context"
	"testing"

	"sui-arb-engine/internal/dex"
	"sui-arb-engine/internal/sim"
	"sui-arb-engine/internal/types"
)

func poolAB(id types.ObjectId, a, b types.TypeTag) types.Pool {
	return types.Pool{
		ID:       id,
		Protocol: types.ProtocolCetusCPMM,
		Tokens:   []types.Token{{Type: a, Decimals: 9}, {Type: b, Decimals: 6}},
		Extra:    types.ProtocolExtra{FeeBps: 30},
	}
}

// dbWithPools builds a DBSimulator preloaded with one reserve-encoded
// object per pool, keyed by each pool's own id.
func dbWithPools(pools ...types.Pool) *sim.DBSimulator {
	db := sim.NewDBSimulator()
	objs := make([]types.Object, len(pools))
	for i, p := range pools {
		objs[i] = types.Object{
			Ref:  types.ObjectRef{ID: p.ID, Version: 1, Digest: "d"},
			Type: types.TypeTag(p.Protocol.String()),
			BCS:  dex.EncodeReserves(1_000_000, 1_000_000),
		}
	}
	db.LoadObjects(objs)
	return db
}

func mustDex(t *testing.T, sm sim.Simulator, pool types.Pool, coinIn types.TypeTag) dex.Dex {
	t.Helper()
	d, err := dex.New(context.Background(), sm, pool, coinIn)
	if err != nil {
		t.Fatalf("dex.New: %v", err)
	}
	return d
}

func TestPathValidateRejectsMismatchedHops(t *testing.T) {
	coinA := types.NativeCoinType
	coinB := types.TypeTag("0x2::usdc::USDC")
	coinC := types.TypeTag("0x2::weth::WETH")

	p1 := poolAB("0xp1", coinA, coinB)
	p2 := poolAB("0xp2", coinC, coinA)
	db := dbWithPools(p1, p2)

	hop1 := mustDex(t, db, p1, coinA)
	hop2 := mustDex(t, db, p2, coinC) // in=coinC, not coinB

	p := Path{Hops: []dex.Dex{hop1, hop2}}
	if err := p.Validate(); err == nil {
		t.Fatal("expected Validate to reject a path whose hops don't chain coins")
	}
}

func TestPathValidateAcceptsClosedCycle(t *testing.T) {
	coinA := types.NativeCoinType
	coinB := types.TypeTag("0x2::usdc::USDC")

	p1 := poolAB("0xp1", coinA, coinB)
	p2 := poolAB("0xp2", coinA, coinB)
	db := dbWithPools(p1, p2)

	hop1 := mustDex(t, db, p1, coinA)
	hop2 := mustDex(t, db, p2, coinB)

	p := Path{Hops: []dex.Dex{hop1, hop2}}
	if err := p.Validate(); err != nil {
		t.Fatalf("expected closed two-hop cycle to validate, got %v", err)
	}
	if p.StartCoin() != coinA {
		t.Fatalf("StartCoin = %s, want %s", p.StartCoin(), coinA)
	}
}

func TestGetTradeResultRejectsBelowMinProfit(t *testing.T) {
	coinA := types.NativeCoinType
	coinB := types.TypeTag("0x2::usdc::USDC")

	p1 := poolAB("0xp1", coinA, coinB)
	p2 := poolAB("0xp2", coinA, coinB)
	db := dbWithPools(p1, p2)

	hop1 := mustDex(t, db, p1, coinA)
	hop2 := mustDex(t, db, p2, coinB)

	tr := &Trader{}
	_, err := tr.GetTradeResult(db, sim.SimulateCtx{}, Path{Hops: []dex.Dex{hop1, hop2}}, TradeCtx{
		Sender: "0xsender", Mode: ModeNormal, AmountIn: 10_000, MinProfit: 1_000_000,
	})
	if err == nil {
		t.Fatal("expected error when round-trip profit is below MinProfit")
	}
}

func TestGetTradeResultFlashloanRequiresVenue(t *testing.T) {
	coinA := types.NativeCoinType
	coinB := types.TypeTag("0x2::usdc::USDC")

	p1 := poolAB("0xp1", coinA, coinB)
	p2 := poolAB("0xp2", coinA, coinB)
	db := dbWithPools(p1, p2)

	hop1 := mustDex(t, db, p1, coinA)
	hop2 := mustDex(t, db, p2, coinB)

	tr := &Trader{}
	_, err := tr.GetTradeResult(db, sim.SimulateCtx{}, Path{Hops: []dex.Dex{hop1, hop2}}, TradeCtx{
		Sender: "0xsender", Mode: ModeFlashloan, AmountIn: 10_000,
	})
	if err == nil {
		t.Fatal("expected error requesting flashloan mode without a FlashVenue")
	}
}

// TestGetTradeResultMatchesSpecTwoPoolScenario reproduces the worked
// SUI->X->SUI example end to end through GetTradeResult, asserting the
// exact profit (322,275) and that a "trade.ptb" TxData comes out the other
// end ready for a dry-run Simulate.
func TestGetTradeResultMatchesSpecTwoPoolScenario(t *testing.T) {
	coinSui := types.NativeCoinType
	coinX := types.TypeTag("0x2::x::X")

	p1 := types.Pool{ID: "0xp1", Protocol: types.ProtocolCetusCPMM,
		Tokens: []types.Token{{Type: coinSui, Decimals: 9}, {Type: coinX, Decimals: 9}},
		Extra:  types.ProtocolExtra{FeeBps: 30}}
	p2 := types.Pool{ID: "0xp2", Protocol: types.ProtocolCetusCPMM,
		Tokens: []types.Token{{Type: coinX, Decimals: 9}, {Type: coinSui, Decimals: 9}},
		Extra:  types.ProtocolExtra{FeeBps: 30}}

	db := sim.NewDBSimulator()
	db.LoadObjects([]types.Object{
		{Ref: types.ObjectRef{ID: p1.ID, Version: 1, Digest: "d1"}, Type: "cetus_cpmm", BCS: dex.EncodeReserves(1_000_000_000, 2_000_000_000)},
		{Ref: types.ObjectRef{ID: p2.ID, Version: 1, Digest: "d2"}, Type: "cetus_cpmm", BCS: dex.EncodeReserves(1_500_000_000, 1_000_000_000)},
	})

	hop1 := mustDex(t, db, p1, coinSui)
	hop2 := mustDex(t, db, p2, coinX)

	tr := &Trader{}
	result, err := tr.GetTradeResult(db, sim.SimulateCtx{}, Path{Hops: []dex.Dex{hop1, hop2}}, TradeCtx{
		Sender: "0xsender", Mode: ModeNormal, AmountIn: 1_000_000, GasBudget: 10_000_000,
	})
	if err != nil {
		t.Fatalf("GetTradeResult: %v", err)
	}
	if result.Profit != 322_275 {
		t.Fatalf("profit = %d, want 322_275", result.Profit)
	}
	if result.TxData.Kind != tradePTBKind {
		t.Fatalf("TxData.Kind = %q, want %q", result.TxData.Kind, tradePTBKind)
	}
	if result.TxData.GasBudget != 10_000_000 {
		t.Fatalf("TxData.GasBudget = %d, want 10_000_000", result.TxData.GasBudget)
	}

	// Replaying the assembled plan against the same object snapshot
	// should reproduce the same profit in the resulting balance change.
	simResult, err := db.Simulate(context.Background(), result.TxData, sim.SimulateCtx{})
	if err != nil {
		t.Fatalf("replay Simulate: %v", err)
	}
	bc, ok := simResult.BalanceChangeFor("0xsender", coinSui)
	if !ok {
		t.Fatal("expected a balance change for sender/SUI")
	}
	if bc.Amount != 322_275 {
		t.Fatalf("replayed profit = %d, want 322_275", bc.Amount)
	}
}

type stubSearcher struct {
	byCoin map[types.TypeTag][]types.Pool
}

func (s stubSearcher) PoolsForCoin(coin types.TypeTag) []types.Pool {
	return s.byCoin[coin]
}

func TestEnumeratePathsFindsTwoPoolCycle(t *testing.T) {
	coinSui := types.NativeCoinType
	coinX := types.TypeTag("0x2::x::X")

	p1 := poolAB("0xp1", coinSui, coinX)
	p2 := poolAB("0xp2", coinX, coinSui)
	db := dbWithPools(p1, p2)

	searcher := stubSearcher{byCoin: map[types.TypeTag][]types.Pool{
		coinSui: {p1, p2},
		coinX:   {p1, p2},
	}}

	paths, err := EnumeratePaths(context.Background(), db, searcher, coinSui, nil, 3, 10)
	if err != nil {
		t.Fatalf("EnumeratePaths: %v", err)
	}
	if len(paths) == 0 {
		t.Fatal("expected at least one candidate cycle")
	}
	for _, p := range paths {
		if err := p.Validate(); err != nil {
			t.Fatalf("candidate path failed to validate: %v", err)
		}
		if p.StartCoin() != coinSui {
			t.Fatalf("candidate path starts on %s, want %s", p.StartCoin(), coinSui)
		}
	}
}

func TestEnumeratePathsDedupesBySamePoolSequence(t *testing.T) {
	coinSui := types.NativeCoinType
	coinX := types.TypeTag("0x2::x::X")

	p1 := poolAB("0xp1", coinSui, coinX)
	p2 := poolAB("0xp2", coinX, coinSui)
	db := dbWithPools(p1, p2)

	searcher := stubSearcher{byCoin: map[types.TypeTag][]types.Pool{
		coinSui: {p1, p2},
		coinX:   {p1, p2},
	}}

	first, err := EnumeratePaths(context.Background(), db, searcher, coinSui, nil, 3, 10)
	if err != nil {
		t.Fatalf("EnumeratePaths: %v", err)
	}
	second, err := EnumeratePaths(context.Background(), db, searcher, coinSui, nil, 3, 10)
	if err != nil {
		t.Fatalf("EnumeratePaths (second call): %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("non-deterministic candidate count: %d vs %d", len(first), len(second))
	}
}

package strategy

import (
	"context"
	"io"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"sui-arb-engine/internal/arbcache"
	"sui-arb-engine/internal/dex"
	"sui-arb-engine/internal/executor"
	"sui-arb-engine/internal/sim"
	"sui-arb-engine/internal/trade"
	"sui-arb-engine/internal/types"
)

func TestCandidateKeyIsTheItemCoin(t *testing.T) {
	item := trade.ArbItem{Coin: types.NativeCoinType}
	if key := CandidateKey(item); key != arbcache.Key(types.NativeCoinType) {
		t.Fatalf("CandidateKey = %q, want %q", key, types.NativeCoinType)
	}
}

type catalogStub struct {
	byCoin map[types.TypeTag][]types.Pool
}

func (c catalogStub) PoolsForCoin(coin types.TypeTag) []types.Pool {
	return c.byCoin[coin]
}

func TestOnEventCachesCoinsFromBalanceChangesAndPool(t *testing.T) {
	coinA := types.NativeCoinType
	coinB := types.TypeTag("0x2::usdc::USDC")
	pool := types.Pool{ID: "0xp1", Protocol: types.ProtocolCetusCPMM, Tokens: []types.Token{{Type: coinA}, {Type: coinB}}}

	cache := arbcache.New(time.Minute)
	logger := log.New()
	logger.SetOutput(io.Discard)
	eng := New(Config{}, catalogStub{}, nil, cache, &trade.Trader{}, Sinks{}, nil, nil, logger)

	ev := Event{
		Source:         types.SourcePublic,
		SourceTxDigest: "0xdigest",
		Pool:           &pool,
		BalanceChanges: []sim.BalanceChange{{Owner: "0xsomeone", Coin: coinA, Amount: 100}},
	}
	if err := eng.OnEvent(context.Background(), ev); err != nil {
		t.Fatalf("OnEvent: %v", err)
	}
	if cache.Len() != 2 {
		t.Fatalf("cache.Len() = %d, want 2 (coinA and coinB from the pool)", cache.Len())
	}
	item, ok := cache.Get(arbcache.Key(coinA))
	if !ok {
		t.Fatal("expected an entry cached for coinA")
	}
	ai, ok := item.Value.(trade.ArbItem)
	if !ok {
		t.Fatalf("cached value has type %T, want trade.ArbItem", item.Value)
	}
	if ai.SourceTxDigest != "0xdigest" || ai.Source != types.SourcePublic {
		t.Fatalf("cached ArbItem = %+v, unexpected fields", ai)
	}
}

func TestOnEventNoopsOnEmptyEvent(t *testing.T) {
	cache := arbcache.New(time.Minute)
	logger := log.New()
	logger.SetOutput(io.Discard)
	eng := New(Config{}, catalogStub{}, nil, cache, &trade.Trader{}, Sinks{}, nil, nil, logger)

	if err := eng.OnEvent(context.Background(), Event{Source: types.SourcePublic}); err != nil {
		t.Fatalf("OnEvent: %v", err)
	}
	if cache.Len() != 0 {
		t.Fatalf("cache.Len() = %d, want 0 for an event with no coins", cache.Len())
	}
}

// recordingSink captures every Submission it receives, standing in for a
// real executor.Sink in tests.
type recordingSink struct {
	submissions []executor.Submission
}

func (s *recordingSink) Submit(ctx context.Context, sub executor.Submission) error {
	s.submissions = append(s.submissions, sub)
	return nil
}

func TestCandidateItemEvaluateFindsProfitableCycleAndSubmits(t *testing.T) {
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
	simPool, err := sim.NewPool(func() (sim.Simulator, error) { return db, nil }, 1)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}

	searcher := catalogStub{byCoin: map[types.TypeTag][]types.Pool{
		coinSui: {p1, p2},
		coinX:   {p1, p2},
	}}

	cache := arbcache.New(time.Minute)
	logger := log.New()
	logger.SetOutput(io.Discard)
	publicSink := &recordingSink{}
	cfg := Config{
		Sender: "0xsender", MaxHops: 2, MaxCandidates: 10,
		SearchGridSize: 5, SearchMaxIterations: 20, MinProfit: 1, GasBudget: 10_000_000,
	}
	eng := New(cfg, searcher, simPool, cache, &trade.Trader{}, Sinks{Public: publicSink}, nil, nil, logger)

	item := &candidateItem{item: trade.ArbItem{Coin: coinSui, Source: types.SourcePublic}, engine: eng}
	ok, err := item.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !ok {
		t.Fatal("expected Evaluate to find a profitable cycle")
	}
	if item.result.Best.Profit <= 0 {
		t.Fatalf("Best.Profit = %d, want > 0", item.result.Best.Profit)
	}

	if err := item.Submit(context.Background()); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(publicSink.submissions) != 1 {
		t.Fatalf("publicSink received %d submissions, want 1", len(publicSink.submissions))
	}
	if publicSink.submissions[0].Source != types.SourcePublic {
		t.Fatalf("submission.Source = %v, want SourcePublic", publicSink.submissions[0].Source)
	}
}

func TestCandidateItemSubmitFailsWithoutMatchingSink(t *testing.T) {
	cache := arbcache.New(time.Minute)
	logger := log.New()
	logger.SetOutput(io.Discard)
	eng := New(Config{}, catalogStub{}, nil, cache, &trade.Trader{}, Sinks{}, nil, nil, logger)

	item := &candidateItem{
		item:   trade.ArbItem{Coin: types.NativeCoinType, Source: types.SourcePrivate},
		engine: eng,
		found:  true,
		result: trade.ArbResult{TxData: sim.TxData{Kind: "trade.ptb"}},
	}
	if err := item.Submit(context.Background()); err == nil {
		t.Fatal("expected Submit to fail when no private sink is configured")
	}
}

func TestCandidateItemEvaluateReturnsFalseWithoutLiquidity(t *testing.T) {
	coinA := types.NativeCoinType
	coinB := types.TypeTag("0x2::usdc::USDC")
	searcher := catalogStub{byCoin: map[types.TypeTag][]types.Pool{}}

	simPool, err := sim.NewPool(func() (sim.Simulator, error) { return sim.NewDBSimulator(), nil }, 1)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	cache := arbcache.New(time.Minute)
	logger := log.New()
	logger.SetOutput(io.Discard)
	eng := New(Config{MaxHops: 2, MaxCandidates: 10, SearchGridSize: 5, SearchMaxIterations: 20}, searcher, simPool, cache, &trade.Trader{}, Sinks{}, nil, nil, logger)

	item := &candidateItem{item: trade.ArbItem{Coin: coinA}, engine: eng}
	ok, err := item.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if ok {
		t.Fatal("expected Evaluate to find nothing when the catalog has no pools for coinB-adjacent cycles")
	}
	_ = coinB
}

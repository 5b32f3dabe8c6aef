// Package strategy wires the pool catalog, simulator pool, path
// enumeration, golden-section search, arbitrage cache and worker pool into
// the engine's main loop: on every observed chain event, cheaply cache the
// coins it touched, and let the worker pool pull each cached coin, size and
// assemble its best cycle, and submit it through the Source-appropriate
// executor sink.
package strategy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"sui-arb-engine/internal/arbcache"
	"sui-arb-engine/internal/arberr"
	"sui-arb-engine/internal/executor"
	"sui-arb-engine/internal/metrics"
	"sui-arb-engine/internal/notify"
	"sui-arb-engine/internal/search"
	"sui-arb-engine/internal/sim"
	"sui-arb-engine/internal/signer"
	"sui-arb-engine/internal/trade"
	"sui-arb-engine/internal/types"
	"sui-arb-engine/internal/worker"
)

// Event is one observed chain signal the strategy reacts to: a public
// mempool transaction, a private relay transaction, or an auction
// opportunity notice (distinguished by Source). It carries whatever coins
// and pool it touched; OnEvent only derives candidate keys from it, the
// actual search happens later in a worker's Evaluate call.
type Event struct {
	Source         types.Source
	SourceTxDigest string
	Pool           *types.Pool
	BalanceChanges []sim.BalanceChange
	GasPrice       uint64
	Deadline       time.Time
}

// CandidateKey derives the arbcache key for a discovered candidate: the
// coin it is denominated in. Two events that touch the same coin
// (regardless of which pool or tx produced them) de-dupe onto the same
// cache entry, matching the cache's coin-keyed contract.
func CandidateKey(item trade.ArbItem) arbcache.Key {
	return arbcache.Key(item.Coin)
}

// Config bundles the tunables the strategy loop needs from configuration.
type Config struct {
	Sender              string
	StartCoin           types.TypeTag
	MaxHops             int
	MaxCandidates       int
	SearchGridSize      int
	SearchMaxIterations int
	MinProfit           uint64
	GasBudget           uint64
	WorkerCount         int
	BuildVersion        string
}

// Sinks bundles the destination-specific submission collaborators a
// candidateItem dispatches to by its Source tag. A nil field means that
// source is not wired; submitting an item tagged for a nil sink fails
// loudly rather than silently dropping the opportunity.
type Sinks struct {
	Public  executor.Sink
	Private executor.Sink
	Auction *executor.AuctionSink
}

// Engine owns the full pipeline: catalog -> path enumeration -> search ->
// cache -> worker pool -> executor/signer/notifier.
type Engine struct {
	cfg      Config
	searcher trade.PoolSearcher
	pool     *sim.Pool
	cache    *arbcache.Cache
	trader   *trade.Trader
	sinks    Sinks
	signer   signer.Signer
	notifier notify.Sink
	logger   *log.Logger
}

// New builds an Engine from its collaborators. signer and notifier may be
// nil: without a signer, candidateItem.Submit dispatches the plan with an
// empty signature; without a notifier, outcomes are not reported.
func New(cfg Config, searcher trade.PoolSearcher, pool *sim.Pool, cache *arbcache.Cache, trader *trade.Trader, sinks Sinks, signer signer.Signer, notifier notify.Sink, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Engine{cfg: cfg, searcher: searcher, pool: pool, cache: cache, trader: trader, sinks: sinks, signer: signer, notifier: notifier, logger: logger}
}

// OnEvent does only the cheap work an event handler must: derive the set of
// coins ev touched (from its balance changes and, if it names the pool that
// moved, that pool's own token slots) and insert one ArbItem per coin into
// the cache. It never runs a search or touches the simulator pool; that
// work belongs to candidateItem.Evaluate, run by a worker off this call's
// critical path.
func (e *Engine) OnEvent(ctx context.Context, ev Event) error {
	coins := make(map[types.TypeTag]bool)
	for _, bc := range ev.BalanceChanges {
		coins[bc.Coin] = true
	}
	if ev.Pool != nil {
		for _, tok := range ev.Pool.Tokens {
			coins[tok.Type] = true
		}
	}
	if len(coins) == 0 {
		return nil
	}

	sctx := sim.SimulateCtx{Epoch: sim.SimEpoch{GasPrice: ev.GasPrice}}
	for coin := range coins {
		item := trade.ArbItem{
			Coin:           coin,
			Pool:           ev.Pool,
			SourceTxDigest: ev.SourceTxDigest,
			SimCtx:         sctx,
			Source:         ev.Source,
		}
		e.cache.Insert(CandidateKey(item), item)
	}
	metrics.WorkerQueueDepth.Set(float64(e.cache.Len()))
	e.logger.WithFields(log.Fields{
		"source": ev.Source.String(), "tx": ev.SourceTxDigest, "coins": len(coins),
	}).Debug("cached candidate coins from event")
	return nil
}

// cacheSource adapts the arbcache.Cache to worker.Source, draining the
// nearest-to-expiring candidate on every Next call.
type cacheSource struct {
	cache  *arbcache.Cache
	engine *Engine
}

// NewWorkerSource returns a worker.Source backed by e's cache.
func (e *Engine) NewWorkerSource() worker.Source {
	return &cacheSource{cache: e.cache, engine: e}
}

func (s *cacheSource) Next(ctx context.Context) (worker.Item, error) {
	cached, err := s.cache.Pop()
	if err != nil {
		return nil, err
	}
	item, ok := cached.Value.(trade.ArbItem)
	if !ok {
		return nil, fmt.Errorf("cache item %s has unexpected payload type", cached.Key)
	}
	return &candidateItem{item: item, engine: s.engine}, nil
}

// candidateItem adapts one cached trade.ArbItem to worker.Item. Evaluate
// enumerates this coin's candidate cycles from the current catalog, sizes
// each with search.Run, and keeps the most profitable; Submit signs and
// dispatches the winning plan through the sink matching the item's Source.
type candidateItem struct {
	item   trade.ArbItem
	engine *Engine

	result        trade.ArbResult
	found         bool
	simulatorName string
	arbTxDigest   string
}

func (c *candidateItem) Evaluate(ctx context.Context) (bool, error) {
	handle := c.engine.pool.Get()
	defer handle.Release()
	c.simulatorName = handle.Sim.Name()

	t0 := time.Now()
	paths, err := trade.EnumeratePaths(ctx, handle.Sim, c.engine.searcher, c.item.Coin, c.item.Pool, c.engine.cfg.MaxHops, c.engine.cfg.MaxCandidates)
	ctxCreateMs := time.Since(t0).Milliseconds()
	if err != nil || len(paths) == 0 {
		return false, nil
	}

	var bestResult trade.TrialResult
	var bestTx sim.TxData
	var gridMs, gssMs int64
	found := false

	for _, path := range paths {
		liquidity := minHopLiquidity(path)
		if liquidity == 0 {
			continue
		}

		tSearch := time.Now()
		goal := search.GoalFunc(func(x uint64) (int64, error) {
			res, err := c.engine.trader.GetTradeResult(handle.Sim, c.item.SimCtx, path, trade.TradeCtx{
				Sender: c.engine.cfg.Sender, Mode: trade.ModeFlashloan, AmountIn: x,
				MinProfit: 0, GasBudget: c.engine.cfg.GasBudget, FlashVenue: path.Hops[0],
			})
			if err != nil {
				return -1, nil // a failed quote at this size just loses the search round
			}
			return res.Profit, nil
		})
		metrics.SearchesTotal.Inc()
		sized, err := search.Run(goal, 1, liquidity, c.engine.cfg.SearchGridSize, c.engine.cfg.SearchMaxIterations)
		searchMs := time.Since(tSearch).Milliseconds()
		if err != nil || sized.Max < int64(c.engine.cfg.MinProfit) {
			continue
		}
		if found && sized.Max <= bestResult.Profit {
			continue
		}

		tr, err := c.engine.trader.GetTradeResult(handle.Sim, c.item.SimCtx, path, trade.TradeCtx{
			Sender: c.engine.cfg.Sender, Mode: trade.ModeFlashloan, AmountIn: sized.ArgMax,
			MinProfit: c.engine.cfg.MinProfit, GasBudget: c.engine.cfg.GasBudget, FlashVenue: path.Hops[0],
		})
		if err != nil {
			continue
		}
		bestResult = trade.TrialResult{AmountIn: sized.ArgMax, Profit: tr.Profit, CoinType: c.item.Coin, TradePath: path, CacheMisses: sized.CacheMisses}
		bestTx = tr.TxData
		// search.Run doesn't report a grid/golden-section timing split on
		// its own, so both fields get the same wall-clock measurement
		// around the whole call.
		gridMs, gssMs = searchMs, searchMs
		found = true
	}

	if !found {
		return false, nil
	}
	c.found = true
	c.result = trade.ArbResult{
		Best: bestResult,
		Timing: trade.Timing{
			CtxCreateMs:  ctxCreateMs,
			GridSearchMs: gridMs,
			GSSMs:        gssMs,
		},
		TxData: bestTx,
		Source: c.item.Source,
	}
	return true, nil
}

// Submit signs the winning plan and dispatches it through the sink that
// matches the candidate's Source, then reports the outcome through the
// engine's notifier regardless of success.
func (c *candidateItem) Submit(ctx context.Context) error {
	if !c.found {
		return arberr.Wrap(arberr.ErrNoOpportunity, "submit called before a profitable plan was found")
	}

	digest := sha256.Sum256(c.result.TxData.BCS)
	var sig []byte
	if c.engine.signer != nil {
		s, err := c.engine.signer.Sign(digest[:])
		if err != nil {
			c.report(false, err)
			return err
		}
		sig = s
	}

	c.arbTxDigest = hex.EncodeToString(digest[:])
	submitErr := c.dispatch(ctx, digest[:], sig)
	c.report(submitErr == nil, submitErr)
	if submitErr == nil {
		metrics.OpportunitiesSubmitted.Inc()
	}
	return submitErr
}

func (c *candidateItem) dispatch(ctx context.Context, digest, sig []byte) error {
	switch c.item.Source {
	case types.SourceAuction:
		if c.engine.sinks.Auction == nil {
			return arberr.Wrap(arberr.ErrConfigInvalid, "no auction sink configured")
		}
		return c.engine.sinks.Auction.SubmitBid(ctx, digest, c.result.TxData.BCS, sig, uint64(c.result.Best.Profit), c.result.TxData.GasBudget)
	case types.SourcePrivate:
		return c.submitVia(ctx, c.engine.sinks.Private, digest, sig)
	default:
		return c.submitVia(ctx, c.engine.sinks.Public, digest, sig)
	}
}

func (c *candidateItem) submitVia(ctx context.Context, sink executor.Sink, digest, sig []byte) error {
	if sink == nil {
		return arberr.Wrapf(arberr.ErrConfigInvalid, "no sink configured for source %s", c.item.Source)
	}
	return sink.Submit(ctx, executor.Submission{
		Source:    c.item.Source,
		BCS:       c.result.TxData.BCS,
		Digest:    hex.EncodeToString(digest),
		Signature: sig,
	})
}

func (c *candidateItem) report(submitted bool, err error) {
	if c.engine.notifier == nil {
		return
	}
	r := notify.ArbReport{
		SourceTxDigest: c.item.SourceTxDigest,
		ArbTxDigest:    c.arbTxDigest,
		CoinType:       c.result.Best.CoinType,
		AmountIn:       c.result.Best.AmountIn,
		Profit:         c.result.Best.Profit,
		Path:           pathHops(c.result.Best.TradePath),

		ElapsedTotalMs:      c.result.Timing.CtxCreateMs + c.result.Timing.GridSearchMs,
		ElapsedCtxCreateMs:  c.result.Timing.CtxCreateMs,
		ElapsedGridSearchMs: c.result.Timing.GridSearchMs,
		ElapsedGSSMs:        c.result.Timing.GSSMs,
		CacheMisses:         c.result.Best.CacheMisses,

		SimulatorName: c.simulatorName,
		Source:        c.item.Source,
		BuildVersion:  c.engine.cfg.BuildVersion,

		Submitted: submitted,
	}
	if err != nil {
		r.Err = err.Error()
	}
	c.engine.notifier.Notify(r)
}

func pathHops(path trade.Path) []notify.PathHop {
	hops := make([]notify.PathHop, len(path.Hops))
	for i, hop := range path.Hops {
		hops[i] = notify.PathHop{
			Protocol: hop.Protocol(),
			PoolID:   hop.ObjectID(),
			CoinIn:   hop.CoinInType(),
			CoinOut:  hop.CoinOutType(),
		}
	}
	return hops
}

func minHopLiquidity(path trade.Path) uint64 {
	var min uint64
	for i, hop := range path.Hops {
		l := hop.Liquidity()
		if i == 0 || l < min {
			min = l
		}
	}
	return min
}

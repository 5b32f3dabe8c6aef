package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"sui-arb-engine/internal/arbcache"
	"sui-arb-engine/internal/config"
	"sui-arb-engine/internal/executor"
	"sui-arb-engine/internal/indexer"
	"sui-arb-engine/internal/notify"
	"sui-arb-engine/internal/signer"
	"sui-arb-engine/internal/sim"
	"sui-arb-engine/internal/strategy"
	"sui-arb-engine/internal/trade"
	"sui-arb-engine/internal/types"
	"sui-arb-engine/internal/worker"
)

func main() {
	rootCmd := &cobra.Command{Use: "arbd"}
	rootCmd.AddCommand(startBotCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(poolIDsCmd())
	rootCmd.AddCommand(dryRunCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func commonFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc-url", "", "Sui full-node JSON-RPC URL")
	cmd.Flags().String("private-key", "", "hex-encoded secp256k1 private key (env ARB_PRIVATE_KEY preferred)")
	cmd.Flags().String("simulator", "db", "simulator backend: db, http or replay")
	cmd.Flags().Int("worker-count", 0, "override configured worker pool size")
	cmd.Flags().String("preload-file", "", "path to a preload catalog file")
	cmd.Flags().String("env", "", "configuration environment overlay (e.g. staging)")
}

func startBotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start-bot",
		Short: "load configuration, build the engine, and run until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, _ := cmd.Flags().GetString("env")
			cfg, err := config.Load(env)
			if err != nil {
				return err
			}
			applyFlagOverrides(cmd, cfg)
			return runEngine(cfg)
		},
	}
	commonFlags(cmd)
	return cmd
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "alias for start-bot, for parity with single-shot invocations",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, _ := cmd.Flags().GetString("env")
			cfg, err := config.Load(env)
			if err != nil {
				return err
			}
			applyFlagOverrides(cmd, cfg)
			return runEngine(cfg)
		},
	}
	commonFlags(cmd)
	return cmd
}

func poolIDsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pool-ids",
		Short: "print every pool id currently in the local catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return err
			}
			cat, err := indexer.Open(cfg.Indexer.CatalogDir)
			if err != nil {
				return err
			}
			for _, p := range cat.All() {
				cmd.Println(p.ID)
			}
			return nil
		},
	}
}

// dryRunCmd builds the literal Path walking a hand-picked sequence of pool
// ids from the local catalog and simulates it once, printing the profit it
// would yield without ever signing or submitting anything.
func dryRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dry-run",
		Short: "simulate a hand-picked pool-id cycle against the local catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			poolIDsFlag, _ := cmd.Flags().GetString("pool-ids")
			amountIn, _ := cmd.Flags().GetUint64("amount-in")
			if poolIDsFlag == "" {
				return errors.New("--pool-ids is required, comma-separated")
			}

			cfg, err := config.LoadFromEnv()
			if err != nil {
				return err
			}
			cat, err := indexer.Open(cfg.Indexer.CatalogDir)
			if err != nil {
				return err
			}
			searcher := indexer.NewDexSearcher(cat)
			sm := buildSimulator(cfg)

			ids := make([]types.ObjectId, 0)
			for _, raw := range strings.Split(poolIDsFlag, ",") {
				if raw != "" {
					ids = append(ids, types.ObjectId(raw))
				}
			}

			ctx := cmd.Context()
			path, err := searcher.FindTestPath(ctx, sm, ids)
			if err != nil {
				return err
			}

			trader := &trade.Trader{}
			result, err := trader.GetTradeResult(sm, sim.SimulateCtx{}, path, trade.TradeCtx{
				Sender: cfg.Execution.Sender, Mode: trade.ModeNormal, AmountIn: amountIn, GasBudget: cfg.Execution.GasBudget,
			})
			if err != nil {
				return err
			}
			cmd.Printf("amount_out=%d profit=%d\n", result.AmountOut, result.Profit)
			return nil
		},
	}
	cmd.Flags().String("pool-ids", "", "comma-separated ordered pool object ids to dry-run")
	cmd.Flags().Uint64("amount-in", 1_000_000, "input amount for the dry run")
	return cmd
}

func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if v, _ := cmd.Flags().GetString("rpc-url"); v != "" {
		cfg.RPC.URL = v
	}
	if v, _ := cmd.Flags().GetString("simulator"); v != "" {
		cfg.Simulator.Kind = v
	}
	if v, _ := cmd.Flags().GetInt("worker-count"); v > 0 {
		cfg.Strategy.WorkerCount = v
	}
	if v, _ := cmd.Flags().GetString("preload-file"); v != "" {
		cfg.Simulator.PreloadFile = v
	}
}

func buildSimulator(cfg *config.Config) sim.Simulator {
	switch cfg.Simulator.Kind {
	case "http":
		return sim.NewHttpSimulator(cfg.RPC.URL, 10*time.Second)
	default:
		return sim.NewDBSimulator()
	}
}

func runEngine(cfg *config.Config) error {
	logger := log.New()
	if lvl, err := log.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(lvl)
	}
	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&log.JSONFormatter{})
	}

	cat, err := indexer.Open(cfg.Indexer.CatalogDir)
	if err != nil {
		return err
	}
	searcher := indexer.NewDexSearcher(cat)

	pool, err := sim.NewPool(func() (sim.Simulator, error) { return buildSimulator(cfg), nil }, cfg.Simulator.PoolSize)
	if err != nil {
		return err
	}

	cache := arbcache.New(time.Duration(cfg.Strategy.CacheExpiryMs) * time.Millisecond)
	trader := &trade.Trader{}

	var keySigner signer.Signer
	if key := config.PrivateKeyHex(); key != "" {
		keySigner, err = signer.FromHex(key)
		if err != nil {
			return err
		}
	}

	sinks := strategy.Sinks{
		Public: executor.NewPublicSink(cfg.RPC.URL),
	}
	if cfg.Execution.PrivateRelayURL != "" {
		sinks.Private = executor.NewPrivateSink(cfg.Execution.PrivateRelayURL)
	}
	if cfg.Auction.RelayURL != "" {
		sinks.Auction = executor.NewAuctionSink(cfg.Auction.RelayURL, cfg.Auction.BidShareBps)
	}
	notifier := notify.New(logger, 256)

	engine := strategy.New(strategy.Config{
		Sender:              cfg.Execution.Sender,
		StartCoin:           types.NativeCoinType,
		MaxHops:             3,
		MaxCandidates:       20,
		SearchGridSize:      cfg.Strategy.SearchGridSize,
		SearchMaxIterations: cfg.Strategy.SearchMaxIterations,
		MinProfit:           0,
		GasBudget:           cfg.Execution.GasBudget,
		BuildVersion:        cfg.BuildVersion,
	}, searcher, pool, cache, trader, sinks, keySigner, notifier, logger)

	workerPool := &worker.Pool{
		Source: engine.NewWorkerSource(),
		Sink:   outcomeSink{logger: logger},
		Size:   cfg.Strategy.WorkerCount,
		Logger: logger,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.WithField("workers", cfg.Strategy.WorkerCount).Info("starting arbitrage engine")
	workerPool.Run(ctx)
	return nil
}

// outcomeSink adapts worker.Outcome (the per-item pass/fail the worker pool
// itself cares about) to a simple log line; the richer per-opportunity
// notify.ArbReport is emitted directly by candidateItem.Submit, since only
// it holds the profit/path detail a report needs.
type outcomeSink struct {
	logger *log.Logger
}

func (s outcomeSink) Report(o worker.Outcome) {
	if o.Accepted {
		s.logger.WithField("worker", o.WorkerID).Debug("worker accepted item")
		return
	}
	entry := s.logger.WithField("worker", o.WorkerID)
	if o.Err != nil {
		entry.WithError(o.Err).Debug("worker rejected item")
	} else {
		entry.Debug("worker found no profitable opportunity")
	}
}

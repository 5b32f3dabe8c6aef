// Package config provides a reusable viper-backed loader for the arbitrage
// engine's configuration files and environment variables, mirroring the
// structure of pkg/config's loader.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"sui-arb-engine/internal/arberr"
	"sui-arb-engine/pkg/utils"
)

// Config is the unified configuration for one engine instance, as read by
// Load from an optional YAML file plus environment overrides.
type Config struct {
	RPC struct {
		URL   string `mapstructure:"url" json:"url"`
		WSURL string `mapstructure:"ws_url" json:"ws_url"`
	} `mapstructure:"rpc" json:"rpc"`

	Simulator struct {
		Kind        string `mapstructure:"kind" json:"kind"` // "db" | "http" | "replay"
		PoolSize    int    `mapstructure:"pool_size" json:"pool_size"`
		PreloadFile string `mapstructure:"preload_file" json:"preload_file"`
	} `mapstructure:"simulator" json:"simulator"`

	Strategy struct {
		CacheExpiryMs        int `mapstructure:"cache_expiry_ms" json:"cache_expiry_ms"`
		WorkerCount          int `mapstructure:"worker_count" json:"worker_count"`
		SearchGridSize       int `mapstructure:"search_grid_size" json:"search_grid_size"`
		SearchMaxIterations  int `mapstructure:"search_max_iterations" json:"search_max_iterations"`
	} `mapstructure:"strategy" json:"strategy"`

	Auction struct {
		RelayURL   string `mapstructure:"relay_url" json:"relay_url"`
		BidShareBps int   `mapstructure:"bid_share_bps" json:"bid_share_bps"`
	} `mapstructure:"auction" json:"auction"`

	Execution struct {
		PrivateRelayURL string `mapstructure:"private_relay_url" json:"private_relay_url"`
		Sender          string `mapstructure:"sender" json:"sender"`
		GasBudget       uint64 `mapstructure:"gas_budget" json:"gas_budget"`
	} `mapstructure:"execution" json:"execution"`

	Indexer struct {
		CatalogDir string `mapstructure:"catalog_dir" json:"catalog_dir"`
	} `mapstructure:"indexer" json:"indexer"`

	Logging struct {
		Level  string `mapstructure:"level" json:"level"`
		Format string `mapstructure:"format" json:"format"`
	} `mapstructure:"logging" json:"logging"`

	BuildVersion string `mapstructure:"build_version" json:"build_version"`
}

// Defaults applied before any file/env is read, so a bare Load("") still
// produces a runnable configuration.
func defaults() Config {
	var c Config
	c.Simulator.Kind = "db"
	c.Simulator.PoolSize = 32
	c.Strategy.CacheExpiryMs = 3000
	c.Strategy.WorkerCount = 8
	c.Strategy.SearchGridSize = 15
	c.Strategy.SearchMaxIterations = 1000
	c.Auction.BidShareBps = 5000
	c.Execution.GasBudget = 10_000_000
	c.Indexer.CatalogDir = "data/catalog"
	c.Logging.Level = "info"
	c.Logging.Format = "text"
	c.BuildVersion = "dev"
	return c
}

// AppConfig holds the configuration loaded via Load. CLI subcommands and
// long-lived components read from the pointer returned by Load rather than
// this package var directly; it exists for parity with this codebase's
// existing config packages and for quick inspection in tests.
var AppConfig Config = defaults()

// Load reads configuration files (default.yaml plus an optional
// env-specific overlay) and merges environment-variable overrides. env may
// be empty, in which case only the default configuration is loaded.
func Load(env string) (*Config, error) {
	// A missing .env is the common case in production (secrets come from
	// the real environment) and is not an error; only a malformed .env
	// that exists but fails to parse is worth surfacing.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, arberr.Wrap(err, "load .env file")
	}

	cfg := defaults()

	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/arbd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, arberr.Wrap(err, "load config")
		}
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, arberr.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv()

	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, arberr.Wrap(err, "unmarshal config")
	}

	if cfg.RPC.URL == "" {
		cfg.RPC.URL = utils.EnvOrDefault("ARB_RPC_URL", "")
	}
	if cfg.Execution.Sender == "" {
		cfg.Execution.Sender = utils.EnvOrDefault("ARB_SENDER", "")
	}
	AppConfig = cfg
	return &cfg, nil
}

// LoadFromEnv loads configuration using the ARB_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("ARB_ENV", ""))
}

// PrivateKeyHex returns the signer's private key, preferring the
// environment over any config file entry, per the CLI surface's
// "private-key (env-preferred)" contract. It never reads a YAML field for
// this value.
func PrivateKeyHex() string {
	return utils.EnvOrDefault("ARB_PRIVATE_KEY", "")
}

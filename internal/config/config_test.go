package config

import (
	"os"
	"testing"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Simulator.Kind != "db" {
		t.Fatalf("Simulator.Kind = %q, want db", cfg.Simulator.Kind)
	}
	if cfg.Strategy.WorkerCount != 8 {
		t.Fatalf("Strategy.WorkerCount = %d, want 8", cfg.Strategy.WorkerCount)
	}
	if cfg.Execution.GasBudget != 10_000_000 {
		t.Fatalf("Execution.GasBudget = %d, want 10_000_000", cfg.Execution.GasBudget)
	}
}

func TestLoadPrefersEnvSenderOverEmptyConfig(t *testing.T) {
	os.Setenv("ARB_SENDER", "0xfromenv")
	defer os.Unsetenv("ARB_SENDER")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Execution.Sender != "0xfromenv" {
		t.Fatalf("Execution.Sender = %q, want 0xfromenv", cfg.Execution.Sender)
	}
}

func TestPrivateKeyHexReadsEnv(t *testing.T) {
	os.Setenv("ARB_PRIVATE_KEY", "deadbeef")
	defer os.Unsetenv("ARB_PRIVATE_KEY")
	if got := PrivateKeyHex(); got != "deadbeef" {
		t.Fatalf("PrivateKeyHex() = %q, want deadbeef", got)
	}
}

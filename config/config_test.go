package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default config file not written: %v", err)
	}
	if cfg.RPCAddress != defaultRPCAddress {
		t.Fatalf("unexpected rpc address: %s", cfg.RPCAddress)
	}
	if cfg.SyntheticSymbol != "XUSD" {
		t.Fatalf("unexpected symbol: %s", cfg.SyntheticSymbol)
	}
	if len(cfg.CollateralKinds) != len(cfg.PriceFeeds) {
		t.Fatalf("default lists must be parallel")
	}
	if cfg.MaxQuoteAge() != 3*time.Hour {
		t.Fatalf("unexpected staleness window: %s", cfg.MaxQuoteAge())
	}

	// A second load reads the file that was just written.
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.RPCAddress != cfg.RPCAddress {
		t.Fatalf("reload mismatch: %s vs %s", again.RPCAddress, cfg.RPCAddress)
	}
}

func TestLoadRejectsMismatchedLists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
RPCAddress = "127.0.0.1:8475"
CollateralKinds = ["WETH", "WBTC"]
PriceFeeds = ["ETH-USD"]
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parallel-list rejection")
	}
}

func TestValidateRejectsDuplicatesAndEmpties(t *testing.T) {
	cfg := &Config{
		CollateralKinds: []string{"WETH", "weth"},
		PriceFeeds:      []string{"ETH-USD", "ETH-USD-2"},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected duplicate kind rejection")
	}

	cfg = &Config{
		CollateralKinds: []string{"WETH"},
		PriceFeeds:      []string{"  "},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected empty feed rejection")
	}

	cfg = &Config{}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected empty allow list rejection")
	}
}

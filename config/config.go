package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config captures the runtime settings for the xusdd daemon.
type Config struct {
	RPCAddress      string   `toml:"RPCAddress"`
	DataDir         string   `toml:"DataDir"`
	NetworkName     string   `toml:"NetworkName"`
	SyntheticSymbol string   `toml:"SyntheticSymbol"`
	CollateralKinds []string `toml:"CollateralKinds"`
	PriceFeeds      []string `toml:"PriceFeeds"`
	OracleEndpoint  string   `toml:"OracleEndpoint"`
	OracleAPIKey    string   `toml:"OracleAPIKey"`
	MaxQuoteAgeSecs int64    `toml:"MaxQuoteAgeSeconds"`
	RateLimitPerMin float64  `toml:"RateLimitPerMinute"`
	RateLimitBurst  int      `toml:"RateLimitBurst"`
	Environment     string   `toml:"Environment"`
}

const (
	defaultRPCAddress      = "127.0.0.1:8475"
	defaultDataDir         = "./xusd-data"
	defaultNetworkName     = "xusd-local"
	defaultSynthetic       = "XUSD"
	defaultMaxQuoteAgeSecs = int64(3 * 60 * 60)
	defaultRateLimit       = 120.0
	defaultRateBurst       = 30
)

// Load loads the configuration from the given path, creating a default config
// file when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = defaultRPCAddress
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = defaultDataDir
	}
	if strings.TrimSpace(c.NetworkName) == "" {
		c.NetworkName = defaultNetworkName
	}
	if strings.TrimSpace(c.SyntheticSymbol) == "" {
		c.SyntheticSymbol = defaultSynthetic
	}
	if c.MaxQuoteAgeSecs <= 0 {
		c.MaxQuoteAgeSecs = defaultMaxQuoteAgeSecs
	}
	if c.RateLimitPerMin <= 0 {
		c.RateLimitPerMin = defaultRateLimit
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = defaultRateBurst
	}
}

// Validate checks the structural constraints the engine depends on. The
// parallel collateral/feed lists are length-checked here and again at engine
// construction.
func (c *Config) Validate() error {
	if len(c.CollateralKinds) != len(c.PriceFeeds) {
		return fmt.Errorf("config: CollateralKinds (%d) must match PriceFeeds (%d)", len(c.CollateralKinds), len(c.PriceFeeds))
	}
	if len(c.CollateralKinds) == 0 {
		return fmt.Errorf("config: at least one collateral kind is required")
	}
	seen := make(map[string]struct{}, len(c.CollateralKinds))
	for i, kind := range c.CollateralKinds {
		trimmed := strings.ToUpper(strings.TrimSpace(kind))
		if trimmed == "" {
			return fmt.Errorf("config: empty collateral kind at index %d", i)
		}
		if _, dup := seen[trimmed]; dup {
			return fmt.Errorf("config: duplicate collateral kind %s", trimmed)
		}
		seen[trimmed] = struct{}{}
		if strings.TrimSpace(c.PriceFeeds[i]) == "" {
			return fmt.Errorf("config: empty price feed for kind %s", trimmed)
		}
	}
	return nil
}

// MaxQuoteAge returns the configured staleness window as a duration.
func (c *Config) MaxQuoteAge() time.Duration {
	return time.Duration(c.MaxQuoteAgeSecs) * time.Second
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		CollateralKinds: []string{"WETH", "WBTC"},
		PriceFeeds:      []string{"ETH-USD", "BTC-USD"},
	}
	cfg.applyDefaults()

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

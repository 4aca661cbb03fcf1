package main

import (
	"crypto/sha256"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"xusd/config"
	"xusd/core/events"
	"xusd/crypto"
	"xusd/native/oracle"
	"xusd/native/synth"
	"xusd/native/token"
	"xusd/observability/logging"
	"xusd/rpc"
	"xusd/rpc/modules"
	"xusd/storage"
)

const rpcTokenEnv = "XUSD_RPC_TOKEN"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("XUSD_ENV"))
	logger := logging.Setup("xusdd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	tokenState := token.NewState(db)
	custody := custodyAddress(cfg.NetworkName)
	synthetic := token.NewSyntheticLedger(tokenState, cfg.SyntheticSymbol, custody)

	engine, err := synth.NewEngine(custody, cfg.CollateralKinds, cfg.PriceFeeds, synthetic)
	if err != nil {
		logger.Error("Failed to construct synth engine", slog.Any("error", err))
		os.Exit(1)
	}
	engine.SetState(db)
	engine.SetOracle(oracle.NewAdapter(buildFeed(cfg), cfg.MaxQuoteAge()))
	for _, kind := range cfg.CollateralKinds {
		if err := engine.SetCollateralLedger(kind, token.NewLedger(tokenState, kind)); err != nil {
			logger.Error("Failed to register collateral ledger", slog.String("kind", kind), slog.Any("error", err))
			os.Exit(1)
		}
	}
	recorder := events.NewRecorder(0)
	engine.SetEmitter(recorder)

	synthModule := modules.NewSynthModule(engine, synthetic, recorder)
	server := rpc.NewServer(synthModule, rpc.ServerConfig{
		AuthToken:         os.Getenv(rpcTokenEnv),
		RequestsPerMinute: cfg.RateLimitPerMin,
		Burst:             cfg.RateLimitBurst,
		Logger:            logger,
	})

	logger.Info("node ready",
		slog.String("network", cfg.NetworkName),
		slog.String("symbol", cfg.SyntheticSymbol),
		slog.String("custody", custody.String()),
		slog.Any("collateral", cfg.CollateralKinds),
	)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// custodyAddress derives the deterministic protocol-owned account that holds
// deposited collateral and brokers synthetic supply for a network.
func custodyAddress(network string) crypto.Address {
	sum := sha256.Sum256([]byte("xusd/custody/" + strings.TrimSpace(network)))
	return crypto.NewAddress(crypto.ModulePrefix, sum[:20])
}

// buildFeed picks the price source: a remote HTTP oracle when an endpoint is
// configured, otherwise an operator-driven manual feed.
func buildFeed(cfg *config.Config) oracle.PriceFeed {
	endpoint := strings.TrimSpace(cfg.OracleEndpoint)
	if endpoint == "" {
		return oracle.NewManualFeed()
	}
	client := &http.Client{Timeout: 10 * time.Second}
	return oracle.NewHTTPFeed(client, endpoint, cfg.OracleAPIKey)
}

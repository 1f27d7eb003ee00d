// FILE: main.go
// Package main – Program entrypoint and ops server.
//
// Boot sequence:
//   1) loadBotEnv(path)            – read .env (process env wins)
//   2) cfg := loadConfigFromEnv()  – build runtime Config, then Validate
//   3) logger                      – zap JSON to stdout (+ LOG_FILE)
//   4) credential                  – TRADER_PRIVATE_KEY (ephemeral key in dry run)
//   5) market metadata             – MARKET_CONFIG file, bridge /market, or paper defaults
//   6) wire exchange/feed/order manager/monitor/market maker
//      (dry run prices: REPLAY_CSV, else the bridge, else none until marked)
//   7) start the ops server on cfg.Port
//   8) runLive until SIGINT/SIGTERM
//
// Flags:
//   -env <path>   dotenv file (default .env)
//
// Fatal at startup: invalid config, missing or malformed credential in live
// mode, unavailable market metadata.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
)

func main() {
	// ---- Flags ----
	var envPath string
	flag.StringVar(&envPath, "env", ".env", "Path to a dotenv file")
	flag.Parse()

	// ---- Environment & Config ----
	envLoaded, envErr := loadBotEnv(envPath)
	cfg := loadConfigFromEnv()

	logger, err := newLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Sugar()

	if envErr != nil {
		log.Fatalw("env_load_failed", "path", envPath, "err", envErr)
	}
	log.Infow("env", "path", envPath, "loaded", envLoaded)
	if err := cfg.Validate(); err != nil {
		log.Fatalw("config_invalid", "err", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// ---- Credential ----
	signer, err := loadCredential(cfg)
	if err != nil {
		log.Fatalw("credential_unavailable", "err", err)
	}
	// Validate requires TRADER_ACCOUNT in live mode; the paper exchange
	// accepts any account string.
	account := cfg.TraderAccount
	if account == "" {
		account = signer.Address().Hex()
	}

	// ---- Exchange & market wiring ----
	var bridge *BridgeExchange
	if cfg.BridgeURL != "" {
		bridge = NewBridgeExchange(cfg.BridgeURL, signer, account)
	}
	market, err := resolveMarket(ctx, cfg, bridge)
	if err != nil {
		log.Fatalw("market_unavailable", "err", err)
	}

	var (
		exchange Exchange
		feed     PriceFeed
	)
	if cfg.DryRun {
		var upstream PriceFeed
		switch {
		case cfg.ReplayCSV != "":
			candles, err := loadCandleCSV(cfg.ReplayCSV)
			if err != nil {
				log.Fatalw("replay_load_failed", "path", cfg.ReplayCSV, "err", err)
			}
			replay, err := NewReplayFeed(candles, cfg.BollingerPeriod)
			if err != nil {
				log.Fatalw("replay_load_failed", "path", cfg.ReplayCSV, "err", err)
			}
			log.Infow("replay", "path", cfg.ReplayCSV, "candles", len(candles))
			upstream = replay
		case bridge != nil:
			upstream = bridge
		}
		paper := NewPaperExchange(market, upstream)
		exchange, feed = paper, paper
	} else {
		exchange, feed = bridge, bridge
	}

	policy, err := cfg.NewQuotingPolicy()
	if err != nil {
		log.Fatalw("config_invalid", "err", err)
	}
	history := NewPriceHistory(cfg.HistoryCapacity)
	inventory := NewInventory(cfg.MaxInventory, cfg.MinInventory)
	orders := NewOrderManager(exchange, market, inventory, cfg.OrderLifetime, log.Named("orders"))
	monitor := NewTransactionMonitor(exchange, orders, account, cfg.SignatureLimit, log.Named("monitor"))
	watcher := NewCandleWatcher(feed, history, cfg.Symbol, cfg.Timeframe, cfg.FeedWSURL, cfg.PricePollInterval, log.Named("feed"))
	mm := NewMarketMaker(cfg, feed, history, policy, orders, log.Named("quote"))

	log.Infow("wired",
		"exchange", exchange.Name(), "account", account, "market", market.Address,
		"base", market.BaseTicker, "quote", market.QuoteTicker,
		"base_lot", market.BaseLotSize.String(), "quote_lot", market.QuoteLotSize.String())

	// ---- Ops server ----
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           newOpsRouter(orders, history),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Infow("ops_listen", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("ops_server_failed", "err", err)
		}
	}()

	// ---- Run ----
	runLive(ctx, cfg, mm, watcher, monitor, log)

	// ---- Graceful shutdown for HTTP server ----
	shutdownCtx, c := context.WithTimeout(context.Background(), 2*time.Second)
	defer c()
	_ = srv.Shutdown(shutdownCtx)
}

// loadCredential requires a key in live mode; a dry run without one gets a
// throwaway key.
func loadCredential(cfg Config) (*Signer, error) {
	if cfg.DryRun && cfg.TraderPrivateKey == "" {
		return GenerateSigner()
	}
	return LoadSigner(cfg.TraderPrivateKey)
}

// resolveMarket prefers MARKET_CONFIG, then the bridge, then (dry run only)
// the paper lot sizes from the environment.
func resolveMarket(ctx context.Context, cfg Config, bridge *BridgeExchange) (MarketParams, error) {
	if cfg.MarketConfig != "" {
		return LoadMarketConfig(cfg.MarketConfig)
	}
	if bridge != nil {
		mctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return bridge.FetchMarket(mctx)
	}
	if !cfg.DryRun {
		return MarketParams{}, fmt.Errorf("%w: no MARKET_CONFIG and no BRIDGE_URL", ErrMarketUnavailable)
	}
	return paperMarket(cfg)
}

func paperMarket(cfg Config) (MarketParams, error) {
	base, err := decimal.NewFromString(cfg.BaseLotSize)
	if err != nil {
		return MarketParams{}, fmt.Errorf("%w: BASE_LOT_SIZE: %v", ErrMarketUnavailable, err)
	}
	quote, err := decimal.NewFromString(cfg.QuoteLotSize)
	if err != nil {
		return MarketParams{}, fmt.Errorf("%w: QUOTE_LOT_SIZE: %v", ErrMarketUnavailable, err)
	}
	tick, err := decimal.NewFromString(cfg.TickSize)
	if err != nil {
		return MarketParams{}, fmt.Errorf("%w: TICK_SIZE: %v", ErrMarketUnavailable, err)
	}
	m := MarketParams{Address: "paper", BaseTicker: "BASE", QuoteTicker: "QUOTE", BaseLotSize: base, QuoteLotSize: quote, TickSize: tick}
	return m, m.Validate()
}

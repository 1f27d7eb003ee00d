// FILE: config.go
// Package main – Runtime configuration model and loader.
//
// This file defines the Config struct (all the knobs the market maker uses)
// and a helper to populate it from environment variables. The .env file is
// read by loadBotEnv() (see env.go), so you can tune behavior without exports.
//
// Typical flow (see main.go):
//   loadBotEnv(path)
//   cfg := loadConfigFromEnv()
//   cfg.Validate()
package main

import (
	"fmt"
	"strings"
	"time"
)

// Config holds all runtime knobs for quoting and operations.
type Config struct {
	// Market target
	Symbol    string // e.g., "SOL/USDC"
	Timeframe string // candle timeframe, e.g., "1m"

	// Venue access
	BridgeURL        string // chain sidecar, e.g., http://127.0.0.1:8787
	FeedWSURL        string // optional candle stream; polling when empty
	TraderPrivateKey string
	TraderAccount    string // venue account; dry run defaults to the key's address
	MarketConfig     string // path to market metadata JSON
	DryRun           bool
	ReplayCSV        string // dry run: replay closes from a candle CSV instead of a live price

	// Loop cadence
	RefreshInterval   time.Duration
	PricePollInterval time.Duration
	MonitorInterval   time.Duration
	SignatureLimit    int

	// Quoting
	Edge                float64
	EMAPeriod           int
	BollingerPeriod     int
	BollingerMultiplier float64
	HistoryCapacity     int
	SizingPolicy        string // fixed|balance
	MaxOrderSize        float64
	OrderLifetime       time.Duration
	CancelBeforeQuote   bool

	// Inventory
	MaxInventory float64
	MinInventory float64

	// Paper market defaults (used when no market metadata is available in dry run)
	BaseLotSize  string
	QuoteLotSize string
	TickSize     string

	// Ops
	Port     int
	LogFile  string
	LogLevel string
}

// loadConfigFromEnv reads the process env (after .env has been loaded).
func loadConfigFromEnv() Config {
	cfg := Config{
		Symbol:    getEnv("SYMBOL", "SOL/USDC"),
		Timeframe: getEnv("TIMEFRAME", "1m"),

		BridgeURL:        getEnv("BRIDGE_URL", ""),
		FeedWSURL:        getEnv("FEED_WS_URL", ""),
		TraderPrivateKey: getEnv("TRADER_PRIVATE_KEY", ""),
		TraderAccount:    getEnv("TRADER_ACCOUNT", ""),
		MarketConfig:     getEnv("MARKET_CONFIG", ""),
		DryRun:           getEnvBool("DRY_RUN", true),
		ReplayCSV:        getEnv("REPLAY_CSV", ""),

		RefreshInterval:   getEnvMillis("REFRESH_INTERVAL_MS", 10*time.Second),
		PricePollInterval: getEnvMillis("PRICE_POLL_INTERVAL_MS", 5*time.Second),
		MonitorInterval:   getEnvMillis("MONITOR_INTERVAL_MS", DefaultMonitorInterval),
		SignatureLimit:    getEnvInt("SIGNATURE_LIMIT", DefaultSignatureLimit),

		Edge:                getEnvFloat("EDGE", 0.01),
		EMAPeriod:           getEnvInt("EMA_PERIOD", 10),
		BollingerPeriod:     getEnvInt("BOLLINGER_PERIOD", 20),
		BollingerMultiplier: getEnvFloat("BOLLINGER_MULTIPLIER", 2),
		HistoryCapacity:     getEnvInt("HISTORY_CAPACITY", DefaultHistoryCapacity),
		SizingPolicy:        getEnv("SIZING_POLICY", "fixed"),
		MaxOrderSize:        getEnvFloat("MAX_ORDER_SIZE", 0),
		OrderLifetime:       time.Duration(getEnvInt("ORDER_LIFETIME_SEC", 60)) * time.Second,
		CancelBeforeQuote:   getEnvBool("CANCEL_BEFORE_QUOTE", true),

		MaxInventory: getEnvFloat("MAX_INVENTORY", DefaultMaxInventory),
		MinInventory: getEnvFloat("MIN_INVENTORY", DefaultMinInventory),

		BaseLotSize:  getEnv("BASE_LOT_SIZE", "0.001"),
		QuoteLotSize: getEnv("QUOTE_LOT_SIZE", "0.000001"),
		TickSize:     getEnv("TICK_SIZE", "0.001"),

		Port:     getEnvInt("PORT", 8080),
		LogFile:  getEnv("LOG_FILE", ""),
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}
	if cfg.MaxOrderSize <= 0 {
		cfg.MaxOrderSize = cfg.MaxInventory
	}
	return cfg
}

// Validate rejects values the loops cannot run with.
func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Symbol) == "" {
		problems = append(problems, "SYMBOL is empty")
	}
	if c.EMAPeriod <= 0 {
		problems = append(problems, fmt.Sprintf("EMA_PERIOD=%d", c.EMAPeriod))
	}
	if c.BollingerPeriod <= 0 {
		problems = append(problems, fmt.Sprintf("BOLLINGER_PERIOD=%d", c.BollingerPeriod))
	}
	if c.HistoryCapacity < c.BollingerPeriod {
		problems = append(problems, fmt.Sprintf("HISTORY_CAPACITY=%d below BOLLINGER_PERIOD=%d", c.HistoryCapacity, c.BollingerPeriod))
	}
	if c.RefreshInterval <= 0 || c.PricePollInterval <= 0 || c.MonitorInterval <= 0 {
		problems = append(problems, "loop intervals must be positive")
	}
	if c.SignatureLimit <= 0 {
		problems = append(problems, fmt.Sprintf("SIGNATURE_LIMIT=%d", c.SignatureLimit))
	}
	if c.OrderLifetime <= 0 {
		problems = append(problems, "ORDER_LIFETIME_SEC must be positive")
	}
	if c.Edge < 0 {
		problems = append(problems, fmt.Sprintf("EDGE=%v", c.Edge))
	}
	if c.MaxInventory <= 0 {
		problems = append(problems, fmt.Sprintf("MAX_INVENTORY=%v", c.MaxInventory))
	}
	if _, err := NewSizingPolicy(c.SizingPolicy); err != nil {
		problems = append(problems, err.Error())
	}
	if !c.DryRun && c.BridgeURL == "" {
		problems = append(problems, "BRIDGE_URL is required when DRY_RUN=false")
	}
	if !c.DryRun && strings.TrimSpace(c.TraderAccount) == "" {
		problems = append(problems, "TRADER_ACCOUNT is required when DRY_RUN=false")
	}
	if !c.DryRun && c.ReplayCSV != "" {
		problems = append(problems, "REPLAY_CSV only applies when DRY_RUN=true")
	}
	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// NewQuotingPolicy builds the policy described by the config.
func (c Config) NewQuotingPolicy() (*QuotingPolicy, error) {
	sizer, err := NewSizingPolicy(c.SizingPolicy)
	if err != nil {
		return nil, err
	}
	return &QuotingPolicy{
		Edge:            c.Edge,
		EMAPeriod:       c.EMAPeriod,
		BollingerPeriod: c.BollingerPeriod,
		Multiplier:      c.BollingerMultiplier,
		Sizer:           sizer,
		MaxSize:         c.MaxOrderSize,
	}, nil
}

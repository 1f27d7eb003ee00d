// FILE: market.go
// Package main – Market metadata and lot conversion.
//
// Fill events report cumulative base and quote lots. Conversions run in
// decimal so that "filled == requested" is decided on exact lot multiples
// instead of on float rounding noise.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
)

// MarketParams describes the single market the bot quotes.
type MarketParams struct {
	Address      string          `json:"address"`
	BaseTicker   string          `json:"base_ticker"`
	QuoteTicker  string          `json:"quote_ticker"`
	BaseLotSize  decimal.Decimal `json:"base_lot_size_units"`  // base units per base lot
	QuoteLotSize decimal.Decimal `json:"quote_lot_size_units"` // quote units per quote lot
	TickSize     decimal.Decimal `json:"tick_size"`
}

// Validate rejects metadata that would make conversions meaningless.
func (m MarketParams) Validate() error {
	if !m.BaseLotSize.IsPositive() || !m.QuoteLotSize.IsPositive() {
		return fmt.Errorf("%w: lot sizes must be positive (base=%s quote=%s)",
			ErrMarketUnavailable, m.BaseLotSize, m.QuoteLotSize)
	}
	if m.TickSize.IsNegative() {
		return fmt.Errorf("%w: negative tick size %s", ErrMarketUnavailable, m.TickSize)
	}
	return nil
}

// BaseLotsToSize converts base lots to base units.
func (m MarketParams) BaseLotsToSize(lots uint64) decimal.Decimal {
	return decimal.NewFromInt(int64(lots)).Mul(m.BaseLotSize)
}

// QuoteLotsToAmount converts quote lots to quote units.
func (m MarketParams) QuoteLotsToAmount(lots uint64) decimal.Decimal {
	return decimal.NewFromInt(int64(lots)).Mul(m.QuoteLotSize)
}

// SizeToBaseLots floors a base size to whole lots.
func (m MarketParams) SizeToBaseLots(size float64) uint64 {
	if size <= 0 {
		return 0
	}
	return uint64(decimal.NewFromFloat(size).Div(m.BaseLotSize).Floor().IntPart())
}

// QuoteLotsForAmount floors a quote amount to whole lots.
func (m MarketParams) QuoteLotsForAmount(amount float64) uint64 {
	if amount <= 0 {
		return 0
	}
	return uint64(decimal.NewFromFloat(amount).Div(m.QuoteLotSize).Floor().IntPart())
}

// ExecutionPrice is the average fill price: quote filled / base filled.
// ok is false when nothing has filled.
func (m MarketParams) ExecutionPrice(baseLots, quoteLots uint64) (price float64, ok bool) {
	base := m.BaseLotsToSize(baseLots)
	if !base.IsPositive() {
		return 0, false
	}
	return m.QuoteLotsToAmount(quoteLots).Div(base).InexactFloat64(), true
}

// IsFullFill reports whether filled covers the requested size once the
// request is floored to the lot grid the exchange actually accepted.
func (m MarketParams) IsFullFill(filled decimal.Decimal, requested float64) bool {
	want := decimal.NewFromInt(int64(m.SizeToBaseLots(requested))).Mul(m.BaseLotSize)
	return filled.GreaterThanOrEqual(want)
}

// RoundPrice snaps a price to the tick grid (no-op without a tick size).
func (m MarketParams) RoundPrice(p float64) float64 {
	if !m.TickSize.IsPositive() {
		return p
	}
	return decimal.NewFromFloat(p).Div(m.TickSize).Round(0).Mul(m.TickSize).InexactFloat64()
}

// LoadMarketConfig reads the market metadata file.
func LoadMarketConfig(path string) (MarketParams, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return MarketParams{}, fmt.Errorf("%w: %v", ErrMarketUnavailable, err)
	}
	var m MarketParams
	if err := json.Unmarshal(bs, &m); err != nil {
		return MarketParams{}, fmt.Errorf("%w: parse %s: %v", ErrMarketUnavailable, path, err)
	}
	if err := m.Validate(); err != nil {
		return MarketParams{}, err
	}
	return m, nil
}

// FILE: sizing.go
// Package main – Order sizing strategies.
//
//   fixed    size = 1 / volatility
//   balance  size = inventory * (1/sqrt(volatility)) / price
//
// The strategy is chosen once from SIZING_POLICY. Callers drop quotes whose
// size is not a positive finite number.
package main

import (
	"fmt"
	"math"
	"strings"
)

// SizingPolicy turns the cycle's signals into a base-asset order size.
type SizingPolicy interface {
	Name() string
	Size(price, volatility, inventory float64) float64
}

// FixedRiskSizer sizes inversely to volatility.
type FixedRiskSizer struct{}

func (FixedRiskSizer) Name() string { return "fixed" }

func (FixedRiskSizer) Size(_, volatility, _ float64) float64 {
	return 1 / volatility
}

// BalanceAwareSizer scales the current inventory by a volatility risk factor.
type BalanceAwareSizer struct{}

func (BalanceAwareSizer) Name() string { return "balance" }

func (BalanceAwareSizer) Size(price, volatility, inventory float64) float64 {
	if price <= 0 {
		return 0
	}
	riskFactor := 1 / math.Sqrt(volatility)
	return inventory * riskFactor / price
}

// NewSizingPolicy resolves a policy by name.
func NewSizingPolicy(name string) (SizingPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "fixed":
		return FixedRiskSizer{}, nil
	case "balance", "balance_aware":
		return BalanceAwareSizer{}, nil
	default:
		return nil, fmt.Errorf("unknown sizing policy %q", name)
	}
}

func usableSize(x float64) bool {
	return x > 0 && !math.IsInf(x, 0) && !math.IsNaN(x)
}

// FILE: strategy.go
// Package main – Quoting policy: bid/ask prices and size for one cycle.
//
// Inputs are the latest external price, the close history and the current
// inventory. The policy:
//   1) starts from bid = price-edge, ask = price+edge
//   2) adjusts each side against the Bollinger bands and the EMA
//   3) sizes the quote with the configured SizingPolicy
// Take-profit and rebalancing live on the OrderManager because they submit
// orders; the policy only hands them the current bands.
package main

import (
	"fmt"
	"math"
)

// Regime labels the band/EMA position of the reference price.
type Regime string

const (
	RegimeOverbought Regime = "overbought"
	RegimeOversold   Regime = "oversold"
	RegimeBullish    Regime = "bullish"
	RegimeBearish    Regime = "bearish"
	RegimeNeutral    Regime = "neutral"
)

// Signals are the indicator values of the current cycle.
type Signals struct {
	Price      float64
	EMA        float64
	Upper      float64
	Lower      float64
	SMA        float64
	Volatility float64
}

// Quote is the policy output for one cycle. Size is zero when no usable
// size could be derived; prices are still reported for logging.
type Quote struct {
	Bid     float64
	Ask     float64
	Size    float64
	Regime  Regime
	Signals Signals
	Reason  string
}

type QuotingPolicy struct {
	Edge            float64
	EMAPeriod       int
	BollingerPeriod int
	Multiplier      float64
	Sizer           SizingPolicy
	MaxSize         float64 // 0 disables the cap
}

// Signals computes EMA, bands and volatility over closes.
func (q *QuotingPolicy) Signals(price float64, closes []float64) (Signals, error) {
	if len(closes) == 0 {
		return Signals{}, fmt.Errorf("ema over empty history: %w", ErrInsufficientData)
	}
	bands, err := BollingerBands(closes, q.BollingerPeriod, q.Multiplier)
	if err != nil {
		return Signals{}, err
	}
	ema := EMA(closes, q.EMAPeriod)
	upper, lower, mid := bands.Last()
	return Signals{
		Price:      price,
		EMA:        ema[len(ema)-1],
		Upper:      upper,
		Lower:      lower,
		SMA:        mid,
		Volatility: Volatility(closes),
	}, nil
}

// Decide builds the cycle's quote.
func (q *QuotingPolicy) Decide(price float64, closes []float64, inventory float64) (Quote, error) {
	if !(price > 0) {
		return Quote{}, fmt.Errorf("price %v: %w", price, ErrPriceUnavailable)
	}
	s, err := q.Signals(price, closes)
	if err != nil {
		return Quote{}, err
	}
	bid := q.adjustPrice(price-q.Edge, s, true)
	ask := q.adjustPrice(price+q.Edge, s, false)

	size := 0.0
	if raw := q.Sizer.Size(price, s.Volatility, inventory); usableSize(raw) {
		size = raw
		if q.MaxSize > 0 {
			size = math.Min(size, q.MaxSize)
		}
	}
	regime := classify(price, s)
	return Quote{
		Bid:     bid,
		Ask:     ask,
		Size:    size,
		Regime:  regime,
		Signals: s,
		Reason: fmt.Sprintf("regime=%s ema=%.4f upper=%.4f lower=%.4f vol=%.6f sizer=%s",
			regime, s.EMA, s.Upper, s.Lower, s.Volatility, q.Sizer.Name()),
	}, nil
}

// adjustPrice shifts one side's base price. The bullish and bearish branches
// apply the same nudge: bid up and ask down by edge/2.
func (q *QuotingPolicy) adjustPrice(p float64, s Signals, isBid bool) float64 {
	switch {
	case p > s.Upper:
		if isBid {
			return p
		}
		return p - q.Edge
	case p < s.Lower:
		if isBid {
			return p + q.Edge
		}
		return p
	case p > s.EMA:
		if isBid {
			return p + q.Edge*0.5
		}
		return p - q.Edge*0.5
	case p < s.EMA:
		if isBid {
			return p + q.Edge*0.5
		}
		return p - q.Edge*0.5
	default:
		return p
	}
}

func classify(price float64, s Signals) Regime {
	switch {
	case price > s.Upper:
		return RegimeOverbought
	case price < s.Lower:
		return RegimeOversold
	case price > s.EMA:
		return RegimeBullish
	case price < s.EMA:
		return RegimeBearish
	default:
		return RegimeNeutral
	}
}

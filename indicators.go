// FILE: indicators.go
// Package main – Technical indicators for the quoting policy.
//
// Lightweight helpers over a slice of closing prices:
//   • EMA(p, n)                 – exponential moving average, seeded with p[0]
//   • SMA(p, n)                 – simple moving average of the last n prices
//   • StdDev(p, n)              – population std over an expanding-then-sliding window
//   • BollingerBands(p, n, k)   – SMA ± k·StdDev for every full window
//   • Volatility(p)             – std of the whole series (last StdDev value)
//
// Notes
//   - EMA and StdDev outputs are aligned to input length.
//   - BollingerBands is shorter than the input by n-1 elements.
//   - These are pure functions; callers own the history they pass in.
package main

import (
	"fmt"
	"math"
)

// EMA returns the exponential moving average with k = 2/(n+1).
// The first element equals p[0]. Returns nil for an empty input.
func EMA(p []float64, n int) []float64 {
	if len(p) == 0 {
		return nil
	}
	k := 2.0 / float64(n+1)
	out := make([]float64, len(p))
	out[0] = p[0]
	for i := 1; i < len(p); i++ {
		out[i] = p[i]*k + out[i-1]*(1-k)
	}
	return out
}

// SMA returns the mean of the last n prices.
func SMA(p []float64, n int) (float64, error) {
	if n <= 0 || len(p) < n {
		return 0, fmt.Errorf("sma(%d) over %d prices: %w", n, len(p), ErrInsufficientData)
	}
	var sum float64
	for _, x := range p[len(p)-n:] {
		sum += x
	}
	return sum / float64(n), nil
}

// StdDev returns, for every index i, the population standard deviation of
// the trailing min(n, i+1) prices.
func StdDev(p []float64, n int) []float64 {
	out := make([]float64, len(p))
	if n <= 0 {
		return out
	}
	for i := range p {
		lo := i - n + 1
		if lo < 0 {
			lo = 0
		}
		w := p[lo : i+1]
		var mean float64
		for _, x := range w {
			mean += x
		}
		mean /= float64(len(w))
		var ss float64
		for _, x := range w {
			d := x - mean
			ss += d * d
		}
		out[i] = math.Sqrt(ss / float64(len(w)))
	}
	return out
}

// Bands holds three aligned Bollinger series.
type Bands struct {
	Upper []float64
	Lower []float64
	SMA   []float64
}

// Last returns the most recent upper, lower and middle values.
func (b Bands) Last() (upper, lower, mid float64) {
	i := len(b.SMA) - 1
	return b.Upper[i], b.Lower[i], b.SMA[i]
}

// BollingerBands pairs the SMA of every full n-window with the StdDev of the
// same window. For i >= n-1 StdDev(p, n)[i] covers exactly p[i-n+1:i+1].
func BollingerBands(p []float64, n int, mult float64) (Bands, error) {
	if n <= 0 || len(p) < n {
		return Bands{}, fmt.Errorf("bollinger(%d) over %d prices: %w", n, len(p), ErrInsufficientData)
	}
	std := StdDev(p, n)
	size := len(p) - n + 1
	b := Bands{
		Upper: make([]float64, 0, size),
		Lower: make([]float64, 0, size),
		SMA:   make([]float64, 0, size),
	}
	for i := n - 1; i < len(p); i++ {
		sma, err := SMA(p[:i+1], n)
		if err != nil {
			return Bands{}, err
		}
		b.Upper = append(b.Upper, sma+std[i]*mult)
		b.Lower = append(b.Lower, sma-std[i]*mult)
		b.SMA = append(b.SMA, sma)
	}
	return b, nil
}

// Volatility is the population std of the whole series.
func Volatility(p []float64) float64 {
	if len(p) == 0 {
		return 0
	}
	std := StdDev(p, len(p))
	return std[len(std)-1]
}

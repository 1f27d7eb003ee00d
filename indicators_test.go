package main

import (
	"errors"
	"math"
	"testing"
)

const eps = 1e-9

func almostEqual(a, b float64) bool { return math.Abs(a-b) < eps }

func TestEMAKnownSequence(t *testing.T) {
	got := EMA([]float64{100, 101, 99, 102, 98}, 3)
	want := []float64{100, 100.5, 99.75, 100.875, 99.4375}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if !almostEqual(got[i], want[i]) {
			t.Errorf("ema[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestEMASeedAndLength(t *testing.T) {
	cases := []struct {
		name   string
		prices []float64
		period int
	}{
		{"single", []float64{42}, 10},
		{"short", []float64{3, 1, 4}, 10},
		{"long", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, 5},
		{"period one", []float64{5, 6, 7}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := EMA(tc.prices, tc.period)
			if len(got) != len(tc.prices) {
				t.Fatalf("len = %d, want %d", len(got), len(tc.prices))
			}
			if got[0] != tc.prices[0] {
				t.Errorf("ema[0] = %v, want %v", got[0], tc.prices[0])
			}
		})
	}
	if EMA(nil, 3) != nil {
		t.Error("expected nil for empty input")
	}
}

func TestStdDevExpandingThenSliding(t *testing.T) {
	got := StdDev([]float64{1, 2, 3, 4}, 2)
	want := []float64{0, 0.5, 0.5, 0.5}
	for i := range want {
		if !almostEqual(got[i], want[i]) {
			t.Errorf("std[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestBollingerBandsValues(t *testing.T) {
	b, err := BollingerBands([]float64{1, 2, 3}, 3, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b.SMA) != 1 {
		t.Fatalf("len = %d, want 1", len(b.SMA))
	}
	std := math.Sqrt(2.0 / 3.0)
	upper, lower, mid := b.Last()
	if !almostEqual(mid, 2) || !almostEqual(upper, 2+2*std) || !almostEqual(lower, 2-2*std) {
		t.Errorf("bands = (%v, %v, %v)", upper, lower, mid)
	}
}

func TestBollingerBandsBracketSMA(t *testing.T) {
	prices := []float64{10, 12, 11, 15, 14, 13, 18, 17, 16, 20, 19, 22, 21, 25}
	for _, mult := range []float64{0.5, 1, 2, 3} {
		for _, period := range []int{1, 3, 5, len(prices)} {
			b, err := BollingerBands(prices, period, mult)
			if err != nil {
				t.Fatalf("period %d: %v", period, err)
			}
			if len(b.SMA) != len(prices)-period+1 {
				t.Fatalf("period %d: len = %d", period, len(b.SMA))
			}
			for i := range b.SMA {
				if !(b.Lower[i] <= b.SMA[i] && b.SMA[i] <= b.Upper[i]) {
					t.Errorf("period %d mult %v index %d: %v <= %v <= %v violated",
						period, mult, i, b.Lower[i], b.SMA[i], b.Upper[i])
				}
			}
		}
	}
}

func TestBollingerBandsInsufficientData(t *testing.T) {
	_, err := BollingerBands([]float64{1, 2}, 3, 2)
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}
	if _, err := SMA([]float64{1}, 2); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("sma err = %v, want ErrInsufficientData", err)
	}
}

func TestVolatility(t *testing.T) {
	if v := Volatility([]float64{2, 4, 4, 4, 5, 5, 7, 9}); !almostEqual(v, 2) {
		t.Errorf("volatility = %v, want 2", v)
	}
	if v := Volatility(nil); v != 0 {
		t.Errorf("volatility(nil) = %v, want 0", v)
	}
}

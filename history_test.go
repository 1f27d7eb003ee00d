package main

import (
	"testing"
	"time"
)

func candleAt(i int, close float64) Candle {
	return Candle{Time: time.Unix(int64(i)*60, 0).UTC(), Close: close}
}

func TestPriceHistoryEvictsOldestFirst(t *testing.T) {
	h := NewPriceHistory(DefaultHistoryCapacity)
	for i := 0; i < 150; i++ {
		h.Push(candleAt(i, float64(i)))
	}
	closes := h.Closes()
	if len(closes) != 100 {
		t.Fatalf("len = %d, want 100", len(closes))
	}
	for i, c := range closes {
		if c != float64(50+i) {
			t.Fatalf("closes[%d] = %v, want %v", i, c, 50+i)
		}
	}
}

func TestPriceHistoryKeepsArrivalOrder(t *testing.T) {
	h := NewPriceHistory(3)
	h.Push(candleAt(5, 5))
	h.Push(candleAt(1, 1))
	h.Push(candleAt(3, 3))
	got := h.Closes()
	want := []float64{5, 1, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("closes = %v, want %v", got, want)
		}
	}
}

func TestPriceHistoryObserve(t *testing.T) {
	h := NewPriceHistory(0)
	if !h.Observe(candleAt(1, 10)) {
		t.Fatal("first candle dropped")
	}
	h.Observe(candleAt(1, 11)) // update of the open candle
	h.Observe(candleAt(2, 12))
	if h.Observe(candleAt(0, 9)) {
		t.Error("older candle accepted")
	}
	got := h.Closes()
	if len(got) != 2 || got[0] != 11 || got[1] != 12 {
		t.Fatalf("closes = %v, want [11 12]", got)
	}

	cs := h.Candles()
	cs[0].Close = 999
	if h.Closes()[0] != 11 {
		t.Error("Candles must return a copy")
	}
}

// FILE: history.go
// Package main – Bounded candle history shared by the feed and quoting loops.
//
// PriceHistory is a FIFO of at most capacity candles in arrival order.
// The feed loop writes, the quoting loop reads a copy of the closes.
package main

import "sync"

// DefaultHistoryCapacity bounds the candle cache.
const DefaultHistoryCapacity = 100

type PriceHistory struct {
	mu       sync.RWMutex
	capacity int
	candles  []Candle
}

func NewPriceHistory(capacity int) *PriceHistory {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &PriceHistory{capacity: capacity, candles: make([]Candle, 0, capacity)}
}

// Push appends c and evicts the oldest entries beyond capacity.
func (h *PriceHistory) Push(c Candle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pushLocked(c)
}

func (h *PriceHistory) pushLocked(c Candle) {
	h.candles = append(h.candles, c)
	if len(h.candles) > h.capacity {
		n := copy(h.candles, h.candles[len(h.candles)-h.capacity:])
		h.candles = h.candles[:n]
	}
}

// Observe merges a streamed candle: an update of the newest candle (same
// timestamp) replaces it, an older candle is dropped, anything else is
// pushed. Returns false when the candle was dropped.
func (h *PriceHistory) Observe(c Candle) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n := len(h.candles); n > 0 {
		last := h.candles[n-1].Time
		switch {
		case last.Equal(c.Time):
			h.candles[n-1] = c
			return true
		case c.Time.Before(last):
			return false
		}
	}
	h.pushLocked(c)
	return true
}

func (h *PriceHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.candles)
}

// Candles returns a copy in arrival order.
func (h *PriceHistory) Candles() []Candle {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Candle, len(h.candles))
	copy(out, h.candles)
	return out
}

// Closes returns the closing prices in arrival order.
func (h *PriceHistory) Closes() []float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]float64, len(h.candles))
	for i, c := range h.candles {
		out[i] = c.Close
	}
	return out
}

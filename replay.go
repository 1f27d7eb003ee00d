// FILE: replay.go
// Package main – Candle CSV loader and the replay price feed.
//
// What’s here:
//   • loadCandleCSV(path) -> []Candle : reads time,close (other columns ignored)
//   • ReplayFeed                       : PriceFeed that steps through the closes
//
// A dry run with REPLAY_CSV quotes the paper exchange against recorded prices
// instead of the bridge. Each FetchPrice returns the next close; FetchCandles
// only sees candles already replayed, so warmup and the quoting loop observe
// the same past the live loop would.
//
// Notes:
//   • Time column accepts RFC3339 or UNIX seconds.
//   • Unknown columns are ignored; headers are case-insensitive.
//   • tools/backfill_candles writes files in this format from the bridge.

package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// loadCandleCSV reads a candle CSV with a header row containing
// time|timestamp and close.
func loadCandleCSV(path string) ([]Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readCandleCSV(f)
}

func readCandleCSV(src io.Reader) ([]Candle, error) {
	r := csv.NewReader(src)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, errors.New("empty candle csv")
	}
	if err != nil {
		return nil, err
	}
	cols := map[string]int{}
	for j, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = j
	}
	timeCol, ok := firstCol(cols, "time", "timestamp", "start")
	if !ok {
		return nil, errors.New("candle csv: no time column")
	}
	closeCol, ok := firstCol(cols, "close")
	if !ok {
		return nil, errors.New("candle csv: no close column")
	}

	var out []Candle
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if timeCol >= len(rec) || closeCol >= len(rec) {
			continue
		}
		tt, err := parseTimeFlexible(strings.TrimSpace(rec[timeCol]))
		if err != nil {
			continue
		}
		c, err := strconv.ParseFloat(strings.TrimSpace(rec[closeCol]), 64)
		if err != nil || c <= 0 {
			continue
		}
		out = append(out, Candle{Time: tt, Close: c})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out, nil
}

// parseTimeFlexible supports RFC3339 or UNIX seconds.
func parseTimeFlexible(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts.UTC(), nil
	}
	if sec, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(sec, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("bad time: %s", s)
}

func firstCol(cols map[string]int, keys ...string) (int, bool) {
	for _, k := range keys {
		if j, ok := cols[k]; ok {
			return j, true
		}
	}
	return 0, false
}

// ReplayFeed serves recorded candles one close per FetchPrice.
type ReplayFeed struct {
	mu      sync.Mutex
	candles []Candle
	next    int // index of the close the next FetchPrice returns
}

// NewReplayFeed starts the replay after the first warm candles so the
// history can fill before the first price is served.
func NewReplayFeed(candles []Candle, warm int) (*ReplayFeed, error) {
	if len(candles) == 0 {
		return nil, errors.New("replay needs at least one candle")
	}
	if warm < 0 {
		warm = 0
	}
	if warm >= len(candles) {
		warm = len(candles) - 1
	}
	return &ReplayFeed{candles: candles, next: warm}, nil
}

func (rf *ReplayFeed) Name() string { return "replay" }

// FetchPrice returns the next recorded close. After the last one it fails
// with ErrPriceUnavailable.
func (rf *ReplayFeed) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	if rf.next >= len(rf.candles) {
		return 0, fmt.Errorf("replay %s exhausted after %d candles: %w", symbol, len(rf.candles), ErrPriceUnavailable)
	}
	px := rf.candles[rf.next].Close
	rf.next++
	return px, nil
}

// FetchCandles returns up to count candles that have already been replayed
// (or sit in the warm window).
func (rf *ReplayFeed) FetchCandles(ctx context.Context, symbol, timeframe string, count int) ([]Candle, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	end := rf.next
	if end == 0 {
		return nil, nil
	}
	start := 0
	if count > 0 && end > count {
		start = end - count
	}
	out := make([]Candle, end-start)
	copy(out, rf.candles[start:end])
	return out, nil
}

// Remaining reports how many closes are left to serve.
func (rf *ReplayFeed) Remaining() int {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	return len(rf.candles) - rf.next
}

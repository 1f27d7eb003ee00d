// FILE: feed.go
// Package main – Price-watch loop feeding the candle history.
//
// Two sources:
//   • FEED_WS_URL set: subscribe to an OHLCV websocket stream. Messages carry
//     rows of [ts_ms, open, high, low, close, volume], either bare or under
//     "data". Every row is merged into the history.
//   • otherwise: poll PriceFeed.FetchCandles every PRICE_POLL_INTERVAL_MS.
// Errors are logged and the loop continues; a dropped stream is redialed
// after the poll interval.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	feedReadTimeout  = 60 * time.Second
	feedPingInterval = 25 * time.Second
	feedWriteTimeout = 10 * time.Second
)

type CandleWatcher struct {
	feed      PriceFeed
	history   *PriceHistory
	symbol    string
	timeframe string
	wsURL     string
	interval  time.Duration
	log       *zap.SugaredLogger
	dialer    *websocket.Dialer
}

func NewCandleWatcher(feed PriceFeed, history *PriceHistory, symbol, timeframe, wsURL string, interval time.Duration, log *zap.SugaredLogger) *CandleWatcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &CandleWatcher{
		feed:      feed,
		history:   history,
		symbol:    symbol,
		timeframe: timeframe,
		wsURL:     wsURL,
		interval:  interval,
		log:       log,
		dialer:    &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// Warmup seeds the history with up to count recent candles.
func (w *CandleWatcher) Warmup(ctx context.Context, count int) (int, error) {
	candles, err := w.feed.FetchCandles(ctx, w.symbol, w.timeframe, count)
	if err != nil {
		return 0, fmt.Errorf("warmup candles: %w", err)
	}
	n := 0
	for _, c := range candles {
		if w.history.Observe(c) {
			n++
		}
	}
	return n, nil
}

// Poll fetches the latest candle once.
func (w *CandleWatcher) Poll(ctx context.Context) error {
	candles, err := w.feed.FetchCandles(ctx, w.symbol, w.timeframe, 1)
	if err != nil {
		return err
	}
	for _, c := range candles {
		w.history.Observe(c)
	}
	return nil
}

// Run watches until ctx is done.
func (w *CandleWatcher) Run(ctx context.Context) {
	if w.wsURL != "" {
		w.runStream(ctx)
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Infow("feed_shutdown")
			return
		case <-ticker.C:
			if err := w.Poll(ctx); err != nil {
				mtxCycleErrors.WithLabelValues("feed").Inc()
				w.log.Errorw("feed_poll_failed", "symbol", w.symbol, "err", err)
			}
		}
	}
}

func (w *CandleWatcher) runStream(ctx context.Context) {
	for {
		err := w.stream(ctx)
		if ctx.Err() != nil {
			w.log.Infow("feed_shutdown")
			return
		}
		mtxCycleErrors.WithLabelValues("feed").Inc()
		w.log.Errorw("feed_stream_dropped", "url", w.wsURL, "err", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(w.interval):
		}
	}
}

type streamSubscribe struct {
	Op        string `json:"op"`
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
}

// stream runs one websocket session and returns when it ends.
func (w *CandleWatcher) stream(ctx context.Context) error {
	conn, _, err := w.dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		ping := time.NewTicker(feedPingInterval)
		defer ping.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(feedWriteTimeout))
				conn.Close()
				return
			case <-done:
				return
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(feedWriteTimeout)); err != nil {
					return
				}
			}
		}
	}()

	_ = conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
	if err := conn.WriteJSON(streamSubscribe{Op: "subscribe", Symbol: w.symbol, Timeframe: w.timeframe}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(feedReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(feedReadTimeout))
	})
	w.log.Infow("feed_stream_connected", "url", w.wsURL, "symbol", w.symbol, "timeframe", w.timeframe)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(feedReadTimeout))
		candles, err := parseOHLCV(msg)
		if err != nil {
			w.log.Warnw("feed_message_invalid", "err", err)
			continue
		}
		for _, c := range candles {
			w.history.Observe(c)
		}
	}
}

// parseOHLCV decodes [[ts_ms,o,h,l,c,v],...] or {"data": [[...],...]}.
func parseOHLCV(msg []byte) ([]Candle, error) {
	var rows [][]float64
	if err := json.Unmarshal(msg, &rows); err != nil {
		var wrapped struct {
			Data [][]float64 `json:"data"`
		}
		if err2 := json.Unmarshal(msg, &wrapped); err2 != nil {
			return nil, fmt.Errorf("ohlcv: %w", err)
		}
		rows = wrapped.Data
	}
	out := make([]Candle, 0, len(rows))
	for _, r := range rows {
		if len(r) < 5 {
			return nil, errors.New("ohlcv row shorter than 5 fields")
		}
		out = append(out, Candle{Time: time.UnixMilli(int64(r[0])).UTC(), Close: r[4]})
	}
	return out, nil
}

// FILE: live.go
// Package main – Quoting cycle and the live loop runner.
//
// One MarketMaker cycle:
//   1) make sure the maker setup has run (no-op after the first success)
//   2) fetch the external price and decide the quote from the candle history
//   3) cancel the previous quotes (CANCEL_BEFORE_QUOTE)
//   4) submit the bid and the ask, one at a time
//   5) take profit above the upper band, rebalance below the lower band
// A failed step abandons the cycle; the loop logs it and waits for the next
// refresh. There is no retry inside a cycle and no backoff.
//
// runLive anchors the monitor at the account's newest signature, warms up
// the history, then starts the three loops (feed, monitor, quoting) and
// waits for all of them to stop after ctx is cancelled.

package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

type MarketMaker struct {
	cfg     Config
	feed    PriceFeed
	history *PriceHistory
	policy  *QuotingPolicy
	orders  *OrderManager
	log     *zap.SugaredLogger
}

func NewMarketMaker(cfg Config, feed PriceFeed, history *PriceHistory, policy *QuotingPolicy, orders *OrderManager, log *zap.SugaredLogger) *MarketMaker {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &MarketMaker{cfg: cfg, feed: feed, history: history, policy: policy, orders: orders, log: log}
}

// Cycle runs one quoting pass and returns the quote it acted on.
func (mm *MarketMaker) Cycle(ctx context.Context) (Quote, error) {
	if err := mm.orders.SetupMaker(ctx); err != nil {
		return Quote{}, err
	}

	price, err := mm.feed.FetchPrice(ctx, mm.cfg.Symbol)
	if err != nil {
		return Quote{}, fmt.Errorf("fetch price: %w", err)
	}
	q, err := mm.policy.Decide(price, mm.history.Closes(), mm.orders.Inventory())
	if err != nil {
		return Quote{}, err
	}

	if mm.cfg.CancelBeforeQuote {
		mm.orders.CancelAllOrders(ctx)
	}

	SetQuoteMetrics(q.Bid, q.Ask)
	if q.Size > 0 {
		for _, leg := range []struct {
			side  Side
			price float64
		}{{SideBid, q.Bid}, {SideAsk, q.Ask}} {
			if _, err := mm.orders.CreateAndSubmitOrder(ctx, OrderRequest{
				Kind: OrderLimit, Side: leg.side, Price: leg.price, Size: q.Size, Purpose: PurposeQuote,
			}); err != nil {
				return q, fmt.Errorf("quote %s: %w", leg.side, err)
			}
		}
	} else {
		mm.log.Warnw("quote_size_unusable", "price", price, "volatility", q.Signals.Volatility)
	}

	if _, err := mm.orders.TakeProfit(ctx, price, q.Signals.Upper); err != nil {
		return q, err
	}
	if _, err := mm.orders.AdjustInventory(ctx, price, q.Signals.Lower); err != nil {
		return q, err
	}

	mm.log.Infow("quote",
		"price", price, "bid", q.Bid, "ask", q.Ask, "size", q.Size,
		"regime", string(q.Regime), "inventory", mm.orders.Inventory(), "reason", q.Reason)
	return q, nil
}

// Run cycles every interval until ctx is done. The first cycle starts immediately.
func (mm *MarketMaker) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	for {
		if _, err := mm.Cycle(ctx); err != nil {
			switch {
			case errors.Is(err, ErrInsufficientData):
				mm.log.Infow("warming_up", "candles", mm.history.Len(), "need", mm.policy.BollingerPeriod)
			case ctx.Err() != nil:
			default:
				mtxCycleErrors.WithLabelValues("quote").Inc()
				mm.log.Errorw("quote_cycle_failed", "loop", "quote", "err", err)
			}
		}
		select {
		case <-ctx.Done():
			mm.log.Infow("quote_loop_shutdown")
			return
		case <-time.After(interval):
		}
	}
}

// runLive runs the feed, monitor and quoting loops until ctx is cancelled.
func runLive(ctx context.Context, cfg Config, mm *MarketMaker, watcher *CandleWatcher, monitor *TransactionMonitor, log *zap.SugaredLogger) {
	log.Infow("market_maker_start",
		"symbol", cfg.Symbol, "timeframe", cfg.Timeframe, "dry_run", cfg.DryRun,
		"edge", cfg.Edge, "sizing", cfg.SizingPolicy, "max_inventory", cfg.MaxInventory)

	if head, err := monitor.AnchorAtHead(ctx); err != nil {
		log.Warnw("monitor_anchor_failed", "err", err)
	} else {
		log.Infow("monitor_anchor", "signature", head)
	}

	if n, err := watcher.Warmup(ctx, cfg.HistoryCapacity); err != nil {
		log.Warnw("warmup_failed", "err", err)
	} else {
		log.Infow("warmup", "candles", n)
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		watcher.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		monitor.Run(ctx, cfg.MonitorInterval)
	}()
	go func() {
		defer wg.Done()
		mm.Run(ctx, cfg.RefreshInterval)
	}()
	wg.Wait()
	log.Infow("market_maker_stopped")
}

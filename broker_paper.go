// FILE: broker_paper.go
// Package main – In-memory paper exchange (no chain access).
//
// PaperExchange simulates the order side of the market for dry runs and
// tests. Resting orders fill in full when a marked price crosses them;
// every state change is recorded as a signature with decoded events, so the
// TransactionMonitor and the OrderManager run exactly as they do live.
//
// Prices come from an optional upstream PriceFeed (e.g. the bridge); each
// fetched price is also marked against the resting orders. Without an
// upstream feed, prices are set with Mark.
package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type paperOrder struct {
	tpl OrderTemplate
}

type PaperExchange struct {
	market   MarketParams
	upstream PriceFeed
	now      func() time.Time

	mu          sync.Mutex
	price       float64
	marks       []Candle
	resting     map[uint64]paperOrder
	sigs        []SignatureInfo // newest first
	txs         map[string]DecodedTransaction
	slot        uint64
	setupNeeded bool
}

func NewPaperExchange(market MarketParams, upstream PriceFeed) *PaperExchange {
	return &PaperExchange{
		market:      market,
		upstream:    upstream,
		now:         time.Now,
		resting:     make(map[uint64]paperOrder),
		txs:         make(map[string]DecodedTransaction),
		setupNeeded: true,
	}
}

func (p *PaperExchange) Name() string { return "paper" }

// ---- PriceFeed ----

func (p *PaperExchange) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	if p.upstream != nil {
		px, err := p.upstream.FetchPrice(ctx, symbol)
		if err != nil {
			return 0, err
		}
		p.Mark(px)
		return px, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.price <= 0 {
		return 0, fmt.Errorf("paper %s: %w", symbol, ErrPriceUnavailable)
	}
	return p.price, nil
}

func (p *PaperExchange) FetchCandles(ctx context.Context, symbol, timeframe string, count int) ([]Candle, error) {
	if p.upstream != nil {
		return p.upstream.FetchCandles(ctx, symbol, timeframe, count)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.marks) == 0 {
		return nil, errors.New("paper exchange has no candles yet")
	}
	start := 0
	if count > 0 && len(p.marks) > count {
		start = len(p.marks) - count
	}
	out := make([]Candle, len(p.marks)-start)
	copy(out, p.marks[start:])
	return out, nil
}

// Mark records a price and fills every resting order it crosses.
func (p *PaperExchange) Mark(price float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.price = price
	p.marks = append(p.marks, Candle{Time: p.now().UTC(), Close: price})

	var events []MarketEvent
	now := p.now()
	for id, o := range p.resting {
		switch {
		case !o.tpl.ExpiresAt.IsZero() && now.After(o.tpl.ExpiresAt):
			events = append(events, MarketEvent{Kind: EventExpire, ClientOrderID: id})
			delete(p.resting, id)
		case crosses(o.tpl, price):
			events = append(events, p.fillEvent(o.tpl))
			delete(p.resting, id)
		}
	}
	if len(events) > 0 {
		p.recordLocked(events)
	}
}

func crosses(tpl OrderTemplate, price float64) bool {
	if tpl.Kind == OrderMarket {
		return true
	}
	if tpl.Side == SideBid {
		return price <= tpl.Price
	}
	return price >= tpl.Price
}

func (p *PaperExchange) fillEvent(tpl OrderTemplate) MarketEvent {
	baseLots := p.market.SizeToBaseLots(tpl.Size)
	quote := p.market.BaseLotsToSize(baseLots).InexactFloat64() * tpl.Price
	quoteLots := p.market.QuoteLotsForAmount(quote)
	return MarketEvent{
		Kind:          EventFillSummary,
		ClientOrderID: tpl.ClientOrderID,
		Fill: FillEvent{
			ClientOrderID:   tpl.ClientOrderID,
			BaseLotsFilled:  baseLots,
			QuoteLotsFilled: quoteLots,
		},
	}
}

// ---- Exchange ----

func (p *PaperExchange) MakerSetup(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.setupNeeded {
		return 1, nil
	}
	return 0, nil
}

func (p *PaperExchange) SubmitSetup(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setupNeeded = false
	return p.recordLocked(nil), nil
}

// SubmitOrder rests the order, or fills it at once when it crosses the last mark.
func (p *PaperExchange) SubmitOrder(ctx context.Context, tpl OrderTemplate) (string, error) {
	if p.market.SizeToBaseLots(tpl.Size) == 0 {
		return "", fmt.Errorf("%w: size %v below one base lot", ErrSubmission, tpl.Size)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, dup := p.resting[tpl.ClientOrderID]; dup {
		return "", fmt.Errorf("%w: duplicate client order id %d", ErrSubmission, tpl.ClientOrderID)
	}
	events := []MarketEvent{{Kind: EventPlace, ClientOrderID: tpl.ClientOrderID}}
	if p.price > 0 && crosses(tpl, p.price) {
		events = append(events, p.fillEvent(tpl))
	} else {
		p.resting[tpl.ClientOrderID] = paperOrder{tpl: tpl}
	}
	return p.recordLocked(events), nil
}

func (p *PaperExchange) CancelAll(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	events := make([]MarketEvent, 0, len(p.resting))
	for id := range p.resting {
		events = append(events, MarketEvent{Kind: EventCancel, ClientOrderID: id})
		delete(p.resting, id)
	}
	return p.recordLocked(events), nil
}

// FetchRecentSignatures lists signatures newest-first, strictly older than before.
func (p *PaperExchange) FetchRecentSignatures(ctx context.Context, account, before string, limit int) ([]SignatureInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	start := 0
	if before != "" {
		start = -1
		for i, s := range p.sigs {
			if s.Signature == before {
				start = i + 1
				break
			}
		}
		if start < 0 {
			return nil, nil
		}
	}
	end := len(p.sigs)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	out := make([]SignatureInfo, end-start)
	copy(out, p.sigs[start:end])
	return out, nil
}

func (p *PaperExchange) DecodeEvents(ctx context.Context, signature string) (DecodedTransaction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	tx, ok := p.txs[signature]
	if !ok {
		return DecodedTransaction{}, fmt.Errorf("paper: unknown signature %s", signature)
	}
	return tx, nil
}

// RestingOrders reports how many orders are on the paper book.
func (p *PaperExchange) RestingOrders() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.resting)
}

func (p *PaperExchange) recordLocked(events []MarketEvent) string {
	p.slot++
	sig := "paper-" + uuid.NewString()
	p.sigs = append([]SignatureInfo{{Signature: sig, Slot: p.slot}}, p.sigs...)
	p.txs[sig] = DecodedTransaction{Signature: sig, Events: events}
	return sig
}

package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// fakeExchange records calls and serves a scripted signature log.
type fakeExchange struct {
	mu sync.Mutex

	submitErr  error
	cancelErr  error
	setupSteps int
	setupErr   error
	onSubmit   func(OrderTemplate)

	submitted    []OrderTemplate
	cancels      int
	setupLookups int
	setupSubmits int

	sigs      []SignatureInfo // newest first
	txs       map[string]DecodedTransaction
	decodeErr map[string]error
	fetches   []string // "before" values
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{txs: make(map[string]DecodedTransaction), decodeErr: make(map[string]error)}
}

func (f *fakeExchange) Name() string { return "fake" }

func (f *fakeExchange) MakerSetup(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setupLookups++
	return f.setupSteps, f.setupErr
}

func (f *fakeExchange) SubmitSetup(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setupSubmits++
	return "setup-tx", nil
}

func (f *fakeExchange) SubmitOrder(ctx context.Context, tpl OrderTemplate) (string, error) {
	f.mu.Lock()
	f.submitted = append(f.submitted, tpl)
	err, hook := f.submitErr, f.onSubmit
	f.mu.Unlock()
	if hook != nil {
		hook(tpl)
	}
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("tx-%d", tpl.ClientOrderID), nil
}

func (f *fakeExchange) CancelAll(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	if f.cancelErr != nil {
		return "", f.cancelErr
	}
	return "cancel-tx", nil
}

// push adds a transaction as the newest signature.
func (f *fakeExchange) push(sig string, events ...MarketEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sigs = append([]SignatureInfo{{Signature: sig, Slot: uint64(len(f.sigs) + 1)}}, f.sigs...)
	f.txs[sig] = DecodedTransaction{Signature: sig, Events: events}
}

func (f *fakeExchange) FetchRecentSignatures(ctx context.Context, account, before string, limit int) ([]SignatureInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches = append(f.fetches, before)
	start := 0
	if before != "" {
		start = -1
		for i, s := range f.sigs {
			if s.Signature == before {
				start = i + 1
			}
		}
		if start < 0 {
			return nil, nil
		}
	}
	end := len(f.sigs)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	return append([]SignatureInfo(nil), f.sigs[start:end]...), nil
}

func (f *fakeExchange) DecodeEvents(ctx context.Context, signature string) (DecodedTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.decodeErr[signature]; err != nil {
		return DecodedTransaction{}, err
	}
	return f.txs[signature], nil
}

func (f *fakeExchange) submittedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

// ---- helpers ----

func testMarket() MarketParams {
	return MarketParams{
		Address:      "test-market",
		BaseTicker:   "SOL",
		QuoteTicker:  "USDC",
		BaseLotSize:  decimal.RequireFromString("0.001"),
		QuoteLotSize: decimal.RequireFromString("0.000001"),
		TickSize:     decimal.RequireFromString("0.001"),
	}
}

// fillSummary builds a cumulative fill of size base units at avg price.
func fillSummary(m MarketParams, id OrderID, size, price float64) MarketEvent {
	base := m.SizeToBaseLots(size)
	quote := m.QuoteLotsForAmount(size * price)
	return MarketEvent{
		Kind:          EventFillSummary,
		ClientOrderID: uint64(id),
		Fill:          FillEvent{ClientOrderID: uint64(id), BaseLotsFilled: base, QuoteLotsFilled: quote},
	}
}

func fillTx(sig string, events ...MarketEvent) DecodedTransaction {
	return DecodedTransaction{Signature: sig, Events: events}
}

func observedLogger() (*zap.SugaredLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core).Sugar(), logs
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestManager(ex Exchange, maxInv float64) (*OrderManager, *observer.ObservedLogs) {
	log, logs := observedLogger()
	m := NewOrderManager(ex, testMarket(), NewInventory(maxInv, 1), time.Minute, log)
	m.now = func() time.Time { return fixedNow }
	return m, logs
}

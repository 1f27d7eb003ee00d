// FILE: monitor.go
// Package main – Signature poller feeding decoded fills to the OrderManager.
//
// The exchange lists signatures newest-first and pages backward with a
// "before" cursor. The monitor walks backward from the newest signature,
// moving the cursor to the oldest signature of each batch, until the walk
// runs dry or reaches the newest signature of the previous walk. The next
// walk then starts again from the top. A signature is delivered at most once.
//
// AnchorAtHead, called once before the loops start, makes the newest
// existing signature the end of the first walk: older transactions can only
// carry ids the fresh ledger does not know. A signature that fails to decode
// maxAttempts times in a row is logged, counted and stepped over.
package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultSignatureLimit  = 10
	DefaultMonitorInterval = 3 * time.Second
	DefaultDecodeAttempts  = 5
)

// FillSink receives decoded transactions. *OrderManager implements it.
type FillSink interface {
	ProcessDecodedTransaction(tx DecodedTransaction) int
}

type TransactionMonitor struct {
	exchange Exchange
	sink     FillSink
	account  string
	limit    int
	log      *zap.SugaredLogger

	cursor   string // "before" of the current walk; empty starts at the newest signature
	walkHead string // newest signature seen by the current walk
	boundary string // newest signature of the previous walk

	maxAttempts int
	failures    map[string]int // consecutive decode failures per signature
}

func NewTransactionMonitor(ex Exchange, sink FillSink, account string, limit int, log *zap.SugaredLogger) *TransactionMonitor {
	if limit <= 0 {
		limit = DefaultSignatureLimit
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &TransactionMonitor{
		exchange:    ex,
		sink:        sink,
		account:     account,
		limit:       limit,
		log:         log,
		maxAttempts: DefaultDecodeAttempts,
		failures:    make(map[string]int),
	}
}

// AnchorAtHead ends the first walk at the newest signature that exists now.
// An account without history leaves the boundary empty.
func (tm *TransactionMonitor) AnchorAtHead(ctx context.Context) (string, error) {
	sigs, err := tm.exchange.FetchRecentSignatures(ctx, tm.account, "", 1)
	if err != nil {
		return "", fmt.Errorf("anchor signatures: %w", err)
	}
	tm.cursor, tm.walkHead = "", ""
	if len(sigs) > 0 {
		tm.boundary = sigs[0].Signature
	}
	return tm.boundary, nil
}

// Cursor returns the current backward cursor.
func (tm *TransactionMonitor) Cursor() string { return tm.cursor }

// Poll fetches one batch, forwards the new signatures and advances the cursor.
// A decode failure stops the batch so the failed signature is retried on the
// next poll without re-delivering the ones before it; after maxAttempts
// failures the signature is skipped.
func (tm *TransactionMonitor) Poll(ctx context.Context) (int, error) {
	sigs, err := tm.exchange.FetchRecentSignatures(ctx, tm.account, tm.cursor, tm.limit)
	if err != nil {
		return 0, fmt.Errorf("fetch signatures before=%q: %w", tm.cursor, err)
	}
	if len(sigs) == 0 {
		tm.endWalk()
		return 0, nil
	}
	if tm.cursor == "" {
		tm.walkHead = sigs[0].Signature
	}

	fresh := sigs
	reached := false
	if tm.boundary != "" {
		for i, s := range sigs {
			if s.Signature == tm.boundary {
				fresh, reached = sigs[:i], true
				break
			}
		}
	}

	delivered := 0
	for _, s := range fresh {
		tx, err := tm.exchange.DecodeEvents(ctx, s.Signature)
		if err != nil {
			tm.failures[s.Signature]++
			if n := tm.failures[s.Signature]; n < tm.maxAttempts {
				return delivered, fmt.Errorf("decode %s (attempt %d/%d): %w", s.Signature, n, tm.maxAttempts, err)
			}
			delete(tm.failures, s.Signature)
			tm.cursor = s.Signature
			mtxSignaturesSkipped.Inc()
			tm.log.Errorw("signature_skipped", "signature", s.Signature, "slot", s.Slot, "attempts", tm.maxAttempts, "err", err)
			continue
		}
		delete(tm.failures, s.Signature)
		if tx.Signature == "" {
			tx.Signature = s.Signature
		}
		changed := tm.sink.ProcessDecodedTransaction(tx)
		tm.cursor = s.Signature
		delivered++
		mtxSignatures.Inc()
		if changed > 0 {
			tm.log.Debugw("signature_applied", "signature", s.Signature, "slot", s.Slot, "orders", changed)
		}
	}

	if reached {
		tm.endWalk()
	}
	return delivered, nil
}

func (tm *TransactionMonitor) endWalk() {
	if tm.walkHead != "" {
		tm.boundary = tm.walkHead
	}
	tm.cursor = ""
	tm.walkHead = ""
}

// Run polls every interval until ctx is done. Errors are logged and the
// loop proceeds to the next tick.
func (tm *TransactionMonitor) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			tm.log.Infow("monitor_shutdown")
			return
		case <-ticker.C:
			if _, err := tm.Poll(ctx); err != nil {
				mtxCycleErrors.WithLabelValues("monitor").Inc()
				tm.log.Errorw("monitor_poll_failed", "err", err)
			}
		}
	}
}

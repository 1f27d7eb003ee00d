// FILE: order_manager.go
// Package main – Order issuance, cancellation and fill reconciliation.
//
// The OrderManager is the only component that mutates the Ledger and the
// Inventory, and the only one that submits to the Exchange.
//
// Concurrency design:
//   - mu guards ledger, inventory, applied fills and the setup flag.
//   - mu is RELEASED around every exchange call, so the monitor loop can
//     reconcile fills while a submission is in flight. Status transitions
//     are monotonic, so a fill that lands before "Submitted" is not undone.
//
// Reconciliation:
//   - Fill summaries are cumulative. Only the increment over the amount
//     already applied moves the inventory; replays and stale events are no-ops.
package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultOrderLifetime bounds how long a quote rests on the book.
const DefaultOrderLifetime = 60 * time.Second

type OrderManager struct {
	exchange Exchange
	market   MarketParams
	log      *zap.SugaredLogger
	lifetime time.Duration
	now      func() time.Time

	mu        sync.Mutex
	ledger    *Ledger
	inventory *Inventory
	applied   map[OrderID]decimal.Decimal // cumulative base size already applied to inventory
	setupDone bool
}

func NewOrderManager(ex Exchange, market MarketParams, inv *Inventory, lifetime time.Duration, log *zap.SugaredLogger) *OrderManager {
	if lifetime <= 0 {
		lifetime = DefaultOrderLifetime
	}
	if inv == nil {
		inv = NewInventory(DefaultMaxInventory, DefaultMinInventory)
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &OrderManager{
		exchange:  ex,
		market:    market,
		log:       log,
		lifetime:  lifetime,
		now:       time.Now,
		ledger:    NewLedger(),
		inventory: inv,
		applied:   make(map[OrderID]decimal.Decimal),
	}
}

// ---- Setup ----

// SetupMaker runs the exchange's one-time maker setup. Later calls are no-ops.
func (m *OrderManager) SetupMaker(ctx context.Context) error {
	m.mu.Lock()
	done := m.setupDone
	m.mu.Unlock()
	if done {
		return nil
	}

	steps, err := m.exchange.MakerSetup(ctx)
	if err != nil {
		return fmt.Errorf("maker setup lookup: %w", err)
	}
	if steps == 0 {
		m.log.Infow("maker_already_setup", "exchange", m.exchange.Name())
	} else {
		txID, err := m.exchange.SubmitSetup(ctx)
		if err != nil {
			return fmt.Errorf("maker setup (%d steps): %w", steps, err)
		}
		m.log.Infow("maker_setup_submitted", "steps", steps, "tx_id", txID)
	}

	m.mu.Lock()
	m.setupDone = true
	m.mu.Unlock()
	return nil
}

// ---- Submission ----

func validateOrder(req OrderRequest) error {
	switch {
	case !req.Side.Valid():
		return fmt.Errorf("%w: unknown side %d", ErrInvalidOrder, int(req.Side))
	case !req.Kind.Valid():
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidOrder, int(req.Kind))
	case !usableSize(req.Size):
		return fmt.Errorf("%w: size %v", ErrInvalidOrder, req.Size)
	case !(req.Price > 0) || math.IsInf(req.Price, 0):
		return fmt.Errorf("%w: price %v", ErrInvalidOrder, req.Price)
	}
	return nil
}

// CreateAndSubmitOrder validates, records and submits one order. A failed
// submission leaves the order in the ledger as Created; nothing is retried.
func (m *OrderManager) CreateAndSubmitOrder(ctx context.Context, req OrderRequest) (Order, error) {
	return m.submit(ctx, req, nil)
}

// submit runs onCreate under the lock right after the ledger insert, before any I/O.
func (m *OrderManager) submit(ctx context.Context, req OrderRequest, onCreate func(*Order)) (Order, error) {
	if err := validateOrder(req); err != nil {
		mtxOrders.WithLabelValues(req.Side.String(), req.Kind.String(), "rejected").Inc()
		return Order{}, err
	}

	m.mu.Lock()
	o := m.ledger.Create(req)
	if onCreate != nil {
		onCreate(o)
	}
	tpl := OrderTemplate{
		ClientOrderID: uint64(o.ID),
		Side:          o.Side,
		Kind:          o.Kind,
		Price:         m.market.RoundPrice(o.Price),
		Size:          o.Size,
		ExpiresAt:     m.now().Add(m.lifetime),
		SelfTrade:     "abort",
	}
	m.mu.Unlock()

	txID, err := m.exchange.SubmitOrder(ctx, tpl)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		if !errors.Is(err, ErrSubmission) {
			err = fmt.Errorf("%w: %v", ErrSubmission, err)
		}
		mtxOrders.WithLabelValues(o.Side.String(), o.Kind.String(), "failed").Inc()
		return copyOrder(o), fmt.Errorf("order %d: %w", o.ID, err)
	}
	o.TxID = txID
	if err := m.ledger.Transition(o.ID, StatusSubmitted); err != nil {
		m.log.Debugw("order_submitted_after_fill", "order_id", o.ID, "status", o.Status.String())
	}
	mtxOrders.WithLabelValues(o.Side.String(), o.Kind.String(), "submitted").Inc()
	m.log.Infow("order_submitted",
		"order_id", o.ID, "side", o.Side.String(), "price", tpl.Price, "size", o.Size,
		"purpose", string(o.Purpose), "tx_id", txID)
	return copyOrder(o), nil
}

// ---- Cancellation ----

// CancelAllOrders issues one cancel-all. On success every non-terminal order
// becomes Cancelled; on failure the ledger is untouched and the error is
// only logged. Returns the number of orders marked Cancelled.
func (m *OrderManager) CancelAllOrders(ctx context.Context) int {
	txID, err := m.exchange.CancelAll(ctx)
	if err != nil {
		mtxCancelAll.WithLabelValues("failed").Inc()
		m.log.Errorw("cancel_all_failed", "err", err)
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.ledger.CancelOpen()
	if id := m.inventory.PendingTakeProfit(); id != 0 {
		if o := m.ledger.Get(id); o != nil && o.Status == StatusCancelled {
			m.inventory.ClearTakeProfit()
			mtxTakeProfit.WithLabelValues("cancelled").Inc()
		}
	}
	mtxCancelAll.WithLabelValues("ok").Inc()
	m.log.Infow("cancel_all", "cancelled", n, "tx_id", txID)
	return n
}

// ---- Take-profit / rebalance ----

// TakeProfit sells min(inv/2, max-inv) at price when price is above the upper
// band. The inventory is zeroed only when that order reconciles as Filled.
func (m *OrderManager) TakeProfit(ctx context.Context, price, upper float64) (bool, error) {
	if !(price > upper) {
		return false, nil
	}
	m.mu.Lock()
	size := m.inventory.SellSize()
	pos := m.inventory.Position()
	m.mu.Unlock()
	if !usableSize(size) {
		m.log.Debugw("take_profit_skipped", "inventory", pos, "size", size)
		return false, nil
	}

	var id OrderID
	o, err := m.submit(ctx, OrderRequest{
		Kind: OrderLimit, Side: SideAsk, Price: price, Size: size, Purpose: PurposeTakeProfit,
	}, func(o *Order) {
		id = o.ID
		m.inventory.MarkTakeProfit(o.ID)
	})
	if err != nil {
		m.mu.Lock()
		if id != 0 && m.inventory.PendingTakeProfit() == id {
			m.inventory.ClearTakeProfit()
		}
		m.mu.Unlock()
		return false, fmt.Errorf("take profit: %w", err)
	}
	mtxTakeProfit.WithLabelValues("submitted").Inc()
	m.log.Infow("take_profit", "order_id", o.ID, "size", size, "price", price, "upper", upper)
	return true, nil
}

// AdjustInventory buys min((max-inv)/2, max-inv) at price when price is below
// the lower band.
func (m *OrderManager) AdjustInventory(ctx context.Context, price, lower float64) (bool, error) {
	if !(price < lower) {
		return false, nil
	}
	m.mu.Lock()
	size := m.inventory.BuySize()
	pos := m.inventory.Position()
	m.mu.Unlock()
	if !usableSize(size) {
		m.log.Debugw("rebalance_skipped", "inventory", pos, "size", size)
		return false, nil
	}
	o, err := m.CreateAndSubmitOrder(ctx, OrderRequest{
		Kind: OrderLimit, Side: SideBid, Price: price, Size: size, Purpose: PurposeRebalance,
	})
	if err != nil {
		return false, fmt.Errorf("rebalance: %w", err)
	}
	m.log.Infow("rebalance", "order_id", o.ID, "size", size, "price", price, "lower", lower)
	return true, nil
}

// ---- Reconciliation ----

// ProcessDecodedTransaction applies every relevant event of tx and returns
// how many known orders changed. Events for unknown ids are ignored.
func (m *OrderManager) ProcessDecodedTransaction(tx DecodedTransaction) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	changed := 0
	for _, ev := range tx.Events {
		if ev.Foreign {
			m.log.Debugw("event_foreign_order", "kind", string(ev.Kind), "signature", tx.Signature)
			continue
		}
		switch ev.Kind {
		case EventFillSummary:
			id := OrderID(ev.Fill.ClientOrderID)
			o := m.ledger.Get(id)
			if o == nil {
				m.log.Debugw("fill_unknown_order", "client_order_id", ev.Fill.ClientOrderID, "signature", tx.Signature)
				continue
			}
			if m.reconcileFillLocked(o, ev.Fill) {
				changed++
			}
		case EventExpire:
			o := m.ledger.Get(OrderID(ev.ClientOrderID))
			if o == nil || o.Status.Terminal() {
				continue
			}
			_ = m.ledger.Transition(o.ID, StatusExpired)
			if m.inventory.PendingTakeProfit() == o.ID {
				m.inventory.ClearTakeProfit()
				mtxTakeProfit.WithLabelValues("expired").Inc()
			}
			m.log.Infow("order_expired", "order_id", o.ID, "signature", tx.Signature)
			changed++
		}
	}
	return changed
}

func (m *OrderManager) reconcileFillLocked(o *Order, f FillEvent) bool {
	filled := m.market.BaseLotsToSize(f.BaseLotsFilled)
	prev := m.applied[o.ID]
	if !filled.GreaterThan(prev) {
		m.log.Debugw("fill_already_applied", "order_id", o.ID, "filled", filled.String(), "applied", prev.String())
		return false
	}
	delta := filled.Sub(prev).InexactFloat64()
	m.applied[o.ID] = filled

	status := StatusPartiallyFilled
	if m.market.IsFullFill(filled, o.Size) {
		status = StatusFilled
	}
	size := filled.InexactFloat64()
	o.SizeFilled = &size
	if px, ok := m.market.ExecutionPrice(f.BaseLotsFilled, f.QuoteLotsFilled); ok {
		o.ExecutionPrice = &px
	}
	if !o.Status.Terminal() {
		if err := m.ledger.Transition(o.ID, status); err != nil {
			m.log.Warnw("fill_transition_rejected", "order_id", o.ID, "err", err)
		}
	}

	m.inventory.Apply(o.Side, delta)
	mtxFills.WithLabelValues(o.Side.String(), status.String()).Inc()
	if status == StatusFilled && m.inventory.SettleTakeProfit(o.ID) {
		mtxTakeProfit.WithLabelValues("settled").Inc()
		m.log.Infow("take_profit_settled", "order_id", o.ID)
	}
	mtxInventory.Set(m.inventory.Position())

	m.log.Infow("order_fill",
		"order_id", o.ID, "side", o.Side.String(), "status", o.Status.String(),
		"filled", size, "delta", delta, "inventory", m.inventory.Position())
	return true
}

// ---- Reads ----

func (m *OrderManager) Inventory() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inventory.Position()
}

// InventoryState returns position, thresholds and the outstanding take-profit id.
func (m *OrderManager) InventoryState() (pos, maxThreshold, minThreshold float64, pendingTP OrderID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inventory.Position(), m.inventory.MaxThreshold(), m.inventory.MinThreshold(), m.inventory.PendingTakeProfit()
}

func (m *OrderManager) Order(id OrderID) (Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.ledger.Get(id)
	if o == nil {
		return Order{}, false
	}
	return copyOrder(o), true
}

func (m *OrderManager) Orders() []Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger.Snapshot()
}

func copyOrder(o *Order) Order {
	c := *o
	if o.SizeFilled != nil {
		v := *o.SizeFilled
		c.SizeFilled = &v
	}
	if o.ExecutionPrice != nil {
		v := *o.ExecutionPrice
		c.ExecutionPrice = &v
	}
	return c
}

// FILE: ledger.go
// Package main – In-memory registry of locally known orders.
//
// The Ledger owns its id generator: every id it holds was produced by
// Create, so ids from other processes or exchanges are never inserted.
// It is not safe for concurrent use; the OrderManager serializes access.
package main

import (
	"fmt"
	"sort"
)

type Ledger struct {
	lastID OrderID
	orders map[OrderID]*Order
}

func NewLedger() *Ledger {
	return &Ledger{orders: make(map[OrderID]*Order)}
}

// Create assigns the next id and inserts the order with status Created.
func (l *Ledger) Create(req OrderRequest) *Order {
	l.lastID++
	o := &Order{
		ID:      l.lastID,
		Kind:    req.Kind,
		Side:    req.Side,
		Price:   req.Price,
		Size:    req.Size,
		Status:  StatusCreated,
		Purpose: req.Purpose,
	}
	l.orders[o.ID] = o
	return o
}

// Get returns the order or nil.
func (l *Ledger) Get(id OrderID) *Order { return l.orders[id] }

// Transition moves an order to a new status when the lifecycle allows it.
func (l *Ledger) Transition(id OrderID, to OrderStatus) error {
	o := l.orders[id]
	if o == nil {
		return fmt.Errorf("order %d not found", id)
	}
	if o.Status == to && to != StatusPartiallyFilled {
		return nil
	}
	if !CanTransition(o.Status, to) {
		return fmt.Errorf("order %d: %s -> %s not allowed", id, o.Status, to)
	}
	o.Status = to
	return nil
}

// CancelOpen marks every non-terminal order Cancelled and returns how many changed.
func (l *Ledger) CancelOpen() int {
	n := 0
	for _, o := range l.orders {
		if !o.Status.Terminal() {
			o.Status = StatusCancelled
			n++
		}
	}
	return n
}

func (l *Ledger) Len() int { return len(l.orders) }

// Snapshot returns copies of all orders sorted by id.
func (l *Ledger) Snapshot() []Order {
	out := make([]Order, 0, len(l.orders))
	for _, o := range l.orders {
		out = append(out, copyOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CountByStatus tallies orders per status.
func (l *Ledger) CountByStatus() map[OrderStatus]int {
	out := make(map[OrderStatus]int)
	for _, o := range l.orders {
		out[o.Status]++
	}
	return out
}

// FILE: inventory.go
// Package main – Net base-asset position derived from reconciled fills.
//
// Bid fills add, ask fills subtract. The position starts at zero every run;
// nothing is persisted. Take-profit is optimistic-then-reconciled: the
// take-profit order id is remembered and the position is zeroed only when
// that order reconciles as Filled.
// Not safe for concurrent use; the OrderManager serializes access.
package main

import "math"

const (
	DefaultMaxInventory = 10.0
	DefaultMinInventory = 1.0
)

type Inventory struct {
	position     float64
	maxThreshold float64
	minThreshold float64

	pendingTakeProfit OrderID // 0 when no take-profit is outstanding
}

func NewInventory(maxThreshold, minThreshold float64) *Inventory {
	if maxThreshold <= 0 {
		maxThreshold = DefaultMaxInventory
	}
	return &Inventory{maxThreshold: maxThreshold, minThreshold: minThreshold}
}

func (inv *Inventory) Position() float64     { return inv.position }
func (inv *Inventory) MaxThreshold() float64 { return inv.maxThreshold }
func (inv *Inventory) MinThreshold() float64 { return inv.minThreshold }

// Apply adds a signed fill increment for side.
func (inv *Inventory) Apply(side Side, size float64) {
	inv.position += side.Sign() * size
}

// SellSize is the take-profit size: min(inv/2, max-inv).
func (inv *Inventory) SellSize() float64 {
	return math.Min(inv.position/2, inv.maxThreshold-inv.position)
}

// BuySize is the rebalance size: min((max-inv)/2, max-inv).
func (inv *Inventory) BuySize() float64 {
	room := inv.maxThreshold - inv.position
	return math.Min(room/2, room)
}

// MarkTakeProfit records id as the outstanding take-profit, replacing any earlier one.
func (inv *Inventory) MarkTakeProfit(id OrderID) { inv.pendingTakeProfit = id }

func (inv *Inventory) PendingTakeProfit() OrderID { return inv.pendingTakeProfit }

// ClearTakeProfit drops the intent without touching the position.
func (inv *Inventory) ClearTakeProfit() { inv.pendingTakeProfit = 0 }

// SettleTakeProfit zeroes the position when id is the outstanding take-profit.
func (inv *Inventory) SettleTakeProfit(id OrderID) bool {
	if id == 0 || id != inv.pendingTakeProfit {
		return false
	}
	inv.position = 0
	inv.pendingTakeProfit = 0
	return true
}

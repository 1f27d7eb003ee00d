// FILE: order.go
// Package main – Locally tracked orders and their lifecycle.
//
// Status flow:
//   Created → Submitted → PartiallyFilled ⇄ … → Filled
//   any non-terminal → Cancelled | Expired
// Filled, Cancelled and Expired are terminal. Transitions never move back.
package main

import "fmt"

// OrderID is generated by the Ledger and doubles as the exchange client order id.
type OrderID uint64

// Side is the book side of an order.
type Side int

const (
	SideBid Side = iota
	SideAsk
)

func (s Side) String() string {
	switch s {
	case SideBid:
		return "bid"
	case SideAsk:
		return "ask"
	default:
		return fmt.Sprintf("side(%d)", int(s))
	}
}

func (s Side) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Valid reports whether s is a known side.
func (s Side) Valid() bool { return s == SideBid || s == SideAsk }

// Sign is +1 for bids and -1 for asks.
func (s Side) Sign() float64 {
	if s == SideAsk {
		return -1
	}
	return 1
}

type OrderKind int

const (
	OrderLimit OrderKind = iota
	OrderMarket
)

func (k OrderKind) String() string {
	switch k {
	case OrderLimit:
		return "limit"
	case OrderMarket:
		return "market"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k OrderKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k OrderKind) Valid() bool { return k == OrderLimit || k == OrderMarket }

type OrderStatus int

const (
	StatusCreated OrderStatus = iota
	StatusSubmitted
	StatusFilled
	StatusPartiallyFilled
	StatusCancelled
	StatusExpired
)

func (s OrderStatus) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusSubmitted:
		return "submitted"
	case StatusFilled:
		return "filled"
	case StatusPartiallyFilled:
		return "partially_filled"
	case StatusCancelled:
		return "cancelled"
	case StatusExpired:
		return "expired"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

func (s OrderStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Terminal reports whether no further transition is allowed.
func (s OrderStatus) Terminal() bool {
	return s == StatusFilled || s == StatusCancelled || s == StatusExpired
}

// stage orders statuses along the lifecycle; terminal states share the last stage.
func (s OrderStatus) stage() int {
	switch s {
	case StatusCreated:
		return 0
	case StatusSubmitted:
		return 1
	case StatusPartiallyFilled:
		return 2
	default:
		return 3
	}
}

// CanTransition reports whether from → to respects monotonic progress.
// PartiallyFilled → PartiallyFilled is allowed so later fills can be recorded.
func CanTransition(from, to OrderStatus) bool {
	if from.Terminal() {
		return false
	}
	if to == StatusSubmitted {
		return from == StatusCreated
	}
	return to.stage() >= from.stage()
}

// Purpose tags why an order was placed.
type Purpose string

const (
	PurposeQuote      Purpose = "quote"
	PurposeTakeProfit Purpose = "take_profit"
	PurposeRebalance  Purpose = "rebalance"
)

// OrderRequest is what callers provide; id and status are assigned by the Ledger.
type OrderRequest struct {
	Kind    OrderKind
	Side    Side
	Price   float64
	Size    float64
	Purpose Purpose
}

// Order is one locally tracked quote/trade intent.
type Order struct {
	ID      OrderID     `json:"id"`
	Kind    OrderKind   `json:"kind"`
	Side    Side        `json:"side"`
	Price   float64     `json:"price"`
	Size    float64     `json:"size"`
	Status  OrderStatus `json:"status"`
	Purpose Purpose     `json:"purpose"`

	// Set once the first fill is reconciled.
	SizeFilled     *float64 `json:"size_filled,omitempty"`
	ExecutionPrice *float64 `json:"execution_price,omitempty"`

	TxID string `json:"tx_id,omitempty"`
}

// Filled returns the reconciled cumulative fill, zero before any fill.
func (o *Order) Filled() float64 {
	if o.SizeFilled == nil {
		return 0
	}
	return *o.SizeFilled
}

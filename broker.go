// FILE: broker.go
// Package main – Exchange abstractions shared by all execution backends.
//
// This file defines the surface the market-making loop needs from the chain
// and from the price source:
//   • Exchange interface: maker setup, order submission, cancel-all,
//     signature polling and event decoding for the trader's account
//   • PriceFeed interface: latest price and recent candles
//   • Common types: Candle, OrderTemplate, SignatureInfo, MarketEvent
//   • Error taxonomy used across the bot
//
// Two concrete implementations live in separate files:
//   • broker_paper.go   – in-memory paper exchange (no external calls)
//   • broker_bridge.go  – HTTP client for the chain sidecar
package main

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrSubmission wraps any failure of an order, cancel or setup transaction.
	ErrSubmission = errors.New("submission failed")
	// ErrPriceUnavailable is returned when the price source has no usable price.
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrInsufficientData is returned by indicators that need a longer history.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrInvalidOrder rejects an order before any external call.
	ErrInvalidOrder = errors.New("invalid order")
	// ErrMissingCredential and ErrMarketUnavailable are fatal at startup.
	ErrMissingCredential = errors.New("missing credential")
	ErrMarketUnavailable = errors.New("market metadata unavailable")
)

// Candle is the normalized price row the bot keeps in its history.
type Candle struct {
	Time  time.Time
	Close float64
}

// OrderTemplate is the exchange-facing form of a locally tracked order.
type OrderTemplate struct {
	ClientOrderID uint64
	Side          Side
	Kind          OrderKind
	Price         float64
	Size          float64 // base units
	ExpiresAt     time.Time
	SelfTrade     string // "abort"
}

// SignatureInfo is one confirmed transaction touching the trader's account.
type SignatureInfo struct {
	Signature string `json:"signature"`
	Slot      uint64 `json:"slot"`
}

// EventKind classifies decoded market events.
type EventKind string

const (
	EventFillSummary EventKind = "FillSummary"
	EventFill        EventKind = "Fill"
	EventPlace       EventKind = "Place"
	EventCancel      EventKind = "Cancel"
	EventExpire      EventKind = "Expire"
)

// FillEvent is the cumulative fill summary of one client order.
type FillEvent struct {
	ClientOrderID   uint64
	BaseLotsFilled  uint64
	QuoteLotsFilled uint64
}

// MarketEvent is one decoded event of a transaction. Fill is only
// meaningful for EventFillSummary; ClientOrderID is set for every kind.
// Foreign marks an event whose client order id does not fit in a uint64
// (placed by another client); it can never match a local order.
type MarketEvent struct {
	Kind          EventKind
	ClientOrderID uint64
	Foreign       bool
	Fill          FillEvent
}

// DecodedTransaction is the event list of one signature.
type DecodedTransaction struct {
	Signature string
	Events    []MarketEvent
}

// Exchange is the order-side collaborator. Every call is a blocking network
// round trip; timeouts belong to the implementation.
type Exchange interface {
	Name() string
	MakerSetup(ctx context.Context) (int, error)
	SubmitSetup(ctx context.Context) (string, error)
	SubmitOrder(ctx context.Context, tpl OrderTemplate) (string, error)
	CancelAll(ctx context.Context) (string, error)
	FetchRecentSignatures(ctx context.Context, account, before string, limit int) ([]SignatureInfo, error)
	DecodeEvents(ctx context.Context, signature string) (DecodedTransaction, error)
}

// PriceFeed is the market-data collaborator.
type PriceFeed interface {
	FetchPrice(ctx context.Context, symbol string) (float64, error)
	FetchCandles(ctx context.Context, symbol, timeframe string, count int) ([]Candle, error)
}

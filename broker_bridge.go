// FILE: broker_bridge.go
// Package main – HTTP exchange client for the local chain sidecar ("bridge").
//
// The bridge holds the RPC connection and the market SDK; this client only
// speaks JSON over HTTP. Endpoints:
//   • GET  /price?symbol=...                       -> {"price"}
//   • GET  /candles?symbol=...&timeframe=...&limit=  -> [{"time","close",...}]
//   • GET  /market                                 -> MarketParams
//   • GET  /maker/setup?account=...                -> {"steps"}
//   • POST /maker/setup                            -> {"tx_id"}
//   • POST /orders                                 -> {"tx_id"}
//   • POST /orders/cancel_all                      -> {"tx_id"}
//   • GET  /signatures?account=...&before=...&limit= -> [{"signature","slot"}]
//   • GET  /transactions/{signature}/events        -> {"signature","events":[...]}
//
// Every POST carries X-Request-ID (uuid), X-Trader-Address and X-Signature
// (see signer.go). X-Trader-Address is the venue account (TRADER_ACCOUNT);
// the bridge checks that the signing key is authorized for it.
// Numeric fields may arrive as JSON numbers or strings. Client order ids
// are u128 on the venue; ids beyond uint64 are decoded as foreign events.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/big"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BridgeExchange talks to the local chain bridge.
type BridgeExchange struct {
	base    string
	hc      *http.Client
	signer  *Signer
	account string
}

func NewBridgeExchange(base string, signer *Signer, account string) *BridgeExchange {
	base = strings.TrimSpace(base)
	if i := strings.IndexAny(base, " \t#"); i >= 0 { // cut trailing comment/space
		base = strings.TrimSpace(base[:i])
	}
	if base == "" {
		base = "http://127.0.0.1:8787"
	}
	base = strings.TrimRight(base, "/")
	return &BridgeExchange{
		base:    base,
		hc:      &http.Client{Timeout: 15 * time.Second},
		signer:  signer,
		account: account,
	}
}

func (bx *BridgeExchange) Name() string { return "phoenix-bridge" }

// --- transport ---

// do issues one request and decodes a 2xx JSON body into out (when non-nil).
func (bx *BridgeExchange) do(ctx context.Context, method, path string, q url.Values, body any, out any) error {
	u := bx.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("newrequest %s: %w (url=%s)", path, err, u)
	}
	req.Header.Set("User-Agent", "phoenixmm/bridge")
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Request-ID", uuid.NewString())
		if bx.signer != nil {
			sig, err := bx.signer.Sign(payload)
			if err != nil {
				return fmt.Errorf("sign %s: %w", path, err)
			}
			req.Header.Set("X-Trader-Address", bx.account)
			req.Header.Set("X-Signature", sig)
		}
	}

	res, err := bx.hc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		b, _ := io.ReadAll(res.Body)
		return fmt.Errorf("%s %d: %s", path, res.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

type txResponse struct {
	TxID string `json:"tx_id"`
}

// --- PriceFeed ---

func (bx *BridgeExchange) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	var out struct {
		Price json.Number `json:"price"`
	}
	if err := bx.do(ctx, http.MethodGet, "/price", url.Values{"symbol": {symbol}}, nil, &out); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPriceUnavailable, err)
	}
	px, err := out.Price.Float64()
	if err != nil || !(px > 0) || math.IsInf(px, 0) {
		return 0, fmt.Errorf("%w: fetched price %q is not a valid number", ErrPriceUnavailable, out.Price)
	}
	return px, nil
}

func (bx *BridgeExchange) FetchCandles(ctx context.Context, symbol, timeframe string, count int) ([]Candle, error) {
	if count <= 0 {
		count = DefaultHistoryCapacity
	}
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("timeframe", timeframe)
	q.Set("limit", strconv.Itoa(count))

	// Bridge returns normalized rows with string/number fields; parse defensively.
	type row struct {
		Time  any `json:"time"`
		Close any `json:"close"`
	}
	var rows []row
	if err := bx.do(ctx, http.MethodGet, "/candles", q, nil, &rows); err != nil {
		return nil, err
	}
	candles := make([]Candle, 0, len(rows))
	for _, r := range rows {
		c := Candle{Time: parseBridgeTime(r.Time), Close: parseBridgeFloat(r.Close)}
		if c.Close > 0 {
			candles = append(candles, c)
		}
	}
	sort.SliceStable(candles, func(i, j int) bool { return candles[i].Time.Before(candles[j].Time) })
	return candles, nil
}

func parseBridgeFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f
	default:
		return 0
	}
}

// parseBridgeTime accepts RFC3339 strings or unix milliseconds.
func parseBridgeTime(v any) time.Time {
	switch t := v.(type) {
	case float64:
		return time.UnixMilli(int64(t)).UTC()
	case string:
		s := strings.TrimSpace(t)
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return ts.UTC()
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC()
		}
	}
	return time.Time{}
}

// FetchMarket loads the market metadata served by the bridge.
func (bx *BridgeExchange) FetchMarket(ctx context.Context) (MarketParams, error) {
	var m MarketParams
	if err := bx.do(ctx, http.MethodGet, "/market", nil, nil, &m); err != nil {
		return MarketParams{}, fmt.Errorf("%w: %v", ErrMarketUnavailable, err)
	}
	if err := m.Validate(); err != nil {
		return MarketParams{}, err
	}
	return m, nil
}

// --- Exchange ---

func (bx *BridgeExchange) MakerSetup(ctx context.Context) (int, error) {
	var out struct {
		Steps int `json:"steps"`
	}
	if err := bx.do(ctx, http.MethodGet, "/maker/setup", url.Values{"account": {bx.account}}, nil, &out); err != nil {
		return 0, err
	}
	return out.Steps, nil
}

func (bx *BridgeExchange) SubmitSetup(ctx context.Context) (string, error) {
	var out txResponse
	if err := bx.do(ctx, http.MethodPost, "/maker/setup", nil, map[string]string{"account": bx.account}, &out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	return out.TxID, nil
}

type orderBody struct {
	Account       string    `json:"account"`
	ClientOrderID string    `json:"client_order_id"`
	Side          Side      `json:"side"`
	Kind          OrderKind `json:"kind"`
	Price         float64   `json:"price"`
	Size          float64   `json:"size"`
	ExpiresAt     int64     `json:"expires_at"`
	SelfTrade     string    `json:"self_trade"`
}

func (bx *BridgeExchange) SubmitOrder(ctx context.Context, tpl OrderTemplate) (string, error) {
	body := orderBody{
		Account:       bx.account,
		ClientOrderID: strconv.FormatUint(tpl.ClientOrderID, 10),
		Side:          tpl.Side,
		Kind:          tpl.Kind,
		Price:         tpl.Price,
		Size:          tpl.Size,
		SelfTrade:     tpl.SelfTrade,
	}
	if !tpl.ExpiresAt.IsZero() {
		body.ExpiresAt = tpl.ExpiresAt.Unix()
	}
	var out txResponse
	if err := bx.do(ctx, http.MethodPost, "/orders", nil, body, &out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	if out.TxID == "" {
		return "", fmt.Errorf("%w: bridge returned no transaction id", ErrSubmission)
	}
	return out.TxID, nil
}

func (bx *BridgeExchange) CancelAll(ctx context.Context) (string, error) {
	var out txResponse
	if err := bx.do(ctx, http.MethodPost, "/orders/cancel_all", nil, map[string]string{"account": bx.account}, &out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	return out.TxID, nil
}

func (bx *BridgeExchange) FetchRecentSignatures(ctx context.Context, account, before string, limit int) ([]SignatureInfo, error) {
	q := url.Values{}
	q.Set("account", account)
	if before != "" {
		q.Set("before", before)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out []SignatureInfo
	if err := bx.do(ctx, http.MethodGet, "/signatures", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type eventWire struct {
	Kind            EventKind   `json:"kind"`
	ClientOrderID   json.Number `json:"client_order_id"`
	BaseLotsFilled  json.Number `json:"base_lots_filled"`
	QuoteLotsFilled json.Number `json:"quote_lots_filled"`
}

func (bx *BridgeExchange) DecodeEvents(ctx context.Context, signature string) (DecodedTransaction, error) {
	var out struct {
		Signature string      `json:"signature"`
		Events    []eventWire `json:"events"`
	}
	path := "/transactions/" + url.PathEscape(signature) + "/events"
	if err := bx.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return DecodedTransaction{}, err
	}
	tx := DecodedTransaction{Signature: signature, Events: make([]MarketEvent, 0, len(out.Events))}
	for i, w := range out.Events {
		ev, err := w.event()
		if err != nil {
			return DecodedTransaction{}, fmt.Errorf("event %d of %s: %w", i, signature, err)
		}
		tx.Events = append(tx.Events, ev)
	}
	return tx, nil
}

func (w eventWire) event() (MarketEvent, error) {
	id, foreign, err := parseClientOrderID(w.ClientOrderID)
	if err != nil {
		return MarketEvent{}, fmt.Errorf("client_order_id: %w", err)
	}
	ev := MarketEvent{Kind: w.Kind, ClientOrderID: id, Foreign: foreign}
	if foreign {
		return ev, nil
	}
	if w.Kind == EventFillSummary || w.Kind == EventFill {
		base, err := parseLots(w.BaseLotsFilled)
		if err != nil {
			return MarketEvent{}, fmt.Errorf("base_lots_filled: %w", err)
		}
		quote, err := parseLots(w.QuoteLotsFilled)
		if err != nil {
			return MarketEvent{}, fmt.Errorf("quote_lots_filled: %w", err)
		}
		ev.Fill = FillEvent{ClientOrderID: id, BaseLotsFilled: base, QuoteLotsFilled: quote}
	}
	return ev, nil
}

// parseClientOrderID accepts the venue's u128 ids. Ids above the uint64
// range belong to other clients and come back as foreign with id 0.
func parseClientOrderID(n json.Number) (id uint64, foreign bool, err error) {
	if n == "" {
		return 0, false, nil
	}
	id, err = strconv.ParseUint(n.String(), 10, 64)
	if err == nil {
		return id, false, nil
	}
	v, ok := new(big.Int).SetString(n.String(), 10)
	if !ok || v.Sign() < 0 {
		return 0, false, err
	}
	return 0, true, nil
}

func parseLots(n json.Number) (uint64, error) {
	if n == "" {
		return 0, nil
	}
	return strconv.ParseUint(n.String(), 10, 64)
}

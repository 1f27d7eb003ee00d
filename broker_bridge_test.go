package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestBridge(t *testing.T, h http.HandlerFunc) (*BridgeExchange, *Signer) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	s, err := GenerateSigner()
	if err != nil {
		t.Fatal(err)
	}
	return NewBridgeExchange(srv.URL+"  # sidecar", s, s.Address().Hex()), s
}

func TestBridgeSubmitOrderSignsRequest(t *testing.T) {
	var (
		gotBody   []byte
		gotHeader http.Header
	)
	bx, signer := newTestBridge(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/orders" {
			http.NotFound(w, r)
			return
		}
		gotBody, _ = io.ReadAll(r.Body)
		gotHeader = r.Header.Clone()
		_, _ = w.Write([]byte(`{"tx_id":"5xSig"}`))
	})

	tx, err := bx.SubmitOrder(context.Background(), OrderTemplate{
		ClientOrderID: 7, Side: SideBid, Kind: OrderLimit, Price: 99.5, Size: 1.25,
		ExpiresAt: time.Unix(1700000000, 0), SelfTrade: "abort",
	})
	if err != nil || tx != "5xSig" {
		t.Fatalf("tx = %q err = %v", tx, err)
	}

	var body map[string]any
	if err := json.Unmarshal(gotBody, &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body["client_order_id"] != "7" || body["side"] != "bid" || body["kind"] != "limit" || body["expires_at"] != float64(1700000000) {
		t.Errorf("body = %v", body)
	}
	if gotHeader.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	if gotHeader.Get("X-Trader-Address") != signer.Address().Hex() {
		t.Errorf("trader = %q", gotHeader.Get("X-Trader-Address"))
	}
	if !VerifySignature(gotBody, gotHeader.Get("X-Signature"), signer.Address()) {
		t.Error("X-Signature does not verify over the body")
	}
}

func TestBridgeSubmissionErrors(t *testing.T) {
	bx, _ := newTestBridge(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/orders":
			http.Error(w, "insufficient funds", http.StatusBadRequest)
		case "/orders/cancel_all":
			_, _ = w.Write([]byte(`{"tx_id":""}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()
	if _, err := bx.SubmitOrder(ctx, OrderTemplate{ClientOrderID: 1, Price: 1, Size: 1}); !errors.Is(err, ErrSubmission) {
		t.Errorf("submit err = %v", err)
	}
	if _, err := bx.CancelAll(ctx); err != nil {
		t.Errorf("cancel err = %v", err)
	}
	if _, err := bx.SubmitSetup(ctx); !errors.Is(err, ErrSubmission) {
		t.Errorf("setup err = %v", err)
	}
}

func TestBridgeFetchPrice(t *testing.T) {
	cases := []struct {
		name string
		body string
		want float64
		ok   bool
	}{
		{"string", `{"price":"101.25"}`, 101.25, true},
		{"number", `{"price":99.5}`, 99.5, true},
		{"zero", `{"price":0}`, 0, false},
		{"garbage", `{"price":"n/a"}`, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bx, _ := newTestBridge(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("symbol") != "SOL/USDC" {
					t.Errorf("symbol = %q", r.URL.Query().Get("symbol"))
				}
				_, _ = w.Write([]byte(tc.body))
			})
			px, err := bx.FetchPrice(context.Background(), "SOL/USDC")
			if tc.ok {
				if err != nil || px != tc.want {
					t.Errorf("price = %v err = %v", px, err)
				}
				return
			}
			if !errors.Is(err, ErrPriceUnavailable) {
				t.Errorf("err = %v, want ErrPriceUnavailable", err)
			}
		})
	}
}

func TestBridgeFetchCandlesSortsChronologically(t *testing.T) {
	bx, _ := newTestBridge(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("timeframe") != "1m" || q.Get("limit") != "3" {
			t.Errorf("query = %v", q)
		}
		_, _ = w.Write([]byte(`[
			{"time":"2024-01-01T00:02:00Z","close":"102"},
			{"time":1704067200000,"close":100},
			{"time":"2024-01-01T00:01:00Z","close":"101"}
		]`))
	})
	cs, err := bx.FetchCandles(context.Background(), "SOL/USDC", "1m", 3)
	if err != nil {
		t.Fatalf("candles: %v", err)
	}
	if len(cs) != 3 || cs[0].Close != 100 || cs[1].Close != 101 || cs[2].Close != 102 {
		t.Fatalf("candles = %+v", cs)
	}
}

func TestBridgeSignaturesAndEvents(t *testing.T) {
	bx, _ := newTestBridge(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/signatures":
			q := r.URL.Query()
			if q.Get("before") != "cursorSig" || q.Get("limit") != "10" || q.Get("account") != "trader" {
				t.Errorf("query = %v", q)
			}
			_, _ = w.Write([]byte(`[{"signature":"b","slot":12},{"signature":"a","slot":11}]`))
		case "/transactions/b/events":
			_, _ = w.Write([]byte(`{"signature":"b","events":[
				{"kind":"FillSummary","client_order_id":"3","base_lots_filled":"1500","quote_lots_filled":150000000},
				{"kind":"Expire","client_order_id":4},
				{"kind":"Place","client_order_id":"5"}
			]}`))
		case "/transactions/bad/events":
			_, _ = w.Write([]byte(`{"events":[{"kind":"FillSummary","client_order_id":"-1"}]}`))
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()
	sigs, err := bx.FetchRecentSignatures(ctx, "trader", "cursorSig", 10)
	if err != nil || len(sigs) != 2 || sigs[0].Signature != "b" || sigs[1].Slot != 11 {
		t.Fatalf("sigs = %+v err = %v", sigs, err)
	}

	tx, err := bx.DecodeEvents(ctx, "b")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tx.Events) != 3 {
		t.Fatalf("events = %+v", tx.Events)
	}
	f := tx.Events[0].Fill
	if f.ClientOrderID != 3 || f.BaseLotsFilled != 1500 || f.QuoteLotsFilled != 150000000 {
		t.Errorf("fill = %+v", f)
	}
	if tx.Events[1].Kind != EventExpire || tx.Events[1].ClientOrderID != 4 {
		t.Errorf("expire = %+v", tx.Events[1])
	}

	if _, err := bx.DecodeEvents(ctx, "bad"); err == nil {
		t.Error("expected error for a negative client order id")
	}
}

func TestBridgeMarketAndSetup(t *testing.T) {
	bx, _ := newTestBridge(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/market":
			_, _ = w.Write([]byte(`{"address":"mkt","base_ticker":"SOL","quote_ticker":"USDC","base_lot_size_units":"0.001","quote_lot_size_units":"0.000001","tick_size":"0.001"}`))
		case r.URL.Path == "/maker/setup" && r.Method == http.MethodGet:
			_, _ = w.Write([]byte(`{"steps":2}`))
		case r.URL.Path == "/maker/setup":
			_, _ = w.Write([]byte(`{"tx_id":"setupSig"}`))
		}
	})
	ctx := context.Background()
	m, err := bx.FetchMarket(ctx)
	if err != nil || m.Address != "mkt" {
		t.Fatalf("market = %+v err = %v", m, err)
	}
	if steps, err := bx.MakerSetup(ctx); err != nil || steps != 2 {
		t.Errorf("steps = %d err = %v", steps, err)
	}
	if tx, err := bx.SubmitSetup(ctx); err != nil || tx != "setupSig" {
		t.Errorf("tx = %q err = %v", tx, err)
	}
}

const u128Max = "340282366920938463463374607431768211455"

func TestBridgeDecodesForeignClientOrderIDs(t *testing.T) {
	bx, _ := newTestBridge(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"events":[
			{"kind":"FillSummary","client_order_id":"` + u128Max + `","base_lots_filled":"` + u128Max + `","quote_lots_filled":1},
			{"kind":"Place","client_order_id":18446744073709551616},
			{"kind":"Place","client_order_id":"9"}
		]}`))
	})
	tx, err := bx.DecodeEvents(context.Background(), "foreign")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tx.Events) != 3 {
		t.Fatalf("events = %+v", tx.Events)
	}
	for i, ev := range tx.Events[:2] {
		if !ev.Foreign || ev.ClientOrderID != 0 {
			t.Errorf("event %d = %+v, want foreign", i, ev)
		}
	}
	if ev := tx.Events[2]; ev.Foreign || ev.ClientOrderID != 9 {
		t.Errorf("own event = %+v", ev)
	}
}

func TestMonitorPassesForeignEventsFromBridge(t *testing.T) {
	// newest first; "foreign" carries an order placed by another client
	order := []string{"later", "mine", "foreign"}
	events := map[string]string{
		"later":   `{"kind":"FillSummary","client_order_id":"1","base_lots_filled":2000,"quote_lots_filled":200000000}`,
		"mine":    `{"kind":"Place","client_order_id":"1"}`,
		"foreign": `{"kind":"FillSummary","client_order_id":"` + u128Max + `","base_lots_filled":5,"quote_lots_filled":5}`,
	}
	bx, _ := newTestBridge(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/signatures" {
			start := 0
			if before := r.URL.Query().Get("before"); before != "" {
				start = len(order)
				for i, s := range order {
					if s == before {
						start = i + 1
					}
				}
			}
			out := []SignatureInfo{}
			for i, s := range order[start:] {
				out = append(out, SignatureInfo{Signature: s, Slot: uint64(100 - start - i)})
			}
			_ = json.NewEncoder(w).Encode(out)
			return
		}
		sig := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/transactions/"), "/events")
		ev, ok := events[sig]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"signature":"` + sig + `","events":[` + ev + `]}`))
	})

	ctx := context.Background()
	m, _ := newTestManager(newFakeExchange(), 10)
	if _, err := m.CreateAndSubmitOrder(ctx, bid(100, 2)); err != nil {
		t.Fatalf("submit: %v", err)
	}
	tm := NewTransactionMonitor(bx, m, "trader", 10, nil)

	n, err := tm.Poll(ctx)
	if err != nil || n != 3 {
		t.Fatalf("poll delivered %d, err %v", n, err)
	}
	if tm.Cursor() != "foreign" {
		t.Fatalf("cursor = %q, want foreign", tm.Cursor())
	}
	if got := m.Inventory(); !almostEqual(got, 2) {
		t.Errorf("inventory = %v, want 2", got)
	}
	if _, err := tm.Poll(ctx); err != nil || tm.Cursor() != "" {
		t.Errorf("walk did not end: cursor=%q err=%v", tm.Cursor(), err)
	}
}

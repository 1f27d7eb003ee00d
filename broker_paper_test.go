package main

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestPaperExchangeRestsAndFillsOnMark(t *testing.T) {
	ctx := context.Background()
	p := NewPaperExchange(testMarket(), nil)
	p.Mark(100)

	sig, err := p.SubmitOrder(ctx, OrderTemplate{ClientOrderID: 1, Side: SideBid, Kind: OrderLimit, Price: 99, Size: 1.5})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if p.RestingOrders() != 1 {
		t.Fatalf("resting = %d, want 1", p.RestingOrders())
	}
	tx, _ := p.DecodeEvents(ctx, sig)
	if len(tx.Events) != 1 || tx.Events[0].Kind != EventPlace {
		t.Fatalf("place events = %+v", tx.Events)
	}

	p.Mark(98.5)
	sigs, _ := p.FetchRecentSignatures(ctx, "trader", "", 10)
	if len(sigs) != 2 || sigs[1].Signature != sig {
		t.Fatalf("signatures = %+v, want newest first", sigs)
	}
	fill, _ := p.DecodeEvents(ctx, sigs[0].Signature)
	if len(fill.Events) != 1 || fill.Events[0].Kind != EventFillSummary {
		t.Fatalf("fill events = %+v", fill.Events)
	}
	f := fill.Events[0].Fill
	if f.ClientOrderID != 1 || f.BaseLotsFilled != 1500 || f.QuoteLotsFilled != 148500000 {
		t.Errorf("fill = %+v", f)
	}
	if p.RestingOrders() != 0 {
		t.Error("filled order still resting")
	}
}

func TestPaperExchangeCancelAllAndExpiry(t *testing.T) {
	ctx := context.Background()
	p := NewPaperExchange(testMarket(), nil)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }
	p.Mark(100)

	_, _ = p.SubmitOrder(ctx, OrderTemplate{ClientOrderID: 1, Side: SideAsk, Price: 101, Size: 1, ExpiresAt: now.Add(time.Minute)})
	_, _ = p.SubmitOrder(ctx, OrderTemplate{ClientOrderID: 2, Side: SideAsk, Price: 102, Size: 1})
	sig, _ := p.CancelAll(ctx)
	tx, _ := p.DecodeEvents(ctx, sig)
	if len(tx.Events) != 2 || p.RestingOrders() != 0 {
		t.Fatalf("cancel events = %+v resting = %d", tx.Events, p.RestingOrders())
	}

	_, _ = p.SubmitOrder(ctx, OrderTemplate{ClientOrderID: 3, Side: SideAsk, Price: 105, Size: 1, ExpiresAt: now.Add(time.Minute)})
	now = now.Add(2 * time.Minute)
	p.Mark(100)
	sigs, _ := p.FetchRecentSignatures(ctx, "trader", "", 1)
	exp, _ := p.DecodeEvents(ctx, sigs[0].Signature)
	if len(exp.Events) != 1 || exp.Events[0].Kind != EventExpire || exp.Events[0].ClientOrderID != 3 {
		t.Errorf("expire events = %+v", exp.Events)
	}
}

func TestPaperExchangeSignaturePaging(t *testing.T) {
	ctx := context.Background()
	p := NewPaperExchange(testMarket(), nil)
	var sigs []string
	for i := 0; i < 5; i++ {
		s, _ := p.CancelAll(ctx)
		sigs = append(sigs, s)
	}
	page, _ := p.FetchRecentSignatures(ctx, "trader", sigs[3], 2)
	if len(page) != 2 || page[0].Signature != sigs[2] || page[1].Signature != sigs[1] {
		t.Fatalf("page = %+v", page)
	}
	if page, _ := p.FetchRecentSignatures(ctx, "trader", "unknown", 2); len(page) != 0 {
		t.Errorf("unknown cursor page = %+v", page)
	}
}

func TestPaperExchangeRejectsAndSetup(t *testing.T) {
	ctx := context.Background()
	p := NewPaperExchange(testMarket(), nil)

	if _, err := p.FetchPrice(ctx, "SOL/USDC"); !errors.Is(err, ErrPriceUnavailable) {
		t.Errorf("price err = %v", err)
	}
	if _, err := p.SubmitOrder(ctx, OrderTemplate{ClientOrderID: 1, Side: SideBid, Price: 1, Size: 0.0001}); !errors.Is(err, ErrSubmission) {
		t.Errorf("sub-lot err = %v", err)
	}
	if steps, _ := p.MakerSetup(ctx); steps != 1 {
		t.Errorf("steps = %d, want 1", steps)
	}
	_, _ = p.SubmitSetup(ctx)
	if steps, _ := p.MakerSetup(ctx); steps != 0 {
		t.Errorf("steps after setup = %d, want 0", steps)
	}
}

type staticFeed struct {
	price   float64
	candles []Candle
}

func (s staticFeed) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	return s.price, nil
}

func (s staticFeed) FetchCandles(ctx context.Context, symbol, timeframe string, count int) ([]Candle, error) {
	return s.candles, nil
}

func TestPaperExchangeMarksUpstreamPrice(t *testing.T) {
	ctx := context.Background()
	p := NewPaperExchange(testMarket(), staticFeed{price: 95})
	_, _ = p.SubmitOrder(ctx, OrderTemplate{ClientOrderID: 1, Side: SideBid, Price: 96, Size: 1})

	px, err := p.FetchPrice(ctx, "SOL/USDC")
	if err != nil || px != 95 {
		t.Fatalf("price = %v err = %v", px, err)
	}
	if p.RestingOrders() != 0 {
		t.Error("upstream price did not fill the crossing bid")
	}
}

package orderbook

import (
	"testing"
	"time"

	"github.com/marketlink/marketlink/amount"
)

func mustPrice(t *testing.T, v float64) amount.Price {
	t.Helper()
	p, err := amount.NewPrice(v)
	if err != nil {
		t.Fatalf("NewPrice(%v): %v", v, err)
	}
	return p
}

func TestLimitOrderRestsWhenItDoesNotCross(t *testing.T) {
	now := time.Now()
	b := NewBook("AAPL")

	ask := NewOrder(1, "AAPL", Sell, mustPrice(t, 10), 5, now)
	if _, err := b.AddOrder(ask, now); err != nil {
		t.Fatalf("AddOrder: %v", err)
	}

	bid := NewOrder(2, "AAPL", Buy, mustPrice(t, 9), 5, now)
	res, err := b.AddOrder(bid, now)
	if err != nil {
		t.Fatalf("AddOrder: %v", err)
	}
	if res.Filled {
		t.Fatal("non-crossing bid should not fill")
	}
	if len(res.Affected) != 0 {
		t.Fatalf("affected = %v, want empty", res.Affected)
	}
	if len(b.Bids()) != 1 || len(b.Asks()) != 1 {
		t.Fatalf("book sides = %d bids, %d asks; want 1, 1", len(b.Bids()), len(b.Asks()))
	}
}

func TestExactSweepLeavesNoResidual(t *testing.T) {
	now := time.Now()
	b := NewBook("AAPL")

	b.AddOrder(NewOrder(1, "AAPL", Sell, mustPrice(t, 10), 5, now), now)
	b.AddOrder(NewOrder(2, "AAPL", Sell, mustPrice(t, 11), 5, now), now)

	buy := NewOrder(3, "AAPL", Buy, mustPrice(t, 11), 10, now)
	res, err := b.AddOrder(buy, now)
	if err != nil {
		t.Fatalf("AddOrder: %v", err)
	}
	if !res.Filled {
		t.Fatal("exact sweep should fully fill the incoming order")
	}
	if len(res.Affected) != 2 {
		t.Fatalf("affected = %d orders, want 2", len(res.Affected))
	}
	if len(b.Asks()) != 0 {
		t.Fatalf("asks = %d, want 0 after exact sweep", len(b.Asks()))
	}
	if len(b.Bids()) != 0 {
		t.Fatalf("bids = %d, want 0 (incoming fully filled, nothing rests)", len(b.Bids()))
	}
}

// TestMarketSweepScenario reproduces the spec's concrete market-sweep
// example: four resting buys (one market, three limit at 1/2/3), then a
// market sell of 20 that sweeps the three limit bids but not the market
// bid, since market-vs-market never crosses.
func TestMarketSweepScenario(t *testing.T) {
	now := time.Now()
	b := NewBook("AAPL")

	id1 := NewOrder(1, "AAPL", Buy, amount.Market, 5, now)
	id2 := NewOrder(2, "AAPL", Buy, mustPrice(t, 1.0), 5, now)
	id3 := NewOrder(3, "AAPL", Buy, mustPrice(t, 2.0), 5, now)
	id4 := NewOrder(4, "AAPL", Buy, mustPrice(t, 3.0), 5, now)
	for _, o := range []*Order{id1, id2, id3, id4} {
		if _, err := b.AddOrder(o, now); err != nil {
			t.Fatalf("AddOrder(%d): %v", o.ID, err)
		}
	}

	id5 := NewOrder(5, "AAPL", Sell, amount.Market, 20, now)
	res, err := b.AddOrder(id5, now)
	if err != nil {
		t.Fatalf("AddOrder(id5): %v", err)
	}

	if res.Filled {
		t.Fatal("id5 should rest with residual quantity, not fully fill")
	}
	if id5.FilledQty != 15 {
		t.Fatalf("id5.FilledQty = %d, want 15", id5.FilledQty)
	}
	avg, ok := id5.AvgPrice()
	if !ok || avg.Float64() != 2.0 {
		t.Fatalf("id5.AvgPrice() = %v, %v; want 2.0, true", avg, ok)
	}
	if id5.QtyLeft() != 5 {
		t.Fatalf("id5.QtyLeft() = %d, want 5", id5.QtyLeft())
	}

	wantAffected := []ID{4, 3, 2}
	if len(res.Affected) != len(wantAffected) {
		t.Fatalf("affected = %v, want ids %v", res.Affected, wantAffected)
	}
	for i, o := range res.Affected {
		if o.ID != wantAffected[i] {
			t.Errorf("affected[%d].ID = %d, want %d", i, o.ID, wantAffected[i])
		}
		if !o.IsFilled() {
			t.Errorf("affected[%d] (id %d) is not fully filled", i, o.ID)
		}
	}

	if len(b.Bids()) != 1 || b.Bids()[0].ID != 1 {
		t.Fatalf("remaining bids = %v, want only id1 (market)", b.Bids())
	}
	if len(b.Asks()) != 1 || b.Asks()[0].ID != 5 {
		t.Fatalf("remaining asks = %v, want residual id5", b.Asks())
	}
}

// TestConsolidation reproduces the spec's consolidation example.
func TestConsolidation(t *testing.T) {
	now := time.Now()
	b := NewBook("AAPL")

	prices := []amount.Price{amount.Market, amount.Market, amount.Market, mustPrice(t, 5), mustPrice(t, 5), mustPrice(t, 10)}
	for i, p := range prices {
		b.AddOrder(NewOrder(ID(i+1), "AAPL", Buy, p, 5, now), now)
	}

	levels := b.BidLevels()
	want := []struct {
		price float64
		qty   amount.Quantity
	}{
		{0, 15}, // market, summed qty 15
		{10, 5},
		{5, 10},
	}
	if len(levels) != len(want) {
		t.Fatalf("levels = %+v, want %d entries", levels, len(want))
	}
	if !levels[0].Price.IsMarket() || levels[0].Qty != 15 {
		t.Fatalf("levels[0] = %+v, want (market, 15)", levels[0])
	}
	for i := 1; i < len(want); i++ {
		if levels[i].Price.Float64() != want[i].price || levels[i].Qty != want[i].qty {
			t.Errorf("levels[%d] = %+v, want (%v, %v)", i, levels[i], want[i].price, want[i].qty)
		}
	}
}

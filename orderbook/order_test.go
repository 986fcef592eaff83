package orderbook

import (
	"testing"
	"time"

	"github.com/marketlink/marketlink/amount"
)

func TestOrderAvgPriceUndefinedUntilFilled(t *testing.T) {
	now := time.Now()
	o := NewOrder(1, "AAPL", Buy, mustPrice(t, 10), 10, now)
	if _, ok := o.AvgPrice(); ok {
		t.Fatal("AvgPrice() should be undefined before any fill")
	}

	if err := o.applyFill(4, mustPrice(t, 10), now); err != nil {
		t.Fatalf("applyFill: %v", err)
	}
	avg, ok := o.AvgPrice()
	if !ok || avg.Float64() != 10 {
		t.Fatalf("AvgPrice() = %v, %v; want 10, true", avg, ok)
	}
	if o.IsFilled() {
		t.Fatal("order should not be filled yet")
	}

	if err := o.applyFill(6, mustPrice(t, 12), now); err != nil {
		t.Fatalf("applyFill: %v", err)
	}
	avg, ok = o.AvgPrice()
	// (4*10 + 6*12) / 10 = 11.2
	if !ok || avg.Float64() != 11.2 {
		t.Fatalf("AvgPrice() = %v, %v; want 11.2, true", avg, ok)
	}
	if !o.IsFilled() {
		t.Fatal("order should be fully filled")
	}
	if o.FilledAt.IsZero() {
		t.Fatal("FilledAt should be set once fully filled")
	}
}

func TestQtyLeftNeverNegative(t *testing.T) {
	now := time.Now()
	o := NewOrder(1, "AAPL", Sell, amount.Market, 5, now)
	if got := o.QtyLeft(); got != 5 {
		t.Fatalf("QtyLeft() = %d, want 5", got)
	}
	if err := o.applyFill(5, mustPrice(t, 1), now); err != nil {
		t.Fatalf("applyFill: %v", err)
	}
	if got := o.QtyLeft(); got != 0 {
		t.Fatalf("QtyLeft() = %d, want 0", got)
	}
}

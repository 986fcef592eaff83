// Package orderbook implements a single-symbol, price-time-priority order
// book: resting orders sorted market-first then by price then by arrival,
// matched against incoming orders with quantity-weighted average fill
// pricing.
package orderbook

import (
	"time"

	"github.com/marketlink/marketlink/amount"
)

// Side is which book an order rests on.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "buy"
	}
	return "sell"
}

// ID uniquely identifies an order within a book's lifetime.
type ID uint64

// Order is a single resting or incoming order. FilledQty and AvgPrice
// accumulate across every fill the matching engine applies; AvgPrice is
// only meaningful once FilledQty is nonzero.
type Order struct {
	ID     ID
	Symbol string
	Side   Side
	Limit  amount.Price // amount.Market for a market order
	Qty    amount.Quantity

	FilledQty amount.Quantity
	avgPrice  amount.Price

	CreatedAt  time.Time
	UpdatedAt  time.Time
	FilledAt   time.Time
	CanceledAt time.Time
}

// NewOrder constructs a resting/incoming order with zero fills.
func NewOrder(id ID, symbol string, side Side, limit amount.Price, qty amount.Quantity, now time.Time) *Order {
	return &Order{
		ID:        id,
		Symbol:    symbol,
		Side:      side,
		Limit:     limit,
		Qty:       qty,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// QtyLeft returns the unfilled remainder.
func (o *Order) QtyLeft() amount.Quantity {
	left, err := o.Qty.Sub(o.FilledQty)
	if err != nil {
		// FilledQty > Qty would be an invariant violation; never produced
		// by the matching engine, which caps each trade quantity at
		// QtyLeft before calling applyFill.
		return 0
	}
	return left
}

// IsFilled reports whether the order has no remaining quantity.
func (o *Order) IsFilled() bool {
	return o.FilledQty == o.Qty
}

// AvgPrice returns the quantity-weighted average fill price and whether it
// is defined (it is undefined iff FilledQty == 0).
func (o *Order) AvgPrice() (amount.Price, bool) {
	if o.FilledQty == 0 {
		return amount.Price{}, false
	}
	return o.avgPrice, true
}

// applyFill records a trade against the order: bumps FilledQty, updates
// UpdatedAt/FilledAt, and recomputes the quantity-weighted average price.
func (o *Order) applyFill(tradeQty amount.Quantity, tradePrice amount.Price, now time.Time) error {
	newAvg, err := weightedAvg(o.avgPrice, o.FilledQty, tradePrice, tradeQty)
	if err != nil {
		return err
	}
	newFilled, err := o.FilledQty.Add(tradeQty)
	if err != nil {
		return err
	}

	o.avgPrice = newAvg
	o.FilledQty = newFilled
	o.UpdatedAt = now
	if o.IsFilled() {
		o.FilledAt = now
	}
	return nil
}

// weightedAvg folds a new fill of tradeQty at tradePrice into the running
// average of oldQty fills at oldAvg, without floating point.
func weightedAvg(oldAvg amount.Price, oldQty amount.Quantity, tradePrice amount.Price, tradeQty amount.Quantity) (amount.Price, error) {
	oldValue, err := oldAvg.Mul(uint64(oldQty))
	if err != nil {
		return amount.Price{}, err
	}
	tradeValue, err := tradePrice.Mul(uint64(tradeQty))
	if err != nil {
		return amount.Price{}, err
	}

	newQty := oldQty + tradeQty
	avgTicks := (oldValue + tradeValue) / int64(newQty)
	return amount.FromTicks(avgTicks)
}

// Cancel marks the order canceled. The book's caller is responsible for
// removing it from the resting side.
func (o *Order) Cancel(now time.Time) {
	o.CanceledAt = now
	o.UpdatedAt = now
}

// Package amount provides the fixed-point money types the order book
// trades in: a Price with a distinguished "market" sentinel, and a
// non-negative Quantity.
package amount

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
)

// Scale is the number of fixed-point ticks per unit price. Four decimal
// places covers both equity tick sizes ($0.0001) and the ratios used by
// spread strategies.
const Scale = 10000

// ErrOutOfRange is returned when a price cannot be represented in ticks.
var ErrOutOfRange = errors.New("amount: price out of range")

// Price is a fixed-point price, or the distinguished "market" sentinel
// meaning "match at the best available price". Market orders are unpriced
// for sorting purposes but price-time-first in matching (see orderbook).
type Price struct {
	ticks  int64
	market bool
}

// Market is the sentinel price used by market orders.
var Market = Price{market: true}

// Zero is the zero-value finite price (not to be confused with Market).
var Zero = Price{}

// NewPrice builds a finite Price from a decimal value, rejecting negative
// or unrepresentable values.
func NewPrice(v float64) (Price, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return Price{}, fmt.Errorf("%w: %v", ErrOutOfRange, v)
	}
	ticks := math.Round(v * Scale)
	if ticks > math.MaxInt64 || ticks < 0 {
		return Price{}, fmt.Errorf("%w: %v", ErrOutOfRange, v)
	}
	return Price{ticks: int64(ticks)}, nil
}

// FromTicks builds a finite Price directly from its integer tick count.
func FromTicks(ticks int64) (Price, error) {
	if ticks < 0 {
		return Price{}, fmt.Errorf("%w: %d", ErrOutOfRange, ticks)
	}
	return Price{ticks: ticks}, nil
}

// IsMarket reports whether p is the market sentinel.
func (p Price) IsMarket() bool {
	return p.market
}

// Ticks returns the fixed-point tick count. It is meaningless for the
// market sentinel; callers must check IsMarket first.
func (p Price) Ticks() int64 {
	return p.ticks
}

// Float64 returns the decimal value of a finite price. It returns 0 for
// the market sentinel.
func (p Price) Float64() float64 {
	if p.market {
		return 0
	}
	return float64(p.ticks) / Scale
}

// Less reports whether p sorts below other among finite prices. Callers
// needing side-aware (market-first) ordering should use orderbook's
// comparators instead, since "ahead" depends on which side of the book is
// being ordered.
func (p Price) Less(other Price) bool {
	return p.ticks < other.ticks
}

// Equal reports whether two prices represent the same value, including the
// market sentinel.
func (p Price) Equal(other Price) bool {
	if p.market != other.market {
		return false
	}
	if p.market {
		return true
	}
	return p.ticks == other.ticks
}

// Add returns the sum of two finite prices. The result is always finite, so
// callers must not call it with a market price.
func (p Price) Add(other Price) Price {
	return Price{ticks: p.ticks + other.ticks}
}

// Mul returns p scaled by an integer multiplier (used to compute
// quantity-weighted fill value without floating point).
func (p Price) Mul(qty uint64) (int64, error) {
	hi, lo := bits.Mul64(uint64(p.ticks), qty)
	if hi != 0 || lo > math.MaxInt64 {
		return 0, fmt.Errorf("%w: overflow multiplying price by %d", ErrOutOfRange, qty)
	}
	return int64(lo), nil
}

func (p Price) String() string {
	if p.market {
		return "market"
	}
	return fmt.Sprintf("%.4f", p.Float64())
}

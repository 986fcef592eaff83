package orderbook

import (
	"time"

	"github.com/marketlink/marketlink/amount"
)

// Book is a single-symbol order book. It is not internally synchronized;
// callers must serialize mutations, e.g. one matching goroutine per symbol.
type Book struct {
	Symbol string
	bids   []*Order // descending: market first, then highest price, FIFO ties
	asks   []*Order // ascending: market first, then lowest price, FIFO ties
}

// NewBook returns an empty book for symbol.
func NewBook(symbol string) *Book {
	return &Book{Symbol: symbol}
}

// Result is the outcome of AddOrder: the incoming order in its final
// state (filled and retired, or resting with remaining quantity) plus
// every resting order the match fully filled and removed.
type Result struct {
	Incoming *Order
	Filled   bool
	Affected []*Order
}

// AddOrder matches o against the opposite side of the book and, if
// quantity remains, inserts it into its own side at the correct position.
func (b *Book) AddOrder(o *Order, now time.Time) (*Result, error) {
	opposite := b.oppositeSide(o.Side)
	affected, err := b.match(o, opposite, now)
	if err != nil {
		return nil, err
	}
	b.setOppositeSide(o.Side, opposite.slice)

	res := &Result{Incoming: o, Affected: affected, Filled: o.IsFilled()}
	if !o.IsFilled() {
		b.insert(o)
	}
	return res, nil
}

type sideView struct {
	slice []*Order
}

func (b *Book) oppositeSide(s Side) *sideView {
	if s == Buy {
		return &sideView{slice: b.asks}
	}
	return &sideView{slice: b.bids}
}

func (b *Book) setOppositeSide(s Side, slice []*Order) {
	if s == Buy {
		b.asks = slice
	} else {
		b.bids = slice
	}
}

// match walks opposite from best price outward, filling o against resting
// orders per the book's price-time-priority matching rules.
func (b *Book) match(o *Order, opposite *sideView, now time.Time) ([]*Order, error) {
	var affected []*Order
	i := 0
	for i < len(opposite.slice) && !o.IsFilled() {
		resting := opposite.slice[i]

		incomingMarket := o.Limit.IsMarket()
		restingMarket := resting.Limit.IsMarket()

		if incomingMarket && restingMarket {
			// market-vs-market never crosses; this resting order simply
			// doesn't participate, try the next one.
			i++
			continue
		}
		if !incomingMarket && !restingMarket && !crosses(o, resting) {
			// book is price-ordered, so once one finite resting order is
			// worse than the incoming limit, every order behind it is too.
			break
		}

		tradeQty := amount.Min(o.QtyLeft(), resting.QtyLeft())
		tradePrice := tradePriceFor(o, resting)

		if err := o.applyFill(tradeQty, tradePrice, now); err != nil {
			return affected, err
		}
		if err := resting.applyFill(tradeQty, tradePrice, now); err != nil {
			return affected, err
		}

		if resting.IsFilled() {
			affected = append(affected, resting)
			opposite.slice = append(opposite.slice[:i], opposite.slice[i+1:]...)
			continue
		}
		i++
	}
	return affected, nil
}

// crosses reports whether a finite-priced resting order crosses against a
// finite-priced incoming order (buy: resting ask <= buy limit; sell:
// resting bid >= sell limit).
func crosses(incoming, resting *Order) bool {
	if incoming.Side == Buy {
		return resting.Limit.Ticks() <= incoming.Limit.Ticks()
	}
	return resting.Limit.Ticks() >= incoming.Limit.Ticks()
}

// tradePriceFor picks the execution price for a match: the incoming
// order's limit, unless the incoming order is market and the resting
// order is finite, in which case the resting order's limit governs.
func tradePriceFor(incoming, resting *Order) amount.Price {
	if incoming.Limit.IsMarket() {
		return resting.Limit
	}
	return incoming.Limit
}

func (b *Book) insert(o *Order) {
	if o.Side == Buy {
		b.bids = insertSorted(b.bids, o, bidBetter)
	} else {
		b.asks = insertSorted(b.asks, o, askBetter)
	}
}

// insertSorted inserts o immediately before the first existing entry that
// better ranks worse than o, preserving FIFO order among ties.
func insertSorted(side []*Order, o *Order, better func(a, b *Order) bool) []*Order {
	idx := len(side)
	for i, r := range side {
		if better(o, r) {
			idx = i
			break
		}
	}
	side = append(side, nil)
	copy(side[idx+1:], side[idx:])
	side[idx] = o
	return side
}

func bidBetter(a, b *Order) bool {
	if a.Limit.IsMarket() != b.Limit.IsMarket() {
		return a.Limit.IsMarket()
	}
	if a.Limit.IsMarket() {
		return false
	}
	return a.Limit.Ticks() > b.Limit.Ticks()
}

func askBetter(a, b *Order) bool {
	if a.Limit.IsMarket() != b.Limit.IsMarket() {
		return a.Limit.IsMarket()
	}
	if a.Limit.IsMarket() {
		return false
	}
	return a.Limit.Ticks() < b.Limit.Ticks()
}

// Bids returns the resting buy side, best first. The returned slice is
// shared with the book; callers must not mutate it.
func (b *Book) Bids() []*Order {
	return b.bids
}

// Asks returns the resting sell side, best first.
func (b *Book) Asks() []*Order {
	return b.asks
}

package orderbook

import "github.com/marketlink/marketlink/amount"

// Level is one consolidated price point: a price (or the market sentinel)
// and the summed resting quantity at that price.
type Level struct {
	Price amount.Price
	Qty   amount.Quantity
}

// consolidate collapses consecutive same-price resting orders into summed
// levels, skipping any order that is already fully filled but not yet
// removed from the side.
func consolidate(side []*Order) []Level {
	var levels []Level
	for _, o := range side {
		if o.IsFilled() {
			continue
		}
		qty := o.QtyLeft()
		if n := len(levels); n > 0 && levels[n-1].Price.Equal(o.Limit) {
			levels[n-1].Qty += qty
			continue
		}
		levels = append(levels, Level{Price: o.Limit, Qty: qty})
	}
	return levels
}

// BidLevels returns the consolidated buy side, best price first.
func (b *Book) BidLevels() []Level {
	return consolidate(b.bids)
}

// AskLevels returns the consolidated sell side, best price first.
func (b *Book) AskLevels() []Level {
	return consolidate(b.asks)
}

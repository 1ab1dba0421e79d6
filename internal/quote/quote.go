// Package quote derives the top-of-book summary the engine recomputes
// after every book mutation (spec.md section 4.6).
package quote

import (
	"bourse/internal/book"
	"bourse/internal/common"
	"bourse/internal/store"
)

// Quote is the full top-of-book summary. Bid/Ask are -1 when their side
// is empty. LastPrice/LastQty/LastTime are sticky: they only move on a
// cross, never on a resting-order book mutation in isolation.
type Quote struct {
	Bid       int64
	BidSize   uint64
	BidDepth  uint64
	Ask       int64
	AskSize   uint64
	AskDepth  uint64
	LastPrice int64
	LastQty   uint64
	LastTime  string
	QuoteTime string
}

// New returns the empty quote (no resting orders, no trade yet).
func New() *Quote {
	return &Quote{Bid: -1, Ask: -1}
}

// Recompute refreshes every book-derived field from b, leaving the
// Last* trade fields untouched — those are updated only by RecordCross.
// remainingOf resolves an order id to its live remaining quantity, since
// the book itself holds no quantities (spec.md section 9).
func (q *Quote) Recompute(b *book.Book, remainingOf func(store.OrderID) uint64, now string) {
	q.Bid, q.BidSize, q.BidDepth = sideSummary(b, common.Buy, remainingOf)
	q.Ask, q.AskSize, q.AskDepth = sideSummary(b, common.Sell, remainingOf)
	q.QuoteTime = now
}

// RecordCross updates the sticky last-trade fields after a fill.
// Callers still owe the quote a Recompute for the book-derived fields.
func (q *Quote) RecordCross(price int64, qty uint64, at string) {
	q.LastPrice = price
	q.LastQty = qty
	q.LastTime = at
}

func sideSummary(b *book.Book, side common.Side, remainingOf func(store.OrderID) uint64) (price int64, size uint64, depth uint64) {
	levels := b.Levels(side)
	if len(levels) == 0 {
		return -1, 0, 0
	}
	price = levels[0].Price
	for i, lvl := range levels {
		var levelQty uint64
		for _, id := range lvl.Orders {
			levelQty += remainingOf(id)
		}
		depth += levelQty
		if i == 0 {
			size = levelQty
		}
	}
	return price, size, depth
}

package quote

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"bourse/internal/book"
	"bourse/internal/common"
	"bourse/internal/store"
)

func TestNewQuoteIsEmpty(t *testing.T) {
	q := New()
	assert.EqualValues(t, -1, q.Bid)
	assert.EqualValues(t, -1, q.Ask)
}

func TestRecomputeSumsBestLevelAndDepth(t *testing.T) {
	b := book.New()
	b.InsertLimit(1, common.Buy, 100)
	b.InsertLimit(2, common.Buy, 100)
	b.InsertLimit(3, common.Buy, 99)

	remaining := map[store.OrderID]uint64{1: 5, 2: 7, 3: 20}
	q := New()
	q.Recompute(b, func(id store.OrderID) uint64 { return remaining[id] }, "t1")

	assert.EqualValues(t, 100, q.Bid)
	assert.EqualValues(t, 12, q.BidSize)
	assert.EqualValues(t, 32, q.BidDepth)
	assert.EqualValues(t, -1, q.Ask)
	assert.Equal(t, "t1", q.QuoteTime)
}

func TestRecordCrossSetsLastTradeAndRecomputeKeepsIt(t *testing.T) {
	q := New()
	q.RecordCross(150, 10, "t1")
	assert.EqualValues(t, 150, q.LastPrice)
	assert.EqualValues(t, 10, q.LastQty)
	assert.Equal(t, "t1", q.LastTime)

	b := book.New()
	q.Recompute(b, func(store.OrderID) uint64 { return 0 }, "t2")
	assert.EqualValues(t, 150, q.LastPrice, "last trade fields are untouched by Recompute")
}

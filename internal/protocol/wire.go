// Package protocol implements the wire boundary named in spec.md
// section 6: the binary order-book format, Order JSON, Quote JSON, and
// the execution record shape, plus the one open question that lives at
// this boundary (the `stock`/`symbol` alias rule for the external
// front-end's place-order request body).
package protocol

import (
	"bytes"
	"encoding/binary"

	"bourse/internal/book"
	"bourse/internal/common"
	"bourse/internal/quote"
	"bourse/internal/store"
)

// FillJSON is one leg of an order's fill history.
type FillJSON struct {
	Price int64  `json:"price"`
	Qty   uint64 `json:"qty"`
	Ts    string `json:"ts"`
}

// OrderJSON is the full order snapshot shape named in spec.md section 6.
type OrderJSON struct {
	OK          bool       `json:"ok"`
	Venue       string     `json:"venue"`
	Symbol      string     `json:"symbol"`
	Direction   string     `json:"direction"`
	OriginalQty uint64     `json:"originalQty"`
	Qty         uint64     `json:"qty"`
	Price       int64      `json:"price"`
	OrderType   string     `json:"orderType"`
	ID          uint64     `json:"id"`
	Account     uint32     `json:"account"`
	Ts          string     `json:"ts"`
	TotalFilled uint64     `json:"totalFilled"`
	Open        bool       `json:"open"`
	Fills       []FillJSON `json:"fills"`
}

// EncodeOrder builds the Order JSON view of o, resolving its fills
// through s. venue/symbol are stamped in since the Order itself carries
// neither — each engine instance owns exactly one (venue, symbol).
func EncodeOrder(o *store.Order, s *store.Store, venue, symbol string) OrderJSON {
	fills := s.Fills(o)
	out := make([]FillJSON, len(fills))
	for i, f := range fills {
		out[i] = FillJSON{Price: f.Price, Qty: f.Qty, Ts: f.Ts}
	}
	return OrderJSON{
		OK:          true,
		Venue:       venue,
		Symbol:      symbol,
		Direction:   o.Side.String(),
		OriginalQty: o.OriginalQty,
		Qty:         o.Remaining,
		Price:       o.Price,
		OrderType:   o.Type.String(),
		ID:          o.ID,
		Account:     o.Account,
		Ts:          o.CreatedAt,
		TotalFilled: o.TotalFilled,
		Open:        o.Open,
		Fills:       out,
	}
}

// QuoteJSON is the quote snapshot shape named in spec.md section 6.
// Bid/Ask/LastTrade/LastSize/Last are pointers so an empty side or a
// not-yet-traded symbol omits them from the encoded JSON, matching the
// spec's "plus optional ..." wording.
type QuoteJSON struct {
	OK        bool    `json:"ok"`
	Symbol    string  `json:"symbol"`
	Venue     string  `json:"venue"`
	BidSize   uint64  `json:"bidSize"`
	AskSize   uint64  `json:"askSize"`
	BidDepth  uint64  `json:"bidDepth"`
	AskDepth  uint64  `json:"askDepth"`
	QuoteTime string  `json:"quoteTime"`
	Bid       *int64  `json:"bid,omitempty"`
	Ask       *int64  `json:"ask,omitempty"`
	LastTrade *int64  `json:"lastTrade,omitempty"`
	LastSize  *uint64 `json:"lastSize,omitempty"`
	Last      *string `json:"last,omitempty"`
}

// EncodeQuote builds the Quote JSON view of q.
func EncodeQuote(q *quote.Quote, venue, symbol string) QuoteJSON {
	out := QuoteJSON{
		OK:        true,
		Symbol:    symbol,
		Venue:     venue,
		BidSize:   q.BidSize,
		AskSize:   q.AskSize,
		BidDepth:  q.BidDepth,
		AskDepth:  q.AskDepth,
		QuoteTime: q.QuoteTime,
	}
	if q.Bid >= 0 {
		out.Bid = &q.Bid
	}
	if q.Ask >= 0 {
		out.Ask = &q.Ask
	}
	if q.LastTime != "" {
		out.LastTrade = &q.LastPrice
		out.LastSize = &q.LastQty
		out.Last = &q.LastTime
	}
	return out
}

// ExecutionJSON is the execution record shape named in spec.md section
// 4.7: the participant's own order snapshot plus the trade's shared
// details.
type ExecutionJSON struct {
	OrderJSON
	StandingID       uint64 `json:"standingId"`
	IncomingID       uint64 `json:"incomingId"`
	Price            int64  `json:"price"`
	Filled           uint64 `json:"filled"`
	FilledAt         string `json:"filledAt"`
	StandingComplete bool   `json:"standingComplete"`
	IncomingComplete bool   `json:"incomingComplete"`
}

// EncodeOrderBookBinary renders the big-endian binary order-book
// format: bids then asks, best-to-worst, FIFO within a level, one
// 8-byte (qty uint32, price uint32) record per resting order, each
// side terminated by an 8-byte zero record (spec.md section 6).
func EncodeOrderBookBinary(b *book.Book, remainingOf func(store.OrderID) uint64) []byte {
	var buf bytes.Buffer
	writeBinarySide(&buf, b.Levels(common.Buy), remainingOf)
	writeBinarySide(&buf, b.Levels(common.Sell), remainingOf)
	return buf.Bytes()
}

func writeBinarySide(buf *bytes.Buffer, levels []book.LevelView, remainingOf func(store.OrderID) uint64) {
	var rec [8]byte
	for _, lvl := range levels {
		for _, id := range lvl.Orders {
			binary.BigEndian.PutUint32(rec[0:4], uint32(remainingOf(id)))
			binary.BigEndian.PutUint32(rec[4:8], uint32(lvl.Price))
			buf.Write(rec[:])
		}
	}
	buf.Write(make([]byte, 8))
}

// PlaceOrderRequest is the external front-end's POST .../orders body
// (spec.md section 6). Decoding the HTTP request itself is out of
// scope, but the `stock`/`symbol` alias open question is part of this
// wire boundary and is preserved here as specified: if both are
// present, `stock` wins.
type PlaceOrderRequest struct {
	Venue     string `json:"venue"`
	Symbol    string `json:"symbol"`
	Stock     string `json:"stock"`
	Direction string `json:"direction"`
	OrderType string `json:"orderType"`
	Account   string `json:"account"`
	Qty       uint64 `json:"qty"`
	Price     int64  `json:"price"`
}

// ResolveSymbol implements the stock/symbol alias rule from spec.md
// section 9: `stock`, when present, wins over `symbol`.
func (r PlaceOrderRequest) ResolveSymbol() string {
	if r.Stock != "" {
		return r.Stock
	}
	return r.Symbol
}

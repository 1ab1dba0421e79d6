// Package store holds the two append-only logs the engine never frees:
// the dense order-id -> Order mapping (spec.md section 4.3) and the
// global fill log each Order's fill list indexes into (spec.md section
// 9, "Shared Fill ownership"). Nothing here understands matching; it is
// pure bookkeeping, grown in fixed chunks so gaps are visible absences
// rather than implicit zero values.
package store

import (
	"bourse/internal/common"
)

type OrderID = uint64
type FillID = uint64

// Fill is a single trade leg, referenced by FillID from both
// participating Orders' FillIDs lists. It lives in the store's
// append-only log for as long as the process runs (spec.md section 3:
// "its lifetime = the lifetime of the longer-living of the two
// owners", which in practice is the process).
type Fill struct {
	Price int64
	Qty   uint64
	Ts    string
}

// Order is immutable after creation except for the residual fields
// (Remaining, TotalFilled, Open, FillIDs) mutated by the matching loop.
// Invariants (spec.md section 3): Remaining+TotalFilled == OriginalQty
// while the order is open or has filled completely; Open iff
// Remaining > 0, except market/ioc/fok orders which are never open once
// PlaceOrder returns. Closing an order by cancellation, or discarding
// the unfilled remainder of a market/ioc/fok order, sets Remaining to 0
// without adding to TotalFilled, so for such an order the sum can be
// less than OriginalQty.
type Order struct {
	ID          OrderID
	Account     uint32
	Side        common.Side
	Type        common.OrderType
	OriginalQty uint64
	Remaining   uint64
	TotalFilled uint64
	// Price is the submitted limit price for limit/ioc/fok orders. For
	// market orders it is forced to 0 after the placement call returns,
	// even though any fills it generated were correctly priced against
	// the standing order (spec.md section 9, preserved open question).
	Price     int64
	CreatedAt string
	FillIDs   []FillID
	Open      bool
}

const growChunk = 1024

// Store is the dense, append-only order-id -> *Order mapping. Ids are
// assigned externally (by clock.IDGen) and are always dense and
// increasing, so Put almost always appends; the chunked growth exists
// so a caller that skips an id (which should never happen, but the
// data structure doesn't rely on it not happening) still gets an
// observably-absent slot rather than an index panic.
type Store struct {
	orders []*Order
	fills  []Fill
}

func New() *Store {
	return &Store{}
}

func (s *Store) ensure(id OrderID) {
	if OrderID(len(s.orders)) > id {
		return
	}
	newLen := ((int(id) / growChunk) + 1) * growChunk
	grown := make([]*Order, newLen)
	copy(grown, s.orders)
	s.orders = grown
}

// Put stores (or overwrites) the order at its own id.
func (s *Store) Put(o *Order) {
	s.ensure(o.ID)
	s.orders[o.ID] = o
}

// Get returns the order at id, or ok=false if the slot is absent or
// out of range — spec.md's "No such ID" lookup error.
func (s *Store) Get(id OrderID) (*Order, bool) {
	if id >= OrderID(len(s.orders)) {
		return nil, false
	}
	o := s.orders[id]
	return o, o != nil
}

// AddFill appends a fill to the shared log and returns its id.
func (s *Store) AddFill(f Fill) FillID {
	id := FillID(len(s.fills))
	s.fills = append(s.fills, f)
	return id
}

// Fill returns a previously recorded fill by id.
func (s *Store) Fill(id FillID) Fill {
	return s.fills[id]
}

// Fills resolves an order's FillIDs into the actual Fill records, in
// the order they occurred, for JSON rendering.
func (s *Store) Fills(o *Order) []Fill {
	out := make([]Fill, len(o.FillIDs))
	for i, id := range o.FillIDs {
		out[i] = s.fills[id]
	}
	return out
}

// OrderSlots reports the size of the dense order-id array, for the
// __DEBUG_MEMORY__ introspection verb.
func (s *Store) OrderSlots() int {
	return len(s.orders)
}

// FillCount reports the number of fills recorded so far, for the
// __DEBUG_MEMORY__ introspection verb.
func (s *Store) FillCount() int {
	return len(s.fills)
}

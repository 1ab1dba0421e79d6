// Package book implements the two-sided price-level order book
// (spec.md section 4.4): per-side doubly linked lists of price Levels,
// each owning a FIFO doubly linked list of OrderNodes. Levels and
// OrderNodes are arena-allocated and addressed by index, never freed
// back to the OS, with free-lists recycling slots — see spec.md
// section 9 for why. A tidwall/btree.BTreeG per side is kept purely as
// a price -> Level lookup index (same library the teacher used for its
// own price levels); it is never consulted during FIFO traversal, only
// to answer "does this price already have a Level" and "where does a
// new Level splice in".
package book

import (
	"github.com/tidwall/btree"

	"bourse/internal/common"
	"bourse/internal/store"
)

type bookSide struct {
	head, tail levelIdx
	index      *btree.BTreeG[*Level]
}

// Book is one (venue, symbol)'s live limit order book.
type Book struct {
	levels     []*Level
	freeLevels []levelIdx
	nodes      []*OrderNode
	freeNodes  []nodeIdx

	bids bookSide
	asks bookSide

	byOrder map[store.OrderID]nodeIdx
}

// New creates an empty book. Bids are ordered highest-price-first,
// asks lowest-price-first, exactly as the teacher orders its own
// btree-backed price levels.
func New() *Book {
	return &Book{
		bids: bookSide{
			head:  nilIdx,
			tail:  nilIdx,
			index: btree.NewBTreeG(func(a, b *Level) bool { return a.price > b.price }),
		},
		asks: bookSide{
			head:  nilIdx,
			tail:  nilIdx,
			index: btree.NewBTreeG(func(a, b *Level) bool { return a.price < b.price }),
		},
		byOrder: make(map[store.OrderID]nodeIdx),
	}
}

func (b *Book) sideFor(side common.Side) *bookSide {
	if side == common.Buy {
		return &b.bids
	}
	return &b.asks
}

// BestPrice returns the best (head) price on side, or ok=false if that
// side of the book is empty.
func (b *Book) BestPrice(side common.Side) (price int64, ok bool) {
	s := b.sideFor(side)
	if s.head == nilIdx {
		return 0, false
	}
	return b.levels[s.head].price, true
}

// LevelView is a read-only snapshot of one price level's FIFO, used by
// the engine to compute quote sizes/depths and by tests to assert book
// shape. It is not kept live — mutating the book invalidates it.
type LevelView struct {
	Price  int64
	Orders []store.OrderID
}

// Levels returns every level on side, best to worst.
func (b *Book) Levels(side common.Side) []LevelView {
	s := b.sideFor(side)
	var out []LevelView
	for li := s.head; li != nilIdx; li = b.levels[li].nextLevel {
		lvl := b.levels[li]
		ids := make([]store.OrderID, 0, lvl.count)
		for ni := lvl.head; ni != nilIdx; ni = b.nodes[ni].next {
			ids = append(ids, b.nodes[ni].orderID)
		}
		out = append(out, LevelView{Price: lvl.price, Orders: ids})
	}
	return out
}

// InsertLimit books a live limit order on its own side at its price,
// appending to the tail of that price's FIFO (spec.md section 4.4).
func (b *Book) InsertLimit(orderID store.OrderID, side common.Side, price int64) {
	s := b.sideFor(side)
	lvl, ok := s.index.Get(&Level{price: price})
	if !ok {
		lvl = b.allocLevel(side, price)
		b.spliceLevel(s, lvl)
		s.index.Set(lvl)
	}
	ni := b.allocNode(orderID, lvl.idx)
	b.appendNodeTail(lvl, ni)
	b.byOrder[orderID] = ni
}

// CancelByOrder removes a live limit order's OrderNode from wherever it
// sits in its Level's FIFO (not necessarily the head), collapsing the
// Level if it becomes empty. Returns false if the order has no
// resting OrderNode (already filled, cancelled, or never booked).
func (b *Book) CancelByOrder(orderID store.OrderID) bool {
	ni, ok := b.byOrder[orderID]
	if !ok {
		return false
	}
	node := b.nodes[ni]
	lvl := b.levels[node.levelIdx]
	b.unlinkNode(lvl, ni)
	delete(b.byOrder, orderID)
	b.freeNode(ni)
	if lvl.count == 0 {
		b.removeLevel(lvl)
	}
	return true
}

// CleanupHead strips fully-filled OrderNodes from the head of side,
// collapsing any Level that empties out, and stops at the first node
// whose order is still open. Only the head region can have closed
// nodes immediately after a match, because matching always consumes
// strictly from the head outward (spec.md section 4.4).
func (b *Book) CleanupHead(side common.Side, isOpen func(store.OrderID) bool) {
	s := b.sideFor(side)
	for s.head != nilIdx {
		lvl := b.levels[s.head]
		for lvl.head != nilIdx && !isOpen(b.nodes[lvl.head].orderID) {
			head := lvl.head
			b.unlinkNode(lvl, head)
			delete(b.byOrder, b.nodes[head].orderID)
			b.freeNode(head)
		}
		if lvl.count == 0 {
			b.removeLevel(lvl)
			continue
		}
		return
	}
}

// Feasibility reports whether side contains at least qty of matchable
// volume at a price better-or-equal to limitPrice. It is implemented
// with running subtraction against a shrinking target rather than an
// accumulating sum, so a pathological book with near-overflow
// quantities can't overflow the check itself (spec.md section 4.4).
func (b *Book) Feasibility(side common.Side, qty uint64, limitPrice int64, remainingOf func(store.OrderID) uint64) bool {
	need := qty
	if need == 0 {
		return true
	}
	s := b.sideFor(side)
	for li := s.head; li != nilIdx; li = b.levels[li].nextLevel {
		lvl := b.levels[li]
		if !priceMatchable(side, lvl.price, limitPrice) {
			break
		}
		for ni := lvl.head; ni != nilIdx; ni = b.nodes[ni].next {
			avail := remainingOf(b.nodes[ni].orderID)
			if avail >= need {
				return true
			}
			need -= avail
		}
	}
	return false
}

// WalkMatchable visits, in price-then-FIFO order, every open order on
// side that an incoming order at limitPrice could cross with. isMarket
// orders never stop on price. visit returns true to stop early (the
// incoming order has been fully filled).
func (b *Book) WalkMatchable(side common.Side, limitPrice int64, isMarket bool, visit func(orderID store.OrderID, levelPrice int64) (stop bool)) {
	s := b.sideFor(side)
	for li := s.head; li != nilIdx; li = b.levels[li].nextLevel {
		lvl := b.levels[li]
		if !isMarket && !priceMatchable(side, lvl.price, limitPrice) {
			return
		}
		for ni := lvl.head; ni != nilIdx; ni = b.nodes[ni].next {
			if visit(b.nodes[ni].orderID, lvl.price) {
				return
			}
		}
	}
}

// priceMatchable reports whether a resting Level on `side` at
// levelPrice crosses an incoming order limited at limitPrice. Trades
// execute at the resting order's own limit, so any price improvement
// goes to the incoming order; this check is only about whether the two
// limits cross at all.
func priceMatchable(side common.Side, levelPrice, limitPrice int64) bool {
	if side == common.Sell {
		return levelPrice <= limitPrice
	}
	return levelPrice >= limitPrice
}

// --- arena management -------------------------------------------------

func (b *Book) allocLevel(side common.Side, price int64) *Level {
	var idx levelIdx
	if n := len(b.freeLevels); n > 0 {
		idx = b.freeLevels[n-1]
		b.freeLevels = b.freeLevels[:n-1]
	} else {
		idx = levelIdx(len(b.levels))
		b.levels = append(b.levels, nil)
	}
	lvl := &Level{idx: idx, side: side, price: price, head: nilIdx, tail: nilIdx, prevLevel: nilIdx, nextLevel: nilIdx}
	b.levels[idx] = lvl
	return lvl
}

func (b *Book) freeLevelSlot(idx levelIdx) {
	b.levels[idx] = nil
	b.freeLevels = append(b.freeLevels, idx)
}

func (b *Book) allocNode(orderID store.OrderID, lvlIdx levelIdx) nodeIdx {
	var idx nodeIdx
	if n := len(b.freeNodes); n > 0 {
		idx = b.freeNodes[n-1]
		b.freeNodes = b.freeNodes[:n-1]
	} else {
		idx = nodeIdx(len(b.nodes))
		b.nodes = append(b.nodes, nil)
	}
	b.nodes[idx] = &OrderNode{orderID: orderID, levelIdx: lvlIdx, prev: nilIdx, next: nilIdx}
	return idx
}

func (b *Book) freeNode(idx nodeIdx) {
	b.nodes[idx] = nil
	b.freeNodes = append(b.freeNodes, idx)
}

func (b *Book) appendNodeTail(lvl *Level, ni nodeIdx) {
	node := b.nodes[ni]
	node.prev = lvl.tail
	node.next = nilIdx
	if lvl.tail != nilIdx {
		b.nodes[lvl.tail].next = ni
	} else {
		lvl.head = ni
	}
	lvl.tail = ni
	lvl.count++
}

func (b *Book) unlinkNode(lvl *Level, ni nodeIdx) {
	node := b.nodes[ni]
	if node.prev != nilIdx {
		b.nodes[node.prev].next = node.next
	} else {
		lvl.head = node.next
	}
	if node.next != nilIdx {
		b.nodes[node.next].prev = node.prev
	} else {
		lvl.tail = node.prev
	}
	lvl.count--
}

// spliceLevel inserts a newly allocated, as-yet-unlinked Level into its
// side's doubly linked list in sorted order, using the btree purely to
// find the successor it should splice in before.
func (b *Book) spliceLevel(s *bookSide, lvl *Level) {
	var successor *Level
	s.index.Ascend(lvl, func(item *Level) bool {
		successor = item
		return false
	})

	if successor == nil {
		lvl.prevLevel = s.tail
		lvl.nextLevel = nilIdx
		if s.tail != nilIdx {
			b.levels[s.tail].nextLevel = lvl.idx
		} else {
			s.head = lvl.idx
		}
		s.tail = lvl.idx
		return
	}

	prevIdx := successor.prevLevel
	lvl.prevLevel = prevIdx
	lvl.nextLevel = successor.idx
	successor.prevLevel = lvl.idx
	if prevIdx != nilIdx {
		b.levels[prevIdx].nextLevel = lvl.idx
	} else {
		s.head = lvl.idx
	}
}

func (b *Book) removeLevel(lvl *Level) {
	s := b.sideFor(lvl.side)
	if lvl.prevLevel != nilIdx {
		b.levels[lvl.prevLevel].nextLevel = lvl.nextLevel
	} else {
		s.head = lvl.nextLevel
	}
	if lvl.nextLevel != nilIdx {
		b.levels[lvl.nextLevel].prevLevel = lvl.prevLevel
	} else {
		s.tail = lvl.prevLevel
	}
	s.index.Delete(lvl)
	b.freeLevelSlot(lvl.idx)
}

// AssertInvariants panics if the book violates any of the structural
// invariants spec.md section 4.4/8 requires: strictly sorted levels
// with no gaps, no empty levels, and every resting OrderNode pointing
// at an order isOpen still reports open.
func (b *Book) AssertInvariants(isOpen func(store.OrderID) bool) {
	b.assertSide(common.Buy, isOpen)
	b.assertSide(common.Sell, isOpen)
}

func (b *Book) assertSide(side common.Side, isOpen func(store.OrderID) bool) {
	s := b.sideFor(side)
	var prevPrice int64
	first := true
	for li := s.head; li != nilIdx; li = b.levels[li].nextLevel {
		lvl := b.levels[li]
		if lvl.count == 0 {
			panic("empty level left on book")
		}
		if !first {
			if side == common.Buy && lvl.price >= prevPrice {
				panic("bid levels not strictly descending")
			}
			if side == common.Sell && lvl.price <= prevPrice {
				panic("ask levels not strictly ascending")
			}
		}
		prevPrice = lvl.price
		first = false

		n := 0
		for ni := lvl.head; ni != nilIdx; ni = b.nodes[ni].next {
			if !isOpen(b.nodes[ni].orderID) {
				panic("resting order node references a closed order")
			}
			n++
		}
		if n != lvl.count {
			panic("level FIFO length disagrees with its count")
		}
	}
}

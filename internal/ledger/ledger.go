// Package ledger maintains per-account share and cash positions with
// saturating arithmetic (spec.md section 4.2). It owns no knowledge of
// orders or books; the engine decides *when* a trade should move money,
// the ledger only ever clamps and records the result.
package ledger

import (
	"errors"
	"math"

	"bourse/internal/common"
)

// ErrAccountOutOfRange is TOO_HIGH_ACCOUNT in spec.md's error taxonomy.
var ErrAccountOutOfRange = errors.New("account id out of range")

// Account is a dense ledger slot. Orders is an append-only, non-owning
// list of order ids the account has ever placed (OrderStore owns the
// Orders themselves).
type Account struct {
	ID     uint32
	Name   string
	Shares int32
	Cash   int32 // cents
	PosMin int32
	PosMax int32
	Orders []uint64
}

// Ledger is a dense array indexed by account id, exactly like
// internal/store.Store is for orders — gaps are nil until created.
type Ledger struct {
	cap      uint32
	accounts []*Account
}

// New creates a ledger that accepts account ids in [0, cap).
func New(cap uint32) *Ledger {
	return &Ledger{cap: cap}
}

// InRange reports whether id is a legal account slot, without creating
// or looking anything up. Lets a caller order TOO_HIGH_ACCOUNT ahead of
// other admission checks without paying for account creation first.
func (l *Ledger) InRange(id uint32) bool {
	return id < l.cap
}

// LookupOrCreate resolves an account id to its Account, creating it on
// first use. If the slot is already occupied the stored name wins —
// the name passed on a later call for the same id is ignored, per
// spec.md section 4.2.
func (l *Ledger) LookupOrCreate(name string, id uint32) (*Account, error) {
	if id >= l.cap {
		return nil, ErrAccountOutOfRange
	}
	if l.accounts == nil {
		l.accounts = make([]*Account, l.cap)
	}
	if acc := l.accounts[id]; acc != nil {
		return acc, nil
	}
	acc := &Account{ID: id, Name: name}
	l.accounts[id] = acc
	return acc, nil
}

// Lookup returns the account at id if it has been created, without
// creating it. Used by STATUSALL (spec.md section 4.8).
func (l *Ledger) Lookup(id uint32) (*Account, bool) {
	if l.accounts == nil || id >= uint32(len(l.accounts)) {
		return nil, false
	}
	acc := l.accounts[id]
	return acc, acc != nil
}

// All returns every account that has been created so far, in id order,
// for the __SCORES__ scoreboard verb.
func (l *Ledger) All() []*Account {
	var out []*Account
	for _, acc := range l.accounts {
		if acc != nil {
			out = append(out, acc)
		}
	}
	return out
}

// RecordOrder appends an order id to the account's owned-orders list.
func (l *Ledger) RecordOrder(acc *Account, orderID uint64) {
	acc.Orders = append(acc.Orders, orderID)
}

// satBound is the symmetric saturation boundary named in spec.md
// section 3: balances clamp to +-(2^31 - 1), not the full int32 range,
// so overflow is always a clamp and never a sign flip.
const satBound = int64(math.MaxInt32)

func saturate(v int64) int32 {
	if v > satBound {
		return int32(satBound)
	}
	if v < -satBound {
		return int32(-satBound)
	}
	return int32(v)
}

// saturatingCents multiplies qty by price and clamps the product to the
// same boundary before it is ever added to a balance, so a pathological
// qty*price can't wrap an int64 accumulator either.
func saturatingCents(qty uint64, price int64) int64 {
	if qty == 0 || price == 0 {
		return 0
	}
	if qty > uint64(satBound)/uint64(price) {
		return satBound
	}
	return int64(qty) * price
}

// ApplyTrade adjusts shares and cash for one fill on one side of a
// trade. The caller (the matching engine) is responsible for skipping
// this entirely on self-trades — the ledger itself has no notion of
// "the other side" and always applies what it is told.
func (l *Ledger) ApplyTrade(acc *Account, qty uint64, price int64, side common.Side) {
	cents := saturatingCents(qty, price)
	switch side {
	case common.Buy:
		acc.Shares = saturate(int64(acc.Shares) + int64(qty))
		acc.Cash = saturate(int64(acc.Cash) - cents)
	case common.Sell:
		acc.Shares = saturate(int64(acc.Shares) - int64(qty))
		acc.Cash = saturate(int64(acc.Cash) + cents)
	}
	if acc.Shares < acc.PosMin {
		acc.PosMin = acc.Shares
	}
	if acc.Shares > acc.PosMax {
		acc.PosMax = acc.Shares
	}
}

// Package engine implements the matching engine itself (spec.md
// section 4.5): admission, the FOK feasibility pre-check, the matching
// loop, post-match booking, cancellation, quote recomputation and event
// emission. An Engine is a plain value — the process wires up exactly
// one, tests instantiate as many as they like (spec.md section 9,
// "Global mutable state").
package engine

import (
	"encoding/json"

	"bourse/internal/book"
	"bourse/internal/clock"
	"bourse/internal/common"
	"bourse/internal/events"
	"bourse/internal/ledger"
	"bourse/internal/metrics"
	"bourse/internal/protocol"
	"bourse/internal/quote"
	"bourse/internal/store"
)

// Engine owns one (venue, symbol) matching state. It is not safe for
// concurrent use by design (spec.md section 5): the surrounding
// transport is responsible for serializing commands into it one at a
// time.
type Engine struct {
	Venue  string
	Symbol string

	clock   *clock.Clock
	ids     *clock.IDGen
	ledger  *ledger.Ledger
	store   *store.Store
	book    *book.Book
	quote   *quote.Quote
	emitter *events.Emitter
	metrics *metrics.Collector
}

// New creates an Engine for one (venue, symbol). acctCap and
// idCeiling are the configured bounds from spec.md sections 4.1/4.2;
// sink receives the TICKER/EXECUTION event stream (nil is fine — the
// engine works silently, used by tests that don't care about events).
func New(venue, symbol string, acctCap uint32, idCeiling uint64, sink events.Sink) *Engine {
	return &Engine{
		Venue:   venue,
		Symbol:  symbol,
		clock:   clock.New(),
		ids:     clock.NewIDGen(idCeiling),
		ledger:  ledger.New(acctCap),
		store:   store.New(),
		book:    book.New(),
		quote:   quote.New(),
		emitter: events.NewEmitter(venue, symbol, sink),
	}
}

// WithMetrics attaches a Collector the engine reports to as it places,
// rejects, cancels and fills orders. Optional — an Engine with no
// Collector attached behaves identically, just silently.
func (e *Engine) WithMetrics(c *metrics.Collector) *Engine {
	e.metrics = c
	return e
}

func opposite(side common.Side) common.Side {
	if side == common.Buy {
		return common.Sell
	}
	return common.Buy
}

// remainingOf resolves an order id to its live remaining quantity, the
// callback every book/quote operation that needs real quantities takes
// (the book and its Levels hold no quantities of their own).
func (e *Engine) remainingOf(id store.OrderID) uint64 {
	o, ok := e.store.Get(id)
	if !ok {
		return 0
	}
	return o.Remaining
}

func (e *Engine) isOpen(id store.OrderID) bool {
	o, ok := e.store.Get(id)
	return ok && o.Open
}

// PlaceOrder admits, matches and books an order (spec.md section 4.5).
func (e *Engine) PlaceOrder(name string, acctID uint32, qty uint64, price int64, side common.Side, typ common.OrderType) (*store.Order, error) {
	if e.ids.Exhausted() {
		e.rejectMetric(ErrTooManyOrders)
		return nil, ErrTooManyOrders
	}
	if !e.ledger.InRange(acctID) {
		e.rejectMetric(ErrTooHighAccount)
		return nil, ErrTooHighAccount
	}
	if price < 0 || qty < 1 {
		e.rejectMetric(ErrSillyValue)
		return nil, ErrSillyValue
	}
	if side != common.Buy && side != common.Sell {
		e.rejectMetric(ErrSillyValue)
		return nil, ErrSillyValue
	}
	switch typ {
	case common.Limit, common.Market, common.IOC, common.FOK:
	default:
		e.rejectMetric(ErrSillyValue)
		return nil, ErrSillyValue
	}

	acc, err := e.ledger.LookupOrCreate(name, acctID)
	if err != nil {
		e.rejectMetric(ErrTooHighAccount)
		return nil, ErrTooHighAccount
	}

	id, ok := e.ids.Next()
	if !ok {
		e.rejectMetric(ErrTooManyOrders)
		return nil, ErrTooManyOrders
	}

	now := e.clock.Now()
	incoming := &store.Order{
		ID:          id,
		Account:     acctID,
		Side:        side,
		Type:        typ,
		OriginalQty: qty,
		Remaining:   qty,
		Price:       price,
		CreatedAt:   now,
		Open:        true,
	}
	e.store.Put(incoming)
	e.ledger.RecordOrder(acc, id)
	if e.metrics != nil {
		e.metrics.OrdersPlaced.WithLabelValues(typ.String(), side.String()).Inc()
	}

	changed := false

	runFOK := typ != common.FOK || e.book.Feasibility(opposite(side), qty, price, e.remainingOf)
	if runFOK {
		isMarket := typ == common.Market
		e.book.WalkMatchable(opposite(side), price, isMarket, func(standingID store.OrderID, levelPrice int64) bool {
			standing, ok := e.store.Get(standingID)
			if !ok {
				return false
			}
			traded := standing.Remaining
			if incoming.Remaining < traded {
				traded = incoming.Remaining
			}
			tradePrice := standing.Price

			standing.Remaining -= traded
			standing.TotalFilled += traded
			incoming.Remaining -= traded
			incoming.TotalFilled += traded

			fillID := e.store.AddFill(store.Fill{Price: tradePrice, Qty: traded, Ts: now})
			standing.FillIDs = append(standing.FillIDs, fillID)
			incoming.FillIDs = append(incoming.FillIDs, fillID)
			changed = true
			if e.metrics != nil {
				e.metrics.Fills.Inc()
			}

			if standing.Remaining == 0 {
				standing.Open = false
			}
			haltLoop := false
			if incoming.Remaining == 0 {
				incoming.Open = false
				haltLoop = true
			}

			standingAcc, _ := e.ledger.Lookup(standing.Account)
			if standingAcc == nil || standingAcc.Name != acc.Name {
				if standingAcc != nil {
					e.ledger.ApplyTrade(standingAcc, traded, tradePrice, standing.Side)
				}
				e.ledger.ApplyTrade(acc, traded, tradePrice, side)
			}

			e.quote.RecordCross(tradePrice, traded, now)
			e.emitExecutions(standing, incoming, tradePrice, traded, now)

			return haltLoop
		})
	}

	e.book.CleanupHead(opposite(side), e.isOpen)

	if typ == common.Market {
		incoming.Price = 0
	}
	if incoming.Open {
		if typ == common.Limit {
			e.book.InsertLimit(incoming.ID, side, incoming.Price)
			changed = true
		} else {
			incoming.Open = false
			incoming.Remaining = 0
			changed = true
		}
	}

	if changed {
		e.recomputeAndTick()
	}

	return incoming, nil
}

// CancelOrder removes a resting limit order from the book (spec.md
// section 4.5).
func (e *Engine) CancelOrder(id store.OrderID) (*store.Order, error) {
	o, ok := e.store.Get(id)
	if !ok {
		return nil, ErrNoSuchOrder
	}
	if o.Type != common.Limit {
		return o, nil
	}
	e.book.CancelByOrder(o.ID)
	o.Open = false
	o.Remaining = 0
	if e.metrics != nil {
		e.metrics.OrdersCancelled.Inc()
	}
	e.recomputeAndTick()
	return o, nil
}

func (e *Engine) rejectMetric(err error) {
	if e.metrics != nil {
		e.metrics.OrdersRejected.WithLabelValues(err.Error()).Inc()
	}
}

// Status looks up an order by id for the STATUS verb.
func (e *Engine) Status(id store.OrderID) (*store.Order, bool) {
	return e.store.Get(id)
}

// StatusAll returns every order an account has ever placed, for the
// STATUSALL verb. Returns ErrAccountNotKnown if the account slot has
// never been used (spec.md section 7).
func (e *Engine) StatusAll(acctID uint32) ([]*store.Order, error) {
	acc, ok := e.ledger.Lookup(acctID)
	if !ok {
		return nil, ErrAccountNotKnown
	}
	out := make([]*store.Order, 0, len(acc.Orders))
	for _, id := range acc.Orders {
		if o, ok := e.store.Get(id); ok {
			out = append(out, o)
		}
	}
	return out, nil
}

// AccountName resolves an account id to its display name, for the
// __ACC_FROM_ID__ verb.
func (e *Engine) AccountName(acctID uint32) (string, bool) {
	acc, ok := e.ledger.Lookup(acctID)
	if !ok {
		return "", false
	}
	return acc.Name, true
}

// Quote returns the current top-of-book snapshot.
func (e *Engine) Quote() *quote.Quote {
	return e.quote
}

// OrderBookBinary renders the current book in the binary format
// ORDERBOOK_BINARY replies with.
func (e *Engine) OrderBookBinary() []byte {
	return protocol.EncodeOrderBookBinary(e.book, e.remainingOf)
}

// Now exposes the engine's clock, for the __TIMESTAMP__ verb.
func (e *Engine) Now() string {
	return e.clock.Now()
}

// VenueName and SymbolName expose the (venue, symbol) this engine owns,
// for the dispatcher's framing — kept as methods rather than field
// access so protocol.EngineAPI can be satisfied without protocol
// importing this package (it would cycle back through wire.go).
func (e *Engine) VenueName() string  { return e.Venue }
func (e *Engine) SymbolName() string { return e.Symbol }

// Scoreboard returns every account's current position, for the
// __SCORES__ verb.
func (e *Engine) Scoreboard() []*ledger.Account {
	return e.ledger.All()
}

// DebugMemory reports the size of the engine's two dense stores, for
// the __DEBUG_MEMORY__ verb.
func (e *Engine) DebugMemory() (orderSlots, fills int) {
	return e.store.OrderSlots(), e.store.FillCount()
}

// Store exposes the order store for encoding (OrderJSON needs it to
// resolve fills).
func (e *Engine) Store() *store.Store {
	return e.store
}

func (e *Engine) recomputeAndTick() {
	e.quote.Recompute(e.book, e.remainingOf, e.clock.Now())
	if e.metrics != nil {
		e.metrics.BookDepth.WithLabelValues("buy").Set(float64(e.quote.BidDepth))
		e.metrics.BookDepth.WithLabelValues("sell").Set(float64(e.quote.AskDepth))
	}
	body, _ := json.Marshal(protocol.EncodeQuote(e.quote, e.Venue, e.Symbol))
	e.emitter.Ticker(body)
}

func (e *Engine) emitExecutions(standing, incoming *store.Order, price int64, filled uint64, at string) {
	standingAcc, _ := e.ledger.Lookup(standing.Account)
	incomingAcc, _ := e.ledger.Lookup(incoming.Account)

	e.emitOneExecution(standing, standingAcc, standing.ID, incoming.ID, price, filled, at, standing.Open == false, incoming.Open == false)
	e.emitOneExecution(incoming, incomingAcc, standing.ID, incoming.ID, price, filled, at, standing.Open == false, incoming.Open == false)
}

func (e *Engine) emitOneExecution(participant *store.Order, acc *ledger.Account, standingID, incomingID store.OrderID, price int64, filled uint64, at string, standingComplete, incomingComplete bool) {
	rec := protocol.ExecutionJSON{
		OrderJSON:        protocol.EncodeOrder(participant, e.store, e.Venue, e.Symbol),
		StandingID:       standingID,
		IncomingID:       incomingID,
		Price:            price,
		Filled:           filled,
		FilledAt:         at,
		StandingComplete: standingComplete,
		IncomingComplete: incomingComplete,
	}
	body, _ := json.Marshal(rec)
	name := ""
	if acc != nil {
		name = acc.Name
	}
	e.emitter.Execution(name, body)
}

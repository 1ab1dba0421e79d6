// Package clock provides the engine's timestamp source and order-id
// generator (spec.md section 4.1). Both are intentionally simple and
// per-engine: there is no process-wide clock or counter, so multiple
// engines in the same test binary never interfere with each other.
package clock

import (
	"fmt"
	"sync"
	"time"
)

// Clock produces strictly non-decreasing ISO-8601 UTC timestamps with a
// microsecond field. The microsecond field is never read off the real
// wall clock — it is a per-second call counter, reset when the wall
// clock's second advances. This is deliberately *not* a true microsecond
// clock (see spec.md section 9); it exists only to give every call a
// distinct, orderable timestamp even when the OS clock's resolution, or
// the speed of the caller, would otherwise produce ties.
type Clock struct {
	mu         sync.Mutex
	lastSecond int64
	counter    uint32
	now        func() time.Time
}

// New returns a Clock driven by the real wall clock.
func New() *Clock {
	return &Clock{now: time.Now}
}

// Now returns the next timestamp. Safe for concurrent use, though the
// engine only ever calls it from its single processing goroutine.
func (c *Clock) Now() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	sec := c.now().UTC().Unix()
	if sec > c.lastSecond {
		c.lastSecond = sec
		c.counter = 0
	} else {
		c.counter++
	}

	t := time.Unix(c.lastSecond, 0).UTC()
	return fmt.Sprintf("%s.%06dZ", t.Format("2006-01-02T15:04:05"), c.counter)
}

// IDGen hands out dense, monotonically increasing order ids starting at
// zero, up to a configured ceiling. Peek and Exhausted inspect the next
// id without consuming it; the engine's admission check uses Exhausted.
type IDGen struct {
	mu      sync.Mutex
	next    uint64
	ceiling uint64
}

// DefaultCeiling is the order-id ceiling used when a process does not
// override it (spec.md section 4.1).
const DefaultCeiling = 2_000_000_000

func NewIDGen(ceiling uint64) *IDGen {
	return &IDGen{ceiling: ceiling}
}

// Peek returns the id that the next call to Next would hand out,
// without consuming it.
func (g *IDGen) Peek() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.next
}

// Exhausted reports whether the next id would be at or past the
// ceiling, without consuming it — the admission check in spec.md
// section 4.5 step 1 runs this before any other state is touched.
func (g *IDGen) Exhausted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.next >= g.ceiling
}

// Next consumes and returns the next id. ok is false once the ceiling
// has been reached; the caller reports TOO_MANY_ORDERS and must not
// have mutated any other state yet (admission order in spec.md 4.5).
func (g *IDGen) Next() (id uint64, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.next >= g.ceiling {
		return 0, false
	}
	id = g.next
	g.next++
	return id, true
}

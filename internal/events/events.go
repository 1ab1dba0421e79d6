// Package events implements the framed TICKER/EXECUTION publication
// stream (spec.md section 4.7). The Emitter only knows how to frame
// and hand bytes to a Sink; it has no opinion on what a quote or an
// execution record looks like — internal/protocol builds those bodies.
package events

import (
	"bytes"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
)

// Sink receives fully framed event bytes, ready to hit the wire
// verbatim. Two implementations exist: BroadcastSink fans out to every
// subscribed connection, MemorySink records frames for tests.
type Sink interface {
	Publish(frame []byte)
}

const frameEnd = "END\n"

// Emitter frames TICKER and EXECUTION events for one (venue, symbol)
// and publishes them to Sink.
type Emitter struct {
	Venue  string
	Symbol string
	Sink   Sink
}

func NewEmitter(venue, symbol string, sink Sink) *Emitter {
	return &Emitter{Venue: venue, Symbol: symbol, Sink: sink}
}

// Ticker publishes a `TICKER NONE <venue> <symbol>` frame carrying the
// given quote JSON body.
func (e *Emitter) Ticker(quoteJSON []byte) {
	e.publish(fmt.Sprintf("TICKER NONE %s %s\n", e.Venue, e.Symbol), quoteJSON)
}

// Execution publishes an `EXECUTION <account> <venue> <symbol>` frame
// for one participant account of a fill.
func (e *Emitter) Execution(account string, recordJSON []byte) {
	e.publish(fmt.Sprintf("EXECUTION %s %s %s\n", account, e.Venue, e.Symbol), recordJSON)
}

func (e *Emitter) publish(header string, body []byte) {
	if e.Sink == nil {
		return
	}
	var buf bytes.Buffer
	buf.WriteString(header)
	buf.Write(body)
	buf.WriteByte('\n')
	buf.WriteString(frameEnd)
	e.Sink.Publish(buf.Bytes())
}

// BroadcastSink fans every published frame out to every subscribed
// connection, exactly like the teacher's ClientSession map, keyed by a
// google/uuid subscriber id instead of a remote address so a
// reconnecting client never collides with its own prior session.
type BroadcastSink struct {
	mu   sync.Mutex
	subs map[uuid.UUID]net.Conn
}

func NewBroadcastSink() *BroadcastSink {
	return &BroadcastSink{subs: make(map[uuid.UUID]net.Conn)}
}

// Subscribe registers conn to receive every future published frame.
func (b *BroadcastSink) Subscribe(conn net.Conn) uuid.UUID {
	id := uuid.New()
	b.mu.Lock()
	b.subs[id] = conn
	b.mu.Unlock()
	return id
}

// Unsubscribe removes a previously registered connection.
func (b *BroadcastSink) Unsubscribe(id uuid.UUID) {
	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
}

// Publish writes frame to every live subscriber, dropping any whose
// write fails (its connection is presumed dead; the server's
// per-subscriber read loop will notice and clean it up).
func (b *BroadcastSink) Publish(frame []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, conn := range b.subs {
		if _, err := conn.Write(frame); err != nil {
			delete(b.subs, id)
		}
	}
}

// Count reports the number of live subscribers, for metrics/debug use.
func (b *BroadcastSink) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// MemorySink records every published frame in order, for tests.
type MemorySink struct {
	mu     sync.Mutex
	Frames [][]byte
}

func (m *MemorySink) Publish(frame []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Frames = append(m.Frames, append([]byte(nil), frame...))
}

// Last returns the most recently published frame, or nil if none.
func (m *MemorySink) Last() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Frames) == 0 {
		return nil
	}
	return m.Frames[len(m.Frames)-1]
}

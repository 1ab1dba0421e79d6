package protocol_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bourse/internal/engine"
	"bourse/internal/protocol"
)

func TestDispatcherOrderAndQuoteRoundTrip(t *testing.T) {
	e := engine.New("NASDAQ", "ACME", 100, 1000, nil)
	d := protocol.NewDispatcher(e)

	var out bytes.Buffer
	in := strings.NewReader("ORDER alice 0 100 5000 1 1\nQUOTE\n")
	err := d.Run(in, &out)
	require.Error(t, err) // io.EOF once the reader is drained

	replies := strings.Split(out.String(), "END\n")
	require.GreaterOrEqual(t, len(replies), 2)
	assert.Contains(t, replies[0], `"ok":true`)
	assert.Contains(t, replies[0], `"direction":"buy"`)
	assert.Contains(t, replies[1], `"bid":5000`)
}

func TestDispatcherUnknownVerb(t *testing.T) {
	e := engine.New("V", "S", 10, 100, nil)
	d := protocol.NewDispatcher(e)

	var out bytes.Buffer
	d.Run(strings.NewReader("BOGUS\n"), &out)
	assert.Contains(t, out.String(), `"Did not comprehend"`)
}

func TestDispatcherCancelAndStatus(t *testing.T) {
	e := engine.New("V", "S", 10, 100, nil)
	d := protocol.NewDispatcher(e)

	var out bytes.Buffer
	d.Run(strings.NewReader("ORDER alice 0 10 100 1 1\nCANCEL 0\nSTATUS 0\n"), &out)

	replies := strings.Split(out.String(), "END\n")
	assert.Contains(t, replies[1], `"open":false`)
	assert.Contains(t, replies[2], `"open":false`)
}

func TestDispatcherStatusAllAndAccFromID(t *testing.T) {
	e := engine.New("V", "S", 10, 100, nil)
	d := protocol.NewDispatcher(e)

	var out bytes.Buffer
	d.Run(strings.NewReader("ORDER alice 0 10 100 1 1\nSTATUSALL 0\n__ACC_FROM_ID__ 0\n__ACC_FROM_ID__ 9\n"), &out)

	replies := strings.Split(out.String(), "END\n")
	assert.Contains(t, replies[1], `"orders":[`)
	assert.Equal(t, "OK alice\n", replies[2])
	assert.Equal(t, "ERROR None\n", replies[3])
}

func TestDispatcherOrderBookBinaryIsUnframed(t *testing.T) {
	e := engine.New("V", "S", 10, 100, nil)
	d := protocol.NewDispatcher(e)

	var out bytes.Buffer
	d.Run(strings.NewReader("ORDER alice 0 10 100 1 1\nORDERBOOK_BINARY\n"), &out)

	idx := strings.Index(out.String(), "END\n")
	require.NotEqual(t, -1, idx)
	tail := out.String()[idx+len("END\n"):]
	assert.Len(t, tail, 24, "one resting bid record plus a zero terminator per side, no END marker")
}

func TestDispatcherScoresAndDebugMemoryAndTimestamp(t *testing.T) {
	e := engine.New("V", "S", 10, 100, nil)
	d := protocol.NewDispatcher(e)

	var out bytes.Buffer
	d.Run(strings.NewReader("ORDER alice 0 10 100 1 1\n__SCORES__\n__DEBUG_MEMORY__\n__TIMESTAMP__\n"), &out)

	replies := strings.Split(out.String(), "END\n")
	assert.Contains(t, replies[1], "<table>")
	assert.Contains(t, replies[1], "alice")
	assert.Contains(t, replies[2], "orders=")
	assert.NotEmpty(t, strings.TrimSpace(replies[3]))
}

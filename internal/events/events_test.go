package events

import (
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitterTickerFramesWithEndMarker(t *testing.T) {
	sink := &MemorySink{}
	e := NewEmitter("NASDAQ", "ACME", sink)
	e.Ticker([]byte(`{"ok":true}`))

	require.Len(t, sink.Frames, 1)
	frame := string(sink.Frames[0])
	assert.True(t, strings.HasPrefix(frame, "TICKER NONE NASDAQ ACME\n"))
	assert.True(t, strings.HasSuffix(frame, "END\n"))
	assert.Contains(t, frame, `{"ok":true}`)
}

func TestEmitterExecutionIncludesAccount(t *testing.T) {
	sink := &MemorySink{}
	e := NewEmitter("NASDAQ", "ACME", sink)
	e.Execution("alice", []byte(`{"ok":true}`))

	frame := string(sink.Last())
	assert.True(t, strings.HasPrefix(frame, "EXECUTION alice NASDAQ ACME\n"))
}

func TestEmitterNilSinkIsNoop(t *testing.T) {
	e := NewEmitter("NASDAQ", "ACME", nil)
	assert.NotPanics(t, func() { e.Ticker([]byte("{}")) })
}

func TestBroadcastSinkDropsDeadSubscriberOnWriteError(t *testing.T) {
	b := NewBroadcastSink()
	client, server := net.Pipe()
	defer client.Close()
	id := b.Subscribe(server)
	assert.Equal(t, 1, b.Count())

	server.Close()
	client.Close()
	b.Publish([]byte("frame"))
	assert.Equal(t, 0, b.Count())

	b.Unsubscribe(id)
	assert.Equal(t, 0, b.Count())
}

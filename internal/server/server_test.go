package server_test

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"bourse/internal/engine"
	"bourse/internal/events"
	"bourse/internal/server"
)

// freeAddr grabs an ephemeral port by binding then releasing it — good
// enough for a test fixture, racy only against another process grabbing
// the exact same port in the same instant.
func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestServerRoundTripsOrderAndBroadcastsTicker(t *testing.T) {
	sink := events.NewBroadcastSink()
	eng := engine.New("NASDAQ", "ACME", 10, 100, sink)

	cmdAddr := freeAddr(t)
	eventAddr := freeAddr(t)
	srv := server.New(cmdAddr, eventAddr, eng, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Run(ctx)
	waitForListener(t, cmdAddr)
	waitForListener(t, eventAddr)

	eventConn, err := net.Dial("tcp", eventAddr)
	require.NoError(t, err)
	defer eventConn.Close()

	cmdConn, err := net.Dial("tcp", cmdAddr)
	require.NoError(t, err)
	defer cmdConn.Close()

	_, err = cmdConn.Write([]byte("ORDER alice 0 10 1000 1 1\n"))
	require.NoError(t, err)

	cmdConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	scanner := bufio.NewScanner(cmdConn)
	require.True(t, scanner.Scan())
	require.Contains(t, scanner.Text(), `"ok":true`)

	eventConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	eventScanner := bufio.NewScanner(eventConn)
	require.True(t, eventScanner.Scan())
	require.True(t, strings.HasPrefix(eventScanner.Text(), "TICKER"))
}

func waitForListener(t *testing.T, addr string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("listener at %s never came up", addr)
}

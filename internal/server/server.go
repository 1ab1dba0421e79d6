// Package server hosts the two TCP listeners a running engine exposes
// (spec.md sections 4.8/4.9): a command port driving protocol.Dispatcher
// and an event port where every accepted connection becomes a
// BroadcastSink subscriber. Adapted from the accept-loop/tomb/
// WorkerPool shape the command channel used in the original
// single-listener server, generalized to two listeners.
package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"bourse/internal/events"
	"bourse/internal/protocol"
)

const (
	defaultCmdWorkers = 32
	cmdRequestBuffer  = 256
)

// dispatchRequest is one already-read command line waiting for the
// single serializing goroutine to hand it to the dispatcher. Many
// connection workers read concurrently; exactly one goroutine ever
// calls into the engine, since it is not safe for concurrent use
// (spec.md section 5) even though the transport accepts many sockets.
type dispatchRequest struct {
	line string
	w    io.Writer
	done chan struct{}
}

// Server owns both listeners for one running engine.
type Server struct {
	cmdAddr   string
	eventAddr string

	dispatcher *protocol.Dispatcher
	sink       *events.BroadcastSink

	cmdPool     WorkerPool
	cmdRequests chan dispatchRequest
	cancel      context.CancelFunc
}

// New wires a Server around an already-constructed engine (satisfying
// protocol.EngineAPI) and event sink. cmdAddr/eventAddr are "host:port"
// listen addresses.
func New(cmdAddr, eventAddr string, eng protocol.EngineAPI, sink *events.BroadcastSink) *Server {
	return &Server{
		cmdAddr:     cmdAddr,
		eventAddr:   eventAddr,
		dispatcher:  protocol.NewDispatcher(eng),
		sink:        sink,
		cmdPool:     NewWorkerPool(defaultCmdWorkers),
		cmdRequests: make(chan dispatchRequest, cmdRequestBuffer),
	}
}

// Shutdown cancels both listeners and their workers.
func (s *Server) Shutdown() {
	log.Info().Msg("server shutting down")
	if s.cancel != nil {
		s.cancel()
	}
}

// Run starts both listeners and blocks until ctx is cancelled or a
// listener fails to start.
func (s *Server) Run(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	defer s.Shutdown()

	t, ctx := tomb.WithContext(ctx)

	cmdListener, err := listen(ctx, s.cmdAddr)
	if err != nil {
		return fmt.Errorf("command listener: %w", err)
	}
	defer cmdListener.Close()

	eventListener, err := listen(ctx, s.eventAddr)
	if err != nil {
		return fmt.Errorf("event listener: %w", err)
	}
	defer eventListener.Close()

	// The one goroutine that ever touches the engine.
	t.Go(func() error {
		return s.processCommands(t)
	})

	t.Go(func() error {
		s.cmdPool.Setup(t, s.handleCommandConn)
		return nil
	})

	t.Go(func() error {
		return acceptLoop(t, cmdListener, "command", func(conn net.Conn) {
			s.cmdPool.AddTask(conn)
		})
	})

	t.Go(func() error {
		return acceptLoop(t, eventListener, "event", func(conn net.Conn) {
			t.Go(func() error {
				s.handleEventConn(conn)
				return nil
			})
		})
	})

	log.Info().Str("cmdAddr", s.cmdAddr).Str("eventAddr", s.eventAddr).Msg("server running")

	<-ctx.Done()
	return t.Err()
}

func listen(ctx context.Context, addr string) (net.Listener, error) {
	var lc net.ListenConfig
	return lc.Listen(ctx, "tcp", addr)
}

// acceptLoop runs until the tomb starts dying, handing each accepted
// connection to onAccept.
func acceptLoop(t *tomb.Tomb, listener net.Listener, name string, onAccept func(net.Conn)) error {
	for {
		select {
		case <-t.Dying():
			return nil
		default:
		}
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-t.Dying():
				return nil
			default:
			}
			log.Error().Err(err).Str("listener", name).Msg("error accepting connection")
			continue
		}
		log.Info().Str("listener", name).Str("remote", conn.RemoteAddr().String()).Msg("connection accepted")
		onAccept(conn)
	}
}

// processCommands is the single goroutine that ever calls into the
// dispatcher, draining requests in the order connection workers
// submitted them.
func (s *Server) processCommands(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case req := <-s.cmdRequests:
			s.dispatcher.HandleLine(req.line, req.w)
			close(req.done)
		}
	}
}

// handleCommandConn reads lines off one connection for its entire life,
// handing each one to the shared dispatch queue and waiting for its
// reply to be written before reading the next — connections are pumped
// concurrently, but the commands themselves are always serialized.
func (s *Server) handleCommandConn(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return nil
	}
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		req := dispatchRequest{line: scanner.Text(), w: conn, done: make(chan struct{})}
		select {
		case s.cmdRequests <- req:
		case <-t.Dying():
			return nil
		}
		select {
		case <-req.done:
		case <-t.Dying():
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		log.Info().Str("remote", conn.RemoteAddr().String()).Err(err).Msg("command connection closed")
	}
	return nil
}

// handleEventConn registers conn as a subscriber and blocks on a read
// until it errors or returns EOF — how a one-way publish socket notices
// its peer has gone away.
func (s *Server) handleEventConn(conn net.Conn) {
	defer conn.Close()
	id := s.sink.Subscribe(conn)
	defer s.sink.Unsubscribe(id)

	buf := make([]byte, 1)
	for {
		if _, err := conn.Read(buf); err != nil {
			return
		}
	}
}

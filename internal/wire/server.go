package wire

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"github.com/Jss-on/fasttrade/internal/trading"
)

const (
	maxRecvSize     = 4 * 1024
	defaultNWorkers = 10
	defaultConnRead = 30 * time.Second
)

// Server is the TCP front door onto a trading.Core: it accepts
// connections, decodes NewOrder/CancelOrder frames, drives them through
// Core, and writes back a Report frame per request.
//
// Grounded on internal/net/server.go's accept-loop/worker-pool/
// tomb-supervision shape; the session-handler indirection and the
// client-session map it never finished wiring up are dropped — the
// accept loop hands each connection to the pool, and the one worker that
// picks it up handles it start-to-finish, writing its own Report back
// directly, since this
// protocol is request/response rather than the original's
// fire-and-forget session log.
type Server struct {
	address string
	core    *trading.Core
	pool    *WorkerPool

	listenerMu sync.Mutex
	listener   net.Listener

	t *tomb.Tomb
}

// NewServer constructs a Server that will listen on address and submit
// decoded requests to core.
func NewServer(address string, core *trading.Core) *Server {
	return &Server{
		address: address,
		core:    core,
		pool:    NewWorkerPool(defaultNWorkers),
	}
}

// Run starts the listener and the worker pool, blocking until ctx is
// cancelled or Shutdown is called.
func (s *Server) Run(ctx context.Context) error {
	s.t, ctx = tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.address)
	if err != nil {
		return fmt.Errorf("wire: listen on %s: %w", s.address, err)
	}
	s.listenerMu.Lock()
	s.listener = listener
	s.listenerMu.Unlock()
	defer listener.Close()

	// Closing the listener once the tomb dies unblocks Accept, so a
	// cancelled ctx ends Run without waiting for another connection.
	go func() {
		<-s.t.Dying()
		_ = listener.Close()
	}()

	s.pool.Setup(s.t, s.handleTask)

	log.Info().Str("address", s.address).Msg("wire: server running")

	for {
		select {
		case <-s.t.Dying():
			return nil
		default:
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-s.t.Dying():
					return nil
				default:
					log.Error().Err(err).Msg("wire: accept failed")
					continue
				}
			}
			s.pool.AddTask(conn)
		}
	}
}

// Shutdown stops the accept loop and closes the listener.
func (s *Server) Shutdown() {
	if s.t != nil {
		s.t.Kill(nil)
	}
	s.listenerMu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.listenerMu.Unlock()
}

// handleTask reads exactly one request frame off a connection, submits
// it to Core, writes back a Report, and closes the connection. Any
// error here is logged, never fatal to the worker — a bad client should
// not take down the pool.
func (s *Server) handleTask(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return nil
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(defaultConnRead)); err != nil {
		log.Error().Err(err).Msg("wire: failed setting connection deadline")
		return nil
	}

	buffer := make([]byte, maxRecvSize)
	n, err := conn.Read(buffer)
	if err != nil {
		log.Warn().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("wire: read failed")
		return nil
	}

	message, err := ParseMessage(buffer[:n])
	if err != nil {
		log.Warn().Err(err).Msg("wire: failed parsing request")
		s.writeErrorReport(conn, "", err)
		return nil
	}

	report := s.dispatch(message)
	if _, err := conn.Write(report.Serialize()); err != nil {
		log.Warn().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("wire: write failed")
	}
	return nil
}

func (s *Server) dispatch(message Message) Report {
	switch m := message.(type) {
	case NewOrderMessage:
		o := m.Order()
		accepted := s.core.SubmitOrder(o)
		return Report{Type: ExecutionReport, ClientOrderID: m.ClientOrderID, Accepted: accepted}
	case CancelOrderMessage:
		accepted := s.core.CancelOrder(m.ClientOrderID)
		return Report{Type: ExecutionReport, ClientOrderID: m.ClientOrderID, Accepted: accepted}
	default:
		return Report{Type: ErrorReport, Err: "wire: unsupported message type"}
	}
}

func (s *Server) writeErrorReport(conn net.Conn, clientOrderID string, err error) {
	report := Report{Type: ErrorReport, ClientOrderID: clientOrderID, Err: err.Error()}
	_, _ = conn.Write(report.Serialize())
}

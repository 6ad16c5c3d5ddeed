// Package control serves the TCP control channel: player id issuance,
// keepalive pings, and lifecycle notices from the coordinator.
package control

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/volleyball/internal/config"
	"github.com/cory-johannsen/volleyball/internal/ident"
	"github.com/cory-johannsen/volleyball/internal/mailbox"
	"github.com/cory-johannsen/volleyball/internal/observability"
)

// Coordinator receives connection lifecycle events.
type Coordinator interface {
	// Register hands over the mailbox of a newly connected player.
	Register(ctx context.Context, playerID uint64, mb *mailbox.Mailbox) error
	// Disconnect reports a connection that ended on its own.
	Disconnect(ctx context.Context, playerID, opponentID uint64, hasOpponent bool) error
}

// Server accepts control connections and runs one loop per connection.
type Server struct {
	cfg          config.ControlConfig
	coord        Coordinator
	ids          ident.Source
	mailboxDepth int
	conns        observability.ConnCounter
	logger       *zap.Logger

	listener net.Listener
	wg       sync.WaitGroup
	quit     chan struct{}
	mu       sync.Mutex
	running  bool
}

// NewServer creates a control server.
//
// Precondition: cfg must have positive ping durations; coord, ids and logger must be non-nil.
// Postcondition: Returns a Server ready for Listen.
func NewServer(cfg config.ControlConfig, coord Coordinator, ids ident.Source, mailboxDepth int, logger *zap.Logger) *Server {
	return &Server{
		cfg:          cfg,
		coord:        coord,
		ids:          ids,
		mailboxDepth: mailboxDepth,
		logger:       logger,
		quit:         make(chan struct{}),
	}
}

// Listen binds the TCP listener.
//
// Postcondition: Addr returns the bound address, or a non-nil error is returned.
func (s *Server) Listen() error {
	listener, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr(), err)
	}
	s.mu.Lock()
	s.listener = listener
	s.running = true
	s.mu.Unlock()

	s.logger.Info("control server listening", zap.String("addr", listener.Addr().String()))
	return nil
}

// Serve accepts connections until Stop is called.
//
// Precondition: Listen must have succeeded.
// Postcondition: Returns nil once stopped.
func (s *Server) Serve() error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()
	if listener == nil {
		return fmt.Errorf("control server is not listening")
	}

	for {
		raw, err := listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return nil
			default:
				s.logger.Error("accepting connection", zap.Error(err))
				continue
			}
		}

		// ids are minted on the accept goroutine so Source needs no locking.
		playerID := s.ids()
		s.wg.Add(1)
		go s.handleConn(raw, playerID)
	}
}

// ListenAndServe binds and serves until Stop is called.
func (s *Server) ListenAndServe() error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve()
}

func (s *Server) handleConn(raw net.Conn, playerID uint64) {
	defer s.wg.Done()
	start := time.Now()
	addr := raw.RemoteAddr().String()

	n := s.conns.Inc()
	defer func() {
		left := s.conns.Dec()
		s.logger.Debug("control connection closed",
			observability.PlayerID(playerID),
			zap.Int("open", left),
			zap.Duration("duration", time.Since(start)),
		)
	}()
	s.logger.Info("control connection accepted",
		zap.String("remote_addr", addr),
		observability.PlayerID(playerID),
		zap.Int("open", n),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-s.quit:
			cancel()
		case <-ctx.Done():
		}
	}()

	c := newConn(raw, playerID, s.cfg, s.logger)
	defer c.close()

	mb := mailbox.New(playerID, s.mailboxDepth)
	if err := s.coord.Register(ctx, playerID, mb); err != nil {
		s.logger.Warn("registering connection", observability.PlayerID(playerID), zap.Error(err))
		return
	}

	c.run(ctx, mb, s.coord)
}

// Stop closes the listener and waits for every connection loop to finish.
//
// Postcondition: All connections are closed and their goroutines have exited.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.quit)
	if s.listener != nil {
		s.listener.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("control server stopped")
}

// Addr returns the listening address, or an empty string before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// OpenConnections returns the number of live control connections.
func (s *Server) OpenConnections() int {
	return s.conns.Count()
}

package server

import (
	"context"
	"fmt"
	"net"

	"go.uber.org/zap"

	"github.com/cory-johannsen/volleyball/internal/config"
	"github.com/cory-johannsen/volleyball/internal/control"
	"github.com/cory-johannsen/volleyball/internal/coordinator"
	"github.com/cory-johannsen/volleyball/internal/ident"
	"github.com/cory-johannsen/volleyball/internal/match"
	"github.com/cory-johannsen/volleyball/internal/protocol"
	"github.com/cory-johannsen/volleyball/internal/udp"
)

// Game is a fully wired volleyball server with its sockets bound.
type Game struct {
	udpConn   *net.UDPConn
	control   *control.Server
	lifecycle *Lifecycle
}

// NewGame binds both sockets and wires every component.
//
// Precondition: cfg should have passed Validate; tests may use port 0.
// Postcondition: Returns a Game ready to Run, or a non-nil error with nothing left bound.
func NewGame(cfg config.Config, logger *zap.Logger) (*Game, error) {
	revision, err := protocol.ParseRevision(cfg.Match.SnapshotRevision)
	if err != nil {
		return nil, err
	}

	udpAddr, err := net.ResolveUDPAddr("udp", cfg.UDP.Addr())
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", cfg.UDP.Addr(), err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("binding udp %s: %w", cfg.UDP.Addr(), err)
	}
	logger.Info("udp socket bound", zap.Stringer("addr", conn.LocalAddr()))

	sender := udp.NewSender(conn, revision, cfg.Queues.SenderDepth, cfg.UDP.WriteTimeout, logger.Named("sender"))
	coord := coordinator.New(sender, coordinator.Options{
		Rules: match.Rules{
			PointLimit:        cfg.Match.PointLimit,
			ResetDelayTicks:   cfg.Match.ResetDelayTicks,
			GravityDelayTicks: cfg.Match.GravityDelayTicks,
		},
		LivenessWindow: cfg.Match.LivenessWindow,
		QueueDepth:     cfg.Queues.CoordinatorDepth,
	}, logger.Named("coordinator"))
	receiver := udp.NewReceiver(conn, coord, logger.Named("receiver"))
	ticks := control.NewTickDriver(cfg.Control.TickInterval, coord, logger.Named("ticker"))

	ctrl := control.NewServer(cfg.Control, coord, ident.New, cfg.Queues.MailboxDepth, logger.Named("control"))
	if err := ctrl.Listen(); err != nil {
		conn.Close()
		return nil, err
	}

	loops := NewGroupService(logger.Named("game"))
	loops.Go("coordinator", coord)
	loops.Go("sender", sender)
	loops.Go("receiver", receiver)
	loops.Go("ticker", ticks)
	loops.OnStop(func() { conn.Close() })

	lc := NewLifecycle(logger.Named("lifecycle"))
	lc.Add("game", loops)
	lc.Add("control", &FuncService{StartFn: ctrl.Serve, StopFn: ctrl.Stop})

	return &Game{udpConn: conn, control: ctrl, lifecycle: lc}, nil
}

// UDPAddr returns the bound datagram address.
func (g *Game) UDPAddr() string {
	return g.udpConn.LocalAddr().String()
}

// ControlAddr returns the bound control listener address.
func (g *Game) ControlAddr() string {
	return g.control.Addr()
}

// Run serves until ctx is cancelled, a termination signal arrives, or a
// component fails.
func (g *Game) Run(ctx context.Context) error {
	return g.lifecycle.Run(ctx)
}

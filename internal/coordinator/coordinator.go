// Package coordinator owns the lobby and every session. One goroutine runs
// Run and is the only code that touches that state; everything else reaches
// it through the event queue.
package coordinator

import (
	"context"
	"net/netip"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/volleyball/internal/ident"
	"github.com/cory-johannsen/volleyball/internal/mailbox"
	"github.com/cory-johannsen/volleyball/internal/match"
	"github.com/cory-johannsen/volleyball/internal/protocol"
)

// Outbound delivers datagrams. Calls must not block.
type Outbound interface {
	Assign(playerID, sessionID uint64, addr netip.AddrPort) error
	Snapshot(playerID uint64, snap protocol.Snapshot) error
	Forget(playerID uint64) error
}

// Options configures a Coordinator.
type Options struct {
	Rules match.Rules
	// LivenessWindow withholds snapshots from players silent for longer; zero disables it.
	LivenessWindow time.Duration
	QueueDepth     int
	// IDs mints session ids. Defaults to ident.New.
	IDs ident.Source
	// Now reads the clock. Defaults to time.Now.
	Now func() time.Time
}

type event interface{ isEvent() }

type tickEvent struct{}

type playerEvent struct {
	from netip.AddrPort
	msg  protocol.Message
}

type registerEvent struct {
	playerID uint64
	mb       *mailbox.Mailbox
}

type disconnectEvent struct {
	playerID    uint64
	opponentID  uint64
	hasOpponent bool
}

func (tickEvent) isEvent()       {}
func (playerEvent) isEvent()     {}
func (registerEvent) isEvent()   {}
func (disconnectEvent) isEvent() {}

type lobby struct {
	playerID  uint64
	sessionID uint64
}

type session struct {
	id       uint64
	player1  uint64
	player2  uint64
	sim      *match.Simulation
	lastStep time.Time
}

func (s *session) slot(playerID uint64) (match.Slot, bool) {
	switch playerID {
	case s.player1:
		return match.Player1, true
	case s.player2:
		return match.Player2, true
	default:
		return 0, false
	}
}

func (s *session) partner(playerID uint64) uint64 {
	if playerID == s.player1 {
		return s.player2
	}
	return s.player1
}

// Coordinator is the match coordinator actor.
type Coordinator struct {
	events chan event
	out    Outbound
	opts   Options
	logger *zap.Logger

	waiting   *lobby
	sessions  map[uint64]*session
	seats     map[uint64]uint64
	mailboxes map[uint64]*mailbox.Mailbox
	lastSeen  map[uint64]time.Time
}

// New creates a Coordinator. Nothing happens until Run is called.
//
// Precondition: out and logger must be non-nil; opts.QueueDepth must be >= 1.
func New(out Outbound, opts Options, logger *zap.Logger) *Coordinator {
	if opts.IDs == nil {
		opts.IDs = ident.New
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.QueueDepth < 1 {
		opts.QueueDepth = 1
	}
	return &Coordinator{
		events:    make(chan event, opts.QueueDepth),
		out:       out,
		opts:      opts,
		logger:    logger,
		sessions:  make(map[uint64]*session),
		seats:     make(map[uint64]uint64),
		mailboxes: make(map[uint64]*mailbox.Mailbox),
		lastSeen:  make(map[uint64]time.Time),
	}
}

func (c *Coordinator) submit(ctx context.Context, ev event) error {
	select {
	case c.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Forward queues a decoded datagram. It blocks while the queue is full.
func (c *Coordinator) Forward(ctx context.Context, from netip.AddrPort, msg protocol.Message) error {
	return c.submit(ctx, playerEvent{from: from, msg: msg})
}

// Register queues a new control connection's mailbox.
func (c *Coordinator) Register(ctx context.Context, playerID uint64, mb *mailbox.Mailbox) error {
	return c.submit(ctx, registerEvent{playerID: playerID, mb: mb})
}

// Disconnect queues a departure reported by a control connection.
func (c *Coordinator) Disconnect(ctx context.Context, playerID, opponentID uint64, hasOpponent bool) error {
	return c.submit(ctx, disconnectEvent{playerID: playerID, opponentID: opponentID, hasOpponent: hasOpponent})
}

// RequestTick queues a simulation tick without blocking.
//
// Postcondition: Returns false if the queue was full and the tick was dropped.
func (c *Coordinator) RequestTick() bool {
	select {
	case c.events <- tickEvent{}:
		return true
	default:
		return false
	}
}

// Run processes events until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	c.logger.Info("coordinator started")
	for {
		select {
		case <-ctx.Done():
			c.logger.Info("coordinator stopped", zap.Int("sessions", len(c.sessions)))
			return nil
		case ev := <-c.events:
			c.handle(ev)
		}
	}
}

func (c *Coordinator) handle(ev event) {
	switch ev := ev.(type) {
	case tickEvent:
		c.tick()
	case playerEvent:
		c.handlePlayer(ev.from, ev.msg)
	case registerEvent:
		c.register(ev.playerID, ev.mb)
	case disconnectEvent:
		c.disconnect(ev)
	}
}

package udp

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/volleyball/internal/observability"
	"github.com/cory-johannsen/volleyball/internal/protocol"
)

// ErrQueueFull is returned when the sender's request queue has no room.
var ErrQueueFull = errors.New("udp: sender queue full")

type requestKind int

const (
	reqAssign requestKind = iota
	reqSnapshot
	reqForget
)

type request struct {
	kind      requestKind
	playerID  uint64
	sessionID uint64
	addr      netip.AddrPort
	snap      protocol.Snapshot
}

// Sender owns all outbound writes and the player address table. Only Run
// touches the table.
type Sender struct {
	conn         *net.UDPConn
	revision     protocol.Revision
	writeTimeout time.Duration
	requests     chan request
	addrs        map[uint64]netip.AddrPort
	logger       *zap.Logger
}

// NewSender creates a Sender writing through conn.
//
// Precondition: depth must be >= 1; conn and logger must be non-nil.
// Postcondition: Returns a Sender whose queue accepts requests before Run starts.
func NewSender(conn *net.UDPConn, revision protocol.Revision, depth int, writeTimeout time.Duration, logger *zap.Logger) *Sender {
	return &Sender{
		conn:         conn,
		revision:     revision,
		writeTimeout: writeTimeout,
		requests:     make(chan request, depth),
		addrs:        make(map[uint64]netip.AddrPort),
		logger:       logger,
	}
}

func (s *Sender) enqueue(r request) error {
	select {
	case s.requests <- r:
		return nil
	default:
		return ErrQueueFull
	}
}

// Assign records the player's address and sends it the assignment packet.
func (s *Sender) Assign(playerID, sessionID uint64, addr netip.AddrPort) error {
	return s.enqueue(request{kind: reqAssign, playerID: playerID, sessionID: sessionID, addr: addr})
}

// Snapshot sends snap to the player's recorded address.
func (s *Sender) Snapshot(playerID uint64, snap protocol.Snapshot) error {
	return s.enqueue(request{kind: reqSnapshot, playerID: playerID, snap: snap})
}

// Forget drops the player's address.
func (s *Sender) Forget(playerID uint64) error {
	return s.enqueue(request{kind: reqForget, playerID: playerID})
}

// Run serves queued requests until ctx is cancelled. Write failures are
// logged and the loop continues.
func (s *Sender) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-s.requests:
			s.handle(r)
		}
	}
}

func (s *Sender) handle(r request) {
	switch r.kind {
	case reqAssign:
		s.addrs[r.playerID] = r.addr
		pkt := protocol.EncodeAssignment(protocol.Assignment{PlayerID: r.playerID, SessionID: r.sessionID})
		if err := s.write(pkt[:], r.addr); err != nil {
			s.logger.Warn("sending assignment",
				observability.PlayerID(r.playerID),
				zap.Stringer("addr", r.addr),
				zap.Error(err),
			)
		}
	case reqSnapshot:
		addr, ok := s.addrs[r.playerID]
		if !ok {
			s.logger.Warn("no address for player", observability.PlayerID(r.playerID))
			return
		}
		pkt, err := protocol.EncodeSnapshot(r.snap, s.revision)
		if err != nil {
			s.logger.Error("encoding snapshot", zap.Error(err))
			return
		}
		if err := s.write(pkt, addr); err != nil {
			s.logger.Warn("sending snapshot",
				observability.PlayerID(r.playerID),
				zap.Stringer("addr", addr),
				zap.Error(err),
			)
		}
	case reqForget:
		delete(s.addrs, r.playerID)
	}
}

func (s *Sender) write(b []byte, addr netip.AddrPort) error {
	if s.writeTimeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return err
		}
	}
	_, err := s.conn.WriteToUDPAddrPort(b, addr)
	return err
}

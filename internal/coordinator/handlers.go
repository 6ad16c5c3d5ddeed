package coordinator

import (
	"net/netip"

	"go.uber.org/zap"

	"github.com/cory-johannsen/volleyball/internal/mailbox"
	"github.com/cory-johannsen/volleyball/internal/match"
	"github.com/cory-johannsen/volleyball/internal/observability"
	"github.com/cory-johannsen/volleyball/internal/protocol"
)

// tick advances every session and sends fresh snapshots. Sessions whose
// members both lost their control connection are dropped.
func (c *Coordinator) tick() {
	now := c.opts.Now()
	for id, s := range c.sessions {
		if c.mailboxes[s.player1] == nil && c.mailboxes[s.player2] == nil {
			c.prune(id, s)
			continue
		}
		delta := now.Sub(s.lastStep)
		s.lastStep = now
		if !s.sim.Advance(delta) {
			continue
		}
		snap := s.sim.Snapshot()
		for _, p := range [2]uint64{s.player1, s.player2} {
			if !c.alive(p) {
				continue
			}
			if err := c.out.Snapshot(p, snap); err != nil {
				c.logger.Warn("queueing snapshot", observability.PlayerID(p), zap.Error(err))
			}
		}
	}
}

func (c *Coordinator) alive(playerID uint64) bool {
	if c.opts.LivenessWindow <= 0 {
		return true
	}
	seen, ok := c.lastSeen[playerID]
	return ok && c.opts.Now().Sub(seen) <= c.opts.LivenessWindow
}

func (c *Coordinator) prune(id uint64, s *session) {
	delete(c.sessions, id)
	for _, p := range [2]uint64{s.player1, s.player2} {
		if c.seats[p] == id {
			delete(c.seats, p)
		}
		delete(c.lastSeen, p)
	}
	c.logger.Info("session closed",
		observability.SessionID(id),
		zap.Int("active_sessions", len(c.sessions)),
	)
}

func (c *Coordinator) handlePlayer(from netip.AddrPort, msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.JoinRequest:
		c.join(m.PlayerID, from)
	case protocol.Input:
		c.input(m)
	case protocol.Ping:
		c.ping(m)
	default:
		c.logger.Warn("unexpected player message", zap.Stringer("from", from))
	}
}

func (c *Coordinator) join(playerID uint64, from netip.AddrPort) {
	// A repeated join means the assignment datagram was lost; send it again.
	if sid, ok := c.seats[playerID]; ok {
		c.assign(playerID, sid, from)
		return
	}
	if c.waiting != nil && c.waiting.playerID == playerID {
		c.assign(playerID, c.waiting.sessionID, from)
		return
	}

	now := c.opts.Now()
	c.lastSeen[playerID] = now

	if c.waiting == nil {
		c.waiting = &lobby{playerID: playerID, sessionID: c.newSessionID()}
		c.logger.Info("player waiting for opponent",
			observability.PlayerID(playerID),
			observability.SessionID(c.waiting.sessionID),
		)
		c.assign(playerID, c.waiting.sessionID, from)
		return
	}

	s := &session{
		id:       c.waiting.sessionID,
		player1:  c.waiting.playerID,
		player2:  playerID,
		sim:      match.New(c.opts.Rules),
		lastStep: now,
	}
	c.waiting = nil
	c.sessions[s.id] = s
	c.seats[s.player1] = s.id
	c.seats[s.player2] = s.id

	c.notify(s.player2, mailbox.OpponentAssigned{OpponentID: s.player1})
	c.notify(s.player1, mailbox.OpponentAssigned{OpponentID: s.player2})
	c.logger.Info("session started",
		observability.SessionID(s.id),
		zap.Uint64("player1", s.player1),
		zap.Uint64("player2", s.player2),
		zap.Int("active_sessions", len(c.sessions)),
	)
	c.assign(playerID, s.id, from)
}

func (c *Coordinator) newSessionID() uint64 {
	for {
		id := c.opts.IDs()
		if _, taken := c.sessions[id]; !taken && id != 0 {
			return id
		}
	}
}

func (c *Coordinator) assign(playerID, sessionID uint64, addr netip.AddrPort) {
	if err := c.out.Assign(playerID, sessionID, addr); err != nil {
		c.logger.Warn("queueing assignment", observability.PlayerID(playerID), zap.Error(err))
	}
}

func (c *Coordinator) notify(playerID uint64, n mailbox.Notice) {
	mb, ok := c.mailboxes[playerID]
	if !ok {
		c.logger.Warn("no control connection for player", observability.PlayerID(playerID))
		return
	}
	if err := mb.Push(n); err != nil {
		c.logger.Warn("pushing control notice", observability.PlayerID(playerID), zap.Error(err))
	}
}

func (c *Coordinator) lookup(playerID, sessionID uint64) (*session, match.Slot, bool) {
	s, ok := c.sessions[sessionID]
	if !ok {
		c.logger.Error("unknown session", observability.SessionID(sessionID), observability.PlayerID(playerID))
		return nil, 0, false
	}
	slot, ok := s.slot(playerID)
	if !ok {
		c.logger.Error("player not in session",
			observability.SessionID(sessionID),
			observability.PlayerID(playerID),
			zap.Uint64("player1", s.player1),
			zap.Uint64("player2", s.player2),
		)
		return nil, 0, false
	}
	return s, slot, true
}

func (c *Coordinator) input(m protocol.Input) {
	s, slot, ok := c.lookup(m.PlayerID, m.SessionID)
	if !ok {
		return
	}
	switch m.Key {
	case protocol.KeyLeft, protocol.KeyRight:
		dir := match.Left
		if m.Key == protocol.KeyRight {
			dir = match.Right
		}
		if m.Pressed {
			s.sim.Press(slot, dir)
		} else {
			s.sim.Release(slot, dir)
		}
	case protocol.KeyJump:
		s.sim.Jump(slot)
	}
}

func (c *Coordinator) ping(m protocol.Ping) {
	_, seated := c.seats[m.PlayerID]
	waiting := c.waiting != nil && c.waiting.playerID == m.PlayerID
	if !seated && !waiting {
		c.logger.Debug("ping from unknown player", observability.PlayerID(m.PlayerID))
		return
	}
	c.lastSeen[m.PlayerID] = c.opts.Now()
}

func (c *Coordinator) register(playerID uint64, mb *mailbox.Mailbox) {
	if old, ok := c.mailboxes[playerID]; ok && old != mb {
		old.Close()
	}
	c.mailboxes[playerID] = mb
	c.logger.Debug("control connection registered", observability.PlayerID(playerID))
}

// disconnect tears down the departing player and its opponent. The
// coordinator's own seating fills in an opponent the connection never learned.
func (c *Coordinator) disconnect(ev disconnectEvent) {
	ids := []uint64{ev.playerID}
	switch {
	case ev.hasOpponent:
		ids = append(ids, ev.opponentID)
	default:
		if sid, ok := c.seats[ev.playerID]; ok {
			ids = append(ids, c.sessions[sid].partner(ev.playerID))
		}
	}
	c.logger.Info("player disconnecting",
		observability.PlayerID(ev.playerID),
		zap.Uint64s("affected", ids),
	)

	for _, id := range ids {
		if mb, ok := c.mailboxes[id]; ok {
			if err := mb.Push(mailbox.ForceDisconnect{}); err != nil {
				c.logger.Warn("pushing disconnect", observability.PlayerID(id), zap.Error(err))
			}
			mb.Close()
			delete(c.mailboxes, id)
		}
		if err := c.out.Forget(id); err != nil {
			c.logger.Warn("queueing address removal", observability.PlayerID(id), zap.Error(err))
		}
		if c.waiting != nil && c.waiting.playerID == id {
			c.waiting = nil
		}
	}
}

package match

import "github.com/cory-johannsen/volleyball/internal/physics"

// Side is a half of the court, split at the net.
type Side int

const (
	SideLeft Side = iota + 1
	SideRight
)

// Owner returns the player defending the side.
func (sd Side) Owner() Slot {
	if sd == SideLeft {
		return Player2
	}
	return Player1
}

// Opponent returns the other player.
func (p Slot) Opponent() Slot {
	if p == Player1 {
		return Player2
	}
	return Player1
}

type phase int

const (
	phaseLive phase = iota
	phaseScored
	phaseGravityPending
	phaseOver
)

type rally struct {
	phase        phase
	score        [2]uint32
	lastToucher  Slot // zero until someone touches the ball
	pointAwarded bool
	serve        Side
	resetAt      uint64
	gravityAt    uint64
}

func (s *Simulation) handleEvents(events []physics.CollisionEvent) {
	c := s.court
	for _, ev := range events {
		other, ok := ev.Involves(c.ballCol)
		if !ok {
			continue
		}
		switch other {
		case c.player1Col:
			s.touch(Player1)
		case c.player2Col:
			s.touch(Player2)
		case c.ground:
			s.land()
		}
	}
}

func (s *Simulation) touch(p Slot) {
	s.rally.lastToucher = p
	if s.court.world.GravityScale(s.court.ball) == 0 {
		s.court.world.SetGravityScale(s.court.ball, 1)
		if s.rally.phase == phaseGravityPending {
			s.rally.phase = phaseLive
		}
	}
}

// land applies the ground-contact rule: a landing scores for the side's
// opponent unless the side's own player touched last. That touch is kept, so
// later bounces on the same side cannot score either.
func (s *Simulation) land() {
	r := &s.rally
	if r.pointAwarded || r.phase == phaseOver {
		return
	}
	side := SideRight
	if s.court.world.Position(s.court.ball).X < s.Net().Center.X {
		side = SideLeft
	}
	owner := side.Owner()
	if r.lastToucher == owner {
		return
	}

	scorer := owner.Opponent()
	r.score[scorer-1]++
	r.serve = side
	r.pointAwarded = true

	if int(r.score[scorer-1]) >= s.rules.PointLimit {
		r.phase = phaseOver
		return
	}
	r.phase = phaseScored
	r.resetAt = s.frame + uint64(s.rules.ResetDelayTicks)
}

func (s *Simulation) runSchedule() {
	switch s.rally.phase {
	case phaseScored:
		if s.frame >= s.rally.resetAt {
			s.resetPositions()
		}
	case phaseGravityPending:
		if s.frame >= s.rally.gravityAt {
			s.serveBall()
		}
	}
}

func (s *Simulation) resetPositions() {
	c := s.court
	w := c.world
	for _, b := range []struct {
		h   physics.BodyHandle
		pos physics.Vec
	}{
		{c.player1, player1Start},
		{c.player2, player2Start},
		{c.ball, servePosition(s.rally.serve)},
	} {
		w.SetPosition(b.h, b.pos)
		w.SetVelocity(b.h, physics.Vec{})
		w.SetAngularVelocity(b.h, 0)
		w.ResetForces(b.h)
	}
	w.SetGravityScale(c.ball, 0)

	s.rally.phase = phaseGravityPending
	s.rally.gravityAt = s.frame + uint64(s.rules.GravityDelayTicks)
	s.rally.pointAwarded = false
	s.rally.lastToucher = 0
}

func (s *Simulation) serveBall() {
	w := s.court.world
	w.SetGravityScale(s.court.ball, 1)
	w.ApplyImpulse(s.court.ball, physics.Vec{Y: -serveNudge})
	s.rally.phase = phaseLive
}

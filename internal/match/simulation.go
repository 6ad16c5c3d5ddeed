// Package match steps one two-player volleyball court and enforces the rally
// scoring rules. A Simulation is owned by a single goroutine.
package match

import (
	"math"
	"time"

	"github.com/cory-johannsen/volleyball/internal/physics"
	"github.com/cory-johannsen/volleyball/internal/protocol"
)

// TickDuration is the fixed physics step.
const TickDuration = time.Second / 60

const (
	maxSpeed    = 3.0
	almostZero  = 0.001
	moveForce   = 10.0
	jumpImpulse = 5.0
	serveNudge  = 0.1
)

// Slot identifies one of the two players in a session.
type Slot int

const (
	// Player1 is the first player to join; it defends the right half.
	Player1 Slot = iota + 1
	// Player2 defends the left half.
	Player2
)

// Direction is a horizontal movement key.
type Direction int

const (
	Left Direction = iota
	Right
)

// Rules parameterize scoring and serve timing.
type Rules struct {
	PointLimit        int
	ResetDelayTicks   int
	GravityDelayTicks int
}

type controls struct {
	left, right bool
}

// Simulation is one session's physics world plus rally bookkeeping.
type Simulation struct {
	court *court
	rules Rules

	acc   time.Duration
	frame uint64

	input [2]controls
	rally rally
}

// New builds a court with both players and the ball at their start positions.
// The ball hangs above player 1 until the gravity delay elapses or someone touches it.
//
// Precondition: rules.PointLimit must be >= 1.
func New(rules Rules) *Simulation {
	s := &Simulation{court: newCourt(), rules: rules}
	s.rally = rally{
		phase:     phaseGravityPending,
		gravityAt: uint64(rules.GravityDelayTicks),
		serve:     SideRight,
	}
	s.court.world.SetGravityScale(s.court.ball, 0)
	return s
}

// Advance adds delta to the accumulated time and runs every whole tick that fits.
//
// Postcondition: Returns true if at least one tick ran.
func (s *Simulation) Advance(delta time.Duration) bool {
	if delta > 0 {
		s.acc += delta
	}
	ran := false
	for s.acc > TickDuration {
		s.acc -= TickDuration
		s.tick()
		ran = true
	}
	return ran
}

func (s *Simulation) tick() {
	s.control(Player1)
	s.control(Player2)
	s.court.world.Step(TickDuration.Seconds())
	s.frame++
	s.handleEvents(s.court.world.DrainEvents())
	s.runSchedule()
}

func (s *Simulation) handle(p Slot) (physics.BodyHandle, physics.ColliderHandle) {
	if p == Player1 {
		return s.court.player1, s.court.player1Col
	}
	return s.court.player2, s.court.player2Col
}

func (s *Simulation) control(p Slot) {
	w := s.court.world
	h, _ := s.handle(p)
	in := s.input[p-1]

	w.SetAngularVelocity(h, 0)
	v := w.Velocity(h)
	f := w.UserForce(h).X

	switch {
	case in.right && f == 0:
		w.AddForce(h, physics.Vec{X: moveForce})
	case in.left && f == 0:
		w.AddForce(h, physics.Vec{X: -moveForce})
	}

	if math.Abs(v.X) > maxSpeed {
		w.SetVelocity(h, physics.Vec{X: math.Copysign(maxSpeed, v.X), Y: v.Y})
		w.ResetForces(h)
	}
	if !in.left && !in.right {
		w.ResetForces(h)
	}
	if math.Abs(v.X) < almostZero {
		w.SetVelocity(h, physics.Vec{X: 0, Y: w.Velocity(h).Y})
	}
}

// Press marks a direction key as held. Holding it twice is the same as holding it once.
func (s *Simulation) Press(p Slot, d Direction) {
	s.setKey(p, d, true)
}

// Release marks a direction key as released.
func (s *Simulation) Release(p Slot, d Direction) {
	s.setKey(p, d, false)
}

func (s *Simulation) setKey(p Slot, d Direction, held bool) {
	if p != Player1 && p != Player2 {
		return
	}
	if d == Right {
		s.input[p-1].right = held
	} else {
		s.input[p-1].left = held
	}
}

// Jump applies an upward impulse if the player is standing on the ground.
//
// Postcondition: Returns true if the impulse was applied.
func (s *Simulation) Jump(p Slot) bool {
	if p != Player1 && p != Player2 {
		return false
	}
	h, col := s.handle(p)
	if !s.court.world.InContact(col, s.court.footing) {
		return false
	}
	s.court.world.ApplyImpulse(h, physics.Vec{Y: jumpImpulse})
	return true
}

// Players returns both player bodies.
func (s *Simulation) Players() (p1, p2 Body) {
	return s.court.body(s.court.player1, s.court.player1Col), s.court.body(s.court.player2, s.court.player2Col)
}

// Ball returns the ball body.
func (s *Simulation) Ball() Body {
	return s.court.body(s.court.ball, s.court.ballCol)
}

// Ground returns the floor geometry.
func (s *Simulation) Ground() Box { return s.court.box(s.court.ground) }

// Net returns the net geometry.
func (s *Simulation) Net() Box { return s.court.box(s.court.net) }

// Score returns the points of player 1 and player 2.
func (s *Simulation) Score() (p1, p2 uint32) {
	return s.rally.score[0], s.rally.score[1]
}

// GameOver reports whether either score reached the point limit.
func (s *Simulation) GameOver() bool { return s.rally.phase == phaseOver }

// Frame returns the number of ticks run so far.
func (s *Simulation) Frame() uint64 { return s.frame }

// Snapshot captures the current state in wire form.
func (s *Simulation) Snapshot() protocol.Snapshot {
	p1, p2 := s.Players()
	ball := s.Ball()
	score1, score2 := s.Score()
	return protocol.Snapshot{
		BallRadius:   float32(ball.Radius),
		Ball:         vec2(ball.Position),
		PlayerRadius: float32(p1.Radius),
		Player1:      vec2(p1.Position),
		Player2:      vec2(p2.Position),
		Score1:       score1,
		Score2:       score2,
		GameOver:     s.GameOver(),
		Player1Vel:   vec2(p1.Velocity),
		Player2Vel:   vec2(p2.Velocity),
		BallVel:      vec2(ball.Velocity),
	}
}

func vec2(v physics.Vec) protocol.Vec2 {
	return protocol.Vec2{X: float32(v.X), Y: float32(v.Y)}
}

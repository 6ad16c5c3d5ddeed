package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/volleyball/internal/physics"
)

// dropBall puts the ball in play just above the floor at x.
func dropBall(s *Simulation, x float64) {
	w := s.court.world
	w.SetPosition(s.court.ball, physics.Vec{X: x, Y: 0.5})
	w.SetVelocity(s.court.ball, physics.Vec{})
	w.SetGravityScale(s.court.ball, 1)
	s.rally.phase = phaseLive
}

func tickUntilScored(t *testing.T, s *Simulation) {
	t.Helper()
	for i := 0; i < 120; i++ {
		s.tick()
		if s.rally.pointAwarded {
			return
		}
	}
	t.Fatal("no point awarded within two seconds")
}

func TestLandingLeft_ScoresForPlayer1Once(t *testing.T) {
	s := New(Rules{PointLimit: 15, ResetDelayTicks: 600, GravityDelayTicks: 600})
	dropBall(s, 3.3)
	tickUntilScored(t, s)

	score1, score2 := s.Score()
	assert.Equal(t, uint32(1), score1)
	assert.Zero(t, score2)
	assert.Equal(t, SideLeft, s.rally.serve)

	// The ball keeps bouncing on the floor; none of it counts.
	for i := 0; i < 180; i++ {
		s.tick()
	}
	score1, score2 = s.Score()
	assert.Equal(t, uint32(1), score1)
	assert.Zero(t, score2)
}

func TestLandingRight_ScoresForPlayer2(t *testing.T) {
	s := New(Rules{PointLimit: 15, ResetDelayTicks: 600, GravityDelayTicks: 600})
	dropBall(s, 4.7)
	tickUntilScored(t, s)

	score1, score2 := s.Score()
	assert.Zero(t, score1)
	assert.Equal(t, uint32(1), score2)
	assert.Equal(t, SideRight, s.rally.serve)
}

func TestOwnTouchOnOwnSide_DoesNotScore(t *testing.T) {
	s := New(Rules{PointLimit: 15, ResetDelayTicks: 600, GravityDelayTicks: 600})
	dropBall(s, 3.3)
	s.rally.lastToucher = Player2

	for i := 0; i < 120; i++ {
		s.tick()
	}
	score1, score2 := s.Score()
	assert.Zero(t, score1)
	assert.Zero(t, score2)
	assert.False(t, s.rally.pointAwarded)
	assert.Equal(t, Player2, s.rally.lastToucher)
}

func TestOpponentTouch_Scores(t *testing.T) {
	s := New(Rules{PointLimit: 15, ResetDelayTicks: 600, GravityDelayTicks: 600})
	dropBall(s, 3.3)
	s.rally.lastToucher = Player1
	tickUntilScored(t, s)

	score1, _ := s.Score()
	assert.Equal(t, uint32(1), score1)
}

func TestResetGeometryAfterPoint(t *testing.T) {
	rules := Rules{PointLimit: 15, ResetDelayTicks: 5, GravityDelayTicks: 5}
	s := New(rules)
	dropBall(s, 3.3)
	tickUntilScored(t, s)
	scoredAt := s.Frame()

	for s.Frame() < scoredAt+uint64(rules.ResetDelayTicks) {
		require.Equal(t, phaseScored, s.rally.phase)
		s.tick()
	}

	p1, p2 := s.Players()
	ball := s.Ball()
	assert.Equal(t, player1Start, p1.Position)
	assert.Equal(t, player2Start, p2.Position)
	assert.Equal(t, servePosition(SideLeft), ball.Position)
	for _, b := range []Body{p1, p2, ball} {
		assert.Equal(t, physics.Vec{}, b.Velocity)
	}
	assert.Equal(t, 0.0, s.court.world.GravityScale(s.court.ball))
	assert.Equal(t, phaseGravityPending, s.rally.phase)
	assert.False(t, s.rally.pointAwarded)
	assert.Zero(t, s.rally.lastToucher)

	resetAt := s.Frame()
	for s.Frame() < resetAt+uint64(rules.GravityDelayTicks)-1 {
		s.tick()
		require.Equal(t, servePosition(SideLeft), s.Ball().Position, "ball waits for the serve")
	}
	s.tick()
	assert.Equal(t, phaseLive, s.rally.phase)
	assert.Equal(t, 1.0, s.court.world.GravityScale(s.court.ball))
}

func TestGameOverIsTerminal(t *testing.T) {
	s := New(Rules{PointLimit: 1, ResetDelayTicks: 1, GravityDelayTicks: 1})
	dropBall(s, 4.7)
	tickUntilScored(t, s)
	require.True(t, s.GameOver())

	for i := 0; i < 300; i++ {
		s.tick()
		require.True(t, s.GameOver())
		require.True(t, s.Snapshot().GameOver)
	}
	score1, score2 := s.Score()
	assert.Zero(t, score1)
	assert.Equal(t, uint32(1), score2)
	assert.NotEqual(t, servePosition(SideRight), s.Ball().Position, "no reset after game over")
}

func TestPlayerTouch_ReleasesSuspendedBall(t *testing.T) {
	s := New(testRules)
	require.Equal(t, 0.0, s.court.world.GravityScale(s.court.ball))

	s.handleEvents([]physics.CollisionEvent{{A: s.court.player1Col, B: s.court.ballCol}})

	assert.Equal(t, Player1, s.rally.lastToucher)
	assert.Equal(t, 1.0, s.court.world.GravityScale(s.court.ball))
	assert.Equal(t, phaseLive, s.rally.phase)
}

func TestEventsWithoutBallIgnored(t *testing.T) {
	s := New(testRules)
	s.handleEvents([]physics.CollisionEvent{{A: s.court.player1Col, B: s.court.ground}})
	assert.Zero(t, s.rally.lastToucher)
	assert.False(t, s.rally.pointAwarded)
}

func TestSideOwnership(t *testing.T) {
	assert.Equal(t, Player2, SideLeft.Owner())
	assert.Equal(t, Player1, SideRight.Owner())
	assert.Equal(t, Player2, Player1.Opponent())
	assert.Equal(t, Player1, Player2.Opponent())
}

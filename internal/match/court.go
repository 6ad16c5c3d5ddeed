package match

import "github.com/cory-johannsen/volleyball/internal/physics"

// Court dimensions in world units. The court spans x in [0, 8] with the net at x = 4.
const (
	Gravity       = -9.81
	PlayerRadius  = 0.5
	BallRadius    = 0.25
	BallDensity   = 0.9
	PlayerDensity = 1.0

	// ServeHeight is the ball's center height while it waits for a serve.
	ServeHeight = 4.25
)

var (
	player1Start = physics.Vec{X: 6, Y: 3}
	player2Start = physics.Vec{X: 2, Y: 3}

	groundCenter = physics.Vec{X: 4, Y: 0}
	groundHalf   = physics.Vec{X: 4, Y: 0.1}
	netCenter    = physics.Vec{X: 4, Y: 1}
	netHalf      = physics.Vec{X: 0.05, Y: 1}
	wallHalf     = physics.Vec{X: 0.1, Y: 200}
)

// Every static surface exists twice: once facing the ball and once facing the
// players. The engine multiplies restitutions, so the split lets the ball
// bounce at its own restitution off the court while players land dead.
const (
	catBall uint = 1 << iota
	catPlayer
)

var (
	ballFilter    = physics.Filter{Categories: catBall, Mask: physics.FilterAll.Mask}
	playerFilter  = physics.Filter{Categories: catPlayer, Mask: physics.FilterAll.Mask}
	ballSurface   = physics.Filter{Categories: physics.FilterAll.Categories, Mask: catBall}
	playerSurface = physics.Filter{Categories: physics.FilterAll.Categories, Mask: catPlayer}
)

// Box is an axis-aligned static shape.
type Box struct {
	Center      physics.Vec
	HalfExtents physics.Vec
}

// Body is a read-only view of a dynamic circle.
type Body struct {
	Position physics.Vec
	Velocity physics.Vec
	Radius   float64
}

type court struct {
	world *physics.World

	// ground and net face the ball; footing faces the players.
	ground, net, footing            physics.ColliderHandle
	player1, player2, ball          physics.BodyHandle
	player1Col, player2Col, ballCol physics.ColliderHandle
}

func newCourt() *court {
	w := physics.NewWorld(physics.Vec{Y: Gravity})
	c := &court{world: w}

	static := func(center, half physics.Vec, m physics.Material, f physics.Filter) physics.ColliderHandle {
		return w.AddStaticBox(physics.BoxDesc{Center: center, HalfExtents: half, Material: m, Filter: f})
	}
	lively := physics.Material{Restitution: 1, Friction: 0.5}
	dead := physics.Material{Friction: 0.7}
	slick := physics.Material{}

	c.ground = static(groundCenter, groundHalf, lively, ballSurface)
	c.net = static(netCenter, netHalf, lively, ballSurface)
	static(physics.Vec{X: 0, Y: 200}, wallHalf, lively, ballSurface)
	static(physics.Vec{X: 8, Y: 200}, wallHalf, lively, ballSurface)

	// The middle wall keeps each player on its own half; the ball passes over it.
	c.footing = static(groundCenter, groundHalf, dead, playerSurface)
	static(physics.Vec{X: 0, Y: 200}, wallHalf, slick, playerSurface)
	static(physics.Vec{X: 4, Y: 200}, wallHalf, slick, playerSurface)
	static(physics.Vec{X: 8, Y: 200}, wallHalf, slick, playerSurface)

	playerMat := physics.Material{Restitution: 1, Friction: 0.7}
	c.player1, c.player1Col = w.AddDynamicCircle(physics.CircleDesc{
		Position: player1Start,
		Radius:   PlayerRadius,
		Density:  PlayerDensity,
		Material: playerMat,
		Filter:   playerFilter,
	})
	c.player2, c.player2Col = w.AddDynamicCircle(physics.CircleDesc{
		Position: player2Start,
		Radius:   PlayerRadius,
		Density:  PlayerDensity,
		Material: playerMat,
		Filter:   playerFilter,
	})
	c.ball, c.ballCol = w.AddDynamicCircle(physics.CircleDesc{
		Position: servePosition(SideRight),
		Radius:   BallRadius,
		Density:  BallDensity,
		Material: physics.Material{Restitution: 0.8, Friction: 0.5},
		Filter:   ballFilter,
		Events:   true,
	})
	return c
}

// servePosition places the ball above the serving side's player start.
func servePosition(side Side) physics.Vec {
	x := player1Start.X
	if side == SideLeft {
		x = player2Start.X
	}
	return physics.Vec{X: x, Y: ServeHeight}
}

func (c *court) body(h physics.BodyHandle, col physics.ColliderHandle) Body {
	return Body{
		Position: c.world.Position(h),
		Velocity: c.world.Velocity(h),
		Radius:   c.world.CircleRadius(col),
	}
}

func (c *court) box(col physics.ColliderHandle) Box {
	center, half := c.world.BoxGeometry(col)
	return Box{Center: center, HalfExtents: half}
}

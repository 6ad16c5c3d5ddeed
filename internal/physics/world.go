// Package physics wraps the rigid-body engine behind arena handles. Callers
// hold BodyHandle and ColliderHandle values; engine objects never leave the
// package.
package physics

import (
	"math"

	"github.com/jakecoffman/cp"
)

// Vec is a two-dimensional vector in world units.
type Vec struct {
	X, Y float64
}

// Add returns v+o.
func (v Vec) Add(o Vec) Vec { return Vec{X: v.X + o.X, Y: v.Y + o.Y} }

// Scale returns v*s.
func (v Vec) Scale(s float64) Vec { return Vec{X: v.X * s, Y: v.Y * s} }

func (v Vec) cp() cp.Vector { return cp.Vector{X: v.X, Y: v.Y} }

func fromCP(v cp.Vector) Vec { return Vec{X: v.X, Y: v.Y} }

// BodyHandle indexes a dynamic body in one World.
type BodyHandle int

// ColliderHandle indexes a collider in one World.
type ColliderHandle int

// Filter decides which colliders may touch. Two colliders collide when each
// one's Categories intersects the other's Mask.
type Filter struct {
	Categories uint
	Mask       uint
}

// FilterAll collides with everything.
var FilterAll = Filter{Categories: cp.ALL_CATEGORIES, Mask: cp.ALL_CATEGORIES}

// Material holds contact response coefficients.
type Material struct {
	Restitution float64
	Friction    float64
}

// BoxDesc describes a static axis-aligned box.
type BoxDesc struct {
	Center      Vec
	HalfExtents Vec
	Material    Material
	Filter      Filter
}

// CircleDesc describes a dynamic circular body with one collider.
type CircleDesc struct {
	Position Vec
	Radius   float64
	Density  float64
	Material Material
	Filter   Filter
	// Events enables collision-start events for this collider.
	Events bool
}

// CollisionEvent reports that two colliders started touching during a step.
type CollisionEvent struct {
	A, B ColliderHandle
}

// Involves reports whether c is one of the event's colliders and returns the other one.
func (e CollisionEvent) Involves(c ColliderHandle) (ColliderHandle, bool) {
	switch c {
	case e.A:
		return e.B, true
	case e.B:
		return e.A, true
	default:
		return 0, false
	}
}

type body struct {
	body         *cp.Body
	force        Vec
	gravityScale float64
}

type box struct {
	center, half Vec
}

// World is one isolated simulation space. It is not safe for concurrent use.
type World struct {
	space     *cp.Space
	bodies    []*body
	colliders []*cp.Shape
	byShape   map[*cp.Shape]ColliderHandle
	boxes     map[ColliderHandle]box
	radii     map[ColliderHandle]float64
	events    []CollisionEvent
}

const eventCollisionType cp.CollisionType = 1

// collisionSlop is the overlap the solver leaves uncorrected. The engine
// default of 0.1 assumes pixel units; bodies here are a few units across.
const collisionSlop = 0.005

// NewWorld creates an empty world with the given gravity.
//
// Postcondition: Returns a World with no bodies or colliders.
func NewWorld(gravity Vec) *World {
	space := cp.NewSpace()
	space.SetGravity(gravity.cp())
	space.SetCollisionSlop(collisionSlop)

	w := &World{
		space:   space,
		byShape: make(map[*cp.Shape]ColliderHandle),
		boxes:   make(map[ColliderHandle]box),
		radii:   make(map[ColliderHandle]float64),
	}

	handler := space.NewWildcardCollisionHandler(eventCollisionType)
	handler.BeginFunc = func(arb *cp.Arbiter, _ *cp.Space, _ interface{}) bool {
		a, b := arb.Shapes()
		ha, okA := w.byShape[a]
		hb, okB := w.byShape[b]
		if okA && okB {
			w.events = append(w.events, CollisionEvent{A: ha, B: hb})
		}
		return true
	}
	return w
}

func (w *World) addCollider(shape *cp.Shape, m Material, f Filter) ColliderHandle {
	shape.SetElasticity(m.Restitution)
	shape.SetFriction(m.Friction)
	shape.SetFilter(cp.NewShapeFilter(cp.NO_GROUP, f.Categories, f.Mask))
	w.space.AddShape(shape)

	h := ColliderHandle(len(w.colliders))
	w.colliders = append(w.colliders, shape)
	w.byShape[shape] = h
	return h
}

// AddStaticBox adds an immovable box collider.
//
// Precondition: HalfExtents must be positive.
func (w *World) AddStaticBox(d BoxDesc) ColliderHandle {
	bb := cp.BB{
		L: d.Center.X - d.HalfExtents.X,
		B: d.Center.Y - d.HalfExtents.Y,
		R: d.Center.X + d.HalfExtents.X,
		T: d.Center.Y + d.HalfExtents.Y,
	}
	h := w.addCollider(cp.NewBox2(w.space.StaticBody, bb, 0), d.Material, d.Filter)
	w.boxes[h] = box{center: d.Center, half: d.HalfExtents}
	return h
}

// AddDynamicCircle adds a dynamic body carrying one circle collider.
//
// Precondition: Radius and Density must be positive.
func (w *World) AddDynamicCircle(d CircleDesc) (BodyHandle, ColliderHandle) {
	mass := d.Density * math.Pi * d.Radius * d.Radius
	cb := w.space.AddBody(cp.NewBody(mass, cp.MomentForCircle(mass, 0, d.Radius, cp.Vector{})))
	cb.SetPosition(d.Position.cp())

	b := &body{body: cb, gravityScale: 1}
	cb.SetVelocityUpdateFunc(func(cb *cp.Body, gravity cp.Vector, damping, dt float64) {
		cp.BodyUpdateVelocity(cb, gravity.Mult(b.gravityScale), damping, dt)
	})
	bh := BodyHandle(len(w.bodies))
	w.bodies = append(w.bodies, b)

	shape := cp.NewCircle(cb, d.Radius, cp.Vector{})
	if d.Events {
		shape.SetCollisionType(eventCollisionType)
	}
	ch := w.addCollider(shape, d.Material, d.Filter)
	w.radii[ch] = d.Radius
	return bh, ch
}

// Step integrates the world by dt seconds. User forces persist across steps
// until reset; collision-start events accumulate until DrainEvents.
func (w *World) Step(dt float64) {
	for _, b := range w.bodies {
		b.body.SetForce(b.force.cp())
	}
	w.space.Step(dt)
}

// DrainEvents returns and clears the collision-start events recorded since the last drain.
func (w *World) DrainEvents() []CollisionEvent {
	events := w.events
	w.events = nil
	return events
}

// Position returns the body's center.
func (w *World) Position(h BodyHandle) Vec {
	return fromCP(w.bodies[h].body.Position())
}

// SetPosition teleports the body.
func (w *World) SetPosition(h BodyHandle, p Vec) {
	w.bodies[h].body.SetPosition(p.cp())
}

// Velocity returns the body's linear velocity.
func (w *World) Velocity(h BodyHandle) Vec {
	return fromCP(w.bodies[h].body.Velocity())
}

// SetVelocity overwrites the body's linear velocity.
func (w *World) SetVelocity(h BodyHandle, v Vec) {
	w.bodies[h].body.SetVelocity(v.X, v.Y)
}

// SetAngularVelocity overwrites the body's angular velocity.
func (w *World) SetAngularVelocity(h BodyHandle, av float64) {
	w.bodies[h].body.SetAngularVelocity(av)
}

// UserForce returns the persistent force applied at every step.
func (w *World) UserForce(h BodyHandle) Vec {
	return w.bodies[h].force
}

// AddForce accumulates f into the persistent force.
func (w *World) AddForce(h BodyHandle, f Vec) {
	b := w.bodies[h]
	b.force = b.force.Add(f)
}

// ResetForces clears the persistent force.
func (w *World) ResetForces(h BodyHandle) {
	w.bodies[h].force = Vec{}
}

// ApplyImpulse changes the body's momentum at its center of mass.
func (w *World) ApplyImpulse(h BodyHandle, impulse Vec) {
	w.bodies[h].body.ApplyImpulseAtLocalPoint(impulse.cp(), cp.Vector{})
}

// SetGravityScale multiplies world gravity for this body; 0 suspends it.
func (w *World) SetGravityScale(h BodyHandle, s float64) {
	w.bodies[h].gravityScale = s
}

// GravityScale returns the body's gravity multiplier.
func (w *World) GravityScale(h BodyHandle) float64 {
	return w.bodies[h].gravityScale
}

// Mass returns the body's mass.
func (w *World) Mass(h BodyHandle) float64 {
	return w.bodies[h].body.Mass()
}

// InContact reports whether colliders a and b touched during the last step.
//
// Precondition: a must belong to a dynamic body.
func (w *World) InContact(a, b ColliderHandle) bool {
	sa, sb := w.colliders[a], w.colliders[b]
	found := false
	sa.Body().EachArbiter(func(arb *cp.Arbiter) {
		x, y := arb.Shapes()
		if (x == sa && y == sb) || (x == sb && y == sa) {
			found = true
		}
	})
	return found
}

// CircleRadius returns the radius of a circle collider, or 0 for other shapes.
func (w *World) CircleRadius(c ColliderHandle) float64 {
	return w.radii[c]
}

// BoxGeometry returns the center and half extents of a static box collider.
func (w *World) BoxGeometry(c ColliderHandle) (center, halfExtents Vec) {
	bx := w.boxes[c]
	return bx.center, bx.half
}

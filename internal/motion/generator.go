// Package motion produces wheel position references for the controllers.
//
// It is a test stimulus for the control loop, not a planner: the
// reference either holds, ramps at constant wheel speeds, or is pinned
// to the measured position to bring the wheels to rest.
package motion

import "github.com/san-kum/diffbot/internal/dynamo"

type Mode int

const (
	Hold Mode = iota
	Drive
	Brake
)

func (m Mode) String() string {
	switch m {
	case Drive:
		return "drive"
	case Brake:
		return "brake"
	default:
		return "hold"
	}
}

// Generator ramps [q_ref_L, q_ref_R] by speed*dt per Step while driving.
type Generator struct {
	speed dynamo.Vec2
	dt    float64
	ref   dynamo.Vec2
	mode  Mode
}

func NewGenerator(leftSpeed, rightSpeed, dt float64) *Generator {
	return &Generator{speed: dynamo.Vec2{leftSpeed, rightSpeed}, dt: dt}
}

func (g *Generator) Mode() Mode { return g.mode }

func (g *Generator) Reference() dynamo.Vec2 { return g.ref }

// Drive starts ramping from the current reference.
func (g *Generator) Drive() { g.mode = Drive }

// Hold keeps the current reference.
func (g *Generator) Hold() { g.mode = Hold }

// Brake pins the reference to the measured wheel positions.
func (g *Generator) Brake(measured dynamo.Vec2) {
	g.ref = measured
	g.mode = Brake
}

// Reset sets the reference and holds it.
func (g *Generator) Reset(ref dynamo.Vec2) {
	g.ref = ref
	g.mode = Hold
}

// Step advances the reference by one period and returns it.
func (g *Generator) Step() dynamo.Vec2 {
	if g.mode == Drive {
		g.ref = g.ref.Add(g.speed.Scale(g.dt))
	}
	return g.ref
}

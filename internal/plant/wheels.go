// Package plant simulates the wheel drives the controller acts on.
package plant

import (
	"fmt"

	"github.com/san-kum/diffbot/internal/dynamo"
	"github.com/san-kum/diffbot/internal/integrators"
)

// Wheels is a pair of independent wheel drives with rotor inertia and
// viscous friction. State is [q_L, q_R, qd_L, qd_R], control is
// [Q_L, Q_R].
type Wheels struct {
	Inertia  float64
	Friction float64
}

func NewWheels(inertia, friction float64) *Wheels {
	return &Wheels{Inertia: inertia, Friction: friction}
}

func (w *Wheels) StateDim() int   { return 4 }
func (w *Wheels) ControlDim() int { return 2 }

func (w *Wheels) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	qdL, qdR := x[2], x[3]
	return dynamo.State{
		qdL,
		qdR,
		(u[0] - w.Friction*qdL) / w.Inertia,
		(u[1] - w.Friction*qdR) / w.Inertia,
	}
}

// Sim advances Wheels by one period per Step.
type Sim struct {
	dyn   *Wheels
	integ dynamo.Integrator
	dt    float64
	t     float64
	x     dynamo.State
}

// NewSim creates a plant at rest using the named integrator.
func NewSim(w *Wheels, integrator string, dt float64) (*Sim, error) {
	if w.Inertia <= 0 {
		return nil, fmt.Errorf("%w: wheel inertia must be positive, got %g", dynamo.ErrInvalidConfig, w.Inertia)
	}
	integ, err := integrators.New(integrator)
	if err != nil {
		return nil, err
	}
	return &Sim{dyn: w, integ: integ, dt: dt, x: make(dynamo.State, w.StateDim())}, nil
}

// Step applies torques u for one period.
func (s *Sim) Step(u dynamo.Control) error {
	if len(u) != s.dyn.ControlDim() {
		return fmt.Errorf("plant control: %w: got %d, want %d", dynamo.ErrDimensionMismatch, len(u), s.dyn.ControlDim())
	}
	next := s.integ.Step(s.dyn, s.x, u, s.t, s.dt)
	if !next.IsValid() {
		return fmt.Errorf("plant state diverged at t=%.3f: %v", s.t, next)
	}
	s.x = next
	s.t += s.dt
	return nil
}

func (s *Sim) State() dynamo.State { return s.x.Clone() }

func (s *Sim) Time() float64 { return s.t }

// Positions returns the wheel angles [q_L, q_R].
func (s *Sim) Positions() dynamo.Vec2 { return dynamo.Vec2{s.x[0], s.x[1]} }

// Velocities returns the wheel speeds [qd_L, qd_R].
func (s *Sim) Velocities() dynamo.Vec2 { return dynamo.Vec2{s.x[2], s.x[3]} }

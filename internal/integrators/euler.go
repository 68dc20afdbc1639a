package integrators

import "github.com/san-kum/diffbot/internal/dynamo"

// Euler is the explicit first-order method x += dt*f(x).
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	dx := dyn.Derive(x, u, t)
	next := make(dynamo.State, len(x))
	for i := range x {
		next[i] = x[i] + dt*dx[i]
	}
	return next
}

// SemiImplicitEuler updates velocities first and positions from the new
// velocities. The state is laid out as [positions..., velocities...].
type SemiImplicitEuler struct{}

func NewSemiImplicitEuler() *SemiImplicitEuler {
	return &SemiImplicitEuler{}
}

func (s *SemiImplicitEuler) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	half := len(x) / 2
	dx := dyn.Derive(x, u, t)
	next := make(dynamo.State, len(x))
	for i := 0; i < half; i++ {
		next[half+i] = x[half+i] + dt*dx[half+i]
		next[i] = x[i] + dt*next[half+i]
	}
	return next
}

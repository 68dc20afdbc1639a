package integrators

import "github.com/san-kum/diffbot/internal/dynamo"

// Verlet is velocity Verlet for states laid out as
// [positions..., velocities...]. Accelerations that depend on velocity
// (friction) are evaluated at the start-of-step velocity.
type Verlet struct {
	mid dynamo.State
}

func NewVerlet() *Verlet {
	return &Verlet{}
}

func (v *Verlet) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	n := len(x)
	half := n / 2
	if len(v.mid) != n {
		v.mid = make(dynamo.State, n)
	}

	a0 := dyn.Derive(x, u, t)
	next := make(dynamo.State, n)
	for i := 0; i < half; i++ {
		next[i] = x[i] + dt*x[half+i] + 0.5*dt*dt*a0[half+i]
		v.mid[i] = next[i]
		v.mid[half+i] = x[half+i]
	}

	a1 := dyn.Derive(v.mid, u, t+dt)
	for i := 0; i < half; i++ {
		next[half+i] = x[half+i] + 0.5*dt*(a0[half+i]+a1[half+i])
	}
	return next
}

package integrators

import "github.com/san-kum/diffbot/internal/dynamo"

// RK4 is the classic fourth-order Runge-Kutta method. Stage buffers are
// reused between steps, so an RK4 must not be shared between goroutines.
type RK4 struct {
	k    [4]dynamo.State
	tmp  dynamo.State
	size int
}

func NewRK4() *RK4 {
	return &RK4{}
}

var (
	rk4Nodes   = [4]float64{0, 0.5, 0.5, 1}
	rk4Weights = [4]float64{1.0 / 6, 2.0 / 6, 2.0 / 6, 1.0 / 6}
)

func (r *RK4) grow(n int) {
	if r.size == n {
		return
	}
	for i := range r.k {
		r.k[i] = make(dynamo.State, n)
	}
	r.tmp = make(dynamo.State, n)
	r.size = n
}

func (r *RK4) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	n := len(x)
	r.grow(n)

	for s := 0; s < 4; s++ {
		in := x
		if s > 0 {
			h := dt * rk4Nodes[s]
			for i := 0; i < n; i++ {
				r.tmp[i] = x[i] + h*r.k[s-1][i]
			}
			in = r.tmp
		}
		copy(r.k[s], dyn.Derive(in, u, t+dt*rk4Nodes[s]))
	}

	next := make(dynamo.State, n)
	for i := 0; i < n; i++ {
		sum := 0.0
		for s := 0; s < 4; s++ {
			sum += rk4Weights[s] * r.k[s][i]
		}
		next[i] = x[i] + dt*sum
	}
	return next
}

package metrics

import "github.com/san-kum/diffbot/internal/dynamo"

// WheelEnergy tracks the rotational kinetic energy of both wheels.
// The plant state layout is [q_L, q_R, qd_L, qd_R].
type WheelEnergy struct {
	inertia float64
	last    float64
	maxE    float64
	samples int
}

func NewWheelEnergy(inertia float64) *WheelEnergy {
	return &WheelEnergy{inertia: inertia}
}

func (e *WheelEnergy) Name() string { return "wheel_energy" }

func (e *WheelEnergy) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if len(x) < 4 {
		return
	}
	wl, wr := x[2], x[3]
	e.last = 0.5 * e.inertia * (wl*wl + wr*wr)
	if e.last > e.maxE {
		e.maxE = e.last
	}
	e.samples++
}

// Value is the energy at the last observed sample.
func (e *WheelEnergy) Value() float64 { return e.last }

func (e *WheelEnergy) Max() float64 { return e.maxE }

func (e *WheelEnergy) Reset() {
	e.last = 0
	e.maxE = 0
	e.samples = 0
}

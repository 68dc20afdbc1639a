package integrators

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/diffbot/internal/dynamo"
)

// oscillator is the unit harmonic oscillator with state [x, v].
type oscillator struct{}

func (oscillator) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{x[1], -x[0]}
}
func (oscillator) StateDim() int   { return 2 }
func (oscillator) ControlDim() int { return 0 }

// spinUp is a frictionless wheel driven by a constant torque u.
type spinUp struct{}

func (spinUp) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{x[1], u[0]}
}
func (spinUp) StateDim() int   { return 2 }
func (spinUp) ControlDim() int { return 1 }

func run(integ dynamo.Integrator, dyn dynamo.System, x dynamo.State, u dynamo.Control, dt float64, steps int) dynamo.State {
	for i := 0; i < steps; i++ {
		x = integ.Step(dyn, x, u, float64(i)*dt, dt)
	}
	return x
}

func TestOscillatorAccuracy(t *testing.T) {
	tests := []struct {
		name string
		tol  float64
	}{
		{"euler", 1e-2},
		{"semi-implicit", 1e-2},
		{"verlet", 1e-4},
		{"rk4", 1e-8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			integ, err := New(tt.name)
			if err != nil {
				t.Fatal(err)
			}
			x := run(integ, oscillator{}, dynamo.State{1, 0}, nil, 0.01, 100)

			if math.Abs(x[0]-math.Cos(1)) > tt.tol {
				t.Errorf("position: got %.8f, expected %.8f", x[0], math.Cos(1))
			}
			if math.Abs(x[1]+math.Sin(1)) > tt.tol {
				t.Errorf("velocity: got %.8f, expected %.8f", x[1], -math.Sin(1))
			}
		})
	}
}

func TestConstantAccelerationExact(t *testing.T) {
	// q(t) = t^2/2 under unit torque; second-order methods hit it exactly.
	for _, name := range []string{"verlet", "rk4"} {
		integ, _ := New(name)
		x := run(integ, spinUp{}, dynamo.State{0, 0}, dynamo.Control{1}, 0.01, 100)
		if math.Abs(x[0]-0.5) > 1e-12 || math.Abs(x[1]-1) > 1e-12 {
			t.Errorf("%s: expected [0.5 1], got %v", name, x)
		}
	}
}

func TestStepDoesNotAliasInput(t *testing.T) {
	for _, name := range Names() {
		integ, _ := New(name)
		x := dynamo.State{1, 0}
		next := integ.Step(oscillator{}, x, nil, 0, 0.1)
		if x[0] != 1 || x[1] != 0 {
			t.Errorf("%s modified its input state", name)
		}
		next[0] = 42
		again := integ.Step(oscillator{}, x, nil, 0, 0.1)
		if again[0] == 42 {
			t.Errorf("%s returned a shared buffer", name)
		}
	}
}

func TestNew_Unknown(t *testing.T) {
	if _, err := New("rk45"); !errors.Is(err, dynamo.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func BenchmarkRK4(b *testing.B) {
	integ := NewRK4()
	x := dynamo.State{1, 0}
	for i := 0; i < b.N; i++ {
		x = integ.Step(oscillator{}, x, nil, 0, 0.01)
	}
}

package dynamo

import (
	"math"
)

// Scalar is a single-valued signal.
type Scalar float64

func (s Scalar) Add(o Scalar) Scalar    { return s + o }
func (s Scalar) Sub(o Scalar) Scalar    { return s - o }
func (s Scalar) Scale(k float64) Scalar { return Scalar(float64(s) * k) }
func (s Scalar) IsValid() bool          { return !math.IsNaN(float64(s)) && !math.IsInf(float64(s), 0) }
func (s Scalar) Float() float64         { return float64(s) }

// Vec2 is a planar vector signal, e.g. [v_x, v_y] or [left, right].
type Vec2 [2]float64

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{v[0] + o[0], v[1] + o[1]} }
func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{v[0] - o[0], v[1] - o[1]} }

func (v Vec2) Scale(k float64) Vec2 { return Vec2{v[0] * k, v[1] * k} }

func (v Vec2) Norm() float64 { return math.Hypot(v[0], v[1]) }

func (v Vec2) IsValid() bool {
	for _, c := range v {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// Value is the arithmetic every signal type flowing through the
// numeric blocks must provide.
type Value[T any] interface {
	Add(T) T
	Sub(T) T
	Scale(float64) T
}

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

func (s State) Add(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] + other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

func (s State) Scale(factor float64) State {
	result := make(State, len(s))
	for i := range s {
		result[i] = s[i] * factor
	}
	return result
}

func (s State) Sub(other State) State {
	result := make(State, len(s))
	for i := range s {
		if i < len(other) {
			result[i] = s[i] - other[i]
		} else {
			result[i] = s[i]
		}
	}
	return result
}

type Control []float64

// System is a continuous plant dX/dt = f(X, u, t).
type System interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

type Integrator interface {
	Step(dyn System, x State, u Control, t float64, dt float64) State
}

// Metric accumulates a figure of merit over a run.
type Metric interface {
	Name() string
	Observe(x State, u Control, t float64)
	Value() float64
	Reset()
}

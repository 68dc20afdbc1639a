package block

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/diffbot/internal/dynamo"
)

func TestSum_Negate(t *testing.T) {
	a := NewConstant[dynamo.Scalar](5)
	b := NewConstant[dynamo.Scalar](3)

	s := NewSum[dynamo.Scalar](2)
	s.In(0).Connect(a.Out())
	s.In(1).Connect(b.Out())
	s.Negate(1)

	a.Run(0.5)
	b.Run(0.5)
	s.Run(0.5)

	if got := s.Out().Value(); got != 2 {
		t.Errorf("expected 5-3=2, got %v", got)
	}
	if ts := s.Out().Signal().Timestamp; ts != 0.5 {
		t.Errorf("expected timestamp 0.5, got %v", ts)
	}

	s.Negate(1)
	s.Run(0.5)
	if got := s.Out().Value(); got != 8 {
		t.Errorf("expected toggled sign to add, got %v", got)
	}
}

func TestSum_IndexOutOfBounds(t *testing.T) {
	s := NewSum[dynamo.Scalar](2)
	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, dynamo.ErrIndexOutOfBounds) {
			t.Errorf("expected ErrIndexOutOfBounds panic, got %v", r)
		}
	}()
	s.In(2)
}

func TestGain(t *testing.T) {
	src := NewConstant(dynamo.Vec2{1, -2})
	g := NewGain[dynamo.Vec2](3)
	g.In().Connect(src.Out())

	src.Run(0)
	g.Run(0)

	if got := g.Out().Value(); got != (dynamo.Vec2{3, -6}) {
		t.Errorf("expected {3 -6}, got %v", got)
	}
}

func TestD(t *testing.T) {
	dt := 0.01
	src := NewConstant[dynamo.Scalar](1)
	d := NewD[dynamo.Scalar](dt)
	d.In().Connect(src.Out())

	src.Run(0)
	d.Run(0)
	if got := d.Out().Value(); got != 0 {
		t.Errorf("first tick should yield 0, got %v", got)
	}

	src.Set(1.5)
	src.Run(dt)
	d.Run(dt)
	if got := float64(d.Out().Value()); math.Abs(got-50) > 1e-9 {
		t.Errorf("expected 0.5/0.01=50, got %v", got)
	}

	d.Reset()
	src.Run(2 * dt)
	d.Run(2 * dt)
	if got := d.Out().Value(); got != 0 {
		t.Errorf("first tick after reset should yield 0, got %v", got)
	}
}

func TestI(t *testing.T) {
	dt := 0.1
	src := NewConstant[dynamo.Scalar](2)
	integ := NewI[dynamo.Scalar](dt)
	integ.In().Connect(src.Out())

	if err := integ.SetInitCondition(1); err != nil {
		t.Fatalf("set init condition: %v", err)
	}
	if got := integ.Out().Value(); got != 1 {
		t.Errorf("output should reflect initial condition, got %v", got)
	}

	src.Run(0)
	integ.Run(0)
	if got := integ.Out().Value(); got != 1 {
		t.Errorf("disabled integrator should hold, got %v", got)
	}

	integ.Enable()
	for k := 0; k < 5; k++ {
		src.Run(float64(k) * dt)
		integ.Run(float64(k) * dt)
	}
	if got := float64(integ.Out().Value()); math.Abs(got-2) > 1e-9 {
		t.Errorf("expected 1 + 5*2*0.1 = 2, got %v", got)
	}

	err := integ.SetInitCondition(0)
	if !errors.Is(err, dynamo.ErrIntegratorReinitWhileEnabled) {
		t.Errorf("expected ErrIntegratorReinitWhileEnabled, got %v", err)
	}
	if got := float64(integ.Out().Value()); math.Abs(got-2) > 1e-9 {
		t.Errorf("rejected reinit must not change state, got %v", got)
	}
}

func TestBlockio(t *testing.T) {
	l := NewConstant[dynamo.Scalar](1)
	r := NewConstant[dynamo.Scalar](3)
	mux := NewBlockio(2, 1, func(in []dynamo.Scalar, out []dynamo.Vec2) {
		out[0] = dynamo.Vec2{float64(in[0]), float64(in[1])}
	})
	mux.In(0).Connect(l.Out())
	mux.In(1).Connect(r.Out())

	l.Run(0.2)
	r.Run(0.2)
	mux.Run(0.2)

	sig := mux.Out(0).Signal()
	if sig.Value != (dynamo.Vec2{1, 3}) {
		t.Errorf("expected {1 3}, got %v", sig.Value)
	}
	if sig.Timestamp != 0.2 {
		t.Errorf("expected timestamp 0.2, got %v", sig.Timestamp)
	}
}

func TestInputSub(t *testing.T) {
	src := NewConstant[dynamo.Scalar](4)
	var sub InputSub[dynamo.Scalar]
	sub.Connect(src.Out())

	g := NewGain[dynamo.Scalar](0.5)
	g.In().Connect(&sub)

	src.Run(1)
	g.Run(1)
	if got := g.Out().Value(); got != 2 {
		t.Errorf("expected 2, got %v", got)
	}
}

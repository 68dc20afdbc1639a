package control

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/diffbot/internal/block"
	"github.com/san-kum/diffbot/internal/dynamo"
)

func wire(t *testing.T, c *Controller[dynamo.Scalar]) (ref, meas *block.Constant[dynamo.Scalar]) {
	t.Helper()
	ref = block.NewConstant[dynamo.Scalar](0)
	meas = block.NewConstant[dynamo.Scalar](0)
	in0, err := c.In(0)
	if err != nil {
		t.Fatalf("In(0): %v", err)
	}
	in1, err := c.In(1)
	if err != nil {
		t.Fatalf("In(1): %v", err)
	}
	in0.Connect(ref.Out())
	in1.Connect(meas.Out())
	return ref, meas
}

func tick(now float64, blocks ...block.Block) {
	for _, b := range blocks {
		b.Run(now)
	}
}

func TestController_Gains(t *testing.T) {
	tests := []struct {
		name   string
		ctrl   *Controller[dynamo.Scalar]
		kp, kd float64
	}{
		{"continuous", NewController[dynamo.Scalar](0.01, 10, 0.7, 1), 100, 14},
		{"discrete", NewDiscreteController[dynamo.Scalar](0.01, 100, 0.7, 5, 2), math.Pow(100/(2*5*0.7), 2), 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if math.Abs(tt.ctrl.Kp()-tt.kp) > 1e-9 {
				t.Errorf("Kp = %v, want %v", tt.ctrl.Kp(), tt.kp)
			}
			if math.Abs(tt.ctrl.Kd()-tt.kd) > 1e-9 {
				t.Errorf("Kd = %v, want %v", tt.ctrl.Kd(), tt.kd)
			}
		})
	}
}

func TestController_StepResponse(t *testing.T) {
	dt := 0.01
	c := NewController[dynamo.Scalar](dt, 10, 0.7, 1)
	ref, meas := wire(t, c)

	tick(0, ref, meas, c)
	if got := c.Torque().Value(); got != 0 {
		t.Fatalf("expected zero torque before the step, got %v", got)
	}

	ref.Set(1)
	tick(dt, ref, meas, c)

	want := c.Kp()*1 + c.Kd()*(1/dt)
	if got := float64(c.Torque().Value()); math.Abs(got-want) > 1e-6 {
		t.Errorf("Q at t=dt = %v, want Kp + Kd/dt = %v", got, want)
	}
	if ts := c.Torque().Signal().Timestamp; ts != dt {
		t.Errorf("torque timestamp = %v, want %v", ts, dt)
	}

	tick(2*dt, ref, meas, c)
	if got := float64(c.Torque().Value()); math.Abs(got-c.Kp()) > 1e-6 {
		t.Errorf("once ė settles Q should be Kp·e = %v, got %v", c.Kp(), got)
	}
}

func TestController_SettledAtEquilibrium(t *testing.T) {
	dt := 0.01
	c := NewController[dynamo.Scalar](dt, 10, 0.7, 3)
	ref, meas := wire(t, c)
	ref.Set(0.8)
	meas.Set(0.8)

	tick(0, ref, meas, c)
	tick(dt, ref, meas, c)

	if got := c.Torque().Value(); got != 0 {
		t.Errorf("expected Q=0 with q_ref=q_meas, got %v", got)
	}
	if got := c.Velocity().Value(); got != 0 {
		t.Errorf("expected qd=0 for constant q_meas, got %v", got)
	}
}

func TestController_MeasuredVelocity(t *testing.T) {
	dt := 0.01
	c := NewController[dynamo.Scalar](dt, 10, 0.7, 1)
	ref, meas := wire(t, c)

	tick(0, ref, meas, c)
	meas.Set(0.05)
	tick(dt, ref, meas, c)

	if got := float64(c.Velocity().Value()); math.Abs(got-5) > 1e-9 {
		t.Errorf("expected qd = 0.05/0.01 = 5, got %v", got)
	}
}

func TestController_IndexOutOfBounds(t *testing.T) {
	c := NewController[dynamo.Scalar](0.01, 10, 0.7, 1)

	if _, err := c.In(2); !errors.Is(err, dynamo.ErrIndexOutOfBounds) {
		t.Errorf("In(2): expected ErrIndexOutOfBounds, got %v", err)
	}
	if _, err := c.Out(2); !errors.Is(err, dynamo.ErrIndexOutOfBounds) {
		t.Errorf("Out(2): expected ErrIndexOutOfBounds, got %v", err)
	}
	if _, err := c.In(-1); err == nil {
		t.Error("In(-1): expected error")
	}
}

func TestController_Unbound(t *testing.T) {
	c := NewController[dynamo.Vec2](0.01, 10, 0.7, 1)
	c.SetName("left")
	if got := c.Unbound(); len(got) != 2 {
		t.Fatalf("expected both inputs unbound, got %v", got)
	}

	in0, _ := c.In(0)
	in0.Connect(block.NewConstant(dynamo.Vec2{}).Out())
	got := c.Unbound()
	if len(got) != 1 || got[0] != "left.in[1]" {
		t.Errorf("expected only left.in[1] unbound, got %v", got)
	}
}

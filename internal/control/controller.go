package control

import (
	"github.com/san-kum/diffbot/internal/block"
	"github.com/san-kum/diffbot/internal/dynamo"
)

// Controller computes Q = M·(Kp·e + Kd·ė) with e = q_ref − q_meas.
//
// Ports: In(0) = q_ref, In(1) = q_meas, Out(0) = Q, Out(1) = q̇_meas.
type Controller[T dynamo.Value[T]] struct {
	name string

	q    block.InputSub[T]
	e    *block.Sum[T]
	qddC *block.Sum[T]
	kp   *block.Gain[T]
	kd   *block.Gain[T]
	m    *block.Gain[T]
	ed   *block.D[T]
	qd   *block.D[T]
}

// NewController builds the continuous form: Kp = ω₀², Kd = 2ζω₀.
func NewController[T dynamo.Value[T]](dt, omega0, zeta, mass float64) *Controller[T] {
	return newController[T](dt, omega0*omega0, 2.0*zeta*omega0, mass)
}

// NewDiscreteController builds the form tuned from the task frequency:
// Kp = (fTask/(2·s·ζ))², Kd = fTask/s.
func NewDiscreteController[T dynamo.Value[T]](dt, fTask, zeta, s, mass float64) *Controller[T] {
	kp := fTask / 2.0 / s / zeta
	return newController[T](dt, kp*kp, fTask/s, mass)
}

func newController[T dynamo.Value[T]](dt, kp, kd, mass float64) *Controller[T] {
	c := &Controller[T]{
		e:    block.NewSum[T](2),
		qddC: block.NewSum[T](2),
		kp:   block.NewGain[T](kp),
		kd:   block.NewGain[T](kd),
		m:    block.NewGain[T](mass),
		ed:   block.NewD[T](dt),
		qd:   block.NewD[T](dt),
	}
	c.SetName("controller")

	c.qd.Out().SetName("qd [rad/s]")
	c.e.Out().SetName("e [rad]")
	c.kp.Out().SetName("qdd_cp [rad/s²]")
	c.ed.Out().SetName("ed [rad/s]")
	c.kd.Out().SetName("qdd_cd [rad/s²]")
	c.qddC.Out().SetName("qdd_c [rad/s²]")
	c.m.Out().SetName("Q [Nm]")

	c.qd.In().Connect(&c.q)
	c.e.In(1).Connect(&c.q)
	c.e.Negate(1)
	c.kp.In().Connect(c.e.Out())
	c.ed.In().Connect(c.e.Out())
	c.kd.In().Connect(c.ed.Out())
	c.qddC.In(0).Connect(c.kp.Out())
	c.qddC.In(1).Connect(c.kd.Out())
	c.m.In().Connect(c.qddC.Out())

	return c
}

func (c *Controller[T]) Name() string { return c.name }

// SetName renames the controller and its children.
func (c *Controller[T]) SetName(name string) {
	c.name = name
	c.qd.SetName(name + "->qd")
	c.e.SetName(name + "->e")
	c.kp.SetName(name + "->Kp")
	c.ed.SetName(name + "->ed")
	c.kd.SetName(name + "->Kd")
	c.qddC.SetName(name + "->qdd_c")
	c.m.SetName(name + "->M")
}

func (c *Controller[T]) Kp() float64   { return c.kp.Gain() }
func (c *Controller[T]) Kd() float64   { return c.kd.Gain() }
func (c *Controller[T]) Mass() float64 { return c.m.Gain() }

func (c *Controller[T]) In(index int) (*block.Input[T], error) {
	switch index {
	case 0:
		return c.e.In(0), nil
	case 1:
		return &c.q.Input, nil
	default:
		return nil, &dynamo.PortError{Block: c.name, Port: index, Wrapped: dynamo.ErrIndexOutOfBounds}
	}
}

func (c *Controller[T]) Out(index int) (*block.Output[T], error) {
	switch index {
	case 0:
		return c.m.Out(), nil
	case 1:
		return c.qd.Out(), nil
	default:
		return nil, &dynamo.PortError{Block: c.name, Port: index, Wrapped: dynamo.ErrIndexOutOfBounds}
	}
}

// Torque is Out(0).
func (c *Controller[T]) Torque() *block.Output[T] { return c.m.Out() }

// Velocity is Out(1), the differentiated measured position.
func (c *Controller[T]) Velocity() *block.Output[T] { return c.qd.Out() }

// Reset makes both differentiators yield zero on the next tick.
func (c *Controller[T]) Reset() {
	c.qd.Reset()
	c.ed.Reset()
}

func (c *Controller[T]) Run(now float64) {
	c.qd.Run(now)
	c.e.Run(now)
	c.kp.Run(now)
	c.ed.Run(now)
	c.kd.Run(now)
	c.qddC.Run(now)
	c.m.Run(now)
}

func (c *Controller[T]) Unbound() []string {
	var names []string
	if !c.e.In(0).Bound() {
		names = append(names, c.name+".in[0]")
	}
	if !c.q.Bound() {
		names = append(names, c.name+".in[1]")
	}
	return names
}

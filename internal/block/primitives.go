package block

import (
	"github.com/san-kum/diffbot/internal/dynamo"
)

// Sum adds its inputs; negated inputs are subtracted.
type Sum[T dynamo.Value[T]] struct {
	base
	in  []Input[T]
	neg []bool
	out Output[T]
}

func NewSum[T dynamo.Value[T]](n int) *Sum[T] {
	return &Sum[T]{
		base: base{name: "sum"},
		in:   make([]Input[T], n),
		neg:  make([]bool, n),
	}
}

// In panics on a nonexistent index; wiring is fixed at startup.
func (s *Sum[T]) In(i int) *Input[T] {
	if i < 0 || i >= len(s.in) {
		panic(outOfBounds(s.name, i))
	}
	return &s.in[i]
}

func (s *Sum[T]) Out() *Output[T] { return &s.out }

// Negate toggles the sign of input i.
func (s *Sum[T]) Negate(i int) {
	if i < 0 || i >= len(s.neg) {
		panic(outOfBounds(s.name, i))
	}
	s.neg[i] = !s.neg[i]
}

func (s *Sum[T]) Run(now float64) {
	var acc T
	for i := range s.in {
		v := s.in[i].Value()
		if s.neg[i] {
			acc = acc.Sub(v)
		} else {
			acc = acc.Add(v)
		}
	}
	ts := now
	if len(s.in) > 0 {
		ts = s.in[0].Signal().Timestamp
	}
	s.out.Set(acc, ts)
}

func (s *Sum[T]) Unbound() []string {
	var names []string
	for i := range s.in {
		if !s.in[i].Bound() {
			names = append(names, portName(s.name, i))
		}
	}
	return names
}

// Gain multiplies its input by a constant.
type Gain[T dynamo.Value[T]] struct {
	base
	k   float64
	in  Input[T]
	out Output[T]
}

func NewGain[T dynamo.Value[T]](k float64) *Gain[T] {
	return &Gain[T]{base: base{name: "gain"}, k: k}
}

func (g *Gain[T]) In() *Input[T]   { return &g.in }
func (g *Gain[T]) Out() *Output[T] { return &g.out }
func (g *Gain[T]) Gain() float64   { return g.k }
func (g *Gain[T]) SetGain(k float64) {
	g.k = k
}

func (g *Gain[T]) Run(now float64) {
	sig := g.in.Signal()
	g.out.Set(sig.Value.Scale(g.k), sig.Timestamp)
}

func (g *Gain[T]) Unbound() []string {
	if g.in.Bound() {
		return nil
	}
	return []string{portName(g.name, 0)}
}

// D is a first-order backward difference with fixed period dt. The
// first tick after construction or Reset yields zero.
type D[T dynamo.Value[T]] struct {
	base
	dt    float64
	prev  T
	first bool
	in    Input[T]
	out   Output[T]
}

func NewD[T dynamo.Value[T]](dt float64) *D[T] {
	return &D[T]{base: base{name: "d"}, dt: dt, first: true}
}

func (d *D[T]) In() *Input[T]   { return &d.in }
func (d *D[T]) Out() *Output[T] { return &d.out }
func (d *D[T]) Reset()          { d.first = true }

func (d *D[T]) Run(now float64) {
	sig := d.in.Signal()
	var v T
	if d.first {
		d.first = false
	} else {
		v = sig.Value.Sub(d.prev).Scale(1 / d.dt)
	}
	d.prev = sig.Value
	d.out.Set(v, sig.Timestamp)
}

func (d *D[T]) Unbound() []string {
	if d.in.Bound() {
		return nil
	}
	return []string{portName(d.name, 0)}
}

// I accumulates its input times dt while enabled and holds its value
// while disabled. Integrators start disabled.
type I[T dynamo.Value[T]] struct {
	base
	dt      float64
	ic      T
	state   T
	enabled bool
	in      Input[T]
	out     Output[T]
}

func NewI[T dynamo.Value[T]](dt float64) *I[T] {
	return &I[T]{base: base{name: "i"}, dt: dt}
}

func (i *I[T]) In() *Input[T]   { return &i.in }
func (i *I[T]) Out() *Output[T] { return &i.out }
func (i *I[T]) Enable()         { i.enabled = true }
func (i *I[T]) Disable()        { i.enabled = false }
func (i *I[T]) Enabled() bool   { return i.enabled }
func (i *I[T]) InitCondition() T {
	return i.ic
}

// SetInitCondition resets the accumulator to v. The output reflects v
// immediately. It is rejected while the integrator is enabled.
func (i *I[T]) SetInitCondition(v T) error {
	if i.enabled {
		return &dynamo.PortError{Block: i.name, Port: 0, Wrapped: dynamo.ErrIntegratorReinitWhileEnabled}
	}
	i.ic = v
	i.state = v
	i.out.Set(v, i.out.Signal().Timestamp)
	return nil
}

func (i *I[T]) Run(now float64) {
	sig := i.in.Signal()
	if i.enabled {
		i.state = i.state.Add(sig.Value.Scale(i.dt))
	}
	i.out.Set(i.state, sig.Timestamp)
}

func (i *I[T]) Unbound() []string {
	if i.in.Bound() {
		return nil
	}
	return []string{portName(i.name, 0)}
}

// Constant is a source whose value is set from outside the graph and
// stamped with the tick time.
type Constant[T any] struct {
	base
	value T
	out   Output[T]
}

func NewConstant[T any](v T) *Constant[T] {
	return &Constant[T]{base: base{name: "constant"}, value: v}
}

func (c *Constant[T]) Out() *Output[T] { return &c.out }
func (c *Constant[T]) Set(v T)         { c.value = v }
func (c *Constant[T]) Get() T          { return c.value }

func (c *Constant[T]) Run(now float64) {
	c.out.Set(c.value, now)
}

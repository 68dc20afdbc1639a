package block

import (
	"fmt"

	"github.com/san-kum/diffbot/internal/dynamo"
)

// Signal is a timestamped value. Timestamps are tick times in seconds.
type Signal[T any] struct {
	Value     T
	Timestamp float64
	Name      string
}

// Source is anything an Input can read from.
type Source[T any] interface {
	Signal() Signal[T]
}

// Output owns the signal written by its block.
type Output[T any] struct {
	sig Signal[T]
}

func (o *Output[T]) Signal() Signal[T] { return o.sig }
func (o *Output[T]) Value() T          { return o.sig.Value }
func (o *Output[T]) SetName(name string) {
	o.sig.Name = name
}

// Set writes the value and stamps it.
func (o *Output[T]) Set(v T, timestamp float64) {
	o.sig.Value = v
	o.sig.Timestamp = timestamp
}

// Input reads from exactly one upstream source. Connecting again
// replaces the previous upstream.
type Input[T any] struct {
	src Source[T]
}

func (i *Input[T]) Connect(src Source[T]) { i.src = src }
func (i *Input[T]) Bound() bool           { return i.src != nil }

// Signal returns the upstream signal, or the zero signal when unbound.
func (i *Input[T]) Signal() Signal[T] {
	if i.src == nil {
		return Signal[T]{}
	}
	return i.src.Signal()
}

func (i *Input[T]) Value() T { return i.Signal().Value }

// InputSub is an external input of a composite block that the
// composite's children read as if it were an output.
type InputSub[T any] struct {
	Input[T]
}

// Block is a node of the graph. Run reads the current inputs and
// writes the outputs.
type Block interface {
	Name() string
	Run(now float64)
}

// Checker reports inputs that have no upstream.
type Checker interface {
	Unbound() []string
}

type base struct {
	name string
}

func (b *base) Name() string        { return b.name }
func (b *base) SetName(name string) { b.name = name }

func portName(block string, idx int) string {
	return fmt.Sprintf("%s.in[%d]", block, idx)
}

func outOfBounds(block string, idx int) error {
	return &dynamo.PortError{Block: block, Port: idx, Wrapped: dynamo.ErrIndexOutOfBounds}
}

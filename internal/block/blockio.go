package block

// Func maps the current input values to output values. It must only
// write to out and must not keep references to either slice.
type Func[In, Out any] func(in []In, out []Out)

// Blockio runs a Func over N inputs and M outputs. Outputs are stamped
// with the timestamp of the first input.
type Blockio[In, Out any] struct {
	base
	in     []Input[In]
	out    []Output[Out]
	fn     Func[In, Out]
	inBuf  []In
	outBuf []Out
}

func NewBlockio[In, Out any](nIn, nOut int, fn func(in []In, out []Out)) *Blockio[In, Out] {
	return &Blockio[In, Out]{
		base:   base{name: "blockio"},
		in:     make([]Input[In], nIn),
		out:    make([]Output[Out], nOut),
		fn:     fn,
		inBuf:  make([]In, nIn),
		outBuf: make([]Out, nOut),
	}
}

func (b *Blockio[In, Out]) In(i int) *Input[In] {
	if i < 0 || i >= len(b.in) {
		panic(outOfBounds(b.name, i))
	}
	return &b.in[i]
}

func (b *Blockio[In, Out]) Out(i int) *Output[Out] {
	if i < 0 || i >= len(b.out) {
		panic(outOfBounds(b.name, i))
	}
	return &b.out[i]
}

func (b *Blockio[In, Out]) Run(now float64) {
	ts := now
	for i := range b.in {
		sig := b.in[i].Signal()
		if i == 0 {
			ts = sig.Timestamp
		}
		b.inBuf[i] = sig.Value
	}
	b.fn(b.inBuf, b.outBuf)
	for i := range b.out {
		b.out[i].Set(b.outBuf[i], ts)
	}
}

func (b *Blockio[In, Out]) Unbound() []string {
	var names []string
	for i := range b.in {
		if !b.in[i].Bound() {
			names = append(names, portName(b.name, i))
		}
	}
	return names
}

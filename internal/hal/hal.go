// Package hal exposes named digital inputs and outputs.
//
// Logical names are resolved once at startup; a missing name is a fatal
// configuration error reported as [dynamo.ErrHALMissingIO]. Accessors
// never block.
package hal

import (
	"fmt"
	"sort"
	"sync"

	"github.com/san-kum/diffbot/internal/dynamo"
)

// Input is a digital input. Buttons are active low: pressed reads false.
type Input interface {
	Name() string
	Get() bool
}

// Output is a digital output.
type Output interface {
	Name() string
	Get() bool
	Set(v bool)
}

// HAL resolves logical names to digital I/O.
type HAL interface {
	LogicInput(name string) (Input, error)
	LogicOutput(name string) (Output, error)
}

type pin struct {
	name string
	mu   *sync.RWMutex
	v    bool
}

func (p *pin) Name() string { return p.name }

func (p *pin) Get() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.v
}

func (p *pin) Set(v bool) {
	p.mu.Lock()
	p.v = v
	p.mu.Unlock()
}

// Sim is an in-memory HAL. Inputs start high (released).
type Sim struct {
	mu      sync.RWMutex
	inputs  map[string]*pin
	outputs map[string]*pin
}

func NewSim(inputs, outputs []string) *Sim {
	s := &Sim{
		inputs:  make(map[string]*pin, len(inputs)),
		outputs: make(map[string]*pin, len(outputs)),
	}
	for _, name := range inputs {
		s.inputs[name] = &pin{name: name, mu: &s.mu, v: true}
	}
	for _, name := range outputs {
		s.outputs[name] = &pin{name: name, mu: &s.mu}
	}
	return s
}

func (s *Sim) LogicInput(name string) (Input, error) {
	p, ok := s.inputs[name]
	if !ok {
		return nil, fmt.Errorf("input %q: %w", name, dynamo.ErrHALMissingIO)
	}
	return p, nil
}

func (s *Sim) LogicOutput(name string) (Output, error) {
	p, ok := s.outputs[name]
	if !ok {
		return nil, fmt.Errorf("output %q: %w", name, dynamo.ErrHALMissingIO)
	}
	return p, nil
}

// SetInput drives a simulated input level.
func (s *Sim) SetInput(name string, v bool) error {
	p, ok := s.inputs[name]
	if !ok {
		return fmt.Errorf("input %q: %w", name, dynamo.ErrHALMissingIO)
	}
	p.Set(v)
	return nil
}

// Press pulls an active-low button input low.
func (s *Sim) Press(name string) error { return s.SetInput(name, false) }

// Release returns an active-low button input high.
func (s *Sim) Release(name string) error { return s.SetInput(name, true) }

// Output reads back an output level.
func (s *Sim) Output(name string) (bool, error) {
	p, ok := s.outputs[name]
	if !ok {
		return false, fmt.Errorf("output %q: %w", name, dynamo.ErrHALMissingIO)
	}
	return p.Get(), nil
}

// Outputs returns a snapshot of every output level keyed by name.
func (s *Sim) Outputs() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.outputs))
	for name, p := range s.outputs {
		out[name] = p.v
	}
	return out
}

// Names lists the declared inputs and outputs, sorted.
func (s *Sim) Names() (inputs, outputs []string) {
	for name := range s.inputs {
		inputs = append(inputs, name)
	}
	for name := range s.outputs {
		outputs = append(outputs, name)
	}
	sort.Strings(inputs)
	sort.Strings(outputs)
	return inputs, outputs
}

package safety

import (
	"errors"
	"fmt"

	"github.com/san-kum/diffbot/internal/dynamo"
)

type broadcast struct {
	lower, upper *Level
	event        *Event
	target       *Level
	kind         Kind
}

// Properties collects the levels, events and critical I/O of a
// supervisor. It is filled once at startup and is immutable after
// Verify succeeds.
type Properties struct {
	levels     []*Level
	byID       map[string]*Level
	inputs     []string
	outputs    []string
	broadcasts []broadcast

	entry *Level
	abort *Event
	exit  func(ctx *Context)

	table  map[string][]Transition
	events []*Event
}

func NewProperties() *Properties {
	return &Properties{byID: make(map[string]*Level)}
}

// AddLevel registers l. Levels are ordered by registration; that order
// is what AddEventToAllLevelsBetween ranges over.
func (p *Properties) AddLevel(l *Level) error {
	if l == nil {
		return fmt.Errorf("%w: nil level", dynamo.ErrInvalidConfig)
	}
	if _, dup := p.byID[l.id]; dup {
		return fmt.Errorf("%w: level %s registered twice", dynamo.ErrInvalidConfig, l.id)
	}
	l.index = len(p.levels)
	p.levels = append(p.levels, l)
	p.byID[l.id] = l
	return nil
}

// AddCriticalInputs declares HAL inputs every level must have an input
// action for.
func (p *Properties) AddCriticalInputs(names ...string) {
	p.inputs = append(p.inputs, names...)
}

// AddCriticalOutputs declares HAL outputs every level must drive.
func (p *Properties) AddCriticalOutputs(names ...string) {
	p.outputs = append(p.outputs, names...)
}

// AddEventToAllLevelsBetween maps e to target in every level whose index
// lies in [lower, upper]. Explicit mappings of e in a level take
// precedence over the broadcast.
func (p *Properties) AddEventToAllLevelsBetween(lower, upper *Level, e *Event, target *Level, kind Kind) {
	p.broadcasts = append(p.broadcasts, broadcast{lower: lower, upper: upper, event: e, target: target, kind: kind})
}

func (p *Properties) SetEntryLevel(l *Level) {
	p.entry = l
}

// SetAbortEvent names the event injected when a level action fails and
// by the default exit function.
func (p *Properties) SetAbortEvent(e *Event) {
	p.abort = e
}

// SetExitFunction sets the function run once by Supervisor.Shutdown.
func (p *Properties) SetExitFunction(fn func(ctx *Context)) {
	p.exit = fn
}

func (p *Properties) Levels() []*Level { return p.levels }
func (p *Properties) Entry() *Level    { return p.entry }
func (p *Properties) Inputs() []string { return p.inputs }
func (p *Properties) Outputs() []string {
	return p.outputs
}

// Level looks a level up by id.
func (p *Properties) Level(id string) (*Level, bool) {
	l, ok := p.byID[id]
	return l, ok
}

// Events lists every event that appears in a transition or input
// action, in first-seen order. Valid after Verify.
func (p *Properties) Events() []*Event { return p.events }

// Transitions returns the expanded transition table of l, explicit
// entries first. Valid after Verify.
func (p *Properties) Transitions(l *Level) []Transition {
	return p.table[l.id]
}

func (p *Properties) lookup(l *Level, e *Event) (Transition, bool) {
	for _, t := range p.table[l.id] {
		if t.Event.id == e.id {
			return t, true
		}
	}
	return Transition{}, false
}

func (p *Properties) registered(l *Level) bool {
	return l != nil && p.byID[l.id] == l
}

// Verify checks the tables and expands broadcast registrations. Every
// problem found is reported; each wraps dynamo.ErrInvalidConfig.
func (p *Properties) Verify() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{dynamo.ErrInvalidConfig}, args...)...))
	}

	if len(p.levels) == 0 {
		fail("no levels registered")
	}
	if p.entry == nil {
		fail("no entry level")
	} else if !p.registered(p.entry) {
		fail("entry level %s not registered", p.entry.id)
	}

	table := make(map[string][]Transition, len(p.levels))
	for _, l := range p.levels {
		table[l.id] = append([]Transition(nil), l.explicit...)
	}
	for _, b := range p.broadcasts {
		if b.event == nil {
			fail("broadcast with nil event")
			continue
		}
		if !p.registered(b.lower) || !p.registered(b.upper) || !p.registered(b.target) {
			fail("broadcast %s references an unregistered level", b.event.id)
			continue
		}
		if b.lower.index > b.upper.index {
			fail("broadcast %s: lower level %s after upper level %s", b.event.id, b.lower.id, b.upper.id)
			continue
		}
		for _, l := range p.levels[b.lower.index : b.upper.index+1] {
			if hasEvent(table[l.id], b.event) {
				continue
			}
			table[l.id] = append(table[l.id], Transition{Event: b.event, Target: b.target, Kind: b.kind, Broadcast: true})
		}
	}

	seen := make(map[string]*Event)
	var events []*Event
	note := func(e *Event) {
		if prev, ok := seen[e.id]; ok {
			if prev != e {
				fail("two events share id %s", e.id)
			}
			return
		}
		seen[e.id] = e
		events = append(events, e)
	}

	for _, l := range p.levels {
		for _, t := range table[l.id] {
			note(t.Event)
			if !p.registered(t.Target) {
				fail("level %s: event %s targets unregistered level %s", l.id, t.Event.id, t.Target.id)
			}
		}
		for _, in := range p.inputs {
			a, ok := l.inputs[in]
			if !ok {
				fail("level %s: no action for input %s", l.id, in)
				continue
			}
			if a.Checked {
				if a.Event == nil {
					fail("level %s: check on %s without event", l.id, in)
					continue
				}
				note(a.Event)
			}
		}
		for name := range l.inputs {
			if !contains(p.inputs, name) {
				fail("level %s: action for undeclared input %s", l.id, name)
			}
		}
		for _, out := range p.outputs {
			if _, ok := l.outputs[out]; !ok {
				fail("level %s: no action for output %s", l.id, out)
			}
		}
		for name := range l.outputs {
			if !contains(p.outputs, name) {
				fail("level %s: action for undeclared output %s", l.id, name)
			}
		}
	}
	if p.abort != nil {
		note(p.abort)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	p.table = table
	p.events = events
	return nil
}

func hasEvent(ts []Transition, e *Event) bool {
	for _, t := range ts {
		if t.Event.id == e.id {
			return true
		}
	}
	return false
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

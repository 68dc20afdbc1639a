package safety

import (
	"fmt"
	"sync/atomic"

	"github.com/san-kum/diffbot/internal/dynamo"
)

// Event is a named trigger for a level transition.
type Event struct {
	id   string
	name string
}

// NewEvent creates an event with a stable id and a display name.
func NewEvent(id, name string) *Event {
	return &Event{id: id, name: name}
}

func (e *Event) ID() string     { return e.id }
func (e *Event) Name() string   { return e.name }
func (e *Event) String() string { return e.id }

// Kind controls who may fire an event mapping.
type Kind int

const (
	// Public mappings may be fired from outside the supervisor.
	Public Kind = iota
	// Private mappings may only be fired by input and level actions.
	Private
)

func (k Kind) String() string {
	if k == Private {
		return "private"
	}
	return "public"
}

// InputAction is the policy applied to one critical input every tick.
type InputAction struct {
	Input    string
	Checked  bool
	Expected bool
	Event    *Event
}

// Ignore leaves input unsampled.
func Ignore(input string) InputAction {
	return InputAction{Input: input}
}

// Check emits e whenever input reads expected.
func Check(input string, expected bool, e *Event) InputAction {
	return InputAction{Input: input, Checked: true, Expected: expected, Event: e}
}

// OutputAction is the value forced onto one critical output every tick.
type OutputAction struct {
	Output string
	Value  bool
}

// Set drives output to v.
func Set(output string, v bool) OutputAction {
	return OutputAction{Output: output, Value: v}
}

// LevelAction runs once per tick while its level is current. A returned
// error is treated like a panic: it is logged and the abort event is
// injected for the next tick.
type LevelAction func(ctx *Context) error

// Transition is one entry of a level's transition table.
type Transition struct {
	Event     *Event
	Target    *Level
	Kind      Kind
	Broadcast bool
}

// Level is a named operating mode.
type Level struct {
	id    string
	name  string
	index int

	explicit []Transition
	inputs   map[string]InputAction
	outputs  map[string]OutputAction
	action   LevelAction

	count atomic.Uint64
}

// NewLevel creates a level. Its index is assigned by Properties.AddLevel.
func NewLevel(id, name string) *Level {
	return &Level{
		id:      id,
		name:    name,
		index:   -1,
		inputs:  make(map[string]InputAction),
		outputs: make(map[string]OutputAction),
	}
}

func (l *Level) ID() string     { return l.id }
func (l *Level) Name() string   { return l.name }
func (l *Level) String() string { return l.id }

// Index is the registration order of the level, -1 if unregistered.
func (l *Level) Index() int { return l.index }

// ActivationCount is the number of ticks the level has been resident,
// counting the tick it was entered on.
func (l *Level) ActivationCount() uint64 { return l.count.Load() }

// AddEvent maps e to target in this level.
func (l *Level) AddEvent(e *Event, target *Level, kind Kind) error {
	if e == nil || target == nil {
		return fmt.Errorf("level %s: %w: nil event or target", l.id, dynamo.ErrInvalidConfig)
	}
	for _, t := range l.explicit {
		if t.Event.id == e.id {
			return fmt.Errorf("level %s: %w: event %s registered twice", l.id, dynamo.ErrInvalidConfig, e.id)
		}
	}
	l.explicit = append(l.explicit, Transition{Event: e, Target: target, Kind: kind})
	return nil
}

// SetInputActions replaces the input actions of the level.
func (l *Level) SetInputActions(actions ...InputAction) {
	l.inputs = make(map[string]InputAction, len(actions))
	for _, a := range actions {
		l.inputs[a.Input] = a
	}
}

// SetOutputActions replaces the output actions of the level.
func (l *Level) SetOutputActions(actions ...OutputAction) {
	l.outputs = make(map[string]OutputAction, len(actions))
	for _, a := range actions {
		l.outputs[a.Output] = a
	}
}

func (l *Level) SetLevelAction(fn LevelAction) {
	l.action = fn
}

func (l *Level) InputAction(input string) (InputAction, bool) {
	a, ok := l.inputs[input]
	return a, ok
}

func (l *Level) OutputAction(output string) (OutputAction, bool) {
	a, ok := l.outputs[output]
	return a, ok
}

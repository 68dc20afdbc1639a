package safety

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/looplab/fsm"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/san-kum/diffbot/internal/dynamo"
	"github.com/san-kum/diffbot/internal/hal"
	"github.com/san-kum/diffbot/internal/metrics"
)

// Config holds the runtime parameters of a supervisor.
type Config struct {
	// Dt is the tick period in seconds.
	Dt float64
	// OnEnter is called on every level entry, including the entry level
	// at construction.
	OnEnter func(l *Level)
}

type queued struct {
	event    *Event
	external bool
}

type boundInput struct {
	name string
	in   hal.Input
}

type boundOutput struct {
	name string
	out  hal.Output
}

// Supervisor runs a verified Properties table against a HAL.
type Supervisor struct {
	props   *Properties
	cfg     Config
	logger  *zap.SugaredLogger
	metrics *metrics.Supervisor

	machine *fsm.FSM
	inputs  []boundInput
	outputs []boundOutput
	ctx     *Context

	mu      sync.Mutex
	pending []queued

	exiting atomic.Bool
	ticks   atomic.Uint64
}

// NewSupervisor verifies props, resolves the critical I/O on
// io and enters the entry level. Missing I/O is reported as
// dynamo.ErrHALMissingIO.
func NewSupervisor(props *Properties, io hal.HAL, cfg Config, logger *zap.SugaredLogger, reg prometheus.Registerer) (*Supervisor, error) {
	if err := props.Verify(); err != nil {
		return nil, err
	}
	if cfg.Dt <= 0 {
		return nil, fmt.Errorf("%w: dt must be positive, got %g", dynamo.ErrInvalidConfig, cfg.Dt)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	s := &Supervisor{
		props:   props,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.NewSupervisor(reg),
	}
	s.ctx = &Context{s: s}

	var errs []error
	for _, name := range props.inputs {
		in, err := io.LogicInput(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.inputs = append(s.inputs, boundInput{name: name, in: in})
	}
	for _, name := range props.outputs {
		out, err := io.LogicOutput(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		s.outputs = append(s.outputs, boundOutput{name: name, out: out})
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	var events []fsm.EventDesc
	for _, l := range props.levels {
		for _, t := range props.table[l.id] {
			events = append(events, fsm.EventDesc{Name: t.Event.id, Src: []string{l.id}, Dst: t.Target.id})
		}
	}
	s.machine = fsm.NewFSM(
		props.entry.id,
		events,
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				s.enter(props.byID[e.Dst], e.Src, e.Event)
			},
		},
	)

	s.enter(props.entry, "", "")
	return s, nil
}

// CurrentLevel returns the resident level.
func (s *Supervisor) CurrentLevel() *Level {
	return s.props.byID[s.machine.Current()]
}

func (s *Supervisor) Properties() *Properties { return s.props }

// Ticks is the number of completed Step calls.
func (s *Supervisor) Ticks() uint64 { return s.ticks.Load() }

// Allowed reports whether e has a mapping in the current level.
func (s *Supervisor) Allowed(e *Event) bool {
	_, ok := s.props.lookup(s.CurrentLevel(), e)
	return ok
}

// TriggerEvent queues e from outside the supervisor. It is safe to call
// from any goroutine. Mappings registered as Private are dropped with a
// warning when reached this way.
func (s *Supervisor) TriggerEvent(e *Event) {
	s.enqueue(e, true)
}

// Shutdown runs the exit function. Without an exit function the abort
// event is injected. Further calls are ignored until the entry level is
// entered again.
func (s *Supervisor) Shutdown() {
	if !s.exiting.CompareAndSwap(false, true) {
		return
	}
	s.logger.Infow("Supervisor shutdown requested", "level", s.CurrentLevel().id)
	if s.props.exit != nil {
		s.props.exit(s.ctx)
		return
	}
	if s.props.abort != nil {
		s.ctx.TriggerEvent(s.props.abort)
	}
}

// Tick runs Step followed by ApplyOutputs.
func (s *Supervisor) Tick() {
	s.Step()
	s.ApplyOutputs()
}

// Step samples the critical inputs, drains the event queue and runs the
// level action of the level resident after the drain.
func (s *Supervisor) Step() {
	s.ticks.Add(1)
	s.metrics.Ticks.Inc()

	lvl := s.CurrentLevel()
	for _, b := range s.inputs {
		a := lvl.inputs[b.name]
		if a.Checked && b.in.Get() == a.Expected {
			s.enqueue(a.Event, false)
		}
	}

	for _, q := range s.drain() {
		s.fire(q)
	}

	lvl = s.CurrentLevel()
	lvl.count.Add(1)
	s.runAction(lvl)
}

// ApplyOutputs forces the output actions of the current level.
func (s *Supervisor) ApplyOutputs() {
	lvl := s.CurrentLevel()
	for _, b := range s.outputs {
		b.out.Set(lvl.outputs[b.name].Value)
	}
}

func (s *Supervisor) enqueue(e *Event, external bool) {
	if e == nil {
		return
	}
	s.mu.Lock()
	s.pending = append(s.pending, queued{event: e, external: external})
	s.mu.Unlock()
}

func (s *Supervisor) drain() []queued {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.pending
	s.pending = nil
	return q
}

func (s *Supervisor) fire(q queued) {
	lvl := s.CurrentLevel()
	t, ok := s.props.lookup(lvl, q.event)
	if !ok {
		s.logger.Warnw("Dropping event", "event", q.event.id, "level", lvl.id, "error", dynamo.ErrIllegalEventInLevel)
		s.metrics.Dropped.WithLabelValues(lvl.id, q.event.id, "illegal").Inc()
		return
	}
	if q.external && t.Kind == Private {
		s.logger.Warnw("Dropping private event fired from outside", "event", q.event.id, "level", lvl.id)
		s.metrics.Dropped.WithLabelValues(lvl.id, q.event.id, "private").Inc()
		return
	}

	err := s.machine.Event(context.Background(), q.event.id)
	var same fsm.NoTransitionError
	switch {
	case err == nil:
	case errors.As(err, &same):
		s.enter(lvl, lvl.id, q.event.id)
	default:
		s.logger.Errorw("Transition failed", "event", q.event.id, "level", lvl.id, "error", err)
	}
}

func (s *Supervisor) enter(l *Level, from, event string) {
	l.count.Store(0)
	if l == s.props.entry {
		s.exiting.Store(false)
	}
	s.metrics.Level.Set(float64(l.index))
	if event == "" {
		s.logger.Infow("Entered entry level", "level", l.id)
	} else {
		s.metrics.Transitions.WithLabelValues(from, l.id, event).Inc()
		s.logger.Infow("Level transition", "from", from, "to", l.id, "event", event)
	}
	if s.cfg.OnEnter != nil {
		s.cfg.OnEnter(l)
	}
}

func (s *Supervisor) runAction(l *Level) {
	if l.action == nil {
		return
	}
	err := s.call(l)
	if err == nil {
		return
	}
	s.logger.Errorw("Level action failed", "level", l.id, "error", err)
	s.metrics.Faults.WithLabelValues(l.id).Inc()
	if s.props.abort != nil {
		s.enqueue(s.props.abort, false)
	}
}

func (s *Supervisor) call(l *Level) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("level %s action panicked: %v", l.id, r)
		}
	}()
	return l.action(s.ctx)
}

package robot

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/san-kum/diffbot/internal/config"
	"github.com/san-kum/diffbot/internal/dynamo"
	"github.com/san-kum/diffbot/internal/hal"
	"github.com/san-kum/diffbot/internal/safety"
)

// InputDriver is a HAL whose inputs can be driven, such as hal.Sim.
type InputDriver interface {
	hal.HAL
	SetInput(name string, v bool) error
}

// script replays timed input edits and external events.
type script struct {
	steps  []config.ScriptStep
	next   int
	io     InputDriver
	events map[string]*safety.Event
	fire   func(*safety.Event)
	logger *zap.SugaredLogger
}

func newScript(steps []config.ScriptStep, io hal.HAL, s *Safety, fire func(*safety.Event), logger *zap.SugaredLogger) (*script, error) {
	sc := &script{
		steps:  append([]config.ScriptStep(nil), steps...),
		events: make(map[string]*safety.Event),
		fire:   fire,
		logger: logger,
	}
	sort.SliceStable(sc.steps, func(i, j int) bool { return sc.steps[i].At < sc.steps[j].At })
	for _, e := range s.Properties.Events() {
		sc.events[e.ID()] = e
	}

	for i, st := range sc.steps {
		switch st.Action {
		case config.ActionPress, config.ActionRelease:
			drv, ok := io.(InputDriver)
			if !ok {
				return nil, fmt.Errorf("%w: script step %d drives input %s but the hal has no input driver", dynamo.ErrInvalidConfig, i, st.Input)
			}
			if _, err := io.LogicInput(st.Input); err != nil {
				return nil, fmt.Errorf("script step %d: %w", i, err)
			}
			sc.io = drv
		case config.ActionEvent:
			if _, ok := sc.events[st.Event]; !ok {
				return nil, fmt.Errorf("%w: script step %d: unknown event %q", dynamo.ErrInvalidConfig, i, st.Event)
			}
		default:
			return nil, fmt.Errorf("%w: script step %d: unknown action %q", dynamo.ErrInvalidConfig, i, st.Action)
		}
	}
	return sc, nil
}

// apply runs every step due at or before now.
func (sc *script) apply(now float64) {
	for sc.next < len(sc.steps) && sc.steps[sc.next].At <= now+1e-9 {
		st := sc.steps[sc.next]
		sc.next++
		sc.logger.Infow("Script step", "at", st.At, "action", st.Action, "input", st.Input, "event", st.Event)
		switch st.Action {
		case config.ActionPress:
			_ = sc.io.SetInput(st.Input, false)
		case config.ActionRelease:
			_ = sc.io.SetInput(st.Input, true)
		case config.ActionEvent:
			sc.fire(sc.events[st.Event])
		}
	}
}

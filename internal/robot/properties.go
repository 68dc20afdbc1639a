package robot

import (
	"errors"

	"github.com/san-kum/diffbot/internal/config"
	"github.com/san-kum/diffbot/internal/safety"
)

// Events is the event alphabet of the robot.
type Events struct {
	Abort          *safety.Event
	ShutDown       *safety.Event
	DoSystemOn     *safety.Event
	SystemStarted  *safety.Event
	Emergency      *safety.Event
	ResetEmergency *safety.Event
	PowerOn        *safety.Event
	PowerOff       *safety.Event
	StartMoving    *safety.Event
	StopMoving     *safety.Event
	MotorsHalted   *safety.Event
}

// Levels are the safety levels of the robot, in registration order.
type Levels struct {
	SystemOff        *safety.Level
	ShuttingDown     *safety.Level
	Braking          *safety.Level
	StartingUp       *safety.Level
	Emergency        *safety.Level
	EmergencyBraking *safety.Level
	SystemOn         *safety.Level
	MotorPowerOn     *safety.Level
	SystemMoving     *safety.Level
}

// All returns the levels in registration order.
func (l *Levels) All() []*safety.Level {
	return []*safety.Level{
		l.SystemOff, l.ShuttingDown, l.Braking, l.StartingUp, l.Emergency,
		l.EmergencyBraking, l.SystemOn, l.MotorPowerOn, l.SystemMoving,
	}
}

// Operational reports whether the control time domain runs in lvl.
func (l *Levels) Operational(lvl *safety.Level) bool {
	switch lvl {
	case l.StartingUp, l.SystemOn, l.MotorPowerOn, l.SystemMoving, l.EmergencyBraking, l.Braking:
		return true
	}
	return false
}

// Hooks are the services the level actions drive.
type Hooks struct {
	StartControl func()
	StopControl  func()
	StopExecutor func()
	MotorsHalted func() bool
}

// Safety is the verified supervisor table of the robot.
type Safety struct {
	Properties *safety.Properties
	Events     Events
	Levels     Levels
}

func newEvents() Events {
	return Events{
		Abort:          safety.NewEvent("abort", "Abort"),
		ShutDown:       safety.NewEvent("shutDown", "Shutdown"),
		DoSystemOn:     safety.NewEvent("doSystemOn", "Do system on"),
		SystemStarted:  safety.NewEvent("systemStarted", "System started"),
		Emergency:      safety.NewEvent("emergency", "Emergency"),
		ResetEmergency: safety.NewEvent("resetEmergency", "Reset emergency"),
		PowerOn:        safety.NewEvent("powerOn", "Power on"),
		PowerOff:       safety.NewEvent("powerOff", "Power off"),
		StartMoving:    safety.NewEvent("startMoving", "Start moving"),
		StopMoving:     safety.NewEvent("stopMoving", "Stop moving"),
		MotorsHalted:   safety.NewEvent("motorsHalted", "Motors halted"),
	}
}

func newLevels() Levels {
	return Levels{
		SystemOff:        safety.NewLevel("SystemOff", "System is offline"),
		ShuttingDown:     safety.NewLevel("ShuttingDown", "System is shutting down"),
		Braking:          safety.NewLevel("Braking", "System is braking"),
		StartingUp:       safety.NewLevel("StartingUp", "System is starting up"),
		Emergency:        safety.NewLevel("Emergency", "Emergency"),
		EmergencyBraking: safety.NewLevel("EmergencyBraking", "System is halting"),
		SystemOn:         safety.NewLevel("SystemOn", "System is online"),
		MotorPowerOn:     safety.NewLevel("MotorPowerOn", "Motor powered on"),
		SystemMoving:     safety.NewLevel("SystemMoving", "System is moving"),
	}
}

// NewSafety builds and verifies the supervisor table.
func NewSafety(sup config.SupervisorConfig, io config.HALConfig, h Hooks) (*Safety, error) {
	s := &Safety{
		Properties: safety.NewProperties(),
		Events:     newEvents(),
		Levels:     newLevels(),
	}
	p, ev, lv := s.Properties, &s.Events, &s.Levels

	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	for _, l := range lv.All() {
		add(p.AddLevel(l))
	}
	p.AddCriticalInputs(io.ButtonPause, io.ButtonMode)
	p.AddCriticalOutputs(io.LEDGreen, io.LEDRed)

	add(lv.SystemOff.AddEvent(ev.DoSystemOn, lv.StartingUp, safety.Public))
	add(lv.StartingUp.AddEvent(ev.SystemStarted, lv.SystemOn, safety.Public))
	add(lv.SystemOn.AddEvent(ev.PowerOn, lv.MotorPowerOn, safety.Public))
	add(lv.MotorPowerOn.AddEvent(ev.PowerOff, lv.SystemOn, safety.Public))
	add(lv.MotorPowerOn.AddEvent(ev.StartMoving, lv.SystemMoving, safety.Public))
	add(lv.SystemMoving.AddEvent(ev.StopMoving, lv.EmergencyBraking, safety.Public))
	add(lv.SystemMoving.AddEvent(ev.Emergency, lv.MotorPowerOn, safety.Public))
	add(lv.SystemMoving.AddEvent(ev.Abort, lv.Braking, safety.Public))
	add(lv.EmergencyBraking.AddEvent(ev.MotorsHalted, lv.Emergency, safety.Public))
	add(lv.Emergency.AddEvent(ev.ResetEmergency, lv.SystemOn, safety.Public))
	add(lv.Braking.AddEvent(ev.MotorsHalted, lv.ShuttingDown, safety.Public))
	add(lv.ShuttingDown.AddEvent(ev.ShutDown, lv.SystemOff, safety.Public))

	p.AddEventToAllLevelsBetween(lv.Emergency, lv.MotorPowerOn, ev.Abort, lv.ShuttingDown, safety.Public)
	p.AddEventToAllLevelsBetween(lv.SystemOn, lv.MotorPowerOn, ev.Emergency, lv.EmergencyBraking, safety.Public)

	pauseChecked := safety.Check(io.ButtonPause, false, ev.Emergency)
	for _, l := range lv.All() {
		pause := safety.Ignore(io.ButtonPause)
		mode := safety.Ignore(io.ButtonMode)
		switch l {
		case lv.SystemOn, lv.MotorPowerOn, lv.SystemMoving:
			pause = pauseChecked
		case lv.Emergency:
			mode = safety.Check(io.ButtonMode, false, ev.ResetEmergency)
		}
		l.SetInputActions(pause, mode)
	}

	leds := func(green, red bool) []safety.OutputAction {
		return []safety.OutputAction{safety.Set(io.LEDGreen, green), safety.Set(io.LEDRed, red)}
	}
	lv.SystemOff.SetOutputActions(leds(false, false)...)
	lv.ShuttingDown.SetOutputActions(leds(false, true)...)
	lv.Braking.SetOutputActions(leds(false, true)...)
	lv.StartingUp.SetOutputActions(leds(true, false)...)
	lv.Emergency.SetOutputActions(leds(true, true)...)
	lv.EmergencyBraking.SetOutputActions(leds(true, true)...)
	lv.SystemOn.SetOutputActions(leds(true, false)...)
	lv.MotorPowerOn.SetOutputActions(leds(true, false)...)
	lv.SystemMoving.SetOutputActions(leds(true, false)...)

	lv.SystemOff.SetLevelAction(func(ctx *safety.Context) error {
		h.StopExecutor()
		return nil
	})
	lv.StartingUp.SetLevelAction(func(ctx *safety.Context) error {
		h.StartControl()
		ctx.TriggerEvent(ev.SystemStarted)
		return nil
	})
	lv.SystemOn.SetLevelAction(after(sup.SystemOnWait, ev.PowerOn))
	lv.MotorPowerOn.SetLevelAction(after(sup.PowerOnWait, ev.StartMoving))
	lv.SystemMoving.SetLevelAction(after(sup.MovingWait, ev.StopMoving))
	lv.EmergencyBraking.SetLevelAction(whenHalted(h.MotorsHalted, ev.MotorsHalted))
	lv.Braking.SetLevelAction(whenHalted(h.MotorsHalted, ev.MotorsHalted))
	lv.ShuttingDown.SetLevelAction(func(ctx *safety.Context) error {
		h.StopControl()
		ctx.TriggerEvent(ev.ShutDown)
		return nil
	})

	p.SetEntryLevel(lv.SystemOff)
	p.SetAbortEvent(ev.Abort)
	p.SetExitFunction(func(ctx *safety.Context) {
		ctx.TriggerEvent(ev.Abort)
	})

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := p.Verify(); err != nil {
		return nil, err
	}
	return s, nil
}

func after(seconds float64, e *safety.Event) safety.LevelAction {
	return func(ctx *safety.Context) error {
		if ctx.Resident(seconds) {
			ctx.TriggerEvent(e)
		}
		return nil
	}
}

func whenHalted(halted func() bool, e *safety.Event) safety.LevelAction {
	return func(ctx *safety.Context) error {
		if halted() {
			ctx.TriggerEvent(e)
		}
		return nil
	}
}

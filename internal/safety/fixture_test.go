package safety

import (
	"github.com/san-kum/diffbot/internal/hal"
)

const (
	btn = "btn"
	led = "led"
)

type fixture struct {
	props                *Properties
	io                   *hal.Sim
	off, on, fault, busy *Level
	start, stop, work    *Event
	failEv, reset, poke  *Event
	unknown              *Event
}

// newFixture builds a four-level table:
//
//	Off --start--> On --work(private)--> Busy --poke--> Busy
//	On --stop--> Off, Fault --reset--> Off
//	fail broadcast over [On..Busy] -> Fault, overridden in Busy -> On
func newFixture() *fixture {
	f := &fixture{
		props:   NewProperties(),
		io:      hal.NewSim([]string{btn}, []string{led}),
		off:     NewLevel("Off", "Off"),
		on:      NewLevel("On", "On"),
		fault:   NewLevel("Fault", "Fault"),
		busy:    NewLevel("Busy", "Busy"),
		start:   NewEvent("start", "Start"),
		stop:    NewEvent("stop", "Stop"),
		work:    NewEvent("work", "Work"),
		failEv:  NewEvent("fail", "Fail"),
		reset:   NewEvent("reset", "Reset"),
		poke:    NewEvent("poke", "Poke"),
		unknown: NewEvent("unknown", "Unknown"),
	}
	p := f.props
	for _, l := range []*Level{f.off, f.on, f.fault, f.busy} {
		must(p.AddLevel(l))
	}
	p.AddCriticalInputs(btn)
	p.AddCriticalOutputs(led)

	must(f.off.AddEvent(f.start, f.on, Public))
	must(f.on.AddEvent(f.stop, f.off, Public))
	must(f.on.AddEvent(f.work, f.busy, Private))
	must(f.busy.AddEvent(f.failEv, f.on, Public))
	must(f.busy.AddEvent(f.poke, f.busy, Public))
	must(f.fault.AddEvent(f.reset, f.off, Public))
	p.AddEventToAllLevelsBetween(f.on, f.busy, f.failEv, f.fault, Public)

	f.on.SetInputActions(Check(btn, false, f.failEv))
	f.on.SetOutputActions(Set(led, true))
	f.busy.SetInputActions(Ignore(btn))
	f.busy.SetOutputActions(Set(led, true))
	for _, l := range []*Level{f.off, f.fault} {
		l.SetInputActions(Ignore(btn))
		l.SetOutputActions(Set(led, false))
	}

	p.SetEntryLevel(f.off)
	p.SetAbortEvent(f.failEv)
	return f
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

package block

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/san-kum/diffbot/internal/dynamo"
)

// TimeDomain runs a fixed set of root blocks once per tick while
// started.
type TimeDomain struct {
	name    string
	dt      float64
	blocks  []Block
	running atomic.Bool
	ticks   atomic.Uint64
}

func NewTimeDomain(name string, dt float64) *TimeDomain {
	return &TimeDomain{name: name, dt: dt}
}

func (td *TimeDomain) Name() string    { return td.name }
func (td *TimeDomain) Period() float64 { return td.dt }

// Add appends root blocks. Blocks run in the order they were added.
func (td *TimeDomain) Add(blocks ...Block) {
	td.blocks = append(td.blocks, blocks...)
}

func (td *TimeDomain) Start()        { td.running.Store(true) }
func (td *TimeDomain) Stop()         { td.running.Store(false) }
func (td *TimeDomain) Running() bool { return td.running.Load() }

// Ticks is the number of ticks executed while running.
func (td *TimeDomain) Ticks() uint64 { return td.ticks.Load() }

// Tick runs every block once if the domain is started and reports
// whether it did.
func (td *TimeDomain) Tick(now float64) bool {
	if !td.running.Load() {
		return false
	}
	for _, b := range td.blocks {
		b.Run(now)
	}
	td.ticks.Add(1)
	return true
}

// Validate fails with ErrUnboundInput listing every input left
// without an upstream.
func (td *TimeDomain) Validate() error {
	var unbound []string
	for _, b := range td.blocks {
		if c, ok := b.(Checker); ok {
			unbound = append(unbound, c.Unbound()...)
		}
	}
	if len(unbound) > 0 {
		return fmt.Errorf("time domain %q: %w: %s", td.name, dynamo.ErrUnboundInput, strings.Join(unbound, ", "))
	}
	return nil
}

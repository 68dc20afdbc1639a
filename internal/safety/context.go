package safety

import "math"

// Context is the handle level actions and the exit function use to
// reach the supervisor.
type Context struct {
	s *Supervisor
}

// TriggerEvent queues e for the next drain. Private mappings are
// allowed.
func (c *Context) TriggerEvent(e *Event) {
	c.s.enqueue(e, false)
}

func (c *Context) Level() *Level { return c.s.CurrentLevel() }

func (c *Context) ActivationCount() uint64 { return c.s.CurrentLevel().ActivationCount() }

// Dt is the tick period in seconds.
func (c *Context) Dt() float64 { return c.s.cfg.Dt }

// Resident reports whether the current level has been resident for at
// least the given number of seconds, i.e. ActivationCount*dt >= seconds.
func (c *Context) Resident(seconds float64) bool {
	need := math.Ceil(seconds/c.s.cfg.Dt - 1e-9)
	return float64(c.ActivationCount()) >= need
}

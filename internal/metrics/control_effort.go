package metrics

import (
	"math"

	"github.com/san-kum/diffbot/internal/dynamo"
)

// ControlEffort is the mean absolute commanded torque per wheel.
type ControlEffort struct {
	sum     float64
	peak    float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{}
}

func (c *ControlEffort) Name() string { return "control_effort" }

func (c *ControlEffort) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if len(u) == 0 {
		return
	}
	step := 0.0
	for _, q := range u {
		a := math.Abs(q)
		step += a
		c.peak = math.Max(c.peak, a)
	}
	c.sum += step / float64(len(u))
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

// Peak is the largest absolute torque seen on any wheel.
func (c *ControlEffort) Peak() float64 { return c.peak }

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.peak = 0
	c.samples = 0
}

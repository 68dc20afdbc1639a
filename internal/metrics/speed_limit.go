package metrics

import (
	"math"

	"github.com/san-kum/diffbot/internal/dynamo"
)

// SpeedLimit is the fraction of samples in which both wheel speeds stay
// within limit. 1 means the limit was never exceeded.
type SpeedLimit struct {
	limit      float64
	violations int
	samples    int
}

func NewSpeedLimit(limit float64) *SpeedLimit {
	return &SpeedLimit{limit: limit}
}

func (s *SpeedLimit) Name() string { return "speed_limit" }

func (s *SpeedLimit) Observe(x dynamo.State, u dynamo.Control, t float64) {
	if len(x) < 4 {
		return
	}
	s.samples++
	if math.Abs(x[2]) > s.limit || math.Abs(x[3]) > s.limit {
		s.violations++
	}
}

func (s *SpeedLimit) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *SpeedLimit) Reset() {
	s.violations = 0
	s.samples = 0
}

// Defaults returns the metrics the run command reports.
func Defaults(inertia, speedLimit float64) []dynamo.Metric {
	return []dynamo.Metric{
		NewControlEffort(),
		NewWheelEnergy(inertia),
		NewSpeedLimit(speedLimit),
	}
}

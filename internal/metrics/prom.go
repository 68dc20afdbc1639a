package metrics

import (
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "diffbot"

// Supervisor holds the collectors updated by the safety supervisor.
type Supervisor struct {
	Ticks       prometheus.Counter
	Transitions *prometheus.CounterVec
	Dropped     *prometheus.CounterVec
	Faults      *prometheus.CounterVec
	Level       prometheus.Gauge
}

// NewSupervisor creates the supervisor collectors and registers them
// with reg. A nil reg leaves them unregistered.
func NewSupervisor(reg prometheus.Registerer) *Supervisor {
	m := &Supervisor{
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "supervisor",
			Name:      "ticks_total",
			Help:      "Supervisor ticks executed.",
		}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "supervisor",
			Name:      "transitions_total",
			Help:      "Level transitions by source, target and event.",
		}, []string{"from", "to", "event"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "supervisor",
			Name:      "dropped_events_total",
			Help:      "Events dropped without a transition.",
		}, []string{"level", "event", "reason"}),
		Faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "supervisor",
			Name:      "level_action_faults_total",
			Help:      "Level actions that panicked or returned an error.",
		}, []string{"level"}),
		Level: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "supervisor",
			Name:      "level",
			Help:      "Registration index of the current safety level.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Ticks, m.Transitions, m.Dropped, m.Faults, m.Level)
	}
	return m
}

// Executor holds the collectors updated by the periodic executor.
type Executor struct {
	Ticks       prometheus.Counter
	Overruns    prometheus.Counter
	TickSeconds prometheus.Histogram
}

func NewExecutor(reg prometheus.Registerer) *Executor {
	m := &Executor{
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "ticks_total",
			Help:      "Periodic task invocations.",
		}),
		Overruns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "overruns_total",
			Help:      "Task invocations that took longer than the period.",
		}),
		TickSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "tick_duration_seconds",
			Help:      "Wall time spent in one task invocation.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 14),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Ticks, m.Overruns, m.TickSeconds)
	}
	return m
}

// Pipeline holds gauges mirroring the control graph outputs.
type Pipeline struct {
	Torque *prometheus.GaugeVec
	Pose   *prometheus.GaugeVec
}

func NewPipeline(reg prometheus.Registerer) *Pipeline {
	m := &Pipeline{
		Torque: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "control",
			Name:      "torque",
			Help:      "Commanded wheel torque.",
		}, []string{"wheel"}),
		Pose: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "odometry",
			Name:      "pose",
			Help:      "Odometric pose estimate.",
		}, []string{"axis"}),
	}
	if reg != nil {
		reg.MustRegister(m.Torque, m.Pose)
	}
	return m
}

// Observe copies the latest torques and pose into the gauges.
func (m *Pipeline) Observe(torqueL, torqueR, x, y, phi float64) {
	m.Torque.WithLabelValues("left").Set(torqueL)
	m.Torque.WithLabelValues("right").Set(torqueR)
	m.Pose.WithLabelValues("x").Set(x)
	m.Pose.WithLabelValues("y").Set(y)
	m.Pose.WithLabelValues("phi").Set(phi)
}

// Sample is one flattened counter or gauge value.
type Sample struct {
	Name   string
	Labels string
	Value  float64
}

// Snapshot gathers every counter and gauge from g, sorted by name and
// labels. Histograms are reported by their sample count.
func Snapshot(g prometheus.Gatherer) ([]Sample, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, err
	}
	var out []Sample
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			s := Sample{Name: mf.GetName(), Labels: labelString(m.GetLabel())}
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				s.Value = m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				s.Value = m.GetGauge().GetValue()
			case dto.MetricType_HISTOGRAM:
				s.Name += "_count"
				s.Value = float64(m.GetHistogram().GetSampleCount())
			default:
				continue
			}
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Labels < out[j].Labels
	})
	return out, nil
}

func labelString(pairs []*dto.LabelPair) string {
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p.GetName()+"="+p.GetValue())
	}
	return strings.Join(parts, ",")
}

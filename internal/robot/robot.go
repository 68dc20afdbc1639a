// Package robot assembles the differential-drive robot: the control
// pipeline, the safety supervisor and the periodic executor, wired to a
// HAL.
package robot

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/san-kum/diffbot/internal/config"
	"github.com/san-kum/diffbot/internal/control"
	"github.com/san-kum/diffbot/internal/dynamo"
	"github.com/san-kum/diffbot/internal/executor"
	"github.com/san-kum/diffbot/internal/hal"
	"github.com/san-kum/diffbot/internal/metrics"
	"github.com/san-kum/diffbot/internal/motion"
	"github.com/san-kum/diffbot/internal/plant"
	"github.com/san-kum/diffbot/internal/safety"
)

// Options carries the services a Robot is built on.
type Options struct {
	HAL hal.HAL
	// Plant closes the loop in simulation. Without it the measured
	// positions are set through Pipeline().SetMeasured.
	Plant    *plant.Sim
	Logger   *zap.SugaredLogger
	Registry prometheus.Registerer
	// OnTick observes every completed tick.
	OnTick func(Sample)
}

// Sample is the robot state at the end of a tick.
type Sample struct {
	Time      float64
	Level     *safety.Level
	Running   bool
	Reference dynamo.Vec2
	Measured  dynamo.Vec2
	Speed     dynamo.Vec2
	Torque    dynamo.Vec2
	Pose      control.Pose
}

type Robot struct {
	cfg     *config.Config
	logger  *zap.SugaredLogger
	io      hal.HAL
	plant   *plant.Sim
	onTick  func(Sample)
	metrics *metrics.Pipeline

	pipeline *Pipeline
	motion   *motion.Generator
	safety   *Safety
	sup      *safety.Supervisor
	exec     *executor.Executor
	script   *script
}

// New validates cfg and builds the robot. Construction faults (invalid
// configuration, unbound inputs, missing HAL I/O) are returned and no
// task is registered.
func New(cfg *config.Config, opts Options) (*Robot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.HAL == nil {
		return nil, errors.New("robot: no hal")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	r := &Robot{
		cfg:     cfg,
		logger:  logger,
		io:      opts.HAL,
		plant:   opts.Plant,
		onTick:  opts.OnTick,
		metrics: metrics.NewPipeline(opts.Registry),
		motion:  motion.NewGenerator(cfg.Motion.LeftSpeed, cfg.Motion.RightSpeed, cfg.Dt),
	}

	var err error
	if r.pipeline, err = NewPipeline(cfg); err != nil {
		return nil, err
	}
	if r.exec, err = executor.New(cfg.Dt, logger.Named("executor"), opts.Registry); err != nil {
		return nil, err
	}

	threshold := cfg.Supervisor.HaltThreshold
	r.safety, err = NewSafety(cfg.Supervisor, cfg.HAL, Hooks{
		StartControl: r.pipeline.Start,
		StopControl:  r.pipeline.Stop,
		StopExecutor: r.exec.Stop,
		MotorsHalted: func() bool { return r.pipeline.Halted(threshold) },
	})
	if err != nil {
		return nil, err
	}

	r.sup, err = safety.NewSupervisor(r.safety.Properties, opts.HAL, safety.Config{
		Dt:      cfg.Dt,
		OnEnter: r.enter,
	}, logger.Named("supervisor"), opts.Registry)
	if err != nil {
		return nil, err
	}

	if r.script, err = newScript(cfg.Script, opts.HAL, r.safety, r.sup.TriggerEvent, logger.Named("script")); err != nil {
		return nil, err
	}

	r.exec.SetTask(r.Tick)
	return r, nil
}

// enter keeps the time domain, the odometry and the reference generator
// consistent with the level just entered.
func (r *Robot) enter(l *safety.Level) {
	if r.safety.Levels.Operational(l) {
		r.pipeline.Start()
	} else {
		r.pipeline.Stop()
	}

	switch {
	case l == r.safety.Levels.SystemMoving:
		r.motion.Drive()
	case r.motion.Mode() == motion.Drive:
		r.motion.Brake(r.pipeline.Measured())
	}
}

func (r *Robot) Config() *config.Config         { return r.cfg }
func (r *Robot) Pipeline() *Pipeline            { return r.pipeline }
func (r *Robot) Supervisor() *safety.Supervisor { return r.sup }
func (r *Robot) Executor() *executor.Executor   { return r.exec }
func (r *Robot) Safety() *Safety                { return r.safety }
func (r *Robot) Events() *Events                { return &r.safety.Events }
func (r *Robot) Levels() *Levels                { return &r.safety.Levels }
func (r *Robot) Level() *safety.Level           { return r.sup.CurrentLevel() }

// TriggerEvent fires e from outside the supervisor.
func (r *Robot) TriggerEvent(e *safety.Event) { r.sup.TriggerEvent(e) }

// PowerUp requests the transition out of SystemOff.
func (r *Robot) PowerUp() { r.sup.TriggerEvent(r.safety.Events.DoSystemOn) }

// Shutdown runs the supervisor exit function, which aborts towards
// SystemOff; the executor stops once SystemOff is reached.
func (r *Robot) Shutdown() { r.sup.Shutdown() }

// SetPose resets the odometry. It is rejected while the robot is in an
// operational level.
func (r *Robot) SetPose(p control.Pose) error { return r.pipeline.SetPose(p) }

// Run drives Tick from the executor's wall-clock ticker.
func (r *Robot) Run(ctx context.Context) error { return r.exec.Run(ctx) }

// RunSteps drives Tick n times without waiting for the wall clock.
func (r *Robot) RunSteps(ctx context.Context, n int) (int, error) { return r.exec.RunSteps(ctx, n) }

// Tick is the periodic task: supervisor inputs, events and level
// action, then the control graph, then the supervisor outputs.
func (r *Robot) Tick(now float64) {
	r.script.apply(now)
	r.sup.Step()

	r.pipeline.SetReference(r.motion.Step())
	if r.plant != nil {
		r.pipeline.SetMeasured(r.plant.Positions())
	}
	running := r.pipeline.Tick(now)

	torque := dynamo.Vec2{}
	if running {
		torque = r.pipeline.Torque()
	}
	if r.plant != nil {
		if err := r.plant.Step(dynamo.Control{torque[0], torque[1]}); err != nil {
			r.logger.Errorw("Plant step failed", "error", err)
			r.sup.Shutdown()
		}
	}

	r.sup.ApplyOutputs()

	pose := r.pipeline.Pose()
	r.metrics.Observe(torque[0], torque[1], pose.GrR[0], pose.GrR[1], pose.Phi)
	if r.onTick != nil {
		r.onTick(Sample{
			Time:      now,
			Level:     r.sup.CurrentLevel(),
			Running:   running,
			Reference: r.motion.Reference(),
			Measured:  r.pipeline.Measured(),
			Speed:     r.pipeline.WheelSpeeds(),
			Torque:    torque,
			Pose:      pose,
		})
	}
}

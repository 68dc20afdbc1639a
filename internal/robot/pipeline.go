package robot

import (
	"fmt"
	"math"

	"github.com/san-kum/diffbot/internal/block"
	"github.com/san-kum/diffbot/internal/config"
	"github.com/san-kum/diffbot/internal/control"
	"github.com/san-kum/diffbot/internal/dynamo"
)

// Pipeline is the control graph of the robot: one position controller
// per wheel and forward kinematics with odometry on the measured wheel
// speeds.
type Pipeline struct {
	td *block.TimeDomain

	refL, refR   *block.Constant[dynamo.Scalar]
	measL, measR *block.Constant[dynamo.Scalar]
	left, right  *control.Controller[dynamo.Scalar]
	mux          *block.Blockio[dynamo.Scalar, dynamo.Vec2]
	odom         *control.FwKinOdom
}

// NewPipeline wires the graph and validates that every input is bound.
func NewPipeline(cfg *config.Config) (*Pipeline, error) {
	dt := cfg.Dt
	p := &Pipeline{
		td:    block.NewTimeDomain("control", dt),
		refL:  block.NewConstant[dynamo.Scalar](0),
		refR:  block.NewConstant[dynamo.Scalar](0),
		measL: block.NewConstant[dynamo.Scalar](0),
		measR: block.NewConstant[dynamo.Scalar](0),
	}
	p.refL.SetName("qRefLeft")
	p.refR.SetName("qRefRight")
	p.measL.SetName("qMeasLeft")
	p.measR.SetName("qMeasRight")

	p.left = newWheelController(cfg.Controller, dt)
	p.right = newWheelController(cfg.Controller, dt)
	p.left.SetName("controllerLeft")
	p.right.SetName("controllerRight")

	for _, c := range []struct {
		ctl       *control.Controller[dynamo.Scalar]
		ref, meas *block.Constant[dynamo.Scalar]
	}{
		{p.left, p.refL, p.measL},
		{p.right, p.refR, p.measR},
	} {
		ref, err := c.ctl.In(0)
		if err != nil {
			return nil, err
		}
		meas, err := c.ctl.In(1)
		if err != nil {
			return nil, err
		}
		ref.Connect(c.ref.Out())
		meas.Connect(c.meas.Out())
	}

	p.mux = block.NewBlockio(2, 1, func(in []dynamo.Scalar, out []dynamo.Vec2) {
		out[0] = dynamo.Vec2{float64(in[0]), float64(in[1])}
	})
	p.mux.SetName("wheelSpeeds")
	p.mux.In(0).Connect(p.left.Velocity())
	p.mux.In(1).Connect(p.right.Velocity())

	odo := cfg.Odometry
	j := control.NewDiffDriveJacobian(odo.TrackWidth, odo.WheelRadius)
	if odo.Jacobian != nil {
		j = control.Jacobian(*odo.Jacobian)
	}
	p.odom = control.NewFwKinOdomWithJacobian(dt, j, control.Pose{
		GrR: dynamo.Vec2{odo.InitPose.X, odo.InitPose.Y},
		Phi: odo.InitPose.Phi,
	})
	p.odom.SetName("odometry")
	p.odom.In().Connect(p.mux.Out(0))

	p.td.Add(p.refL, p.refR, p.measL, p.measR, p.left, p.right, p.mux, p.odom)
	if err := p.td.Validate(); err != nil {
		return nil, fmt.Errorf("control pipeline: %w", err)
	}
	return p, nil
}

func newWheelController(c config.ControllerConfig, dt float64) *control.Controller[dynamo.Scalar] {
	if c.Form == config.FormDiscrete {
		return control.NewDiscreteController[dynamo.Scalar](dt, c.FTask, c.Zeta, c.S, c.Mass)
	}
	return control.NewController[dynamo.Scalar](dt, c.Omega0, c.Zeta, c.Mass)
}

func (p *Pipeline) TimeDomain() *block.TimeDomain { return p.td }

func (p *Pipeline) Odometry() *control.FwKinOdom { return p.odom }

// Start runs the time domain and enables the odometry integrators. The
// differentiators restart from zero when the domain was stopped.
func (p *Pipeline) Start() {
	if !p.td.Running() {
		p.left.Reset()
		p.right.Reset()
	}
	p.td.Start()
	p.odom.Enable()
}

// Stop halts the time domain and freezes the odometry integrators.
func (p *Pipeline) Stop() {
	p.td.Stop()
	p.odom.Disable()
}

func (p *Pipeline) Running() bool { return p.td.Running() }

// Tick runs the graph once if the time domain is running.
func (p *Pipeline) Tick(now float64) bool { return p.td.Tick(now) }

// SetReference sets the wheel position references [q_ref_L, q_ref_R].
func (p *Pipeline) SetReference(q dynamo.Vec2) {
	p.refL.Set(dynamo.Scalar(q[0]))
	p.refR.Set(dynamo.Scalar(q[1]))
}

// SetMeasured sets the measured wheel positions [q_L, q_R].
func (p *Pipeline) SetMeasured(q dynamo.Vec2) {
	p.measL.Set(dynamo.Scalar(q[0]))
	p.measR.Set(dynamo.Scalar(q[1]))
}

func (p *Pipeline) Measured() dynamo.Vec2 {
	return dynamo.Vec2{float64(p.measL.Get()), float64(p.measR.Get())}
}

// Torque is the last commanded torque [Q_L, Q_R].
func (p *Pipeline) Torque() dynamo.Vec2 {
	return dynamo.Vec2{float64(p.left.Torque().Value()), float64(p.right.Torque().Value())}
}

// WheelSpeeds is the last measured wheel speed [qd_L, qd_R].
func (p *Pipeline) WheelSpeeds() dynamo.Vec2 {
	return p.mux.Out(0).Value()
}

func (p *Pipeline) Pose() control.Pose { return p.odom.Pose() }

// SetPose resets the odometry. It fails while the integrators run.
func (p *Pipeline) SetPose(pose control.Pose) error { return p.odom.SetPose(pose) }

// Halted reports whether both wheels turn slower than threshold.
func (p *Pipeline) Halted(threshold float64) bool {
	w := p.WheelSpeeds()
	return math.Abs(w[0]) < threshold && math.Abs(w[1]) < threshold
}

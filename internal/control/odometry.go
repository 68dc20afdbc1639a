package control

import (
	"fmt"

	"github.com/san-kum/diffbot/internal/block"
	"github.com/san-kum/diffbot/internal/dynamo"
)

// Pose is the odometric pose in the world frame.
type Pose struct {
	GrR dynamo.Vec2 `yaml:"position" json:"position"`
	Phi float64     `yaml:"heading" json:"heading"`
}

// FwKinOdom integrates wheel velocities into a world-frame pose.
//
// Per tick: RJW (body velocity) → GRR (rotation into world frame) →
// GrR (position) → φ (heading). GRR uses the heading of the previous
// tick. The heading is never wrapped.
type FwKinOdom struct {
	name string
	j    Jacobian

	w   block.InputSub[dynamo.Vec2]
	rjw *block.Blockio[dynamo.Vec2, dynamo.Scalar]
	grr *block.Blockio[dynamo.Scalar, dynamo.Vec2]
	grR *block.I[dynamo.Vec2]
	phi *block.I[dynamo.Scalar]
}

// NewFwKinOdom uses the differential-drive Jacobian for track width B
// with the wheel radius lumped into the wheel velocities.
func NewFwKinOdom(dt, trackWidth float64, init Pose) *FwKinOdom {
	return NewFwKinOdomWithJacobian(dt, NewDiffDriveJacobian(trackWidth, 1), init)
}

func NewFwKinOdomWithJacobian(dt float64, j Jacobian, init Pose) *FwKinOdom {
	o := &FwKinOdom{
		j:   j,
		grR: block.NewI[dynamo.Vec2](dt),
		phi: block.NewI[dynamo.Scalar](dt),
	}

	o.rjw = block.NewBlockio(1, 3, func(in []dynamo.Vec2, out []dynamo.Scalar) {
		vx, vy, omega := o.j.Apply(in[0])
		out[0], out[1], out[2] = dynamo.Scalar(vx), dynamo.Scalar(vy), dynamo.Scalar(omega)
	})
	o.grr = block.NewBlockio(3, 1, func(in []dynamo.Scalar, out []dynamo.Vec2) {
		out[0] = Rotate(float64(in[2]), dynamo.Vec2{float64(in[0]), float64(in[1])})
	})

	// Integrators are disabled after construction.
	_ = o.grR.SetInitCondition(init.GrR)
	_ = o.phi.SetInitCondition(dynamo.Scalar(init.Phi))

	o.SetName("FwKinOdom")

	o.rjw.Out(0).SetName("RvRx [m/s]")
	o.rjw.Out(1).SetName("RvRy [m/s]")
	o.rjw.Out(2).SetName("omegaR [rad/s]")
	o.grr.Out(0).SetName("GvR [m/s]")
	o.grR.Out().SetName("GrR [m]")
	o.phi.Out().SetName("phi [rad]")

	o.rjw.In(0).Connect(&o.w)
	o.grr.In(0).Connect(o.rjw.Out(0))
	o.grr.In(1).Connect(o.rjw.Out(1))
	o.grr.In(2).Connect(o.phi.Out())
	o.phi.In().Connect(o.rjw.Out(2))
	o.grR.In().Connect(o.grr.Out(0))

	return o
}

func (o *FwKinOdom) Name() string { return o.name }

func (o *FwKinOdom) SetName(name string) {
	o.name = name
	o.rjw.SetName(name + "->RJW")
	o.grr.SetName(name + "->GRR")
	o.grR.SetName(name + "->GrR")
	o.phi.SetName(name + "->phi")
}

func (o *FwKinOdom) Jacobian() Jacobian { return o.j }

// In is the wheel velocity input ω = [ω_L, ω_R].
func (o *FwKinOdom) In() *block.Input[dynamo.Vec2] { return &o.w.Input }

func (o *FwKinOdom) OutGvR() *block.Output[dynamo.Vec2]      { return o.grr.Out(0) }
func (o *FwKinOdom) OutGrR() *block.Output[dynamo.Vec2]      { return o.grR.Out() }
func (o *FwKinOdom) OutPhi() *block.Output[dynamo.Scalar]    { return o.phi.Out() }
func (o *FwKinOdom) OutOmegaR() *block.Output[dynamo.Scalar] { return o.rjw.Out(2) }
func (o *FwKinOdom) OutVx() *block.Output[dynamo.Scalar]     { return o.rjw.Out(0) }

func (o *FwKinOdom) Run(now float64) {
	o.rjw.Run(now)
	o.grr.Run(now)
	o.grR.Run(now)
	o.phi.Run(now)
}

func (o *FwKinOdom) Enable() {
	o.grR.Enable()
	o.phi.Enable()
}

func (o *FwKinOdom) Disable() {
	o.grR.Disable()
	o.phi.Disable()
}

func (o *FwKinOdom) Enabled() bool { return o.grR.Enabled() }

// Pose returns the current integrator outputs.
func (o *FwKinOdom) Pose() Pose {
	return Pose{GrR: o.grR.Out().Value(), Phi: float64(o.phi.Out().Value())}
}

// SetPose rewrites both initial conditions. It fails while the
// integrators are enabled and then leaves the pose untouched.
func (o *FwKinOdom) SetPose(p Pose) error {
	if o.Enabled() {
		return fmt.Errorf("%s: set pose: %w", o.name, dynamo.ErrIntegratorReinitWhileEnabled)
	}
	if err := o.grR.SetInitCondition(p.GrR); err != nil {
		return err
	}
	return o.phi.SetInitCondition(dynamo.Scalar(p.Phi))
}

func (o *FwKinOdom) Unbound() []string {
	if o.w.Bound() {
		return nil
	}
	return []string{o.name + ".in[0]"}
}

// Package control provides the composite blocks of the drive's control
// pipeline:
//
//   - [Controller]: PD controller with mass feedforward turning a
//     reference and a measured angular position into a torque command
//   - [FwKinOdom]: differential-drive forward kinematics integrated
//     into an odometric pose
//
// Both are built from [block] primitives wired once in the constructor
// and run their children in a fixed order.
//
// # Usage
//
//	ctrl := control.NewController[dynamo.Scalar](dt, 10, 0.7, 1) // ω₀, ζ, M
//	ref, _ := ctrl.In(0)
//	ref.Connect(setpoint.Out())
//	td.Add(setpoint, ctrl)
package control

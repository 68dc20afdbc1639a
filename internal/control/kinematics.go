package control

import (
	"math"

	"github.com/san-kum/diffbot/internal/dynamo"
)

// Jacobian maps wheel velocities [ω_L, ω_R] to body velocities
// [v_x (m/s), v_y (m/s), ω_R (rad/s)].
type Jacobian [3][2]float64

// NewDiffDriveJacobian builds J for track width B and wheel radius r.
// With r = 1 the wheel velocities are rim speeds in m/s.
func NewDiffDriveJacobian(trackWidth, wheelRadius float64) Jacobian {
	return Jacobian{
		{wheelRadius / 2, wheelRadius / 2},
		{0, 0},
		{-wheelRadius / trackWidth, wheelRadius / trackWidth},
	}
}

// Apply returns J·w.
func (j Jacobian) Apply(w dynamo.Vec2) (vx, vy, omega float64) {
	vx = j[0][0]*w[0] + j[0][1]*w[1]
	vy = j[1][0]*w[0] + j[1][1]*w[1]
	omega = j[2][0]*w[0] + j[2][1]*w[1]
	return vx, vy, omega
}

// Rotate maps a body-frame vector into the world frame for heading phi.
func Rotate(phi float64, v dynamo.Vec2) dynamo.Vec2 {
	s, c := math.Sincos(phi)
	return dynamo.Vec2{c*v[0] - s*v[1], s*v[0] + c*v[1]}
}

// WrapAngle maps phi into (−π, π].
func WrapAngle(phi float64) float64 {
	phi = math.Mod(phi, 2*math.Pi)
	if phi <= -math.Pi {
		phi += 2 * math.Pi
	} else if phi > math.Pi {
		phi -= 2 * math.Pi
	}
	return phi
}

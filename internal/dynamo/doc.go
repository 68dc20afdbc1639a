// Package dynamo provides the value types and domain errors shared by the
// control pipeline, the safety supervisor and the simulated plant.
//
//   - [Scalar], [Vec2]: signal values carried by block ports
//   - [Value]: arithmetic constraint used by the generic numeric blocks
//   - [State], [Control]: plant state and input vectors
//   - [System], [Integrator]: continuous plant and its numerical stepper
//
// Errors are sentinel values meant to be matched with [errors.Is]:
//
//	if errors.Is(err, dynamo.ErrIntegratorReinitWhileEnabled) {
//		// disable odometry first
//	}
package dynamo

package dynamo

import (
	"errors"
	"fmt"
)

// Domain errors for the control and safety core.
var (
	// ErrIndexOutOfBounds indicates a request for a port a block does not have.
	ErrIndexOutOfBounds = errors.New("dynamo: port index out of bounds")

	// ErrUnboundInput indicates an input with no upstream output at startup.
	ErrUnboundInput = errors.New("dynamo: input has no upstream output")

	// ErrIllegalEventInLevel indicates an event with no mapping in the current level.
	ErrIllegalEventInLevel = errors.New("dynamo: event not allowed in current level")

	// ErrHALMissingIO indicates a named digital input or output the HAL does not provide.
	ErrHALMissingIO = errors.New("dynamo: hal input/output not found")

	// ErrIntegratorReinitWhileEnabled indicates an initial condition change on a running integrator.
	ErrIntegratorReinitWhileEnabled = errors.New("dynamo: integrator initial condition changed while enabled")

	// ErrDimensionMismatch indicates mismatched state/control dimensions.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and system")

	// ErrInvalidConfig indicates a configuration value outside its valid range.
	ErrInvalidConfig = errors.New("dynamo: invalid configuration")
)

// PortError wraps an error with the block and port it concerns.
type PortError struct {
	Block   string
	Port    int
	Wrapped error
}

func (e *PortError) Error() string {
	return fmt.Sprintf("block %q port %d: %v", e.Block, e.Port, e.Wrapped)
}

func (e *PortError) Unwrap() error {
	return e.Wrapped
}

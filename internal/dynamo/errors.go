package dynamo

import "errors"

// Domain errors for simulation operations.
var (
	// ErrInvalidState indicates a state vector with invalid dimensions or values.
	ErrInvalidState = errors.New("dynamo: invalid state (NaN or Inf detected)")

	// ErrDimensionMismatch indicates matrices or vectors of inconsistent size.
	ErrDimensionMismatch = errors.New("dynamo: dimension mismatch between state and system")

	// ErrUnsupportedIntegration indicates a scheme the system cannot run.
	ErrUnsupportedIntegration = errors.New("dynamo: unsupported integration scheme")

	// ErrIncompatibleSystem is returned when a typed clone fails its type check.
	ErrIncompatibleSystem = errors.New("expected tunable dynamical system, got incompatible type")

	// ErrContextCanceled indicates the simulation was interrupted.
	ErrContextCanceled = errors.New("dynamo: simulation canceled by context")
)

package control

import "errors"

var (
	// ErrInvalidLimits indicates inverted output limits or a negative integral limit.
	ErrInvalidLimits = errors.New("control: invalid saturation limits")

	// ErrUnknownParam indicates a parameter name the controller does not expose.
	ErrUnknownParam = errors.New("control: unknown parameter")

	// ErrShortResponse indicates too few samples for a tangent fit.
	ErrShortResponse = errors.New("control: step response too short")

	// ErrNoInflection indicates the response never shows a rising tangent.
	ErrNoInflection = errors.New("control: no inflection point in step response")
)

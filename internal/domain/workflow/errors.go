package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when a step transition is not allowed
	ErrInvalidTransition = errors.New("invalid step transition")

	// ErrInvalidStep is returned when a step is not valid
	ErrInvalidStep = errors.New("invalid step")

	// ErrGuardFailed is returned when every guarded transition rejects the trigger
	ErrGuardFailed = errors.New("guard condition failed")
)

package workflow

import "context"

// StateMachine tracks the current step of a session and validates transitions
type StateMachine interface {
	// Step returns the current step
	Step() Step

	// CanFire returns true if the trigger has at least one transition from the current step
	CanFire(trigger Trigger) bool

	// Fire attempts to execute the trigger, moving to the new step if allowed
	Fire(ctx context.Context, trigger Trigger) error

	// PermittedTriggers returns all triggers configured for the current step
	PermittedTriggers() []Trigger

	// Targets returns every step the trigger may lead to from the current step
	Targets(trigger Trigger) []Step
}

package workflow

import (
	"context"
	"fmt"
	"sort"
)

// GuardFunc evaluates whether a transition should be taken
type GuardFunc func(ctx context.Context) bool

// StateMachineBuilder builds a transition table once and stamps out machines from it
type StateMachineBuilder interface {
	// Configure returns the configuration for the given step
	Configure(step Step) StepConfiguration

	// Build creates a new machine positioned at the given step
	Build(initial Step) StateMachine
}

// StepConfiguration configures the transitions leaving a single step
type StepConfiguration interface {
	// Permit allows a trigger to move to the target step
	Permit(trigger Trigger, to Step) StepConfiguration

	// PermitIf allows a trigger to move to the target step if the guard passes
	PermitIf(trigger Trigger, to Step, guard GuardFunc) StepConfiguration
}

type transition struct {
	to    Step
	guard GuardFunc
}

type stepConfig struct {
	from        Step
	transitions map[Trigger][]transition
}

type stateMachineBuilder struct {
	configurations map[Step]*stepConfig
}

type stateMachine struct {
	current        Step
	configurations map[Step]*stepConfig
}

// NewBuilder creates a new state machine builder
func NewBuilder() StateMachineBuilder {
	return &stateMachineBuilder{
		configurations: make(map[Step]*stepConfig),
	}
}

// Configure returns the configuration for the given step, creating it on first use
func (b *stateMachineBuilder) Configure(step Step) StepConfiguration {
	if !step.IsValid() {
		panic(fmt.Sprintf("invalid step: %s", step))
	}

	config, exists := b.configurations[step]
	if !exists {
		config = &stepConfig{
			from:        step,
			transitions: make(map[Trigger][]transition),
		}
		b.configurations[step] = config
	}

	return config
}

// Build creates a new machine. The transition table is copied so later
// Configure calls do not leak into machines that are already running.
func (b *stateMachineBuilder) Build(initial Step) StateMachine {
	if !initial.IsValid() {
		panic(fmt.Sprintf("invalid initial step: %s", initial))
	}

	configs := make(map[Step]*stepConfig, len(b.configurations))
	for step, config := range b.configurations {
		transitions := make(map[Trigger][]transition, len(config.transitions))
		for trigger, ts := range config.transitions {
			transitions[trigger] = append([]transition{}, ts...)
		}
		configs[step] = &stepConfig{
			from:        step,
			transitions: transitions,
		}
	}

	return &stateMachine{
		current:        initial,
		configurations: configs,
	}
}

// Permit allows a trigger to move to the target step
func (c *stepConfig) Permit(trigger Trigger, to Step) StepConfiguration {
	return c.PermitIf(trigger, to, nil)
}

// PermitIf allows a trigger to move to the target step if the guard passes.
// Transitions for the same trigger are tried in registration order.
func (c *stepConfig) PermitIf(trigger Trigger, to Step, guard GuardFunc) StepConfiguration {
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target step: %s", to))
	}

	c.transitions[trigger] = append(c.transitions[trigger], transition{
		to:    to,
		guard: guard,
	})

	return c
}

// Step returns the current step
func (m *stateMachine) Step() Step {
	return m.current
}

// CanFire returns true if the trigger is configured for the current step.
// Guards are not evaluated here since they need a context.
func (m *stateMachine) CanFire(trigger Trigger) bool {
	config, exists := m.configurations[m.current]
	if !exists {
		return false
	}
	return len(config.transitions[trigger]) > 0
}

// Fire executes the trigger, taking the first transition whose guard passes
func (m *stateMachine) Fire(ctx context.Context, trigger Trigger) error {
	config, exists := m.configurations[m.current]
	if !exists {
		return fmt.Errorf("%w: cannot fire %s from %s (no configuration)", ErrInvalidTransition, trigger, m.current)
	}

	transitions := config.transitions[trigger]
	if len(transitions) == 0 {
		return fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, m.current)
	}

	for _, t := range transitions {
		if t.guard == nil || t.guard(ctx) {
			m.current = t.to
			return nil
		}
	}

	return fmt.Errorf("%w: %s from %s", ErrGuardFailed, trigger, m.current)
}

// PermittedTriggers returns all triggers configured for the current step, sorted
func (m *stateMachine) PermittedTriggers() []Trigger {
	config, exists := m.configurations[m.current]
	if !exists {
		return []Trigger{}
	}

	triggers := make([]Trigger, 0, len(config.transitions))
	for trigger := range config.transitions {
		triggers = append(triggers, trigger)
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i] < triggers[j] })

	return triggers
}

// Targets returns the steps reachable by the trigger from the current step, in registration order
func (m *stateMachine) Targets(trigger Trigger) []Step {
	config, exists := m.configurations[m.current]
	if !exists {
		return nil
	}

	var steps []Step
	for _, t := range config.transitions[trigger] {
		steps = append(steps, t.to)
	}
	return steps
}

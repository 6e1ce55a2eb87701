package workflow

import (
	"context"
	"time"

	"github.com/garyjia/campus-assistant/internal/application/port"
	domainwf "github.com/garyjia/campus-assistant/internal/domain/workflow"
)

// ValidationContext is what a field validator may consult
type ValidationContext struct {
	Now    time.Time
	Fields domainwf.Fields
	Parser port.DateParser
}

// PromptContext is what a prompt renderer may consult
type PromptContext struct {
	Now     time.Time
	Session *domainwf.Session
	Format  func(time.Time) string
}

// FieldSpec describes one input step of a workflow
type FieldSpec struct {
	Step  domainwf.Step
	Field string
	Label string

	Prompt   func(pc PromptContext) Prompt
	Validate func(vc ValidationContext, in Input) (domainwf.Fields, error)

	// Valid re-checks a stored value against the other fields.
	// Nil means any stored value stays valid.
	Valid func(fields domainwf.Fields, now time.Time) bool
}

// Schema is the ordered step list of one workflow kind and its transition table
type Schema struct {
	Kind       domainwf.Kind
	Steps      []FieldSpec
	AllowPhoto bool
	Preview    func(s *domainwf.Session, format func(time.Time) string) string

	builder domainwf.StateMachineBuilder
}

type targetKey struct{}

func withTarget(ctx context.Context, step domainwf.Step) context.Context {
	return context.WithValue(ctx, targetKey{}, step)
}

func targetIs(step domainwf.Step) domainwf.GuardFunc {
	return func(ctx context.Context) bool {
		got, _ := ctx.Value(targetKey{}).(domainwf.Step)
		return got == step
	}
}

// NewSchema builds the transition table for the given steps.
//
// Every field step permits Submit to the next step and Resume to any later
// step or preview. Preview permits Confirm, Edit (back to the first step),
// Rewind to every field step and AttachPhoto when photos are allowed.
func NewSchema(kind domainwf.Kind, steps []FieldSpec, allowPhoto bool, preview func(*domainwf.Session, func(time.Time) string) string) *Schema {
	if len(steps) == 0 {
		panic("workflow schema needs at least one step")
	}

	b := domainwf.NewBuilder()
	for i, spec := range steps {
		next := domainwf.StepPreview
		if i+1 < len(steps) {
			next = steps[i+1].Step
		}

		cfg := b.Configure(spec.Step).
			Permit(domainwf.TriggerSubmit, next).
			Permit(domainwf.TriggerCancel, domainwf.StepCancelled)
		for _, later := range steps[i+1:] {
			cfg.PermitIf(domainwf.TriggerResume, later.Step, targetIs(later.Step))
		}
		cfg.PermitIf(domainwf.TriggerResume, domainwf.StepPreview, targetIs(domainwf.StepPreview))
	}

	review := b.Configure(domainwf.StepPreview).
		Permit(domainwf.TriggerConfirm, domainwf.StepCommitted).
		Permit(domainwf.TriggerEdit, steps[0].Step).
		Permit(domainwf.TriggerCancel, domainwf.StepCancelled)
	for _, spec := range steps {
		review.PermitIf(domainwf.TriggerRewind, spec.Step, targetIs(spec.Step))
	}

	if allowPhoto {
		review.Permit(domainwf.TriggerAttachPhoto, domainwf.StepPhoto)
		b.Configure(domainwf.StepPhoto).
			Permit(domainwf.TriggerSubmit, domainwf.StepPreview).
			Permit(domainwf.TriggerCancel, domainwf.StepCancelled)
	}

	return &Schema{
		Kind:       kind,
		Steps:      steps,
		AllowPhoto: allowPhoto,
		Preview:    preview,
		builder:    b,
	}
}

// First returns the entry step
func (s *Schema) First() domainwf.Step {
	return s.Steps[0].Step
}

// Spec returns the field step and its position
func (s *Schema) Spec(step domainwf.Step) (FieldSpec, int, bool) {
	for i, spec := range s.Steps {
		if spec.Step == step {
			return spec, i, true
		}
	}
	return FieldSpec{}, -1, false
}

// Machine returns a machine positioned at the given step
func (s *Schema) Machine(at domainwf.Step) domainwf.StateMachine {
	return s.builder.Build(at)
}

// RewindOptions lists the steps offered for single-field edits from preview
func (s *Schema) RewindOptions() []RewindOption {
	opts := make([]RewindOption, 0, len(s.Steps))
	for _, spec := range s.Steps {
		opts = append(opts, RewindOption{Step: spec.Step, Label: spec.Label})
	}
	return opts
}

// resumeTarget is the first step after position from whose value is missing
// or no longer valid, or preview when every later value holds
func (s *Schema) resumeTarget(fields domainwf.Fields, from int, now time.Time) domainwf.Step {
	for _, spec := range s.Steps[from+1:] {
		if !fields.Has(spec.Field) {
			return spec.Step
		}
		if spec.Valid != nil && !spec.Valid(fields, now) {
			return spec.Step
		}
	}
	return domainwf.StepPreview
}

package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStep_IsTerminal(t *testing.T) {
	tests := []struct {
		step     Step
		expected bool
	}{
		{StepTitle, false},
		{StepDescription, false},
		{StepStart, false},
		{StepEnd, false},
		{StepContent, false},
		{StepPreview, false},
		{StepPhoto, false},
		{StepCommitted, true},
		{StepCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.step), func(t *testing.T) {
			if got := tt.step.IsTerminal(); got != tt.expected {
				t.Errorf("Step.IsTerminal() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestStep_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		step     Step
		expected bool
	}{
		{"title", StepTitle, true},
		{"preview", StepPreview, true},
		{"unknown", Step("UNKNOWN"), false},
		{"empty", Step(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.step.IsValid(); got != tt.expected {
				t.Errorf("Step.IsValid() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestKind_IsValid(t *testing.T) {
	assert.True(t, KindEventCreate.IsValid())
	assert.True(t, KindTaskCreate.IsValid())
	assert.True(t, KindAnnouncementCreate.IsValid())
	assert.False(t, Kind("POLL_CREATE").IsValid())
}

func TestBuilder_Configure(t *testing.T) {
	builder := NewBuilder()

	config := builder.Configure(StepTitle)
	if config == nil {
		t.Fatal("Configure() returned nil")
	}

	if config2 := builder.Configure(StepTitle); config != config2 {
		t.Error("Configure() should return same config for same step")
	}
}

func TestBuilder_ConfigurePanicsOnInvalidStep(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Configure() should panic on invalid step")
		}
	}()

	NewBuilder().Configure(Step("INVALID"))
}

func TestBuilder_BuildPanicsOnInvalidInitialStep(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Build() should panic on invalid initial step")
		}
	}()

	NewBuilder().Build(Step("INVALID"))
}

func TestStepConfiguration_Permit(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StepTitle).Permit(TriggerSubmit, StepDescription)

	machine := builder.Build(StepTitle)

	if !machine.CanFire(TriggerSubmit) {
		t.Error("CanFire() should return true for permitted trigger")
	}
	if err := machine.Fire(context.Background(), TriggerSubmit); err != nil {
		t.Errorf("Fire() failed: %v", err)
	}
	if machine.Step() != StepDescription {
		t.Errorf("Step after Fire() = %v, want %v", machine.Step(), StepDescription)
	}
}

func TestStepConfiguration_PermitIf_GuardFails(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StepTitle).
		PermitIf(TriggerSubmit, StepDescription, func(ctx context.Context) bool { return false })

	machine := builder.Build(StepTitle)

	err := machine.Fire(context.Background(), TriggerSubmit)
	if !errors.Is(err, ErrGuardFailed) {
		t.Errorf("Fire() error = %v, want %v", err, ErrGuardFailed)
	}
	if machine.Step() != StepTitle {
		t.Errorf("Step should remain %v after failed Fire(), got %v", StepTitle, machine.Step())
	}
}

type targetKey struct{}

func TestStepConfiguration_PermitIf_FirstPassingGuardWins(t *testing.T) {
	target := func(step Step) GuardFunc {
		return func(ctx context.Context) bool {
			got, _ := ctx.Value(targetKey{}).(Step)
			return got == step
		}
	}

	builder := NewBuilder()
	builder.Configure(StepPreview).
		PermitIf(TriggerRewind, StepTitle, target(StepTitle)).
		PermitIf(TriggerRewind, StepStart, target(StepStart)).
		PermitIf(TriggerRewind, StepEnd, target(StepEnd))

	for _, want := range []Step{StepTitle, StepStart, StepEnd} {
		machine := builder.Build(StepPreview)
		ctx := context.WithValue(context.Background(), targetKey{}, want)
		require.NoError(t, machine.Fire(ctx, TriggerRewind))
		assert.Equal(t, want, machine.Step())
	}

	machine := builder.Build(StepPreview)
	ctx := context.WithValue(context.Background(), targetKey{}, StepDescription)
	assert.ErrorIs(t, machine.Fire(ctx, TriggerRewind), ErrGuardFailed)
	assert.Equal(t, []Step{StepTitle, StepStart, StepEnd}, machine.Targets(TriggerRewind))
}

func TestStepConfiguration_PermitPanicsOnInvalidTarget(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Permit() should panic on invalid target step")
		}
	}()

	NewBuilder().Configure(StepTitle).Permit(TriggerSubmit, Step("INVALID"))
}

func TestStateMachine_Fire_InvalidTransition(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StepTitle).Permit(TriggerSubmit, StepDescription)

	machine := builder.Build(StepTitle)

	err := machine.Fire(context.Background(), TriggerConfirm)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Fire() error = %v, want %v", err, ErrInvalidTransition)
	}
	if machine.Step() != StepTitle {
		t.Errorf("Step should remain %v after failed Fire(), got %v", StepTitle, machine.Step())
	}
}

func TestStateMachine_Fire_NoConfiguration(t *testing.T) {
	machine := NewBuilder().Build(StepTitle)

	err := machine.Fire(context.Background(), TriggerSubmit)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Fire() error = %v, want %v", err, ErrInvalidTransition)
	}
}

func TestStateMachine_PermittedTriggers(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StepPreview).
		Permit(TriggerConfirm, StepCommitted).
		Permit(TriggerCancel, StepCancelled).
		Permit(TriggerEdit, StepTitle)

	machine := builder.Build(StepPreview)
	assert.Equal(t, []Trigger{TriggerCancel, TriggerConfirm, TriggerEdit}, machine.PermittedTriggers())

	empty := NewBuilder().Build(StepPreview)
	assert.Empty(t, empty.PermittedTriggers())
}

func TestStateMachine_Immutability(t *testing.T) {
	builder := NewBuilder()
	builder.Configure(StepTitle).Permit(TriggerSubmit, StepDescription)

	machine1 := builder.Build(StepTitle)
	machine2 := builder.Build(StepTitle)

	require.NoError(t, machine1.Fire(context.Background(), TriggerSubmit))

	assert.Equal(t, StepTitle, machine2.Step(), "machines should be independent")
	assert.Equal(t, StepDescription, machine1.Step())

	// configuring after Build must not affect existing machines
	builder.Configure(StepTitle).Permit(TriggerCancel, StepCancelled)
	assert.False(t, machine2.CanFire(TriggerCancel))
}

func TestStateMachine_EventChain(t *testing.T) {
	builder := NewBuilder()
	chain := []Step{StepTitle, StepDescription, StepStart, StepEnd, StepPreview}
	for i := 0; i < len(chain)-1; i++ {
		builder.Configure(chain[i]).
			Permit(TriggerSubmit, chain[i+1]).
			Permit(TriggerCancel, StepCancelled)
	}
	builder.Configure(StepPreview).
		Permit(TriggerConfirm, StepCommitted).
		Permit(TriggerEdit, StepTitle).
		Permit(TriggerAttachPhoto, StepPhoto).
		Permit(TriggerCancel, StepCancelled)
	builder.Configure(StepPhoto).Permit(TriggerSubmit, StepPreview)

	machine := builder.Build(StepTitle)
	steps := []struct {
		trigger  Trigger
		expected Step
	}{
		{TriggerSubmit, StepDescription},
		{TriggerSubmit, StepStart},
		{TriggerSubmit, StepEnd},
		{TriggerSubmit, StepPreview},
		{TriggerAttachPhoto, StepPhoto},
		{TriggerSubmit, StepPreview},
		{TriggerEdit, StepTitle},
		{TriggerCancel, StepCancelled},
	}

	for i, step := range steps {
		if err := machine.Fire(context.Background(), step.trigger); err != nil {
			t.Errorf("Step %d: Fire(%v) failed: %v", i, step.trigger, err)
		}
		if machine.Step() != step.expected {
			t.Errorf("Step %d: step = %v, want %v", i, machine.Step(), step.expected)
		}
	}

	assert.True(t, machine.Step().IsTerminal())
	assert.Empty(t, machine.PermittedTriggers())
}

func TestSession_CloneIsIndependent(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	s := NewSession("c1", "u1", KindEventCreate, StepTitle, now)
	s.Fields[FieldTitle] = TextValue("Open day")

	c := s.Clone()
	c.Fields[FieldTitle] = TextValue("Changed")
	c.Step = StepDescription

	title, ok := s.Fields.Text(FieldTitle)
	require.True(t, ok)
	assert.Equal(t, "Open day", title)
	assert.Equal(t, StepTitle, s.Step)
}

func TestSession_Expired(t *testing.T) {
	now := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	s := NewSession("c1", "u1", KindTaskCreate, StepTitle, now)

	assert.False(t, s.Expired(now.Add(time.Minute), time.Hour))
	assert.True(t, s.Expired(now.Add(2*time.Hour), time.Hour))
	assert.False(t, s.Expired(now.Add(48*time.Hour), 0))
}

func TestFields_TypedAccessors(t *testing.T) {
	at := time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)
	f := Fields{
		FieldTitle:    TextValue("Exam"),
		FieldStartAt:  TimeValue(at),
		FieldAssignee: IDValue(7),
		FieldImage:    AttachmentValue("img_v2_1"),
	}

	title, ok := f.Text(FieldTitle)
	assert.True(t, ok)
	assert.Equal(t, "Exam", title)

	got, ok := f.Time(FieldStartAt)
	assert.True(t, ok)
	assert.True(t, got.Equal(at))

	_, ok = f.Time(FieldTitle)
	assert.False(t, ok, "text field must not read as time")

	id, ok := f.ID(FieldAssignee)
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)

	key, ok := f.Text(FieldImage)
	assert.True(t, ok)
	assert.Equal(t, "img_v2_1", key)

	assert.False(t, f.Has(FieldEndAt))
}

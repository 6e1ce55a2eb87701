package workflow

import (
	"context"

	"github.com/garyjia/campus-assistant/internal/domain/entity"
	domainwf "github.com/garyjia/campus-assistant/internal/domain/workflow"
)

// WorkflowEngine drives the guided creation workflows, one session per conversation
type WorkflowEngine interface {
	// Start discards any existing session for the conversation and opens a new one
	Start(ctx context.Context, req StartRequest) (*StepResult, error)

	// Advance feeds one user input into the active session
	Advance(ctx context.Context, conversationID string, in Input) (*StepResult, error)

	// Cancel drops the session. It is a no-op when none exists.
	Cancel(ctx context.Context, conversationID string) error

	// RewindToEdit re-enters one step from preview and returns to preview once it is answered
	RewindToEdit(ctx context.Context, conversationID string, step domainwf.Step) (*StepResult, error)

	// Active returns the current session or nil
	Active(ctx context.Context, conversationID string) (*domainwf.Session, error)
}

// StartRequest describes a new workflow session
type StartRequest struct {
	ConversationID string
	UserID         string
	Kind           domainwf.Kind

	// Seed pre-populates fields, typically from an existing record being edited
	Seed domainwf.Fields

	// EditingTargetID turns the commit into an update of that record
	EditingTargetID int64

	// EntryStep starts somewhere other than the first step. A field step
	// entered this way returns to preview as soon as it is answered.
	EntryStep domainwf.Step
}

// Action is a button-style input
type Action string

const (
	ActionConfirm     Action = "confirm"
	ActionEdit        Action = "edit"
	ActionAttachPhoto Action = "attach_photo"
	ActionCancel      Action = "cancel"
)

// IsValid reports whether the action is known
func (a Action) IsValid() bool {
	switch a {
	case ActionConfirm, ActionEdit, ActionAttachPhoto, ActionCancel:
		return true
	}
	return false
}

// Input is one raw user input
type Input struct {
	Text   string
	Action Action

	// Media lists attachment keys offered with the message, smallest first
	Media []string

	// MessageID identifies the chat message that carried the input
	MessageID string
}

// TextInput wraps typed text
func TextInput(text string) Input {
	return Input{Text: text}
}

// ActionInput wraps a button press
func ActionInput(a Action) Input {
	return Input{Action: a}
}

// Outcome classifies a StepResult
type Outcome string

const (
	OutcomeRetry           Outcome = "retry"
	OutcomeAdvance         Outcome = "advance"
	OutcomeReadyForPreview Outcome = "ready_for_preview"
	OutcomeCommitted       Outcome = "committed"
	OutcomeCommitFailed    Outcome = "commit_failed"
	OutcomeCancelled       Outcome = "cancelled"
)

// RewindOption is an editable step offered from preview
type RewindOption struct {
	Step  domainwf.Step
	Label string
}

// Prompt is what the user should see next
type Prompt struct {
	Text string

	// Suggestions are quick replies; choosing one is the same as typing it
	Suggestions []string

	Actions  []Action
	Rewind   []RewindOption
	ImageKey string
}

// Record is the result of a successful commit
type Record struct {
	Kind    domainwf.Kind
	Updated bool
	Event   *entity.Event
	Task    *entity.Task
	Report  *entity.DeliveryReport
	Message string
}

// StepResult is the outcome of a single engine call
type StepResult struct {
	Outcome Outcome
	Step    domainwf.Step

	// Message carries the retry reason or the final confirmation
	Message string

	// Prompt is set whenever more input is expected
	Prompt *Prompt

	// Record is set on OutcomeCommitted
	Record *Record

	// Err wraps ErrCommitFailed on OutcomeCommitFailed
	Err error
}

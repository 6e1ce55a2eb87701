package workflow

import "errors"

var (
	// ErrNoActiveWorkflow is returned when input arrives for a conversation without a session
	ErrNoActiveWorkflow = errors.New("no active workflow")

	// ErrCommitFailed wraps every store failure during commit
	ErrCommitFailed = errors.New("commit failed")

	// ErrUnknownWorkflow is returned for a kind without a registered schema
	ErrUnknownWorkflow = errors.New("unknown workflow kind")

	// ErrNotAtPreview is returned when a rewind is requested outside the preview step
	ErrNotAtPreview = errors.New("workflow is not at preview")

	// ErrStepNotEditable is returned when a rewind targets a step the workflow does not have
	ErrStepNotEditable = errors.New("step cannot be edited")

	// ErrCreatorUnknown is returned when the committing user is not registered
	ErrCreatorUnknown = errors.New("creator is not registered")

	// ErrNoRecipients is returned when an announcement has nobody to reach
	ErrNoRecipients = errors.New("no announcement recipients")
)

// ValidationError is an input rejection with a user-facing message
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

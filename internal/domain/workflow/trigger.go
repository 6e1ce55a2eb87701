package workflow

// Trigger represents an input that can move a session between steps
type Trigger string

const (
	TriggerSubmit      Trigger = "SUBMIT"
	TriggerResume      Trigger = "RESUME"
	TriggerConfirm     Trigger = "CONFIRM"
	TriggerEdit        Trigger = "EDIT"
	TriggerRewind      Trigger = "REWIND"
	TriggerAttachPhoto Trigger = "ATTACH_PHOTO"
	TriggerCancel      Trigger = "CANCEL"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

package workflow

// Step is the position of a conversation inside a creation workflow
type Step string

const (
	StepTitle       Step = "TITLE"
	StepDescription Step = "DESCRIPTION"
	StepStart       Step = "START"
	StepEnd         Step = "END"
	StepContent     Step = "CONTENT"
	StepPreview     Step = "PREVIEW"
	StepPhoto       Step = "PHOTO"
	StepCommitted   Step = "COMMITTED"
	StepCancelled   Step = "CANCELLED"
)

var validSteps = map[Step]bool{
	StepTitle:       true,
	StepDescription: true,
	StepStart:       true,
	StepEnd:         true,
	StepContent:     true,
	StepPreview:     true,
	StepPhoto:       true,
	StepCommitted:   true,
	StepCancelled:   true,
}

var terminalSteps = map[Step]bool{
	StepCommitted: true,
	StepCancelled: true,
}

// IsTerminal returns true if no further input is accepted at this step
func (s Step) IsTerminal() bool {
	return terminalSteps[s]
}

// String returns the string representation of the step
func (s Step) String() string {
	return string(s)
}

// IsValid returns true if the step is known
func (s Step) IsValid() bool {
	return validSteps[s]
}

package workflow

// Kind identifies which creation workflow a session belongs to
type Kind string

const (
	KindEventCreate        Kind = "EVENT_CREATE"
	KindTaskCreate         Kind = "TASK_CREATE"
	KindAnnouncementCreate Kind = "ANNOUNCEMENT_CREATE"
)

var validKinds = map[Kind]bool{
	KindEventCreate:        true,
	KindTaskCreate:         true,
	KindAnnouncementCreate: true,
}

// IsValid returns true if the kind is known
func (k Kind) IsValid() bool {
	return validKinds[k]
}

// String returns the string representation of the kind
func (k Kind) String() string {
	return string(k)
}

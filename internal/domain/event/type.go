package event

// Type identifies the type of domain event
type Type string

const (
	TypeEventCreated     Type = "event.created"
	TypeEventUpdated     Type = "event.updated"
	TypeEventDeleted     Type = "event.deleted"
	TypeTaskCreated      Type = "task.created"
	TypeTaskUpdated      Type = "task.updated"
	TypeTaskCompleted    Type = "task.completed"
	TypeTaskDeleted      Type = "task.deleted"
	TypeAnnouncementSent Type = "announcement.sent"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeEventCreated,
		TypeEventUpdated,
		TypeEventDeleted,
		TypeTaskCreated,
		TypeTaskUpdated,
		TypeTaskCompleted,
		TypeTaskDeleted,
		TypeAnnouncementSent:
		return true
	default:
		return false
	}
}

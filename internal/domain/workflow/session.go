package workflow

import "time"

// Session is the in-progress state of one creation workflow for one conversation.
// At most one session exists per conversation.
type Session struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Kind           Kind   `json:"kind"`
	Step           Step   `json:"step"`
	Fields         Fields `json:"fields"`

	// EditingTargetID is set when the session modifies an existing record
	EditingTargetID int64 `json:"editing_target_id,omitempty"`

	// Resume sends the session back to preview once the fields after the current step are valid
	Resume bool `json:"resume,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession creates a session positioned at the given step
func NewSession(conversationID, userID string, kind Kind, step Step, now time.Time) *Session {
	return &Session{
		ConversationID: conversationID,
		UserID:         userID,
		Kind:           kind,
		Step:           step,
		Fields:         make(Fields),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// IsEditing reports whether the session targets an existing record
func (s *Session) IsEditing() bool {
	return s.EditingTargetID != 0
}

// Clone returns a deep copy so that a rejected input never mutates stored state
func (s *Session) Clone() *Session {
	c := *s
	c.Fields = s.Fields.Clone()
	return &c
}

// Expired reports whether the session was idle for longer than ttl
func (s *Session) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	return now.Sub(s.UpdatedAt) > ttl
}

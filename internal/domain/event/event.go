package event

import (
	"time"

	"github.com/google/uuid"
)

// Payload keys used across handlers
const (
	KeyTitle      = "title"
	KeyCreatorID  = "creator_id"
	KeyAssigneeID = "assignee_id"
	KeyTotal      = "total"
	KeySuccess    = "success"
	KeyFailed     = "failed"
)

// Event represents a domain event raised after a record changed
type Event struct {
	ID             string                 `json:"id"`
	Type           Type                   `json:"type"`
	EntityID       int64                  `json:"entity_id"`
	ConversationID string                 `json:"conversation_id,omitempty"`
	Payload        map[string]interface{} `json:"payload"`
	Timestamp      time.Time              `json:"timestamp"`
	CorrelationID  string                 `json:"correlation_id"`
}

// NewEvent creates a domain event with a fresh ID that starts its own correlation chain
func NewEvent(eventType Type, entityID int64, payload map[string]interface{}) *Event {
	id := uuid.NewString()
	return &Event{
		ID:            id,
		Type:          eventType,
		EntityID:      entityID,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: id,
	}
}

// NewEventWithCorrelation creates an event linked to an existing correlation chain
func NewEventWithCorrelation(eventType Type, entityID int64, payload map[string]interface{}, correlationID string) *Event {
	e := NewEvent(eventType, entityID, payload)
	e.CorrelationID = correlationID
	return e
}

// FromConversation returns a copy tagged with the originating conversation
func (e *Event) FromConversation(conversationID string) *Event {
	c := *e
	c.ConversationID = conversationID
	return &c
}

// WithPayload returns a copy with an added payload entry
func (e *Event) WithPayload(key string, value interface{}) *Event {
	payload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		payload[k] = v
	}
	payload[key] = value

	c := *e
	c.Payload = payload
	return &c
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadInt retrieves an int64 value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}

package workflow

import "time"

// ValueType tags the variant held by a Value
type ValueType string

const (
	ValueText       ValueType = "text"
	ValueTime       ValueType = "time"
	ValueAttachment ValueType = "attachment"
	ValueMessage    ValueType = "message"
	ValueID         ValueType = "id"
)

// Field names shared by the workflow schemas and their committers
const (
	FieldTitle         = "title"
	FieldDescription   = "description"
	FieldStartAt       = "start_at"
	FieldEndAt         = "end_at"
	FieldImage         = "image_key"
	FieldAssignee      = "assignee_id"
	FieldText          = "text"
	FieldSourceMessage = "source_message_id"
)

// Value is a single collected field. Only the member matching Type is meaningful.
type Value struct {
	Type ValueType `json:"type"`
	Text string    `json:"text,omitempty"`
	Time time.Time `json:"time,omitempty"`
	ID   int64     `json:"id,omitempty"`
}

// TextValue wraps free text
func TextValue(s string) Value {
	return Value{Type: ValueText, Text: s}
}

// TimeValue wraps a timestamp
func TimeValue(t time.Time) Value {
	return Value{Type: ValueTime, Time: t}
}

// AttachmentValue wraps a media key returned by the chat platform
func AttachmentValue(key string) Value {
	return Value{Type: ValueAttachment, Text: key}
}

// MessageValue wraps a reference to a chat message
func MessageValue(messageID string) Value {
	return Value{Type: ValueMessage, Text: messageID}
}

// IDValue wraps an entity identifier
func IDValue(id int64) Value {
	return Value{Type: ValueID, ID: id}
}

// Fields maps field names to collected values
type Fields map[string]Value

// Has reports whether the field was collected
func (f Fields) Has(name string) bool {
	_, ok := f[name]
	return ok
}

// Text returns the string payload of a text, attachment or message field
func (f Fields) Text(name string) (string, bool) {
	v, ok := f[name]
	if !ok {
		return "", false
	}
	switch v.Type {
	case ValueText, ValueAttachment, ValueMessage:
		return v.Text, true
	}
	return "", false
}

// Time returns the timestamp held by a time field
func (f Fields) Time(name string) (time.Time, bool) {
	v, ok := f[name]
	if !ok || v.Type != ValueTime {
		return time.Time{}, false
	}
	return v.Time, true
}

// ID returns the identifier held by an id field
func (f Fields) ID(name string) (int64, bool) {
	v, ok := f[name]
	if !ok || v.Type != ValueID {
		return 0, false
	}
	return v.ID, true
}

// Clone returns an independent copy
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Merge writes every entry of other into f
func (f Fields) Merge(other Fields) {
	for k, v := range other {
		f[k] = v
	}
}

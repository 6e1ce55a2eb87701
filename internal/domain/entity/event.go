package entity

import (
	"strings"
	"time"
)

// Event is a scheduled occurrence with a start and end
type Event struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	CreatedBy   int64      `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	StartAt     time.Time  `json:"start_at"`
	EndAt       time.Time  `json:"end_at"`
	ImageKey    string     `json:"image_key,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	Deletion
}

// Validate checks the invariants every stored event satisfies
func (e *Event) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return ErrEmptyTitle
	}
	if e.CreatedBy == 0 {
		return ErrMissingCreator
	}
	if !e.EndAt.After(e.StartAt) {
		return ErrInvalidTimeRange
	}
	return nil
}

// Overlaps reports whether the event intersects the half-open window [start, end).
// An event ending exactly at start still counts.
func (e *Event) Overlaps(start, end time.Time) bool {
	return e.StartAt.Before(end) && !e.EndAt.Before(start)
}

// EventPatch lists the fields an edit may change. Nil means unchanged.
type EventPatch struct {
	Title       *string
	Description *string
	StartAt     *time.Time
	EndAt       *time.Time
	ImageKey    *string
}

// Apply writes the patch onto e
func (p EventPatch) Apply(e *Event) {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Description != nil {
		e.Description = *p.Description
	}
	if p.StartAt != nil {
		e.StartAt = *p.StartAt
	}
	if p.EndAt != nil {
		e.EndAt = *p.EndAt
	}
	if p.ImageKey != nil {
		e.ImageKey = *p.ImageKey
	}
}

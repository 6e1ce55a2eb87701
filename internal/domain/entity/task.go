package entity

import (
	"strings"
	"time"
)

// Task is an assignment with a deadline
type Task struct {
	ID           int64      `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	CreatedBy    int64      `json:"created_by"`
	CreatedFor   int64      `json:"created_for"`
	CreatedAt    time.Time  `json:"created_at"`
	EndAt        time.Time  `json:"end_at"`
	IsCompleted  bool       `json:"is_completed"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CompleteDesc string     `json:"complete_desc,omitempty"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
	Deletion
}

// Validate checks the invariants every stored task satisfies
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return ErrEmptyTitle
	}
	if t.CreatedBy == 0 || t.CreatedFor == 0 {
		return ErrMissingCreator
	}
	return nil
}

// Overdue reports whether an open task passed its deadline
func (t *Task) Overdue(now time.Time) bool {
	return !t.IsCompleted && now.After(t.EndAt)
}

// CompletedLate reports whether the task was completed after its deadline
func (t *Task) CompletedLate() bool {
	return t.IsCompleted && t.CompletedAt != nil && t.CompletedAt.After(t.EndAt)
}

// DaysLeft returns whole days until the deadline, negative when overdue
func (t *Task) DaysLeft(now time.Time) int {
	return int(t.EndAt.Sub(now).Hours() / 24)
}

// TaskPatch lists the fields an edit may change. Nil means unchanged.
type TaskPatch struct {
	Title       *string
	Description *string
	EndAt       *time.Time
}

// Apply writes the patch onto t
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.EndAt != nil {
		t.EndAt = *p.EndAt
	}
}

// TaskStats aggregates task counts overall and for the current month
type TaskStats struct {
	Total          int `json:"total"`
	Completed      int `json:"completed"`
	MonthTotal     int `json:"month_total"`
	MonthCompleted int `json:"month_completed"`
}

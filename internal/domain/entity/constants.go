package entity

import (
	"errors"
	"time"
)

// User role constants
const (
	RoleUser       = "user"
	RoleManagement = "management"
	RoleAdmin      = "admin"
)

// Validation errors shared by the record types
var (
	ErrEmptyTitle       = errors.New("title must not be empty")
	ErrInvalidTimeRange = errors.New("end must be later than start")
	ErrMissingCreator   = errors.New("creator is required")
)

// Deletion holds the soft delete triple. A record is deleted iff IsDeleted;
// DeletedAt and DeletedBy are only meaningful in that case.
type Deletion struct {
	IsDeleted bool       `json:"is_deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
	DeletedBy *int64     `json:"deleted_by,omitempty"`
}

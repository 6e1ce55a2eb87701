package port

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/campus-assistant/internal/domain/entity"
)

// ErrNotFound is returned by mutations that target a missing or deleted record
var ErrNotFound = errors.New("record not found")

// EventRepository defines persistence operations for Event.
// Reads never return soft-deleted rows.
type EventRepository interface {
	Create(ctx context.Context, ev *entity.Event) error
	GetByID(ctx context.Context, id int64) (*entity.Event, error)
	Update(ctx context.Context, id int64, patch entity.EventPatch, at time.Time) (*entity.Event, error)
	SoftDelete(ctx context.Context, id, actorID int64, at time.Time) (*entity.Event, error)

	// ListInRange returns live events with start_at < end and end_at >= start, ordered by start
	ListInRange(ctx context.Context, start, end time.Time) ([]*entity.Event, error)
}

// TaskRepository defines persistence operations for Task
type TaskRepository interface {
	Create(ctx context.Context, task *entity.Task) error
	GetByID(ctx context.Context, id int64) (*entity.Task, error)
	Update(ctx context.Context, id int64, patch entity.TaskPatch, at time.Time) (*entity.Task, error)
	SoftDelete(ctx context.Context, id, actorID int64, at time.Time) (*entity.Task, error)

	SetCompleted(ctx context.Context, id int64, at time.Time) (*entity.Task, error)
	SetCompletionDescription(ctx context.Context, id int64, text string) (*entity.Task, error)

	// ListByAssignee returns live tasks ordered by deadline
	ListByAssignee(ctx context.Context, assigneeID int64, completed bool) ([]*entity.Task, error)

	// ListCompletedBetween returns tasks completed in [start, end), ordered by completion time
	ListCompletedBetween(ctx context.Context, assigneeID int64, start, end time.Time) ([]*entity.Task, error)

	// Stats counts live tasks overall and those created since monthStart
	Stats(ctx context.Context, monthStart time.Time) (*entity.TaskStats, error)
}

// UserRepository defines persistence operations for User
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	GetByOpenID(ctx context.Context, openID string) (*entity.User, error)

	// ListRecipients returns open ids of users that are neither banned nor deleted
	ListRecipients(ctx context.Context) ([]string, error)

	// ListByRole returns live users with the given role
	ListByRole(ctx context.Context, role string) ([]*entity.User, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

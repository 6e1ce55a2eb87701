package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/campus-assistant/internal/application/port"
	"github.com/garyjia/campus-assistant/internal/domain/entity"
	"github.com/garyjia/campus-assistant/internal/infrastructure/persistence/sqlite"
)

const taskColumns = `id, title, description, created_by, created_for, created_at, end_at,
	is_completed, completed_at, complete_desc, updated_at, is_deleted, deleted_at, deleted_by`

// TaskRepository implements port.TaskRepository
type TaskRepository struct {
	db     *sqlite.DB
	loc    *time.Location
	logger *zap.Logger
}

// NewTaskRepository creates a new task repository. Timestamps are returned in loc.
func NewTaskRepository(db *sqlite.DB, loc *time.Location, logger *zap.Logger) *TaskRepository {
	return &TaskRepository{
		db:     db,
		loc:    loc,
		logger: logger,
	}
}

// Create inserts a new task and sets its ID
func (r *TaskRepository) Create(ctx context.Context, task *entity.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}

	result, err := r.db.Executor(ctx).ExecContext(ctx, `
		INSERT INTO tasks (title, description, created_by, created_for, created_at, end_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		task.Title,
		sqlite.NullString(task.Description),
		task.CreatedBy,
		task.CreatedFor,
		sqlite.Unix(task.CreatedAt),
		sqlite.Unix(task.EndAt),
	)
	if err != nil {
		r.logger.Error("Failed to create task",
			zap.String("title", task.Title),
			zap.Int64("created_for", task.CreatedFor),
			zap.Error(err))
		return fmt.Errorf("failed to create task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = id
	return nil
}

// GetByID returns a live task, or nil when it does not exist or was deleted
func (r *TaskRepository) GetByID(ctx context.Context, id int64) (*entity.Task, error) {
	task, err := r.scanTask(r.db.Executor(ctx).QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ? AND is_deleted = 0`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get task by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// Update applies patch to a live task
func (r *TaskRepository) Update(ctx context.Context, id int64, patch entity.TaskPatch, at time.Time) (*entity.Task, error) {
	var updated *entity.Task
	err := r.db.WithTransaction(ctx, func(ctx context.Context) error {
		task, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if task == nil {
			return port.ErrNotFound
		}

		patch.Apply(task)
		if err := task.Validate(); err != nil {
			return err
		}
		task.UpdatedAt = &at

		_, err = r.db.Executor(ctx).ExecContext(ctx, `
			UPDATE tasks SET title = ?, description = ?, end_at = ?, updated_at = ?
			WHERE id = ? AND is_deleted = 0`,
			task.Title,
			sqlite.NullString(task.Description),
			sqlite.Unix(task.EndAt),
			sqlite.Unix(at),
			id,
		)
		if err != nil {
			r.logger.Error("Failed to update task", zap.Int64("id", id), zap.Error(err))
			return fmt.Errorf("failed to update task: %w", err)
		}
		updated = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SoftDelete marks a live task deleted. Deleting twice returns port.ErrNotFound.
func (r *TaskRepository) SoftDelete(ctx context.Context, id, actorID int64, at time.Time) (*entity.Task, error) {
	return r.mutate(ctx, id, "delete", `
		UPDATE tasks SET is_deleted = 1, deleted_at = ?, deleted_by = ?
		WHERE id = ? AND is_deleted = 0`,
		sqlite.Unix(at), actorID, id)
}

// SetCompleted marks an open task completed. Completion happens at most once.
func (r *TaskRepository) SetCompleted(ctx context.Context, id int64, at time.Time) (*entity.Task, error) {
	return r.mutate(ctx, id, "complete", `
		UPDATE tasks SET is_completed = 1, completed_at = ?
		WHERE id = ? AND is_deleted = 0 AND is_completed = 0`,
		sqlite.Unix(at), id)
}

// SetCompletionDescription attaches the result summary to a completed task
func (r *TaskRepository) SetCompletionDescription(ctx context.Context, id int64, text string) (*entity.Task, error) {
	return r.mutate(ctx, id, "describe completion of", `
		UPDATE tasks SET complete_desc = ?
		WHERE id = ? AND is_deleted = 0 AND is_completed = 1`,
		text, id)
}

func (r *TaskRepository) mutate(ctx context.Context, id int64, action, query string, args ...interface{}) (*entity.Task, error) {
	result, err := r.db.Executor(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to "+action+" task", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to %s task: %w", action, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, port.ErrNotFound
	}

	return r.scanTask(r.db.Executor(ctx).QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
}

// ListByAssignee returns the live tasks of an assignee ordered by deadline
func (r *TaskRepository) ListByAssignee(ctx context.Context, assigneeID int64, completed bool) ([]*entity.Task, error) {
	return r.list(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE created_for = ? AND is_deleted = 0 AND is_completed = ?
		ORDER BY end_at, id`,
		assigneeID, completed)
}

// ListCompletedBetween returns tasks completed by the assignee in [start, end)
func (r *TaskRepository) ListCompletedBetween(ctx context.Context, assigneeID int64, start, end time.Time) ([]*entity.Task, error) {
	return r.list(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE created_for = ? AND is_deleted = 0 AND is_completed = 1
			AND completed_at >= ? AND completed_at < ?
		ORDER BY completed_at, id`,
		assigneeID, sqlite.Unix(start), sqlite.Unix(end))
}

// Stats counts live tasks overall and those created since monthStart
func (r *TaskRepository) Stats(ctx context.Context, monthStart time.Time) (*entity.TaskStats, error) {
	since := sqlite.Unix(monthStart)

	var stats entity.TaskStats
	err := r.db.Executor(ctx).QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(is_completed), 0),
			COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN created_at >= ? AND is_completed = 1 THEN 1 ELSE 0 END), 0)
		FROM tasks WHERE is_deleted = 0`,
		since, since,
	).Scan(&stats.Total, &stats.Completed, &stats.MonthTotal, &stats.MonthCompleted)
	if err != nil {
		r.logger.Error("Failed to count tasks", zap.Error(err))
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	return &stats, nil
}

func (r *TaskRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.Task, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list tasks", zap.Error(err))
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*entity.Task
	for rows.Next() {
		task, err := r.scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func (r *TaskRepository) scanTask(row rowScanner) (*entity.Task, error) {
	var (
		task                   entity.Task
		description, desc      sql.NullString
		createdAt, endAt       int64
		completedAt, updatedAt sql.NullInt64
		deletedAt, deletedBy   sql.NullInt64
	)

	err := row.Scan(
		&task.ID, &task.Title, &description, &task.CreatedBy, &task.CreatedFor, &createdAt, &endAt,
		&task.IsCompleted, &completedAt, &desc, &updatedAt, &task.IsDeleted, &deletedAt, &deletedBy,
	)
	if err != nil {
		return nil, err
	}

	task.Description = description.String
	task.CompleteDesc = desc.String
	task.CreatedAt = sqlite.FromUnix(createdAt, r.loc)
	task.EndAt = sqlite.FromUnix(endAt, r.loc)
	task.CompletedAt = sqlite.FromNullUnix(completedAt, r.loc)
	task.UpdatedAt = sqlite.FromNullUnix(updatedAt, r.loc)
	task.DeletedAt = sqlite.FromNullUnix(deletedAt, r.loc)
	task.DeletedBy = nullID(deletedBy)
	return &task, nil
}

var _ port.TaskRepository = (*TaskRepository)(nil)

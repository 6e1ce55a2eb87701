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

const eventColumns = `id, title, description, created_by, created_at, start_at, end_at,
	image_key, updated_at, is_deleted, deleted_at, deleted_by`

// EventRepository implements port.EventRepository
type EventRepository struct {
	db     *sqlite.DB
	loc    *time.Location
	logger *zap.Logger
}

// NewEventRepository creates a new event repository. Timestamps are returned in loc.
func NewEventRepository(db *sqlite.DB, loc *time.Location, logger *zap.Logger) *EventRepository {
	return &EventRepository{
		db:     db,
		loc:    loc,
		logger: logger,
	}
}

// Create inserts a new event and sets its ID
func (r *EventRepository) Create(ctx context.Context, ev *entity.Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}

	result, err := r.db.Executor(ctx).ExecContext(ctx, `
		INSERT INTO events (title, description, created_by, created_at, start_at, end_at, image_key)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.Title,
		sqlite.NullString(ev.Description),
		ev.CreatedBy,
		sqlite.Unix(ev.CreatedAt),
		sqlite.Unix(ev.StartAt),
		sqlite.Unix(ev.EndAt),
		sqlite.NullString(ev.ImageKey),
	)
	if err != nil {
		r.logger.Error("Failed to create event", zap.String("title", ev.Title), zap.Error(err))
		return fmt.Errorf("failed to create event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	ev.ID = id
	return nil
}

// GetByID returns a live event, or nil when it does not exist or was deleted
func (r *EventRepository) GetByID(ctx context.Context, id int64) (*entity.Event, error) {
	ev, err := r.scanEvent(r.db.Executor(ctx).QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ? AND is_deleted = 0`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get event by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return ev, nil
}

// Update applies patch to a live event. port.ErrNotFound is returned when the event is gone.
func (r *EventRepository) Update(ctx context.Context, id int64, patch entity.EventPatch, at time.Time) (*entity.Event, error) {
	var updated *entity.Event
	err := r.db.WithTransaction(ctx, func(ctx context.Context) error {
		ev, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if ev == nil {
			return port.ErrNotFound
		}

		patch.Apply(ev)
		if err := ev.Validate(); err != nil {
			return err
		}
		ev.UpdatedAt = &at

		_, err = r.db.Executor(ctx).ExecContext(ctx, `
			UPDATE events
			SET title = ?, description = ?, start_at = ?, end_at = ?, image_key = ?, updated_at = ?
			WHERE id = ? AND is_deleted = 0`,
			ev.Title,
			sqlite.NullString(ev.Description),
			sqlite.Unix(ev.StartAt),
			sqlite.Unix(ev.EndAt),
			sqlite.NullString(ev.ImageKey),
			sqlite.Unix(at),
			id,
		)
		if err != nil {
			r.logger.Error("Failed to update event", zap.Int64("id", id), zap.Error(err))
			return fmt.Errorf("failed to update event: %w", err)
		}
		updated = ev
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SoftDelete marks a live event deleted. Deleting twice returns port.ErrNotFound
// and leaves the first deletion untouched.
func (r *EventRepository) SoftDelete(ctx context.Context, id, actorID int64, at time.Time) (*entity.Event, error) {
	result, err := r.db.Executor(ctx).ExecContext(ctx, `
		UPDATE events SET is_deleted = 1, deleted_at = ?, deleted_by = ?
		WHERE id = ? AND is_deleted = 0`,
		sqlite.Unix(at), actorID, id,
	)
	if err != nil {
		r.logger.Error("Failed to delete event", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to delete event: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, port.ErrNotFound
	}

	return r.scanEvent(r.db.Executor(ctx).QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
}

// ListInRange returns live events with start_at < end and end_at >= start
func (r *EventRepository) ListInRange(ctx context.Context, start, end time.Time) ([]*entity.Event, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, `
		SELECT `+eventColumns+` FROM events
		WHERE is_deleted = 0 AND start_at < ? AND end_at >= ?
		ORDER BY start_at, id`,
		sqlite.Unix(end), sqlite.Unix(start),
	)
	if err != nil {
		r.logger.Error("Failed to list events", zap.Time("start", start), zap.Time("end", end), zap.Error(err))
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*entity.Event
	for rows.Next() {
		ev, err := r.scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (r *EventRepository) scanEvent(row rowScanner) (*entity.Event, error) {
	var (
		ev                   entity.Event
		description, image   sql.NullString
		createdAt, start     int64
		end                  int64
		updatedAt, deletedAt sql.NullInt64
		deletedBy            sql.NullInt64
	)

	err := row.Scan(
		&ev.ID, &ev.Title, &description, &ev.CreatedBy, &createdAt, &start, &end,
		&image, &updatedAt, &ev.IsDeleted, &deletedAt, &deletedBy,
	)
	if err != nil {
		return nil, err
	}

	ev.Description = description.String
	ev.ImageKey = image.String
	ev.CreatedAt = sqlite.FromUnix(createdAt, r.loc)
	ev.StartAt = sqlite.FromUnix(start, r.loc)
	ev.EndAt = sqlite.FromUnix(end, r.loc)
	ev.UpdatedAt = sqlite.FromNullUnix(updatedAt, r.loc)
	ev.DeletedAt = sqlite.FromNullUnix(deletedAt, r.loc)
	ev.DeletedBy = nullID(deletedBy)
	return &ev, nil
}

var _ port.EventRepository = (*EventRepository)(nil)

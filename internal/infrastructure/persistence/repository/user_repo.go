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

const userColumns = `id, open_id, role, manager_role, full_name, user_desc, is_banned,
	registered_at, is_deleted, deleted_at, deleted_by`

// UserRepository implements port.UserRepository
type UserRepository struct {
	db     *sqlite.DB
	loc    *time.Location
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlite.DB, loc *time.Location, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		loc:    loc,
		logger: logger,
	}
}

// Create registers a user and sets its ID. A soft-deleted user with the same
// open id is restored with the new profile instead of inserted again.
func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	if user.Role == "" {
		user.Role = entity.RoleUser
	}

	exec := r.db.Executor(ctx)
	restored, err := exec.ExecContext(ctx, `
		UPDATE users SET role = ?, manager_role = ?, full_name = ?, user_desc = ?, is_banned = ?,
			registered_at = ?, is_deleted = 0, deleted_at = NULL, deleted_by = NULL
		WHERE open_id = ? AND is_deleted = 1`,
		user.Role,
		sqlite.NullString(user.ManagerRole),
		sqlite.NullString(user.FullName),
		sqlite.NullString(user.Description),
		user.IsBanned,
		sqlite.Unix(user.RegisteredAt),
		user.OpenID,
	)
	if err != nil {
		r.logger.Error("Failed to restore user", zap.String("open_id", user.OpenID), zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}
	if n, _ := restored.RowsAffected(); n > 0 {
		if err := exec.QueryRowContext(ctx, `SELECT id FROM users WHERE open_id = ?`, user.OpenID).Scan(&user.ID); err != nil {
			return fmt.Errorf("failed to get restored user id: %w", err)
		}
		r.logger.Info("Restored deleted user", zap.Int64("user_id", user.ID), zap.String("open_id", user.OpenID))
		return nil
	}

	result, err := exec.ExecContext(ctx, `
		INSERT INTO users (open_id, role, manager_role, full_name, user_desc, is_banned, registered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.OpenID,
		user.Role,
		sqlite.NullString(user.ManagerRole),
		sqlite.NullString(user.FullName),
		sqlite.NullString(user.Description),
		user.IsBanned,
		sqlite.Unix(user.RegisteredAt),
	)
	if err != nil {
		r.logger.Error("Failed to create user", zap.String("open_id", user.OpenID), zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	user.ID = id
	return nil
}

// GetByID returns a live user or nil
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*entity.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ? AND is_deleted = 0`, id)
}

// GetByOpenID returns a live user by chat identity or nil
func (r *UserRepository) GetByOpenID(ctx context.Context, openID string) (*entity.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE open_id = ? AND is_deleted = 0`, openID)
}

// ListRecipients returns open ids of users that are neither banned nor deleted
func (r *UserRepository) ListRecipients(ctx context.Context) ([]string, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx,
		`SELECT open_id FROM users WHERE is_banned = 0 AND is_deleted = 0 ORDER BY id`)
	if err != nil {
		r.logger.Error("Failed to list recipients", zap.Error(err))
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan recipient: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListByRole returns live users with the given role ordered by name
func (r *UserRepository) ListByRole(ctx context.Context, role string) ([]*entity.User, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE role = ? AND is_deleted = 0
		ORDER BY COALESCE(full_name, open_id), id`, role)
	if err != nil {
		r.logger.Error("Failed to list users", zap.String("role", role), zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*entity.User
	for rows.Next() {
		u, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SetBanned toggles the ban flag of a live user
func (r *UserRepository) SetBanned(ctx context.Context, id int64, banned bool) error {
	result, err := r.db.Executor(ctx).ExecContext(ctx,
		`UPDATE users SET is_banned = ? WHERE id = ? AND is_deleted = 0`, banned, id)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return port.ErrNotFound
	}
	return nil
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg interface{}) (*entity.User, error) {
	u, err := r.scan(r.db.Executor(ctx).QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.Any("key", arg), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (r *UserRepository) scan(row rowScanner) (*entity.User, error) {
	var (
		u                       entity.User
		managerRole, name, desc sql.NullString
		registeredAt            int64
		deletedAt, deletedBy    sql.NullInt64
	)

	if err := row.Scan(
		&u.ID, &u.OpenID, &u.Role, &managerRole, &name, &desc, &u.IsBanned,
		&registeredAt, &u.IsDeleted, &deletedAt, &deletedBy,
	); err != nil {
		return nil, err
	}

	u.ManagerRole = managerRole.String
	u.FullName = name.String
	u.Description = desc.String
	u.RegisteredAt = sqlite.FromUnix(registeredAt, r.loc)
	u.DeletedAt = sqlite.FromNullUnix(deletedAt, r.loc)
	u.DeletedBy = nullID(deletedBy)
	return &u, nil
}

var _ port.UserRepository = (*UserRepository)(nil)

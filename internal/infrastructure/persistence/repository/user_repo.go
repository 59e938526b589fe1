package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-workflow/internal/application/port"
	"github.com/garyjia/invoice-workflow/internal/domain/entity"
	"github.com/garyjia/invoice-workflow/internal/domain/workflow"
	"github.com/garyjia/invoice-workflow/internal/infrastructure/persistence/sqlite"
)

// UserRepository implements port.UserRepository
type UserRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, logger *zap.Logger) port.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

const userColumns = `id, email, display_name, role, operations_room, active, created_at`

// Create inserts a user
func (r *UserRepository) Create(ctx context.Context, user *entity.User) error {
	query := `INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.DisplayName,
		string(user.Role),
		user.OperationsRoom,
		user.Active,
		user.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create user", zap.String("user_id", user.ID), zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetByID retrieves a user, nil when unknown
func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

	user, err := scanUser(sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get user", zap.String("user_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ListByRole returns every user with the role
func (r *UserRepository) ListByRole(ctx context.Context, role workflow.Role) ([]*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = ? ORDER BY id`
	return r.list(ctx, query, string(role))
}

// ListOperationsRoom returns the members of the operations room
func (r *UserRepository) ListOperationsRoom(ctx context.Context) ([]*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE operations_room = 1 ORDER BY id`
	return r.list(ctx, query)
}

func (r *UserRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.User, error) {
	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list users", zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*entity.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func scanUser(row rowScanner) (*entity.User, error) {
	var user entity.User
	var role string
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.DisplayName,
		&role,
		&user.OperationsRoom,
		&user.Active,
		&user.CreatedAt,
	); err != nil {
		return nil, err
	}
	user.Role = workflow.Role(role)
	return &user, nil
}

// Verify interface compliance
var _ port.UserRepository = (*UserRepository)(nil)

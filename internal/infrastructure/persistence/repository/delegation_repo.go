package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-workflow/internal/application/port"
	"github.com/garyjia/invoice-workflow/internal/domain/entity"
	"github.com/garyjia/invoice-workflow/internal/infrastructure/persistence/sqlite"
)

// DelegationRepository implements port.DelegationRepository
type DelegationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDelegationRepository creates a new delegation repository
func NewDelegationRepository(db *sql.DB, logger *zap.Logger) port.DelegationRepository {
	return &DelegationRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a delegation; dates are stored as calendar days
func (r *DelegationRepository) Create(ctx context.Context, d *entity.Delegation) error {
	query := `
		INSERT INTO delegations (id, delegator_user_id, delegate_user_id, date_from, date_to, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		d.ID,
		d.DelegatorUserID,
		d.DelegateUserID,
		d.DateFrom.Format(entity.DateLayout),
		d.DateTo.Format(entity.DateLayout),
		d.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create delegation", zap.String("delegator", d.DelegatorUserID), zap.Error(err))
		return fmt.Errorf("failed to create delegation: %w", err)
	}
	return nil
}

// ListByDelegator returns the delegations of a delegator, newest first
func (r *DelegationRepository) ListByDelegator(ctx context.Context, delegatorUserID string) ([]*entity.Delegation, error) {
	query := `
		SELECT id, delegator_user_id, delegate_user_id, date_from, date_to, created_at
		FROM delegations
		WHERE delegator_user_id = ?
		ORDER BY created_at DESC, id DESC
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, delegatorUserID)
	if err != nil {
		r.logger.Error("Failed to list delegations", zap.String("delegator", delegatorUserID), zap.Error(err))
		return nil, fmt.Errorf("failed to list delegations: %w", err)
	}
	defer rows.Close()

	var out []*entity.Delegation
	for rows.Next() {
		var d entity.Delegation
		var from, to string
		if err := rows.Scan(&d.ID, &d.DelegatorUserID, &d.DelegateUserID, &from, &to, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan delegation: %w", err)
		}
		if d.DateFrom, err = parseDate(from); err != nil {
			return nil, err
		}
		if d.DateTo, err = parseDate(to); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// Verify interface compliance
var _ port.DelegationRepository = (*DelegationRepository)(nil)

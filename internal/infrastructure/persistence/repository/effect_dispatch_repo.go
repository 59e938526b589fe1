package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-workflow/internal/application/port"
	"github.com/garyjia/invoice-workflow/internal/domain/entity"
	"github.com/garyjia/invoice-workflow/internal/infrastructure/persistence/sqlite"
)

// EffectDispatchRepository implements port.EffectDispatchRepository
type EffectDispatchRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEffectDispatchRepository creates a new effect dispatch repository
func NewEffectDispatchRepository(db *sql.DB, logger *zap.Logger) port.EffectDispatchRepository {
	return &EffectDispatchRepository{
		db:     db,
		logger: logger,
	}
}

// Claim inserts the dispatch or re-opens a failed one in a single statement,
// so two concurrent claims of the same key cannot both succeed.
func (r *EffectDispatchRepository) Claim(ctx context.Context, d *entity.EffectDispatch) (bool, error) {
	query := `
		INSERT INTO effect_dispatches (
			idempotency_key, invoice_id, effect_key, template, status, attempts, last_error, created_at
		) VALUES (?, ?, ?, ?, ?, 1, '', ?)
		ON CONFLICT(idempotency_key) DO UPDATE SET
			status = excluded.status,
			attempts = effect_dispatches.attempts + 1,
			last_error = ''
		WHERE effect_dispatches.status = 'failed'
	`

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		d.IdempotencyKey,
		d.InvoiceID,
		d.EffectKey,
		d.Template,
		string(entity.DispatchPending),
		d.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to claim dispatch", zap.String("key", d.IdempotencyKey), zap.Error(err))
		return false, fmt.Errorf("failed to claim dispatch: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// MarkSent records a successful delivery
func (r *EffectDispatchRepository) MarkSent(ctx context.Context, key string, at time.Time) error {
	query := `UPDATE effect_dispatches SET status = ?, sent_at = ?, last_error = '' WHERE idempotency_key = ?`
	return r.exec(ctx, "mark dispatch sent", query, string(entity.DispatchSent), at.UTC(), key)
}

// MarkFailed records a failed delivery so it can be claimed again
func (r *EffectDispatchRepository) MarkFailed(ctx context.Context, key string, reason string) error {
	query := `UPDATE effect_dispatches SET status = ?, last_error = ? WHERE idempotency_key = ?`
	return r.exec(ctx, "mark dispatch failed", query, string(entity.DispatchFailed), reason, key)
}

func (r *EffectDispatchRepository) exec(ctx context.Context, op, query string, args ...interface{}) error {
	if _, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("Failed to "+op, zap.Error(err))
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return nil
}

// ListByInvoiceID returns every dispatch of an invoice
func (r *EffectDispatchRepository) ListByInvoiceID(ctx context.Context, invoiceID string) ([]*entity.EffectDispatch, error) {
	query := `
		SELECT idempotency_key, invoice_id, effect_key, template, status, attempts, last_error, created_at, sent_at
		FROM effect_dispatches
		WHERE invoice_id = ?
		ORDER BY created_at, idempotency_key
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, invoiceID)
	if err != nil {
		r.logger.Error("Failed to list dispatches", zap.String("invoice_id", invoiceID), zap.Error(err))
		return nil, fmt.Errorf("failed to list dispatches: %w", err)
	}
	defer rows.Close()

	var out []*entity.EffectDispatch
	for rows.Next() {
		var d entity.EffectDispatch
		var status string
		var sentAt sql.NullTime
		if err := rows.Scan(
			&d.IdempotencyKey,
			&d.InvoiceID,
			&d.EffectKey,
			&d.Template,
			&status,
			&d.Attempts,
			&d.LastError,
			&d.CreatedAt,
			&sentAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan dispatch: %w", err)
		}
		d.Status = entity.DispatchStatus(status)
		d.SentAt = timePtr(sentAt)
		out = append(out, &d)
	}
	return out, rows.Err()
}

// Verify interface compliance
var _ port.EffectDispatchRepository = (*EffectDispatchRepository)(nil)

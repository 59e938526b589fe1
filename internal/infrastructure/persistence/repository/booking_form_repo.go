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

// BookingFormRepository implements port.BookingFormRepository
type BookingFormRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewBookingFormRepository creates a new booking form repository
func NewBookingFormRepository(db *sql.DB, logger *zap.Logger) port.BookingFormRepository {
	return &BookingFormRepository{
		db:     db,
		logger: logger,
	}
}

// Reserve creates the record in the sending state or re-opens a failed one.
// Sent and in-flight records are left alone and reported as not reserved.
func (r *BookingFormRepository) Reserve(ctx context.Context, invoiceID, effectKey string, at time.Time) (bool, error) {
	query := `
		INSERT INTO booking_form_dispatches (
			invoice_id, effect_key, status, attempts, last_error, created_at, updated_at
		) VALUES (?, ?, ?, 1, '', ?, ?)
		ON CONFLICT(invoice_id, effect_key) DO UPDATE SET
			status = excluded.status,
			attempts = booking_form_dispatches.attempts + 1,
			updated_at = excluded.updated_at
		WHERE booking_form_dispatches.status = 'failed'
	`

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		invoiceID,
		effectKey,
		string(entity.DispatchSending),
		at.UTC(),
		at.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to reserve booking form", zap.String("invoice_id", invoiceID), zap.Error(err))
		return false, fmt.Errorf("failed to reserve booking form: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// Get retrieves the record, nil when none exists
func (r *BookingFormRepository) Get(ctx context.Context, invoiceID, effectKey string) (*entity.BookingFormDispatchRecord, error) {
	query := `
		SELECT invoice_id, effect_key, status, file_path, operations_sent_at, contractor_sent_at,
			attempts, last_error, created_at, updated_at
		FROM booking_form_dispatches
		WHERE invoice_id = ? AND effect_key = ?
	`

	var rec entity.BookingFormDispatchRecord
	var status string
	var opsSent, contractorSent sql.NullTime
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, invoiceID, effectKey).Scan(
		&rec.InvoiceID,
		&rec.EffectKey,
		&status,
		&rec.FilePath,
		&opsSent,
		&contractorSent,
		&rec.Attempts,
		&rec.LastError,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get booking form record", zap.String("invoice_id", invoiceID), zap.Error(err))
		return nil, fmt.Errorf("failed to get booking form record: %w", err)
	}

	rec.Status = entity.DispatchStatus(status)
	rec.OperationsSentAt = timePtr(opsSent)
	rec.ContractorSentAt = timePtr(contractorSent)
	return &rec, nil
}

// Update writes the mutable fields of the record
func (r *BookingFormRepository) Update(ctx context.Context, rec *entity.BookingFormDispatchRecord) error {
	query := `
		UPDATE booking_form_dispatches SET
			status = ?,
			file_path = ?,
			operations_sent_at = ?,
			contractor_sent_at = ?,
			last_error = ?,
			updated_at = ?
		WHERE invoice_id = ? AND effect_key = ?
	`

	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		string(rec.Status),
		rec.FilePath,
		nullableTime(rec.OperationsSentAt),
		nullableTime(rec.ContractorSentAt),
		rec.LastError,
		updatedAt.UTC(),
		rec.InvoiceID,
		rec.EffectKey,
	)
	if err != nil {
		r.logger.Error("Failed to update booking form record", zap.String("invoice_id", rec.InvoiceID), zap.Error(err))
		return fmt.Errorf("failed to update booking form record: %w", err)
	}
	return nil
}

// Verify interface compliance
var _ port.BookingFormRepository = (*BookingFormRepository)(nil)

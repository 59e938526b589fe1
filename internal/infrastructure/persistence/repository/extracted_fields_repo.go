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

// ExtractedFieldsRepository implements port.ExtractedFieldsRepository
type ExtractedFieldsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewExtractedFieldsRepository creates a new extracted fields repository
func NewExtractedFieldsRepository(db *sql.DB, logger *zap.Logger) port.ExtractedFieldsRepository {
	return &ExtractedFieldsRepository{
		db:     db,
		logger: logger,
	}
}

// Upsert stores the latest extraction result of an invoice
func (r *ExtractedFieldsRepository) Upsert(ctx context.Context, fields *entity.ExtractedFields) error {
	query := `
		INSERT INTO extracted_fields (
			invoice_id, beneficiary_name, amount, currency, iban, bank_name,
			confidence, needs_review, extracted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(invoice_id) DO UPDATE SET
			beneficiary_name = excluded.beneficiary_name,
			amount = excluded.amount,
			currency = excluded.currency,
			iban = excluded.iban,
			bank_name = excluded.bank_name,
			confidence = excluded.confidence,
			needs_review = excluded.needs_review,
			extracted_at = excluded.extracted_at
	`

	_, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		fields.InvoiceID,
		fields.BeneficiaryName,
		fields.Amount.String(),
		fields.Currency,
		fields.IBAN,
		fields.BankName,
		fields.Confidence,
		fields.NeedsReview,
		fields.ExtractedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to upsert extracted fields", zap.String("invoice_id", fields.InvoiceID), zap.Error(err))
		return fmt.Errorf("failed to upsert extracted fields: %w", err)
	}
	return nil
}

// GetByInvoiceID retrieves the extracted fields, nil when none were stored
func (r *ExtractedFieldsRepository) GetByInvoiceID(ctx context.Context, invoiceID string) (*entity.ExtractedFields, error) {
	query := `
		SELECT invoice_id, beneficiary_name, amount, currency, iban, bank_name,
			confidence, needs_review, extracted_at
		FROM extracted_fields
		WHERE invoice_id = ?
	`

	var f entity.ExtractedFields
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, invoiceID).Scan(
		&f.InvoiceID,
		&f.BeneficiaryName,
		&f.Amount,
		&f.Currency,
		&f.IBAN,
		&f.BankName,
		&f.Confidence,
		&f.NeedsReview,
		&f.ExtractedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get extracted fields", zap.String("invoice_id", invoiceID), zap.Error(err))
		return nil, fmt.Errorf("failed to get extracted fields: %w", err)
	}
	return &f, nil
}

// Verify interface compliance
var _ port.ExtractedFieldsRepository = (*ExtractedFieldsRepository)(nil)

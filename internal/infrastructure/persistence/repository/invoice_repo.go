package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-workflow/internal/application/port"
	"github.com/garyjia/invoice-workflow/internal/domain/entity"
	"github.com/garyjia/invoice-workflow/internal/domain/workflow"
	"github.com/garyjia/invoice-workflow/internal/infrastructure/persistence/sqlite"
)

// InvoiceRepository implements port.InvoiceRepository
type InvoiceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *sql.DB, logger *zap.Logger) port.InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts an invoice with its details as a JSON document
func (r *InvoiceRepository) Create(ctx context.Context, invoice *entity.Invoice) error {
	details, err := json.Marshal(invoice.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal invoice details: %w", err)
	}

	query := `
		INSERT INTO invoices (id, family, submitter_id, details, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err = sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		invoice.ID,
		string(invoice.Family),
		invoice.SubmitterID,
		string(details),
		invoice.CreatedAt.UTC(),
		invoice.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create invoice", zap.String("invoice_id", invoice.ID), zap.Error(err))
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

// GetByID retrieves an invoice, nil when unknown
func (r *InvoiceRepository) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	query := `
		SELECT id, family, submitter_id, details, created_at, updated_at
		FROM invoices
		WHERE id = ?
	`

	var invoice entity.Invoice
	var family, details string
	err := sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&invoice.ID,
		&family,
		&invoice.SubmitterID,
		&details,
		&invoice.CreatedAt,
		&invoice.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get invoice", zap.String("invoice_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}

	invoice.Family = workflow.Family(family)
	if err := json.Unmarshal([]byte(details), &invoice.Details); err != nil {
		return nil, fmt.Errorf("failed to decode invoice details: %w", err)
	}
	return &invoice, nil
}

// UpdateDetails replaces the details document of an invoice
func (r *InvoiceRepository) UpdateDetails(ctx context.Context, id string, details entity.InvoiceDetails, updatedAt time.Time) error {
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to marshal invoice details: %w", err)
	}

	query := `UPDATE invoices SET details = ?, updated_at = ? WHERE id = ?`
	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query, string(raw), updatedAt.UTC(), id)
	if err != nil {
		r.logger.Error("Failed to update invoice details", zap.String("invoice_id", id), zap.Error(err))
		return fmt.Errorf("failed to update invoice details: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: invoice %s", workflow.ErrNotFound, id)
	}
	return nil
}

// Verify interface compliance
var _ port.InvoiceRepository = (*InvoiceRepository)(nil)

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-workflow/internal/application/port"
	"github.com/garyjia/invoice-workflow/internal/domain/entity"
	"github.com/garyjia/invoice-workflow/internal/domain/workflow"
	"github.com/garyjia/invoice-workflow/internal/infrastructure/persistence/sqlite"
)

// WorkflowRepository implements port.WorkflowRepository, the status ledger
type WorkflowRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewWorkflowRepository creates a new workflow repository
func NewWorkflowRepository(db *sql.DB, logger *zap.Logger) port.WorkflowRepository {
	return &WorkflowRepository{
		db:     db,
		logger: logger,
	}
}

const workflowColumns = `invoice_id, status, manager_user_id, rejection_reason, paid_date,
	payment_reference, manager_confirmed_bank_details, version, status_changed_at, updated_at`

// Create inserts the ledger row of a new invoice
func (r *WorkflowRepository) Create(ctx context.Context, wf *entity.Workflow) error {
	query := `INSERT INTO workflows (` + workflowColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		wf.InvoiceID,
		string(wf.Status),
		wf.ManagerUserID,
		wf.RejectionReason,
		nullableDate(wf.PaidDate),
		wf.PaymentReference,
		wf.ManagerConfirmedBankDetails,
		wf.Version,
		wf.StatusChangedAt.UTC(),
		wf.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create workflow", zap.String("invoice_id", wf.InvoiceID), zap.Error(err))
		return fmt.Errorf("failed to create workflow: %w", err)
	}
	return nil
}

// GetByInvoiceID retrieves the ledger row, nil when unknown
func (r *WorkflowRepository) GetByInvoiceID(ctx context.Context, invoiceID string) (*entity.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE invoice_id = ?`

	wf, err := scanWorkflow(sqlite.ExecutorFor(ctx, r.db).QueryRowContext(ctx, query, invoiceID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get workflow", zap.String("invoice_id", invoiceID), zap.Error(err))
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}
	return wf, nil
}

// CompareAndSwap writes next if the row still has the expected version and
// status. On success next.Version holds the bumped version.
func (r *WorkflowRepository) CompareAndSwap(ctx context.Context, next *entity.Workflow, expectedVersion int64, expectedStatus workflow.Status) error {
	query := `
		UPDATE workflows SET
			status = ?,
			manager_user_id = ?,
			rejection_reason = ?,
			paid_date = ?,
			payment_reference = ?,
			manager_confirmed_bank_details = ?,
			version = version + 1,
			status_changed_at = ?,
			updated_at = ?
		WHERE invoice_id = ? AND version = ? AND status = ?
	`

	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		string(next.Status),
		next.ManagerUserID,
		next.RejectionReason,
		nullableDate(next.PaidDate),
		next.PaymentReference,
		next.ManagerConfirmedBankDetails,
		next.StatusChangedAt.UTC(),
		next.UpdatedAt.UTC(),
		next.InvoiceID,
		expectedVersion,
		string(expectedStatus),
	)
	if err != nil {
		r.logger.Error("Failed to update workflow", zap.String("invoice_id", next.InvoiceID), zap.Error(err))
		return fmt.Errorf("failed to update workflow: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return workflow.ErrConflict
	}

	next.Version = expectedVersion + 1
	return nil
}

// ListStaleInStatus returns rows that entered the status before the cutoff
func (r *WorkflowRepository) ListStaleInStatus(ctx context.Context, status workflow.Status, before time.Time) ([]*entity.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows
		WHERE status = ? AND status_changed_at < ?
		ORDER BY status_changed_at`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, string(status), before.UTC())
	if err != nil {
		r.logger.Error("Failed to list stale workflows", zap.String("status", string(status)), zap.Error(err))
		return nil, fmt.Errorf("failed to list stale workflows: %w", err)
	}
	defer rows.Close()

	var out []*entity.Workflow
	for rows.Next() {
		wf, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}
		out = append(out, wf)
	}
	return out, rows.Err()
}

func scanWorkflow(row rowScanner) (*entity.Workflow, error) {
	var wf entity.Workflow
	var status string
	var paidDate sql.NullString

	if err := row.Scan(
		&wf.InvoiceID,
		&status,
		&wf.ManagerUserID,
		&wf.RejectionReason,
		&paidDate,
		&wf.PaymentReference,
		&wf.ManagerConfirmedBankDetails,
		&wf.Version,
		&wf.StatusChangedAt,
		&wf.UpdatedAt,
	); err != nil {
		return nil, err
	}

	wf.Status = workflow.Status(status)
	if paidDate.Valid && paidDate.String != "" {
		d, err := parseDate(paidDate.String)
		if err != nil {
			return nil, err
		}
		wf.PaidDate = &d
	}
	return &wf, nil
}

// Verify interface compliance
var _ port.WorkflowRepository = (*WorkflowRepository)(nil)

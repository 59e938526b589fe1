package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-workflow/internal/domain/entity"
	"github.com/garyjia/invoice-workflow/internal/domain/workflow"
	"github.com/garyjia/invoice-workflow/migrations"
	"github.com/garyjia/invoice-workflow/pkg/database"
)

// setupTestDB opens a migrated SQLite file in a temp directory
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "ledger.db")}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = database.NewMigrator(db, zap.NewNop()).Run(context.Background(), migrations.FS)
	require.NoError(t, err)

	return db.DB
}

var testNow = time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)

func seedInvoice(t *testing.T, db *sql.DB, id string, family workflow.Family) *entity.Invoice {
	t.Helper()
	inv := &entity.Invoice{
		ID:          id,
		Family:      family,
		SubmitterID: "S",
		Details: entity.InvoiceDetails{
			BeneficiaryName: "Jane Doe",
			Amount:          decimal.RequireFromString("1250.75"),
			Currency:        "EUR",
			IBAN:            "DE89370400440532013000",
		},
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
	require.NoError(t, NewInvoiceRepository(db, zap.NewNop()).Create(context.Background(), inv))
	return inv
}

func seedWorkflow(t *testing.T, db *sql.DB, invoiceID string, status workflow.Status, changedAt time.Time) *entity.Workflow {
	t.Helper()
	wf := &entity.Workflow{
		InvoiceID:       invoiceID,
		Status:          status,
		ManagerUserID:   "M",
		Version:         1,
		StatusChangedAt: changedAt,
		UpdatedAt:       changedAt,
	}
	require.NoError(t, NewWorkflowRepository(db, zap.NewNop()).Create(context.Background(), wf))
	return wf
}

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

// NoteRepository implements port.NoteRepository
type NoteRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNoteRepository creates a new note repository
func NewNoteRepository(db *sql.DB, logger *zap.Logger) port.NoteRepository {
	return &NoteRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a note
func (r *NoteRepository) Create(ctx context.Context, note *entity.Note) error {
	query := `INSERT INTO notes (id, invoice_id, author_id, content, created_at) VALUES (?, ?, ?, ?, ?)`

	_, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		note.ID,
		note.InvoiceID,
		note.AuthorID,
		note.Content,
		note.CreatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create note", zap.String("invoice_id", note.InvoiceID), zap.Error(err))
		return fmt.Errorf("failed to create note: %w", err)
	}
	return nil
}

// ListByInvoiceID returns the notes of an invoice oldest first
func (r *NoteRepository) ListByInvoiceID(ctx context.Context, invoiceID string) ([]*entity.Note, error) {
	query := `
		SELECT id, invoice_id, author_id, content, created_at
		FROM notes
		WHERE invoice_id = ?
		ORDER BY created_at, rowid
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, invoiceID)
	if err != nil {
		r.logger.Error("Failed to list notes", zap.String("invoice_id", invoiceID), zap.Error(err))
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	var notes []*entity.Note
	for rows.Next() {
		var n entity.Note
		if err := rows.Scan(&n.ID, &n.InvoiceID, &n.AuthorID, &n.Content, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, &n)
	}
	return notes, rows.Err()
}

// Verify interface compliance
var _ port.NoteRepository = (*NoteRepository)(nil)

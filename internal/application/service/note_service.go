package service

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/garyjia/invoice-workflow/internal/application/port"
	"github.com/garyjia/invoice-workflow/internal/domain/entity"
	"github.com/garyjia/invoice-workflow/internal/domain/event"
	domainwf "github.com/garyjia/invoice-workflow/internal/domain/workflow"
	"github.com/garyjia/invoice-workflow/pkg/utils"
)

// maxNoteLength bounds a single note
const maxNoteLength = 4000

// NoteService manages the append-only notes of invoices
type NoteService interface {
	AddNote(ctx context.Context, invoiceID, authorID, content string) (*entity.Note, error)
	List(ctx context.Context, invoiceID string) ([]*entity.Note, error)
}

type noteServiceImpl struct {
	invoiceRepo  port.InvoiceRepository
	noteRepo     port.NoteRepository
	timelineRepo port.TimelineRepository
	userRepo     port.UserRepository
	txManager    port.TransactionManager
	logger       Logger
	clock        func() time.Time
}

// NewNoteService creates a new NoteService
func NewNoteService(
	invoiceRepo port.InvoiceRepository,
	noteRepo port.NoteRepository,
	timelineRepo port.TimelineRepository,
	userRepo port.UserRepository,
	txManager port.TransactionManager,
	logger Logger,
) NoteService {
	return &noteServiceImpl{
		invoiceRepo:  invoiceRepo,
		noteRepo:     noteRepo,
		timelineRepo: timelineRepo,
		userRepo:     userRepo,
		txManager:    txManager,
		logger:       logger,
		clock:        time.Now,
	}
}

// AddNote stores the note and its note_added event in one transaction
func (s *noteServiceImpl) AddNote(ctx context.Context, invoiceID, authorID, content string) (*entity.Note, error) {
	content = utils.SanitizeString(content)
	if content == "" {
		return nil, fmt.Errorf("%w: note content is empty", domainwf.ErrMissingRequiredField)
	}
	if utf8.RuneCountInString(content) > maxNoteLength {
		return nil, fmt.Errorf("%w: note exceeds %d characters", domainwf.ErrMissingRequiredField, maxNoteLength)
	}

	author, err := s.userRepo.GetByID(ctx, authorID)
	if err != nil {
		return nil, fmt.Errorf("get author: %w", err)
	}
	if author == nil || !author.Active {
		return nil, fmt.Errorf("%w: unknown or inactive author %q", domainwf.ErrForbidden, authorID)
	}

	note := &entity.Note{
		ID:        uuid.NewString(),
		InvoiceID: invoiceID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: s.clock().UTC(),
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		invoice, err := s.invoiceRepo.GetByID(txCtx, invoiceID)
		if err != nil {
			return fmt.Errorf("get invoice: %w", err)
		}
		if invoice == nil {
			return fmt.Errorf("%w: invoice %s", domainwf.ErrNotFound, invoiceID)
		}

		if err := s.noteRepo.Create(txCtx, note); err != nil {
			return fmt.Errorf("create note: %w", err)
		}

		added := event.NewEvent(event.TypeNoteAdded, invoiceID, authorID).
			At(note.CreatedAt).
			WithPayload(event.PayloadNoteID, note.ID)
		if err := s.timelineRepo.Append(txCtx, added); err != nil {
			return fmt.Errorf("append timeline: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to add note", "error", err, "invoice_id", invoiceID)
		return nil, err
	}

	s.logger.Info("Note added", "invoice_id", invoiceID, "note_id", note.ID, "author", authorID)
	return note, nil
}

// List returns the notes of an invoice oldest first
func (s *noteServiceImpl) List(ctx context.Context, invoiceID string) ([]*entity.Note, error) {
	if err := ensureInvoice(ctx, s.invoiceRepo, invoiceID); err != nil {
		return nil, err
	}
	notes, err := s.noteRepo.ListByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return notes, nil
}

func ensureInvoice(ctx context.Context, repo port.InvoiceRepository, invoiceID string) error {
	invoice, err := repo.GetByID(ctx, invoiceID)
	if err != nil {
		return fmt.Errorf("get invoice: %w", err)
	}
	if invoice == nil {
		return fmt.Errorf("%w: invoice %s", domainwf.ErrNotFound, invoiceID)
	}
	return nil
}

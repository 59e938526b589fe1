package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/invoice-workflow/internal/application/port"
	"github.com/garyjia/invoice-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/invoice-workflow/internal/domain/workflow"
	"github.com/garyjia/invoice-workflow/pkg/utils"
)

// ExtractionService stores the fields read from invoice documents
type ExtractionService interface {
	// ExtractFromFile runs the field extractor on a stored document and saves the result
	ExtractFromFile(ctx context.Context, invoiceID, filePath string) (*entity.ExtractedFields, error)

	// Save stores fields written back by the extraction collaborator (the system
	// identity) or an admin. Only an admin can clear an existing review flag.
	Save(ctx context.Context, actorID string, fields *entity.ExtractedFields) (*entity.ExtractedFields, error)

	Get(ctx context.Context, invoiceID string) (*entity.ExtractedFields, error)
}

type extractionServiceImpl struct {
	invoiceRepo   port.InvoiceRepository
	extractedRepo port.ExtractedFieldsRepository
	userRepo      port.UserRepository
	extractor     port.FieldExtractor
	threshold     float64
	logger        Logger
	clock         func() time.Time
}

// NewExtractionService creates a new ExtractionService. Results below the
// confidence threshold, or with an invalid IBAN, are flagged for manager review.
// extractor may be nil when only write-back is used.
func NewExtractionService(
	invoiceRepo port.InvoiceRepository,
	extractedRepo port.ExtractedFieldsRepository,
	userRepo port.UserRepository,
	extractor port.FieldExtractor,
	threshold float64,
	logger Logger,
) ExtractionService {
	return &extractionServiceImpl{
		invoiceRepo:   invoiceRepo,
		extractedRepo: extractedRepo,
		userRepo:      userRepo,
		extractor:     extractor,
		threshold:     threshold,
		logger:        logger,
		clock:         time.Now,
	}
}

func (s *extractionServiceImpl) ExtractFromFile(ctx context.Context, invoiceID, filePath string) (*entity.ExtractedFields, error) {
	if s.extractor == nil {
		return nil, fmt.Errorf("field extraction is not configured")
	}
	if err := ensureInvoice(ctx, s.invoiceRepo, invoiceID); err != nil {
		return nil, err
	}

	fields, err := s.extractor.Extract(ctx, invoiceID, filePath)
	if err != nil {
		s.logger.Error("Field extraction failed", "error", err, "invoice_id", invoiceID, "file", filePath)
		return nil, fmt.Errorf("extract fields: %w", err)
	}
	fields.InvoiceID = invoiceID

	return s.Save(ctx, domainwf.SystemActorID, fields)
}

func (s *extractionServiceImpl) Save(ctx context.Context, actorID string, fields *entity.ExtractedFields) (*entity.ExtractedFields, error) {
	isAdmin, err := s.authorize(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if fields.Confidence < 0 || fields.Confidence > 1 {
		return nil, fmt.Errorf("%w: confidence must be between 0 and 1", domainwf.ErrMissingRequiredField)
	}
	if err := ensureInvoice(ctx, s.invoiceRepo, fields.InvoiceID); err != nil {
		return nil, err
	}

	existing, err := s.extractedRepo.GetByInvoiceID(ctx, fields.InvoiceID)
	if err != nil {
		return nil, fmt.Errorf("get extracted fields: %w", err)
	}
	if existing != nil && existing.NeedsReview && !fields.NeedsReview && !isAdmin {
		s.logger.Warn("Keeping review flag on extracted fields",
			"invoice_id", fields.InvoiceID,
			"actor", actorID,
		)
		fields.NeedsReview = true
	}

	if fields.Confidence < s.threshold {
		fields.NeedsReview = true
	}
	if fields.IBAN != "" && !utils.ValidIBAN(fields.IBAN) {
		fields.NeedsReview = true
	}
	if fields.ExtractedAt.IsZero() {
		fields.ExtractedAt = s.clock().UTC()
	}

	if err := s.extractedRepo.Upsert(ctx, fields); err != nil {
		return nil, fmt.Errorf("save extracted fields: %w", err)
	}

	s.logger.Info("Extracted fields saved",
		"invoice_id", fields.InvoiceID,
		"confidence", fields.Confidence,
		"needs_review", fields.NeedsReview,
	)
	return fields, nil
}

// authorize reports whether the actor is an admin. The system identity may
// write without being one; everyone else is denied.
func (s *extractionServiceImpl) authorize(ctx context.Context, actorID string) (bool, error) {
	if actorID == domainwf.SystemActorID {
		return false, nil
	}

	actor, err := s.userRepo.GetByID(ctx, actorID)
	if err != nil {
		return false, fmt.Errorf("get actor: %w", err)
	}
	if actor == nil || !actor.Active || actor.Role != domainwf.RoleAdmin {
		return false, domainwf.NewTransitionError(domainwf.ReasonForbiddenRole,
			"only the extraction service or an admin can write extracted fields")
	}
	return true, nil
}

func (s *extractionServiceImpl) Get(ctx context.Context, invoiceID string) (*entity.ExtractedFields, error) {
	fields, err := s.extractedRepo.GetByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("get extracted fields: %w", err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: extracted fields of invoice %s", domainwf.ErrNotFound, invoiceID)
	}
	return fields, nil
}

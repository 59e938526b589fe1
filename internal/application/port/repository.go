package port

import (
	"context"
	"time"

	"github.com/garyjia/invoice-workflow/internal/domain/entity"
	"github.com/garyjia/invoice-workflow/internal/domain/event"
	"github.com/garyjia/invoice-workflow/internal/domain/workflow"
)

// InvoiceRepository defines persistence operations for Invoice.
// Get methods return nil, nil when the row does not exist.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *entity.Invoice) error
	GetByID(ctx context.Context, id string) (*entity.Invoice, error)
	UpdateDetails(ctx context.Context, id string, details entity.InvoiceDetails, updatedAt time.Time) error
}

// WorkflowRepository is the status ledger
type WorkflowRepository interface {
	Create(ctx context.Context, wf *entity.Workflow) error
	GetByInvoiceID(ctx context.Context, invoiceID string) (*entity.Workflow, error)

	// CompareAndSwap writes next only if the stored row still has the expected
	// version and status, and bumps the version. Returns workflow.ErrConflict otherwise.
	CompareAndSwap(ctx context.Context, next *entity.Workflow, expectedVersion int64, expectedStatus workflow.Status) error

	// ListStaleInStatus returns rows that entered the status before the cutoff
	ListStaleInStatus(ctx context.Context, status workflow.Status, before time.Time) ([]*entity.Workflow, error)
}

// ExtractedFieldsRepository stores the output of the extraction service
type ExtractedFieldsRepository interface {
	Upsert(ctx context.Context, fields *entity.ExtractedFields) error
	GetByInvoiceID(ctx context.Context, invoiceID string) (*entity.ExtractedFields, error)
}

// TimelineRepository is the append-only audit log
type TimelineRepository interface {
	Append(ctx context.Context, evt *event.Event) error
	ListByInvoiceID(ctx context.Context, invoiceID string) ([]*event.Event, error)
}

// NoteRepository is the append-only notes store
type NoteRepository interface {
	Create(ctx context.Context, note *entity.Note) error
	ListByInvoiceID(ctx context.Context, invoiceID string) ([]*entity.Note, error)
}

// DelegationRepository defines persistence operations for Delegation
type DelegationRepository interface {
	Create(ctx context.Context, d *entity.Delegation) error
	ListByDelegator(ctx context.Context, delegatorUserID string) ([]*entity.Delegation, error)
}

// UserRepository is the user directory
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	ListByRole(ctx context.Context, role workflow.Role) ([]*entity.User, error)
	ListOperationsRoom(ctx context.Context) ([]*entity.User, error)
}

// EffectDispatchRepository is the idempotency ledger of notifications
type EffectDispatchRepository interface {
	// Claim inserts the dispatch or re-opens a failed one. It returns false when
	// the key is already pending or sent.
	Claim(ctx context.Context, d *entity.EffectDispatch) (bool, error)
	MarkSent(ctx context.Context, key string, at time.Time) error
	MarkFailed(ctx context.Context, key string, reason string) error
	ListByInvoiceID(ctx context.Context, invoiceID string) ([]*entity.EffectDispatch, error)
}

// BookingFormRepository stores BookingFormDispatchRecord rows
type BookingFormRepository interface {
	// Reserve creates the record in the sending state, or re-opens a failed one.
	// It returns false when a non-failed record already exists.
	Reserve(ctx context.Context, invoiceID, effectKey string, at time.Time) (bool, error)
	Get(ctx context.Context, invoiceID, effectKey string) (*entity.BookingFormDispatchRecord, error)
	Update(ctx context.Context, record *entity.BookingFormDispatchRecord) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	// WithTransaction runs fn inside a transaction carried by the context.
	// Nested calls join the outer transaction.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

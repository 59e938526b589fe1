package workflow

import (
	"context"

	"github.com/garyjia/invoice-workflow/internal/domain/entity"
	"github.com/garyjia/invoice-workflow/internal/domain/event"
	domainwf "github.com/garyjia/invoice-workflow/internal/domain/workflow"
)

// WorkflowEngine is the only writer of the status ledger
type WorkflowEngine interface {
	// Create stores a new invoice in submitted and advances it as the system
	// actor when its family allows that.
	Create(ctx context.Context, req CreateRequest) (*InvoiceState, error)

	// Transition moves an invoice to the target status if the guard allows it
	Transition(ctx context.Context, req TransitionRequest) (*entity.Workflow, error)

	// EditInvoice applies a data edit and resubmits rejected invoices
	EditInvoice(ctx context.Context, req EditRequest) (*EditResult, error)

	// BulkTransition runs independent transitions and reports each outcome
	BulkTransition(ctx context.Context, req BulkRequest) []BulkItemResult

	// CurrentState returns the invoice and its ledger row
	CurrentState(ctx context.Context, invoiceID string) (*InvoiceState, error)
}

// CreateRequest describes a newly uploaded invoice
type CreateRequest struct {
	Family        domainwf.Family
	SubmitterID   string
	ManagerUserID string
	Details       entity.InvoiceDetails
}

// TransitionRequest asks for a single status change
type TransitionRequest struct {
	InvoiceID string
	ActorID   string
	Target    domainwf.Status
	Fields    domainwf.TransitionFields
}

// EditRequest carries a data edit of an invoice
type EditRequest struct {
	InvoiceID string
	ActorID   string
	Changes   entity.InvoiceDetailsPatch
}

// EditResult reports what an edit did
type EditResult struct {
	Invoice     *entity.Invoice  `json:"invoice"`
	Workflow    *entity.Workflow `json:"workflow"`
	Changes     event.Changes    `json:"changes"`
	Resubmitted bool             `json:"resubmitted"`

	// ResubmitError is set when the edit committed but the automatic
	// resubmission of a rejected invoice did not
	ResubmitError  string              `json:"resubmit_error,omitempty"`
	ResubmitReason domainwf.DenyReason `json:"resubmit_reason,omitempty"`
}

// BulkRequest applies the same transition to many invoices
type BulkRequest struct {
	InvoiceIDs []string
	ActorID    string
	Target     domainwf.Status
	Fields     domainwf.TransitionFields
}

// BulkItemResult is the outcome of one invoice of a bulk request
type BulkItemResult struct {
	InvoiceID string
	Workflow  *entity.Workflow
	Err       error
}

// InvoiceState pairs an invoice with its ledger row
type InvoiceState struct {
	Invoice  *entity.Invoice  `json:"invoice"`
	Workflow *entity.Workflow `json:"workflow"`
}

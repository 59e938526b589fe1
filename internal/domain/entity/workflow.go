package entity

import (
	"time"

	"github.com/garyjia/invoice-workflow/internal/domain/workflow"
)

// Workflow is the ledger row of an invoice; only the workflow engine writes it
type Workflow struct {
	InvoiceID                   string          `json:"invoice_id"`
	Status                      workflow.Status `json:"status"`
	ManagerUserID               string          `json:"manager_user_id,omitempty"`
	RejectionReason             string          `json:"rejection_reason,omitempty"`
	PaidDate                    *time.Time      `json:"paid_date,omitempty"`
	PaymentReference            string          `json:"payment_reference,omitempty"`
	ManagerConfirmedBankDetails bool            `json:"manager_confirmed_bank_details"`
	Version                     int64           `json:"version"`
	StatusChangedAt             time.Time       `json:"status_changed_at"`
	UpdatedAt                   time.Time       `json:"updated_at"`
}

// Next returns the row after moving to the target status with the given fields.
// The version is left untouched; the ledger bumps it on compare-and-swap.
func (w Workflow) Next(to workflow.Status, fields workflow.TransitionFields, now time.Time) Workflow {
	next := w
	next.Status = to
	next.StatusChangedAt = now
	next.UpdatedAt = now

	if fields.ManagerUserID != "" && to == workflow.StatusPendingManager {
		next.ManagerUserID = fields.ManagerUserID
	}

	next.RejectionReason = ""
	if to == workflow.StatusRejected {
		next.RejectionReason = fields.RejectionReason
	}

	if to == workflow.StatusApprovedByManager {
		next.ManagerConfirmedBankDetails = fields.ManagerConfirmedBankDetails
	}

	if to == workflow.StatusPaid {
		paid := fields.PaidDate
		next.PaidDate = &paid
		next.PaymentReference = fields.PaymentReference
	} else if to != workflow.StatusArchived {
		next.PaidDate = nil
		next.PaymentReference = ""
	}

	return next
}

package entity

import "time"

// DispatchStatus is the delivery state of an idempotent side effect
type DispatchStatus string

const (
	DispatchPending DispatchStatus = "pending"
	DispatchSending DispatchStatus = "sending"
	DispatchSent    DispatchStatus = "sent"
	DispatchFailed  DispatchStatus = "failed"
)

// EffectDispatch records one notification keyed by its idempotency key
type EffectDispatch struct {
	IdempotencyKey string         `json:"idempotency_key"`
	InvoiceID      string         `json:"invoice_id"`
	EffectKey      string         `json:"effect_key"`
	Template       string         `json:"template"`
	Status         DispatchStatus `json:"status"`
	Attempts       int            `json:"attempts"`
	LastError      string         `json:"last_error,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	SentAt         *time.Time     `json:"sent_at,omitempty"`
}

// BookingFormEffectKey is the effect key of the contractor booking form
const BookingFormEffectKey = "booking_form"

// BookingFormDispatchRecord is written before a booking form is sent.
// A record that is not failed makes further triggers a no-op.
type BookingFormDispatchRecord struct {
	InvoiceID        string         `json:"invoice_id"`
	EffectKey        string         `json:"effect_key"`
	Status           DispatchStatus `json:"status"`
	FilePath         string         `json:"file_path,omitempty"`
	OperationsSentAt *time.Time     `json:"operations_sent_at,omitempty"`
	ContractorSentAt *time.Time     `json:"contractor_sent_at,omitempty"`
	Attempts         int            `json:"attempts"`
	LastError        string         `json:"last_error,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// Retryable reports whether a manual trigger may send the form again
func (r *BookingFormDispatchRecord) Retryable() bool {
	return r.Status == DispatchFailed
}

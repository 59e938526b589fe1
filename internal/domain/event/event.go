package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/invoice-workflow/internal/domain/workflow"
)

// Payload keys shared by writers and readers of the timeline
const (
	PayloadRejectionReason  = "rejection_reason"
	PayloadPaymentReference = "payment_reference"
	PayloadPaidDate         = "paid_date"
	PayloadManagerUserID    = "manager_user_id"
	PayloadChanges          = "changes"
	PayloadNoteID           = "note_id"
	PayloadFilePath         = "file_path"
	PayloadFamily           = "family"
)

// Event is one immutable entry of an invoice's timeline
type Event struct {
	ID         string                 `json:"id"`
	Seq        int64                  `json:"seq"`
	Type       Type                   `json:"event_type"`
	InvoiceID  string                 `json:"invoice_id"`
	FromStatus workflow.Status        `json:"from_status,omitempty"`
	ToStatus   workflow.Status        `json:"to_status,omitempty"`
	ActorID    string                 `json:"actor_id"`
	Payload    map[string]interface{} `json:"payload"`
	Timestamp  time.Time              `json:"created_at"`
}

// NewEvent creates a timeline event with a fresh ID and timestamp
func NewEvent(eventType Type, invoiceID, actorID string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		InvoiceID: invoiceID,
		ActorID:   actorID,
		Payload:   map[string]interface{}{},
		Timestamp: time.Now().UTC(),
	}
}

// NewStatusChange creates a status_change event for a ledger transition
func NewStatusChange(invoiceID, actorID string, from, to workflow.Status) *Event {
	e := NewEvent(TypeStatusChange, invoiceID, actorID)
	e.FromStatus = from
	e.ToStatus = to
	return e
}

// At returns a copy of the event stamped with the given time
func (e *Event) At(ts time.Time) *Event {
	c := e.clone()
	c.Timestamp = ts.UTC()
	return c
}

// WithPayload returns a new Event with an added payload key-value pair
func (e *Event) WithPayload(key string, value interface{}) *Event {
	c := e.clone()
	c.Payload[key] = value
	return c
}

func (e *Event) clone() *Event {
	payload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		payload[k] = v
	}
	c := *e
	c.Payload = payload
	return &c
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadChanges retrieves the field diff of an invoice_updated event
func (e *Event) GetPayloadChanges() Changes {
	switch v := e.Payload[PayloadChanges].(type) {
	case Changes:
		return v
	case map[string]interface{}:
		out := make(Changes, len(v))
		for field, raw := range v {
			if m, ok := raw.(map[string]interface{}); ok {
				out[field] = FieldChange{From: m["from"], To: m["to"]}
			}
		}
		return out
	}
	return nil
}

package event

// Type identifies the kind of timeline event
type Type string

const (
	TypeInvoiceCreated  Type = "invoice_created"
	TypeStatusChange    Type = "status_change"
	TypeInvoiceUpdated  Type = "invoice_updated"
	TypeNoteAdded       Type = "note_added"
	TypeBookingFormSent Type = "booking_form_sent"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeInvoiceCreated,
		TypeStatusChange,
		TypeInvoiceUpdated,
		TypeNoteAdded,
		TypeBookingFormSent:
		return true
	default:
		return false
	}
}

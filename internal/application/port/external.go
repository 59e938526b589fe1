package port

import (
	"context"
	"time"

	"github.com/garyjia/invoice-workflow/internal/domain/entity"
)

// Attachment is a file sent alongside a message
type Attachment struct {
	Name    string
	Path    string
	Content []byte
}

// Message is an outbound email
type Message struct {
	To          []string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Mailer delivers notification emails
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// BookingForm is the data rendered into a contractor booking form
type BookingForm struct {
	Invoice     *entity.Invoice
	Workflow    *entity.Workflow
	Submitter   *entity.User
	Approver    *entity.User
	GeneratedAt time.Time
}

// BookingFormRenderer renders a booking form document
type BookingFormRenderer interface {
	// Render returns the document bytes and a suggested file name
	Render(ctx context.Context, form BookingForm) ([]byte, string, error)
}

// FieldExtractor reads beneficiary and bank fields from an invoice document
type FieldExtractor interface {
	Extract(ctx context.Context, invoiceID, filePath string) (*entity.ExtractedFields, error)
}

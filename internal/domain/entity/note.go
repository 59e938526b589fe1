package entity

import "time"

// Note is an append-only free-text comment on an invoice
type Note struct {
	ID        string    `json:"id"`
	InvoiceID string    `json:"invoice_id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

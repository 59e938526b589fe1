package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/invoice-workflow/internal/domain/workflow"
)

// Invoice is an uploaded invoice of one family
type Invoice struct {
	ID          string          `json:"id"`
	Family      workflow.Family `json:"family"`
	SubmitterID string          `json:"submitter_id"`
	Details     InvoiceDetails  `json:"details"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// InvoiceDetails is the editable business data of an invoice
type InvoiceDetails struct {
	BeneficiaryName string          `json:"beneficiary_name"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Description     string          `json:"description"`
	InvoiceNumber   string          `json:"invoice_number"`
	InvoiceDate     string          `json:"invoice_date"`
	DepartmentID    string          `json:"department_id"`
	ProgramID       string          `json:"program_id"`
	IBAN            string          `json:"iban"`
	BankName        string          `json:"bank_name"`
}

// InvoiceDetailsPatch holds the fields a caller wants to change; nil means unchanged
type InvoiceDetailsPatch struct {
	BeneficiaryName *string          `json:"beneficiary_name,omitempty"`
	Amount          *decimal.Decimal `json:"amount,omitempty"`
	Currency        *string          `json:"currency,omitempty"`
	Description     *string          `json:"description,omitempty"`
	InvoiceNumber   *string          `json:"invoice_number,omitempty"`
	InvoiceDate     *string          `json:"invoice_date,omitempty"`
	DepartmentID    *string          `json:"department_id,omitempty"`
	ProgramID       *string          `json:"program_id,omitempty"`
	IBAN            *string          `json:"iban,omitempty"`
	BankName        *string          `json:"bank_name,omitempty"`
}

// Apply returns a copy of d with the patch applied
func (p InvoiceDetailsPatch) Apply(d InvoiceDetails) InvoiceDetails {
	setString(&d.BeneficiaryName, p.BeneficiaryName)
	setString(&d.Currency, p.Currency)
	setString(&d.Description, p.Description)
	setString(&d.InvoiceNumber, p.InvoiceNumber)
	setString(&d.InvoiceDate, p.InvoiceDate)
	setString(&d.DepartmentID, p.DepartmentID)
	setString(&d.ProgramID, p.ProgramID)
	setString(&d.IBAN, p.IBAN)
	setString(&d.BankName, p.BankName)
	if p.Amount != nil {
		d.Amount = *p.Amount
	}
	return d
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// ExtractedFields are the values read from the invoice document by the extraction service
type ExtractedFields struct {
	InvoiceID       string          `json:"invoice_id"`
	BeneficiaryName string          `json:"beneficiary_name"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	IBAN            string          `json:"iban"`
	BankName        string          `json:"bank_name"`
	Confidence      float64         `json:"confidence"`
	NeedsReview     bool            `json:"needs_review"`
	ExtractedAt     time.Time       `json:"extracted_at"`
}

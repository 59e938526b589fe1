package document

import (
	"context"
	"fmt"
	"regexp"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-workflow/internal/application/port"
)

const sheetName = "Booking Form"

// cell layout of the booking form; labels in column A, values in column B
var layout = []struct {
	label string
	cell  string
	value func(port.BookingForm) any
}{
	{"Invoice ID", "B3", func(f port.BookingForm) any { return f.Invoice.ID }},
	{"Invoice number", "B4", func(f port.BookingForm) any { return f.Invoice.Details.InvoiceNumber }},
	{"Invoice date", "B5", func(f port.BookingForm) any { return f.Invoice.Details.InvoiceDate }},
	{"Contractor", "B6", func(f port.BookingForm) any { return userName(f, true) }},
	{"Beneficiary", "B7", func(f port.BookingForm) any { return f.Invoice.Details.BeneficiaryName }},
	{"Description", "B8", func(f port.BookingForm) any { return f.Invoice.Details.Description }},
	{"Department", "B9", func(f port.BookingForm) any { return f.Invoice.Details.DepartmentID }},
	{"Program", "B10", func(f port.BookingForm) any { return f.Invoice.Details.ProgramID }},
	{"Amount", "B11", func(f port.BookingForm) any { return f.Invoice.Details.Amount.StringFixed(2) }},
	{"Currency", "B12", func(f port.BookingForm) any { return f.Invoice.Details.Currency }},
	{"IBAN", "B13", func(f port.BookingForm) any { return f.Invoice.Details.IBAN }},
	{"Bank", "B14", func(f port.BookingForm) any { return f.Invoice.Details.BankName }},
	{"Approved by", "B15", func(f port.BookingForm) any { return userName(f, false) }},
	{"Generated at", "B16", func(f port.BookingForm) any { return f.GeneratedAt.UTC().Format("2006-01-02 15:04") }},
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// BookingFormRenderer renders contractor booking forms as Excel workbooks.
// With a template path the values are written into the template's first
// sheet; otherwise a plain workbook is generated.
type BookingFormRenderer struct {
	templatePath string
	logger       *zap.Logger
}

// NewBookingFormRenderer creates a new renderer
func NewBookingFormRenderer(templatePath string, logger *zap.Logger) *BookingFormRenderer {
	return &BookingFormRenderer{
		templatePath: templatePath,
		logger:       logger,
	}
}

// Render implements port.BookingFormRenderer
func (r *BookingFormRenderer) Render(ctx context.Context, form port.BookingForm) ([]byte, string, error) {
	if form.Invoice == nil {
		return nil, "", fmt.Errorf("booking form has no invoice")
	}

	f, sheet, err := r.open()
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	for _, field := range layout {
		if r.templatePath == "" {
			r.setCell(f, sheet, "A"+field.cell[1:], field.label)
		}
		r.setCell(f, sheet, field.cell, field.value(form))
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("failed to write workbook: %w", err)
	}

	name := "booking_form_" + unsafeFileChars.ReplaceAllString(form.Invoice.ID, "_") + ".xlsx"
	r.logger.Info("Booking form rendered",
		zap.String("invoice_id", form.Invoice.ID),
		zap.Int("size", buf.Len()))
	return buf.Bytes(), name, nil
}

func (r *BookingFormRenderer) open() (*excelize.File, string, error) {
	if r.templatePath != "" {
		f, err := excelize.OpenFile(r.templatePath)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open template: %w", err)
		}
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			f.Close()
			return nil, "", fmt.Errorf("template has no sheets")
		}
		return f, sheets[0], nil
	}

	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		f.Close()
		return nil, "", fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.SetCellValue(sheetName, "A1", "Contractor Booking Form"); err != nil {
		f.Close()
		return nil, "", fmt.Errorf("failed to write title: %w", err)
	}
	if err := f.SetColWidth(sheetName, "A", "A", 18); err != nil {
		r.logger.Warn("Failed to set column width", zap.Error(err))
	}
	if err := f.SetColWidth(sheetName, "B", "B", 40); err != nil {
		r.logger.Warn("Failed to set column width", zap.Error(err))
	}
	return f, sheetName, nil
}

// setCell sets a cell value in the workbook
func (r *BookingFormRenderer) setCell(f *excelize.File, sheet, cell string, value any) {
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		r.logger.Warn("Failed to set cell value",
			zap.String("sheet", sheet),
			zap.String("cell", cell),
			zap.Error(err))
	}
}

func userName(f port.BookingForm, submitter bool) string {
	u := f.Approver
	if submitter {
		u = f.Submitter
	}
	if u == nil {
		return ""
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Email
}

var _ port.BookingFormRenderer = (*BookingFormRenderer)(nil)

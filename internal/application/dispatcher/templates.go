package dispatcher

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/garyjia/invoice-workflow/internal/application/port"
	"github.com/garyjia/invoice-workflow/internal/domain/entity"
)

type messageTemplate struct {
	subject *template.Template
	body    *template.Template
}

// messageData is what every template can reference
type messageData struct {
	Invoice  *entity.Invoice
	Workflow *entity.Workflow
	PaidDate string
	Days     int
}

func mustTemplate(name, subject, body string) messageTemplate {
	return messageTemplate{
		subject: template.Must(template.New(name + "_subject").Parse(subject)),
		body:    template.Must(template.New(name + "_body").Parse(body)),
	}
}

var templates = map[string]messageTemplate{
	TemplateApprovalRequested: mustTemplate(TemplateApprovalRequested,
		"Invoice awaiting your approval: {{.Invoice.Details.BeneficiaryName}}",
		"A {{.Invoice.Family}} invoice from {{.Invoice.Details.BeneficiaryName}} for {{.Invoice.Details.Amount}} {{.Invoice.Details.Currency}} is waiting for your approval.\nInvoice: {{.Invoice.ID}}"),
	TemplateResubmitted: mustTemplate(TemplateResubmitted,
		"Invoice resubmitted: {{.Invoice.Details.BeneficiaryName}}",
		"The {{.Invoice.Family}} invoice from {{.Invoice.Details.BeneficiaryName}} was corrected and resubmitted for your approval.\nInvoice: {{.Invoice.ID}}"),
	TemplateApprovedByManager: mustTemplate(TemplateApprovedByManager,
		"Invoice approved by manager: {{.Invoice.Details.BeneficiaryName}}",
		"The {{.Invoice.Family}} invoice from {{.Invoice.Details.BeneficiaryName}} for {{.Invoice.Details.Amount}} {{.Invoice.Details.Currency}} was approved by the manager and is ready for admin review.\nInvoice: {{.Invoice.ID}}"),
	TemplateRejected: mustTemplate(TemplateRejected,
		"Invoice rejected: {{.Invoice.Details.BeneficiaryName}}",
		"Your invoice {{.Invoice.Details.InvoiceNumber}} was rejected.\nReason: {{.Workflow.RejectionReason}}\nEdit the invoice to resubmit it.\nInvoice: {{.Invoice.ID}}"),
	TemplateReadyForPayment: mustTemplate(TemplateReadyForPayment,
		"Invoice ready for payment: {{.Invoice.Details.BeneficiaryName}}",
		"Pay {{.Invoice.Details.Amount}} {{.Invoice.Details.Currency}} to {{.Invoice.Details.BeneficiaryName}} ({{.Invoice.Details.BankName}}, {{.Invoice.Details.IBAN}}).\nInvoice: {{.Invoice.ID}}"),
	TemplatePaid: mustTemplate(TemplatePaid,
		"Invoice paid: {{.Invoice.Details.InvoiceNumber}}",
		"Your invoice {{.Invoice.Details.InvoiceNumber}} for {{.Invoice.Details.Amount}} {{.Invoice.Details.Currency}} was paid on {{.PaidDate}}.\nPayment reference: {{.Workflow.PaymentReference}}"),
	TemplateSLAReminder: mustTemplate(TemplateSLAReminder,
		"Reminder: invoice waiting {{.Days}} days for approval",
		"The {{.Invoice.Family}} invoice from {{.Invoice.Details.BeneficiaryName}} has been waiting for your approval for {{.Days}} days.\nInvoice: {{.Invoice.ID}}"),
	TemplateBookingFormOperations: mustTemplate(TemplateBookingFormOperations,
		"Booking form: {{.Invoice.Details.BeneficiaryName}}",
		"The booking form for the contractor invoice from {{.Invoice.Details.BeneficiaryName}} is attached.\nInvoice: {{.Invoice.ID}}"),
	TemplateBookingFormContractor: mustTemplate(TemplateBookingFormContractor,
		"Your booking form",
		"Your invoice {{.Invoice.Details.InvoiceNumber}} was approved. Your booking form is attached."),
}

func renderMessage(name string, data messageData, to []string) (port.Message, error) {
	tpl, ok := templates[name]
	if !ok {
		return port.Message{}, fmt.Errorf("unknown template %q", name)
	}
	if data.Workflow != nil && data.Workflow.PaidDate != nil {
		data.PaidDate = data.Workflow.PaidDate.Format(entity.DateLayout)
	}

	var subject, body bytes.Buffer
	if err := tpl.subject.Execute(&subject, data); err != nil {
		return port.Message{}, fmt.Errorf("render subject %s: %w", name, err)
	}
	if err := tpl.body.Execute(&body, data); err != nil {
		return port.Message{}, fmt.Errorf("render body %s: %w", name, err)
	}
	return port.Message{To: to, Subject: subject.String(), Body: body.String()}, nil
}

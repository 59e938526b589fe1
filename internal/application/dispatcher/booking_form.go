package dispatcher

import (
	"context"
	"fmt"
	"path"

	"github.com/garyjia/invoice-workflow/internal/application/port"
	"github.com/garyjia/invoice-workflow/internal/domain/entity"
	"github.com/garyjia/invoice-workflow/internal/domain/event"
	domainwf "github.com/garyjia/invoice-workflow/internal/domain/workflow"
)

// BookingFormResult is the outcome of a booking form dispatch
type BookingFormResult struct {
	Skipped  bool                  `json:"skipped"`
	Status   entity.DispatchStatus `json:"status"`
	FilePath string                `json:"file_path,omitempty"`
}

// approvedStatuses are the statuses a booking form can be sent from
var approvedStatuses = map[domainwf.Status]bool{
	domainwf.StatusApprovedByManager: true,
	domainwf.StatusPendingAdmin:      true,
	domainwf.StatusReadyForPayment:   true,
	domainwf.StatusPaid:              true,
	domainwf.StatusArchived:          true,
}

// TriggerBookingForm is the manual retry affordance for booking forms
func (d *effectDispatcher) TriggerBookingForm(ctx context.Context, invoiceID, actorID string) (*BookingFormResult, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}
	if err := d.authorizeResend(ctx, actorID, true); err != nil {
		return nil, err
	}

	invoice, err := d.deps.Invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if invoice == nil {
		return nil, fmt.Errorf("%w: invoice %s", domainwf.ErrNotFound, invoiceID)
	}
	if invoice.Family != domainwf.FamilyContractor {
		return nil, domainwf.NewTransitionError(domainwf.ReasonInvalidTransition, "booking forms exist only for contractor invoices")
	}

	wf, err := d.deps.Workflows.GetByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("get workflow: %w", err)
	}
	if wf == nil {
		return nil, fmt.Errorf("%w: workflow of invoice %s", domainwf.ErrNotFound, invoiceID)
	}
	if !approvedStatuses[wf.Status] {
		return nil, domainwf.NewTransitionError(domainwf.ReasonMissingPrecondition, "the invoice has not been approved by a manager")
	}

	out, err := d.sendBookingForm(ctx, invoice, wf, actorID)
	if out != nil {
		d.recorder.SideEffect(entity.BookingFormEffectKey, string(out.Status))
	}
	return out, err
}

// sendBookingForm reserves the dispatch record before rendering or sending anything
func (d *effectDispatcher) sendBookingForm(ctx context.Context, invoice *entity.Invoice, wf *entity.Workflow, actorID string) (*BookingFormResult, error) {
	key := entity.BookingFormEffectKey
	now := d.now()

	reserved, err := d.deps.BookingForms.Reserve(ctx, invoice.ID, key, now)
	if err != nil {
		return nil, fmt.Errorf("%w: reserve booking form: %v", domainwf.ErrSideEffectFailure, err)
	}

	record, err := d.deps.BookingForms.Get(ctx, invoice.ID, key)
	if err != nil {
		return nil, fmt.Errorf("%w: get booking form record: %v", domainwf.ErrSideEffectFailure, err)
	}
	if record == nil {
		return nil, fmt.Errorf("%w: booking form record missing after reserve", domainwf.ErrSideEffectFailure)
	}

	if !reserved {
		d.logger.Info("Booking form already dispatched, skipping",
			"invoice_id", invoice.ID,
			"status", record.Status,
		)
		return &BookingFormResult{Skipped: true, Status: record.Status, FilePath: record.FilePath}, nil
	}

	if err := d.deliverBookingForm(ctx, invoice, wf, record); err != nil {
		record.Status = entity.DispatchFailed
		record.LastError = err.Error()
		record.UpdatedAt = d.now()
		if updErr := d.deps.BookingForms.Update(ctx, record); updErr != nil {
			d.logger.Error("Failed to record booking form failure", "invoice_id", invoice.ID, "error", updErr)
		}
		d.logger.Error("Booking form dispatch failed",
			"invoice_id", invoice.ID,
			"attempts", record.Attempts,
			"error", err,
		)
		return &BookingFormResult{Status: entity.DispatchFailed, FilePath: record.FilePath},
			fmt.Errorf("%w: booking form: %v", domainwf.ErrSideEffectFailure, err)
	}

	record.Status = entity.DispatchSent
	record.LastError = ""
	record.UpdatedAt = d.now()
	if err := d.deps.BookingForms.Update(ctx, record); err != nil {
		d.logger.Error("Failed to record booking form success", "invoice_id", invoice.ID, "error", err)
	}

	if actorID == "" {
		actorID = domainwf.SystemActorID
	}
	sent := event.NewEvent(event.TypeBookingFormSent, invoice.ID, actorID).
		At(d.now()).
		WithPayload(event.PayloadFilePath, record.FilePath)
	if err := d.deps.Timeline.Append(ctx, sent); err != nil {
		d.logger.Error("Failed to append booking form event", "invoice_id", invoice.ID, "error", err)
	}

	d.logger.Info("Booking form sent",
		"invoice_id", invoice.ID,
		"file_path", record.FilePath,
	)
	return &BookingFormResult{Status: entity.DispatchSent, FilePath: record.FilePath}, nil
}

// deliverBookingForm renders, stores and mails the form, skipping emails
// that a previous attempt already delivered.
func (d *effectDispatcher) deliverBookingForm(ctx context.Context, invoice *entity.Invoice, wf *entity.Workflow, record *entity.BookingFormDispatchRecord) error {
	submitter, err := d.deps.Users.GetByID(ctx, invoice.SubmitterID)
	if err != nil {
		return fmt.Errorf("get submitter: %w", err)
	}
	var approver *entity.User
	if wf.ManagerUserID != "" {
		if approver, err = d.deps.Users.GetByID(ctx, wf.ManagerUserID); err != nil {
			return fmt.Errorf("get manager: %w", err)
		}
	}

	content, name, err := d.deps.Renderer.Render(ctx, port.BookingForm{
		Invoice:     invoice,
		Workflow:    wf,
		Submitter:   submitter,
		Approver:    approver,
		GeneratedAt: d.now(),
	})
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	filePath := path.Join("booking_forms", invoice.ID, name)
	if err := d.deps.Storage.Save(ctx, filePath, content); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	record.FilePath = filePath

	attachment := port.Attachment{Name: name, Path: d.deps.Storage.GetFullPath(filePath), Content: content}
	data := messageData{Invoice: invoice, Workflow: wf}

	if record.OperationsSentAt == nil {
		to, err := d.resolveRecipients(ctx, invoice, wf, []RecipientRole{RecipientOperationsRoom})
		if err != nil {
			return err
		}
		if len(to) == 0 {
			return fmt.Errorf("no operations room recipients")
		}
		if err := d.sendWithAttachment(ctx, TemplateBookingFormOperations, data, to, attachment); err != nil {
			return fmt.Errorf("operations email: %w", err)
		}
		sentAt := d.now()
		record.OperationsSentAt = &sentAt
		if err := d.deps.BookingForms.Update(ctx, record); err != nil {
			return fmt.Errorf("record operations email: %w", err)
		}
	}

	if record.ContractorSentAt == nil {
		if submitter == nil || submitter.Email == "" {
			return fmt.Errorf("contractor has no email address")
		}
		if err := d.sendWithAttachment(ctx, TemplateBookingFormContractor, data, []string{submitter.Email}, attachment); err != nil {
			return fmt.Errorf("contractor email: %w", err)
		}
		sentAt := d.now()
		record.ContractorSentAt = &sentAt
		if err := d.deps.BookingForms.Update(ctx, record); err != nil {
			return fmt.Errorf("record contractor email: %w", err)
		}
	}

	return nil
}

func (d *effectDispatcher) sendWithAttachment(ctx context.Context, template string, data messageData, to []string, att port.Attachment) error {
	msg, err := renderMessage(template, data, to)
	if err != nil {
		return err
	}
	msg.Attachments = []port.Attachment{att}
	return d.deps.Mailer.Send(ctx, msg)
}

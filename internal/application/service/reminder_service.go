package service

import (
	"context"
	"fmt"
	"time"

	"github.com/garyjia/invoice-workflow/internal/application/dispatcher"
	"github.com/garyjia/invoice-workflow/internal/application/port"
	"github.com/garyjia/invoice-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/invoice-workflow/internal/domain/workflow"
)

// Notifier sends one idempotent notification
type Notifier interface {
	Notify(ctx context.Context, n dispatcher.Notification) dispatcher.EffectResult
}

// ReminderRun summarizes one pass of the SLA reminder job
type ReminderRun struct {
	Due     int `json:"due"`
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// ReminderService reminds approvers of invoices waiting too long for a decision
type ReminderService interface {
	SendDue(ctx context.Context) (*ReminderRun, error)
}

type reminderServiceImpl struct {
	invoiceRepo  port.InvoiceRepository
	workflowRepo port.WorkflowRepository
	notifier     Notifier
	slaDays      int
	logger       Logger
	clock        func() time.Time
}

// NewReminderService creates a new ReminderService
func NewReminderService(
	invoiceRepo port.InvoiceRepository,
	workflowRepo port.WorkflowRepository,
	notifier Notifier,
	slaDays int,
	logger Logger,
) ReminderService {
	if slaDays <= 0 {
		slaDays = 3
	}
	return &reminderServiceImpl{
		invoiceRepo:  invoiceRepo,
		workflowRepo: workflowRepo,
		notifier:     notifier,
		slaDays:      slaDays,
		logger:       logger,
		clock:        time.Now,
	}
}

// SendDue notifies the effective approver of every invoice that has been in
// pending_manager longer than the SLA. Reminders are keyed per invoice per day,
// so running the job twice on the same day sends nothing new.
func (s *reminderServiceImpl) SendDue(ctx context.Context) (*ReminderRun, error) {
	now := s.clock().UTC()
	cutoff := now.AddDate(0, 0, -s.slaDays)

	stale, err := s.workflowRepo.ListStaleInStatus(ctx, domainwf.StatusPendingManager, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list stale workflows: %w", err)
	}

	run := &ReminderRun{Due: len(stale)}
	effectKey := dispatcher.TemplateSLAReminder + ":" + now.Format(entity.DateLayout)

	for _, wf := range stale {
		if err := ctx.Err(); err != nil {
			return run, err
		}

		invoice, err := s.invoiceRepo.GetByID(ctx, wf.InvoiceID)
		if err != nil || invoice == nil {
			s.logger.Warn("Skipping reminder, invoice unreadable", "invoice_id", wf.InvoiceID, "error", err)
			run.Failed++
			continue
		}

		res := s.notifier.Notify(ctx, dispatcher.Notification{
			Invoice:    invoice,
			Workflow:   wf,
			Template:   dispatcher.TemplateSLAReminder,
			EffectKey:  effectKey,
			Recipients: []dispatcher.RecipientRole{dispatcher.RecipientManager},
			Days:       int(now.Sub(wf.StatusChangedAt).Hours() / 24),
		})

		switch res.Status {
		case dispatcher.ResultSent:
			run.Sent++
		case dispatcher.ResultSkipped:
			run.Skipped++
		default:
			run.Failed++
			s.logger.Error("SLA reminder failed", "invoice_id", wf.InvoiceID, "error", res.Err)
		}
	}

	s.logger.Info("SLA reminder run finished",
		"due", run.Due,
		"sent", run.Sent,
		"skipped", run.Skipped,
		"failed", run.Failed,
	)
	return run, nil
}

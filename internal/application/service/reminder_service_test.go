package service

import (
	"context"
	"testing"
	"time"

	"github.com/garyjia/invoice-workflow/internal/application/dispatcher"
	"github.com/garyjia/invoice-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/invoice-workflow/internal/domain/workflow"
)

func TestReminderService_SendDue(t *testing.T) {
	now := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	workflows := &mockWorkflowRepo{stale: []*entity.Workflow{
		{InvoiceID: "inv-1", Status: domainwf.StatusPendingManager, ManagerUserID: "M", StatusChangedAt: now.AddDate(0, 0, -5)},
		{InvoiceID: "gone", Status: domainwf.StatusPendingManager, ManagerUserID: "M", StatusChangedAt: now.AddDate(0, 0, -4)},
	}}
	notifier := &mockNotifier{keys: map[string]bool{}}

	svc := NewReminderService(testInvoices(), workflows, notifier, 3, &mockLogger{})
	svc.(*reminderServiceImpl).clock = func() time.Time { return now }

	run, err := svc.SendDue(context.Background())
	if err != nil {
		t.Fatalf("SendDue() error = %v", err)
	}
	if run.Due != 2 || run.Sent != 1 || run.Failed != 1 {
		t.Errorf("run = %+v", run)
	}
	if !workflows.gotCutoff.Equal(now.AddDate(0, 0, -3)) {
		t.Errorf("cutoff = %v", workflows.gotCutoff)
	}

	n := notifier.notices[0]
	if n.EffectKey != "sla_reminder:2024-06-10" || n.Days != 5 || n.Template != dispatcher.TemplateSLAReminder {
		t.Errorf("notification = %+v", n)
	}

	run, err = svc.SendDue(context.Background())
	if err != nil {
		t.Fatalf("second SendDue() error = %v", err)
	}
	if run.Sent != 0 || run.Skipped != 1 {
		t.Errorf("second run = %+v, want one skipped", run)
	}

	svc.(*reminderServiceImpl).clock = func() time.Time { return now.AddDate(0, 0, 1) }
	run, _ = svc.SendDue(context.Background())
	if run.Sent != 1 {
		t.Errorf("next day run = %+v, want one sent", run)
	}
}

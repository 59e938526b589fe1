package dispatcher

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/invoice-workflow/internal/domain/entity"
	"github.com/garyjia/invoice-workflow/internal/domain/event"
	domainwf "github.com/garyjia/invoice-workflow/internal/domain/workflow"
)

// RetryFailed re-sends failed notifications of an invoice using the effect of
// the transition that originally produced them.
func (d *effectDispatcher) RetryFailed(ctx context.Context, invoiceID, actorID string) ([]EffectResult, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}
	if err := d.authorizeResend(ctx, actorID, false); err != nil {
		return nil, err
	}

	invoice, err := d.deps.Invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if invoice == nil {
		return nil, fmt.Errorf("%w: invoice %s", domainwf.ErrNotFound, invoiceID)
	}
	wf, err := d.deps.Workflows.GetByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("get workflow: %w", err)
	}
	if wf == nil {
		return nil, fmt.Errorf("%w: workflow of invoice %s", domainwf.ErrNotFound, invoiceID)
	}

	dispatches, err := d.deps.Dispatches.ListByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list dispatches: %w", err)
	}
	events, err := d.deps.Timeline.ListByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list timeline: %w", err)
	}
	byID := make(map[string]*event.Event, len(events))
	for _, e := range events {
		byID[e.ID] = e
	}

	var results []EffectResult
	for _, rec := range dispatches {
		if rec.Status != entity.DispatchFailed {
			continue
		}

		n := Notification{
			Invoice:   invoice,
			Workflow:  wf,
			Template:  rec.Template,
			EffectKey: rec.EffectKey,
		}

		if evt := byID[eventIDOf(rec.EffectKey)]; evt != nil {
			for _, effect := range EffectsFor(d.rules, invoice.Family, evt.FromStatus, evt.ToStatus) {
				if effect.Template == rec.Template {
					n.Recipients = effect.Recipients
				}
			}
		}
		if rec.Template == TemplateSLAReminder {
			n.Recipients = []RecipientRole{RecipientManager}
		}
		if len(n.Recipients) == 0 {
			d.logger.Warn("Cannot retry notification, origin unknown", "key", rec.IdempotencyKey)
			continue
		}

		res := d.Notify(ctx, n)
		d.recorder.SideEffect(rec.Template, string(res.Status))
		results = append(results, res)
	}

	return results, nil
}

// eventIDOf extracts the timeline event id from "template:eventID"
func eventIDOf(effectKey string) string {
	if i := strings.LastIndex(effectKey, ":"); i >= 0 {
		return effectKey[i+1:]
	}
	return ""
}

package workflow

import (
	"context"
	"fmt"

	"github.com/garyjia/invoice-workflow/internal/domain/event"
	domainwf "github.com/garyjia/invoice-workflow/internal/domain/workflow"
)

// EditInvoice writes the edited details and an invoice_updated event in one
// transaction. A rejected invoice is then resubmitted through Transition; a
// failed resubmission is reported on the result since the edit has committed.
func (e *engineImpl) EditInvoice(ctx context.Context, req EditRequest) (*EditResult, error) {
	now := e.now()

	var result *EditResult
	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		state, err := e.loadState(txCtx, req.InvoiceID)
		if err != nil {
			return err
		}
		actor, err := e.loadActor(txCtx, req.ActorID)
		if err != nil {
			return err
		}

		if !actor.Active || (actor.ID != state.Invoice.SubmitterID && !actor.IsAdmin()) {
			return domainwf.NewTransitionError(domainwf.ReasonForbiddenRole, "only the submitter or an admin can edit this invoice")
		}
		if state.Workflow.Status.IsLocked() {
			return domainwf.NewTransitionError(domainwf.ReasonInvalidTransition, "a %s invoice can no longer be edited", state.Workflow.Status)
		}

		after := req.Changes.Apply(state.Invoice.Details)
		changes, err := event.Diff(state.Invoice.Details, after)
		if err != nil {
			return err
		}

		result = &EditResult{Invoice: state.Invoice, Workflow: state.Workflow, Changes: changes}
		if len(changes) == 0 {
			return nil
		}

		if err := e.repos.Invoices.UpdateDetails(txCtx, req.InvoiceID, after, now); err != nil {
			return fmt.Errorf("update invoice: %w", err)
		}

		updated := event.NewEvent(event.TypeInvoiceUpdated, req.InvoiceID, req.ActorID).
			At(now).
			WithPayload(event.PayloadChanges, changes)
		if err := e.repos.Timeline.Append(txCtx, updated); err != nil {
			return fmt.Errorf("append timeline: %w", err)
		}

		edited := *state.Invoice
		edited.Details = after
		edited.UpdatedAt = now
		result.Invoice = &edited
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(result.Changes) == 0 {
		return result, nil
	}

	e.logger.Info("Invoice edited",
		"invoice_id", req.InvoiceID,
		"actor", req.ActorID,
		"fields", result.Changes.Fields(),
	)

	if result.Workflow.Status != domainwf.StatusRejected {
		return result, nil
	}

	next, err := e.Transition(ctx, TransitionRequest{
		InvoiceID: req.InvoiceID,
		ActorID:   req.ActorID,
		Target:    domainwf.StatusPendingManager,
	})
	if err != nil {
		e.logger.Warn("Invoice edited but not resubmitted",
			"invoice_id", req.InvoiceID,
			"actor", req.ActorID,
			"error", err,
		)
		result.ResubmitError = err.Error()
		result.ResubmitReason, _ = domainwf.ReasonOf(err)
		return result, nil
	}

	result.Workflow = next
	result.Resubmitted = true
	return result, nil
}

package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/garyjia/invoice-workflow/internal/application/dispatcher"
	"github.com/garyjia/invoice-workflow/internal/application/port"
	"github.com/garyjia/invoice-workflow/internal/domain/entity"
	"github.com/garyjia/invoice-workflow/internal/domain/event"
	domainwf "github.com/garyjia/invoice-workflow/internal/domain/workflow"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ApproverResolver computes the effective approver of a manager
type ApproverResolver interface {
	EffectiveApprover(ctx context.Context, managerID string, on time.Time) (string, error)
}

// SideEffects receives committed status changes
type SideEffects interface {
	DispatchAsync(ctx context.Context, change *dispatcher.StatusChange)
}

// Recorder counts engine outcomes
type Recorder interface {
	TransitionCommitted(family, from, to string)
	TransitionDenied(reason string)
	TransitionConflict()
}

// Repositories groups the stores the engine reads and writes
type Repositories struct {
	Invoices  port.InvoiceRepository
	Workflows port.WorkflowRepository
	Extracted port.ExtractedFieldsRepository
	Timeline  port.TimelineRepository
	Users     port.UserRepository
}

type engineImpl struct {
	repos     Repositories
	resolver  ApproverResolver
	txManager port.TransactionManager
	effects   SideEffects
	recorder  Recorder
	logger    Logger
	clock     func() time.Time
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithSideEffects sets the dispatcher notified after each commit
func WithSideEffects(s SideEffects) EngineOption {
	return func(e *engineImpl) {
		e.effects = s
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(r Recorder) EngineOption {
	return func(e *engineImpl) {
		e.recorder = r
	}
}

// WithLogger sets the engine logger
func WithLogger(l Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = l
	}
}

// WithClock overrides the time source
func WithClock(clock func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.clock = clock
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	repos Repositories,
	resolver ApproverResolver,
	txManager port.TransactionManager,
	opts ...EngineOption,
) WorkflowEngine {
	e := &engineImpl{
		repos:     repos,
		resolver:  resolver,
		txManager: txManager,
		recorder:  nopRecorder{},
		logger:    nopLogger{},
		clock:     time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// snapshot is the consistent read a decision is based on
type snapshot struct {
	invoice   *entity.Invoice
	workflow  *entity.Workflow
	extracted *entity.ExtractedFields
	actor     domainwf.Actor
	approver  string
}

func (e *engineImpl) now() time.Time {
	return e.clock().UTC()
}

// Create stores a new invoice and its ledger row, then advances it
func (e *engineImpl) Create(ctx context.Context, req CreateRequest) (*InvoiceState, error) {
	if !req.Family.IsValid() {
		return nil, fmt.Errorf("%w: unknown family %q", domainwf.ErrInvalidTransition, req.Family)
	}
	if req.SubmitterID == "" {
		return nil, fmt.Errorf("%w: submitter is required", domainwf.ErrMissingRequiredField)
	}

	now := e.now()
	invoice := &entity.Invoice{
		ID:          uuid.NewString(),
		Family:      req.Family,
		SubmitterID: req.SubmitterID,
		Details:     req.Details,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	wf := &entity.Workflow{
		InvoiceID:       invoice.ID,
		Status:          domainwf.StatusSubmitted,
		Version:         1,
		StatusChangedAt: now,
		UpdatedAt:       now,
	}
	if req.Family != domainwf.FamilyOther {
		wf.ManagerUserID = req.ManagerUserID
	}

	created := event.NewEvent(event.TypeInvoiceCreated, invoice.ID, req.SubmitterID).
		At(now).
		WithPayload(event.PayloadFamily, string(req.Family))
	created.ToStatus = domainwf.StatusSubmitted

	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.repos.Invoices.Create(txCtx, invoice); err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}
		if err := e.repos.Workflows.Create(txCtx, wf); err != nil {
			return fmt.Errorf("create workflow: %w", err)
		}
		if err := e.repos.Timeline.Append(txCtx, created); err != nil {
			return fmt.Errorf("append timeline: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Invoice created",
		"invoice_id", invoice.ID,
		"family", invoice.Family,
		"submitter", invoice.SubmitterID,
	)

	state := &InvoiceState{Invoice: invoice, Workflow: wf}

	var target domainwf.Status
	switch {
	case req.Family == domainwf.FamilyOther:
		target = domainwf.StatusReadyForPayment
	case wf.ManagerUserID != "":
		target = domainwf.StatusPendingManager
	default:
		return state, nil
	}

	next, err := e.Transition(ctx, TransitionRequest{
		InvoiceID: invoice.ID,
		ActorID:   domainwf.SystemActorID,
		Target:    target,
	})
	if err != nil {
		return state, fmt.Errorf("advance new invoice: %w", err)
	}
	state.Workflow = next
	return state, nil
}

// Transition evaluates the guard and commits the change with compare-and-swap
func (e *engineImpl) Transition(ctx context.Context, req TransitionRequest) (*entity.Workflow, error) {
	if !req.Target.IsValid() {
		return nil, domainwf.NewTransitionError(domainwf.ReasonInvalidTransition, "unknown status %q", req.Target)
	}

	now := e.now()

	var snap *snapshot
	err := e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		snap, err = e.load(txCtx, req.InvoiceID, req.ActorID, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	decision := domainwf.Evaluate(domainwf.GuardInput{
		Actor:               snap.actor,
		Family:              snap.invoice.Family,
		SubmitterID:         snap.invoice.SubmitterID,
		Current:             snap.workflow.Status,
		Target:              req.Target,
		ManagerUserID:       snap.workflow.ManagerUserID,
		EffectiveApproverID: snap.approver,
		NeedsReview:         snap.extracted != nil && snap.extracted.NeedsReview,
		Fields:              req.Fields,
	})
	if !decision.Allowed {
		e.recorder.TransitionDenied(string(decision.Reason))
		e.logger.Info("Transition denied",
			"invoice_id", req.InvoiceID,
			"actor", req.ActorID,
			"from", snap.workflow.Status,
			"to", req.Target,
			"reason", decision.Reason,
		)
		return nil, decision.Err()
	}

	before := *snap.workflow
	next := before.Next(req.Target, req.Fields, now)
	evt := statusChangeEvent(req, before.Status, next, now)

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.repos.Workflows.CompareAndSwap(txCtx, &next, before.Version, before.Status); err != nil {
			return err
		}
		if err := e.repos.Timeline.Append(txCtx, evt); err != nil {
			return fmt.Errorf("append timeline: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domainwf.ErrConflict) {
			e.recorder.TransitionConflict()
			e.logger.Warn("Transition lost compare-and-swap",
				"invoice_id", req.InvoiceID,
				"actor", req.ActorID,
				"expected_version", before.Version,
			)
		}
		return nil, err
	}

	e.recorder.TransitionCommitted(string(snap.invoice.Family), string(before.Status), string(next.Status))
	e.logger.Info("Invoice status changed",
		"invoice_id", req.InvoiceID,
		"actor", req.ActorID,
		"from", before.Status,
		"to", next.Status,
		"version", next.Version,
	)

	if e.effects != nil {
		e.effects.DispatchAsync(context.WithoutCancel(ctx), &dispatcher.StatusChange{
			Invoice: snap.invoice,
			Before:  before,
			After:   next,
			Event:   evt,
			ActorID: req.ActorID,
		})
	}

	return &next, nil
}

func statusChangeEvent(req TransitionRequest, from domainwf.Status, next entity.Workflow, now time.Time) *event.Event {
	evt := event.NewStatusChange(req.InvoiceID, req.ActorID, from, next.Status).At(now)
	switch next.Status {
	case domainwf.StatusRejected:
		evt = evt.WithPayload(event.PayloadRejectionReason, next.RejectionReason)
	case domainwf.StatusPaid:
		evt = evt.WithPayload(event.PayloadPaymentReference, next.PaymentReference).
			WithPayload(event.PayloadPaidDate, next.PaidDate.Format(entity.DateLayout))
	case domainwf.StatusPendingManager:
		evt = evt.WithPayload(event.PayloadManagerUserID, next.ManagerUserID)
	}
	return evt
}

// load reads everything the guard needs
func (e *engineImpl) load(ctx context.Context, invoiceID, actorID string, now time.Time) (*snapshot, error) {
	state, err := e.loadState(ctx, invoiceID)
	if err != nil {
		return nil, err
	}

	actor, err := e.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	extracted, err := e.repos.Extracted.GetByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("get extracted fields: %w", err)
	}

	approver, err := e.resolver.EffectiveApprover(ctx, state.Workflow.ManagerUserID, now)
	if err != nil {
		return nil, fmt.Errorf("resolve approver: %w", err)
	}

	return &snapshot{
		invoice:   state.Invoice,
		workflow:  state.Workflow,
		extracted: extracted,
		actor:     actor,
		approver:  approver,
	}, nil
}

func (e *engineImpl) loadState(ctx context.Context, invoiceID string) (*InvoiceState, error) {
	invoice, err := e.repos.Invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	if invoice == nil {
		return nil, fmt.Errorf("%w: invoice %s", domainwf.ErrNotFound, invoiceID)
	}

	wf, err := e.repos.Workflows.GetByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("get workflow: %w", err)
	}
	if wf == nil {
		return nil, fmt.Errorf("%w: workflow of invoice %s", domainwf.ErrNotFound, invoiceID)
	}

	return &InvoiceState{Invoice: invoice, Workflow: wf}, nil
}

func (e *engineImpl) loadActor(ctx context.Context, actorID string) (domainwf.Actor, error) {
	if actorID == domainwf.SystemActorID {
		return domainwf.SystemActor(), nil
	}

	user, err := e.repos.Users.GetByID(ctx, actorID)
	if err != nil {
		return domainwf.Actor{}, fmt.Errorf("get actor: %w", err)
	}
	if user == nil {
		return domainwf.Actor{}, domainwf.NewTransitionError(domainwf.ReasonForbiddenRole, "unknown actor %q", actorID)
	}
	return user.Actor(), nil
}

// CurrentState returns the invoice and its ledger row
func (e *engineImpl) CurrentState(ctx context.Context, invoiceID string) (*InvoiceState, error) {
	return e.loadState(ctx, invoiceID)
}

type nopRecorder struct{}

func (nopRecorder) TransitionCommitted(family, from, to string) {}
func (nopRecorder) TransitionDenied(reason string)              {}
func (nopRecorder) TransitionConflict()                         {}

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

// Verify interface compliance
var _ WorkflowEngine = (*engineImpl)(nil)

package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/garyjia/invoice-workflow/internal/application/port"
	"github.com/garyjia/invoice-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/invoice-workflow/internal/domain/workflow"
)

// ErrClosed is returned once the dispatcher has been closed
var ErrClosed = errors.New("dispatcher is closed")

// Dispatcher runs the side effects of committed transitions
type Dispatcher interface {
	// Dispatch runs every effect of the change synchronously and reports each outcome
	Dispatch(ctx context.Context, change *StatusChange) []EffectResult

	// DispatchAsync runs Dispatch in the background
	DispatchAsync(ctx context.Context, change *StatusChange)

	// Notify sends one idempotent notification outside of a transition
	Notify(ctx context.Context, n Notification) EffectResult

	// TriggerBookingForm sends the booking form of a contractor invoice unless already sent.
	// The actor must be an admin or an operations-room member.
	TriggerBookingForm(ctx context.Context, invoiceID, actorID string) (*BookingFormResult, error)

	// RetryFailed re-sends the failed notifications of an invoice on behalf of an admin
	RetryFailed(ctx context.Context, invoiceID, actorID string) ([]EffectResult, error)

	// Close waits for background dispatches to finish
	Close() error
}

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

// Recorder counts side-effect outcomes
type Recorder interface {
	SideEffect(effect, result string)
}

// ResultStatus is the outcome of one effect
type ResultStatus string

const (
	ResultSent    ResultStatus = "sent"
	ResultSkipped ResultStatus = "skipped"
	ResultFailed  ResultStatus = "failed"
)

// EffectResult reports one effect of a dispatch
type EffectResult struct {
	Effect string       `json:"effect"`
	Key    string       `json:"key"`
	Status ResultStatus `json:"status"`
	Err    error        `json:"-"`
}

// Notification is a single message addressed to recipient roles
type Notification struct {
	Invoice    *entity.Invoice
	Workflow   *entity.Workflow
	Template   string
	EffectKey  string
	Recipients []RecipientRole
	Days       int
}

// Deps groups the collaborators of the dispatcher
type Deps struct {
	Invoices     port.InvoiceRepository
	Workflows    port.WorkflowRepository
	Timeline     port.TimelineRepository
	Users        port.UserRepository
	Dispatches   port.EffectDispatchRepository
	BookingForms port.BookingFormRepository
	Mailer       port.Mailer
	Renderer     port.BookingFormRenderer
	Storage      port.FileStorage
	Resolver     ApproverResolver
}

type effectDispatcher struct {
	deps     Deps
	rules    []Rule
	logger   Logger
	recorder Recorder
	clock    func() time.Time

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed atomic.Bool
}

// Option configures the dispatcher
type Option func(*effectDispatcher)

// WithLogger sets a logger for the dispatcher
func WithLogger(logger Logger) Option {
	return func(d *effectDispatcher) {
		d.logger = logger
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(r Recorder) Option {
	return func(d *effectDispatcher) {
		d.recorder = r
	}
}

// WithRules replaces the side-effect table
func WithRules(rules []Rule) Option {
	return func(d *effectDispatcher) {
		d.rules = rules
	}
}

// WithClock overrides the time source
func WithClock(clock func() time.Time) Option {
	return func(d *effectDispatcher) {
		d.clock = clock
	}
}

// NewDispatcher creates a new side-effect dispatcher
func NewDispatcher(deps Deps, opts ...Option) Dispatcher {
	d := &effectDispatcher{
		deps:     deps,
		rules:    DefaultRules,
		logger:   nopLogger{},
		recorder: nopRecorder{},
		clock:    time.Now,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *effectDispatcher) now() time.Time {
	return d.clock().UTC()
}

// Dispatch runs every effect of the change synchronously
func (d *effectDispatcher) Dispatch(ctx context.Context, change *StatusChange) []EffectResult {
	if d.closed.Load() {
		return []EffectResult{{Status: ResultFailed, Err: ErrClosed}}
	}
	return d.dispatch(ctx, change)
}

// dispatch runs the effects without the closed check so that work accepted
// before Close still completes
func (d *effectDispatcher) dispatch(ctx context.Context, change *StatusChange) []EffectResult {
	effects := EffectsFor(d.rules, change.Invoice.Family, change.Before.Status, change.After.Status)
	if len(effects) == 0 {
		return nil
	}

	d.logger.Info("Dispatching side effects",
		"invoice_id", change.Invoice.ID,
		"from", change.Before.Status,
		"to", change.After.Status,
		"effect_count", len(effects),
	)

	results := make([]EffectResult, 0, len(effects))
	for _, effect := range effects {
		res := d.safeExecute(ctx, change, effect)
		d.recorder.SideEffect(effect.Name(), string(res.Status))
		if res.Err != nil {
			d.logger.Error("Side effect failed",
				"invoice_id", change.Invoice.ID,
				"effect", effect.Name(),
				"key", res.Key,
				"error", res.Err,
			)
		}
		results = append(results, res)
	}
	return results
}

// DispatchAsync runs Dispatch on a tracked goroutine
func (d *effectDispatcher) DispatchAsync(ctx context.Context, change *StatusChange) {
	// Add must not race with Wait in Close
	d.mu.Lock()
	if d.closed.Load() {
		d.mu.Unlock()
		d.logger.Error("Cannot dispatch async, dispatcher is closed",
			"invoice_id", change.Invoice.ID,
			"to", change.After.Status,
		)
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		d.dispatch(ctx, change)
	}()
}

// Close shuts down the dispatcher and waits for async dispatches to complete
func (d *effectDispatcher) Close() error {
	d.mu.Lock()
	if !d.closed.CompareAndSwap(false, true) {
		d.mu.Unlock()
		return fmt.Errorf("dispatcher already closed")
	}
	d.mu.Unlock()

	d.logger.Info("Closing dispatcher, waiting for async side effects")
	d.wg.Wait()
	d.logger.Info("Dispatcher closed")

	return nil
}

// safeExecute runs an effect with panic recovery
func (d *effectDispatcher) safeExecute(ctx context.Context, change *StatusChange, effect Effect) (res EffectResult) {
	defer func() {
		if r := recover(); r != nil {
			res = EffectResult{
				Effect: effect.Name(),
				Status: ResultFailed,
				Err:    fmt.Errorf("%w: effect panic: %v", domainwf.ErrSideEffectFailure, r),
			}
			d.logger.Error("Side effect panic recovered",
				"invoice_id", change.Invoice.ID,
				"effect", effect.Name(),
				"panic", r,
			)
		}
	}()

	switch effect.Kind {
	case EffectBookingForm:
		out, err := d.sendBookingForm(ctx, change.Invoice, &change.After, change.ActorID)
		res := EffectResult{Effect: effect.Name(), Key: IdempotencyKey(change.Invoice.ID, entity.BookingFormEffectKey), Err: err}
		if out != nil {
			res.Status = ResultStatus(out.Status)
		}
		if err != nil {
			res.Status = ResultFailed
		}
		return res
	default:
		after := change.After
		return d.Notify(ctx, Notification{
			Invoice:    change.Invoice,
			Workflow:   &after,
			Template:   effect.Template,
			EffectKey:  NotificationEffectKey(effect.Template, change.Event.ID),
			Recipients: effect.Recipients,
		})
	}
}

// Notify claims the idempotency key and sends the message once
func (d *effectDispatcher) Notify(ctx context.Context, n Notification) EffectResult {
	key := IdempotencyKey(n.Invoice.ID, n.EffectKey)
	res := EffectResult{Effect: n.Template, Key: key}

	claimed, err := d.deps.Dispatches.Claim(ctx, &entity.EffectDispatch{
		IdempotencyKey: key,
		InvoiceID:      n.Invoice.ID,
		EffectKey:      n.EffectKey,
		Template:       n.Template,
		Status:         entity.DispatchPending,
		Attempts:       1,
		CreatedAt:      d.now(),
	})
	if err != nil {
		res.Status = ResultFailed
		res.Err = fmt.Errorf("%w: claim %s: %v", domainwf.ErrSideEffectFailure, key, err)
		return res
	}
	if !claimed {
		res.Status = ResultSkipped
		return res
	}

	if err := d.send(ctx, n); err != nil {
		if markErr := d.deps.Dispatches.MarkFailed(ctx, key, err.Error()); markErr != nil {
			d.logger.Error("Failed to record failed dispatch", "key", key, "error", markErr)
		}
		res.Status = ResultFailed
		res.Err = fmt.Errorf("%w: %s: %v", domainwf.ErrSideEffectFailure, n.Template, err)
		return res
	}

	if err := d.deps.Dispatches.MarkSent(ctx, key, d.now()); err != nil {
		d.logger.Error("Failed to record sent dispatch", "key", key, "error", err)
	}

	d.logger.Info("Notification sent",
		"invoice_id", n.Invoice.ID,
		"template", n.Template,
		"key", key,
	)
	res.Status = ResultSent
	return res
}

func (d *effectDispatcher) send(ctx context.Context, n Notification) error {
	to, err := d.resolveRecipients(ctx, n.Invoice, n.Workflow, n.Recipients)
	if err != nil {
		return err
	}
	if len(to) == 0 {
		return fmt.Errorf("no recipients for %s", n.Template)
	}

	msg, err := renderMessage(n.Template, messageData{Invoice: n.Invoice, Workflow: n.Workflow, Days: n.Days}, to)
	if err != nil {
		return err
	}
	return d.deps.Mailer.Send(ctx, msg)
}

type nopRecorder struct{}

func (nopRecorder) SideEffect(effect, result string) {}

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

package dispatcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/garyjia/invoice-workflow/internal/application/port"
	"github.com/garyjia/invoice-workflow/internal/domain/entity"
	"github.com/garyjia/invoice-workflow/internal/domain/event"
	domainwf "github.com/garyjia/invoice-workflow/internal/domain/workflow"
)

type fakeStore struct {
	mu          sync.Mutex
	invoices    map[string]*entity.Invoice
	workflows   map[string]*entity.Workflow
	users       map[string]*entity.User
	events      []*event.Event
	dispatches  map[string]*entity.EffectDispatch
	forms       map[string]*entity.BookingFormDispatchRecord
	files       map[string][]byte
	delegations map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		invoices:    map[string]*entity.Invoice{},
		workflows:   map[string]*entity.Workflow{},
		users:       map[string]*entity.User{},
		dispatches:  map[string]*entity.EffectDispatch{},
		forms:       map[string]*entity.BookingFormDispatchRecord{},
		files:       map[string][]byte{},
		delegations: map[string]string{},
	}
}

func (s *fakeStore) addUser(id, email string, role domainwf.Role, ops bool) {
	s.users[id] = &entity.User{ID: id, Email: email, Role: role, OperationsRoom: ops, Active: true}
}

// port.InvoiceRepository
type fakeInvoices struct{ s *fakeStore }

func (f fakeInvoices) Create(ctx context.Context, inv *entity.Invoice) error {
	f.s.invoices[inv.ID] = inv
	return nil
}
func (f fakeInvoices) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	return f.s.invoices[id], nil
}
func (f fakeInvoices) UpdateDetails(ctx context.Context, id string, d entity.InvoiceDetails, at time.Time) error {
	return nil
}

// port.WorkflowRepository
type fakeWorkflows struct{ s *fakeStore }

func (f fakeWorkflows) Create(ctx context.Context, wf *entity.Workflow) error {
	f.s.workflows[wf.InvoiceID] = wf
	return nil
}
func (f fakeWorkflows) GetByInvoiceID(ctx context.Context, id string) (*entity.Workflow, error) {
	return f.s.workflows[id], nil
}
func (f fakeWorkflows) CompareAndSwap(ctx context.Context, next *entity.Workflow, v int64, st domainwf.Status) error {
	return nil
}
func (f fakeWorkflows) ListStaleInStatus(ctx context.Context, st domainwf.Status, before time.Time) ([]*entity.Workflow, error) {
	return nil, nil
}

// port.TimelineRepository
type fakeTimeline struct{ s *fakeStore }

func (f fakeTimeline) Append(ctx context.Context, e *event.Event) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.events = append(f.s.events, e)
	return nil
}
func (f fakeTimeline) ListByInvoiceID(ctx context.Context, id string) ([]*event.Event, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*event.Event
	for _, e := range f.s.events {
		if e.InvoiceID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

// port.UserRepository
type fakeUsers struct{ s *fakeStore }

func (f fakeUsers) Create(ctx context.Context, u *entity.User) error {
	f.s.users[u.ID] = u
	return nil
}
func (f fakeUsers) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return f.s.users[id], nil
}
func (f fakeUsers) ListByRole(ctx context.Context, role domainwf.Role) ([]*entity.User, error) {
	var out []*entity.User
	for _, u := range f.s.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}
func (f fakeUsers) ListOperationsRoom(ctx context.Context) ([]*entity.User, error) {
	var out []*entity.User
	for _, u := range f.s.users {
		if u.OperationsRoom {
			out = append(out, u)
		}
	}
	return out, nil
}

// port.EffectDispatchRepository
type fakeDispatches struct{ s *fakeStore }

func (f fakeDispatches) Claim(ctx context.Context, d *entity.EffectDispatch) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	existing, ok := f.s.dispatches[d.IdempotencyKey]
	if !ok {
		cp := *d
		f.s.dispatches[d.IdempotencyKey] = &cp
		return true, nil
	}
	if existing.Status != entity.DispatchFailed {
		return false, nil
	}
	existing.Status = entity.DispatchPending
	existing.Attempts++
	return true, nil
}
func (f fakeDispatches) MarkSent(ctx context.Context, key string, at time.Time) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.dispatches[key].Status = entity.DispatchSent
	f.s.dispatches[key].SentAt = &at
	return nil
}
func (f fakeDispatches) MarkFailed(ctx context.Context, key, reason string) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.dispatches[key].Status = entity.DispatchFailed
	f.s.dispatches[key].LastError = reason
	return nil
}
func (f fakeDispatches) ListByInvoiceID(ctx context.Context, id string) ([]*entity.EffectDispatch, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []*entity.EffectDispatch
	for _, d := range f.s.dispatches {
		if d.InvoiceID == id {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

// port.BookingFormRepository
type fakeForms struct{ s *fakeStore }

func (f fakeForms) Reserve(ctx context.Context, invoiceID, key string, at time.Time) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	existing, ok := f.s.forms[invoiceID+key]
	if !ok {
		f.s.forms[invoiceID+key] = &entity.BookingFormDispatchRecord{
			InvoiceID: invoiceID, EffectKey: key, Status: entity.DispatchSending, Attempts: 1, CreatedAt: at, UpdatedAt: at,
		}
		return true, nil
	}
	if existing.Status != entity.DispatchFailed {
		return false, nil
	}
	existing.Status = entity.DispatchSending
	existing.Attempts++
	return true, nil
}
func (f fakeForms) Get(ctx context.Context, invoiceID, key string) (*entity.BookingFormDispatchRecord, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	r, ok := f.s.forms[invoiceID+key]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}
func (f fakeForms) Update(ctx context.Context, r *entity.BookingFormDispatchRecord) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	cp := *r
	f.s.forms[r.InvoiceID+r.EffectKey] = &cp
	return nil
}

// port.FileStorage
type fakeStorage struct{ s *fakeStore }

func (f fakeStorage) Save(ctx context.Context, p string, c []byte) error {
	f.s.files[p] = c
	return nil
}
func (f fakeStorage) Read(ctx context.Context, p string) ([]byte, error) { return f.s.files[p], nil }
func (f fakeStorage) Exists(ctx context.Context, p string) bool         { _, ok := f.s.files[p]; return ok }
func (f fakeStorage) Delete(ctx context.Context, p string) error        { delete(f.s.files, p); return nil }
func (f fakeStorage) GetFullPath(p string) string                       { return "/data/" + p }

// ApproverResolver
type fakeResolver struct{ s *fakeStore }

func (f fakeResolver) EffectiveApprover(ctx context.Context, managerID string, on time.Time) (string, error) {
	if d, ok := f.s.delegations[managerID]; ok {
		return d, nil
	}
	return managerID, nil
}

type fakeMailer struct {
	mu     sync.Mutex
	sent   []port.Message
	failOn map[string]bool
	panics bool
}

func (m *fakeMailer) Send(ctx context.Context, msg port.Message) error {
	if m.panics {
		panic("mailer exploded")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, to := range msg.To {
		if m.failOn[to] {
			return errors.New("smtp unavailable")
		}
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type fakeRenderer struct {
	calls int
}

func (r *fakeRenderer) Render(ctx context.Context, form port.BookingForm) ([]byte, string, error) {
	r.calls++
	return []byte("xlsx"), "booking_form.xlsx", nil
}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
}

func (l *recordingLogger) Info(msg string, kv ...interface{}) {}
func (l *recordingLogger) Warn(msg string, kv ...interface{}) {}
func (l *recordingLogger) Error(msg string, kv ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

type harness struct {
	store    *fakeStore
	mailer   *fakeMailer
	renderer *fakeRenderer
	logger   *recordingLogger
	d        Dispatcher
}

func newHarness() *harness {
	s := newFakeStore()
	s.addUser("S", "submitter@example.com", domainwf.RoleStaff, false)
	s.addUser("M", "manager@example.com", domainwf.RoleManager, false)
	s.addUser("D", "delegate@example.com", domainwf.RoleStaff, false)
	s.addUser("A", "admin@example.com", domainwf.RoleAdmin, false)
	s.addUser("F", "finance@example.com", domainwf.RoleFinance, false)
	s.addUser("O", "ops@example.com", domainwf.RoleStaff, true)

	h := &harness{
		store:    s,
		mailer:   &fakeMailer{failOn: map[string]bool{}},
		renderer: &fakeRenderer{},
		logger:   &recordingLogger{},
	}
	h.d = NewDispatcher(Deps{
		Invoices:     fakeInvoices{s},
		Workflows:    fakeWorkflows{s},
		Timeline:     fakeTimeline{s},
		Users:        fakeUsers{s},
		Dispatches:   fakeDispatches{s},
		BookingForms: fakeForms{s},
		Mailer:       h.mailer,
		Renderer:     h.renderer,
		Storage:      fakeStorage{s},
		Resolver:     fakeResolver{s},
	}, WithLogger(h.logger))
	return h
}

func (h *harness) invoice(id string, family domainwf.Family, status domainwf.Status) (*entity.Invoice, *entity.Workflow) {
	inv := &entity.Invoice{ID: id, Family: family, SubmitterID: "S"}
	wf := &entity.Workflow{InvoiceID: id, Status: status, ManagerUserID: "M", Version: 2}
	h.store.invoices[id] = inv
	h.store.workflows[id] = wf
	return inv, wf
}

func (h *harness) change(inv *entity.Invoice, from, to domainwf.Status, actor string) *StatusChange {
	wf := h.store.workflows[inv.ID]
	before := *wf
	before.Status = from
	after := *wf
	after.Status = to
	evt := event.NewStatusChange(inv.ID, actor, from, to)
	h.store.events = append(h.store.events, evt)
	return &StatusChange{Invoice: inv, Before: before, After: after, Event: evt, ActorID: actor}
}

func (h *harness) trigger(actor string) error {
	_, err := h.d.TriggerBookingForm(context.Background(), "inv-1", actor)
	return err
}

func (h *harness) retry(actor string) error {
	_, err := h.d.RetryFailed(context.Background(), "inv-1", actor)
	return err
}

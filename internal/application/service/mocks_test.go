package service

import (
	"context"
	"errors"
	"time"

	"github.com/garyjia/invoice-workflow/internal/application/dispatcher"
	"github.com/garyjia/invoice-workflow/internal/domain/entity"
	"github.com/garyjia/invoice-workflow/internal/domain/event"
	domainwf "github.com/garyjia/invoice-workflow/internal/domain/workflow"
)

type mockInvoiceRepo struct {
	invoices map[string]*entity.Invoice
}

func (m *mockInvoiceRepo) Create(ctx context.Context, invoice *entity.Invoice) error {
	m.invoices[invoice.ID] = invoice
	return nil
}

func (m *mockInvoiceRepo) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	return m.invoices[id], nil
}

func (m *mockInvoiceRepo) UpdateDetails(ctx context.Context, id string, details entity.InvoiceDetails, updatedAt time.Time) error {
	return nil
}

type mockNoteRepo struct {
	notes     []*entity.Note
	createErr error
}

func (m *mockNoteRepo) Create(ctx context.Context, note *entity.Note) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.notes = append(m.notes, note)
	return nil
}

func (m *mockNoteRepo) ListByInvoiceID(ctx context.Context, invoiceID string) ([]*entity.Note, error) {
	var out []*entity.Note
	for _, n := range m.notes {
		if n.InvoiceID == invoiceID {
			out = append(out, n)
		}
	}
	return out, nil
}

type mockTimelineRepo struct {
	events []*event.Event
}

func (m *mockTimelineRepo) Append(ctx context.Context, evt *event.Event) error {
	m.events = append(m.events, evt)
	return nil
}

func (m *mockTimelineRepo) ListByInvoiceID(ctx context.Context, invoiceID string) ([]*event.Event, error) {
	var out []*event.Event
	for _, e := range m.events {
		if e.InvoiceID == invoiceID {
			out = append(out, e)
		}
	}
	return out, nil
}

type mockUserRepo struct {
	users map[string]*entity.User
}

func (m *mockUserRepo) Create(ctx context.Context, user *entity.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return m.users[id], nil
}

func (m *mockUserRepo) ListByRole(ctx context.Context, role domainwf.Role) ([]*entity.User, error) {
	return nil, nil
}

func (m *mockUserRepo) ListOperationsRoom(ctx context.Context) ([]*entity.User, error) {
	return nil, nil
}

type mockDelegationRepo struct {
	delegations []*entity.Delegation
}

func (m *mockDelegationRepo) Create(ctx context.Context, d *entity.Delegation) error {
	m.delegations = append(m.delegations, d)
	return nil
}

func (m *mockDelegationRepo) ListByDelegator(ctx context.Context, delegatorUserID string) ([]*entity.Delegation, error) {
	var out []*entity.Delegation
	for _, d := range m.delegations {
		if d.DelegatorUserID == delegatorUserID {
			out = append(out, d)
		}
	}
	return out, nil
}

type mockWorkflowRepo struct {
	stale     []*entity.Workflow
	gotCutoff time.Time
}

func (m *mockWorkflowRepo) Create(ctx context.Context, wf *entity.Workflow) error { return nil }

func (m *mockWorkflowRepo) GetByInvoiceID(ctx context.Context, invoiceID string) (*entity.Workflow, error) {
	return nil, nil
}

func (m *mockWorkflowRepo) CompareAndSwap(ctx context.Context, next *entity.Workflow, v int64, s domainwf.Status) error {
	return errors.New("not used")
}

func (m *mockWorkflowRepo) ListStaleInStatus(ctx context.Context, status domainwf.Status, before time.Time) ([]*entity.Workflow, error) {
	m.gotCutoff = before
	return m.stale, nil
}

type mockExtractedRepo struct {
	saved map[string]*entity.ExtractedFields
}

func (m *mockExtractedRepo) Upsert(ctx context.Context, fields *entity.ExtractedFields) error {
	m.saved[fields.InvoiceID] = fields
	return nil
}

func (m *mockExtractedRepo) GetByInvoiceID(ctx context.Context, invoiceID string) (*entity.ExtractedFields, error) {
	return m.saved[invoiceID], nil
}

type mockExtractor struct {
	result *entity.ExtractedFields
	err    error
}

func (m *mockExtractor) Extract(ctx context.Context, invoiceID, filePath string) (*entity.ExtractedFields, error) {
	return m.result, m.err
}

// mockTx fails the whole unit when fn fails, like a real rollback would
// from the caller's point of view.
type mockTx struct {
	calls int
}

func (m *mockTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}

type mockNotifier struct {
	keys    map[string]bool
	notices []dispatcher.Notification
}

func (m *mockNotifier) Notify(ctx context.Context, n dispatcher.Notification) dispatcher.EffectResult {
	key := dispatcher.IdempotencyKey(n.Invoice.ID, n.EffectKey)
	if m.keys[key] {
		return dispatcher.EffectResult{Key: key, Status: dispatcher.ResultSkipped}
	}
	m.keys[key] = true
	m.notices = append(m.notices, n)
	return dispatcher.EffectResult{Key: key, Status: dispatcher.ResultSent}
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}

func testUsers() *mockUserRepo {
	return &mockUserRepo{users: map[string]*entity.User{
		"S": {ID: "S", Role: domainwf.RoleStaff, Active: true},
		"M": {ID: "M", Role: domainwf.RoleManager, Active: true},
		"D": {ID: "D", Role: domainwf.RoleManager, Active: true},
		"A": {ID: "A", Role: domainwf.RoleAdmin, Active: true},
		"Z": {ID: "Z", Role: domainwf.RoleManager, Active: false},
	}}
}

func testInvoices() *mockInvoiceRepo {
	return &mockInvoiceRepo{invoices: map[string]*entity.Invoice{
		"inv-1": {ID: "inv-1", Family: domainwf.FamilyGuest, SubmitterID: "S"},
	}}
}

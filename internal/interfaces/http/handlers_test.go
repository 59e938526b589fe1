package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/invoice-workflow/internal/application/dispatcher"
	"github.com/garyjia/invoice-workflow/internal/application/service"
	"github.com/garyjia/invoice-workflow/internal/application/workflow"
	"github.com/garyjia/invoice-workflow/internal/domain/entity"
	"github.com/garyjia/invoice-workflow/internal/domain/event"
	domainwf "github.com/garyjia/invoice-workflow/internal/domain/workflow"
)

const testSecret = "test-secret"

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}

type fakeEngine struct {
	lastCreate     workflow.CreateRequest
	lastTransition workflow.TransitionRequest
	lastBulk       workflow.BulkRequest
	transitionErr  error
	bulk           []workflow.BulkItemResult
}

func (f *fakeEngine) Create(ctx context.Context, req workflow.CreateRequest) (*workflow.InvoiceState, error) {
	f.lastCreate = req
	return &workflow.InvoiceState{
		Invoice:  &entity.Invoice{ID: "inv-1", Family: req.Family, SubmitterID: req.SubmitterID},
		Workflow: &entity.Workflow{InvoiceID: "inv-1", Status: domainwf.StatusPendingManager, Version: 2},
	}, nil
}

func (f *fakeEngine) Transition(ctx context.Context, req workflow.TransitionRequest) (*entity.Workflow, error) {
	f.lastTransition = req
	if f.transitionErr != nil {
		return nil, f.transitionErr
	}
	return &entity.Workflow{InvoiceID: req.InvoiceID, Status: req.Target, Version: 3}, nil
}

func (f *fakeEngine) EditInvoice(ctx context.Context, req workflow.EditRequest) (*workflow.EditResult, error) {
	return &workflow.EditResult{Invoice: &entity.Invoice{ID: req.InvoiceID}}, nil
}

func (f *fakeEngine) BulkTransition(ctx context.Context, req workflow.BulkRequest) []workflow.BulkItemResult {
	f.lastBulk = req
	return f.bulk
}

func (f *fakeEngine) CurrentState(ctx context.Context, invoiceID string) (*workflow.InvoiceState, error) {
	if invoiceID == "missing" {
		return nil, fmt.Errorf("%w: invoice missing", domainwf.ErrNotFound)
	}
	return &workflow.InvoiceState{Invoice: &entity.Invoice{ID: invoiceID}}, nil
}

type fakeDispatcher struct {
	dispatcher.Dispatcher
	triggerActor string
	retryActor   string
}

func (f *fakeDispatcher) TriggerBookingForm(ctx context.Context, invoiceID, actorID string) (*dispatcher.BookingFormResult, error) {
	f.triggerActor = actorID
	if actorID == "staff-1" {
		return nil, domainwf.NewTransitionError(domainwf.ReasonForbiddenRole, "only admins can resend messages")
	}
	return &dispatcher.BookingFormResult{Skipped: true, Status: entity.DispatchSent}, nil
}

func (f *fakeDispatcher) RetryFailed(ctx context.Context, invoiceID, actorID string) ([]dispatcher.EffectResult, error) {
	f.retryActor = actorID
	if actorID == "staff-1" {
		return nil, domainwf.NewTransitionError(domainwf.ReasonForbiddenRole, "only admins can resend messages")
	}
	return []dispatcher.EffectResult{{Effect: "notification", Status: dispatcher.ResultSent}}, nil
}

type fakeNotes struct{ author string }

func (f *fakeNotes) AddNote(ctx context.Context, invoiceID, authorID, content string) (*entity.Note, error) {
	f.author = authorID
	return &entity.Note{ID: "n1", InvoiceID: invoiceID, AuthorID: authorID, Content: content}, nil
}

func (f *fakeNotes) List(ctx context.Context, invoiceID string) ([]*entity.Note, error) {
	return []*entity.Note{}, nil
}

type fakeTimeline struct{}

func (fakeTimeline) List(ctx context.Context, invoiceID string) ([]*event.Event, error) {
	return []*event.Event{{ID: "e1", Seq: 1, InvoiceID: invoiceID}}, nil
}

type fakeDelegations struct {
	listed string
	input  service.CreateDelegationInput
}

func (f *fakeDelegations) Create(ctx context.Context, actorID string, in service.CreateDelegationInput) (*entity.Delegation, error) {
	f.input = in
	return &entity.Delegation{ID: "d1", DelegatorUserID: in.DelegatorUserID, DelegateUserID: in.DelegateUserID}, nil
}

func (f *fakeDelegations) List(ctx context.Context, delegatorUserID string) ([]*entity.Delegation, error) {
	f.listed = delegatorUserID
	return nil, nil
}

type fakeExtraction struct {
	saved *entity.ExtractedFields
	actor string
}

func (f *fakeExtraction) ExtractFromFile(ctx context.Context, invoiceID, filePath string) (*entity.ExtractedFields, error) {
	return nil, errors.New("not used")
}

func (f *fakeExtraction) Save(ctx context.Context, actorID string, fields *entity.ExtractedFields) (*entity.ExtractedFields, error) {
	f.actor = actorID
	if actorID != domainwf.SystemActorID {
		return nil, domainwf.NewTransitionError(domainwf.ReasonForbiddenRole, "only the extraction service or an admin can write extracted fields")
	}
	f.saved = fields
	return fields, nil
}

func (f *fakeExtraction) Get(ctx context.Context, invoiceID string) (*entity.ExtractedFields, error) {
	return nil, fmt.Errorf("%w: extracted fields", domainwf.ErrNotFound)
}

type testServer struct {
	server      *Server
	engine      *fakeEngine
	dispatcher  *fakeDispatcher
	notes       *fakeNotes
	delegations *fakeDelegations
	extraction  *fakeExtraction
}

func newTestServer(t *testing.T, rateLimit string) *testServer {
	t.Helper()
	ts := &testServer{
		engine:      &fakeEngine{},
		dispatcher:  &fakeDispatcher{},
		notes:       &fakeNotes{},
		delegations: &fakeDelegations{},
		extraction:  &fakeExtraction{},
	}

	cfg := DefaultServerConfig()
	cfg.JWTSecret = testSecret
	cfg.RateLimit = rateLimit

	s, err := NewServer(cfg, Services{
		Engine:      ts.engine,
		Dispatcher:  ts.dispatcher,
		Notes:       ts.notes,
		Timeline:    fakeTimeline{},
		Delegations: ts.delegations,
		Extraction:  ts.extraction,
	}, nopLogger{})
	require.NoError(t, err)
	ts.server = s
	return ts
}

func token(t *testing.T, sub string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func (ts *testServer) do(t *testing.T, method, path, actor string, body interface{}) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, actor))
	}

	w := httptest.NewRecorder()
	ts.server.Router().ServeHTTP(w, req)

	var resp Response
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &resp)
	}
	return w, resp
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t, "")
	w, resp := ts.do(t, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
}

func TestAuthMiddleware(t *testing.T) {
	ts := newTestServer(t, "")

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"garbage token", "Bearer not-a-jwt"},
		{"wrong secret", "Bearer " + func() string {
			s, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1"}).SignedString([]byte("other"))
			return s
		}()},
		{"no subject", "Bearer " + func() string {
			s, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "admin"}).SignedString([]byte(testSecret))
			return s
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/invoices/inv-1", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			ts.server.Router().ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestCreateInvoice_SubmitterFromToken(t *testing.T) {
	ts := newTestServer(t, "")
	w, resp := ts.do(t, http.MethodPost, "/api/invoices", "staff-1", map[string]interface{}{
		"family":          "guest",
		"manager_user_id": "mgr-1",
		"details":         map[string]interface{}{"beneficiary_name": "Jane", "amount": "120.00", "currency": "EUR"},
	})

	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "staff-1", ts.engine.lastCreate.SubmitterID)
	assert.Equal(t, domainwf.FamilyGuest, ts.engine.lastCreate.Family)
	assert.Equal(t, "120", ts.engine.lastCreate.Details.Amount.String())
}

func TestTransition_PassesFields(t *testing.T) {
	ts := newTestServer(t, "")
	w, resp := ts.do(t, http.MethodPost, "/api/invoices/inv-1/status", "fin-1", map[string]interface{}{
		"to_status":         "paid",
		"payment_reference": "PAY-7",
		"paid_date":         "2024-06-03",
	})

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	req := ts.engine.lastTransition
	assert.Equal(t, "inv-1", req.InvoiceID)
	assert.Equal(t, "fin-1", req.ActorID)
	assert.Equal(t, domainwf.StatusPaid, req.Target)
	assert.Equal(t, "PAY-7", req.Fields.PaymentReference)
	assert.Equal(t, time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), req.Fields.PaidDate)
}

func TestTransition_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantReason string
	}{
		{"self approval", domainwf.NewTransitionError(domainwf.ReasonSelfApproval, "x"), http.StatusForbidden, "self_approval"},
		{"forbidden role", domainwf.NewTransitionError(domainwf.ReasonForbiddenRole, "x"), http.StatusForbidden, "forbidden_role"},
		{"invalid transition", domainwf.NewTransitionError(domainwf.ReasonInvalidTransition, "x"), http.StatusUnprocessableEntity, "invalid_transition"},
		{"missing precondition", domainwf.NewTransitionError(domainwf.ReasonMissingPrecondition, "x"), http.StatusUnprocessableEntity, "missing_precondition"},
		{"missing field", domainwf.NewTransitionError(domainwf.ReasonMissingRequiredField, "x"), http.StatusBadRequest, "missing_required_field"},
		{"conflict", fmt.Errorf("transition: %w", domainwf.ErrConflict), http.StatusConflict, ""},
		{"not found", fmt.Errorf("%w: invoice", domainwf.ErrNotFound), http.StatusNotFound, ""},
		{"internal", errors.New("disk I/O error"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, "")
			ts.engine.transitionErr = tt.err

			w, resp := ts.do(t, http.MethodPost, "/api/invoices/inv-1/status", "u1", map[string]interface{}{"to_status": "approved_by_manager"})

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantReason, resp.Reason)
			if tt.wantStatus == http.StatusInternalServerError {
				assert.NotContains(t, resp.Error, "disk")
			}
			if tt.wantStatus == http.StatusConflict {
				assert.Contains(t, resp.Error, "refresh and try again")
			}
		})
	}
}

func TestTransition_BadInput(t *testing.T) {
	ts := newTestServer(t, "")

	w, _ := ts.do(t, http.MethodPost, "/api/invoices/inv-1/status", "u1", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = ts.do(t, http.MethodPost, "/api/invoices/inv-1/status", "u1", map[string]interface{}{"to_status": "teleported"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, resp := ts.do(t, http.MethodPost, "/api/invoices/inv-1/status", "u1", map[string]interface{}{"to_status": "paid", "paid_date": "03/06/2024"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "missing_required_field", resp.Reason)
}

func TestBulkTransition_PerItemResults(t *testing.T) {
	ts := newTestServer(t, "")
	ts.engine.bulk = []workflow.BulkItemResult{
		{InvoiceID: "a", Workflow: &entity.Workflow{InvoiceID: "a", Status: domainwf.StatusPaid}},
		{InvoiceID: "b", Err: domainwf.NewTransitionError(domainwf.ReasonInvalidTransition, "archived")},
	}

	w, _ := ts.do(t, http.MethodPost, "/api/invoices/bulk/status", "fin-1", map[string]interface{}{
		"invoice_ids":       []string{"a", "b"},
		"to_status":         "paid",
		"payment_reference": "PAY-1",
		"paid_date":         "2024-06-03",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data []BulkItemResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)
	assert.True(t, resp.Data[0].Success)
	assert.False(t, resp.Data[1].Success)
	assert.Equal(t, "invalid_transition", resp.Data[1].Reason)
	assert.Equal(t, []string{"a", "b"}, ts.engine.lastBulk.InvoiceIDs)

	w, _ = ts.do(t, http.MethodPost, "/api/invoices/bulk/status", "fin-1", map[string]interface{}{"invoice_ids": []string{}, "to_status": "paid"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetInvoice_NotFound(t *testing.T) {
	ts := newTestServer(t, "")
	w, resp := ts.do(t, http.MethodGet, "/api/invoices/missing", "u1", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, resp.Success)
}

func TestNotesTimelineAndExtraction(t *testing.T) {
	ts := newTestServer(t, "")

	w, _ := ts.do(t, http.MethodPost, "/api/invoices/inv-1/notes", "mgr-1", map[string]string{"content": "checked"})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "mgr-1", ts.notes.author)

	w, _ = ts.do(t, http.MethodPost, "/api/invoices/inv-1/notes", "mgr-1", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = ts.do(t, http.MethodGet, "/api/invoices/inv-1/timeline", "mgr-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, resp := ts.do(t, http.MethodPut, "/api/invoices/inv-1/extracted-fields", "mgr-1", map[string]interface{}{
		"confidence":   1,
		"needs_review": false,
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, string(domainwf.ReasonForbiddenRole), resp.Reason)
	assert.Nil(t, ts.extraction.saved)

	w, _ = ts.do(t, http.MethodPut, "/api/invoices/inv-1/extracted-fields", domainwf.SystemActorID, map[string]interface{}{
		"beneficiary_name": "Jane",
		"amount":           "99.50",
		"confidence":       0.8,
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domainwf.SystemActorID, ts.extraction.actor)
	require.NotNil(t, ts.extraction.saved)
	assert.Equal(t, "inv-1", ts.extraction.saved.InvoiceID)

	w, _ = ts.do(t, http.MethodGet, "/api/invoices/inv-1/extracted-fields", "svc", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTriggerBookingForm(t *testing.T) {
	ts := newTestServer(t, "")
	w, _ := ts.do(t, http.MethodPost, "/api/freelancer-invoices/inv-1/booking-form/trigger", "admin-1", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin-1", ts.dispatcher.triggerActor)

	var resp struct {
		Data dispatcher.BookingFormResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Skipped)
}

func TestRetryNotifications(t *testing.T) {
	ts := newTestServer(t, "")
	w, _ := ts.do(t, http.MethodPost, "/api/invoices/inv-1/notifications/retry", "admin-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin-1", ts.dispatcher.retryActor)
}

func TestResendRoutes_ForbiddenForNonAdmins(t *testing.T) {
	ts := newTestServer(t, "")

	for _, path := range []string{
		"/api/freelancer-invoices/inv-1/booking-form/trigger",
		"/api/invoices/inv-1/notifications/retry",
	} {
		w, resp := ts.do(t, http.MethodPost, path, "staff-1", nil)
		assert.Equal(t, http.StatusForbidden, w.Code, path)
		assert.Equal(t, string(domainwf.ReasonForbiddenRole), resp.Reason, path)
	}
}

func TestDelegations_DefaultToCaller(t *testing.T) {
	ts := newTestServer(t, "")

	w, _ := ts.do(t, http.MethodGet, "/api/delegations", "mgr-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "mgr-1", ts.delegations.listed)

	w, _ = ts.do(t, http.MethodPost, "/api/delegations", "mgr-1", map[string]string{
		"delegate_user_id": "mgr-2",
		"date_from":        "2024-06-01",
		"date_to":          "2024-06-14",
	})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "mgr-1", ts.delegations.input.DelegatorUserID)
}

func TestRateLimit_TriggerRoute(t *testing.T) {
	ts := newTestServer(t, "1-M")

	w, _ := ts.do(t, http.MethodPost, "/api/freelancer-invoices/inv-1/booking-form/trigger", "admin-1", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = ts.do(t, http.MethodPost, "/api/freelancer-invoices/inv-1/booking-form/trigger", "admin-1", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w, _ = ts.do(t, http.MethodPost, "/api/freelancer-invoices/inv-1/booking-form/trigger", "admin-2", nil)
	assert.Equal(t, http.StatusOK, w.Code, "limit is per actor")

	w, _ = ts.do(t, http.MethodGet, "/api/invoices/inv-1", "admin-1", nil)
	assert.Equal(t, http.StatusOK, w.Code, "unlimited routes are unaffected")
}

func TestNewServer_Validation(t *testing.T) {
	_, err := NewServer(DefaultServerConfig(), Services{}, nopLogger{})
	assert.Error(t, err)

	cfg := DefaultServerConfig()
	cfg.JWTSecret = testSecret
	cfg.RateLimit = "lots"
	_, err = NewServer(cfg, Services{}, nopLogger{})
	assert.Error(t, err)
}

package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/invoice-workflow/internal/application/service"
	"github.com/garyjia/invoice-workflow/internal/application/workflow"
	"github.com/garyjia/invoice-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/invoice-workflow/internal/domain/workflow"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	services Services
	logger   Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, logger Logger) *Handlers {
	return &Handlers{
		services: services,
		logger:   logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Reason  string      `json:"reason,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// CreateInvoiceRequest is the body of POST /api/invoices
type CreateInvoiceRequest struct {
	Family        string                `json:"family" binding:"required"`
	ManagerUserID string                `json:"manager_user_id"`
	Details       entity.InvoiceDetails `json:"details"`
}

// StatusRequest is the body of a status change
type StatusRequest struct {
	ToStatus         string `json:"to_status" binding:"required"`
	RejectionReason  string `json:"rejection_reason"`
	ManagerConfirmed bool   `json:"manager_confirmed"`
	PaymentReference string `json:"payment_reference"`
	PaidDate         string `json:"paid_date"`
	ManagerUserID    string `json:"manager_user_id"`
}

// BulkStatusRequest applies one status change to several invoices
type BulkStatusRequest struct {
	InvoiceIDs []string `json:"invoice_ids" binding:"required,min=1,max=100,dive,required"`
	StatusRequest
}

// BulkItemResponse is the outcome of one invoice of a bulk request
type BulkItemResponse struct {
	InvoiceID string           `json:"invoice_id"`
	Success   bool             `json:"success"`
	Workflow  *entity.Workflow `json:"workflow,omitempty"`
	Error     string           `json:"error,omitempty"`
	Reason    string           `json:"reason,omitempty"`
}

// NoteRequest is the body of POST /api/invoices/:id/notes
type NoteRequest struct {
	Content string `json:"content" binding:"required"`
}

// parse converts the request into a target status and guard fields
func (r StatusRequest) parse() (domainwf.Status, domainwf.TransitionFields, error) {
	target, err := domainwf.ParseStatus(r.ToStatus)
	if err != nil {
		return "", domainwf.TransitionFields{}, fmt.Errorf("to_status %q: %w", r.ToStatus, err)
	}

	fields := domainwf.TransitionFields{
		RejectionReason:             r.RejectionReason,
		PaymentReference:            r.PaymentReference,
		ManagerUserID:               r.ManagerUserID,
		ManagerConfirmedBankDetails: r.ManagerConfirmed,
	}
	if r.PaidDate != "" {
		paid, err := time.Parse(time.DateOnly, r.PaidDate)
		if err != nil {
			return "", domainwf.TransitionFields{}, domainwf.NewTransitionError(domainwf.ReasonMissingRequiredField, "paid_date must be YYYY-MM-DD")
		}
		fields.PaidDate = paid
	}
	return target, fields, nil
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// CreateInvoice handles POST /api/invoices
func (h *Handlers) CreateInvoice(c *gin.Context) {
	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	state, err := h.services.Engine.Create(c.Request.Context(), workflow.CreateRequest{
		Family:        domainwf.Family(req.Family),
		SubmitterID:   actorID(c),
		ManagerUserID: req.ManagerUserID,
		Details:       req.Details,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: state})
}

// GetInvoice handles GET /api/invoices/:id
func (h *Handlers) GetInvoice(c *gin.Context) {
	state, err := h.services.Engine.CurrentState(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: state})
}

// EditInvoice handles PATCH /api/invoices/:id
func (h *Handlers) EditInvoice(c *gin.Context) {
	var patch entity.InvoiceDetailsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.services.Engine.EditInvoice(c.Request.Context(), workflow.EditRequest{
		InvoiceID: c.Param("id"),
		ActorID:   actorID(c),
		Changes:   patch,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// Transition handles POST /api/invoices/:id/status
func (h *Handlers) Transition(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	target, fields, err := req.parse()
	if err != nil {
		h.fail(c, err)
		return
	}

	wf, err := h.services.Engine.Transition(c.Request.Context(), workflow.TransitionRequest{
		InvoiceID: c.Param("id"),
		ActorID:   actorID(c),
		Target:    target,
		Fields:    fields,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: wf})
}

// BulkTransition handles POST /api/invoices/bulk/status. The response is 200
// even when some items fail; each item carries its own outcome.
func (h *Handlers) BulkTransition(c *gin.Context) {
	var req BulkStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	target, fields, err := req.parse()
	if err != nil {
		h.fail(c, err)
		return
	}

	results := h.services.Engine.BulkTransition(c.Request.Context(), workflow.BulkRequest{
		InvoiceIDs: req.InvoiceIDs,
		ActorID:    actorID(c),
		Target:     target,
		Fields:     fields,
	})

	items := make([]BulkItemResponse, 0, len(results))
	for _, r := range results {
		item := BulkItemResponse{InvoiceID: r.InvoiceID, Success: r.Err == nil, Workflow: r.Workflow}
		if r.Err != nil {
			_, body := errorBody(r.Err)
			item.Error, item.Reason = body.Error, body.Reason
		}
		items = append(items, item)
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: items})
}

// ListNotes handles GET /api/invoices/:id/notes
func (h *Handlers) ListNotes(c *gin.Context) {
	notes, err := h.services.Notes.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: notes})
}

// AddNote handles POST /api/invoices/:id/notes
func (h *Handlers) AddNote(c *gin.Context) {
	var req NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}

	note, err := h.services.Notes.AddNote(c.Request.Context(), c.Param("id"), actorID(c), req.Content)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: note})
}

// Timeline handles GET /api/invoices/:id/timeline
func (h *Handlers) Timeline(c *gin.Context) {
	events, err := h.services.Timeline.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: events})
}

// SaveExtractedFields handles PUT /api/invoices/:id/extracted-fields. The
// extraction collaborator calls it with a token for the system identity.
func (h *Handlers) SaveExtractedFields(c *gin.Context) {
	var fields entity.ExtractedFields
	if err := c.ShouldBindJSON(&fields); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	fields.InvoiceID = c.Param("id")

	saved, err := h.services.Extraction.Save(c.Request.Context(), actorID(c), &fields)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: saved})
}

// GetExtractedFields handles GET /api/invoices/:id/extracted-fields
func (h *Handlers) GetExtractedFields(c *gin.Context) {
	fields, err := h.services.Extraction.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: fields})
}

// RetryNotifications handles POST /api/invoices/:id/notifications/retry
func (h *Handlers) RetryNotifications(c *gin.Context) {
	results, err := h.services.Dispatcher.RetryFailed(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: results})
}

// TriggerBookingForm handles POST /api/freelancer-invoices/:id/booking-form/trigger
func (h *Handlers) TriggerBookingForm(c *gin.Context) {
	result, err := h.services.Dispatcher.TriggerBookingForm(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

// ListDelegations handles GET /api/delegations. It lists the caller's
// delegations unless delegator_user_id is given.
func (h *Handlers) ListDelegations(c *gin.Context) {
	delegator := c.DefaultQuery("delegator_user_id", actorID(c))

	delegations, err := h.services.Delegations.List(c.Request.Context(), delegator)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: delegations})
}

// CreateDelegation handles POST /api/delegations
func (h *Handlers) CreateDelegation(c *gin.Context) {
	var in service.CreateDelegationInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body: "+err.Error())
		return
	}
	if in.DelegatorUserID == "" {
		in.DelegatorUserID = actorID(c)
	}

	d, err := h.services.Delegations.Create(c.Request.Context(), actorID(c), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: d})
}

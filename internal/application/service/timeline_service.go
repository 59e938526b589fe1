package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/garyjia/invoice-workflow/internal/application/port"
	"github.com/garyjia/invoice-workflow/internal/domain/event"
)

// TimelineService reads the audit log of invoices
type TimelineService interface {
	List(ctx context.Context, invoiceID string) ([]*event.Event, error)
}

type timelineServiceImpl struct {
	invoiceRepo  port.InvoiceRepository
	timelineRepo port.TimelineRepository
}

// NewTimelineService creates a new TimelineService
func NewTimelineService(invoiceRepo port.InvoiceRepository, timelineRepo port.TimelineRepository) TimelineService {
	return &timelineServiceImpl{
		invoiceRepo:  invoiceRepo,
		timelineRepo: timelineRepo,
	}
}

// List returns the events of an invoice in append order
func (s *timelineServiceImpl) List(ctx context.Context, invoiceID string) ([]*event.Event, error) {
	if err := ensureInvoice(ctx, s.invoiceRepo, invoiceID); err != nil {
		return nil, err
	}

	events, err := s.timelineRepo.ListByInvoiceID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list timeline: %w", err)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Seq < events[j].Seq
	})
	return events, nil
}

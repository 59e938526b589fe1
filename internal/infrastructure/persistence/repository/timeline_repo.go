package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-workflow/internal/application/port"
	"github.com/garyjia/invoice-workflow/internal/domain/event"
	"github.com/garyjia/invoice-workflow/internal/domain/workflow"
	"github.com/garyjia/invoice-workflow/internal/infrastructure/persistence/sqlite"
)

// TimelineRepository implements port.TimelineRepository. Rows are never
// updated or deleted; the schema triggers reject both.
type TimelineRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTimelineRepository creates a new timeline repository
func NewTimelineRepository(db *sql.DB, logger *zap.Logger) port.TimelineRepository {
	return &TimelineRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts the event and sets its sequence number
func (r *TimelineRepository) Append(ctx context.Context, evt *event.Event) error {
	payload, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	query := `
		INSERT INTO timeline_events (
			id, invoice_id, event_type, from_status, to_status, actor_id, payload, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := sqlite.ExecutorFor(ctx, r.db).ExecContext(ctx, query,
		evt.ID,
		evt.InvoiceID,
		string(evt.Type),
		string(evt.FromStatus),
		string(evt.ToStatus),
		evt.ActorID,
		string(payload),
		evt.Timestamp.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to append timeline event",
			zap.String("invoice_id", evt.InvoiceID),
			zap.String("event_type", string(evt.Type)),
			zap.Error(err))
		return fmt.Errorf("failed to append timeline event: %w", err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	evt.Seq = seq
	return nil
}

// ListByInvoiceID returns the events of an invoice in sequence order
func (r *TimelineRepository) ListByInvoiceID(ctx context.Context, invoiceID string) ([]*event.Event, error) {
	query := `
		SELECT seq, id, invoice_id, event_type, from_status, to_status, actor_id, payload, created_at
		FROM timeline_events
		WHERE invoice_id = ?
		ORDER BY seq
	`

	rows, err := sqlite.ExecutorFor(ctx, r.db).QueryContext(ctx, query, invoiceID)
	if err != nil {
		r.logger.Error("Failed to list timeline", zap.String("invoice_id", invoiceID), zap.Error(err))
		return nil, fmt.Errorf("failed to list timeline: %w", err)
	}
	defer rows.Close()

	var events []*event.Event
	for rows.Next() {
		var evt event.Event
		var eventType, from, to, payload string
		if err := rows.Scan(
			&evt.Seq,
			&evt.ID,
			&evt.InvoiceID,
			&eventType,
			&from,
			&to,
			&evt.ActorID,
			&payload,
			&evt.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan timeline event: %w", err)
		}

		evt.Type = event.Type(eventType)
		evt.FromStatus = workflow.Status(from)
		evt.ToStatus = workflow.Status(to)
		evt.Payload = map[string]interface{}{}
		if err := json.Unmarshal([]byte(payload), &evt.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode event payload: %w", err)
		}
		events = append(events, &evt)
	}
	return events, rows.Err()
}

// Verify interface compliance
var _ port.TimelineRepository = (*TimelineRepository)(nil)

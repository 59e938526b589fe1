package workflow

import "context"

// BulkTransition applies the same transition to each invoice independently.
// One failure does not stop the others.
func (e *engineImpl) BulkTransition(ctx context.Context, req BulkRequest) []BulkItemResult {
	results := make([]BulkItemResult, 0, len(req.InvoiceIDs))
	seen := make(map[string]bool, len(req.InvoiceIDs))

	for _, id := range req.InvoiceIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		wf, err := e.Transition(ctx, TransitionRequest{
			InvoiceID: id,
			ActorID:   req.ActorID,
			Target:    req.Target,
			Fields:    req.Fields,
		})
		results = append(results, BulkItemResult{InvoiceID: id, Workflow: wf, Err: err})
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	e.logger.Info("Bulk transition finished",
		"actor", req.ActorID,
		"to", req.Target,
		"total", len(results),
		"failed", failed,
	)

	return results
}

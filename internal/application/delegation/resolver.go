// Package delegation resolves who currently holds a manager's approval authority.
package delegation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/garyjia/invoice-workflow/internal/application/port"
	"github.com/garyjia/invoice-workflow/internal/domain/entity"
)

var (
	// ErrInvalidRange is returned when date_from is after date_to
	ErrInvalidRange = errors.New("delegation start date is after end date")

	// ErrSelfDelegation is returned when a user delegates to themselves
	ErrSelfDelegation = errors.New("cannot delegate to yourself")

	// ErrOverlap is returned when a delegator already has a delegation in the range
	ErrOverlap = errors.New("delegation overlaps an existing delegation")
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// Resolver computes the effective approver of a manager on a given day
type Resolver struct {
	repo   port.DelegationRepository
	logger Logger
}

// NewResolver creates a new delegation resolver
func NewResolver(repo port.DelegationRepository, logger Logger) *Resolver {
	return &Resolver{repo: repo, logger: logger}
}

// EffectiveApprover returns the active delegate of managerID on the given day,
// or managerID itself when no delegation covers that day.
func (r *Resolver) EffectiveApprover(ctx context.Context, managerID string, on time.Time) (string, error) {
	if managerID == "" {
		return "", nil
	}

	delegations, err := r.repo.ListByDelegator(ctx, managerID)
	if err != nil {
		return "", fmt.Errorf("list delegations: %w", err)
	}

	chosen, active := Pick(delegations, on)
	if chosen == nil {
		return managerID, nil
	}

	if active > 1 && r.logger != nil {
		r.logger.Warn("Overlapping delegations, using most recent",
			"delegator", managerID,
			"active_count", active,
			"delegation_id", chosen.ID,
			"delegate", chosen.DelegateUserID,
		)
	}

	return chosen.DelegateUserID, nil
}

// Pick returns the most recently created delegation covering the day and the
// number of delegations that cover it.
func Pick(delegations []*entity.Delegation, on time.Time) (*entity.Delegation, int) {
	active := make([]*entity.Delegation, 0, len(delegations))
	for _, d := range delegations {
		if d != nil && d.Covers(on) {
			active = append(active, d)
		}
	}
	if len(active) == 0 {
		return nil, 0
	}

	sort.SliceStable(active, func(i, j int) bool {
		if active[i].CreatedAt.Equal(active[j].CreatedAt) {
			return active[i].ID > active[j].ID
		}
		return active[i].CreatedAt.After(active[j].CreatedAt)
	})

	return active[0], len(active)
}

// Validate checks a new delegation against the delegator's existing ones
func Validate(candidate *entity.Delegation, existing []*entity.Delegation) error {
	if candidate.DelegatorUserID == candidate.DelegateUserID {
		return ErrSelfDelegation
	}
	if entity.TruncateDay(candidate.DateFrom).After(entity.TruncateDay(candidate.DateTo)) {
		return ErrInvalidRange
	}
	for _, d := range existing {
		if d.DelegatorUserID == candidate.DelegatorUserID && d.Overlaps(*candidate) {
			return fmt.Errorf("%w: %s (%s to %s)", ErrOverlap, d.ID,
				d.DateFrom.Format(entity.DateLayout), d.DateTo.Format(entity.DateLayout))
		}
	}
	return nil
}

package dispatcher

import (
	"context"
	"fmt"

	domainwf "github.com/garyjia/invoice-workflow/internal/domain/workflow"
)

// authorizeResend allows manual resends by active admins, and by active
// operations-room members when opsRoom is set
func (d *effectDispatcher) authorizeResend(ctx context.Context, actorID string, opsRoom bool) error {
	if actorID == "" {
		return domainwf.NewTransitionError(domainwf.ReasonForbiddenRole, "an actor is required")
	}

	user, err := d.deps.Users.GetByID(ctx, actorID)
	if err != nil {
		return fmt.Errorf("get actor: %w", err)
	}
	if user == nil || !user.Active {
		return domainwf.NewTransitionError(domainwf.ReasonForbiddenRole, "user %s cannot resend messages", actorID)
	}

	if user.Role == domainwf.RoleAdmin || (opsRoom && user.OperationsRoom) {
		return nil
	}
	return domainwf.NewTransitionError(domainwf.ReasonForbiddenRole, "only admins can resend messages")
}

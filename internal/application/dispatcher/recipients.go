package dispatcher

import (
	"context"
	"fmt"

	"github.com/garyjia/invoice-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/invoice-workflow/internal/domain/workflow"
)

// resolveRecipients looks up the current addresses of the roles
func (d *effectDispatcher) resolveRecipients(ctx context.Context, invoice *entity.Invoice, wf *entity.Workflow, roles []RecipientRole) ([]string, error) {
	seen := make(map[string]bool)
	var out []string

	add := func(users ...*entity.User) {
		for _, u := range users {
			if u == nil || !u.Active || u.Email == "" || seen[u.Email] {
				continue
			}
			seen[u.Email] = true
			out = append(out, u.Email)
		}
	}

	for _, role := range roles {
		switch role {
		case RecipientManager:
			if wf == nil || wf.ManagerUserID == "" {
				continue
			}
			approverID, err := d.deps.Resolver.EffectiveApprover(ctx, wf.ManagerUserID, d.now())
			if err != nil {
				return nil, fmt.Errorf("resolve approver: %w", err)
			}
			u, err := d.deps.Users.GetByID(ctx, approverID)
			if err != nil {
				return nil, fmt.Errorf("get approver: %w", err)
			}
			add(u)
		case RecipientSubmitter:
			u, err := d.deps.Users.GetByID(ctx, invoice.SubmitterID)
			if err != nil {
				return nil, fmt.Errorf("get submitter: %w", err)
			}
			add(u)
		case RecipientAdmins:
			users, err := d.deps.Users.ListByRole(ctx, domainwf.RoleAdmin)
			if err != nil {
				return nil, fmt.Errorf("list admins: %w", err)
			}
			add(users...)
		case RecipientFinance:
			users, err := d.deps.Users.ListByRole(ctx, domainwf.RoleFinance)
			if err != nil {
				return nil, fmt.Errorf("list finance: %w", err)
			}
			add(users...)
		case RecipientOperationsRoom:
			users, err := d.deps.Users.ListOperationsRoom(ctx)
			if err != nil {
				return nil, fmt.Errorf("list operations room: %w", err)
			}
			add(users...)
		}
	}

	return out, nil
}

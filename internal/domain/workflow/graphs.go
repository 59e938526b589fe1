package workflow

import "fmt"

var graphs map[Family]*Graph

func init() {
	graphs = map[Family]*Graph{
		FamilyGuest:      buildManagedGraph(FamilyGuest),
		FamilyContractor: buildManagedGraph(FamilyContractor),
		FamilyOther:      buildOtherGraph(),
	}
}

// GraphFor returns the transition graph of a family
func GraphFor(family Family) (*Graph, error) {
	g, ok := graphs[family]
	if !ok {
		return nil, fmt.Errorf("%w: unknown family %q", ErrInvalidTransition, family)
	}
	return g, nil
}

// buildManagedGraph builds the graph shared by guest and contractor invoices.
// Contractor invoices may additionally be released by the operations room.
func buildManagedGraph(family Family) *Graph {
	release := []ActorRule{ActorAdmin}
	if family == FamilyContractor {
		release = append(release, ActorOperationsRoom)
	}

	b := NewBuilder()

	b.Configure(StatusSubmitted).
		Permit(StatusPendingManager, ActorSystem, ActorAdmin)

	b.Configure(StatusPendingManager).
		PermitApproval(StatusApprovedByManager, ActorEffectiveApprover, ActorAdmin).
		PermitApproval(StatusRejected, ActorEffectiveApprover, ActorAdmin)

	b.Configure(StatusRejected).
		Permit(StatusPendingManager, ActorSubmitter, ActorAdmin)

	b.Configure(StatusApprovedByManager).
		Permit(StatusPendingAdmin, ActorSystem, ActorAdmin).
		PermitApproval(StatusReadyForPayment, release...).
		Permit(StatusRejected, ActorAdmin)

	b.Configure(StatusPendingAdmin).
		PermitApproval(StatusReadyForPayment, release...).
		Permit(StatusRejected, ActorAdmin)

	b.Configure(StatusReadyForPayment).
		PermitApproval(StatusPaid, ActorAdmin, ActorFinance).
		Permit(StatusArchived, ActorAdmin)

	b.Configure(StatusPaid).
		Permit(StatusArchived, ActorAdmin)

	return b.Build(family)
}

// buildOtherGraph builds the graph for invoices that skip manager approval
func buildOtherGraph() *Graph {
	b := NewBuilder()

	b.Configure(StatusSubmitted).
		PermitApproval(StatusReadyForPayment, ActorSystem, ActorAdmin)

	b.Configure(StatusReadyForPayment).
		PermitApproval(StatusPaid, ActorAdmin, ActorFinance).
		Permit(StatusArchived, ActorAdmin)

	b.Configure(StatusPaid).
		Permit(StatusArchived, ActorAdmin)

	return b.Build(FamilyOther)
}

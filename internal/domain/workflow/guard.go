package workflow

import (
	"strings"
	"time"
)

// TransitionFields carries the caller-supplied data of a transition
type TransitionFields struct {
	RejectionReason             string
	PaymentReference            string
	PaidDate                    time.Time
	ManagerUserID               string
	ManagerConfirmedBankDetails bool
}

// GuardInput is everything the guard needs to decide; it never reads storage
type GuardInput struct {
	Actor               Actor
	Family              Family
	SubmitterID         string
	Current             Status
	Target              Status
	ManagerUserID       string
	EffectiveApproverID string
	NeedsReview         bool
	Fields              TransitionFields
}

// Decision is the guard outcome
type Decision struct {
	Allowed bool
	Edge    Edge
	Reason  DenyReason
	Message string
}

// Err returns nil for an allowed decision and a *TransitionError otherwise
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &TransitionError{Reason: d.Reason, Message: d.Message}
}

func deny(reason DenyReason, message string) Decision {
	return Decision{Reason: reason, Message: message}
}

// Evaluate applies the transition rules in order and returns the first denial
func Evaluate(in GuardInput) Decision {
	graph, err := GraphFor(in.Family)
	if err != nil {
		return deny(ReasonInvalidTransition, err.Error())
	}

	edge, ok := graph.Edge(in.Current, in.Target)
	if !ok {
		return deny(ReasonInvalidTransition,
			"cannot move a "+in.Family.String()+" invoice from "+in.Current.String()+" to "+in.Target.String())
	}

	// Manager stage: only the effective approver (or an admin) may decide.
	if edge.Has(ActorEffectiveApprover) && !allows(edge, in) {
		return deny(ReasonForbiddenRole, "only the assigned manager or their delegate can act on this invoice")
	}

	if edge.Approval && in.Actor.ID == in.SubmitterID && !in.Actor.IsAdmin() {
		return deny(ReasonSelfApproval, "you cannot approve your own invoice")
	}

	if in.Family == FamilyGuest && in.Target == StatusApprovedByManager &&
		in.NeedsReview && !in.Fields.ManagerConfirmedBankDetails {
		return deny(ReasonMissingPrecondition, "bank details need manager confirmation before approval")
	}

	if in.Target == StatusRejected && strings.TrimSpace(in.Fields.RejectionReason) == "" {
		return deny(ReasonMissingRequiredField, "a rejection reason is required")
	}

	if in.Target == StatusPendingManager && in.Fields.ManagerUserID == "" && in.ManagerUserID == "" {
		return deny(ReasonMissingRequiredField, "a manager must be assigned")
	}

	if in.Target == StatusPaid {
		if strings.TrimSpace(in.Fields.PaymentReference) == "" {
			return deny(ReasonMissingRequiredField, "a payment reference is required")
		}
		if in.Fields.PaidDate.IsZero() {
			return deny(ReasonMissingRequiredField, "a paid date is required")
		}
	}

	if !edge.Has(ActorEffectiveApprover) && !allows(edge, in) {
		return deny(ReasonForbiddenRole, "your role cannot move this invoice to "+in.Target.String())
	}

	return Decision{Allowed: true, Edge: edge}
}

func allows(edge Edge, in GuardInput) bool {
	if !in.Actor.Active {
		return false
	}
	for _, rule := range edge.Actors {
		if matches(rule, in) {
			return true
		}
	}
	return false
}

func matches(rule ActorRule, in GuardInput) bool {
	switch rule {
	case ActorSystem:
		return in.Actor.Role == RoleSystem
	case ActorAdmin:
		return in.Actor.Role == RoleAdmin
	case ActorFinance:
		return in.Actor.Role == RoleFinance
	case ActorSubmitter:
		return in.Actor.ID != "" && in.Actor.ID == in.SubmitterID
	case ActorEffectiveApprover:
		return in.EffectiveApproverID != "" && in.Actor.ID == in.EffectiveApproverID
	case ActorOperationsRoom:
		return in.Actor.OperationsRoom
	}
	return false
}

package dispatcher

import (
	"fmt"

	"github.com/garyjia/invoice-workflow/internal/domain/entity"
	"github.com/garyjia/invoice-workflow/internal/domain/event"
	domainwf "github.com/garyjia/invoice-workflow/internal/domain/workflow"
)

// StatusChange is a committed transition handed to the dispatcher
type StatusChange struct {
	Invoice *entity.Invoice
	Before  entity.Workflow
	After   entity.Workflow
	Event   *event.Event
	ActorID string
}

// EffectKind distinguishes plain notifications from generated documents
type EffectKind string

const (
	EffectNotify      EffectKind = "notify"
	EffectBookingForm EffectKind = "booking_form"
)

// RecipientRole is resolved to addresses right before sending
type RecipientRole string

const (
	RecipientManager        RecipientRole = "manager"
	RecipientSubmitter      RecipientRole = "submitter"
	RecipientAdmins         RecipientRole = "admins"
	RecipientFinance        RecipientRole = "finance"
	RecipientOperationsRoom RecipientRole = "operations_room"
)

// Notification templates
const (
	TemplateApprovalRequested     = "approval_requested"
	TemplateResubmitted           = "resubmitted"
	TemplateApprovedByManager     = "approved_by_manager"
	TemplateRejected              = "rejected"
	TemplateReadyForPayment       = "ready_for_payment"
	TemplatePaid                  = "paid"
	TemplateSLAReminder           = "sla_reminder"
	TemplateBookingFormOperations = "booking_form_operations"
	TemplateBookingFormContractor = "booking_form_contractor"
)

// Effect is one side effect of a transition
type Effect struct {
	Kind       EffectKind
	Template   string
	Recipients []RecipientRole
}

// Name identifies the effect in logs and metrics
func (e Effect) Name() string {
	if e.Kind == EffectBookingForm {
		return entity.BookingFormEffectKey
	}
	return e.Template
}

// Rule binds a transition pattern to its effects. An empty From matches any status.
type Rule struct {
	Families []domainwf.Family
	From     []domainwf.Status
	To       domainwf.Status
	Effects  []Effect
}

// Matches reports whether the rule applies to the transition
func (r Rule) Matches(family domainwf.Family, from, to domainwf.Status) bool {
	if r.To != to {
		return false
	}
	if !containsFamily(r.Families, family) {
		return false
	}
	if len(r.From) == 0 {
		return true
	}
	for _, s := range r.From {
		if s == from {
			return true
		}
	}
	return false
}

func containsFamily(families []domainwf.Family, f domainwf.Family) bool {
	for _, x := range families {
		if x == f {
			return true
		}
	}
	return false
}

var (
	managed = []domainwf.Family{domainwf.FamilyGuest, domainwf.FamilyContractor}
	all     = []domainwf.Family{domainwf.FamilyGuest, domainwf.FamilyContractor, domainwf.FamilyOther}
)

// DefaultRules is the side-effect table of the invoice lifecycle
var DefaultRules = []Rule{
	{
		Families: managed,
		From:     []domainwf.Status{domainwf.StatusSubmitted},
		To:       domainwf.StatusPendingManager,
		Effects:  []Effect{{Kind: EffectNotify, Template: TemplateApprovalRequested, Recipients: []RecipientRole{RecipientManager}}},
	},
	{
		Families: managed,
		From:     []domainwf.Status{domainwf.StatusRejected},
		To:       domainwf.StatusPendingManager,
		Effects:  []Effect{{Kind: EffectNotify, Template: TemplateResubmitted, Recipients: []RecipientRole{RecipientManager}}},
	},
	{
		Families: []domainwf.Family{domainwf.FamilyGuest},
		From:     []domainwf.Status{domainwf.StatusPendingManager},
		To:       domainwf.StatusApprovedByManager,
		Effects:  []Effect{{Kind: EffectNotify, Template: TemplateApprovedByManager, Recipients: []RecipientRole{RecipientAdmins}}},
	},
	{
		Families: []domainwf.Family{domainwf.FamilyContractor},
		From:     []domainwf.Status{domainwf.StatusPendingManager},
		To:       domainwf.StatusApprovedByManager,
		Effects: []Effect{
			{Kind: EffectNotify, Template: TemplateApprovedByManager, Recipients: []RecipientRole{RecipientAdmins, RecipientOperationsRoom}},
			{Kind: EffectBookingForm},
		},
	},
	{
		Families: all,
		To:       domainwf.StatusRejected,
		Effects:  []Effect{{Kind: EffectNotify, Template: TemplateRejected, Recipients: []RecipientRole{RecipientSubmitter}}},
	},
	{
		Families: all,
		To:       domainwf.StatusReadyForPayment,
		Effects:  []Effect{{Kind: EffectNotify, Template: TemplateReadyForPayment, Recipients: []RecipientRole{RecipientFinance}}},
	},
	{
		Families: all,
		From:     []domainwf.Status{domainwf.StatusReadyForPayment},
		To:       domainwf.StatusPaid,
		Effects:  []Effect{{Kind: EffectNotify, Template: TemplatePaid, Recipients: []RecipientRole{RecipientSubmitter}}},
	},
}

// EffectsFor returns the effects of a transition in rule order
func EffectsFor(rules []Rule, family domainwf.Family, from, to domainwf.Status) []Effect {
	var out []Effect
	for _, r := range rules {
		if r.Matches(family, from, to) {
			out = append(out, r.Effects...)
		}
	}
	return out
}

// IdempotencyKey derives the dispatch key of an effect on an invoice
func IdempotencyKey(invoiceID, effectKey string) string {
	return fmt.Sprintf("%s:%s", invoiceID, effectKey)
}

// NotificationEffectKey scopes a notification to the transition that caused it
func NotificationEffectKey(template, eventID string) string {
	return fmt.Sprintf("%s:%s", template, eventID)
}

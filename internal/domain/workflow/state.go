package workflow

// Status represents a workflow status in the invoice lifecycle
type Status string

const (
	StatusSubmitted         Status = "submitted"
	StatusPendingManager    Status = "pending_manager"
	StatusApprovedByManager Status = "approved_by_manager"
	StatusPendingAdmin      Status = "pending_admin"
	StatusRejected          Status = "rejected"
	StatusReadyForPayment   Status = "ready_for_payment"
	StatusPaid              Status = "paid"
	StatusArchived          Status = "archived"
)

// Statuses lists every workflow status in lifecycle order
func Statuses() []Status {
	return []Status{
		StatusSubmitted,
		StatusPendingManager,
		StatusApprovedByManager,
		StatusPendingAdmin,
		StatusRejected,
		StatusReadyForPayment,
		StatusPaid,
		StatusArchived,
	}
}

// IsTerminal returns true if no further transitions are possible
func (s Status) IsTerminal() bool {
	return s == StatusArchived
}

// IsLocked returns true if invoice data can no longer be edited
func (s Status) IsLocked() bool {
	return s == StatusPaid || s == StatusArchived
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// IsValid returns true if the status is a known workflow status
func (s Status) IsValid() bool {
	switch s {
	case StatusSubmitted, StatusPendingManager, StatusApprovedByManager, StatusPendingAdmin,
		StatusRejected, StatusReadyForPayment, StatusPaid, StatusArchived:
		return true
	}
	return false
}

// ParseStatus converts a raw string into a Status
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.IsValid() {
		return "", ErrInvalidStatus
	}
	return s, nil
}

package entity

import "time"

// DateLayout is the storage and wire format of calendar dates
const DateLayout = "2006-01-02"

// Delegation grants a delegate the approval authority of a delegator for a date range
type Delegation struct {
	ID              string    `json:"id"`
	DelegatorUserID string    `json:"delegator_user_id"`
	DelegateUserID  string    `json:"delegate_user_id"`
	DateFrom        time.Time `json:"date_from"`
	DateTo          time.Time `json:"date_to"`
	CreatedAt       time.Time `json:"created_at"`
}

// Covers reports whether the day falls inside the inclusive date range
func (d Delegation) Covers(day time.Time) bool {
	day = TruncateDay(day)
	return !day.Before(TruncateDay(d.DateFrom)) && !day.After(TruncateDay(d.DateTo))
}

// Overlaps reports whether two delegations share at least one day
func (d Delegation) Overlaps(other Delegation) bool {
	return !TruncateDay(d.DateTo).Before(TruncateDay(other.DateFrom)) &&
		!TruncateDay(other.DateTo).Before(TruncateDay(d.DateFrom))
}

// TruncateDay drops the time of day, keeping the calendar date in UTC
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

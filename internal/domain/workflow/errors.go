package workflow

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned when the edge does not exist for the family
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrForbidden is returned when the actor may not perform the transition
	ErrForbidden = errors.New("forbidden")

	// ErrMissingPrecondition is returned when a data precondition is not met
	ErrMissingPrecondition = errors.New("missing precondition")

	// ErrMissingRequiredField is returned when a transition lacks a required field
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrConflict is returned when the version token no longer matches the ledger
	ErrConflict = errors.New("this invoice was just updated, refresh and try again")

	// ErrSideEffectFailure is returned when a post-commit side effect fails
	ErrSideEffectFailure = errors.New("side effect failed")

	// ErrNotFound is returned when the invoice or workflow row does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidStatus is returned when a status string is not recognised
	ErrInvalidStatus = errors.New("invalid status")
)

// DenyReason is the structured reason attached to a guard denial
type DenyReason string

const (
	ReasonForbiddenRole        DenyReason = "forbidden_role"
	ReasonSelfApproval         DenyReason = "self_approval"
	ReasonMissingPrecondition  DenyReason = "missing_precondition"
	ReasonInvalidTransition    DenyReason = "invalid_transition"
	ReasonMissingRequiredField DenyReason = "missing_required_field"
)

// Kind maps the deny reason onto the error taxonomy
func (r DenyReason) Kind() error {
	switch r {
	case ReasonForbiddenRole, ReasonSelfApproval:
		return ErrForbidden
	case ReasonMissingPrecondition:
		return ErrMissingPrecondition
	case ReasonMissingRequiredField:
		return ErrMissingRequiredField
	default:
		return ErrInvalidTransition
	}
}

// TransitionError is returned for every guard denial
type TransitionError struct {
	Reason  DenyReason
	Message string
}

// NewTransitionError builds a TransitionError from a deny reason
func NewTransitionError(reason DenyReason, format string, args ...interface{}) *TransitionError {
	return &TransitionError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

// Unwrap lets errors.Is match the taxonomy sentinel
func (e *TransitionError) Unwrap() error {
	return e.Reason.Kind()
}

// ReasonOf extracts the deny reason from an error chain
func ReasonOf(err error) (DenyReason, bool) {
	var te *TransitionError
	if errors.As(err, &te) {
		return te.Reason, true
	}
	return "", false
}

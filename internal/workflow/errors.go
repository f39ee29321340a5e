package workflow

import (
	"errors"
	"fmt"

	"edufam/academics/internal/model"
)

const (
	ErrInvalidRequest      = "invalid_request"
	ErrInvalidRelationship = "invalid_relationship"
	ErrAlreadyEnrolled     = "already_enrolled"
	ErrAlreadyAssigned     = "subject_already_assigned"
	ErrSameClass           = "same_class"
	ErrNoStudents          = "no_students_to_promote"
	ErrGradeNotFound       = "grade_not_found"
	ErrInvalidTransition   = "invalid_transition"
	ErrStatusConflict      = "status_conflict"
)

// Error is a domain failure. Callers can show Message; Details carries per-check messages.
type Error struct {
	Code    string   `json:"error"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return e.Message
}

// Code extracts the domain code from err, or "" for infrastructure failures.
func Code(err error) string {
	var domain *Error
	if errors.As(err, &domain) {
		return domain.Code
	}
	return ""
}

func invalidTransition(from, to model.GradeStatus) *Error {
	return &Error{
		Code:    ErrInvalidTransition,
		Message: fmt.Sprintf("invalid status transition from %s to %s", from, to),
	}
}

package appointments

import (
	"errors"
	"strings"
)

var (
	// ErrBookingFailed wraps any failure inside the booking workflow.
	ErrBookingFailed = errors.New("appointments: booking failed")
	// ErrNotFound is returned when an appointment or request id is unknown.
	ErrNotFound = errors.New("appointments: not found")
	// ErrInvalidStatus is returned for status values outside the lifecycle.
	ErrInvalidStatus = errors.New("appointments: invalid status")
)

// MissingInfoMessage is the user-facing message for incomplete requests.
const MissingInfoMessage = "Missing required appointment information"

// ValidationError lists the required request fields that were empty.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "appointments: missing required fields: " + strings.Join(e.Fields, ", ")
}

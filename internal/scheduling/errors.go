package scheduling

import "errors"

var (
	// ErrInvalidTime is returned when a time-of-day is not in "H:MM AM/PM" form.
	ErrInvalidTime = errors.New("scheduling: invalid time of day")
	// ErrInvalidDate is returned when a calendar date cannot be parsed.
	ErrInvalidDate = errors.New("scheduling: invalid date")
)

package scheduling

import (
	"fmt"
	"time"
)

// DayHours is the open window for one day. A nil *DayHours means closed.
type DayHours struct {
	Open  string `json:"open"`  // "09:00"
	Close string `json:"close"` // "18:00"
}

// OperatingHours describes when the clinic takes appointments.
type OperatingHours struct {
	Weekdays *DayHours `json:"weekdays,omitempty"`
	Saturday *DayHours `json:"saturday,omitempty"`
	Sunday   *DayHours `json:"sunday,omitempty"`
	// LunchHour is skipped entirely, both HH:00 and HH:30. Negative disables it.
	LunchHour       int `json:"lunch_hour"`
	SlotDurationMin int `json:"slot_duration_minutes"`
}

// DefaultOperatingHours returns the clinic schedule: weekdays 9-18, Saturday
// 9-14, closed Sunday, lunch at noon, 30 minute slots.
func DefaultOperatingHours() OperatingHours {
	return OperatingHours{
		Weekdays:        &DayHours{Open: "09:00", Close: "18:00"},
		Saturday:        &DayHours{Open: "09:00", Close: "14:00"},
		Sunday:          nil,
		LunchHour:       12,
		SlotDurationMin: 30,
	}
}

// HoursFor returns the window for a weekday, or nil when closed.
func (o OperatingHours) HoursFor(weekday time.Weekday) *DayHours {
	switch weekday {
	case time.Sunday:
		return o.Sunday
	case time.Saturday:
		return o.Saturday
	default:
		return o.Weekdays
	}
}

// hourRange converts a DayHours window into whole start and end hours.
func (d *DayHours) hourRange() (int, int, error) {
	open, err := time.Parse("15:04", d.Open)
	if err != nil {
		return 0, 0, fmt.Errorf("scheduling: parse open %q: %w", d.Open, err)
	}
	closing, err := time.Parse("15:04", d.Close)
	if err != nil {
		return 0, 0, fmt.Errorf("scheduling: parse close %q: %w", d.Close, err)
	}
	return open.Hour(), closing.Hour(), nil
}

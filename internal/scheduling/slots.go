package scheduling

import (
	"fmt"
	"time"
)

// TimeSlot is a bookable interval within operating hours.
type TimeSlot struct {
	Time            string `json:"time"` // "HH:MM"
	Available       bool   `json:"available"`
	DurationMinutes int    `json:"durationMinutes"`
}

// Generator builds the slot list for a date from fixed operating hours.
// Slots are never reconciled against existing bookings, so every slot is
// reported as available.
type Generator struct {
	hours OperatingHours
}

// NewGenerator returns a Generator for the given hours. Zero duration means 30.
func NewGenerator(hours OperatingHours) *Generator {
	if hours.SlotDurationMin <= 0 {
		hours.SlotDurationMin = 30
	}
	return &Generator{hours: hours}
}

// Hours exposes the configured operating hours.
func (g *Generator) Hours() OperatingHours {
	return g.hours
}

// AvailableSlots parses date and returns its slots.
func (g *Generator) AvailableSlots(date string) ([]TimeSlot, error) {
	day, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	return g.SlotsFor(day)
}

// SlotsFor returns slots for the calendar day of t. Closed days yield an empty slice.
func (g *Generator) SlotsFor(t time.Time) ([]TimeSlot, error) {
	window := g.hours.HoursFor(t.Weekday())
	if window == nil {
		return []TimeSlot{}, nil
	}
	start, end, err := window.hourRange()
	if err != nil {
		return nil, err
	}

	slots := make([]TimeSlot, 0, (end-start)*2)
	for hour := start; hour < end; hour++ {
		if hour == g.hours.LunchHour {
			continue
		}
		slots = append(slots, g.slot(hour, 0))
		if hour < end-1 {
			slots = append(slots, g.slot(hour, 30))
		}
	}
	return slots, nil
}

func (g *Generator) slot(hour, minute int) TimeSlot {
	return TimeSlot{
		Time:            fmt.Sprintf("%02d:%02d", hour, minute),
		Available:       true,
		DurationMinutes: g.hours.SlotDurationMin,
	}
}

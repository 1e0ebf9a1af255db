package scheduling

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

var clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})\s*([AaPp][Mm])$`)

// ParseClock parses a 12-hour "H:MM AM/PM" string into 24-hour hour and minute.
func ParseClock(time12h string) (hour, minute int, err error) {
	m := clockPattern.FindStringSubmatch(strings.TrimSpace(time12h))
	if m == nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTime, time12h)
	}
	hour, _ = strconv.Atoi(m[1])
	minute, _ = strconv.Atoi(m[2])
	if hour < 1 || hour > 12 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidTime, time12h)
	}

	pm := strings.EqualFold(m[3], "pm")
	switch {
	case hour == 12 && !pm:
		hour = 0
	case hour != 12 && pm:
		hour += 12
	}
	return hour, minute, nil
}

// To24Hour converts "H:MM AM/PM" into "HH:MM:SS".
func To24Hour(time12h string) (string, error) {
	hour, minute, err := ParseClock(time12h)
	if err != nil {
		return "", err
	}
	return formatClock(hour*60 + minute), nil
}

// AddMinutes adds minutes to a 12-hour time and returns the 24-hour result.
// The result wraps around midnight in both directions.
func AddMinutes(time12h string, minutes int) (string, error) {
	hour, minute, err := ParseClock(time12h)
	if err != nil {
		return "", err
	}
	total := (hour*60 + minute + minutes) % minutesPerDay
	if total < 0 {
		total += minutesPerDay
	}
	return formatClock(total), nil
}

// To12Hour renders a 24-hour clock value ("HH:MM" or "HH:MM:SS") as "H:MM AM/PM".
func To12Hour(time24h string) (string, error) {
	layout := "15:04"
	if strings.Count(time24h, ":") == 2 {
		layout = time.TimeOnly
	}
	t, err := time.Parse(layout, strings.TrimSpace(time24h))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidTime, time24h)
	}
	return t.Format("3:04 PM"), nil
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp and returns the
// calendar date at midnight UTC.
func ParseDate(date string) (time.Time, error) {
	date = strings.TrimSpace(date)
	if t, err := time.Parse(time.DateOnly, date); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, date); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
}

func formatClock(totalMinutes int) string {
	return fmt.Sprintf("%02d:%02d:00", totalMinutes/60, totalMinutes%60)
}

package appointments

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a booked appointment.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// LocalLayout is the zone-less clinic-local datetime format used for Start/End.
const LocalLayout = "2006-01-02T15:04:05"

// AppointmentRequest is the caller's booking intent.
type AppointmentRequest struct {
	PatientName   string `json:"patientName" validate:"required"`
	ContactNumber string `json:"contactNumber" validate:"required"`
	PreferredDate string `json:"preferredDate" validate:"required"`
	PreferredTime string `json:"preferredTime" validate:"required"`
	TreatmentType string `json:"treatmentType,omitempty"`
	IsUrgent      bool   `json:"isUrgent,omitempty"`
}

// Normalize trims surrounding whitespace from every text field.
func (r *AppointmentRequest) Normalize() {
	r.PatientName = strings.TrimSpace(r.PatientName)
	r.ContactNumber = strings.TrimSpace(r.ContactNumber)
	r.PreferredDate = strings.TrimSpace(r.PreferredDate)
	r.PreferredTime = strings.TrimSpace(r.PreferredTime)
	r.TreatmentType = strings.TrimSpace(r.TreatmentType)
}

// Appointment is the calendar event produced by a successful booking.
type Appointment struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Start          string     `json:"start"`
	End            string     `json:"end"`
	PatientName    string     `json:"patientName"`
	ContactNumber  string     `json:"contactNumber"`
	TreatmentType  string     `json:"treatmentType,omitempty"`
	Status         Status     `json:"status"`
	CreatedAt      time.Time  `json:"createdAt"`
	ReminderSentAt *time.Time `json:"reminderSentAt,omitempty"`

	// StartsAt is Start resolved in the clinic timezone.
	StartsAt time.Time `json:"-"`
}

// Date returns the calendar date portion of Start.
func (a *Appointment) Date() string {
	if len(a.Start) < len(time.DateOnly) {
		return a.Start
	}
	return a.Start[:len(time.DateOnly)]
}

// Clock returns the time-of-day portion of Start as "H:MM AM/PM".
func (a *Appointment) Clock() string {
	t, err := time.Parse(LocalLayout, a.Start)
	if err != nil {
		return a.Start
	}
	return t.Format("3:04 PM")
}

// AppointmentRecord is a pending appointment request captured by the direct
// HTTP surface without going through the booking workflow.
type AppointmentRecord struct {
	AppointmentRequest
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	ClinicID  string    `json:"clinicId"`
}

// RecordStatusPending is the only status a captured request ever carries.
const RecordStatusPending = "pending"

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	Date   string
	Status Status
	Limit  int
}

func (f ListFilter) matches(a *Appointment) bool {
	if f.Date != "" && a.Date() != f.Date {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	return true
}

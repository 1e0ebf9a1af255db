package calls

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// CallType classifies why the patient called.
type CallType string

const (
	TypeInquiry     CallType = "inquiry"
	TypeAppointment CallType = "appointment"
	TypeEmergency   CallType = "emergency"
	TypeFollowUp    CallType = "follow-up"
)

// Status is the lifecycle state of a call.
type Status string

const (
	StatusActive       Status = "active"
	StatusCompleted    Status = "completed"
	StatusDisconnected Status = "disconnected"
)

// Session records one phone interaction.
type Session struct {
	ID         string     `json:"id"`
	PatientID  string     `json:"patientId,omitempty"`
	StartTime  time.Time  `json:"startTime"`
	EndTime    *time.Time `json:"endTime,omitempty"`
	Duration   *int       `json:"duration,omitempty"` // seconds
	CallType   CallType   `json:"callType" validate:"required,oneof=inquiry appointment emergency follow-up"`
	Status     Status     `json:"status" validate:"required,oneof=active completed disconnected"`
	Transcript string     `json:"transcript,omitempty"`
	Outcome    string     `json:"outcome,omitempty"`
	UpdatedAt  *time.Time `json:"updatedAt,omitempty"`
}

// StartRequest is the body of POST /calls. Missing type and status default to
// inquiry and active.
type StartRequest struct {
	PatientID  string   `json:"patientId,omitempty"`
	CallType   CallType `json:"callType,omitempty"`
	Status     Status   `json:"status,omitempty"`
	Transcript string   `json:"transcript,omitempty"`
	Outcome    string   `json:"outcome,omitempty"`
}

// Update is the body of PUT /calls. Nil fields are left unchanged.
type Update struct {
	CallID     string     `json:"callId"`
	PatientID  *string    `json:"patientId,omitempty"`
	EndTime    *time.Time `json:"endTime,omitempty"`
	Duration   *int       `json:"duration,omitempty" validate:"omitempty,gte=0"`
	CallType   *CallType  `json:"callType,omitempty" validate:"omitempty,oneof=inquiry appointment emergency follow-up"`
	Status     *Status    `json:"status,omitempty" validate:"omitempty,oneof=active completed disconnected"`
	Transcript *string    `json:"transcript,omitempty"`
	Outcome    *string    `json:"outcome,omitempty"`
}

// Apply copies the set fields of u onto s.
func (u Update) Apply(s *Session) {
	if u.PatientID != nil {
		s.PatientID = *u.PatientID
	}
	if u.EndTime != nil {
		end := *u.EndTime
		s.EndTime = &end
	}
	if u.Duration != nil {
		d := *u.Duration
		s.Duration = &d
	}
	if u.CallType != nil {
		s.CallType = *u.CallType
	}
	if u.Status != nil {
		s.Status = *u.Status
	}
	if u.Transcript != nil {
		s.Transcript = *u.Transcript
	}
	if u.Outcome != nil {
		s.Outcome = *u.Outcome
	}
}

// Filter narrows List results by equality. Empty fields match everything.
type Filter struct {
	ID     string
	Status Status
}

func (f Filter) matches(s *Session) bool {
	if f.ID != "" && s.ID != f.ID {
		return false
	}
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	return true
}

var (
	// ErrNotFound is returned for unknown call ids.
	ErrNotFound = errors.New("calls: session not found")
	// ErrCallIDRequired is returned when an update names no call.
	ErrCallIDRequired = errors.New("calls: call id required")
)

// InvalidFieldError names the fields that failed validation.
type InvalidFieldError struct {
	Fields []string
}

func (e *InvalidFieldError) Error() string {
	return "calls: invalid fields: " + strings.Join(e.Fields, ", ")
}

var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}()

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return &InvalidFieldError{Fields: fields}
}

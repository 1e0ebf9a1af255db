package webhook

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/wolfman30/dental-receptionist/internal/appointments"
	"github.com/wolfman30/dental-receptionist/internal/assistant"
	"github.com/wolfman30/dental-receptionist/internal/scheduling"
)

// Event types sent by the voice platform.
const (
	TypeCallStarted  = "call-started"
	TypeCallEnded    = "call-ended"
	TypeFunctionCall = "function-call"
)

// Function names the assistant may invoke mid-call.
const (
	FuncBookAppointment   = "bookAppointment"
	FuncCheckAvailability = "checkAvailability"
	FuncGetClinicInfo     = "getClinicInfo"
	FuncSendConfirmation  = "sendConfirmation"
)

var (
	// ErrUnhandledEvent is returned for event types the router does not know.
	// It is logged and acknowledged, never surfaced to the caller.
	ErrUnhandledEvent = errors.New("webhook: unhandled event type")
	// ErrUnhandledFunction is returned for unknown function names.
	ErrUnhandledFunction = errors.New("webhook: unhandled function call")
	// ErrMissingParameter is returned when a function call lacks a required argument.
	ErrMissingParameter = errors.New("webhook: missing parameter")
)

// Event is the payload POSTed to /webhook.
type Event struct {
	// Type selects the branch: call-started, call-ended or function-call.
	Type string `json:"type"`
	// Call identifies the phone call the event belongs to.
	Call *Call `json:"call,omitempty"`
	// FunctionCall is set for function-call events.
	FunctionCall *FunctionCall `json:"functionCall,omitempty"`

	// End-of-call report fields, present on call-ended.
	EndedReason string              `json:"endedReason,omitempty"`
	Transcript  string              `json:"transcript,omitempty"`
	Summary     string              `json:"summary,omitempty"`
	Messages    []TranscriptMessage `json:"messages,omitempty"`
}

// Call is the voice platform's view of a phone call.
type Call struct {
	ID        string     `json:"id"`
	Type      string     `json:"type,omitempty"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
	Customer  *Customer  `json:"customer,omitempty"`
}

// Customer is the caller.
type Customer struct {
	Number string `json:"number,omitempty"`
	Name   string `json:"name,omitempty"`
}

// FunctionCall is a named action requested by the assistant.
type FunctionCall struct {
	Name       string          `json:"name"`
	Parameters json.RawMessage `json:"parameters,omitempty"`
}

// TranscriptMessage is one turn of the end-of-call transcript.
type TranscriptMessage struct {
	Role             string  `json:"role"`
	Message          string  `json:"message"`
	SecondsFromStart float64 `json:"secondsFromStart,omitempty"`
}

// Result is what a function call hands back to the assistant. Only the
// fields relevant to the invoked function are set.
type Result struct {
	Appointment      *appointments.Appointment `json:"appointment,omitempty"`
	ConfirmationSent *bool                     `json:"confirmationSent,omitempty"`
	Date             string                    `json:"date,omitempty"`
	Slots            []scheduling.TimeSlot     `json:"slots,omitempty"`
	Clinic           *assistant.ClinicInfo     `json:"clinic,omitempty"`
	Message          string                    `json:"message,omitempty"`
	Error            string                    `json:"error,omitempty"`
}

type availabilityParams struct {
	Date string `json:"date"`
}

type confirmationParams struct {
	ContactNumber      string `json:"contactNumber"`
	AppointmentDetails string `json:"appointmentDetails"`
}

func (e Event) callID() string {
	if e.Call == nil {
		return ""
	}
	return e.Call.ID
}

package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/dental-receptionist/internal/appointments"
	"github.com/wolfman30/dental-receptionist/internal/archive"
	"github.com/wolfman30/dental-receptionist/internal/assistant"
	"github.com/wolfman30/dental-receptionist/internal/calls"
	"github.com/wolfman30/dental-receptionist/internal/observability/metrics"
	"github.com/wolfman30/dental-receptionist/internal/scheduling"
	"github.com/wolfman30/dental-receptionist/pkg/logging"
)

var webhookTracer = otel.Tracer("receptionist.internal.webhook")

// Booker books validated appointment requests.
type Booker interface {
	Book(ctx context.Context, req appointments.AppointmentRequest) (*appointments.Appointment, error)
}

// SlotFinder lists bookable slots for a date.
type SlotFinder interface {
	AvailableSlots(date string) ([]scheduling.TimeSlot, error)
}

// ClinicSource supplies the static clinic fact sheet.
type ClinicSource interface {
	Clinic() assistant.ClinicInfo
}

// Notifier delivers booking confirmations and free-form details to patients.
type Notifier interface {
	SendConfirmation(ctx context.Context, appt *appointments.Appointment) bool
	SendDetails(ctx context.Context, contactNumber, details string) bool
}

// CallRecorder persists call sessions as calls start and end.
type CallRecorder interface {
	RecordStarted(ctx context.Context, callID string, callType calls.CallType, startedAt time.Time) (*calls.Session, error)
	RecordEnded(ctx context.Context, callID string, d calls.EndDetails) (*calls.Session, error)
	SetType(ctx context.Context, callID string, callType calls.CallType, outcome string) error
}

// TranscriptArchiver stores end-of-call transcripts.
type TranscriptArchiver interface {
	Enabled() bool
	ArchiveTranscript(ctx context.Context, rec *archive.TranscriptRecord) (string, error)
}

// RouterConfig wires the router's collaborators. Calls, Archive and Metrics
// are optional.
type RouterConfig struct {
	Booker   Booker
	Slots    SlotFinder
	Clinic   ClinicSource
	Notifier Notifier
	Calls    CallRecorder
	Archive  TranscriptArchiver
	Metrics  *metrics.ReceptionistMetrics
	ClinicID string
	Location *time.Location
	Logger   *logging.Logger
	Now      func() time.Time
}

// Router dispatches voice platform events by type and function name. It holds
// no state between events.
type Router struct {
	booker   Booker
	slots    SlotFinder
	clinic   ClinicSource
	notifier Notifier
	calls    CallRecorder
	archive  TranscriptArchiver
	metrics  *metrics.ReceptionistMetrics
	clinicID string
	location *time.Location
	logger   *logging.Logger
	now      func() time.Time
}

// NewRouter builds a Router. Booker, Slots, Clinic and Notifier are required.
func NewRouter(cfg RouterConfig) *Router {
	if cfg.Booker == nil || cfg.Slots == nil || cfg.Clinic == nil || cfg.Notifier == nil {
		panic("webhook: booker, slots, clinic and notifier are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Router{
		booker:   cfg.Booker,
		slots:    cfg.Slots,
		clinic:   cfg.Clinic,
		notifier: cfg.Notifier,
		calls:    cfg.Calls,
		archive:  cfg.Archive,
		metrics:  cfg.Metrics,
		clinicID: cfg.ClinicID,
		location: cfg.Location,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
}

// Dispatch handles one event. A non-nil Result may accompany an error so the
// assistant can relay what went wrong.
func (r *Router) Dispatch(ctx context.Context, evt Event) (*Result, error) {
	ctx, span := webhookTracer.Start(ctx, "webhook.dispatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("receptionist.event_type", evt.Type),
		attribute.String("receptionist.call_id", evt.callID()),
	)

	start := time.Now()
	var (
		res *Result
		err error
	)
	switch evt.Type {
	case TypeCallStarted:
		err = r.callStarted(ctx, evt)
	case TypeCallEnded:
		err = r.callEnded(ctx, evt)
	case TypeFunctionCall:
		res, err = r.functionCall(ctx, evt)
	default:
		err = fmt.Errorf("%w: %q", ErrUnhandledEvent, evt.Type)
	}

	status := "ok"
	switch {
	case errors.Is(err, ErrUnhandledEvent), errors.Is(err, ErrUnhandledFunction):
		status = "unhandled"
	case err != nil:
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, "webhook dispatch failed")
	}
	r.metrics.ObserveWebhookEvent(evt.Type, status, time.Since(start))
	return res, err
}

func (r *Router) callStarted(ctx context.Context, evt Event) error {
	id := evt.callID()
	r.logger.Info("voice call started", "call_id", id)
	if r.calls == nil || id == "" {
		return nil
	}
	startedAt := r.now()
	if evt.Call.StartedAt != nil {
		startedAt = *evt.Call.StartedAt
	}
	if _, err := r.calls.RecordStarted(ctx, id, calls.TypeInquiry, startedAt); err != nil {
		return fmt.Errorf("webhook: record call start: %w", err)
	}
	return nil
}

func (r *Router) callEnded(ctx context.Context, evt Event) error {
	id := evt.callID()
	r.logger.Info("voice call ended", "call_id", id, "reason", evt.EndedReason)
	if id == "" {
		return nil
	}

	endedAt := r.now()
	if evt.Call.EndedAt != nil {
		endedAt = *evt.Call.EndedAt
	}
	rec := &archive.TranscriptRecord{
		CallID:      id,
		ClinicID:    r.clinicID,
		CallType:    string(calls.TypeInquiry),
		EndedAt:     endedAt,
		EndedReason: evt.EndedReason,
		Summary:     evt.Summary,
		Transcript:  evt.Transcript,
	}
	if evt.Call.StartedAt != nil {
		rec.StartedAt = *evt.Call.StartedAt
	}
	if evt.Call.Customer != nil {
		rec.CallerHash = archive.HashCaller(evt.Call.Customer.Number)
	}
	for _, m := range evt.Messages {
		rec.Turns = append(rec.Turns, archive.Turn{Role: m.Role, Text: m.Message, Seconds: m.SecondsFromStart})
	}

	if r.calls != nil {
		session, err := r.calls.RecordEnded(ctx, id, calls.EndDetails{
			EndedAt:    endedAt,
			Reason:     evt.EndedReason,
			Transcript: evt.Transcript,
			Outcome:    evt.Summary,
		})
		if err != nil {
			return fmt.Errorf("webhook: record call end: %w", err)
		}
		rec.CallType = string(session.CallType)
		rec.StartedAt = session.StartTime
		if session.Duration != nil {
			rec.DurationSeconds = *session.Duration
		}
	}

	if r.archive != nil && r.archive.Enabled() {
		if _, err := r.archive.ArchiveTranscript(ctx, rec); err != nil {
			return fmt.Errorf("webhook: archive transcript: %w", err)
		}
	}
	return nil
}

func (r *Router) functionCall(ctx context.Context, evt Event) (*Result, error) {
	if evt.FunctionCall == nil {
		return nil, fmt.Errorf("%w: missing functionCall", ErrUnhandledFunction)
	}
	name := evt.FunctionCall.Name

	var (
		res *Result
		err error
	)
	switch name {
	case FuncBookAppointment:
		res, err = r.bookAppointment(ctx, evt)
	case FuncCheckAvailability:
		res, err = r.checkAvailability(evt.FunctionCall.Parameters)
	case FuncGetClinicInfo:
		info := r.clinic.Clinic()
		r.logger.Info("clinic info requested", "clinic", info.Name)
		res = &Result{Clinic: &info}
	case FuncSendConfirmation:
		res, err = r.sendConfirmation(ctx, evt.FunctionCall.Parameters)
	default:
		r.logger.Info("unhandled function call", "name", name, "call_id", evt.callID())
		r.metrics.ObserveFunctionCall(name, "unhandled")
		return nil, fmt.Errorf("%w: %q", ErrUnhandledFunction, name)
	}

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.metrics.ObserveFunctionCall(name, outcome)
	return res, err
}

func (r *Router) bookAppointment(ctx context.Context, evt Event) (*Result, error) {
	var req appointments.AppointmentRequest
	if err := decodeParams(evt.FunctionCall.Parameters, &req); err != nil {
		return &Result{Error: appointments.MissingInfoMessage}, err
	}
	if err := appointments.Validate(&req); err != nil {
		r.logger.Info("booking rejected", "call_id", evt.callID(), "error", err)
		return &Result{Error: appointments.MissingInfoMessage}, err
	}

	appt, err := r.booker.Book(ctx, req)
	if err != nil {
		return &Result{Error: "Failed to book appointment"}, err
	}
	sent := r.notifier.SendConfirmation(ctx, appt)
	r.logger.Info("appointment booked via voice", "appointment_id", appt.ID, "call_id", evt.callID(), "confirmation_sent", sent)

	if r.calls != nil && evt.callID() != "" {
		outcome := fmt.Sprintf("Appointment scheduled for %s", appt.PatientName)
		if err := r.calls.SetType(ctx, evt.callID(), calls.TypeAppointment, outcome); err != nil {
			r.logger.Warn("failed to tag call as appointment", "call_id", evt.callID(), "error", err)
		}
	}
	return &Result{
		Appointment:      appt,
		ConfirmationSent: &sent,
		Message:          fmt.Sprintf("Booked %s on %s at %s", appt.PatientName, appt.Date(), appt.Clock()),
	}, nil
}

func (r *Router) checkAvailability(raw json.RawMessage) (*Result, error) {
	var p availabilityParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.Date == "" {
		p.Date = r.now().In(r.location).Format(time.DateOnly)
	}
	slots, err := r.slots.AvailableSlots(p.Date)
	if err != nil {
		return &Result{Date: p.Date, Error: "Invalid date"}, fmt.Errorf("webhook: availability for %q: %w", p.Date, err)
	}
	r.logger.Info("availability checked", "date", p.Date, "slots", len(slots))
	return &Result{Date: p.Date, Slots: slots}, nil
}

func (r *Router) sendConfirmation(ctx context.Context, raw json.RawMessage) (*Result, error) {
	var p confirmationParams
	if err := decodeParams(raw, &p); err != nil {
		return nil, err
	}
	if p.ContactNumber == "" {
		return &Result{Error: "Contact number is required"}, fmt.Errorf("%w: contactNumber", ErrMissingParameter)
	}
	r.logger.Info("sending confirmation", "contact", p.ContactNumber)
	sent := r.notifier.SendDetails(ctx, p.ContactNumber, p.AppointmentDetails)
	return &Result{ConfirmationSent: &sent}, nil
}

func decodeParams(raw json.RawMessage, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("webhook: decode parameters: %w", err)
	}
	return nil
}

package appointments

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/dental-receptionist/internal/ids"
	"github.com/wolfman30/dental-receptionist/internal/observability/metrics"
	"github.com/wolfman30/dental-receptionist/internal/scheduling"
	"github.com/wolfman30/dental-receptionist/pkg/logging"
)

var appointmentsTracer = otel.Tracer("receptionist.internal.appointments")

// DefaultDuration is the length of every booked appointment.
const DefaultDuration = 30 * time.Minute

// Service turns validated requests into calendar events. It never checks the
// requested slot against existing bookings, so identical requests both succeed.
type Service struct {
	repo     Repository
	logger   *logging.Logger
	metrics  *metrics.ReceptionistMetrics
	location *time.Location
	duration time.Duration
	now      func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithLocation sets the clinic timezone used to resolve appointment start times.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithMetrics records bookings on m.
func WithMetrics(m *metrics.ReceptionistMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService constructs a booking service.
func NewService(repo Repository, logger *logging.Logger, opts ...Option) *Service {
	if repo == nil {
		panic("appointments: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &Service{
		repo:     repo,
		logger:   logger,
		location: time.UTC,
		duration: DefaultDuration,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Book creates and stores an appointment for req. The caller is expected to
// have validated req; any failure is returned wrapped in ErrBookingFailed.
func (s *Service) Book(ctx context.Context, req AppointmentRequest) (*Appointment, error) {
	ctx, span := appointmentsTracer.Start(ctx, "appointments.book")
	defer span.End()
	span.SetAttributes(
		attribute.String("receptionist.preferred_date", req.PreferredDate),
		attribute.Bool("receptionist.urgent", req.IsUrgent),
	)

	appt, err := s.build(req)
	if err == nil {
		err = s.repo.Create(ctx, appt)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "booking failed")
		s.metrics.ObserveBooking("failed")
		s.logger.Error("appointment booking failed", "patient", req.PatientName, "date", req.PreferredDate, "time", req.PreferredTime, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrBookingFailed, err)
	}

	span.SetAttributes(attribute.String("receptionist.appointment_id", appt.ID))
	s.metrics.ObserveBooking(string(appt.Status))
	s.logger.Info("appointment booked", "appointment_id", appt.ID, "start", appt.Start, "status", appt.Status)
	return appt, nil
}

func (s *Service) build(req AppointmentRequest) (*Appointment, error) {
	day, err := scheduling.ParseDate(req.PreferredDate)
	if err != nil {
		return nil, err
	}
	hour, minute, err := scheduling.ParseClock(req.PreferredTime)
	if err != nil {
		return nil, err
	}

	now := s.now()
	// Start and End keep the requested wall clock even when it falls in a
	// DST gap; StartsAt is the instant the clinic zone resolves it to.
	wall := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, time.UTC)
	start := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, s.location)

	status := StatusScheduled
	if req.IsUrgent {
		status = StatusConfirmed
	}
	return &Appointment{
		ID:            ids.New("apt", now),
		Title:         "Dental Appointment - " + req.PatientName,
		Start:         wall.Format(LocalLayout),
		End:           wall.Add(s.duration).Format(LocalLayout),
		PatientName:   req.PatientName,
		ContactNumber: req.ContactNumber,
		TreatmentType: req.TreatmentType,
		Status:        status,
		CreatedAt:     now.UTC(),
		StartsAt:      start,
	}, nil
}

// Get returns a stored appointment.
func (s *Service) Get(ctx context.Context, id string) (*Appointment, error) {
	return s.repo.Get(ctx, id)
}

// List returns stored appointments matching filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Appointment, error) {
	return s.repo.List(ctx, filter)
}

// UpdateStatus moves an appointment to status, e.g. cancelled by clinic staff.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status) (*Appointment, error) {
	appt, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	s.logger.Info("appointment status updated", "appointment_id", id, "status", status)
	return appt, nil
}

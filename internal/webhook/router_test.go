package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/dental-receptionist/internal/appointments"
	"github.com/wolfman30/dental-receptionist/internal/archive"
	"github.com/wolfman30/dental-receptionist/internal/assistant"
	"github.com/wolfman30/dental-receptionist/internal/calls"
	"github.com/wolfman30/dental-receptionist/internal/observability/metrics"
	"github.com/wolfman30/dental-receptionist/internal/scheduling"
	"github.com/wolfman30/dental-receptionist/pkg/logging"
)

type fakeNotifier struct {
	confirmed []*appointments.Appointment
	details   []string
}

func (n *fakeNotifier) SendConfirmation(_ context.Context, appt *appointments.Appointment) bool {
	n.confirmed = append(n.confirmed, appt)
	return true
}

func (n *fakeNotifier) SendDetails(_ context.Context, contact, details string) bool {
	n.details = append(n.details, contact+"|"+details)
	return true
}

type staticClinic struct{ info assistant.ClinicInfo }

func (c staticClinic) Clinic() assistant.ClinicInfo { return c.info }

type failingBooker struct{}

func (failingBooker) Book(context.Context, appointments.AppointmentRequest) (*appointments.Appointment, error) {
	return nil, appointments.ErrBookingFailed
}

type memS3 struct{ objects map[string][]byte }

func (m *memS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, _ := io.ReadAll(in.Body)
	m.objects[*in.Key] = body
	return &s3.PutObjectOutput{}, nil
}

func (m *memS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := m.objects[*in.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

var fixedNow = time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)

type testEnv struct {
	router   *Router
	repo     *appointments.InMemoryRepository
	notifier *fakeNotifier
	calls    *calls.Service
	s3       *memS3
	reg      *prometheus.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := appointments.NewInMemoryRepository()
	notifier := &fakeNotifier{}
	callSvc := calls.NewService(calls.NewMemoryRepository(), nil, logging.Default())
	store := &memS3{objects: make(map[string][]byte)}
	reg := prometheus.NewRegistry()
	m := metrics.NewReceptionistMetrics(reg)
	clock := func() time.Time { return fixedNow }

	r := NewRouter(RouterConfig{
		Booker:   appointments.NewService(repo, logging.Default(), appointments.WithClock(clock)),
		Slots:    scheduling.NewGenerator(scheduling.DefaultOperatingHours()),
		Clinic:   staticClinic{info: assistant.DefaultClinicInfo()},
		Notifier: notifier,
		Calls:    callSvc,
		Archive:  archive.NewStore(store, "archive-bucket", logging.Default()),
		Metrics:  m,
		ClinicID: "sai-clinic",
		Now:      clock,
	})
	return &testEnv{router: r, repo: repo, notifier: notifier, calls: callSvc, s3: store, reg: reg}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metricLoop:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metricLoop
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func functionEvent(t *testing.T, callID, name string, params any) Event {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	return Event{
		Type:         TypeFunctionCall,
		Call:         &Call{ID: callID},
		FunctionCall: &FunctionCall{Name: name, Parameters: raw},
	}
}

func TestDispatchBookAppointment(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.router.Dispatch(ctx, Event{Type: TypeCallStarted, Call: &Call{ID: "vapi-1"}})
	require.NoError(t, err)

	res, err := env.router.Dispatch(ctx, functionEvent(t, "vapi-1", FuncBookAppointment, map[string]any{
		"patientName":   "Jane",
		"contactNumber": "555",
		"preferredDate": "2025-01-10",
		"preferredTime": "9:00 AM",
		"isUrgent":      true,
	}))
	require.NoError(t, err)
	require.NotNil(t, res)
	require.NotNil(t, res.Appointment)
	assert.Equal(t, appointments.StatusConfirmed, res.Appointment.Status)
	assert.Equal(t, "2025-01-10T09:00:00", res.Appointment.Start)
	assert.Equal(t, "2025-01-10T09:30:00", res.Appointment.End)
	require.NotNil(t, res.ConfirmationSent)
	assert.True(t, *res.ConfirmationSent)
	require.Len(t, env.notifier.confirmed, 1)
	assert.Equal(t, res.Appointment.ID, env.notifier.confirmed[0].ID)

	sessions, err := env.calls.List(ctx, calls.Filter{ID: "vapi-1"})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, calls.TypeAppointment, sessions[0].CallType)

	assert.Equal(t, float64(1), counterValue(t, env.reg, "receptionist_webhook_function_calls_total", map[string]string{"function": FuncBookAppointment, "outcome": "ok"}))
}

func TestDispatchBookAppointmentRejectsMissingContact(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.router.Dispatch(ctx, functionEvent(t, "vapi-2", FuncBookAppointment, map[string]any{
		"patientName":   "Jane",
		"preferredDate": "2025-01-10",
		"preferredTime": "9:00 AM",
	}))
	var verr *appointments.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"contactNumber"}, verr.Fields)
	require.NotNil(t, res)
	assert.Equal(t, appointments.MissingInfoMessage, res.Error)

	booked, err := env.repo.List(ctx, appointments.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, booked)
	assert.Empty(t, env.notifier.confirmed)
}

func TestDispatchBookAppointmentBookingFailure(t *testing.T) {
	notifier := &fakeNotifier{}
	r := NewRouter(RouterConfig{
		Booker:   failingBooker{},
		Slots:    scheduling.NewGenerator(scheduling.DefaultOperatingHours()),
		Clinic:   staticClinic{},
		Notifier: notifier,
	})
	res, err := r.Dispatch(context.Background(), functionEvent(t, "", FuncBookAppointment, map[string]any{
		"patientName": "Jane", "contactNumber": "555", "preferredDate": "2025-01-10", "preferredTime": "25:00 PM",
	}))
	assert.ErrorIs(t, err, appointments.ErrBookingFailed)
	assert.Equal(t, "Failed to book appointment", res.Error)
	assert.Empty(t, notifier.confirmed)
}

func TestDispatchCheckAvailability(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.router.Dispatch(context.Background(), functionEvent(t, "", FuncCheckAvailability, map[string]string{"date": "2025-01-11"}))
	require.NoError(t, err)
	assert.Equal(t, "2025-01-11", res.Date)
	assert.Len(t, res.Slots, 7)

	res, err = env.router.Dispatch(context.Background(), functionEvent(t, "", FuncCheckAvailability, map[string]string{"date": "2025-01-05"}))
	require.NoError(t, err)
	assert.Empty(t, res.Slots)

	res, err = env.router.Dispatch(context.Background(), functionEvent(t, "", FuncCheckAvailability, map[string]string{}))
	require.NoError(t, err)
	assert.Equal(t, "2025-01-10", res.Date)

	_, err = env.router.Dispatch(context.Background(), functionEvent(t, "", FuncCheckAvailability, map[string]string{"date": "next tuesday"}))
	assert.ErrorIs(t, err, scheduling.ErrInvalidDate)
}

func TestDispatchGetClinicInfo(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.router.Dispatch(context.Background(), functionEvent(t, "", FuncGetClinicInfo, nil))
	require.NoError(t, err)
	require.NotNil(t, res.Clinic)
	assert.Equal(t, assistant.DefaultClinicInfo().Name, res.Clinic.Name)
}

func TestDispatchSendConfirmation(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.router.Dispatch(context.Background(), functionEvent(t, "", FuncSendConfirmation, map[string]string{
		"contactNumber":      "+15550100100",
		"appointmentDetails": "Cleaning on Friday at 9:00 AM",
	}))
	require.NoError(t, err)
	require.NotNil(t, res.ConfirmationSent)
	assert.Equal(t, []string{"+15550100100|Cleaning on Friday at 9:00 AM"}, env.notifier.details)

	_, err = env.router.Dispatch(context.Background(), functionEvent(t, "", FuncSendConfirmation, map[string]string{}))
	assert.ErrorIs(t, err, ErrMissingParameter)
}

func TestDispatchUnhandled(t *testing.T) {
	env := newTestEnv(t)

	res, err := env.router.Dispatch(context.Background(), functionEvent(t, "", "transferCall", nil))
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrUnhandledFunction)

	_, err = env.router.Dispatch(context.Background(), Event{Type: "speech-update"})
	assert.ErrorIs(t, err, ErrUnhandledEvent)
	assert.Equal(t, float64(1), counterValue(t, env.reg, "receptionist_webhook_events_total", map[string]string{"event_type": "speech-update", "status": "unhandled"}))
}

func TestDispatchCallLifecycleArchivesTranscript(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	started := fixedNow.Add(-3 * time.Minute)

	_, err := env.router.Dispatch(ctx, Event{Type: TypeCallStarted, Call: &Call{ID: "vapi-9", StartedAt: &started}})
	require.NoError(t, err)

	_, err = env.router.Dispatch(ctx, Event{
		Type:        TypeCallEnded,
		Call:        &Call{ID: "vapi-9", Customer: &Customer{Number: "+15550100100"}},
		EndedReason: "customer-ended-call",
		Transcript:  "AI: Sai Clinic, how can I help?",
		Summary:     "Caller asked about hours",
		Messages:    []TranscriptMessage{{Role: "bot", Message: "Sai Clinic, how can I help?"}},
	})
	require.NoError(t, err)

	sessions, err := env.calls.List(ctx, calls.Filter{ID: "vapi-9"})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, calls.StatusCompleted, sessions[0].Status)
	assert.Equal(t, 180, *sessions[0].Duration)

	data, ok := env.s3.objects[archive.ObjectKey("vapi-9", fixedNow)]
	require.True(t, ok, "transcript should be archived")
	var rec archive.TranscriptRecord
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, 180, rec.DurationSeconds)
	assert.Equal(t, "sai-clinic", rec.ClinicID)
	assert.Equal(t, archive.HashCaller("+15550100100"), rec.CallerHash)
	assert.Len(t, rec.Turns, 1)
}

func TestDispatchCallEventsWithoutRecorder(t *testing.T) {
	r := NewRouter(RouterConfig{
		Booker:   failingBooker{},
		Slots:    scheduling.NewGenerator(scheduling.DefaultOperatingHours()),
		Clinic:   staticClinic{},
		Notifier: &fakeNotifier{},
	})
	_, err := r.Dispatch(context.Background(), Event{Type: TypeCallStarted, Call: &Call{ID: "a"}})
	assert.NoError(t, err)
	_, err = r.Dispatch(context.Background(), Event{Type: TypeCallEnded})
	assert.NoError(t, err)
	assert.False(t, errors.Is(err, ErrUnhandledEvent))
}

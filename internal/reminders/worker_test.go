package reminders

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/dental-receptionist/internal/appointments"
	"github.com/wolfman30/dental-receptionist/pkg/logging"
)

type recordingSender struct {
	sent []string
	ok   bool
}

func (s *recordingSender) SendReminder(_ context.Context, appt *appointments.Appointment) bool {
	s.sent = append(s.sent, appt.ID)
	return s.ok
}

func book(t *testing.T, svc *appointments.Service, name, date, clock string) *appointments.Appointment {
	t.Helper()
	appt, err := svc.Book(context.Background(), appointments.AppointmentRequest{
		PatientName: name, ContactNumber: "555-0100", PreferredDate: date, PreferredTime: clock,
	})
	require.NoError(t, err)
	return appt
}

func TestProcessDueRemindsOnce(t *testing.T) {
	repo := appointments.NewInMemoryRepository()
	svc := appointments.NewService(repo, logging.Default())
	soon := book(t, svc, "Jane", "2025-01-10", "9:00 AM")
	book(t, svc, "Later", "2025-01-20", "9:00 AM")

	sender := &recordingSender{ok: true}
	w := NewWorker(repo, sender, logging.Default()).WithLeadTime(24 * time.Hour)
	w.now = func() time.Time { return time.Date(2025, 1, 9, 12, 0, 0, 0, time.UTC) }

	n, err := w.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{soon.ID}, sender.sent)

	stored, err := repo.Get(context.Background(), soon.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ReminderSentAt)

	n, err = w.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, sender.sent, 1)
}

func TestProcessDueSkipsCancelled(t *testing.T) {
	repo := appointments.NewInMemoryRepository()
	svc := appointments.NewService(repo, logging.Default())
	appt := book(t, svc, "Jane", "2025-01-10", "9:00 AM")
	_, err := svc.UpdateStatus(context.Background(), appt.ID, appointments.StatusCancelled)
	require.NoError(t, err)

	sender := &recordingSender{ok: true}
	w := NewWorker(repo, sender, nil)
	w.now = func() time.Time { return time.Date(2025, 1, 9, 12, 0, 0, 0, time.UTC) }

	n, err := w.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, sender.sent)
}

func TestProcessDueLeavesUnsentForRetry(t *testing.T) {
	repo := appointments.NewInMemoryRepository()
	svc := appointments.NewService(repo, logging.Default())
	appt := book(t, svc, "Jane", "2025-01-10", "9:00 AM")

	sender := &recordingSender{ok: false}
	w := NewWorker(repo, sender, nil)
	w.now = func() time.Time { return time.Date(2025, 1, 9, 12, 0, 0, 0, time.UTC) }

	n, err := w.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	stored, err := repo.Get(context.Background(), appt.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.ReminderSentAt)
}

func TestRunStopsOnCancel(t *testing.T) {
	repo := appointments.NewInMemoryRepository()
	w := NewWorker(repo, &recordingSender{ok: true}, nil).WithInterval(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

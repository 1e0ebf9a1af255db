// Package reminders sends day-before reminders for booked appointments.
package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/wolfman30/dental-receptionist/internal/appointments"
	"github.com/wolfman30/dental-receptionist/internal/observability/metrics"
	"github.com/wolfman30/dental-receptionist/pkg/logging"
)

// Store is the slice of the appointment repository the worker needs.
type Store interface {
	ListDueForReminder(ctx context.Context, from, to time.Time, limit int) ([]*appointments.Appointment, error)
	MarkReminded(ctx context.Context, id string, at time.Time) error
}

// Sender delivers a reminder. It reports false only when the appointment
// could not be used.
type Sender interface {
	SendReminder(ctx context.Context, appt *appointments.Appointment) bool
}

// Worker periodically reminds patients of appointments starting within the
// lead time. Each appointment is reminded at most once.
type Worker struct {
	store    Store
	sender   Sender
	metrics  *metrics.ReceptionistMetrics
	logger   *logging.Logger
	interval time.Duration
	lead     time.Duration
	batch    int
	now      func() time.Time
}

func NewWorker(store Store, sender Sender, logger *logging.Logger) *Worker {
	if logger == nil {
		logger = logging.Default()
	}
	return &Worker{
		store:    store,
		sender:   sender,
		logger:   logger,
		interval: 5 * time.Minute,
		lead:     24 * time.Hour,
		batch:    50,
		now:      time.Now,
	}
}

func (w *Worker) WithInterval(d time.Duration) *Worker {
	if d > 0 {
		w.interval = d
	}
	return w
}

func (w *Worker) WithLeadTime(d time.Duration) *Worker {
	if d > 0 {
		w.lead = d
	}
	return w
}

func (w *Worker) WithBatchSize(n int) *Worker {
	if n > 0 {
		w.batch = n
	}
	return w
}

func (w *Worker) WithMetrics(m *metrics.ReceptionistMetrics) *Worker {
	w.metrics = m
	return w
}

// Run processes due reminders immediately and then on every tick until ctx
// is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	w.drain(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	if _, err := w.ProcessDue(ctx); err != nil {
		w.logger.Error("reminder worker: process failed", "error", err)
	}
}

// ProcessDue sends reminders for one batch and returns how many were sent.
func (w *Worker) ProcessDue(ctx context.Context) (int, error) {
	now := w.now().UTC()
	due, err := w.store.ListDueForReminder(ctx, now, now.Add(w.lead), w.batch)
	if err != nil {
		return 0, fmt.Errorf("reminders: list due: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}
	w.logger.Info("reminder worker: processing due appointments", "count", len(due))

	sent := 0
	for _, appt := range due {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		if !w.sender.SendReminder(ctx, appt) {
			w.metrics.ObserveReminder("skipped")
			w.logger.Warn("reminder worker: reminder skipped", "appointment_id", appt.ID)
			continue
		}
		if err := w.store.MarkReminded(ctx, appt.ID, now); err != nil {
			w.metrics.ObserveReminder("failed")
			w.logger.Error("reminder worker: mark reminded failed", "appointment_id", appt.ID, "error", err)
			continue
		}
		w.metrics.ObserveReminder("sent")
		sent++
	}
	return sent, nil
}

package appointments

import (
	"context"
	"errors"
	"testing"
	"time"
)

func seedAppointment(t *testing.T, repo *InMemoryRepository, id, start string, status Status) *Appointment {
	t.Helper()
	startsAt, err := time.Parse(LocalLayout, start)
	if err != nil {
		t.Fatalf("bad start %q: %v", start, err)
	}
	appt := &Appointment{ID: id, Start: start, Status: status, StartsAt: startsAt, PatientName: id}
	if err := repo.Create(context.Background(), appt); err != nil {
		t.Fatalf("create: %v", err)
	}
	return appt
}

func TestInMemoryRepositoryListFilters(t *testing.T) {
	repo := NewInMemoryRepository()
	seedAppointment(t, repo, "b", "2025-01-10T10:00:00", StatusScheduled)
	seedAppointment(t, repo, "a", "2025-01-10T09:00:00", StatusConfirmed)
	seedAppointment(t, repo, "c", "2025-01-11T09:00:00", StatusScheduled)

	all, err := repo.List(context.Background(), ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].ID != "a" || all[2].ID != "c" {
		t.Fatalf("unexpected order %+v", all)
	}

	byDate, _ := repo.List(context.Background(), ListFilter{Date: "2025-01-10"})
	if len(byDate) != 2 {
		t.Fatalf("expected 2 on date, got %d", len(byDate))
	}

	byStatus, _ := repo.List(context.Background(), ListFilter{Status: StatusScheduled, Limit: 1})
	if len(byStatus) != 1 || byStatus[0].ID != "b" {
		t.Fatalf("unexpected status filter result %+v", byStatus)
	}
}

func TestInMemoryRepositoryReturnsCopies(t *testing.T) {
	repo := NewInMemoryRepository()
	seedAppointment(t, repo, "a", "2025-01-10T09:00:00", StatusScheduled)

	got, _ := repo.Get(context.Background(), "a")
	got.Status = StatusCancelled

	again, _ := repo.Get(context.Background(), "a")
	if again.Status != StatusScheduled {
		t.Fatalf("stored appointment mutated through returned copy")
	}
}

func TestInMemoryRepositoryReminderWindow(t *testing.T) {
	repo := NewInMemoryRepository()
	seedAppointment(t, repo, "due", "2025-01-10T08:30:00", StatusScheduled)
	seedAppointment(t, repo, "boundary", "2025-01-10T09:00:00", StatusScheduled)
	seedAppointment(t, repo, "cancelled", "2025-01-10T08:45:00", StatusCancelled)
	seedAppointment(t, repo, "later", "2025-01-12T09:00:00", StatusConfirmed)

	from := time.Date(2025, 1, 9, 9, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	due, err := repo.ListDueForReminder(context.Background(), from, to, 10)
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 1 || due[0].ID != "due" {
		t.Fatalf("unexpected due list %+v", due)
	}

	// The window end is exclusive; the boundary appointment falls in the next one.
	next, _ := repo.ListDueForReminder(context.Background(), to, to.Add(time.Hour), 10)
	if len(next) != 1 || next[0].ID != "boundary" {
		t.Fatalf("expected boundary appointment in the following window, got %+v", next)
	}

	if err := repo.MarkReminded(context.Background(), "due", to); err != nil {
		t.Fatalf("mark: %v", err)
	}
	due, _ = repo.ListDueForReminder(context.Background(), from, to, 10)
	if len(due) != 0 {
		t.Fatalf("expected reminded appointment to be skipped, got %+v", due)
	}

	if err := repo.MarkReminded(context.Background(), "missing", to); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInMemoryRepositoryRequests(t *testing.T) {
	repo := NewInMemoryRepository()
	rec := &AppointmentRecord{ID: "req_1", Status: RecordStatusPending, ClinicID: "sai-clinic"}
	if err := repo.SaveRequest(context.Background(), rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := repo.GetRequest(context.Background(), "req_1")
	if err != nil || got.ClinicID != "sai-clinic" {
		t.Fatalf("unexpected request %+v err=%v", got, err)
	}
	if _, err := repo.GetRequest(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

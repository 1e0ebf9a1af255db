package appointments

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Repository is the storage port for booked appointments.
type Repository interface {
	Create(ctx context.Context, appt *Appointment) error
	Get(ctx context.Context, id string) (*Appointment, error)
	UpdateStatus(ctx context.Context, id string, status Status) (*Appointment, error)
	List(ctx context.Context, filter ListFilter) ([]*Appointment, error)
	// ListDueForReminder returns active appointments starting in [from, to)
	// that have not been reminded yet.
	ListDueForReminder(ctx context.Context, from, to time.Time, limit int) ([]*Appointment, error)
	MarkReminded(ctx context.Context, id string, at time.Time) error
}

// RequestRepository stores pending requests captured by the direct HTTP path.
type RequestRepository interface {
	SaveRequest(ctx context.Context, rec *AppointmentRecord) error
	GetRequest(ctx context.Context, id string) (*AppointmentRecord, error)
}

// InMemoryRepository keeps appointments and pending requests in process memory.
type InMemoryRepository struct {
	mu       sync.RWMutex
	appts    map[string]*Appointment
	requests map[string]*AppointmentRecord
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		appts:    make(map[string]*Appointment),
		requests: make(map[string]*AppointmentRecord),
	}
}

func (r *InMemoryRepository) Create(ctx context.Context, appt *Appointment) error {
	cp := *appt
	r.mu.Lock()
	r.appts[appt.ID] = &cp
	r.mu.Unlock()
	return nil
}

func (r *InMemoryRepository) Get(ctx context.Context, id string) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	appt, ok := r.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *appt
	return &cp, nil
}

func (r *InMemoryRepository) UpdateStatus(ctx context.Context, id string, status Status) (*Appointment, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	appt, ok := r.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	appt.Status = status
	cp := *appt
	return &cp, nil
}

func (r *InMemoryRepository) List(ctx context.Context, filter ListFilter) ([]*Appointment, error) {
	r.mu.RLock()
	out := make([]*Appointment, 0, len(r.appts))
	for _, appt := range r.appts {
		if filter.matches(appt) {
			cp := *appt
			out = append(out, &cp)
		}
	}
	r.mu.RUnlock()

	sortByStart(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *InMemoryRepository) ListDueForReminder(ctx context.Context, from, to time.Time, limit int) ([]*Appointment, error) {
	r.mu.RLock()
	var out []*Appointment
	for _, appt := range r.appts {
		if appt.ReminderSentAt != nil {
			continue
		}
		if appt.Status != StatusScheduled && appt.Status != StatusConfirmed {
			continue
		}
		if appt.StartsAt.Before(from) || !appt.StartsAt.Before(to) {
			continue
		}
		cp := *appt
		out = append(out, &cp)
	}
	r.mu.RUnlock()

	sortByStart(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *InMemoryRepository) MarkReminded(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	appt, ok := r.appts[id]
	if !ok {
		return ErrNotFound
	}
	ts := at.UTC()
	appt.ReminderSentAt = &ts
	return nil
}

func (r *InMemoryRepository) SaveRequest(ctx context.Context, rec *AppointmentRecord) error {
	cp := *rec
	r.mu.Lock()
	r.requests[rec.ID] = &cp
	r.mu.Unlock()
	return nil
}

func (r *InMemoryRepository) GetRequest(ctx context.Context, id string) (*AppointmentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func sortByStart(appts []*Appointment) {
	sort.SliceStable(appts, func(i, j int) bool {
		if appts[i].Start == appts[j].Start {
			return appts[i].ID < appts[j].ID
		}
		return appts[i].Start < appts[j].Start
	})
}

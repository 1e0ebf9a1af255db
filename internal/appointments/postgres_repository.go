package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type rowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRepository stores appointments and pending requests in Postgres.
// It expects the appointments and appointment_requests tables to exist.
type PostgresRepository struct {
	db rowQuerier
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithQuerier(db rowQuerier) *PostgresRepository {
	if db == nil {
		panic("appointments: querier required")
	}
	return &PostgresRepository{db: db}
}

const appointmentColumns = `id, title, start_local, end_local, starts_at, patient_name, contact_number,
	treatment_type, status, created_at, reminder_sent_at`

func (r *PostgresRepository) Create(ctx context.Context, appt *Appointment) error {
	query := `
		INSERT INTO appointments (` + appointmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Exec(ctx, query,
		appt.ID,
		appt.Title,
		appt.Start,
		appt.End,
		appt.StartsAt,
		appt.PatientName,
		appt.ContactNumber,
		appt.TreatmentType,
		string(appt.Status),
		appt.CreatedAt,
		appt.ReminderSentAt,
	)
	if err != nil {
		return fmt.Errorf("appointments: insert: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	appt, err := scanAppointment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: get: %w", err)
	}
	return appt, nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status Status) (*Appointment, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	query := `UPDATE appointments SET status = $2 WHERE id = $1 RETURNING ` + appointmentColumns
	appt, err := scanAppointment(r.db.QueryRow(ctx, query, id, string(status)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: update status: %w", err)
	}
	return appt, nil
}

func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]*Appointment, error) {
	var (
		where []string
		args  []any
	)
	if filter.Date != "" {
		args = append(args, filter.Date)
		where = append(where, fmt.Sprintf("left(start_local, 10) = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY start_local, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return r.queryAppointments(ctx, "list", query, args...)
}

func (r *PostgresRepository) ListDueForReminder(ctx context.Context, from, to time.Time, limit int) ([]*Appointment, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE reminder_sent_at IS NULL
		  AND status IN ('scheduled', 'confirmed')
		  AND starts_at >= $1 AND starts_at < $2
		ORDER BY starts_at
		LIMIT $3
	`
	return r.queryAppointments(ctx, "list due", query, from, to, limit)
}

func (r *PostgresRepository) MarkReminded(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE appointments SET reminder_sent_at = $2 WHERE id = $1`
	ct, err := r.db.Exec(ctx, query, id, at.UTC())
	if err != nil {
		return fmt.Errorf("appointments: mark reminded: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) SaveRequest(ctx context.Context, rec *AppointmentRecord) error {
	query := `
		INSERT INTO appointment_requests (id, patient_name, contact_number, preferred_date, preferred_time,
			treatment_type, is_urgent, status, clinic_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.Exec(ctx, query,
		rec.ID,
		rec.PatientName,
		rec.ContactNumber,
		rec.PreferredDate,
		rec.PreferredTime,
		rec.TreatmentType,
		rec.IsUrgent,
		rec.Status,
		rec.ClinicID,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("appointments: insert request: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetRequest(ctx context.Context, id string) (*AppointmentRecord, error) {
	query := `
		SELECT id, patient_name, contact_number, preferred_date, preferred_time,
			treatment_type, is_urgent, status, clinic_id, created_at
		FROM appointment_requests WHERE id = $1
	`
	var rec AppointmentRecord
	err := r.db.QueryRow(ctx, query, id).Scan(
		&rec.ID,
		&rec.PatientName,
		&rec.ContactNumber,
		&rec.PreferredDate,
		&rec.PreferredTime,
		&rec.TreatmentType,
		&rec.IsUrgent,
		&rec.Status,
		&rec.ClinicID,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: get request: %w", err)
	}
	return &rec, nil
}

func (r *PostgresRepository) queryAppointments(ctx context.Context, op, query string, args ...any) ([]*Appointment, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("appointments: %s: %w", op, err)
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: %s scan: %w", op, err)
		}
		out = append(out, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: %s rows: %w", op, err)
	}
	return out, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var (
		appt   Appointment
		status string
	)
	if err := row.Scan(
		&appt.ID,
		&appt.Title,
		&appt.Start,
		&appt.End,
		&appt.StartsAt,
		&appt.PatientName,
		&appt.ContactNumber,
		&appt.TreatmentType,
		&status,
		&appt.CreatedAt,
		&appt.ReminderSentAt,
	); err != nil {
		return nil, err
	}
	appt.Status = Status(status)
	return &appt, nil
}

package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-scheduling/internal/slot"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const appointmentColumns = `id, patient_id, professional_id, unit_id, specialty, scheduled_date,
	scheduled_minute, attendance_type, notes, cancellation_reason, status, confirmed_at,
	arrived_at, started_at, finished_at, cancelled_at, no_show_at, version, created_at, updated_at`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var minute int

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.ProfessionalID,
		&a.UnitID,
		&a.Specialty,
		&a.Date,
		&minute,
		&a.AttendanceType,
		&a.Notes,
		&a.CancellationReason,
		&a.Status,
		&a.ConfirmedAt,
		&a.ArrivedAt,
		&a.StartedAt,
		&a.FinishedAt,
		&a.CancelledAt,
		&a.NoShowAt,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Date = slot.Date(a.Date)
	a.Time = slot.Clock(minute)
	return &a, nil
}

func collect(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Interface methods

// CreateWithinCapacity serialises writers of one slot with a transaction
// scoped advisory lock, so the count and the insert see the same state even
// without the Redis lock.
func (r *PgRepository) CreateWithinCapacity(ctx context.Context, a *Appointment, capacity int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin booking tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	key := a.Key()
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key.String()); err != nil {
		return fmt.Errorf("lock slot %s: %w", key, err)
	}

	var held int
	err = tx.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments
		WHERE professional_id = $1
		  AND scheduled_date = $2
		  AND scheduled_minute = $3
		  AND status NOT IN ('CANCELLED', 'NO_SHOW')
	`, key.ProfessionalID, key.Date, int(key.Time)).Scan(&held)
	if err != nil {
		return fmt.Errorf("count slot %s: %w", key, err)
	}
	if held >= capacity {
		return ErrSlotFull
	}

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, professional_id, unit_id, specialty, scheduled_date,
			scheduled_minute, attendance_type, notes, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 1, now(), now())
		RETURNING `+appointmentColumns,
		a.ID, a.PatientID, a.ProfessionalID, a.UnitID, a.Specialty, a.Date, int(a.Time),
		a.AttendanceType, a.Notes, a.Status)

	created, err := scanAppointment(row)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit booking tx: %w", err)
	}

	*a = *created
	return nil
}

func (r *PgRepository) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	return scanAppointment(row)
}

func (r *PgRepository) Update(ctx context.Context, a *Appointment) error {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $3,
		    cancellation_reason = $4,
		    confirmed_at = $5,
		    arrived_at = $6,
		    started_at = $7,
		    finished_at = $8,
		    cancelled_at = $9,
		    no_show_at = $10,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1
		  AND version = $2
		RETURNING `+appointmentColumns,
		a.ID, a.Version, a.Status, a.CancellationReason, a.ConfirmedAt, a.ArrivedAt,
		a.StartedAt, a.FinishedAt, a.CancelledAt, a.NoShowAt)

	updated, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		if _, getErr := r.Get(ctx, a.ID); getErr != nil {
			return getErr
		}
		return ErrStaleVersion
	}
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}

	*a = *updated
	return nil
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY scheduled_date, scheduled_minute, created_at
	`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return collect(rows)
}

func (r *PgRepository) ListByProfessionalDate(ctx context.Context, professionalID uuid.UUID, date time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE professional_id = $1 AND scheduled_date = $2
		ORDER BY scheduled_minute, created_at
	`, professionalID, slot.Date(date))
	if err != nil {
		return nil, fmt.Errorf("list appointments by professional: %w", err)
	}
	return collect(rows)
}

func (r *PgRepository) ListByUnitDate(ctx context.Context, unitID uuid.UUID, date time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE unit_id = $1 AND scheduled_date = $2
		ORDER BY scheduled_minute, created_at
	`, unitID, slot.Date(date))
	if err != nil {
		return nil, fmt.Errorf("list appointments by unit: %w", err)
	}
	return collect(rows)
}

func (r *PgRepository) CountBooked(ctx context.Context, professionalID uuid.UUID, from, to time.Time) (map[slot.Key]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT scheduled_date, scheduled_minute, count(*)
		FROM appointments
		WHERE professional_id = $1
		  AND scheduled_date BETWEEN $2 AND $3
		  AND status NOT IN ('CANCELLED', 'NO_SHOW')
		GROUP BY scheduled_date, scheduled_minute
	`, professionalID, slot.Date(from), slot.Date(to))
	if err != nil {
		return nil, fmt.Errorf("count booked: %w", err)
	}
	defer rows.Close()

	out := make(map[slot.Key]int)
	for rows.Next() {
		var date time.Time
		var minute, n int
		if err := rows.Scan(&date, &minute, &n); err != nil {
			return nil, err
		}
		out[slot.NewKey(professionalID, date, slot.Clock(minute))] = n
	}
	return out, rows.Err()
}

func (r *PgRepository) ListOpenUntil(ctx context.Context, date time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status IN ('SCHEDULED', 'CONFIRMED')
		  AND scheduled_date <= $1
		ORDER BY scheduled_date, scheduled_minute
	`, slot.Date(date))
	if err != nil {
		return nil, fmt.Errorf("list open appointments: %w", err)
	}
	return collect(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

package waitlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-scheduling/internal/catalog"
	"github.com/hackgods/clinic-scheduling/internal/db"
)

const waitingIndex = "waitlist_one_waiting_idx"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const entryColumns = `id, patient_id, specialty, preferred_unit, notes, status, declines,
	appointment_id, enrolled_at, matched_at, removed_at, removal_reason, version, updated_at`

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry

	err := row.Scan(
		&e.ID,
		&e.PatientID,
		&e.Specialty,
		&e.PreferredUnitID,
		&e.Notes,
		&e.Status,
		&e.Declines,
		&e.AppointmentID,
		&e.EnrolledAt,
		&e.MatchedAt,
		&e.RemovedAt,
		&e.RemovalReason,
		&e.Version,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return &e, nil
}

func (r *PgRepository) Create(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO waitlist_entries (id, patient_id, specialty, preferred_unit, notes, status,
			declines, enrolled_at, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, COALESCE($7, now()), 1, now())
		RETURNING `+entryColumns,
		e.ID, e.PatientID, e.Specialty, e.PreferredUnitID, e.Notes, e.Status, nullableTime(e.EnrolledAt))

	created, err := scanEntry(row)
	if err != nil {
		if db.IsUniqueViolation(err, waitingIndex) {
			return ErrDuplicateWaiting
		}
		return fmt.Errorf("insert waitlist entry: %w", err)
	}
	*e = *created
	return nil
}

func (r *PgRepository) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM waitlist_entries WHERE id = $1`, id)
	return scanEntry(row)
}

func (r *PgRepository) Update(ctx context.Context, e *Entry) error {
	row := r.pool.QueryRow(ctx, `
		UPDATE waitlist_entries
		SET status = $3,
		    declines = $4,
		    appointment_id = $5,
		    matched_at = $6,
		    removed_at = $7,
		    removal_reason = $8,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1
		  AND version = $2
		RETURNING `+entryColumns,
		e.ID, e.Version, e.Status, e.Declines, e.AppointmentID, e.MatchedAt, e.RemovedAt, e.RemovalReason)

	updated, err := scanEntry(row)
	if errors.Is(err, ErrEntryNotFound) {
		if _, getErr := r.Get(ctx, e.ID); getErr != nil {
			return getErr
		}
		return ErrStaleVersion
	}
	if err != nil {
		return fmt.Errorf("update waitlist entry: %w", err)
	}
	*e = *updated
	return nil
}

func (r *PgRepository) ListWaiting(ctx context.Context, specialty catalog.Specialty) ([]Entry, error) {
	return r.list(ctx, `
		SELECT `+entryColumns+`
		FROM waitlist_entries
		WHERE status = 'waiting' AND specialty = $1
		ORDER BY enrolled_at, id
	`, specialty)
}

func (r *PgRepository) ListWaitingByUnit(ctx context.Context, unitID uuid.UUID) ([]Entry, error) {
	return r.list(ctx, `
		SELECT `+entryColumns+`
		FROM waitlist_entries
		WHERE status = 'waiting' AND preferred_unit = $1
		ORDER BY enrolled_at, id
	`, unitID)
}

func (r *PgRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Entry, error) {
	return r.list(ctx, `
		SELECT `+entryColumns+`
		FROM waitlist_entries
		WHERE patient_id = $1
		ORDER BY enrolled_at, id
	`, patientID)
}

func (r *PgRepository) ListWaitingEnrolledBefore(ctx context.Context, before time.Time) ([]Entry, error) {
	return r.list(ctx, `
		SELECT `+entryColumns+`
		FROM waitlist_entries
		WHERE status = 'waiting' AND enrolled_at < $1
		ORDER BY enrolled_at, id
	`, before)
}

func (r *PgRepository) list(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list waitlist entries: %w", err)
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

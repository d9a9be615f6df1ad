package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const templateColumns = `id, professional_id, day_of_week, start_minute, end_minute,
	duration_minutes, capacity, active, version, created_at, updated_at`

func scanTemplate(row pgx.Row) (*Template, error) {
	var t Template
	var weekday int16

	err := row.Scan(
		&t.ID,
		&t.ProfessionalID,
		&weekday,
		&t.Start,
		&t.End,
		&t.Duration,
		&t.Capacity,
		&t.Active,
		&t.Version,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTemplateNotFound
		}
		return nil, err
	}

	t.Weekday = time.Weekday(weekday)
	return &t, nil
}

func (r *PgRepository) Create(ctx context.Context, t *Template) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO schedule_templates (id, professional_id, day_of_week, start_minute, end_minute,
			duration_minutes, capacity, active, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, now(), now())
		RETURNING `+templateColumns,
		t.ID, t.ProfessionalID, int16(t.Weekday), int(t.Start), int(t.End), t.Duration, t.Capacity, t.Active)

	created, err := scanTemplate(row)
	if err != nil {
		return fmt.Errorf("insert schedule template: %w", err)
	}
	*t = *created
	return nil
}

func (r *PgRepository) Get(ctx context.Context, id uuid.UUID) (*Template, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+templateColumns+` FROM schedule_templates WHERE id = $1`, id)
	return scanTemplate(row)
}

func (r *PgRepository) Update(ctx context.Context, t *Template) error {
	row := r.pool.QueryRow(ctx, `
		UPDATE schedule_templates
		SET day_of_week = $3,
		    start_minute = $4,
		    end_minute = $5,
		    duration_minutes = $6,
		    capacity = $7,
		    active = $8,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1
		  AND version = $2
		RETURNING `+templateColumns,
		t.ID, t.Version, int16(t.Weekday), int(t.Start), int(t.End), t.Duration, t.Capacity, t.Active)

	updated, err := scanTemplate(row)
	if errors.Is(err, ErrTemplateNotFound) {
		if _, getErr := r.Get(ctx, t.ID); getErr != nil {
			return getErr
		}
		return ErrStaleVersion
	}
	if err != nil {
		return fmt.Errorf("update schedule template: %w", err)
	}
	*t = *updated
	return nil
}

func (r *PgRepository) ListByProfessional(ctx context.Context, professionalID uuid.UUID) ([]Template, error) {
	return r.list(ctx, `
		SELECT `+templateColumns+`
		FROM schedule_templates
		WHERE professional_id = $1
		ORDER BY day_of_week, start_minute, id
	`, professionalID)
}

func (r *PgRepository) ListActiveByProfessional(ctx context.Context, professionalID uuid.UUID) ([]Template, error) {
	return r.list(ctx, `
		SELECT `+templateColumns+`
		FROM schedule_templates
		WHERE professional_id = $1 AND active
		ORDER BY day_of_week, start_minute, id
	`, professionalID)
}

func (r *PgRepository) list(ctx context.Context, query string, args ...any) ([]Template, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list schedule templates: %w", err)
	}
	defer rows.Close()

	var result []Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Pg struct {
	pool *pgxpool.Pool
}

func NewPg(pool *pgxpool.Pool) *Pg {
	return &Pg{pool: pool}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanProfessional(row pgx.Row) (*Professional, error) {
	var p Professional

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Specialty,
		&p.UnitID,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Pg) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, active, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	p, err := scanPatient(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(ErrPatientNotFound, "patient", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return p, nil
}

func (r *Pg) GetProfessional(ctx context.Context, id uuid.UUID) (*Professional, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, unit_id, active, created_at, updated_at
		FROM professionals
		WHERE id = $1
	`, id)
	p, err := scanProfessional(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(ErrProfessionalNotFound, "professional", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get professional: %w", err)
	}
	return p, nil
}

func (r *Pg) GetUnit(ctx context.Context, id uuid.UUID) (*Unit, error) {
	var u Unit
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, active, created_at, updated_at
		FROM units
		WHERE id = $1
	`, id).Scan(&u.ID, &u.Name, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(ErrUnitNotFound, "unit", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get unit: %w", err)
	}
	return &u, nil
}

func (r *Pg) ListProfessionals(ctx context.Context, specialty Specialty) ([]Professional, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, specialty, unit_id, active, created_at, updated_at
		FROM professionals
		WHERE specialty = $1 AND active
		ORDER BY name, id
	`, specialty)
	if err != nil {
		return nil, fmt.Errorf("list professionals: %w", err)
	}
	defer rows.Close()

	var result []Professional
	for rows.Next() {
		p, err := scanProfessional(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

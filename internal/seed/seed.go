// Package seed generates fake clinic registries and weekly schedules for
// local runs and load simulations.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/clinic-scheduling/internal/catalog"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
	"github.com/hackgods/clinic-scheduling/internal/slot"
)

type Options struct {
	Units                int
	ProfessionalsPerUnit int
	Patients             int
	// Seed makes the dataset reproducible; 0 picks a random one.
	Seed uint64
}

type Dataset struct {
	Units         []catalog.Unit
	Professionals []catalog.Professional
	Patients      []catalog.Patient
	Templates     []schedule.Template
}

// Generate builds a dataset where every professional works weekday
// mornings, and every other one also weekday afternoons with double
// capacity. The same non-zero Seed yields the same dataset.
func Generate(opts Options) Dataset {
	f := gofakeit.New(opts.Seed)
	specialties := catalog.Specialties()

	var ds Dataset
	for i := 0; i < opts.Units; i++ {
		unit := catalog.Unit{ID: uuid.MustParse(f.UUID()), Name: "UBS " + f.City(), Active: true}
		ds.Units = append(ds.Units, unit)

		for j := 0; j < opts.ProfessionalsPerUnit; j++ {
			afternoons := len(ds.Professionals)%2 == 0
			prof := catalog.Professional{
				ID:        uuid.MustParse(f.UUID()),
				Name:      f.Name(),
				Specialty: specialties[f.Number(0, len(specialties)-1)],
				UnitID:    unit.ID,
				Active:    true,
			}
			ds.Professionals = append(ds.Professionals, prof)
			ds.Templates = append(ds.Templates, weekTemplates(prof.ID, afternoons)...)
		}
	}

	for i := 0; i < opts.Patients; i++ {
		email := f.Email()
		ds.Patients = append(ds.Patients, catalog.Patient{
			ID:     uuid.MustParse(f.UUID()),
			Name:   f.Name(),
			Email:  &email,
			Active: true,
		})
	}
	return ds
}

func weekTemplates(professionalID uuid.UUID, afternoons bool) []schedule.Template {
	var out []schedule.Template
	for day := 1; day <= 5; day++ {
		out = append(out, schedule.Template{
			ProfessionalID: professionalID,
			Weekday:        time.Weekday(day),
			Start:          slot.NewClock(8, 0),
			End:            slot.NewClock(12, 0),
			Duration:       30,
			Capacity:       1,
			Active:         true,
		})
		if afternoons {
			out = append(out, schedule.Template{
				ProfessionalID: professionalID,
				Weekday:        time.Weekday(day),
				Start:          slot.NewClock(13, 0),
				End:            slot.NewClock(17, 0),
				Duration:       20,
				Capacity:       2,
				Active:         true,
			})
		}
	}
	return out
}

// LoadMemory stores ds into an in-process catalog and template repository.
func LoadMemory(ctx context.Context, cat *catalog.Memory, templates schedule.Repository, ds Dataset) error {
	for _, u := range ds.Units {
		cat.PutUnit(u)
	}
	for _, p := range ds.Professionals {
		cat.PutProfessional(p)
	}
	for _, p := range ds.Patients {
		cat.PutPatient(p)
	}
	return createTemplates(ctx, templates, ds.Templates)
}

// WritePostgres inserts the registries in one transaction, then the
// templates through the template repository.
func WritePostgres(ctx context.Context, pool *pgxpool.Pool, ds Dataset) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, u := range ds.Units {
		batch.Queue(`
			INSERT INTO units (id, name, active, created_at, updated_at)
			VALUES ($1, $2, $3, now(), now())
		`, u.ID, u.Name, u.Active)
	}
	for _, p := range ds.Professionals {
		batch.Queue(`
			INSERT INTO professionals (id, name, specialty, unit_id, active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, now(), now())
		`, p.ID, p.Name, string(p.Specialty), p.UnitID, p.Active)
	}
	for _, p := range ds.Patients {
		batch.Queue(`
			INSERT INTO patients (id, name, email, active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, p.ID, p.Name, p.Email, p.Active)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert registries: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	log.Ctx(ctx).Info().
		Int("units", len(ds.Units)).
		Int("professionals", len(ds.Professionals)).
		Int("patients", len(ds.Patients)).
		Msg("registries seeded")

	return createTemplates(ctx, schedule.NewPgRepository(pool), ds.Templates)
}

func createTemplates(ctx context.Context, repo schedule.Repository, templates []schedule.Template) error {
	for i := range templates {
		t := templates[i]
		if err := repo.Create(ctx, &t); err != nil {
			return fmt.Errorf("seed template for %s: %w", t.ProfessionalID, err)
		}
	}
	log.Ctx(ctx).Info().Int("templates", len(templates)).Msg("schedule templates seeded")
	return nil
}

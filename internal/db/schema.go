package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is idempotent; EnsureSchema runs it on every start.
const Schema = `
CREATE TABLE IF NOT EXISTS units (
	id         uuid PRIMARY KEY,
	name       text NOT NULL,
	active     boolean NOT NULL DEFAULT true,
	created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS professionals (
	id         uuid PRIMARY KEY,
	name       text NOT NULL,
	specialty  text NOT NULL,
	unit_id    uuid NOT NULL REFERENCES units(id),
	active     boolean NOT NULL DEFAULT true,
	created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS professionals_specialty_idx ON professionals (specialty) WHERE active;

CREATE TABLE IF NOT EXISTS patients (
	id         uuid PRIMARY KEY,
	name       text NOT NULL,
	email      text,
	active     boolean NOT NULL DEFAULT true,
	created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS schedule_templates (
	id               uuid PRIMARY KEY,
	professional_id  uuid NOT NULL REFERENCES professionals(id),
	day_of_week      smallint NOT NULL CHECK (day_of_week BETWEEN 0 AND 6),
	start_minute     integer NOT NULL,
	end_minute       integer NOT NULL,
	duration_minutes integer NOT NULL CHECK (duration_minutes > 0),
	capacity         integer NOT NULL CHECK (capacity >= 1),
	active           boolean NOT NULL DEFAULT true,
	version          integer NOT NULL DEFAULT 1,
	created_at       timestamptz NOT NULL DEFAULT now(),
	updated_at       timestamptz NOT NULL DEFAULT now(),
	CHECK (start_minute < end_minute)
);

CREATE INDEX IF NOT EXISTS schedule_templates_professional_idx ON schedule_templates (professional_id);

CREATE TABLE IF NOT EXISTS appointments (
	id                  uuid PRIMARY KEY,
	patient_id          uuid NOT NULL REFERENCES patients(id),
	professional_id     uuid NOT NULL REFERENCES professionals(id),
	unit_id             uuid NOT NULL REFERENCES units(id),
	specialty           text NOT NULL,
	scheduled_date      date NOT NULL,
	scheduled_minute    integer NOT NULL,
	attendance_type     text NOT NULL,
	notes               text,
	cancellation_reason text,
	status              text NOT NULL,
	confirmed_at        timestamptz,
	arrived_at          timestamptz,
	started_at          timestamptz,
	finished_at         timestamptz,
	cancelled_at        timestamptz,
	no_show_at          timestamptz,
	version             integer NOT NULL DEFAULT 1,
	created_at          timestamptz NOT NULL DEFAULT now(),
	updated_at          timestamptz NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS appointments_slot_idx ON appointments (professional_id, scheduled_date, scheduled_minute);
CREATE INDEX IF NOT EXISTS appointments_patient_idx ON appointments (patient_id);
CREATE INDEX IF NOT EXISTS appointments_unit_date_idx ON appointments (unit_id, scheduled_date);

CREATE TABLE IF NOT EXISTS waitlist_entries (
	id              uuid PRIMARY KEY,
	patient_id      uuid NOT NULL REFERENCES patients(id),
	specialty       text NOT NULL,
	preferred_unit  uuid REFERENCES units(id),
	notes           text,
	status          text NOT NULL,
	declines        integer NOT NULL DEFAULT 0,
	appointment_id  uuid REFERENCES appointments(id),
	enrolled_at     timestamptz NOT NULL,
	matched_at      timestamptz,
	removed_at      timestamptz,
	removal_reason  text,
	version         integer NOT NULL DEFAULT 1,
	updated_at      timestamptz NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS waitlist_one_waiting_idx
	ON waitlist_entries (patient_id, specialty) WHERE status = 'waiting';
CREATE INDEX IF NOT EXISTS waitlist_fifo_idx
	ON waitlist_entries (specialty, enrolled_at, id) WHERE status = 'waiting';

CREATE TABLE IF NOT EXISTS event_logs (
	id             bigserial PRIMARY KEY,
	event_type     text NOT NULL,
	appointment_id uuid,
	entry_id       uuid,
	payload        jsonb,
	created_at     timestamptz NOT NULL DEFAULT now()
);
`

func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

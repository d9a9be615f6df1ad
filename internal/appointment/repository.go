package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/slot"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrStaleVersion        = errors.New("appointment was modified concurrently")
	ErrSlotFull            = errors.New("slot has no remaining capacity")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	// CreateWithinCapacity inserts a when fewer than capacity appointments
	// hold its slot, atomically with the count. Otherwise ErrSlotFull.
	CreateWithinCapacity(ctx context.Context, a *Appointment, capacity int) error
	Get(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// Update persists a when the stored version equals a.Version and bumps it.
	Update(ctx context.Context, a *Appointment) error

	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error)
	ListByProfessionalDate(ctx context.Context, professionalID uuid.UUID, date time.Time) ([]Appointment, error)
	ListByUnitDate(ctx context.Context, unitID uuid.UUID, date time.Time) ([]Appointment, error)

	// CountBooked counts capacity-holding appointments per slot in [from, to].
	CountBooked(ctx context.Context, professionalID uuid.UUID, from, to time.Time) (map[slot.Key]int, error)
	// ListOpenUntil returns SCHEDULED and CONFIRMED appointments dated on or before date.
	ListOpenUntil(ctx context.Context, date time.Time) ([]Appointment, error)

	InsertEvent(ctx context.Context, ev EventLog) error
}

package waitlist

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/catalog"
)

var (
	ErrEntryNotFound    = errors.New("waitlist entry not found")
	ErrStaleVersion     = errors.New("waitlist entry was modified concurrently")
	ErrDuplicateWaiting = errors.New("patient already waiting for specialty")
)

type Repository interface {
	// Create fails with ErrDuplicateWaiting when the patient already has a
	// waiting entry for the specialty.
	Create(ctx context.Context, e *Entry) error
	Get(ctx context.Context, id uuid.UUID) (*Entry, error)
	// Update persists e when the stored version equals e.Version and bumps it.
	Update(ctx context.Context, e *Entry) error

	// ListWaiting returns waiting entries of a specialty ordered by
	// enrollment time then id.
	ListWaiting(ctx context.Context, specialty catalog.Specialty) ([]Entry, error)
	ListWaitingByUnit(ctx context.Context, unitID uuid.UUID) ([]Entry, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Entry, error)
	ListWaitingEnrolledBefore(ctx context.Context, before time.Time) ([]Entry, error)
}

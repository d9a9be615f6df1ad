package waitlist

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/catalog"
	"github.com/hackgods/clinic-scheduling/internal/slot"
)

type Status string

const (
	StatusWaiting Status = "waiting"
	StatusMatched Status = "matched"
	StatusRemoved Status = "removed"
)

const (
	ReasonWithdrawn  = "withdrawn"
	ReasonDeclined   = "declined"
	ReasonExpired    = "expired"
	ReasonIneligible = "ineligible" // the patient can no longer be booked
)

type Entry struct {
	ID              uuid.UUID
	PatientID       uuid.UUID
	Specialty       catalog.Specialty
	PreferredUnitID *uuid.UUID
	Notes           *string
	Status          Status
	Declines        int
	AppointmentID   *uuid.UUID
	EnrolledAt      time.Time
	MatchedAt       *time.Time
	RemovedAt       *time.Time
	RemovalReason   *string
	Version         int
	UpdatedAt       time.Time
}

// Accepts reports whether a slot at unitID suits the entry.
func (e Entry) Accepts(unitID uuid.UUID) bool {
	return e.PreferredUnitID == nil || *e.PreferredUnitID == unitID
}

// Placement is an entry with its FIFO position among the waiting entries of
// its specialty. Position and Total are zero once the entry left the queue.
type Placement struct {
	Entry
	Position int
	Total    int
}

type EnqueueRequest struct {
	PatientID       uuid.UUID         `validate:"required"`
	Specialty       catalog.Specialty `validate:"required,specialty"`
	PreferredUnitID *uuid.UUID
	Notes           string `validate:"max=500"`
}

// Offer is a freed slot proposed to one waiting patient.
type Offer struct {
	Entry Entry
	Slot  slot.Freed
}

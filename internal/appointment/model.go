package appointment

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/catalog"
	"github.com/hackgods/clinic-scheduling/internal/slot"
)

type Status string

const (
	StatusScheduled    Status = "SCHEDULED"
	StatusConfirmed    Status = "CONFIRMED"
	StatusAwaitingCare Status = "AWAITING_CARE"
	StatusInProgress   Status = "IN_PROGRESS"
	StatusCompleted    Status = "COMPLETED"
	StatusCancelled    Status = "CANCELLED"
	StatusNoShow       Status = "NO_SHOW"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// HoldsCapacity reports whether an appointment in this status occupies its slot.
func (s Status) HoldsCapacity() bool {
	return s != StatusCancelled && s != StatusNoShow
}

type AttendanceType string

const (
	AttendanceConsulta     AttendanceType = "CONSULTA"
	AttendanceRetorno      AttendanceType = "RETORNO"
	AttendanceExame        AttendanceType = "EXAME"
	AttendanceProcedimento AttendanceType = "PROCEDIMENTO"
	AttendanceVacina       AttendanceType = "VACINA"
	AttendanceUrgencia     AttendanceType = "URGENCIA"
)

func (t AttendanceType) Valid() bool {
	switch t {
	case AttendanceConsulta, AttendanceRetorno, AttendanceExame,
		AttendanceProcedimento, AttendanceVacina, AttendanceUrgencia:
		return true
	}
	return false
}

// ParseAttendanceType defaults to CONSULTA on empty input.
func ParseAttendanceType(raw string) (AttendanceType, bool) {
	if strings.TrimSpace(raw) == "" {
		return AttendanceConsulta, true
	}
	t := AttendanceType(strings.ToUpper(strings.TrimSpace(raw)))
	return t, t.Valid()
}

type Appointment struct {
	ID                 uuid.UUID
	PatientID          uuid.UUID
	ProfessionalID     uuid.UUID
	UnitID             uuid.UUID
	Specialty          catalog.Specialty
	Date               time.Time
	Time               slot.Clock
	AttendanceType     AttendanceType
	Notes              *string
	CancellationReason *string
	Status             Status
	ConfirmedAt        *time.Time
	ArrivedAt          *time.Time
	StartedAt          *time.Time
	FinishedAt         *time.Time
	CancelledAt        *time.Time
	NoShowAt           *time.Time
	Version            int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (a Appointment) Key() slot.Key {
	return slot.NewKey(a.ProfessionalID, a.Date, a.Time)
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// BookRequest is the input of Service.Book.
type BookRequest struct {
	PatientID      uuid.UUID         `validate:"required"`
	ProfessionalID uuid.UUID         `validate:"required"`
	Specialty      catalog.Specialty `validate:"omitempty,specialty"`
	Date           time.Time         `validate:"required"`
	Time           slot.Clock        `validate:"clock"`
	AttendanceType AttendanceType    `validate:"omitempty,oneof=CONSULTA RETORNO EXAME PROCEDIMENTO VACINA URGENCIA"`
	Notes          string            `validate:"max=500"`
}

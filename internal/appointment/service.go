package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/catalog"
	"github.com/hackgods/clinic-scheduling/internal/lock"
	"github.com/hackgods/clinic-scheduling/internal/retry"
	"github.com/hackgods/clinic-scheduling/internal/slot"
	"github.com/hackgods/clinic-scheduling/internal/validate"
)

const (
	EventAppointmentBooked    = "APPOINTMENT_BOOKED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventAppointmentArrived   = "APPOINTMENT_ARRIVED"
	EventAppointmentStarted   = "APPOINTMENT_STARTED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentNoShow    = "APPOINTMENT_NO_SHOW"
)

var eventFor = map[Operation]string{
	OpConfirm:         EventAppointmentConfirmed,
	OpRegisterArrival: EventAppointmentArrived,
	OpStartCare:       EventAppointmentStarted,
	OpComplete:        EventAppointmentCompleted,
	OpCancel:          EventAppointmentCancelled,
	OpMarkNoShow:      EventAppointmentNoShow,
}

// Slots answers capacity questions about a single slot.
type Slots interface {
	Capacity(ctx context.Context, key slot.Key) (int, error)
	Remaining(ctx context.Context, key slot.Key) (int, error)
}

// FreedFunc receives slots whose capacity opened up again.
type FreedFunc func(ctx context.Context, ev slot.Freed)

type Service struct {
	repo    Repository
	catalog catalog.Catalog
	slots   Slots
	locker  lock.Locker
	loc     *time.Location
	retry   retry.Policy
	now     func() time.Time

	onFreed FreedFunc
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithRetry(p retry.Policy) Option { return func(s *Service) { s.retry = p } }

func NewService(repo Repository, cat catalog.Catalog, slots Slots, locker lock.Locker, loc *time.Location, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		catalog: cat,
		slots:   slots,
		locker:  locker,
		loc:     loc,
		retry:   retry.DefaultPolicy(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// OnSlotFreed registers the waitlist hook. It must be set before serving.
func (s *Service) OnSlotFreed(fn FreedFunc) {
	s.onFreed = fn
}

// Book creates a SCHEDULED appointment. The capacity check and the insert
// run under the slot lock and inside the store's atomic create, so N
// concurrent callers against capacity C yield exactly C appointments.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	attendance, ok := ParseAttendanceType(string(req.AttendanceType))
	if !ok {
		return nil, apperr.Validation("attendance_type", "unknown attendance type %q", req.AttendanceType)
	}

	patient, err := s.catalog.GetPatient(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}
	if !patient.Active {
		return nil, apperr.Validation("patient_id", "patient %s is inactive", patient.ID)
	}

	prof, err := s.catalog.GetProfessional(ctx, req.ProfessionalID)
	if err != nil {
		return nil, err
	}
	if !prof.Active {
		return nil, apperr.Validation("professional_id", "professional %s is inactive", prof.ID)
	}
	if req.Specialty != "" && req.Specialty != prof.Specialty {
		return nil, apperr.Validation("specialty", "professional %s does not attend %s", prof.ID, req.Specialty)
	}

	unit, err := s.catalog.GetUnit(ctx, prof.UnitID)
	if err != nil {
		return nil, err
	}
	if !unit.Active {
		return nil, apperr.Validation("professional_id", "unit %s is inactive", unit.ID)
	}

	key := slot.NewKey(prof.ID, req.Date, req.Time)
	if slot.At(key.Date, key.Time, s.loc).Before(s.now()) {
		return nil, apperr.Validation("date", "slot %s is in the past", key)
	}

	capacity, err := s.slots.Capacity(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load slot capacity: %w", err)
	}
	if capacity == 0 {
		return nil, apperr.SlotUnavailable(key.String(), "no active schedule offers this slot")
	}

	appt := &Appointment{
		PatientID:      patient.ID,
		ProfessionalID: prof.ID,
		UnitID:         prof.UnitID,
		Specialty:      prof.Specialty,
		Date:           key.Date,
		Time:           key.Time,
		AttendanceType: attendance,
		Status:         StatusScheduled,
	}
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		appt.Notes = &notes
	}

	err = retry.OnConflict(ctx, s.retry, func(ctx context.Context) error {
		err := s.locker.WithLock(ctx, key.String(), func(lockCtx context.Context) error {
			return s.repo.CreateWithinCapacity(lockCtx, appt, capacity)
		})
		switch {
		case err == nil:
			return nil
		case errors.Is(err, lock.ErrNotAcquired):
			return apperr.Conflict("slot", key.String())
		case errors.Is(err, ErrSlotFull):
			return apperr.SlotUnavailable(key.String(), "slot is fully booked")
		default:
			return fmt.Errorf("create appointment: %w", err)
		}
	})
	if err != nil {
		return nil, err
	}

	s.logEvent(ctx, appt.ID, EventAppointmentBooked, map[string]any{
		"slot":       key.String(),
		"patient_id": patient.ID.String(),
		"capacity":   capacity,
	})
	log.Ctx(ctx).Info().
		Str("appointment_id", appt.ID.String()).
		Str("slot", key.String()).
		Msg("appointment booked")

	return appt, nil
}

func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, OpConfirm, "")
}

func (s *Service) RegisterArrival(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, OpRegisterArrival, "")
}

func (s *Service) StartCare(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, OpStartCare, "")
}

func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, OpComplete, "")
}

func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	return s.transition(ctx, id, OpCancel, reason)
}

func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, OpMarkNoShow, "")
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, op Operation, reason string) (*Appointment, error) {
	var updated *Appointment
	err := retry.OnConflict(ctx, s.retry, func(ctx context.Context) error {
		a, err := s.repo.Get(ctx, id)
		if err != nil {
			return s.mapErr(err, id)
		}
		if err := apply(a, op, reason, s.now(), s.scheduledAt(*a)); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, a); err != nil {
			return s.mapErr(err, id)
		}
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}

	payload := map[string]any{"status": string(updated.Status)}
	if op == OpCancel {
		payload["reason"] = *updated.CancellationReason
	}
	s.logEvent(ctx, updated.ID, eventFor[op], payload)

	switch op {
	case OpCancel, OpMarkNoShow, OpComplete:
		s.publishIfOpen(ctx, *updated, string(op))
	}
	return updated, nil
}

// publishIfOpen hands the slot to the waitlist when it is still ahead and
// has room. COMPLETED keeps holding capacity, so completion only publishes
// when the slot already had room.
func (s *Service) publishIfOpen(ctx context.Context, a Appointment, reason string) {
	if s.onFreed == nil || !s.scheduledAt(a).After(s.now()) {
		return
	}

	key := a.Key()
	remaining, err := s.slots.Remaining(ctx, key)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("slot", key.String()).Msg("failed to read remaining capacity")
		return
	}
	if remaining <= 0 {
		return
	}

	s.onFreed(ctx, slot.Freed{Key: key, Specialty: a.Specialty, UnitID: a.UnitID, Reason: reason})
}

// MarkOverdueNoShows moves SCHEDULED and CONFIRMED appointments whose slot
// passed more than grace ago to NO_SHOW. Intended for the worker.
func (s *Service) MarkOverdueNoShows(ctx context.Context, grace time.Duration) (int, error) {
	now := s.now()
	cutoff := now.Add(-grace)

	candidates, err := s.repo.ListOpenUntil(ctx, slot.Today(cutoff, s.loc))
	if err != nil {
		return 0, fmt.Errorf("find overdue appointments: %w", err)
	}

	marked := 0
	for _, a := range candidates {
		if !s.scheduledAt(a).Before(cutoff) {
			continue
		}
		if _, err := s.MarkNoShow(ctx, a.ID); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("appointment_id", a.ID.String()).Msg("failed to mark no-show")
			continue
		}
		marked++
	}

	return marked, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, s.mapErr(err, id)
	}
	return a, nil
}

// ListByPatient returns the patient's appointments in agenda order.
func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	if _, err := s.catalog.GetPatient(ctx, patientID); err != nil {
		return nil, err
	}
	as, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return as, nil
}

// History returns the patient's appointments newest first.
func (s *Service) History(ctx context.Context, patientID uuid.UUID) ([]Appointment, error) {
	as, err := s.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(as)-1; i < j; i, j = i+1, j-1 {
		as[i], as[j] = as[j], as[i]
	}
	return as, nil
}

func (s *Service) ListByProfessionalDate(ctx context.Context, professionalID uuid.UUID, date time.Time) ([]Appointment, error) {
	if _, err := s.catalog.GetProfessional(ctx, professionalID); err != nil {
		return nil, err
	}
	as, err := s.repo.ListByProfessionalDate(ctx, professionalID, date)
	if err != nil {
		return nil, fmt.Errorf("list appointments by professional: %w", err)
	}
	return as, nil
}

func (s *Service) ListByUnitDate(ctx context.Context, unitID uuid.UUID, date time.Time) ([]Appointment, error) {
	if _, err := s.catalog.GetUnit(ctx, unitID); err != nil {
		return nil, err
	}
	as, err := s.repo.ListByUnitDate(ctx, unitID, date)
	if err != nil {
		return nil, fmt.Errorf("list appointments by unit: %w", err)
	}
	return as, nil
}

func (s *Service) scheduledAt(a Appointment) time.Time {
	return slot.At(a.Date, a.Time, s.loc)
}

func (s *Service) mapErr(err error, id uuid.UUID) error {
	switch {
	case errors.Is(err, ErrAppointmentNotFound):
		e := apperr.NotFound("appointment", id.String())
		e.Err = err
		return e
	case errors.Is(err, ErrStaleVersion):
		return apperr.Conflict("appointment", id.String())
	default:
		return fmt.Errorf("appointment %s: %w", id, err)
	}
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		log.Ctx(ctx).Error().Err(err).
			Str("event", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("failed to insert event log")
	}
}

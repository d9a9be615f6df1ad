package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/slot"
)

// MemoryRepository keeps appointments in process. One mutex covers the
// count-and-insert so capacity holds without an external lock.
type MemoryRepository struct {
	mu           sync.RWMutex
	appointments map[uuid.UUID]Appointment
	events       []EventLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{appointments: make(map[uuid.UUID]Appointment)}
}

func (r *MemoryRepository) CreateWithinCapacity(_ context.Context, a *Appointment, capacity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := a.Key()
	held := 0
	for _, existing := range r.appointments {
		if existing.Status.HoldsCapacity() && existing.Key() == key {
			held++
		}
	}
	if held >= capacity {
		return ErrSlotFull
	}

	now := time.Now()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.Version = 1
	a.CreatedAt = now
	a.UpdatedAt = now
	r.appointments[a.ID] = *a
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) Update(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.appointments[a.ID]
	if !ok {
		return ErrAppointmentNotFound
	}
	if cur.Version != a.Version {
		return ErrStaleVersion
	}
	a.Version++
	a.UpdatedAt = time.Now()
	r.appointments[a.ID] = *a
	return nil
}

func (r *MemoryRepository) ListByPatient(_ context.Context, patientID uuid.UUID) ([]Appointment, error) {
	return r.filter(func(a Appointment) bool { return a.PatientID == patientID }), nil
}

func (r *MemoryRepository) ListByProfessionalDate(_ context.Context, professionalID uuid.UUID, date time.Time) ([]Appointment, error) {
	date = slot.Date(date)
	return r.filter(func(a Appointment) bool {
		return a.ProfessionalID == professionalID && a.Date.Equal(date)
	}), nil
}

func (r *MemoryRepository) ListByUnitDate(_ context.Context, unitID uuid.UUID, date time.Time) ([]Appointment, error) {
	date = slot.Date(date)
	return r.filter(func(a Appointment) bool {
		return a.UnitID == unitID && a.Date.Equal(date)
	}), nil
}

func (r *MemoryRepository) CountBooked(_ context.Context, professionalID uuid.UUID, from, to time.Time) (map[slot.Key]int, error) {
	from, to = slot.Date(from), slot.Date(to)

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[slot.Key]int)
	for _, a := range r.appointments {
		if a.ProfessionalID != professionalID || !a.Status.HoldsCapacity() {
			continue
		}
		if a.Date.Before(from) || a.Date.After(to) {
			continue
		}
		out[a.Key()]++
	}
	return out, nil
}

func (r *MemoryRepository) ListOpenUntil(_ context.Context, date time.Time) ([]Appointment, error) {
	date = slot.Date(date)
	return r.filter(func(a Appointment) bool {
		return (a.Status == StatusScheduled || a.Status == StatusConfirmed) && !a.Date.After(date)
	}), nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	ev.ID = int64(len(r.events) + 1)
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	r.events = append(r.events, ev)
	return nil
}

// Events returns the event log of one appointment, oldest first.
func (r *MemoryRepository) Events(appointmentID uuid.UUID) []EventLog {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []EventLog
	for _, ev := range r.events {
		if ev.AppointmentID != nil && *ev.AppointmentID == appointmentID {
			out = append(out, ev)
		}
	}
	return out
}

// filter returns matches ordered by date, time, then creation.
func (r *MemoryRepository) filter(keep func(Appointment) bool) []Appointment {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Appointment
	for _, a := range r.appointments {
		if keep(a) {
			out = append(out, a)
		}
	}
	sortChronological(out)
	return out
}

func sortChronological(as []Appointment) {
	sort.Slice(as, func(i, j int) bool {
		if !as[i].Date.Equal(as[j].Date) {
			return as[i].Date.Before(as[j].Date)
		}
		if as[i].Time != as[j].Time {
			return as[i].Time < as[j].Time
		}
		return as[i].CreatedAt.Before(as[j].CreatedAt)
	})
}

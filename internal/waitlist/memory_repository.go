package waitlist

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/catalog"
)

type MemoryRepository struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]Entry
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{entries: make(map[uuid.UUID]Entry)}
}

func (r *MemoryRepository) Create(_ context.Context, e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, other := range r.entries {
		if other.Status == StatusWaiting && other.PatientID == e.PatientID && other.Specialty == e.Specialty {
			return ErrDuplicateWaiting
		}
	}

	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.EnrolledAt.IsZero() {
		e.EnrolledAt = time.Now()
	}
	e.Version = 1
	e.UpdatedAt = e.EnrolledAt
	r.entries[e.ID] = *e
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	return &e, nil
}

func (r *MemoryRepository) Update(_ context.Context, e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.entries[e.ID]
	if !ok {
		return ErrEntryNotFound
	}
	if cur.Version != e.Version {
		return ErrStaleVersion
	}
	e.Version++
	e.UpdatedAt = time.Now()
	r.entries[e.ID] = *e
	return nil
}

func (r *MemoryRepository) ListWaiting(_ context.Context, specialty catalog.Specialty) ([]Entry, error) {
	return r.filter(func(e Entry) bool { return e.Status == StatusWaiting && e.Specialty == specialty }), nil
}

func (r *MemoryRepository) ListWaitingByUnit(_ context.Context, unitID uuid.UUID) ([]Entry, error) {
	return r.filter(func(e Entry) bool {
		return e.Status == StatusWaiting && e.PreferredUnitID != nil && *e.PreferredUnitID == unitID
	}), nil
}

func (r *MemoryRepository) ListByPatient(_ context.Context, patientID uuid.UUID) ([]Entry, error) {
	return r.filter(func(e Entry) bool { return e.PatientID == patientID }), nil
}

func (r *MemoryRepository) ListWaitingEnrolledBefore(_ context.Context, before time.Time) ([]Entry, error) {
	return r.filter(func(e Entry) bool { return e.Status == StatusWaiting && e.EnrolledAt.Before(before) }), nil
}

func (r *MemoryRepository) filter(keep func(Entry) bool) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Entry
	for _, e := range r.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	sortFIFO(out)
	return out
}

func sortFIFO(es []Entry) {
	sort.Slice(es, func(i, j int) bool {
		if !es[i].EnrolledAt.Equal(es[j].EnrolledAt) {
			return es[i].EnrolledAt.Before(es[j].EnrolledAt)
		}
		return es[i].ID.String() < es[j].ID.String()
	})
}

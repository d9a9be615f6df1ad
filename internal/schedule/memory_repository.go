package schedule

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type MemoryRepository struct {
	mu        sync.RWMutex
	templates map[uuid.UUID]Template
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{templates: make(map[uuid.UUID]Template)}
}

func (r *MemoryRepository) Create(_ context.Context, t *Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.Version = 1
	t.CreatedAt = now
	t.UpdatedAt = now
	r.templates[t.ID] = *t
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.templates[id]
	if !ok {
		return nil, ErrTemplateNotFound
	}
	return &t, nil
}

func (r *MemoryRepository) Update(_ context.Context, t *Template) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.templates[t.ID]
	if !ok {
		return ErrTemplateNotFound
	}
	if cur.Version != t.Version {
		return ErrStaleVersion
	}
	t.Version++
	t.UpdatedAt = time.Now()
	r.templates[t.ID] = *t
	return nil
}

func (r *MemoryRepository) ListByProfessional(_ context.Context, professionalID uuid.UUID) ([]Template, error) {
	return r.list(professionalID, false), nil
}

func (r *MemoryRepository) ListActiveByProfessional(_ context.Context, professionalID uuid.UUID) ([]Template, error) {
	return r.list(professionalID, true), nil
}

func (r *MemoryRepository) list(professionalID uuid.UUID, activeOnly bool) []Template {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Template
	for _, t := range r.templates {
		if t.ProfessionalID != professionalID || (activeOnly && !t.Active) {
			continue
		}
		out = append(out, t)
	}
	sortTemplates(out)
	return out
}

func sortTemplates(ts []Template) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].Weekday != ts[j].Weekday {
			return ts[i].Weekday < ts[j].Weekday
		}
		if ts[i].Start != ts[j].Start {
			return ts[i].Start < ts[j].Start
		}
		return ts[i].ID.String() < ts[j].ID.String()
	})
}

package catalog

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process catalog used by tests and the memory storage mode.
type Memory struct {
	mu            sync.RWMutex
	patients      map[uuid.UUID]Patient
	professionals map[uuid.UUID]Professional
	units         map[uuid.UUID]Unit
}

func NewMemory() *Memory {
	return &Memory{
		patients:      make(map[uuid.UUID]Patient),
		professionals: make(map[uuid.UUID]Professional),
		units:         make(map[uuid.UUID]Unit),
	}
}

func (m *Memory) PutPatient(p Patient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patients[p.ID] = p
}

func (m *Memory) PutProfessional(p Professional) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.professionals[p.ID] = p
}

func (m *Memory) PutUnit(u Unit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.units[u.ID] = u
}

func (m *Memory) GetPatient(_ context.Context, id uuid.UUID) (*Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, notFound(ErrPatientNotFound, "patient", id)
	}
	return &p, nil
}

func (m *Memory) GetProfessional(_ context.Context, id uuid.UUID) (*Professional, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.professionals[id]
	if !ok {
		return nil, notFound(ErrProfessionalNotFound, "professional", id)
	}
	return &p, nil
}

func (m *Memory) GetUnit(_ context.Context, id uuid.UUID) (*Unit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.units[id]
	if !ok {
		return nil, notFound(ErrUnitNotFound, "unit", id)
	}
	return &u, nil
}

func (m *Memory) ListProfessionals(_ context.Context, specialty Specialty) ([]Professional, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Professional
	for _, p := range m.professionals {
		if p.Specialty == specialty && p.Active {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID.String() < result[j].ID.String()
	})
	return result, nil
}

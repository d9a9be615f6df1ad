package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
)

type slowCatalog struct {
	Catalog
	delay time.Duration
}

func (s slowCatalog) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	select {
	case <-time.After(s.delay):
		return &Patient{ID: id}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type brokenCatalog struct{ Catalog }

func (brokenCatalog) GetUnit(context.Context, uuid.UUID) (*Unit, error) {
	return nil, errors.New("connection refused")
}

func TestMemoryNotFound(t *testing.T) {
	m := NewMemory()

	_, err := m.GetProfessional(context.Background(), uuid.New())

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.True(t, errors.Is(err, ErrProfessionalNotFound))
}

func TestMemoryListProfessionalsFiltersInactive(t *testing.T) {
	m := NewMemory()
	unit := uuid.New()
	m.PutProfessional(Professional{ID: uuid.New(), Name: "Dra. Ana", Specialty: Cardiologia, UnitID: unit, Active: true})
	m.PutProfessional(Professional{ID: uuid.New(), Name: "Dr. Bruno", Specialty: Cardiologia, UnitID: unit, Active: false})
	m.PutProfessional(Professional{ID: uuid.New(), Name: "Dr. Caio", Specialty: Neurologia, UnitID: unit, Active: true})

	got, err := m.ListProfessionals(context.Background(), Cardiologia)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Dra. Ana", got[0].Name)
}

func TestWithTimeoutSurfacesDependencyUnavailable(t *testing.T) {
	c := WithTimeout(slowCatalog{Catalog: NewMemory(), delay: time.Second}, 20*time.Millisecond)

	start := time.Now()
	_, err := c.GetPatient(context.Background(), uuid.New())

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrDependencyUnavailable))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestWithTimeoutWrapsInfrastructureErrors(t *testing.T) {
	c := WithTimeout(brokenCatalog{Catalog: NewMemory()}, time.Second)

	_, err := c.GetUnit(context.Background(), uuid.New())

	assert.True(t, errors.Is(err, apperr.ErrDependencyUnavailable))
}

func TestWithTimeoutPassesNotFound(t *testing.T) {
	c := WithTimeout(NewMemory(), time.Second)

	_, err := c.GetUnit(context.Background(), uuid.New())

	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.False(t, errors.Is(err, apperr.ErrDependencyUnavailable))
}

func TestParseSpecialty(t *testing.T) {
	s, ok := ParseSpecialty(" clinico geral ")
	assert.True(t, ok)
	assert.Equal(t, ClinicoGeral, s)

	_, ok = ParseSpecialty("astrologia")
	assert.False(t, ok)
}

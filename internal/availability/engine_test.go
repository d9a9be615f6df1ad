package availability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/catalog"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
	"github.com/hackgods/clinic-scheduling/internal/slot"
)

type fakeBooked map[slot.Key]int

func (f fakeBooked) CountBooked(_ context.Context, professionalID uuid.UUID, from, to time.Time) (map[slot.Key]int, error) {
	out := make(map[slot.Key]int)
	for k, n := range f {
		if k.ProfessionalID == professionalID && !k.Date.Before(from) && !k.Date.After(to) {
			out[k] = n
		}
	}
	return out, nil
}

type fixture struct {
	cat       *catalog.Memory
	templates *schedule.MemoryRepository
	booked    fakeBooked
	unit      catalog.Unit
	prof      catalog.Professional
	now       time.Time
	engine    *Engine
}

// Monday 2026-03-02 09:10 UTC
var monday = time.Date(2026, 3, 2, 9, 10, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		cat:       catalog.NewMemory(),
		templates: schedule.NewMemoryRepository(),
		booked:    fakeBooked{},
		now:       monday,
	}
	f.unit = catalog.Unit{ID: uuid.New(), Name: "UBS Centro", Active: true}
	f.prof = catalog.Professional{ID: uuid.New(), Name: "Bruno Lima", Specialty: catalog.Cardiologia, UnitID: f.unit.ID, Active: true}
	f.cat.PutUnit(f.unit)
	f.cat.PutProfessional(f.prof)

	require.NoError(t, f.templates.Create(context.Background(), &schedule.Template{
		ProfessionalID: f.prof.ID,
		Weekday:        time.Monday,
		Start:          slot.NewClock(8, 0),
		End:            slot.NewClock(10, 0),
		Duration:       30,
		Capacity:       2,
		Active:         true,
	}))

	f.engine = NewEngine(f.cat, f.templates, f.booked, time.UTC, WithClock(func() time.Time { return f.now }))
	return f
}

func TestFindAvailableSlots_SkipsPastAndFull(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	date := slot.Date(monday)
	f.booked[slot.NewKey(f.prof.ID, date, slot.NewClock(9, 30))] = 2
	f.booked[slot.NewKey(f.prof.ID, date, slot.NewClock(10, 0))] = 1 // not a template step

	groups, err := f.engine.FindAvailableSlots(ctx, catalog.Cardiologia, date, date)
	require.NoError(t, err)
	require.Len(t, groups, 0, "09:30 is full and the rest already passed")

	f.now = monday.Add(-2 * time.Hour)
	groups, err = f.engine.FindAvailableSlots(ctx, catalog.Cardiologia, date, date)
	require.NoError(t, err)
	require.Len(t, groups, 1)

	var times []slot.Clock
	for _, s := range groups[0].Slots {
		times = append(times, s.Time)
		assert.Greater(t, s.Remaining, 0)
	}
	assert.Equal(t, []slot.Clock{slot.NewClock(8, 0), slot.NewClock(8, 30), slot.NewClock(9, 0)}, times)
	assert.Equal(t, "UBS Centro", groups[0].UnitName)
}

func TestFindAvailableSlots_GroupsByDateAndProfessional(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := catalog.Professional{ID: uuid.New(), Name: "Alice Souza", Specialty: catalog.Cardiologia, UnitID: f.unit.ID, Active: true}
	f.cat.PutProfessional(other)
	require.NoError(t, f.templates.Create(ctx, &schedule.Template{
		ProfessionalID: other.ID, Weekday: time.Monday, Start: slot.NewClock(14, 0), End: slot.NewClock(15, 0),
		Duration: 20, Capacity: 1, Active: true,
	}))

	start := slot.Date(monday).AddDate(0, 0, 7)
	groups, err := f.engine.FindAvailableSlots(ctx, catalog.Cardiologia, start, start.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, groups, 4)

	assert.Equal(t, "Alice Souza", groups[0].Professional.Name)
	assert.Equal(t, "Bruno Lima", groups[1].Professional.Name)
	assert.True(t, groups[0].Date.Before(groups[2].Date))
	assert.Len(t, groups[0].Slots, 3)
	assert.Len(t, groups[1].Slots, 4)
}

func TestFindAvailableSlots_InactiveUnitExcluded(t *testing.T) {
	f := newFixture(t)
	f.unit.Active = false
	f.cat.PutUnit(f.unit)

	start := slot.Date(monday).AddDate(0, 0, 7)
	groups, err := f.engine.FindAvailableSlots(context.Background(), catalog.Cardiologia, start, start)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestFindAvailableSlots_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	date := slot.Date(monday)

	_, err := f.engine.FindAvailableSlots(ctx, catalog.Cardiologia, date, date.AddDate(0, 0, -1))
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = f.engine.FindAvailableSlots(ctx, "ASTROLOGIA", date, date)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	groups, err := f.engine.FindAvailableSlots(ctx, catalog.Cardiologia, date.AddDate(0, 0, -14), date.AddDate(0, 0, -7))
	require.NoError(t, err)
	assert.Empty(t, groups, "past ranges are empty")
}

func TestCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	date := slot.Date(monday)

	require.NoError(t, f.templates.Create(ctx, &schedule.Template{
		ProfessionalID: f.prof.ID, Weekday: time.Monday, Start: slot.NewClock(9, 0), End: slot.NewClock(10, 0),
		Duration: 30, Capacity: 5, Active: true,
	}))

	c, err := f.engine.Capacity(ctx, slot.NewKey(f.prof.ID, date, slot.NewClock(8, 0)))
	require.NoError(t, err)
	assert.Equal(t, 2, c)

	c, err = f.engine.Capacity(ctx, slot.NewKey(f.prof.ID, date, slot.NewClock(9, 30)))
	require.NoError(t, err)
	assert.Equal(t, 5, c, "overlapping templates take the larger capacity")

	c, err = f.engine.Capacity(ctx, slot.NewKey(f.prof.ID, date, slot.NewClock(8, 10)))
	require.NoError(t, err)
	assert.Zero(t, c)

	c, err = f.engine.Capacity(ctx, slot.NewKey(f.prof.ID, date.AddDate(0, 0, 1), slot.NewClock(8, 0)))
	require.NoError(t, err)
	assert.Zero(t, c, "tuesday has no template")
}

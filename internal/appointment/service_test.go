package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/catalog"
	"github.com/hackgods/clinic-scheduling/internal/lock"
	"github.com/hackgods/clinic-scheduling/internal/slot"
)

// fixedSlots offers every slot with the same capacity.
type fixedSlots struct {
	capacity int
	repo     *MemoryRepository
}

func (f fixedSlots) Capacity(context.Context, slot.Key) (int, error) { return f.capacity, nil }

func (f fixedSlots) Remaining(ctx context.Context, key slot.Key) (int, error) {
	booked, err := f.repo.CountBooked(ctx, key.ProfessionalID, key.Date, key.Date)
	if err != nil {
		return 0, err
	}
	return f.capacity - booked[key], nil
}

type env struct {
	svc     *Service
	repo    *MemoryRepository
	cat     *catalog.Memory
	patient catalog.Patient
	prof    catalog.Professional
	now     time.Time
	freed   []slot.Freed
	mu      sync.Mutex
}

// 2026-03-02 is a Monday.
var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newEnv(t *testing.T, capacity int) *env {
	t.Helper()

	e := &env{repo: NewMemoryRepository(), cat: catalog.NewMemory(), now: testNow}

	unit := catalog.Unit{ID: uuid.New(), Name: "UBS Vila Nova", Active: true}
	e.prof = catalog.Professional{ID: uuid.New(), Name: "Carla Dias", Specialty: catalog.Cardiologia, UnitID: unit.ID, Active: true}
	e.patient = catalog.Patient{ID: uuid.New(), Name: "João Silva", Active: true}
	e.cat.PutUnit(unit)
	e.cat.PutProfessional(e.prof)
	e.cat.PutPatient(e.patient)

	e.svc = NewService(e.repo, e.cat, fixedSlots{capacity: capacity, repo: e.repo}, lock.NewLocal(), time.UTC,
		WithClock(func() time.Time { return e.now }))
	e.svc.OnSlotFreed(func(_ context.Context, ev slot.Freed) {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.freed = append(e.freed, ev)
	})
	return e
}

func (e *env) request(patientID uuid.UUID, day int, hour int) BookRequest {
	return BookRequest{
		PatientID:      patientID,
		ProfessionalID: e.prof.ID,
		Date:           slot.Date(testNow).AddDate(0, 0, day),
		Time:           slot.NewClock(hour, 0),
	}
}

func (e *env) newPatient() uuid.UUID {
	p := catalog.Patient{ID: uuid.New(), Name: "Paciente", Active: true}
	e.cat.PutPatient(p)
	return p.ID
}

func TestBook(t *testing.T) {
	e := newEnv(t, 1)

	a, err := e.svc.Book(context.Background(), e.request(e.patient.ID, 7, 8))
	require.NoError(t, err)

	assert.Equal(t, StatusScheduled, a.Status)
	assert.Equal(t, AttendanceConsulta, a.AttendanceType)
	assert.Equal(t, catalog.Cardiologia, a.Specialty)
	assert.Equal(t, e.prof.UnitID, a.UnitID)
	assert.Equal(t, 1, a.Version)

	events := e.repo.Events(a.ID)
	require.Len(t, events, 1)
	assert.Equal(t, EventAppointmentBooked, events[0].EventType)
}

func TestBook_Rejections(t *testing.T) {
	e := newEnv(t, 1)
	ctx := context.Background()

	_, err := e.svc.Book(ctx, e.request(uuid.New(), 7, 8))
	assert.True(t, errors.Is(err, apperr.ErrNotFound), "unknown patient")

	req := e.request(e.patient.ID, 7, 8)
	req.Specialty = catalog.Dermatologia
	_, err = e.svc.Book(ctx, req)
	assert.True(t, errors.Is(err, apperr.ErrValidation), "specialty mismatch")

	_, err = e.svc.Book(ctx, e.request(e.patient.ID, -1, 8))
	assert.True(t, errors.Is(err, apperr.ErrValidation), "past slot")

	inactive := catalog.Patient{ID: uuid.New(), Name: "Inativo", Active: false}
	e.cat.PutPatient(inactive)
	_, err = e.svc.Book(ctx, e.request(inactive.ID, 7, 8))
	assert.True(t, errors.Is(err, apperr.ErrValidation), "inactive patient")
}

func TestBook_NoTemplateIsSlotUnavailable(t *testing.T) {
	e := newEnv(t, 0)

	_, err := e.svc.Book(context.Background(), e.request(e.patient.ID, 7, 8))
	assert.True(t, errors.Is(err, apperr.ErrSlotUnavailable))
}

func TestBook_ConcurrentAttemptsNeverOverbook(t *testing.T) {
	const attempts = 20
	const capacity = 3

	e := newEnv(t, capacity)
	ctx := context.Background()

	patients := make([]uuid.UUID, attempts)
	for i := range patients {
		patients[i] = e.newPatient()
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, unavailable := 0, 0

	for _, p := range patients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.svc.Book(ctx, e.request(p, 7, 10))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, apperr.ErrSlotUnavailable):
				unavailable++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, capacity, succeeded)
	assert.Equal(t, attempts-capacity, unavailable)

	booked, err := e.repo.CountBooked(ctx, e.prof.ID, slot.Date(testNow), slot.Date(testNow).AddDate(0, 0, 7))
	require.NoError(t, err)
	assert.Equal(t, capacity, booked[slot.NewKey(e.prof.ID, slot.Date(testNow).AddDate(0, 0, 7), slot.NewClock(10, 0))])
}

func TestBook_LastUnitExactlyOneWinner(t *testing.T) {
	e := newEnv(t, 1)
	ctx := context.Background()
	a, b := e.newPatient(), e.newPatient()

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, p := range []uuid.UUID{a, b} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = e.svc.Book(ctx, e.request(p, 3, 9))
		}()
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.True(t, errors.Is(err, apperr.ErrSlotUnavailable))
	}
	assert.Equal(t, 1, ok)
}

func TestCancel_FreesCapacityAndPublishes(t *testing.T) {
	e := newEnv(t, 1)
	ctx := context.Background()

	a, err := e.svc.Book(ctx, e.request(e.patient.ID, 7, 8))
	require.NoError(t, err)

	_, err = e.svc.Book(ctx, e.request(e.newPatient(), 7, 8))
	require.True(t, errors.Is(err, apperr.ErrSlotUnavailable))

	cancelled, err := e.svc.Cancel(ctx, a.ID, "paciente desmarcou")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, 2, cancelled.Version)

	require.Len(t, e.freed, 1)
	assert.Equal(t, a.Key(), e.freed[0].Key)
	assert.Equal(t, catalog.Cardiologia, e.freed[0].Specialty)
	assert.Equal(t, string(OpCancel), e.freed[0].Reason)

	_, err = e.svc.Book(ctx, e.request(e.newPatient(), 7, 8))
	assert.NoError(t, err, "cancelled appointments release capacity")
}

func TestCancel_EmptyReasonAndCompleted(t *testing.T) {
	e := newEnv(t, 1)
	ctx := context.Background()

	a, err := e.svc.Book(ctx, e.request(e.patient.ID, 7, 8))
	require.NoError(t, err)

	_, err = e.svc.Cancel(ctx, a.ID, "")
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	for _, step := range []func(context.Context, uuid.UUID) (*Appointment, error){
		e.svc.Confirm, e.svc.RegisterArrival, e.svc.StartCare, e.svc.Complete,
	} {
		_, err := step(ctx, a.ID)
		require.NoError(t, err)
	}

	_, err = e.svc.Cancel(ctx, a.ID, "tarde demais")
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))

	got, err := e.svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Nil(t, got.CancelledAt)
}

func TestConfirmTwiceFails(t *testing.T) {
	e := newEnv(t, 1)
	ctx := context.Background()

	a, err := e.svc.Book(ctx, e.request(e.patient.ID, 7, 8))
	require.NoError(t, err)

	_, err = e.svc.Confirm(ctx, a.ID)
	require.NoError(t, err)
	_, err = e.svc.Confirm(ctx, a.ID)
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition))
}

func TestTransition_UnknownAppointment(t *testing.T) {
	e := newEnv(t, 1)

	_, err := e.svc.Confirm(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestMarkOverdueNoShows(t *testing.T) {
	e := newEnv(t, 2)
	ctx := context.Background()

	early, err := e.svc.Book(ctx, e.request(e.patient.ID, 0, 10))
	require.NoError(t, err)
	late, err := e.svc.Book(ctx, e.request(e.newPatient(), 0, 15))
	require.NoError(t, err)
	arrived, err := e.svc.Book(ctx, e.request(e.newPatient(), 0, 10))
	require.NoError(t, err)
	_, err = e.svc.RegisterArrival(ctx, arrived.ID)
	require.NoError(t, err)

	_, err = e.svc.MarkNoShow(ctx, early.ID)
	assert.True(t, errors.Is(err, apperr.ErrInvalidTransition), "slot has not started yet")

	e.now = time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)
	n, err := e.svc.MarkOverdueNoShows(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _ := e.svc.Get(ctx, early.ID)
	assert.Equal(t, StatusNoShow, got.Status)
	got, _ = e.svc.Get(ctx, late.ID)
	assert.Equal(t, StatusScheduled, got.Status)
	got, _ = e.svc.Get(ctx, arrived.ID)
	assert.Equal(t, StatusAwaitingCare, got.Status)

	assert.Empty(t, e.freed, "past slots are never offered to the waitlist")
}

func TestHistoryNewestFirst(t *testing.T) {
	e := newEnv(t, 1)
	ctx := context.Background()

	for _, day := range []int{3, 1, 5} {
		_, err := e.svc.Book(ctx, e.request(e.patient.ID, day, 8))
		require.NoError(t, err)
	}

	agenda, err := e.svc.ListByPatient(ctx, e.patient.ID)
	require.NoError(t, err)
	history, err := e.svc.History(ctx, e.patient.ID)
	require.NoError(t, err)

	require.Len(t, history, 3)
	assert.True(t, history[0].Date.After(history[1].Date))
	assert.True(t, history[1].Date.After(history[2].Date))
	assert.True(t, agenda[0].Date.Before(agenda[1].Date))
}

func TestListByProfessionalAndUnit(t *testing.T) {
	e := newEnv(t, 2)
	ctx := context.Background()

	_, err := e.svc.Book(ctx, e.request(e.patient.ID, 2, 14))
	require.NoError(t, err)
	_, err = e.svc.Book(ctx, e.request(e.newPatient(), 2, 9))
	require.NoError(t, err)

	date := slot.Date(testNow).AddDate(0, 0, 2)
	byProf, err := e.svc.ListByProfessionalDate(ctx, e.prof.ID, date)
	require.NoError(t, err)
	require.Len(t, byProf, 2)
	assert.Equal(t, slot.NewClock(9, 0), byProf[0].Time)

	byUnit, err := e.svc.ListByUnitDate(ctx, e.prof.UnitID, date)
	require.NoError(t, err)
	assert.Len(t, byUnit, 2)

	_, err = e.svc.ListByUnitDate(ctx, uuid.New(), date)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/catalog"
	"github.com/hackgods/clinic-scheduling/internal/lock"
	"github.com/hackgods/clinic-scheduling/internal/retry"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
	"github.com/hackgods/clinic-scheduling/internal/triage"
	"github.com/hackgods/clinic-scheduling/internal/waitlist"
)

// 2026-03-02 is a Monday.
var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type testServer struct {
	handler  http.Handler
	cat      *catalog.Memory
	unit     catalog.Unit
	prof     catalog.Professional
	patients []catalog.Patient
}

func newTestServer(t *testing.T, checks ...Check) *testServer {
	t.Helper()

	now := func() time.Time { return testNow }
	ts := &testServer{cat: catalog.NewMemory()}
	ts.unit = catalog.Unit{ID: uuid.New(), Name: "UBS Centro", Active: true}
	ts.prof = catalog.Professional{ID: uuid.New(), Name: "Carla Dias", Specialty: catalog.Cardiologia, UnitID: ts.unit.ID, Active: true}
	ts.cat.PutUnit(ts.unit)
	ts.cat.PutProfessional(ts.prof)
	for _, name := range []string{"João Silva", "Maria Souza"} {
		p := catalog.Patient{ID: uuid.New(), Name: name, Active: true}
		ts.cat.PutPatient(p)
		ts.patients = append(ts.patients, p)
	}

	templates := schedule.NewMemoryRepository()
	appts := appointment.NewMemoryRepository()

	schedules := schedule.NewService(templates, ts.cat, retry.DefaultPolicy())
	engine := availability.NewEngine(ts.cat, templates, appts, time.UTC, availability.WithClock(now))
	booking := appointment.NewService(appts, ts.cat, engine, lock.NewLocal(), time.UTC, appointment.WithClock(now))
	// enrollments need distinct instants for a stable FIFO order
	tick := testNow
	queue := waitlist.NewService(waitlist.NewMemoryRepository(), ts.cat, booking, engine, nil, waitlist.Options{
		Now: func() time.Time {
			tick = tick.Add(time.Second)
			return tick
		},
	})

	ts.handler = NewRouter(RouterConfig{
		Appointments: booking,
		Schedules:    schedules,
		Availability: engine,
		Waitlist:     queue,
		Triage:       triage.NewService(nil, false),
		Health:       NewHealthHandler("test", "v0", checks...),
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// mondayMornings opens 08:00-10:00 every Monday in 30 minute slots.
func (ts *testServer) mondayMornings(t *testing.T, capacity int) ScheduleResponse {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/schedules", ScheduleRequest{
		ProfessionalID: ts.prof.ID.String(),
		Weekday:        int(time.Monday),
		Start:          "08:00",
		End:            "10:00",
		Duration:       30,
		Capacity:       capacity,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[ScheduleResponse](t, rec)
}

func (ts *testServer) book(t *testing.T, patient catalog.Patient, date, clock string) *httptest.ResponseRecorder {
	t.Helper()
	return ts.do(t, http.MethodPost, "/appointments", BookAppointmentRequest{
		PatientID:      patient.ID.String(),
		ProfessionalID: ts.prof.ID.String(),
		Date:           date,
		Time:           clock,
	})
}

func TestFindSlots(t *testing.T) {
	ts := newTestServer(t)
	ts.mondayMornings(t, 2)

	rec := ts.do(t, http.MethodGet, "/slots?specialty=cardiologia&from=2026-03-09&to=2026-03-15", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	days := decode[[]DaySlotsResponse](t, rec)
	require.Len(t, days, 1)
	assert.Equal(t, "2026-03-09", days[0].Date)
	assert.Equal(t, "UBS Centro", days[0].UnitName)
	require.Len(t, days[0].Slots, 4)
	assert.Equal(t, "08:00", days[0].Slots[0].Time)
	assert.Equal(t, 2, days[0].Slots[0].Remaining)

	rec = ts.do(t, http.MethodGet, "/slots?specialty=ASTROLOGIA", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/slots?specialty=CARDIOLOGIA&from=2026-03-09&to=2026-03-01", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBookAndLifecycle(t *testing.T) {
	ts := newTestServer(t)
	ts.mondayMornings(t, 1)

	rec := ts.book(t, ts.patients[0], "2026-03-09", "08:30")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	appt := decode[AppointmentResponse](t, rec)
	assert.Equal(t, "SCHEDULED", appt.Status)
	assert.Equal(t, "CONSULTA", appt.AttendanceType)
	assert.Equal(t, "08:30", appt.Time)
	assert.Equal(t, ts.unit.ID, appt.UnitID)

	rec = ts.book(t, ts.patients[1], "2026-03-09", "08:30")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "slot_unavailable", decode[ErrorResponse](t, rec).Error)

	base := "/appointments/" + appt.ID.String()
	for _, step := range []struct{ path, status string }{
		{"/confirm", "CONFIRMED"},
		{"/arrival", "AWAITING_CARE"},
		{"/start", "IN_PROGRESS"},
		{"/complete", "COMPLETED"},
	} {
		rec = ts.do(t, http.MethodPost, base+step.path, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, step.status, decode[AppointmentResponse](t, rec).Status)
	}

	rec = ts.do(t, http.MethodPost, base+"/cancel", CancelAppointmentRequest{Reason: "mudança de planos"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	errResp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "invalid_transition", errResp.Error)
	assert.Equal(t, "COMPLETED", errResp.State)

	rec = ts.do(t, http.MethodGet, "/patients/"+ts.patients[0].ID.String()+"/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]AppointmentResponse](t, rec), 1)
}

func TestCancelFreesCapacity(t *testing.T) {
	ts := newTestServer(t)
	ts.mondayMornings(t, 1)

	appt := decode[AppointmentResponse](t, ts.book(t, ts.patients[0], "2026-03-09", "09:00"))
	path := "/appointments/" + appt.ID.String() + "/cancel"

	rec := ts.do(t, http.MethodPost, path, CancelAppointmentRequest{Reason: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decode[ErrorResponse](t, rec).Error)

	rec = ts.do(t, http.MethodPost, path, CancelAppointmentRequest{Reason: "viagem"})
	require.Equal(t, http.StatusOK, rec.Code)
	cancelled := decode[AppointmentResponse](t, rec)
	assert.Equal(t, "CANCELLED", cancelled.Status)
	require.NotNil(t, cancelled.CancellationReason)
	assert.Equal(t, "viagem", *cancelled.CancellationReason)

	rec = ts.book(t, ts.patients[1], "2026-03-09", "09:00")
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestBookRejectsBadInput(t *testing.T) {
	ts := newTestServer(t)
	ts.mondayMornings(t, 1)

	cases := []struct {
		name  string
		req   BookAppointmentRequest
		field string
	}{
		{"bad patient id", BookAppointmentRequest{PatientID: "x", ProfessionalID: ts.prof.ID.String(), Date: "2026-03-09", Time: "08:00"}, "patient_id"},
		{"bad date", BookAppointmentRequest{PatientID: ts.patients[0].ID.String(), ProfessionalID: ts.prof.ID.String(), Date: "09/03/2026", Time: "08:00"}, "date"},
		{"bad time", BookAppointmentRequest{PatientID: ts.patients[0].ID.String(), ProfessionalID: ts.prof.ID.String(), Date: "2026-03-09", Time: "8h"}, "time"},
		{"bad attendance", BookAppointmentRequest{PatientID: ts.patients[0].ID.String(), ProfessionalID: ts.prof.ID.String(), Date: "2026-03-09", Time: "08:00", AttendanceType: "VISITA"}, "attendance_type"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/appointments", tc.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.field, decode[ErrorResponse](t, rec).Field)
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/appointments", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUnknownAppointment(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/appointments/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode[ErrorResponse](t, rec).Error)

	rec = ts.do(t, http.MethodGet, "/appointments/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAgendas(t *testing.T) {
	ts := newTestServer(t)
	ts.mondayMornings(t, 2)

	for _, clock := range []string{"09:30", "08:00"} {
		rec := ts.book(t, ts.patients[0], "2026-03-09", clock)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	rec := ts.do(t, http.MethodGet, "/professionals/"+ts.prof.ID.String()+"/appointments?date=2026-03-09", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	agenda := decode[[]AppointmentResponse](t, rec)
	require.Len(t, agenda, 2)
	assert.Equal(t, "08:00", agenda[0].Time)

	rec = ts.do(t, http.MethodGet, "/units/"+ts.unit.ID.String()+"/appointments?date=2026-03-09", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]AppointmentResponse](t, rec), 2)

	rec = ts.do(t, http.MethodGet, "/units/"+ts.unit.ID.String()+"/appointments", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/appointments?patient_id="+ts.patients[0].ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]AppointmentResponse](t, rec), 2)
}

func TestSchedules(t *testing.T) {
	ts := newTestServer(t)
	created := ts.mondayMornings(t, 1)
	assert.True(t, created.Active)
	assert.Equal(t, "08:00", created.Start)

	path := "/schedules/" + created.ID.String()
	rec := ts.do(t, http.MethodPost, path+"/deactivate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[ScheduleResponse](t, rec).Active)

	rec = ts.do(t, http.MethodGet, "/slots?specialty=CARDIOLOGIA&from=2026-03-09&to=2026-03-09", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[[]DaySlotsResponse](t, rec))

	rec = ts.do(t, http.MethodPut, path, ScheduleRequest{
		ProfessionalID: ts.prof.ID.String(),
		Weekday:        int(time.Monday),
		Start:          "10:00",
		End:            "09:00",
		Duration:       30,
		Capacity:       1,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/professionals/"+ts.prof.ID.String()+"/schedules", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]ScheduleResponse](t, rec), 1)

	rec = ts.do(t, http.MethodGet, "/schedules/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWaitlist(t *testing.T) {
	ts := newTestServer(t)
	req := WaitlistRequest{PatientID: ts.patients[0].ID.String(), Specialty: "CARDIOLOGIA"}

	rec := ts.do(t, http.MethodPost, "/waitlist", req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	entry := decode[WaitlistResponse](t, rec)
	assert.Equal(t, "waiting", entry.Status)
	assert.Equal(t, 1, entry.Position)

	rec = ts.do(t, http.MethodPost, "/waitlist", req)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "duplicate_entry", decode[ErrorResponse](t, rec).Error)

	rec = ts.do(t, http.MethodPost, "/waitlist", WaitlistRequest{PatientID: ts.patients[1].ID.String(), Specialty: "CARDIOLOGIA"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 2, decode[WaitlistResponse](t, rec).Position)

	rec = ts.do(t, http.MethodGet, "/waitlist?specialty=CARDIOLOGIA", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]WaitlistResponse](t, rec), 2)

	rec = ts.do(t, http.MethodGet, "/waitlist", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/waitlist/"+entry.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "removed", decode[WaitlistResponse](t, rec).Status)

	rec = ts.do(t, http.MethodDelete, "/waitlist/"+entry.ID.String(), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTriage(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/triage", TriageRequest{Symptoms: "dor no peito e falta de ar"})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[TriageResponse](t, rec)
	assert.Equal(t, "RULES", res.Method)
	require.NotEmpty(t, res.Suggestions)
	assert.Equal(t, "CARDIOLOGIA", res.Suggestions[0].Specialty)
	assert.Equal(t, "Cardiologia", res.Suggestions[0].Description)
	assert.NotEmpty(t, res.Disclaimer)

	rec = ts.do(t, http.MethodPost, "/triage", TriageRequest{Symptoms: "dor"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealth(t *testing.T) {
	down := func(context.Context) error { return errors.New("down") }
	up := func(context.Context) error { return nil }

	ts := newTestServer(t, Check{Name: "postgres", Critical: true, Ping: up}, Check{Name: "redis", Ping: down})

	rec := ts.do(t, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = ts.do(t, http.MethodGet, "/health/ready", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ready := decode[ReadinessResponse](t, rec)
	assert.Equal(t, "degraded", ready.Status)
	assert.Equal(t, "down", ready.Dependencies["redis"])

	ts = newTestServer(t, Check{Name: "postgres", Critical: true, Ping: down})
	rec = ts.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRequestIDIsPropagated(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

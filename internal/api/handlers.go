package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/catalog"
	"github.com/hackgods/clinic-scheduling/internal/slot"
)

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

func parseID(w http.ResponseWriter, raw, field string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		badRequest(w, field, field+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	return parseID(w, chi.URLParam(r, "id"), "id")
}

func bookAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		patientID, ok := parseID(w, req.PatientID, "patient_id")
		if !ok {
			return
		}
		professionalID, ok := parseID(w, req.ProfessionalID, "professional_id")
		if !ok {
			return
		}
		date, err := slot.ParseDate(req.Date)
		if err != nil {
			badRequest(w, "date", err.Error())
			return
		}
		clock, err := slot.ParseClock(req.Time)
		if err != nil {
			badRequest(w, "time", err.Error())
			return
		}
		attendance, ok := appointment.ParseAttendanceType(req.AttendanceType)
		if !ok {
			badRequest(w, "attendance_type", "unknown attendance type")
			return
		}
		var specialty catalog.Specialty
		if strings.TrimSpace(req.Specialty) != "" {
			if specialty, ok = catalog.ParseSpecialty(req.Specialty); !ok {
				badRequest(w, "specialty", "is not a known specialty")
				return
			}
		}

		appt, err := svc.Book(r.Context(), appointment.BookRequest{
			PatientID:      patientID,
			ProfessionalID: professionalID,
			Specialty:      specialty,
			Date:           date,
			Time:           clock,
			AttendanceType: attendance,
			Notes:          req.Notes,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toAppointment(appt))
	}
}

func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, ok := parseID(w, r.URL.Query().Get("patient_id"), "patient_id")
		if !ok {
			return
		}
		appts, err := svc.ListByPatient(r.Context(), patientID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointments(appts))
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		appt, err := svc.Get(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointment(appt))
	}
}

type transitionFunc func(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)

func transitionHandler(op transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		appt, err := op(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointment(appt))
	}
}

func cancelAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var req CancelAppointmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		appt, err := svc.Cancel(r.Context(), id, req.Reason)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointment(appt))
	}
}

func patientHistoryHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		appts, err := svc.History(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointments(appts))
	}
}

type agendaFunc func(ctx context.Context, id uuid.UUID, date time.Time) ([]appointment.Appointment, error)

func agendaHandler(list agendaFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		date, err := slot.ParseDate(r.URL.Query().Get("date"))
		if err != nil {
			badRequest(w, "date", err.Error())
			return
		}
		appts, err := list(r.Context(), id, date)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toAppointments(appts))
	}
}

func professionalAgendaHandler(svc *appointment.Service) http.HandlerFunc {
	return agendaHandler(svc.ListByProfessionalDate)
}

func unitAgendaHandler(svc *appointment.Service) http.HandlerFunc {
	return agendaHandler(svc.ListByUnitDate)
}

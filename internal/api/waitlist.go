package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/catalog"
	"github.com/hackgods/clinic-scheduling/internal/triage"
	"github.com/hackgods/clinic-scheduling/internal/waitlist"
)

func enqueueHandler(svc *waitlist.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req WaitlistRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		patientID, ok := parseID(w, req.PatientID, "patient_id")
		if !ok {
			return
		}
		specialty, ok := catalog.ParseSpecialty(req.Specialty)
		if !ok {
			badRequest(w, "specialty", "is not a known specialty")
			return
		}
		var unitID *uuid.UUID
		if strings.TrimSpace(req.PreferredUnitID) != "" {
			id, ok := parseID(w, req.PreferredUnitID, "preferred_unit_id")
			if !ok {
				return
			}
			unitID = &id
		}

		p, err := svc.Enqueue(r.Context(), waitlist.EnqueueRequest{
			PatientID:       patientID,
			Specialty:       specialty,
			PreferredUnitID: unitID,
			Notes:           req.Notes,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toWaitlist(p))
	}
}

func listWaitlistHandler(svc *waitlist.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var (
			placements []waitlist.Placement
			err        error
		)
		switch {
		case q.Get("specialty") != "":
			specialty, ok := catalog.ParseSpecialty(q.Get("specialty"))
			if !ok {
				badRequest(w, "specialty", "is not a known specialty")
				return
			}
			placements, err = svc.ListBySpecialty(r.Context(), specialty)
		case q.Get("unit_id") != "":
			id, ok := parseID(w, q.Get("unit_id"), "unit_id")
			if !ok {
				return
			}
			placements, err = svc.ListByUnit(r.Context(), id)
		case q.Get("patient_id") != "":
			id, ok := parseID(w, q.Get("patient_id"), "patient_id")
			if !ok {
				return
			}
			placements, err = svc.ListByPatient(r.Context(), id)
		default:
			badRequest(w, "", "one of specialty, unit_id or patient_id is required")
			return
		}
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		out := make([]WaitlistResponse, len(placements))
		for i := range placements {
			out[i] = toWaitlist(&placements[i])
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getWaitlistHandler(svc *waitlist.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		p, err := svc.Get(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toWaitlist(p))
	}
}

func withdrawHandler(svc *waitlist.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		e, err := svc.Withdraw(r.Context(), id, r.URL.Query().Get("reason"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toWaitlist(&waitlist.Placement{Entry: *e}))
	}
}

func triageHandler(svc *triage.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req TriageRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		res, err := svc.Suggest(r.Context(), req.Symptoms)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toTriage(res))
	}
}

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/catalog"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
	"github.com/hackgods/clinic-scheduling/internal/slot"
)

// defaultWindowDays is the search window when /slots gets no end date.
const defaultWindowDays = 14

func findSlotsHandler(engine *availability.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		specialty, ok := catalog.ParseSpecialty(q.Get("specialty"))
		if !ok {
			badRequest(w, "specialty", "is not a known specialty")
			return
		}

		from := slot.Today(time.Now(), engine.Location())
		if raw := q.Get("from"); raw != "" {
			d, err := slot.ParseDate(raw)
			if err != nil {
				badRequest(w, "from", err.Error())
				return
			}
			from = d
		}
		to := from.AddDate(0, 0, defaultWindowDays-1)
		if raw := q.Get("to"); raw != "" {
			d, err := slot.ParseDate(raw)
			if err != nil {
				badRequest(w, "to", err.Error())
				return
			}
			to = d
		}

		days, err := engine.FindAvailableSlots(r.Context(), specialty, from, to)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toDaySlots(days))
	}
}

func scheduleInput(w http.ResponseWriter, req ScheduleRequest) (schedule.Input, bool) {
	professionalID, ok := parseID(w, req.ProfessionalID, "professional_id")
	if !ok {
		return schedule.Input{}, false
	}
	start, err := slot.ParseClock(req.Start)
	if err != nil {
		badRequest(w, "start", err.Error())
		return schedule.Input{}, false
	}
	end, err := slot.ParseClock(req.End)
	if err != nil {
		badRequest(w, "end", err.Error())
		return schedule.Input{}, false
	}
	return schedule.Input{
		ProfessionalID: professionalID,
		Weekday:        time.Weekday(req.Weekday),
		Start:          start,
		End:            end,
		Duration:       req.Duration,
		Capacity:       req.Capacity,
	}, true
}

func createScheduleHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ScheduleRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		in, ok := scheduleInput(w, req)
		if !ok {
			return
		}
		t, err := svc.Create(r.Context(), in)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, toSchedule(t))
	}
}

func updateScheduleHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var req ScheduleRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		in, ok := scheduleInput(w, req)
		if !ok {
			return
		}
		t, err := svc.Update(r.Context(), id, in)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toSchedule(t))
	}
}

func getScheduleHandler(svc *schedule.Service) http.HandlerFunc {
	return scheduleToggleHandler(svc.Get)
}

// scheduleToggleHandler serves any single-template operation keyed by {id}.
func scheduleToggleHandler(op func(ctx context.Context, id uuid.UUID) (*schedule.Template, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		t, err := op(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toSchedule(t))
	}
}

func listSchedulesHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		templates, err := svc.ListByProfessional(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		out := make([]ScheduleResponse, len(templates))
		for i := range templates {
			out[i] = toSchedule(&templates[i])
		}
		writeJSON(w, http.StatusOK, out)
	}
}

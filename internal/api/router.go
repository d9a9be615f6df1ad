package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
	"github.com/hackgods/clinic-scheduling/internal/triage"
	"github.com/hackgods/clinic-scheduling/internal/waitlist"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Schedules    *schedule.Service
	Availability *availability.Engine
	Waitlist     *waitlist.Service
	Triage       *triage.Service
	Health       *HealthHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(RecoverMiddleware)

	health := cfg.Health
	if health == nil {
		health = NewHealthHandler("", "")
	}
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	appts := cfg.Appointments
	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", bookAppointmentHandler(appts))
		r.Get("/", listAppointmentsHandler(appts))
		r.Get("/{id}", getAppointmentHandler(appts))
		r.Post("/{id}/confirm", transitionHandler(appts.Confirm))
		r.Post("/{id}/arrival", transitionHandler(appts.RegisterArrival))
		r.Post("/{id}/start", transitionHandler(appts.StartCare))
		r.Post("/{id}/complete", transitionHandler(appts.Complete))
		r.Post("/{id}/no-show", transitionHandler(appts.MarkNoShow))
		r.Post("/{id}/cancel", cancelAppointmentHandler(appts))
	})
	r.Get("/patients/{id}/history", patientHistoryHandler(appts))
	r.Get("/professionals/{id}/appointments", professionalAgendaHandler(appts))
	r.Get("/units/{id}/appointments", unitAgendaHandler(appts))

	r.Get("/slots", findSlotsHandler(cfg.Availability))

	r.Route("/schedules", func(r chi.Router) {
		r.Post("/", createScheduleHandler(cfg.Schedules))
		r.Get("/{id}", getScheduleHandler(cfg.Schedules))
		r.Put("/{id}", updateScheduleHandler(cfg.Schedules))
		r.Post("/{id}/activate", scheduleToggleHandler(cfg.Schedules.Activate))
		r.Post("/{id}/deactivate", scheduleToggleHandler(cfg.Schedules.Deactivate))
	})
	r.Get("/professionals/{id}/schedules", listSchedulesHandler(cfg.Schedules))

	r.Route("/waitlist", func(r chi.Router) {
		r.Post("/", enqueueHandler(cfg.Waitlist))
		r.Get("/", listWaitlistHandler(cfg.Waitlist))
		r.Get("/{id}", getWaitlistHandler(cfg.Waitlist))
		r.Delete("/{id}", withdrawHandler(cfg.Waitlist))
	})

	r.Post("/triage", triageHandler(cfg.Triage))

	return r
}

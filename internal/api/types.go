package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/availability"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
	"github.com/hackgods/clinic-scheduling/internal/slot"
	"github.com/hackgods/clinic-scheduling/internal/triage"
	"github.com/hackgods/clinic-scheduling/internal/waitlist"
)

type BookAppointmentRequest struct {
	PatientID      string `json:"patient_id"`
	ProfessionalID string `json:"professional_id"`
	Specialty      string `json:"specialty,omitempty"`
	Date           string `json:"date"`
	Time           string `json:"time"`
	AttendanceType string `json:"attendance_type,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason"`
}

type AppointmentResponse struct {
	ID                 uuid.UUID  `json:"id"`
	PatientID          uuid.UUID  `json:"patient_id"`
	ProfessionalID     uuid.UUID  `json:"professional_id"`
	UnitID             uuid.UUID  `json:"unit_id"`
	Specialty          string     `json:"specialty"`
	Date               string     `json:"date"`
	Time               string     `json:"time"`
	AttendanceType     string     `json:"attendance_type"`
	Status             string     `json:"status"`
	Notes              *string    `json:"notes,omitempty"`
	CancellationReason *string    `json:"cancellation_reason,omitempty"`
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
	ArrivedAt          *time.Time `json:"arrived_at,omitempty"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	FinishedAt         *time.Time `json:"finished_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	NoShowAt           *time.Time `json:"no_show_at,omitempty"`
	Version            int        `json:"version"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func toAppointment(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                 a.ID,
		PatientID:          a.PatientID,
		ProfessionalID:     a.ProfessionalID,
		UnitID:             a.UnitID,
		Specialty:          string(a.Specialty),
		Date:               a.Date.Format(slot.DateLayout),
		Time:               a.Time.String(),
		AttendanceType:     string(a.AttendanceType),
		Status:             string(a.Status),
		Notes:              a.Notes,
		CancellationReason: a.CancellationReason,
		ConfirmedAt:        a.ConfirmedAt,
		ArrivedAt:          a.ArrivedAt,
		StartedAt:          a.StartedAt,
		FinishedAt:         a.FinishedAt,
		CancelledAt:        a.CancelledAt,
		NoShowAt:           a.NoShowAt,
		Version:            a.Version,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

func toAppointments(in []appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, len(in))
	for i := range in {
		out[i] = toAppointment(&in[i])
	}
	return out
}

type SlotResponse struct {
	Time      string `json:"time"`
	Capacity  int    `json:"capacity"`
	Remaining int    `json:"remaining"`
}

type DaySlotsResponse struct {
	Date             string         `json:"date"`
	ProfessionalID   uuid.UUID      `json:"professional_id"`
	ProfessionalName string         `json:"professional_name"`
	Specialty        string         `json:"specialty"`
	UnitID           uuid.UUID      `json:"unit_id"`
	UnitName         string         `json:"unit_name"`
	Slots            []SlotResponse `json:"slots"`
}

func toDaySlots(in []availability.DaySlots) []DaySlotsResponse {
	out := make([]DaySlotsResponse, len(in))
	for i, d := range in {
		slots := make([]SlotResponse, len(d.Slots))
		for j, s := range d.Slots {
			slots[j] = SlotResponse{Time: s.Time.String(), Capacity: s.Capacity, Remaining: s.Remaining}
		}
		out[i] = DaySlotsResponse{
			Date:             d.Date.Format(slot.DateLayout),
			ProfessionalID:   d.Professional.ID,
			ProfessionalName: d.Professional.Name,
			Specialty:        string(d.Professional.Specialty),
			UnitID:           d.Professional.UnitID,
			UnitName:         d.UnitName,
			Slots:            slots,
		}
	}
	return out
}

type ScheduleRequest struct {
	ProfessionalID string `json:"professional_id"`
	Weekday        int    `json:"weekday"`
	Start          string `json:"start"`
	End            string `json:"end"`
	Duration       int    `json:"slot_duration_minutes"`
	Capacity       int    `json:"capacity"`
}

type ScheduleResponse struct {
	ID             uuid.UUID `json:"id"`
	ProfessionalID uuid.UUID `json:"professional_id"`
	Weekday        int       `json:"weekday"`
	Start          string    `json:"start"`
	End            string    `json:"end"`
	Duration       int       `json:"slot_duration_minutes"`
	Capacity       int       `json:"capacity"`
	Active         bool      `json:"active"`
	Version        int       `json:"version"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toSchedule(t *schedule.Template) ScheduleResponse {
	return ScheduleResponse{
		ID:             t.ID,
		ProfessionalID: t.ProfessionalID,
		Weekday:        int(t.Weekday),
		Start:          t.Start.String(),
		End:            t.End.String(),
		Duration:       t.Duration,
		Capacity:       t.Capacity,
		Active:         t.Active,
		Version:        t.Version,
		UpdatedAt:      t.UpdatedAt,
	}
}

type WaitlistRequest struct {
	PatientID       string `json:"patient_id"`
	Specialty       string `json:"specialty"`
	PreferredUnitID string `json:"preferred_unit_id,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

type WaitlistResponse struct {
	ID              uuid.UUID  `json:"id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	Specialty       string     `json:"specialty"`
	PreferredUnitID *uuid.UUID `json:"preferred_unit_id,omitempty"`
	Status          string     `json:"status"`
	Position        int        `json:"position,omitempty"`
	Total           int        `json:"total,omitempty"`
	Declines        int        `json:"declines"`
	AppointmentID   *uuid.UUID `json:"appointment_id,omitempty"`
	RemovalReason   *string    `json:"removal_reason,omitempty"`
	EnrolledAt      time.Time  `json:"enrolled_at"`
}

func toWaitlist(p *waitlist.Placement) WaitlistResponse {
	return WaitlistResponse{
		ID:              p.ID,
		PatientID:       p.PatientID,
		Specialty:       string(p.Specialty),
		PreferredUnitID: p.PreferredUnitID,
		Status:          string(p.Status),
		Position:        p.Position,
		Total:           p.Total,
		Declines:        p.Declines,
		AppointmentID:   p.AppointmentID,
		RemovalReason:   p.RemovalReason,
		EnrolledAt:      p.EnrolledAt,
	}
}

type TriageRequest struct {
	Symptoms string `json:"symptoms"`
}

type TriageSuggestion struct {
	Specialty     string `json:"specialty"`
	Description   string `json:"description"`
	Score         int    `json:"score"`
	Justification string `json:"justification"`
}

type TriageResponse struct {
	Suggestions []TriageSuggestion `json:"suggestions"`
	Method      string             `json:"method"`
	Disclaimer  string             `json:"disclaimer"`
}

func toTriage(r *triage.Result) TriageResponse {
	out := TriageResponse{
		Suggestions: make([]TriageSuggestion, len(r.Suggestions)),
		Method:      string(r.Method),
		Disclaimer:  r.Disclaimer,
	}
	for i, s := range r.Suggestions {
		out.Suggestions[i] = TriageSuggestion{
			Specialty:     string(s.Specialty),
			Description:   s.Specialty.Description(),
			Score:         s.Score,
			Justification: s.Justification,
		}
	}
	return out
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Field   string `json:"field,omitempty"`
	State   string `json:"state,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

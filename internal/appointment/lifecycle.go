package appointment

import (
	"strings"
	"time"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
)

type Operation string

const (
	OpConfirm         Operation = "confirm"
	OpRegisterArrival Operation = "register_arrival"
	OpStartCare       Operation = "start_care"
	OpComplete        Operation = "complete"
	OpCancel          Operation = "cancel"
	OpMarkNoShow      Operation = "mark_no_show"
)

type transition struct {
	from []Status
	to   Status
}

var transitions = map[Operation]transition{
	OpConfirm:         {from: []Status{StatusScheduled}, to: StatusConfirmed},
	OpRegisterArrival: {from: []Status{StatusScheduled, StatusConfirmed}, to: StatusAwaitingCare},
	OpStartCare:       {from: []Status{StatusAwaitingCare}, to: StatusInProgress},
	OpComplete:        {from: []Status{StatusInProgress}, to: StatusCompleted},
	OpCancel:          {from: []Status{StatusScheduled, StatusConfirmed, StatusAwaitingCare, StatusInProgress}, to: StatusCancelled},
	OpMarkNoShow:      {from: []Status{StatusScheduled, StatusConfirmed}, to: StatusNoShow},
}

// Allowed reports whether op is legal from status.
func Allowed(status Status, op Operation) bool {
	t, ok := transitions[op]
	if !ok {
		return false
	}
	for _, s := range t.from {
		if s == status {
			return true
		}
	}
	return false
}

// apply moves a to the target state of op and stamps the matching timestamp.
// a is left untouched when an error is returned. scheduledAt is the slot
// instant, used by the no-show guard.
func apply(a *Appointment, op Operation, reason string, now, scheduledAt time.Time) error {
	if !Allowed(a.Status, op) {
		return apperr.InvalidTransition("appointment", a.ID.String(), string(a.Status), string(op))
	}

	reason = strings.TrimSpace(reason)
	switch op {
	case OpCancel:
		if reason == "" {
			return apperr.Validation("reason", "cancellation reason is required")
		}
	case OpMarkNoShow:
		if !now.After(scheduledAt) {
			e := apperr.InvalidTransition("appointment", a.ID.String(), string(a.Status), string(op))
			e.Message = "appointment time has not passed yet"
			return e
		}
	}

	at := stamp(a, now)
	switch op {
	case OpConfirm:
		a.ConfirmedAt = &at
	case OpRegisterArrival:
		a.ArrivedAt = &at
	case OpStartCare:
		a.StartedAt = &at
	case OpComplete:
		a.FinishedAt = &at
	case OpCancel:
		a.CancelledAt = &at
		a.CancellationReason = &reason
	case OpMarkNoShow:
		a.NoShowAt = &at
	}
	a.Status = transitions[op].to
	return nil
}

// stamp never goes backwards relative to earlier lifecycle timestamps.
func stamp(a *Appointment, now time.Time) time.Time {
	latest := a.CreatedAt
	for _, t := range []*time.Time{a.ConfirmedAt, a.ArrivedAt, a.StartedAt, a.FinishedAt, a.CancelledAt, a.NoShowAt} {
		if t != nil && t.After(latest) {
			latest = *t
		}
	}
	if now.Before(latest) {
		return latest
	}
	return now
}

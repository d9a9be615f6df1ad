package schedule

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/slot"
)

// Template is a professional's recurring weekly availability on one weekday.
type Template struct {
	ID             uuid.UUID
	ProfessionalID uuid.UUID
	Weekday        time.Weekday
	Start          slot.Clock
	End            slot.Clock
	Duration       int // minutes per slot
	Capacity       int // appointments per slot
	Active         bool
	Version        int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Steps lists the slot start times of the template. A trailing interval
// shorter than Duration produces no slot.
func (t Template) Steps() []slot.Clock {
	if t.Duration <= 0 || t.End <= t.Start {
		return nil
	}
	steps := make([]slot.Clock, 0, int(t.End-t.Start)/t.Duration)
	for c := t.Start; c.Add(t.Duration) <= t.End; c = c.Add(t.Duration) {
		steps = append(steps, c)
	}
	return steps
}

// Generates reports whether c is one of the template's slot start times.
func (t Template) Generates(c slot.Clock) bool {
	if t.Duration <= 0 || c < t.Start || c.Add(t.Duration) > t.End {
		return false
	}
	return int(c-t.Start)%t.Duration == 0
}

// Input carries the editable fields of a template.
type Input struct {
	ProfessionalID uuid.UUID    `validate:"required"`
	Weekday        time.Weekday `validate:"min=0,max=6"`
	Start          slot.Clock   `validate:"clock"`
	End            slot.Clock   `validate:"clock,gtfield=Start"`
	Duration       int          `validate:"gt=0,max=720"`
	Capacity       int          `validate:"min=1,max=100"`
}

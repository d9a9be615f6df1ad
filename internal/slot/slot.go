// Package slot holds the value types shared by booking, availability and the
// waitlist: civil dates, minute-of-day clocks and the (professional, date,
// time) key that identifies a bookable slot.
package slot

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/catalog"
)

const DateLayout = "2006-01-02"

// Clock is a time of day in minutes since midnight.
type Clock int

func NewClock(hour, minute int) Clock { return Clock(hour*60 + minute) }

// ParseClock accepts "HH:MM" (and "HH:MM:SS", seconds ignored).
func ParseClock(s string) (Clock, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return NewClock(t.Hour(), t.Minute()), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q, expected HH:MM", s)
}

func (c Clock) Hour() int   { return int(c) / 60 }
func (c Clock) Minute() int { return int(c) % 60 }

func (c Clock) Add(minutes int) Clock { return c + Clock(minutes) }

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute()) }

func (c Clock) Valid() bool { return c >= 0 && c < 24*60 }

// Date truncates t to a civil date stored as UTC midnight.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// Today is the civil date of now in loc.
func Today(now time.Time, loc *time.Location) time.Time {
	return Date(now.In(loc))
}

// At is the instant a civil date + clock refers to in loc.
func At(date time.Time, c Clock, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, c.Hour(), c.Minute(), 0, 0, loc)
}

type Key struct {
	ProfessionalID uuid.UUID
	Date           time.Time
	Time           Clock
}

func NewKey(professionalID uuid.UUID, date time.Time, c Clock) Key {
	return Key{ProfessionalID: professionalID, Date: Date(date), Time: c}
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.ProfessionalID, k.Date.Format(DateLayout), k.Time)
}

// Slot is a derived bookable unit; it is never stored.
type Slot struct {
	Key
	UnitID    uuid.UUID
	Capacity  int
	Remaining int
}

// Freed is published when capacity of a slot becomes available again.
type Freed struct {
	Key
	Specialty catalog.Specialty
	UnitID    uuid.UUID
	Reason    string
}

// Package availability turns schedule templates into bookable slots and
// subtracts the capacity already taken by appointments.
package availability

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/catalog"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
	"github.com/hackgods/clinic-scheduling/internal/slot"
)

const (
	// MaxRangeDays bounds a single query.
	MaxRangeDays = 92

	defaultFanOut = 8
)

// BookedCounter reports, per slot key, how many appointments hold capacity
// (every status except CANCELLED and NO_SHOW) in the date range.
type BookedCounter interface {
	CountBooked(ctx context.Context, professionalID uuid.UUID, from, to time.Time) (map[slot.Key]int, error)
}

type TemplateSource interface {
	ListActiveByProfessional(ctx context.Context, professionalID uuid.UUID) ([]schedule.Template, error)
}

// DaySlots groups the open slots of one professional on one date.
type DaySlots struct {
	Date         time.Time
	Professional catalog.Professional
	UnitName     string
	Slots        []slot.Slot
}

type Engine struct {
	catalog   catalog.Catalog
	templates TemplateSource
	booked    BookedCounter
	loc       *time.Location
	fanOut    int

	now func() time.Time
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func WithFanOut(n int) Option { return func(e *Engine) { e.fanOut = n } }

func NewEngine(cat catalog.Catalog, templates TemplateSource, booked BookedCounter, loc *time.Location, opts ...Option) *Engine {
	e := &Engine{
		catalog:   cat,
		templates: templates,
		booked:    booked,
		loc:       loc,
		fanOut:    defaultFanOut,
		now:       time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// FindAvailableSlots lists every slot of the specialty with remaining
// capacity between start and end (inclusive civil dates), grouped by date
// and professional. Dates before today are never returned.
func (e *Engine) FindAvailableSlots(ctx context.Context, specialty catalog.Specialty, start, end time.Time) ([]DaySlots, error) {
	if !specialty.Valid() {
		return nil, apperr.Validation("specialty", "%q is not a known specialty", specialty)
	}
	start, end = slot.Date(start), slot.Date(end)
	if end.Before(start) {
		return nil, apperr.Validation("end", "must not be before start")
	}
	if end.Sub(start) > MaxRangeDays*24*time.Hour {
		return nil, apperr.Validation("end", "range must not exceed %d days", MaxRangeDays)
	}

	now := e.now()
	today := slot.Today(now, e.loc)
	if end.Before(today) {
		return []DaySlots{}, nil
	}
	if start.Before(today) {
		start = today
	}

	profs, err := e.catalog.ListProfessionals(ctx, specialty)
	if err != nil {
		return nil, err
	}

	results := make([][]DaySlots, len(profs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.fanOut)
	for i, p := range profs {
		g.Go(func() error {
			groups, err := e.forProfessional(gctx, p, start, end, now)
			if err != nil {
				return err
			}
			results[i] = groups
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := []DaySlots{}
	for _, groups := range results {
		out = append(out, groups...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].Professional.Name != out[j].Professional.Name {
			return out[i].Professional.Name < out[j].Professional.Name
		}
		return out[i].Professional.ID.String() < out[j].Professional.ID.String()
	})
	return out, nil
}

func (e *Engine) forProfessional(ctx context.Context, p catalog.Professional, start, end, now time.Time) ([]DaySlots, error) {
	if !p.Active {
		return nil, nil
	}
	unit, err := e.catalog.GetUnit(ctx, p.UnitID)
	if err != nil {
		return nil, err
	}
	if !unit.Active {
		return nil, nil
	}

	templates, err := e.templates.ListActiveByProfessional(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("load templates for %s: %w", p.ID, err)
	}
	if len(templates) == 0 {
		return nil, nil
	}

	// one snapshot for the whole range
	booked, err := e.booked.CountBooked(ctx, p.ID, start, end)
	if err != nil {
		return nil, fmt.Errorf("count booked for %s: %w", p.ID, err)
	}

	var out []DaySlots
	for _, date := range days(start, end) {
		caps := capacityOn(templates, date)
		var slots []slot.Slot
		for _, c := range sortedClocks(caps) {
			if slot.At(date, c, e.loc).Before(now) {
				continue
			}
			key := slot.NewKey(p.ID, date, c)
			remaining := caps[c] - booked[key]
			if remaining <= 0 {
				continue
			}
			slots = append(slots, slot.Slot{Key: key, UnitID: p.UnitID, Capacity: caps[c], Remaining: remaining})
		}
		if len(slots) > 0 {
			out = append(out, DaySlots{Date: date, Professional: p, UnitName: unit.Name, Slots: slots})
		}
	}
	return out, nil
}

// Capacity is the template capacity of a single slot, 0 when no active
// template generates it.
func (e *Engine) Capacity(ctx context.Context, key slot.Key) (int, error) {
	templates, err := e.templates.ListActiveByProfessional(ctx, key.ProfessionalID)
	if err != nil {
		return 0, fmt.Errorf("load templates for %s: %w", key.ProfessionalID, err)
	}
	return capacityOn(templates, key.Date)[key.Time], nil
}

// Remaining is the open capacity of a single slot right now.
func (e *Engine) Remaining(ctx context.Context, key slot.Key) (int, error) {
	capacity, err := e.Capacity(ctx, key)
	if err != nil || capacity == 0 {
		return 0, err
	}
	booked, err := e.booked.CountBooked(ctx, key.ProfessionalID, key.Date, key.Date)
	if err != nil {
		return 0, fmt.Errorf("count booked for %s: %w", key.ProfessionalID, err)
	}
	return capacity - booked[key], nil
}

// OpenSlots lists the open future slots of one professional over the next
// horizon days.
func (e *Engine) OpenSlots(ctx context.Context, professionalID uuid.UUID, horizonDays int) ([]slot.Slot, error) {
	p, err := e.catalog.GetProfessional(ctx, professionalID)
	if err != nil {
		return nil, err
	}
	now := e.now()
	start := slot.Today(now, e.loc)
	groups, err := e.forProfessional(ctx, *p, start, start.AddDate(0, 0, horizonDays), now)
	if err != nil {
		return nil, err
	}
	var out []slot.Slot
	for _, g := range groups {
		out = append(out, g.Slots...)
	}
	return out, nil
}

// Location is the clinic timezone slot instants are computed in.
func (e *Engine) Location() *time.Location { return e.loc }

package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
	"github.com/hackgods/clinic-scheduling/internal/catalog"
	"github.com/hackgods/clinic-scheduling/internal/retry"
	"github.com/hackgods/clinic-scheduling/internal/validate"
)

// CapacityAddedFunc is called after a template starts producing slots.
type CapacityAddedFunc func(ctx context.Context, professionalID uuid.UUID)

type Service struct {
	repo    Repository
	catalog catalog.Catalog
	retry   retry.Policy

	onCapacityAdded CapacityAddedFunc
}

func NewService(repo Repository, cat catalog.Catalog, policy retry.Policy) *Service {
	return &Service{repo: repo, catalog: cat, retry: policy}
}

// OnCapacityAdded registers the waitlist hook. It must be set before serving.
func (s *Service) OnCapacityAdded(fn CapacityAddedFunc) {
	s.onCapacityAdded = fn
}

func (s *Service) Create(ctx context.Context, in Input) (*Template, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if err := s.checkProfessional(ctx, in.ProfessionalID); err != nil {
		return nil, err
	}

	t := &Template{
		ProfessionalID: in.ProfessionalID,
		Weekday:        in.Weekday,
		Start:          in.Start,
		End:            in.End,
		Duration:       in.Duration,
		Capacity:       in.Capacity,
		Active:         true,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("create schedule template: %w", err)
	}

	log.Ctx(ctx).Info().
		Str("template_id", t.ID.String()).
		Str("professional_id", t.ProfessionalID.String()).
		Str("weekday", t.Weekday.String()).
		Msg("schedule template created")

	s.capacityAdded(ctx, t.ProfessionalID)
	return t, nil
}

// Update replaces the time window, duration and capacity. The professional
// of a template never changes.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in Input) (*Template, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}

	var updated *Template
	err := s.mutate(ctx, id, func(t *Template) error {
		if in.ProfessionalID != t.ProfessionalID {
			return apperr.Validation("professional_id", "cannot be changed")
		}
		t.Weekday = in.Weekday
		t.Start = in.Start
		t.End = in.End
		t.Duration = in.Duration
		t.Capacity = in.Capacity
		return nil
	}, &updated)
	if err != nil {
		return nil, err
	}

	if updated.Active {
		s.capacityAdded(ctx, updated.ProfessionalID)
	}
	return updated, nil
}

func (s *Service) Activate(ctx context.Context, id uuid.UUID) (*Template, error) {
	var wasActive bool
	var updated *Template
	err := s.mutate(ctx, id, func(t *Template) error {
		wasActive = t.Active
		t.Active = true
		return nil
	}, &updated)
	if err != nil {
		return nil, err
	}

	if !wasActive {
		s.capacityAdded(ctx, updated.ProfessionalID)
	}
	return updated, nil
}

// Deactivate stops the template from producing new slots. Existing
// appointments are kept.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) (*Template, error) {
	var updated *Template
	err := s.mutate(ctx, id, func(t *Template) error {
		t.Active = false
		return nil
	}, &updated)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Template, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, s.mapErr(err, id)
	}
	return t, nil
}

func (s *Service) ListByProfessional(ctx context.Context, professionalID uuid.UUID) ([]Template, error) {
	if _, err := s.catalog.GetProfessional(ctx, professionalID); err != nil {
		return nil, err
	}
	ts, err := s.repo.ListByProfessional(ctx, professionalID)
	if err != nil {
		return nil, fmt.Errorf("list schedule templates: %w", err)
	}
	return ts, nil
}

func (s *Service) mutate(ctx context.Context, id uuid.UUID, apply func(*Template) error, out **Template) error {
	return retry.OnConflict(ctx, s.retry, func(ctx context.Context) error {
		t, err := s.repo.Get(ctx, id)
		if err != nil {
			return s.mapErr(err, id)
		}
		if err := apply(t); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, t); err != nil {
			return s.mapErr(err, id)
		}
		*out = t
		return nil
	})
}

func (s *Service) checkProfessional(ctx context.Context, id uuid.UUID) error {
	p, err := s.catalog.GetProfessional(ctx, id)
	if err != nil {
		return err
	}
	if !p.Active {
		return apperr.Validation("professional_id", "professional %s is inactive", id)
	}
	return nil
}

func (s *Service) capacityAdded(ctx context.Context, professionalID uuid.UUID) {
	if s.onCapacityAdded != nil {
		s.onCapacityAdded(ctx, professionalID)
	}
}

func (s *Service) mapErr(err error, id uuid.UUID) error {
	switch {
	case errors.Is(err, ErrTemplateNotFound):
		e := apperr.NotFound("schedule_template", id.String())
		e.Err = err
		return e
	case errors.Is(err, ErrStaleVersion):
		return apperr.Conflict("schedule_template", id.String())
	default:
		return fmt.Errorf("schedule template %s: %w", id, err)
	}
}

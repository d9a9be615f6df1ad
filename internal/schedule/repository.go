package schedule

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrTemplateNotFound = errors.New("schedule template not found")
	ErrStaleVersion     = errors.New("schedule template was modified concurrently")
)

type Repository interface {
	Create(ctx context.Context, t *Template) error
	Get(ctx context.Context, id uuid.UUID) (*Template, error)
	// Update persists t when the stored version equals t.Version and bumps it.
	Update(ctx context.Context, t *Template) error
	ListByProfessional(ctx context.Context, professionalID uuid.UUID) ([]Template, error)
	ListActiveByProfessional(ctx context.Context, professionalID uuid.UUID) ([]Template, error)
}

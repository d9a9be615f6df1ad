// Package catalog is the read-only view the scheduling core has of the
// patient, professional and health-unit registries.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
)

var (
	ErrPatientNotFound      = errors.New("patient not found")
	ErrProfessionalNotFound = errors.New("professional not found")
	ErrUnitNotFound         = errors.New("unit not found")
)

// Catalog fails with an apperr NotFound on unknown ids.
type Catalog interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetProfessional(ctx context.Context, id uuid.UUID) (*Professional, error)
	GetUnit(ctx context.Context, id uuid.UUID) (*Unit, error)
	// ListProfessionals returns the active professionals of a specialty.
	ListProfessionals(ctx context.Context, specialty Specialty) ([]Professional, error)
}

type guarded struct {
	next    Catalog
	timeout time.Duration
}

// WithTimeout bounds every call to next. Timeouts and infrastructure failures
// surface as DependencyUnavailable; NotFound passes through untouched. A
// non-positive timeout returns next unchanged.
func WithTimeout(next Catalog, timeout time.Duration) Catalog {
	if timeout <= 0 {
		return next
	}
	return &guarded{next: next, timeout: timeout}
}

func (g *guarded) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return call(ctx, g.timeout, func(ctx context.Context) (*Patient, error) { return g.next.GetPatient(ctx, id) })
}

func (g *guarded) GetProfessional(ctx context.Context, id uuid.UUID) (*Professional, error) {
	return call(ctx, g.timeout, func(ctx context.Context) (*Professional, error) { return g.next.GetProfessional(ctx, id) })
}

func (g *guarded) GetUnit(ctx context.Context, id uuid.UUID) (*Unit, error) {
	return call(ctx, g.timeout, func(ctx context.Context) (*Unit, error) { return g.next.GetUnit(ctx, id) })
}

func (g *guarded) ListProfessionals(ctx context.Context, specialty Specialty) ([]Professional, error) {
	return call(ctx, g.timeout, func(ctx context.Context) ([]Professional, error) {
		return g.next.ListProfessionals(ctx, specialty)
	})
}

func call[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(callCtx)
		done <- result{v, err}
	}()

	var zero T
	select {
	case <-callCtx.Done():
		return zero, apperr.DependencyUnavailable("catalog", callCtx.Err())
	case r := <-done:
		if r.err == nil {
			return r.v, nil
		}
		if errors.Is(r.err, apperr.ErrNotFound) {
			return zero, r.err
		}
		if errors.Is(r.err, context.DeadlineExceeded) || errors.Is(r.err, context.Canceled) {
			return zero, apperr.DependencyUnavailable("catalog", r.err)
		}
		return zero, apperr.DependencyUnavailable("catalog", fmt.Errorf("catalog lookup: %w", r.err))
	}
}

func notFound(sentinel error, entity string, id uuid.UUID) error {
	e := apperr.NotFound(entity, id.String())
	e.Err = sentinel
	return e
}

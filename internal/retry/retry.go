// Package retry re-runs an operation that lost an optimistic-lock race.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/hackgods/clinic-scheduling/internal/apperr"
)

type Policy struct {
	Attempts        int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultPolicy() Policy {
	return Policy{Attempts: 4, InitialInterval: 15 * time.Millisecond, MaxInterval: 250 * time.Millisecond}
}

// OnConflict runs fn until it succeeds, returns an error other than
// ConflictError, or the attempt budget runs out. The last error is returned.
func OnConflict(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialInterval
	eb.MaxInterval = p.MaxInterval
	eb.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(p.Attempts-1)), ctx)

	return backoff.Retry(func() error {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, apperr.ErrConflict) {
			return err
		}
		return backoff.Permanent(err)
	}, b)
}

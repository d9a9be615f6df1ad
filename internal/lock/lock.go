// Package lock guards per-slot critical sections.
package lock

import (
	"context"
	"errors"
	"sync"
)

var ErrNotAcquired = errors.New("slot lock not acquired")

// Locker is used by the appointment service to serialise booking per slot key.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

type entry struct {
	ch   chan struct{}
	refs int
}

// Local is an in-process keyed mutex. Waiters block until the key is free or
// their context ends.
type Local struct {
	mu   sync.Mutex
	keys map[string]*entry
}

func NewLocal() *Local {
	return &Local{keys: make(map[string]*entry)}
}

func (l *Local) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	e, ok := l.keys[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.keys[key] = e
	}
	e.refs++
	l.mu.Unlock()

	defer l.release(key, e)

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		return ErrNotAcquired
	}
	defer func() { <-e.ch }()

	return fn(ctx)
}

func (l *Local) release(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.keys, key)
	}
}

package redisclient

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-scheduling/internal/lock"
)

func newTestLocker(t *testing.T, ttl, wait time.Duration) (lock.Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSlotLocker(client, ttl, wait), mr
}

// holdLock takes key and keeps it until release is closed.
func holdLock(t *testing.T, l lock.Locker, key string) (release chan struct{}, done chan error) {
	t.Helper()
	held := make(chan struct{})
	release = make(chan struct{})
	done = make(chan error, 1)
	go func() {
		done <- l.WithLock(context.Background(), key, func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	select {
	case <-held:
	case <-time.After(2 * time.Second):
		t.Fatal("lock was not acquired")
	}
	return release, done
}

func TestRedisLocker_KeyHeldDuringFnAndDeletedAfter(t *testing.T) {
	l, mr := newTestLocker(t, 5*time.Second, 100*time.Millisecond)

	err := l.WithLock(context.Background(), "p1:2026-03-02:08:00", func(ctx context.Context) error {
		assert.True(t, mr.Exists("lock:slot:p1:2026-03-02:08:00"))
		assert.Equal(t, 5*time.Second, mr.TTL("lock:slot:p1:2026-03-02:08:00"))
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline, "fn runs under the lock ttl")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("lock:slot:p1:2026-03-02:08:00"))
}

func TestRedisLocker_ReturnsFnError(t *testing.T) {
	l, mr := newTestLocker(t, time.Second, 100*time.Millisecond)
	boom := errors.New("boom")

	err := l.WithLock(context.Background(), "k", func(context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("lock:slot:k"))
}

func TestRedisLocker_BusyKeyGivesUpAfterWait(t *testing.T) {
	l, _ := newTestLocker(t, 5*time.Second, 300*time.Millisecond)

	release, done := holdLock(t, l, "k")

	var ran int32
	began := time.Now()
	err := l.WithLock(context.Background(), "k", func(context.Context) error {
		atomic.AddInt32(&ran, 1)
		return nil
	})
	assert.ErrorIs(t, err, lock.ErrNotAcquired)
	assert.GreaterOrEqual(t, time.Since(began), 100*time.Millisecond, "waits before giving up")
	assert.Equal(t, int32(0), atomic.LoadInt32(&ran))

	close(release)
	require.NoError(t, <-done)

	err = l.WithLock(context.Background(), "k", func(context.Context) error { return nil })
	assert.NoError(t, err)
}

func TestRedisLocker_WaiterAcquiresOnceReleased(t *testing.T) {
	l, _ := newTestLocker(t, 5*time.Second, 2*time.Second)

	release, done := holdLock(t, l, "k")
	time.AfterFunc(50*time.Millisecond, func() { close(release) })

	err := l.WithLock(context.Background(), "k", func(context.Context) error { return nil })
	assert.NoError(t, err)
	require.NoError(t, <-done)
}

func TestRedisLocker_ZeroWaitTriesOnce(t *testing.T) {
	l, _ := newTestLocker(t, 5*time.Second, 0)

	release, done := holdLock(t, l, "k")
	defer func() {
		close(release)
		<-done
	}()

	began := time.Now()
	err := l.WithLock(context.Background(), "k", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, lock.ErrNotAcquired)
	assert.Less(t, time.Since(began), time.Second)
}

func TestRedisLocker_CancelledContextIsNotAcquired(t *testing.T) {
	l, _ := newTestLocker(t, 5*time.Second, 2*time.Second)

	release, done := holdLock(t, l, "k")
	defer func() {
		close(release)
		<-done
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := l.WithLock(ctx, "k", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, lock.ErrNotAcquired)
}

func TestRedisLocker_UnlockLeavesForeignToken(t *testing.T) {
	l, mr := newTestLocker(t, time.Second, 100*time.Millisecond)

	err := l.WithLock(context.Background(), "k", func(context.Context) error {
		// our key expired and another holder took it
		require.NoError(t, mr.Set("lock:slot:k", "someone-else"))
		return nil
	})
	require.NoError(t, err)

	got, err := mr.Get("lock:slot:k")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisLocker_ConcurrentHoldersNeverOverlap(t *testing.T) {
	l, _ := newTestLocker(t, 5*time.Second, 5*time.Second)

	var inside, maxInside, total int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := l.WithLock(context.Background(), "k", func(context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				atomic.AddInt32(&total, 1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, int32(10), total)
}

func TestRedisLocker_ReleaseFailureIsLogged(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	l := NewRedisSlotLocker(client, time.Second, 100*time.Millisecond)

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	ctx := logger.WithContext(context.Background())

	err = l.WithLock(ctx, "k", func(context.Context) error {
		mr.Close()
		return nil
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "slot lock not released")
	assert.Contains(t, buf.String(), "lock:slot:k")
}

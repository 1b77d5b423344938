// Package lock provides the mutual exclusion every state-changing engine
// operation runs under.  A Locker hands out at most one holder at a time;
// Acquire waits up to a bound and then fails with ErrLockTimeout.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrLockTimeout is returned when the lock could not be obtained within
// the requested wait.
var ErrLockTimeout = errors.New("lock: acquisition timed out")

// Locker is implemented by LocalLocker (single process) and RedisLocker
// (shared between replicas).
type Locker interface {
	// Acquire blocks until the lock is held, wait elapses or ctx is done.
	// The returned release func must be called exactly once.
	Acquire(ctx context.Context, wait time.Duration) (release func(), err error)
}

// LocalLocker is an in-process lock backed by a one-slot channel.
type LocalLocker struct {
	sem chan struct{}
}

// NewLocal returns an unlocked LocalLocker.
func NewLocal() *LocalLocker {
	return &LocalLocker{sem: make(chan struct{}, 1)}
}

func (l *LocalLocker) Acquire(ctx context.Context, wait time.Duration) (func(), error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case l.sem <- struct{}{}:
		return func() { <-l.sem }, nil
	case <-timer.C:
		return nil, ErrLockTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

package installer

import (
	"context"

	"github.com/arthur-debert/modman/pkg/errors"
)

// Lock serializes installs and uninstalls. It is a one-slot semaphore so
// that waiting can be abandoned through a context.
type Lock struct {
	sem chan struct{}
}

// NewLock returns an unlocked Lock.
func NewLock() *Lock {
	return &Lock{sem: make(chan struct{}, 1)}
}

// processLock is shared by every Installer that is not given its own.
var processLock = NewLock()

// Acquire blocks until the lock is free or ctx is done. The returned
// function releases the lock and must be called exactly once.
func (l *Lock) Acquire(ctx context.Context) (func(), error) {
	select {
	case l.sem <- struct{}{}:
		return func() { <-l.sem }, nil
	case <-ctx.Done():
		return nil, errors.FromContext(ctx.Err())
	}
}

// TryAcquire takes the lock only if it is free.
func (l *Lock) TryAcquire() (func(), bool) {
	select {
	case l.sem <- struct{}{}:
		return func() { <-l.sem }, true
	default:
		return nil, false
	}
}

package core

// ownerlock.go serializes the store-touching phase of imports per owner.
//
// Two imports for the same owner running concurrently would race on
// duplicate-key lookups, so the import engine holds this advisory lock for
// the duration of the store phase only. Tokenizing and validating never take
// the lock; previews are always safely concurrent.

import (
	"context"
	"sync"
	"time"
)

// DefaultLockWait is how long an import waits for the owner's lock before
// giving up with ErrImportInProgress.
const DefaultLockWait = 30 * time.Second

// ownerLocks hands out one single-slot semaphore per owner.
type ownerLocks struct {
	maxWait time.Duration

	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newOwnerLocks(maxWait time.Duration) *ownerLocks {
	if maxWait <= 0 {
		maxWait = DefaultLockWait
	}
	return &ownerLocks{
		maxWait: maxWait,
		slots:   make(map[string]chan struct{}),
	}
}

func (l *ownerLocks) slot(ownerID string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.slots[ownerID]
	if !ok {
		s = make(chan struct{}, 1)
		l.slots[ownerID] = s
	}
	return s
}

// Acquire takes the owner's lock, waiting up to maxWait. The caller MUST
// call Release with the same owner when the store phase completes.
func (l *ownerLocks) Acquire(ctx context.Context, ownerID string) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.slot(ownerID) <- struct{}{}:
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrImportInProgress
	}
}

// Release frees the owner's lock. Must be called exactly once per successful
// Acquire.
func (l *ownerLocks) Release(ownerID string) {
	<-l.slot(ownerID)
}

// Held reports whether an import currently holds the owner's lock.
func (l *ownerLocks) Held(ownerID string) bool {
	return len(l.slot(ownerID)) > 0
}

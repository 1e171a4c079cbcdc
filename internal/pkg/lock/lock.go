// Package lock serializes server-side work per user, so two vaals of the
// same user never read and write the same rows concurrently.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLockTimeout is returned when a lock cannot be acquired in time.
var ErrLockTimeout = errors.New("lock acquisition timeout")

type entry struct {
	mu   sync.Mutex
	refs int
}

// UserLock hands out one mutex per username. Mutexes are dropped once no
// goroutine holds or waits for them.
type UserLock struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewUserLock creates a new UserLock instance.
func NewUserLock() *UserLock {
	return &UserLock{entries: make(map[string]*entry)}
}

func (ul *UserLock) acquire(username string) *entry {
	ul.mu.Lock()
	defer ul.mu.Unlock()
	e, ok := ul.entries[username]
	if !ok {
		e = &entry{}
		ul.entries[username] = e
	}
	e.refs++
	return e
}

func (ul *UserLock) release(username string, e *entry) {
	ul.mu.Lock()
	defer ul.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(ul.entries, username)
	}
}

// Lock blocks until the user's lock is held.
func (ul *UserLock) Lock(username string) {
	ul.acquire(username).mu.Lock()
}

// Unlock releases the user's lock.
func (ul *UserLock) Unlock(username string) {
	ul.mu.Lock()
	e, ok := ul.entries[username]
	ul.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Unlock()
	ul.release(username, e)
}

// TryLock acquires the lock without blocking.
// Returns true if the lock was acquired.
func (ul *UserLock) TryLock(username string) bool {
	e := ul.acquire(username)
	if e.mu.TryLock() {
		return true
	}
	ul.release(username, e)
	return false
}

// LockContext waits for the lock until ctx ends or timeout elapses.
// Returns ErrLockTimeout on timeout and ctx.Err() on cancellation.
func (ul *UserLock) LockContext(ctx context.Context, username string, timeout time.Duration) error {
	e := ul.acquire(username)

	acquired := make(chan struct{})
	go func() {
		e.mu.Lock()
		close(acquired)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var err error
	select {
	case <-acquired:
		return nil
	case <-timer.C:
		err = ErrLockTimeout
	case <-ctx.Done():
		err = ctx.Err()
	}

	// the waiter still gets the mutex eventually; hand it straight back
	go func() {
		<-acquired
		e.mu.Unlock()
		ul.release(username, e)
	}()
	return err
}

// WithLock runs fn while holding the user's lock.
func (ul *UserLock) WithLock(username string, fn func() error) error {
	ul.Lock(username)
	defer ul.Unlock(username)
	return fn()
}

// WithLockContext runs fn while holding the user's lock, giving up if the
// lock is not acquired within timeout.
func (ul *UserLock) WithLockContext(ctx context.Context, username string, timeout time.Duration, fn func() error) error {
	if err := ul.LockContext(ctx, username, timeout); err != nil {
		return err
	}
	defer ul.Unlock(username)
	return fn()
}

// IsLocked reports whether someone holds or waits for the user's lock.
// The answer may be stale as soon as it returns.
func (ul *UserLock) IsLocked(username string) bool {
	ul.mu.Lock()
	defer ul.mu.Unlock()
	_, ok := ul.entries[username]
	return ok
}

// Len returns the number of users with a live lock.
func (ul *UserLock) Len() int {
	ul.mu.Lock()
	defer ul.mu.Unlock()
	return len(ul.entries)
}

// Package lock provides per-key locking for compound read-modify-write
// sequences on users and draws.
package lock

import (
	"context"
	"sync"
	"time"
)

// keyMutex wraps a mutex with reference counting for cleanup.
type keyMutex struct {
	mu       sync.Mutex
	refCount int
}

// KeyLock serializes work per key. Keys that are not held or awaited are
// dropped from the table, so the table does not grow with the key space.
type KeyLock[K comparable] struct {
	mu    sync.Mutex
	locks map[K]*keyMutex
}

// UserLock serializes balance-changing sequences per user id.
type UserLock = KeyLock[string]

// DrawLock serializes admission and settlement per draw id.
type DrawLock = KeyLock[int64]

// New creates a new KeyLock instance.
func New[K comparable]() *KeyLock[K] {
	return &KeyLock[K]{locks: make(map[K]*keyMutex)}
}

// NewUserLock creates a lock table keyed by user id.
func NewUserLock() *UserLock {
	return New[string]()
}

// NewDrawLock creates a lock table keyed by draw id.
func NewDrawLock() *DrawLock {
	return New[int64]()
}

// acquire returns the mutex for key and registers one more holder or waiter.
func (l *KeyLock[K]) acquire(key K) *keyMutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	km, ok := l.locks[key]
	if !ok {
		km = &keyMutex{}
		l.locks[key] = km
	}
	km.refCount++
	return km
}

// release drops one holder or waiter and removes the entry when unused.
func (l *KeyLock[K]) release(key K, km *keyMutex) {
	l.mu.Lock()
	defer l.mu.Unlock()

	km.refCount--
	if km.refCount == 0 {
		delete(l.locks, key)
	}
}

// Lock acquires the lock for key.
func (l *KeyLock[K]) Lock(key K) {
	km := l.acquire(key)
	km.mu.Lock()
}

// Unlock releases the lock for key. Unlocking an unknown key is a no-op.
func (l *KeyLock[K]) Unlock(key K) {
	l.mu.Lock()
	km, ok := l.locks[key]
	l.mu.Unlock()
	if !ok {
		return
	}
	km.mu.Unlock()
	l.release(key, km)
}

// LockWithTimeout attempts to acquire the lock until timeout or ctx expires.
// Returns true if the lock was acquired.
func (l *KeyLock[K]) LockWithTimeout(ctx context.Context, key K, timeout time.Duration) bool {
	km := l.acquire(key)

	done := make(chan struct{})
	go func() {
		km.mu.Lock()
		close(done)
	}()

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-done:
		return true
	case <-timeoutCtx.Done():
		// The waiter still gets the mutex eventually; hand it straight back.
		go func() {
			<-done
			km.mu.Unlock()
			l.release(key, km)
		}()
		return false
	}
}

// WithLockContext executes fn while holding the lock for key, giving up with
// ErrLockTimeout after timeout or with ctx.Err() when ctx is cancelled.
func (l *KeyLock[K]) WithLockContext(ctx context.Context, key K, timeout time.Duration, fn func() error) error {
	if !l.LockWithTimeout(ctx, key, timeout) {
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrLockTimeout
	}
	defer l.Unlock(key)

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fn()
	}
}

// Package service provides business logic implementations.
//
// Every compound operation takes the per-key locks it needs (draw before
// user) and then runs its reads and writes in one store transaction, so a
// failed call leaves no partial effects behind.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lucky-draw/internal/pkg/apperr"
	"lucky-draw/internal/pkg/lock"
)

// DefaultLockTimeout bounds how long an operation waits for a per-key lock.
const DefaultLockTimeout = 5 * time.Second

// Clock returns the current time.
type Clock func() time.Time

// withKeyLock runs fn under the lock for key. A lock that cannot be acquired
// in time surfaces as apperr.ErrConflict so callers may retry.
func withKeyLock[K comparable](ctx context.Context, l *lock.KeyLock[K], key K, timeout time.Duration, fn func() error) error {
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	err := l.WithLockContext(ctx, key, timeout, fn)
	if errors.Is(err, lock.ErrLockTimeout) {
		return fmt.Errorf("lock %v: %w: %v", key, apperr.ErrConflict, err)
	}
	return err
}

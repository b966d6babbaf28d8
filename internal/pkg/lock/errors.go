package lock

import "errors"

// ErrLockTimeout is returned by WithLockContext when the key stays held by
// another caller for the whole wait.
var ErrLockTimeout = errors.New("key lock wait timed out")

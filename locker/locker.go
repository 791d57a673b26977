package locker

import (
	"context"

	"github.com/pkg/errors"
)

const (
	LOCKER_INMEMORY = "inmemory"
	LOCKER_POSTGRES = "postgres"
)

// ErrLockNotAcquired is returned when the key is already held.
// Callers use it as a single-flight signal: the work is already
// in progress elsewhere.
var ErrLockNotAcquired = errors.New("lock not acquired")

type Lock interface {
	ReleaseLock(ctx context.Context) error
}

// Locker hands out non-blocking exclusive locks keyed by name.
type Locker interface {
	AcquireLock(ctx context.Context, key string) (Lock, error)
}

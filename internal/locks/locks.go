// Package locks serialises token refreshes per user.
//
// LocalManager covers a single process. RedsyncManager uses the Redlock
// implementation from go-redsync/redsync/v4 so several instances sharing one
// token store do not refresh the same user at once.
//
// Example usage:
//
//	lock, err := manager.AcquireLock(ctx, "refresh:42", 30*time.Second)
//	if err != nil {
//		return err
//	}
//	defer lock.Release(context.Background())
package locks

import (
	"context"
	"time"
)

// Lock is a held lock
type Lock interface {
	Key() string
	Release(ctx context.Context) error
}

// Manager hands out locks. AcquireLock blocks until the lock is held or ctx
// is done. Expiration bounds how long a crashed holder can block others.
type Manager interface {
	AcquireLock(ctx context.Context, key string, expiration time.Duration) (Lock, error)
	Close() error
}

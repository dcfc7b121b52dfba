package locks

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"marketplace-oauth/internal/common/errors"
	"marketplace-oauth/internal/redis"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"
)

const retryDelay = 100 * time.Millisecond

// RedsyncManager implements distributed locking using the Redlock algorithm
type RedsyncManager struct {
	redsync *redsync.Redsync
}

type redsyncLock struct {
	key   string
	mutex *redsync.Mutex
}

// NewRedsyncManager creates a lock manager on a connected Redis client
func NewRedsyncManager(redisClient *redis.Client) (*RedsyncManager, error) {
	if redisClient == nil {
		return nil, errors.ConfigError("redis client is required")
	}

	pool := goredis.NewPool(redisClient.GetGoRedisClient())
	return &RedsyncManager{redsync: redsync.New(pool)}, nil
}

// AcquireLock retries until the lock is held, ctx is done, or roughly one
// expiration period has passed.
func (rm *RedsyncManager) AcquireLock(ctx context.Context, key string, expiration time.Duration) (Lock, error) {
	tries := int(expiration/retryDelay) + 1

	mutex := rm.redsync.NewMutex(fmt.Sprintf("lock:%s", key),
		redsync.WithExpiry(expiration),
		redsync.WithTries(tries),
		redsync.WithRetryDelay(retryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		return nil, errors.InternalError("failed to acquire distributed lock", err).WithContext("key", key)
	}

	return &redsyncLock{key: key, mutex: mutex}, nil
}

func (rm *RedsyncManager) Close() error {
	return nil
}

func (l *redsyncLock) Key() string {
	return l.key
}

// Release unlocks in Redis. A lock that already expired is not an error.
func (l *redsyncLock) Release(ctx context.Context) error {
	_, err := l.mutex.UnlockContext(ctx)
	if err != nil && !stderrors.Is(err, redsync.ErrLockAlreadyExpired) {
		return errors.InternalError("failed to release distributed lock", err).WithContext("key", l.key)
	}
	return nil
}

var _ Manager = (*RedsyncManager)(nil)

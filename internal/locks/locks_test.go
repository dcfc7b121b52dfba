package locks

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"marketplace-oauth/internal/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedsyncManager(t *testing.T) *RedsyncManager {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	client, err := redis.NewClient(&redis.Config{Address: s.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	manager, err := NewRedsyncManager(client)
	require.NoError(t, err)
	return manager
}

func managers(t *testing.T) map[string]Manager {
	return map[string]Manager{
		"local":   NewLocalManager(),
		"redsync": newRedsyncManager(t),
	}
}

func TestManager_MutualExclusion(t *testing.T) {
	for name, manager := range managers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var inside, maxInside int32
			var wg sync.WaitGroup

			for i := 0; i < 5; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					lock, err := manager.AcquireLock(ctx, "refresh:42", 5*time.Second)
					if !assert.NoError(t, err) {
						return
					}
					n := atomic.AddInt32(&inside, 1)
					for {
						m := atomic.LoadInt32(&maxInside)
						if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
							break
						}
					}
					time.Sleep(10 * time.Millisecond)
					atomic.AddInt32(&inside, -1)
					assert.NoError(t, lock.Release(ctx))
				}()
			}
			wg.Wait()

			assert.Equal(t, int32(1), maxInside)
		})
	}
}

func TestManager_ContentionRespectsContext(t *testing.T) {
	for name, manager := range managers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			held, err := manager.AcquireLock(ctx, "refresh:7", 5*time.Second)
			require.NoError(t, err)
			assert.Equal(t, "refresh:7", held.Key())

			shortCtx, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
			defer cancel()
			_, err = manager.AcquireLock(shortCtx, "refresh:7", 5*time.Second)
			assert.Error(t, err)

			other, err := manager.AcquireLock(ctx, "refresh:8", 5*time.Second)
			require.NoError(t, err)
			require.NoError(t, other.Release(ctx))

			require.NoError(t, held.Release(ctx))
			again, err := manager.AcquireLock(ctx, "refresh:7", 5*time.Second)
			require.NoError(t, err)
			require.NoError(t, again.Release(ctx))
		})
	}
}

func TestLocalManager_ForgetsIdleKeys(t *testing.T) {
	m := NewLocalManager()
	ctx := context.Background()

	lock, err := m.AcquireLock(ctx, "refresh:1", time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, m.held())

	require.NoError(t, lock.Release(ctx))
	require.NoError(t, lock.Release(ctx), "double release is harmless")
	assert.Equal(t, 0, m.held())
}

func TestNewRedsyncManager_RequiresClient(t *testing.T) {
	_, err := NewRedsyncManager(nil)
	assert.Error(t, err)
}

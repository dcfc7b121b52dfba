package locks

import (
	"context"
	"sync"
	"time"

	"marketplace-oauth/internal/common/errors"
)

// LocalManager provides per-key mutual exclusion inside one process
type LocalManager struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch      chan struct{}
	waiters int
}

type localLock struct {
	key     string
	slot    *slot
	manager *LocalManager
	once    sync.Once
}

func NewLocalManager() *LocalManager {
	return &LocalManager{slots: make(map[string]*slot)}
}

// AcquireLock waits for key. Expiration is not enforced in-process: a holder
// always releases through defer.
func (m *LocalManager) AcquireLock(ctx context.Context, key string, expiration time.Duration) (Lock, error) {
	m.mu.Lock()
	s, ok := m.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		m.slots[key] = s
	}
	s.waiters++
	m.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
		return &localLock{key: key, slot: s, manager: m}, nil
	case <-ctx.Done():
		m.forget(key, s)
		return nil, errors.InternalError("failed to acquire lock "+key, ctx.Err())
	}
}

// forget drops a slot once nobody holds or waits for it
func (m *LocalManager) forget(key string, s *slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.waiters--
	if s.waiters == 0 {
		delete(m.slots, key)
	}
}

// held reports how many keys currently have holders or waiters
func (m *LocalManager) held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}

func (m *LocalManager) Close() error {
	return nil
}

func (l *localLock) Key() string {
	return l.key
}

func (l *localLock) Release(ctx context.Context) error {
	l.once.Do(func() {
		<-l.slot.ch
		l.manager.forget(l.key, l.slot)
	})
	return nil
}

var _ Manager = (*LocalManager)(nil)

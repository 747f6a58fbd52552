// Package locking serializes page generation per cache key so that
// concurrent requests for the same missing page generate it once.
package locking

import (
	"context"
	"errors"
	"sync"
)

// ErrLockNotAcquired is returned when a lock could not be obtained before the
// context ended.
var ErrLockNotAcquired = errors.New("failed to acquire generation lock")

// Locker hands out exclusive per-key locks.
type Locker interface {
	Acquire(ctx context.Context, key string) (Lock, error)
}

// Lock is a held lock. Release is safe to call more than once.
type Lock interface {
	Release(ctx context.Context) error
}

// MemoryLocker locks keys within one process.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

// NewMemoryLocker returns an empty in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*keyLock)}
}

// Acquire blocks until key is free or ctx is done.
func (l *MemoryLocker) Acquire(ctx context.Context, key string) (Lock, error) {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.ch <- struct{}{}:
		return &memoryLock{locker: l, key: key, kl: kl}, nil
	case <-ctx.Done():
		l.unref(key, kl)
		return nil, errors.Join(ErrLockNotAcquired, ctx.Err())
	}
}

func (l *MemoryLocker) unref(key string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

// Len returns the number of keys currently locked or waited on.
func (l *MemoryLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

type memoryLock struct {
	once   sync.Once
	locker *MemoryLocker
	key    string
	kl     *keyLock
}

func (m *memoryLock) Release(context.Context) error {
	m.once.Do(func() {
		<-m.kl.ch
		m.locker.unref(m.key, m.kl)
	})
	return nil
}

package lock

import (
	"context"
	"sync"
)

// Locker is an advisory per-pair lock guarding a decision pass against an
// overlapping scheduler tick. TryAcquire never blocks: a busy lock means a
// previous pass is still in flight and the current tick should be skipped.
type Locker interface {
	TryAcquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// LocalLocker is the in-process implementation, sufficient for a single
// bot instance.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewLocalLocker creates a LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]bool)}
}

// TryAcquire takes the lock for key if it is free.
func (l *LocalLocker) TryAcquire(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

// Release frees the lock for key.
func (l *LocalLocker) Release(ctx context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

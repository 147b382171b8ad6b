package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrLocked is returned by LocalLocker when the partition is already held.
	ErrLocked = errors.New("partition already locked")
	// ErrLockLost cancels a load whose lease was taken over or expired.
	ErrLockLost = errors.New("partition lock lost")
)

// Lease is a held partition lock.
type Lease interface {
	// Refresh extends the lease. held is false once it belongs to someone
	// else or has expired.
	Refresh(ctx context.Context) (held bool, err error)
	Release(ctx context.Context) error
}

// Locker serializes loads that touch the same (table, city) partition.
type Locker interface {
	Acquire(ctx context.Context, table string, cityID int64) (Lease, error)
}

// LocalLocker is an in-process Locker used when Redis is not configured.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewLocalLocker creates a new in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]bool)}
}

// Acquire takes the partition lock or fails with ErrLocked.
func (l *LocalLocker) Acquire(_ context.Context, table string, cityID int64) (Lease, error) {
	key := fmt.Sprintf("%s:%d", table, cityID)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, fmt.Errorf("%s: %w", key, ErrLocked)
	}
	l.held[key] = true
	return &localLease{locker: l, key: key}, nil
}

type localLease struct {
	locker *LocalLocker
	key    string
	once   sync.Once
}

// Refresh always succeeds; local leases do not expire.
func (l *localLease) Refresh(context.Context) (bool, error) { return true, nil }

func (l *localLease) Release(context.Context) error {
	l.once.Do(func() {
		l.locker.mu.Lock()
		delete(l.locker.held, l.key)
		l.locker.mu.Unlock()
	})
	return nil
}

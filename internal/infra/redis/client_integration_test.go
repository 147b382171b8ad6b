package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/weatherload/internal/core/domain"
)

func newTestClient(t *testing.T, ttl time.Duration) *Client {
	t.Helper()
	url := os.Getenv("WEATHERLOAD_TEST_REDIS_URL")
	if url == "" {
		t.Skip("WEATHERLOAD_TEST_REDIS_URL not set")
	}
	c, err := NewClient(Config{URL: url, LockTTL: ttl})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestLock_RefreshAndRelease(t *testing.T) {
	c := newTestClient(t, 200*time.Millisecond)
	ctx := context.Background()
	table := fmt.Sprintf("test_%s", uuid.NewString()[:8])

	lock, err := c.Acquire(ctx, table, 102)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if _, err := c.Acquire(ctx, table, 102); !errors.Is(err, ErrLockHeld) {
		t.Fatalf("expected ErrLockHeld, got %v", err)
	}

	// Refreshing past the original TTL keeps the lock
	for i := 0; i < 4; i++ {
		time.Sleep(100 * time.Millisecond)
		held, err := lock.Refresh(ctx)
		if err != nil || !held {
			t.Fatalf("Refresh = %v, %v; want held", held, err)
		}
	}
	if _, err := c.Acquire(ctx, table, 102); !errors.Is(err, ErrLockHeld) {
		t.Fatalf("expected lock to survive refreshes, got %v", err)
	}

	if err := lock.Release(ctx); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	next, err := c.Acquire(ctx, table, 102)
	if err != nil {
		t.Fatalf("Acquire after release failed: %v", err)
	}
	_ = next.Release(ctx)
}

func TestLock_RefreshAfterTakeover(t *testing.T) {
	c := newTestClient(t, 50*time.Millisecond)
	ctx := context.Background()
	table := fmt.Sprintf("test_%s", uuid.NewString()[:8])

	first, err := c.Acquire(ctx, table, 104)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	second, err := c.Acquire(ctx, table, 104)
	if err != nil {
		t.Fatalf("expected expired lock to be acquirable: %v", err)
	}
	defer func() { _ = second.Release(ctx) }()

	held, err := first.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if held {
		t.Error("expired lease must not report held after takeover")
	}

	// Releasing the stale lease leaves the new owner's key alone
	_ = first.Release(ctx)
	if _, err := c.Acquire(ctx, table, 104); !errors.Is(err, ErrLockHeld) {
		t.Errorf("expected second owner to keep the lock, got %v", err)
	}
}

func TestFailedLoadRepo_AddOverwrites(t *testing.T) {
	c := newTestClient(t, time.Minute)
	ctx := context.Background()
	repo := NewFailedLoadRepo(c)

	fl := domain.FailedLoad{
		ID:       uuid.NewString(),
		Kind:     domain.JobHistory,
		Table:    "weather_history",
		CityID:   102,
		CityName: "Moscow",
		Attempts: 5,
		Error:    "connection reset",
		FailedAt: time.Now().UTC(),
	}
	t.Cleanup(func() { _ = repo.Resolve(context.Background(), fl.ID) })

	before, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if err := repo.Add(ctx, fl); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	fl.Attempts, fl.Error = 2, "deadlock detected"
	fl.FailedAt = fl.FailedAt.Add(time.Minute)
	if err := repo.Add(ctx, fl); err != nil {
		t.Fatalf("second Add failed: %v", err)
	}

	after, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if after-before != 1 {
		t.Errorf("expected one journal entry for one id, count grew by %d", after-before)
	}

	entries, err := repo.List(ctx, int(after))
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	for _, e := range entries {
		if e.ID == fl.ID && (e.Attempts != 2 || e.Error != "deadlock detected") {
			t.Errorf("expected overwritten entry, got %+v", e)
		}
	}
}

package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultLockTTL is the lock lifetime when none is configured.
const DefaultLockTTL = 10 * time.Minute

// Client wraps the Redis operations used to serialize ingest runs.
type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := cfg.LockTTL
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	return &Client{rdb: rdb, ttl: ttl}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Health pings Redis.
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Key helpers
func lockKey(table string, cityID int64) string {
	return fmt.Sprintf("weatherload:lock:%s:%d", table, cityID)
}

func progressKey(table string, cityID int64) string {
	return fmt.Sprintf("weatherload:progress:%s:%d", table, cityID)
}

// releaseScript deletes the lock only if it still holds our token, so an
// expired lock taken over by another run is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// refreshScript extends the lock only while it still holds our token.
var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// ErrLockHeld is returned when another run owns the lock.
var ErrLockHeld = errors.New("lock held by another run")

// Lock is a held partition lock identified by a random token.
type Lock struct {
	client *Client
	key    string
	token  string
}

// LockTTL returns the lifetime of a lock that is not refreshed.
func (c *Client) LockTTL() time.Duration { return c.ttl }

// Acquire takes the lock guarding loads of cityID into table.
func (c *Client) Acquire(ctx context.Context, table string, cityID int64) (*Lock, error) {
	key := lockKey(table, cityID)
	token := uuid.NewString()

	ok, err := c.rdb.SetNX(ctx, key, token, c.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("setnx failed: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrLockHeld)
	}
	return &Lock{client: c, key: key, token: token}, nil
}

// Refresh resets the lock TTL. held is false when the lock expired or
// belongs to another run.
func (l *Lock) Refresh(ctx context.Context) (bool, error) {
	n, err := refreshScript.Run(ctx, l.client.rdb, []string{l.key}, l.token, l.client.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("refresh %s: %w", l.key, err)
	}
	return n == 1, nil
}

// Release deletes the lock if it is still ours.
func (l *Lock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client.rdb, []string{l.key}, l.token).Err(); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}

// GetProgress returns the last day fully loaded for cityID. ok is false when
// nothing was recorded.
func (c *Client) GetProgress(ctx context.Context, table string, cityID int64) (time.Time, bool, error) {
	val, err := c.rdb.Get(ctx, progressKey(table, cityID)).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("get failed: %w", err)
	}
	day, err := time.Parse(time.DateOnly, val)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid progress %q: %w", val, err)
	}
	return day, true, nil
}

// SetProgress records day as the last day fully loaded for cityID.
func (c *Client) SetProgress(ctx context.Context, table string, cityID int64, day time.Time) error {
	return c.rdb.Set(ctx, progressKey(table, cityID), day.UTC().Format(time.DateOnly), 0).Err()
}

// ClearProgress removes progress tracking for cityID.
func (c *Client) ClearProgress(ctx context.Context, table string, cityID int64) error {
	return c.rdb.Del(ctx, progressKey(table, cityID)).Err()
}

package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/weatherload/internal/core/domain"
)

const failedLoadTTL = 7 * 24 * time.Hour

// FailedLoadRepo keeps a journal of loads that exhausted their attempts so
// they can be listed and replayed.
type FailedLoadRepo struct {
	rdb *redis.Client
}

// NewFailedLoadRepo creates a new Redis-backed failed load journal.
func NewFailedLoadRepo(client *Client) *FailedLoadRepo {
	return &FailedLoadRepo{rdb: client.rdb}
}

// Key helpers
func failedQueueKey() string {
	return "weatherload:failed"
}

func failedLoadKey(id string) string {
	return fmt.Sprintf("weatherload:failed:%s", id)
}

// Add records a failed load. Entries are ordered by failure time; adding
// an existing ID overwrites it and moves it to its new failure time.
func (r *FailedLoadRepo) Add(ctx context.Context, fl domain.FailedLoad) error {
	data, err := json.Marshal(fl)
	if err != nil {
		return fmt.Errorf("failed to marshal failed load: %w", err)
	}

	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, failedLoadKey(fl.ID), data, failedLoadTTL)
	pipe.ZAdd(ctx, failedQueueKey(), redis.Z{
		Score:  float64(fl.FailedAt.Unix()),
		Member: fl.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record failed load: %w", err)
	}
	return nil
}

// List returns up to limit failed loads, oldest first.
func (r *FailedLoadRepo) List(ctx context.Context, limit int) ([]domain.FailedLoad, error) {
	ids, err := r.rdb.ZRange(ctx, failedQueueKey(), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("zrange failed: %w", err)
	}

	out := make([]domain.FailedLoad, 0, len(ids))
	for _, id := range ids {
		data, err := r.rdb.Get(ctx, failedLoadKey(id)).Bytes()
		if err == redis.Nil {
			// Data expired but ID still in queue, remove it
			r.rdb.ZRem(ctx, failedQueueKey(), id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get failed load: %w", err)
		}

		var fl domain.FailedLoad
		if err := json.Unmarshal(data, &fl); err != nil {
			return nil, fmt.Errorf("failed to unmarshal failed load: %w", err)
		}
		out = append(out, fl)
	}
	return out, nil
}

// Resolve removes a failed load after it was replayed.
func (r *FailedLoadRepo) Resolve(ctx context.Context, id string) error {
	pipe := r.rdb.TxPipeline()
	pipe.ZRem(ctx, failedQueueKey(), id)
	pipe.Del(ctx, failedLoadKey(id))
	_, err := pipe.Exec(ctx)
	return err
}

// Count returns the number of journaled failures.
func (r *FailedLoadRepo) Count(ctx context.Context) (int64, error) {
	return r.rdb.ZCard(ctx, failedQueueKey()).Result()
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const attemptPrefix = "auth:attempts:"

// AttemptRepository counts attempts per key in fixed Redis windows.
// Without a client nothing is counted.
type AttemptRepository struct {
	redis redis.UniversalClient
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(client redis.UniversalClient) *AttemptRepository {
	return &AttemptRepository{redis: client}
}

// Hit increments the counter for key and returns the new value. The window
// starts with the first hit.
func (r *AttemptRepository) Hit(ctx context.Context, key string, window time.Duration) (int, error) {
	if r == nil || r.redis == nil {
		return 0, nil
	}
	redisKey := attemptPrefix + key
	count, err := r.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		return 0, fmt.Errorf("increment attempts: %w", err)
	}
	if count == 1 {
		if err := r.redis.Expire(ctx, redisKey, window).Err(); err != nil {
			return 0, fmt.Errorf("expire attempts: %w", err)
		}
	}
	return int(count), nil
}

// Count returns the current counter for key. Missing keys count as zero.
func (r *AttemptRepository) Count(ctx context.Context, key string) (int, error) {
	if r == nil || r.redis == nil {
		return 0, nil
	}
	count, err := r.redis.Get(ctx, attemptPrefix+key).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("read attempts: %w", err)
	}
	return count, nil
}

// Reset clears the counter for key.
func (r *AttemptRepository) Reset(ctx context.Context, key string) error {
	if r == nil || r.redis == nil {
		return nil
	}
	if err := r.redis.Del(ctx, attemptPrefix+key).Err(); err != nil {
		return fmt.Errorf("reset attempts: %w", err)
	}
	return nil
}

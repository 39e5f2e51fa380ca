package index

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const velocityKeyPrefix = "rollguard:velocity:"

// RedisVelocity keeps one sorted set per origin, scored by submission time in
// nanoseconds, so several service instances share the same windows.
type RedisVelocity struct {
	client *redis.Client
	window time.Duration
}

// NewRedisVelocity constructs a Redis-backed velocity index.
func NewRedisVelocity(client *redis.Client, window time.Duration) *RedisVelocity {
	if window <= 0 {
		window = DefaultVelocityWindow
	}
	return &RedisVelocity{client: client, window: window}
}

// RecordAndCount trims, appends and counts inside one MULTI/EXEC so concurrent
// callers observe a consistent window.
func (r *RedisVelocity) RecordAndCount(ctx context.Context, origin string, now time.Time) (int, error) {
	if origin == "" {
		return 0, nil
	}
	key := velocityKeyPrefix + origin
	cutoff := now.Add(-r.window).UnixNano()
	member := fmt.Sprintf("%d:%s", now.UnixNano(), uuid.NewString())

	var card *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "-inf", strconv.FormatInt(cutoff, 10))
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: member})
		card = pipe.ZCard(ctx, key)
		pipe.PExpire(ctx, key, r.window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("record velocity for origin: %w", err)
	}
	return int(card.Val()), nil
}

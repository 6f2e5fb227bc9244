package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps failures in a sorted set per key, scored by unix
// milliseconds, so every instance behind a load balancer shares the count.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "lockout:"}
}

func (s *RedisStore) Failures(ctx context.Context, key string, since time.Time) (int, time.Time, error) {
	k := s.prefix + key
	var (
		card   *redis.IntCmd
		oldest *redis.ZSliceCmd
	)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, k, "-inf", "("+strconv.FormatInt(since.UnixMilli(), 10))
		card = pipe.ZCard(ctx, k)
		oldest = pipe.ZRangeWithScores(ctx, k, 0, 0)
		return nil
	})
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("read lockout failures: %w", err)
	}
	count := int(card.Val())
	if count == 0 || len(oldest.Val()) == 0 {
		return 0, time.Time{}, nil
	}
	return count, time.UnixMilli(int64(oldest.Val()[0].Score)), nil
}

func (s *RedisStore) RecordFailure(ctx context.Context, key string, at time.Time, ttl time.Duration) error {
	k := s.prefix + key
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		// members must be unique; two failures can share a millisecond
		pipe.ZAdd(ctx, k, redis.Z{Score: float64(at.UnixMilli()), Member: uuid.NewString()})
		pipe.PExpire(ctx, k, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("record lockout failure: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("clear lockout: %w", err)
	}
	return nil
}

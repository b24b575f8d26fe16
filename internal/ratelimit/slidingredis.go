package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Limiter implements a sliding window rate limiter backed by Redis sorted
// sets. Checkout uses it per session so every replica shares one budget.
type Limiter struct {
	Client *redis.Client
	Prefix string
	Now    func() time.Time
}

func (l Limiter) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// Allow registers an event for the given key and returns whether it is within the limit.
func (l Limiter) Allow(ctx context.Context, key string, window time.Duration, limit int) (allowed bool, remaining int, reset time.Time, err error) {
	now := l.now()
	if l.Client == nil || limit <= 0 || window <= 0 {
		return true, limit, now.Add(window), nil
	}

	until := now.Add(window)
	cutoff := now.Add(-window).UnixNano()

	redisKey := l.Prefix + key
	member := fmt.Sprintf("%d:%s", now.UnixNano(), uuid.NewString())

	pipe := l.Client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", strconv.FormatInt(cutoff, 10))
	pipe.ZAdd(ctx, redisKey, redis.Z{Score: float64(now.UnixNano()), Member: member})
	countCmd := pipe.ZCard(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window)
	if _, err = pipe.Exec(ctx); err != nil {
		return false, 0, until, err
	}

	current := int(countCmd.Val())
	remaining = limit - current
	if remaining < 0 {
		remaining = 0
	}
	return current <= limit, remaining, until, nil
}

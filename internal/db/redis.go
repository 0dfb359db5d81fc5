package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient creates a Redis client and waits for it to answer a ping.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}

	rdb := redis.NewClient(opts)
	err = backoff.RetryNotify(func() error {
		return rdb.Ping(ctx).Err()
	}, retryPolicy(ctx), func(err error, wait time.Duration) {
		slog.Warn("redis not ready", "error", err, "retry_in", wait)
	})
	if err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return rdb, nil
}

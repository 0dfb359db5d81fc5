// Package db provides connection helpers that retry until the backing
// service answers or the retry budget runs out.
package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ConnectTimeout bounds the total time spent retrying a connection at startup.
var ConnectTimeout = 30 * time.Second

func retryPolicy(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = ConnectTimeout
	return backoff.WithContext(b, ctx)
}

// NewPostgresPool creates a pgxpool and waits for it to answer a ping.
func NewPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	err = backoff.RetryNotify(func() error {
		return pool.Ping(ctx)
	}, retryPolicy(ctx), func(err error, wait time.Duration) {
		slog.Warn("postgres not ready", "error", err, "retry_in", wait)
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return pool, nil
}

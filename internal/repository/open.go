package repository

import (
	"context"
	"strings"

	"github.com/tanner-pham/Baller-sub000/internal/db"
)

// IsPostgresURL reports whether databaseURL selects the Postgres store.
func IsPostgresURL(databaseURL string) bool {
	return strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://")
}

// Open returns the Postgres store for a postgres:// URL and the SQLite store
// for anything else, which is treated as a file path.
func Open(ctx context.Context, databaseURL string) (Store, error) {
	if !IsPostgresURL(databaseURL) {
		return NewSQLiteRepository(databaseURL)
	}
	pool, err := db.NewPostgresPool(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	repo, err := NewPostgresRepository(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return repo, nil
}

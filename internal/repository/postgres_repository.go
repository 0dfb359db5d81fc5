package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tanner-pham/Baller-sub000/internal/models"
)

// PostgresRepository implements Store on a pgx connection pool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository migrates the schema on an already-verified pool.
// Close releases the pool.
func NewPostgresRepository(ctx context.Context, pool *pgxpool.Pool) (*PostgresRepository, error) {
	repo := &PostgresRepository{pool: pool}
	if err := repo.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return repo, nil
}

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

func (r *PostgresRepository) initSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS listing_cache (
		listing_id TEXT PRIMARY KEY,
		listing_url TEXT NOT NULL,
		provider TEXT NOT NULL,
		payload JSONB NOT NULL,
		computed_at BIGINT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS condition_cache (
		listing_id TEXT PRIMARY KEY,
		payload JSONB NOT NULL,
		computed_at BIGINT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS similar_listings_cache (
		listing_id TEXT NOT NULL,
		query_hash TEXT NOT NULL,
		payload JSONB NOT NULL,
		computed_at BIGINT NOT NULL,
		expires_at BIGINT NOT NULL,
		PRIMARY KEY (listing_id, query_hash)
	);

	CREATE TABLE IF NOT EXISTS job_status (
		listing_id TEXT NOT NULL,
		query_hash TEXT NOT NULL,
		job_id TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		error_message TEXT,
		last_enqueued_at BIGINT NOT NULL,
		completed_at BIGINT,
		updated_at BIGINT NOT NULL,
		PRIMARY KEY (listing_id, query_hash)
	);

	CREATE INDEX IF NOT EXISTS idx_job_status_status ON job_status(status);
	`)
	return err
}

func (r *PostgresRepository) GetListing(ctx context.Context, listingID string) (*models.ListingCacheEntry, error) {
	var (
		entry      models.ListingCacheEntry
		payload    string
		computedAt int64
	)
	err := r.pool.QueryRow(ctx, `
		SELECT listing_id, listing_url, provider, payload::text, computed_at
		FROM listing_cache WHERE listing_id = $1
	`, listingID).Scan(&entry.ListingID, &entry.ListingURL, &entry.Provider, &payload, &computedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, cacheErr("get listing", err)
	}

	var p listingPayload
	if err := decodeJSON("get listing", payload, &p); err != nil {
		return nil, err
	}
	entry.Listing = p.Listing
	entry.InlineSimilar = p.InlineSimilar
	entry.ComputedAt = fromMillis(computedAt)
	return &entry, nil
}

func (r *PostgresRepository) UpsertListing(ctx context.Context, entry *models.ListingCacheEntry) error {
	payload, err := encodeJSON("upsert listing", listingPayload{Listing: entry.Listing, InlineSimilar: entry.InlineSimilar})
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO listing_cache (listing_id, listing_url, provider, payload, computed_at)
		VALUES ($1, $2, $3, $4::jsonb, $5)
		ON CONFLICT (listing_id) DO UPDATE SET
			listing_url = EXCLUDED.listing_url,
			provider = EXCLUDED.provider,
			payload = EXCLUDED.payload,
			computed_at = EXCLUDED.computed_at
	`, entry.ListingID, entry.ListingURL, entry.Provider, payload, entry.ComputedAt.UnixMilli())
	if err != nil {
		return cacheErr("upsert listing", err)
	}
	return nil
}

func (r *PostgresRepository) GetCondition(ctx context.Context, listingID string) (*models.ConditionCacheEntry, error) {
	var (
		entry      models.ConditionCacheEntry
		payload    string
		computedAt int64
	)
	err := r.pool.QueryRow(ctx, `
		SELECT listing_id, payload::text, computed_at FROM condition_cache WHERE listing_id = $1
	`, listingID).Scan(&entry.ListingID, &payload, &computedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, cacheErr("get condition", err)
	}
	if err := decodeJSON("get condition", payload, &entry.Assessment); err != nil {
		return nil, err
	}
	entry.ComputedAt = fromMillis(computedAt)
	return &entry, nil
}

func (r *PostgresRepository) UpsertCondition(ctx context.Context, entry *models.ConditionCacheEntry) error {
	payload, err := encodeJSON("upsert condition", entry.Assessment)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO condition_cache (listing_id, payload, computed_at)
		VALUES ($1, $2::jsonb, $3)
		ON CONFLICT (listing_id) DO UPDATE SET
			payload = EXCLUDED.payload,
			computed_at = EXCLUDED.computed_at
	`, entry.ListingID, payload, entry.ComputedAt.UnixMilli())
	if err != nil {
		return cacheErr("upsert condition", err)
	}
	return nil
}

func (r *PostgresRepository) GetSimilarListings(ctx context.Context, listingID, queryHash string) (*models.SimilarListingsCacheEntry, error) {
	var (
		entry                 models.SimilarListingsCacheEntry
		payload               string
		computedAt, expiresAt int64
	)
	err := r.pool.QueryRow(ctx, `
		SELECT listing_id, query_hash, payload::text, computed_at, expires_at
		FROM similar_listings_cache
		WHERE listing_id = $1 AND query_hash = $2
	`, listingID, queryHash).Scan(&entry.ListingID, &entry.QueryHash, &payload, &computedAt, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, cacheErr("get similar listings", err)
	}
	if err := decodeJSON("get similar listings", payload, &entry.Listings); err != nil {
		return nil, err
	}
	if entry.Listings == nil {
		entry.Listings = []models.NormalizedComparable{}
	}
	entry.ComputedAt = fromMillis(computedAt)
	entry.ExpiresAt = fromMillis(expiresAt)
	return &entry, nil
}

func (r *PostgresRepository) UpsertSimilarListings(ctx context.Context, entry *models.SimilarListingsCacheEntry) error {
	payload, err := encodeJSON("upsert similar listings", entry.Listings)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO similar_listings_cache (listing_id, query_hash, payload, computed_at, expires_at)
		VALUES ($1, $2, $3::jsonb, $4, $5)
		ON CONFLICT (listing_id, query_hash) DO UPDATE SET
			payload = EXCLUDED.payload,
			computed_at = EXCLUDED.computed_at,
			expires_at = EXCLUDED.expires_at
	`, entry.ListingID, entry.QueryHash, payload, entry.ComputedAt.UnixMilli(), entry.ExpiresAt.UnixMilli())
	if err != nil {
		return cacheErr("upsert similar listings", err)
	}
	return nil
}

func (r *PostgresRepository) GetJobStatus(ctx context.Context, listingID, queryHash string) (*models.JobStatusEntry, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobStatusColumns+`
		FROM job_status WHERE listing_id = $1 AND query_hash = $2`, listingID, queryHash)
	return scanPgJobStatusRow(row)
}

func (r *PostgresRepository) GetJobStatusByJobID(ctx context.Context, jobID string) (*models.JobStatusEntry, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobStatusColumns+`
		FROM job_status WHERE job_id = $1`, jobID)
	return scanPgJobStatusRow(row)
}

func (r *PostgresRepository) UpsertJobStatus(ctx context.Context, entry *models.JobStatusEntry) error {
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO job_status (`+jobStatusColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (listing_id, query_hash) DO UPDATE SET
			job_id = EXCLUDED.job_id,
			status = EXCLUDED.status,
			attempt_count = EXCLUDED.attempt_count,
			error_message = EXCLUDED.error_message,
			last_enqueued_at = EXCLUDED.last_enqueued_at,
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at
	`,
		entry.ListingID,
		entry.QueryHash,
		entry.JobID,
		string(entry.Status),
		entry.AttemptCount,
		entry.ErrorMessage,
		entry.LastEnqueuedAt.UnixMilli(),
		optionalMillis(entry.CompletedAt),
		entry.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return cacheErr("upsert job status", err)
	}
	return nil
}

func (r *PostgresRepository) ListJobStatuses(ctx context.Context, status models.JobStatus) ([]*models.JobStatusEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+jobStatusColumns+`
		FROM job_status WHERE status = $1 ORDER BY updated_at ASC`, string(status))
	if err != nil {
		return nil, cacheErr("list job status", err)
	}
	defer rows.Close()

	entries := []*models.JobStatusEntry{}
	for rows.Next() {
		entry, err := scanPgJobStatus(rows)
		if err != nil {
			return nil, cacheErr("list job status", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, cacheErr("list job status", err)
	}
	return entries, nil
}

func scanPgJobStatusRow(row pgx.Row) (*models.JobStatusEntry, error) {
	entry, err := scanPgJobStatus(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, cacheErr("get job status", err)
	}
	return entry, nil
}

func scanPgJobStatus(row pgx.Row) (*models.JobStatusEntry, error) {
	var (
		entry                     models.JobStatusEntry
		status                    string
		lastEnqueuedAt, updatedAt int64
		completedAt               *int64
	)
	err := row.Scan(
		&entry.ListingID,
		&entry.QueryHash,
		&entry.JobID,
		&status,
		&entry.AttemptCount,
		&entry.ErrorMessage,
		&lastEnqueuedAt,
		&completedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}
	entry.Status = models.JobStatus(status)
	entry.CompletedAt = optionalTime(completedAt)
	entry.LastEnqueuedAt = fromMillis(lastEnqueuedAt)
	entry.UpdatedAt = fromMillis(updatedAt)
	return &entry, nil
}

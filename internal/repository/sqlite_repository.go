package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tanner-pham/Baller-sub000/internal/models"
)

// SQLiteRepository implements Store using SQLite
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (and migrates) the database at dbPath
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := &SQLiteRepository{db: db}
	if err := repo.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return repo, nil
}

// Close closes the database connection
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS listing_cache (
		listing_id TEXT PRIMARY KEY,
		listing_url TEXT NOT NULL,
		provider TEXT NOT NULL,
		payload TEXT NOT NULL,
		computed_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS condition_cache (
		listing_id TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		computed_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS similar_listings_cache (
		listing_id TEXT NOT NULL,
		query_hash TEXT NOT NULL,
		payload TEXT NOT NULL,
		computed_at INTEGER NOT NULL,
		expires_at INTEGER NOT NULL,
		PRIMARY KEY (listing_id, query_hash)
	);

	CREATE TABLE IF NOT EXISTS job_status (
		listing_id TEXT NOT NULL,
		query_hash TEXT NOT NULL,
		job_id TEXT NOT NULL,
		status TEXT NOT NULL,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		error_message TEXT,
		last_enqueued_at INTEGER NOT NULL,
		completed_at INTEGER,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (listing_id, query_hash)
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_job_status_job_id ON job_status(job_id);
	CREATE INDEX IF NOT EXISTS idx_job_status_status ON job_status(status);
	`

	_, err := r.db.Exec(schema)
	return err
}

// GetListing returns the cached listing, or nil when there is none
func (r *SQLiteRepository) GetListing(ctx context.Context, listingID string) (*models.ListingCacheEntry, error) {
	var (
		entry      models.ListingCacheEntry
		payload    string
		computedAt int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT listing_id, listing_url, provider, payload, computed_at
		FROM listing_cache
		WHERE listing_id = ?
	`, listingID).Scan(&entry.ListingID, &entry.ListingURL, &entry.Provider, &payload, &computedAt)
	if errors.Is(err, sql.ErrNoRows) {
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

// UpsertListing writes the listing row, replacing any previous one
func (r *SQLiteRepository) UpsertListing(ctx context.Context, entry *models.ListingCacheEntry) error {
	payload, err := encodeJSON("upsert listing", listingPayload{Listing: entry.Listing, InlineSimilar: entry.InlineSimilar})
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO listing_cache (listing_id, listing_url, provider, payload, computed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(listing_id) DO UPDATE SET
			listing_url = excluded.listing_url,
			provider = excluded.provider,
			payload = excluded.payload,
			computed_at = excluded.computed_at
	`, entry.ListingID, entry.ListingURL, entry.Provider, payload, entry.ComputedAt.UnixMilli())
	if err != nil {
		return cacheErr("upsert listing", err)
	}
	return nil
}

// GetCondition returns the cached assessment, or nil when there is none
func (r *SQLiteRepository) GetCondition(ctx context.Context, listingID string) (*models.ConditionCacheEntry, error) {
	var (
		entry      models.ConditionCacheEntry
		payload    string
		computedAt int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT listing_id, payload, computed_at FROM condition_cache WHERE listing_id = ?
	`, listingID).Scan(&entry.ListingID, &payload, &computedAt)
	if errors.Is(err, sql.ErrNoRows) {
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

// UpsertCondition writes the assessment row
func (r *SQLiteRepository) UpsertCondition(ctx context.Context, entry *models.ConditionCacheEntry) error {
	payload, err := encodeJSON("upsert condition", entry.Assessment)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO condition_cache (listing_id, payload, computed_at)
		VALUES (?, ?, ?)
		ON CONFLICT(listing_id) DO UPDATE SET
			payload = excluded.payload,
			computed_at = excluded.computed_at
	`, entry.ListingID, payload, entry.ComputedAt.UnixMilli())
	if err != nil {
		return cacheErr("upsert condition", err)
	}
	return nil
}

// GetSimilarListings returns the row for (listingID, queryHash), or nil
func (r *SQLiteRepository) GetSimilarListings(ctx context.Context, listingID, queryHash string) (*models.SimilarListingsCacheEntry, error) {
	var (
		entry                 models.SimilarListingsCacheEntry
		payload               string
		computedAt, expiresAt int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT listing_id, query_hash, payload, computed_at, expires_at
		FROM similar_listings_cache
		WHERE listing_id = ? AND query_hash = ?
	`, listingID, queryHash).Scan(&entry.ListingID, &entry.QueryHash, &payload, &computedAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
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

// UpsertSimilarListings writes the comparables row
func (r *SQLiteRepository) UpsertSimilarListings(ctx context.Context, entry *models.SimilarListingsCacheEntry) error {
	payload, err := encodeJSON("upsert similar listings", entry.Listings)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO similar_listings_cache (listing_id, query_hash, payload, computed_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(listing_id, query_hash) DO UPDATE SET
			payload = excluded.payload,
			computed_at = excluded.computed_at,
			expires_at = excluded.expires_at
	`, entry.ListingID, entry.QueryHash, payload, entry.ComputedAt.UnixMilli(), entry.ExpiresAt.UnixMilli())
	if err != nil {
		return cacheErr("upsert similar listings", err)
	}
	return nil
}

const jobStatusColumns = `listing_id, query_hash, job_id, status, attempt_count, error_message,
	last_enqueued_at, completed_at, updated_at`

// GetJobStatus returns the projection for (listingID, queryHash), or nil
func (r *SQLiteRepository) GetJobStatus(ctx context.Context, listingID, queryHash string) (*models.JobStatusEntry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobStatusColumns+`
		FROM job_status WHERE listing_id = ? AND query_hash = ?`, listingID, queryHash)
	return scanJobStatusRow(row)
}

// GetJobStatusByJobID returns the projection for a job id, or nil
func (r *SQLiteRepository) GetJobStatusByJobID(ctx context.Context, jobID string) (*models.JobStatusEntry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobStatusColumns+`
		FROM job_status WHERE job_id = ?`, jobID)
	return scanJobStatusRow(row)
}

// UpsertJobStatus writes the projection row
func (r *SQLiteRepository) UpsertJobStatus(ctx context.Context, entry *models.JobStatusEntry) error {
	if entry.UpdatedAt.IsZero() {
		entry.UpdatedAt = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO job_status (`+jobStatusColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(listing_id, query_hash) DO UPDATE SET
			job_id = excluded.job_id,
			status = excluded.status,
			attempt_count = excluded.attempt_count,
			error_message = excluded.error_message,
			last_enqueued_at = excluded.last_enqueued_at,
			completed_at = excluded.completed_at,
			updated_at = excluded.updated_at
	`,
		entry.ListingID,
		entry.QueryHash,
		entry.JobID,
		entry.Status,
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

// ListJobStatuses returns every projection in a status, oldest update first
func (r *SQLiteRepository) ListJobStatuses(ctx context.Context, status models.JobStatus) ([]*models.JobStatusEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+jobStatusColumns+`
		FROM job_status WHERE status = ? ORDER BY updated_at ASC`, status)
	if err != nil {
		return nil, cacheErr("list job status", err)
	}
	defer rows.Close()

	entries := []*models.JobStatusEntry{}
	for rows.Next() {
		entry, err := scanJobStatus(rows)
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJobStatusRow(row *sql.Row) (*models.JobStatusEntry, error) {
	entry, err := scanJobStatus(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, cacheErr("get job status", err)
	}
	return entry, nil
}

func scanJobStatus(row rowScanner) (*models.JobStatusEntry, error) {
	var (
		entry                     models.JobStatusEntry
		errorMessage              sql.NullString
		lastEnqueuedAt, updatedAt int64
		completedAt               sql.NullInt64
	)
	err := row.Scan(
		&entry.ListingID,
		&entry.QueryHash,
		&entry.JobID,
		&entry.Status,
		&entry.AttemptCount,
		&errorMessage,
		&lastEnqueuedAt,
		&completedAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if errorMessage.Valid {
		entry.ErrorMessage = &errorMessage.String
	}
	if completedAt.Valid {
		entry.CompletedAt = optionalTime(&completedAt.Int64)
	}
	entry.LastEnqueuedAt = fromMillis(lastEnqueuedAt)
	entry.UpdatedAt = fromMillis(updatedAt)
	return &entry, nil
}

// Package postgres provides a Postgres-backed job store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leadfinch/contact-crawler/internal/jobs"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// uniqueViolation is the Postgres error code for duplicate keys.
const uniqueViolation = "23505"

// Config controls the Postgres connection pool used for job rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// Store persists jobs in Postgres.
type Store struct {
	pool  pgxPool
	table string
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("jobs.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "contact_jobs"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{
		pool:  pool,
		table: table,
	}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool pgxPool, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "contact_jobs"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// CreateJob inserts a job row.
func (s *Store) CreateJob(ctx context.Context, job jobs.Job) error {
	if job.ID == "" {
		return fmt.Errorf("job id is required")
	}
	created := job.Created
	if created.IsZero() {
		created = time.Now().UTC()
	}
	countersJSON, err := json.Marshal(job.Counters)
	if err != nil {
		return fmt.Errorf("marshal counters: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	source,
	artifact,
	uri,
	status,
	error_text,
	counters,
	created_at,
	started_at,
	finished_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)`, s.table)

	args := []any{
		job.ID,
		job.Source,
		job.Artifact,
		job.URI,
		job.Status,
		job.ErrorText,
		countersJSON,
		created,
		job.Started,
		job.Finished,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("job %s: %w", job.ID, jobs.ErrExists)
		}
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// UpdateJobStatus moves a job through its lifecycle. The row keeps the
// first started_at stamp and gains finished_at on terminal statuses.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status jobs.Status, errText string, counters jobs.Counters) error {
	countersJSON, err := json.Marshal(counters)
	if err != nil {
		return fmt.Errorf("marshal counters: %w", err)
	}
	query := fmt.Sprintf(`
UPDATE %s
SET status = $2,
	error_text = $3,
	counters = $4,
	started_at = CASE WHEN $2 = 'running' AND started_at IS NULL THEN now() ELSE started_at END,
	finished_at = CASE WHEN $2 IN ('succeeded', 'failed') THEN now() ELSE finished_at END
WHERE id = $1`, s.table)

	tag, err := s.pool.Exec(ctx, query, jobID, status, errText, countersJSON)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", jobID, jobs.ErrNotFound)
	}
	return nil
}

// AttachArtifact records the report artifact written for a job.
func (s *Store) AttachArtifact(ctx context.Context, jobID, artifact, uri string) error {
	query := fmt.Sprintf(`UPDATE %s SET artifact = $2, uri = $3 WHERE id = $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, jobID, artifact, uri)
	if err != nil {
		return fmt.Errorf("attach artifact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", jobID, jobs.ErrNotFound)
	}
	return nil
}

// GetJob retrieves a single job by its ID.
func (s *Store) GetJob(ctx context.Context, jobID string) (jobs.Job, error) {
	query := fmt.Sprintf(`
SELECT id, source, artifact, uri, status, error_text, counters, created_at, started_at, finished_at
FROM %s
WHERE id = $1`, s.table)

	job, err := scanJob(s.pool.QueryRow(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return jobs.Job{}, fmt.Errorf("job %s: %w", jobID, jobs.ErrNotFound)
		}
		return jobs.Job{}, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListJobs retrieves jobs newest first, with optional status filtering.
func (s *Store) ListJobs(ctx context.Context, status *jobs.Status, limit, offset int) ([]jobs.Job, error) {
	query := fmt.Sprintf(`
SELECT id, source, artifact, uri, status, error_text, counters, created_at, started_at, finished_at
FROM %s
WHERE ($1::text IS NULL OR status = $1)
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`, s.table)

	rows, err := s.pool.Query(ctx, query, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	out := []jobs.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		out = append(out, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job rows: %w", err)
	}
	return out, nil
}

func scanJob(row pgx.Row) (jobs.Job, error) {
	var (
		job          jobs.Job
		statusText   string
		countersJSON []byte
	)
	err := row.Scan(
		&job.ID,
		&job.Source,
		&job.Artifact,
		&job.URI,
		&statusText,
		&job.ErrorText,
		&countersJSON,
		&job.Created,
		&job.Started,
		&job.Finished,
	)
	if err != nil {
		return jobs.Job{}, err
	}
	job.Status = jobs.Status(statusText)
	if len(countersJSON) > 0 {
		if err := json.Unmarshal(countersJSON, &job.Counters); err != nil {
			return jobs.Job{}, fmt.Errorf("unmarshal counters: %w", err)
		}
	}
	return job, nil
}

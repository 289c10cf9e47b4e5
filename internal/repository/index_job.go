package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/docindex/internal/domain"
)

var ErrIndexJobNotFound = errors.New("index job not found")

type IndexJobRepository struct {
	db dbtx
}

func NewIndexJobRepository(pool *pgxpool.Pool) *IndexJobRepository {
	return &IndexJobRepository{db: pool}
}

func NewIndexJobRepositoryWithTx(tx pgx.Tx) *IndexJobRepository {
	return &IndexJobRepository{db: tx}
}

func (r *IndexJobRepository) Create(ctx context.Context, job *domain.IndexJob) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO index_jobs (id, document_id, status, retries, error, created_at, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.ID, job.DocumentID, job.Status, job.Retries, nullableString(job.Error), job.CreatedAt, job.ProcessedAt,
	)
	return err
}

func (r *IndexJobRepository) GetByID(ctx context.Context, id string) (*domain.IndexJob, error) {
	job, err := scanIndexJob(r.db.QueryRow(ctx,
		`SELECT id, document_id, status, retries, error, created_at, processed_at
		 FROM index_jobs WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrIndexJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// HasActiveJob reports whether documentID already has a pending or running job.
func (r *IndexJobRepository) HasActiveJob(ctx context.Context, documentID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
			 SELECT 1 FROM index_jobs
			 WHERE document_id = $1 AND status IN ($2, $3)
		 )`,
		documentID, domain.IndexJobStatusPending, domain.IndexJobStatusProcessing,
	).Scan(&exists)
	return exists, err
}

func (r *IndexJobRepository) GetPending(ctx context.Context, limit int) ([]*domain.IndexJob, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, document_id, status, retries, error, created_at, processed_at
		 FROM index_jobs
		 WHERE status = $1
		 ORDER BY created_at ASC
		 LIMIT $2`,
		domain.IndexJobStatusPending, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanIndexJobs(rows)
}

// ClaimPending moves up to limit pending jobs to processing. Rows locked by
// another worker are skipped.
func (r *IndexJobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.IndexJob, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`WITH cte AS (
			 SELECT id
			 FROM index_jobs
			 WHERE status = $1
			 ORDER BY created_at ASC
			 FOR UPDATE SKIP LOCKED
			 LIMIT $2
		 )
		 UPDATE index_jobs
		 SET status = $3,
		     error = NULL,
		     processed_at = NULL
		 FROM cte
		 WHERE index_jobs.id = cte.id
		 RETURNING index_jobs.id, index_jobs.document_id, index_jobs.status, index_jobs.retries,
		           index_jobs.error, index_jobs.created_at, index_jobs.processed_at`,
		domain.IndexJobStatusPending, limit, domain.IndexJobStatusProcessing,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanIndexJobs(rows)
}

func (r *IndexJobRepository) UpdateStatus(ctx context.Context, id string, status domain.IndexJobStatus, errMsg string) error {
	var processedAt *time.Time
	if status == domain.IndexJobStatusCompleted || status == domain.IndexJobStatusFailed {
		now := time.Now().UTC()
		processedAt = &now
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE index_jobs SET status = $1, error = $2, processed_at = $3 WHERE id = $4`,
		status, nullableString(errMsg), processedAt, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrIndexJobNotFound
	}
	return nil
}

func (r *IndexJobRepository) IncrementRetries(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE index_jobs SET retries = retries + 1 WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrIndexJobNotFound
	}
	return nil
}

func (r *IndexJobRepository) GetPendingJobs(ctx context.Context) ([]*domain.IndexJob, error) {
	return r.ClaimPending(ctx, 100)
}

func (r *IndexJobRepository) UpdateJobStatus(ctx context.Context, jobID string, status domain.IndexJobStatus, errMsg string) error {
	return r.UpdateStatus(ctx, jobID, status, errMsg)
}

func scanIndexJob(row pgx.Row) (*domain.IndexJob, error) {
	var job domain.IndexJob
	var errMsg pgtype.Text
	if err := row.Scan(&job.ID, &job.DocumentID, &job.Status, &job.Retries, &errMsg, &job.CreatedAt, &job.ProcessedAt); err != nil {
		return nil, err
	}
	if errMsg.Valid {
		job.Error = errMsg.String
	}
	return &job, nil
}

func scanIndexJobs(rows pgx.Rows) ([]*domain.IndexJob, error) {
	var jobs []*domain.IndexJob
	for rows.Next() {
		job, err := scanIndexJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

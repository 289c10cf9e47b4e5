package jobs

import (
	"context"
	"fmt"
	"log"

	"github.com/getsentry/sentry-go"

	"github.com/cloo-solutions/docindex/internal/domain"
	"github.com/cloo-solutions/docindex/internal/telemetry"
)

const (
	// MaxRetries is the maximum number of attempts for a failed job
	MaxRetries = 3
)

// IndexJobRepository defines the interface for index job persistence
type IndexJobRepository interface {
	// GetPendingJobs retrieves and claims pending index jobs
	GetPendingJobs(ctx context.Context) ([]*domain.IndexJob, error)

	// UpdateJobStatus updates the status of an index job
	UpdateJobStatus(ctx context.Context, jobID string, status domain.IndexJobStatus, errMsg string) error

	// IncrementRetries increments the retry count for a job
	IncrementRetries(ctx context.Context, jobID string) error
}

// DocumentProcessor indexes a single document
type DocumentProcessor interface {
	Process(ctx context.Context, documentID string) error
}

// IndexWorker processes index jobs
type IndexWorker struct {
	repo      IndexJobRepository
	processor DocumentProcessor
}

// NewIndexWorker creates a new IndexWorker instance
func NewIndexWorker(repo IndexJobRepository, processor DocumentProcessor) *IndexWorker {
	return &IndexWorker{
		repo:      repo,
		processor: processor,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *IndexWorker) ProcessJobs(ctx context.Context) error {
	jobs, err := w.repo.GetPendingJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	log.Printf("Processing %d pending index jobs", len(jobs))

	for _, job := range jobs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := w.processJob(ctx, job); err != nil {
			log.Printf("Error processing job %s: %v", job.ID, err)
		}
	}

	return nil
}

func (w *IndexWorker) processJob(ctx context.Context, job *domain.IndexJob) error {
	if job.DocumentID == "" {
		errMsg := "job has no document_id"
		if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.IndexJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return fmt.Errorf("job %s has no document_id", job.ID)
	}

	ctx, span := telemetry.StartTransaction(ctx, "IndexWorker.processJob", "queue.process", telemetry.SpanAttributes{
		DocumentID: job.DocumentID,
		JobID:      job.ID,
		Operation:  "index_job",
	})
	defer span.End()

	log.Printf("Processing job %s for document %s", job.ID, job.DocumentID)
	if err := w.processor.Process(ctx, job.DocumentID); err != nil {
		span.SetStatus(sentry.SpanStatusInternalError)
		return w.handleJobFailure(ctx, job, err)
	}

	if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.IndexJobStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	log.Printf("Job %s completed successfully", job.ID)
	return nil
}

// handleJobFailure handles a failed job with retry logic
func (w *IndexWorker) handleJobFailure(ctx context.Context, job *domain.IndexJob, jobErr error) error {
	log.Printf("Job %s failed: %v", job.ID, jobErr)

	if err := w.repo.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	if job.Retries+1 >= MaxRetries {
		log.Printf("Job %s exceeded max retries (%d), marking as failed", job.ID, MaxRetries)
		telemetry.CaptureError(ctx, fmt.Errorf("index job %s for document %s failed: %w", job.ID, job.DocumentID, jobErr))
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.IndexJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	log.Printf("Job %s will be retried (attempt %d/%d)", job.ID, job.Retries+1, MaxRetries)
	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.repo.UpdateJobStatus(ctx, job.ID, domain.IndexJobStatusPending, errMsg); err != nil {
		return fmt.Errorf("failed to reset job status to pending: %w", err)
	}

	return nil
}

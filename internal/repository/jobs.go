package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/groupcart/payproof/constants"
	"github.com/groupcart/payproof/internal/common"
	"github.com/groupcart/payproof/internal/entity"
)

type JobRepository interface {
	Create(ctx context.Context, job *entity.BulkVerificationJob) error
	// RecordResult bumps processed plus the succeeded or failed counter.
	RecordResult(ctx context.Context, jobID uuid.UUID, succeeded bool) error
	Finish(ctx context.Context, jobID uuid.UUID, status constants.JobStatus, errorMessage *string) error
	GetByID(ctx context.Context, jobID uuid.UUID) (*entity.BulkVerificationJob, error)
}

type jobRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewJobRepository(pool *pgxpool.Pool, logger *slog.Logger) JobRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &jobRepository{pool: pool, logger: logger}
}

func (r *jobRepository) Create(ctx context.Context, job *entity.BulkVerificationJob) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.StartedAt.IsZero() {
		job.StartedAt = time.Now().UTC()
	}
	ids := make([]string, len(job.ProofIDs))
	for i, id := range job.ProofIDs {
		ids[i] = id.String()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO bulk_verification_jobs
		    (id, kind, status, proof_ids, total, processed, succeeded, failed, started_at)
		VALUES ($1, $2, $3, $4, $5, 0, 0, 0, $6)`,
		job.ID, string(job.Kind), string(job.Status), ids, job.Total, job.StartedAt)
	return common.WrapError(err, "create bulk job")
}

func (r *jobRepository) RecordResult(ctx context.Context, jobID uuid.UUID, succeeded bool) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE bulk_verification_jobs
		SET processed = processed + 1,
		    succeeded = succeeded + CASE WHEN $2 THEN 1 ELSE 0 END,
		    failed = failed + CASE WHEN $2 THEN 0 ELSE 1 END
		WHERE id = $1`, jobID, succeeded)
	return common.WrapError(err, "record job result")
}

func (r *jobRepository) Finish(ctx context.Context, jobID uuid.UUID, status constants.JobStatus, errorMessage *string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE bulk_verification_jobs
		SET status = $2, error_message = $3, finished_at = now()
		WHERE id = $1`, jobID, string(status), errorMessage)
	return common.WrapError(err, "finish bulk job")
}

func (r *jobRepository) GetByID(ctx context.Context, jobID uuid.UUID) (*entity.BulkVerificationJob, error) {
	var job entity.BulkVerificationJob
	var kind, status string
	var ids []string
	err := r.pool.QueryRow(ctx, `
		SELECT id, kind, status, proof_ids, total, processed, succeeded, failed,
		       error_message, started_at, finished_at
		FROM bulk_verification_jobs WHERE id = $1`, jobID).Scan(
		&job.ID, &kind, &status, &ids, &job.Total, &job.Processed,
		&job.Succeeded, &job.Failed, &job.ErrorMessage, &job.StartedAt, &job.FinishedAt,
	)
	if err != nil {
		return nil, common.WrapError(err, "get bulk job")
	}
	job.Kind = entity.SweepKind(kind)
	job.Status = constants.JobStatus(status)
	job.ProofIDs = make([]uuid.UUID, 0, len(ids))
	for _, s := range ids {
		id, err := uuid.Parse(s)
		if err != nil {
			r.logger.Warn("skipping malformed proof id in job", "job_id", jobID, "value", s)
			continue
		}
		job.ProofIDs = append(job.ProofIDs, id)
	}
	return &job, nil
}

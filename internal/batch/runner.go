package batch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/groupcart/payproof/constants"
	"github.com/groupcart/payproof/internal/core"
	"github.com/groupcart/payproof/internal/entity"
	"github.com/groupcart/payproof/internal/repository"
)

// Runner drives the two scheduled sweeps. A sweep claims a bounded batch of
// pending proofs and feeds them to a pool of workers, each running the same
// single-proof pipeline the synchronous path uses. Row failures are recorded
// on the job and never abort the sweep.
type Runner struct {
	logger  *slog.Logger
	proc    *core.Processor
	proofs  repository.ProofRepository
	jobs    repository.JobRepository
	workers int
	batch   int
	timeout time.Duration
}

type Option func(*Runner)

func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.batch = n
		}
	}
}

func WithRowTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func NewRunner(proc *core.Processor, proofs repository.ProofRepository, jobs repository.JobRepository, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		logger:  logger,
		proc:    proc,
		proofs:  proofs,
		jobs:    jobs,
		workers: 4,
		batch:   100,
		timeout: 2 * time.Minute,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RunAutoVerifySweep re-applies the decision pipeline to pending proofs.
// Proofs without a stored extraction are claimed too; the pipeline runs
// extraction inline, so failed extractions get retried until the attempt
// threshold flags them. Re-invoking over resolved proofs is a no-op.
func (r *Runner) RunAutoVerifySweep(ctx context.Context) (*entity.BulkVerificationJob, error) {
	return r.run(ctx, entity.SweepAutoVerify, false, func(ctx context.Context, id uuid.UUID) error {
		_, err := r.proc.ProcessProof(ctx, id, "", "")
		return err
	})
}

// RunFlagSweep applies the fraud heuristics to pending proofs with a known
// extraction confidence.
func (r *Runner) RunFlagSweep(ctx context.Context) (*entity.BulkVerificationJob, error) {
	return r.run(ctx, entity.SweepFlag, true, func(ctx context.Context, id uuid.UUID) error {
		_, err := r.proc.FlagPending(ctx, id)
		return err
	})
}

func (r *Runner) run(ctx context.Context, kind entity.SweepKind, requireExtraction bool, fn func(context.Context, uuid.UUID) error) (*entity.BulkVerificationJob, error) {
	claimed, err := r.proofs.ClaimPending(ctx, r.batch, requireExtraction)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(claimed))
	for i, p := range claimed {
		ids[i] = p.ID
	}
	job := &entity.BulkVerificationJob{
		ID:        uuid.New(),
		Kind:      kind,
		Status:    constants.JobStatusRunning,
		ProofIDs:  ids,
		Total:     len(ids),
		StartedAt: time.Now().UTC(),
	}
	if err := r.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	r.logger.Info("sweep.start", "kind", kind, "job_id", job.ID, "total", job.Total, "workers", r.workers)

	ch := make(chan uuid.UUID)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for id := range ch {
				rowCtx, cancel := context.WithTimeout(ctx, r.timeout)
				err := fn(rowCtx, id)
				cancel()

				mu.Lock()
				job.Processed++
				if err != nil {
					job.Failed++
				} else {
					job.Succeeded++
				}
				mu.Unlock()

				if recErr := r.jobs.RecordResult(ctx, job.ID, err == nil); recErr != nil {
					r.logger.Error("sweep.record_failed", "job_id", job.ID, "proof_id", id, "error", recErr)
				}
				if err != nil {
					r.logger.Error("sweep.row_failed", "kind", kind, "worker_id", workerID, "proof_id", id, "error", err)
				}
			}
		}(i + 1)
	}

	fatal := ctx.Err()
	for _, id := range ids {
		if ctx.Err() != nil {
			fatal = ctx.Err()
			break
		}
		ch <- id
	}
	close(ch)
	wg.Wait()

	now := time.Now().UTC()
	job.FinishedAt = &now
	if fatal != nil {
		msg := fatal.Error()
		job.Status = constants.JobStatusFailed
		job.ErrorMessage = &msg
	} else {
		job.Status = constants.JobStatusCompleted
	}
	// The job row must reflect the terminal state even if the sweep context
	// was cancelled mid-run.
	if err := r.jobs.Finish(context.WithoutCancel(ctx), job.ID, job.Status, job.ErrorMessage); err != nil {
		r.logger.Error("sweep.finish_failed", "job_id", job.ID, "error", err)
	}

	r.logger.Info("sweep.done",
		"kind", kind, "job_id", job.ID, "status", job.Status,
		"processed", job.Processed, "succeeded", job.Succeeded, "failed", job.Failed)
	return job, nil
}

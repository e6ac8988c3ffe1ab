package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/groupcart/payproof/constants"
	"github.com/groupcart/payproof/internal/common"
	"github.com/groupcart/payproof/internal/entity"
)

type SubmissionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Submission, error)
	ListPendingBySeller(ctx context.Context, sellerID uuid.UUID) ([]*entity.Submission, error)
	// MarkPaid performs the pending -> paid transition as a single
	// conditional write: it succeeds only if the submission has no paid proof
	// yet. Two proofs racing to approve the same submission get exactly one
	// winner; the loser receives ErrConflict.
	MarkPaid(ctx context.Context, submissionID, proofID uuid.UUID) error
}

type submissionRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewSubmissionRepository(pool *pgxpool.Pool, logger *slog.Logger) SubmissionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &submissionRepository{pool: pool, logger: logger}
}

const submissionColumns = `id, order_id, seller_id, payment_method_id,
	total_amount, currency_code, payment_reference, status, paid_proof_id, created_at`

func scanSubmission(row pgx.Row) (*entity.Submission, error) {
	var s entity.Submission
	var status string
	err := row.Scan(
		&s.ID, &s.OrderID, &s.SellerID, &s.PaymentMethodID,
		&s.TotalAmount, &s.CurrencyCode, &s.PaymentReference, &status,
		&s.PaidProofID, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Status = constants.SubmissionStatus(status)
	return &s, nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Submission, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id)
	s, err := scanSubmission(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewAppError("SUBMISSION_NOT_FOUND", "submission not found", common.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to load submission", "submission_id", id, "error", err)
		return nil, common.WrapError(err, "get submission")
	}
	return s, nil
}

func (r *submissionRepository) ListPendingBySeller(ctx context.Context, sellerID uuid.UUID) ([]*entity.Submission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+submissionColumns+`
		FROM submissions
		WHERE seller_id = $1 AND status = 'pending'
		ORDER BY created_at`, sellerID)
	if err != nil {
		return nil, common.WrapError(err, "list pending submissions")
	}
	defer rows.Close()

	var out []*entity.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, common.WrapError(err, "scan submission")
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *submissionRepository) MarkPaid(ctx context.Context, submissionID, proofID uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `
		UPDATE submissions
		SET status = 'paid', paid_proof_id = $2
		WHERE id = $1
		  AND status = 'pending'
		  AND paid_proof_id IS NULL`,
		submissionID, proofID)
	if err != nil {
		return common.WrapError(err, "mark submission paid")
	}
	if ct.RowsAffected() == 0 {
		// Either the submission does not exist or another proof won the race.
		var exists bool
		if err := r.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM submissions WHERE id = $1)`, submissionID).Scan(&exists); err != nil {
			return common.WrapError(err, "mark submission paid")
		}
		if !exists {
			return common.NewAppError("SUBMISSION_NOT_FOUND", "submission not found", common.ErrNotFound)
		}
		return common.NewAppError("ALREADY_PAID", "submission already has an approved proof", common.ErrConflict)
	}
	return nil
}

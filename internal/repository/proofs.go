package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/groupcart/payproof/constants"
	"github.com/groupcart/payproof/internal/common"
	"github.com/groupcart/payproof/internal/entity"
)

// ExtractionUpdate carries the adapter's output onto a proof row.
type ExtractionUpdate struct {
	AIConfidence       float32
	ExtractedAmount    *float64
	ExtractedReference *string
	ExtractedMethod    *string
}

// DecisionUpdate carries a status transition onto a proof row.
type DecisionUpdate struct {
	Status          constants.VerificationStatus
	VerifiedBy      *string
	RejectionReason *string
	Notes           *string
}

type ProofRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.PaymentProof, error)
	RecordExtraction(ctx context.Context, id uuid.UUID, upd ExtractionUpdate) error
	IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error)
	// ApplyDecision transitions a non-terminal proof. It returns ErrConflict
	// when the proof is already terminal, so an approved row stays immutable.
	ApplyDecision(ctx context.Context, id uuid.UUID, upd DecisionUpdate) error
	// AppendFlags adds reasons to flagged_reasons (deduplicated, never
	// removed) and forces status to flagged unless the proof is terminal.
	AppendFlags(ctx context.Context, id uuid.UUID, reasons []string) error
	// ClaimPending picks up to limit pending proofs oldest-first, skipping
	// rows locked or recently claimed by a concurrent worker.
	ClaimPending(ctx context.Context, limit int, requireExtraction bool) ([]*entity.PaymentProof, error)
	// HasApprovedWithReference reports whether a different proof with the
	// same extracted reference already holds approved status.
	HasApprovedWithReference(ctx context.Context, reference string, excludeProofID uuid.UUID) (bool, error)
}

type proofRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewProofRepository(pool *pgxpool.Pool, logger *slog.Logger) ProofRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &proofRepository{pool: pool, logger: logger}
}

const proofColumns = `id, seller_id, submission_id, payment_method_id, file_path,
	uploader_name, uploader_phone, ai_confidence, extracted_amount,
	extracted_reference, extracted_method, processing_attempts,
	verification_status, verified_by, verified_at, rejection_reason,
	flagged_reasons, manual_review_notes, created_at, updated_at`

func scanProof(row pgx.Row) (*entity.PaymentProof, error) {
	var p entity.PaymentProof
	var status string
	err := row.Scan(
		&p.ID, &p.SellerID, &p.SubmissionID, &p.PaymentMethodID, &p.FilePath,
		&p.UploaderName, &p.UploaderPhone, &p.AIConfidence, &p.ExtractedAmount,
		&p.ExtractedReference, &p.ExtractedMethod, &p.ProcessingAttempts,
		&status, &p.VerifiedBy, &p.VerifiedAt, &p.RejectionReason,
		&p.FlaggedReasons, &p.ManualReviewNotes, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.VerificationStatus = constants.VerificationStatus(status)
	return &p, nil
}

func (r *proofRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.PaymentProof, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+proofColumns+` FROM payment_proofs WHERE id = $1`, id)
	p, err := scanProof(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewAppError("PROOF_NOT_FOUND", "payment proof not found", common.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to load proof", "proof_id", id, "error", err)
		return nil, common.WrapError(err, "get proof")
	}
	return p, nil
}

func (r *proofRepository) RecordExtraction(ctx context.Context, id uuid.UUID, upd ExtractionUpdate) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE payment_proofs
		SET ai_confidence = $2,
		    extracted_amount = $3,
		    extracted_reference = $4,
		    extracted_method = $5,
		    updated_at = now()
		WHERE id = $1`,
		id, upd.AIConfidence, upd.ExtractedAmount, upd.ExtractedReference, upd.ExtractedMethod)
	return common.WrapError(err, "record extraction")
}

func (r *proofRepository) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	var attempts int
	err := r.pool.QueryRow(ctx, `
		UPDATE payment_proofs
		SET processing_attempts = processing_attempts + 1, updated_at = now()
		WHERE id = $1
		RETURNING processing_attempts`, id).Scan(&attempts)
	if err != nil {
		return 0, common.WrapError(err, "increment attempts")
	}
	return attempts, nil
}

func (r *proofRepository) ApplyDecision(ctx context.Context, id uuid.UUID, upd DecisionUpdate) error {
	var verifiedAt *time.Time
	if upd.Status.Terminal() {
		now := time.Now().UTC()
		verifiedAt = &now
	}
	ct, err := r.pool.Exec(ctx, `
		UPDATE payment_proofs
		SET verification_status = $2,
		    verified_by = COALESCE($3, verified_by),
		    verified_at = COALESCE($4, verified_at),
		    rejection_reason = COALESCE($5, rejection_reason),
		    manual_review_notes = COALESCE($6, manual_review_notes),
		    updated_at = now()
		WHERE id = $1
		  AND verification_status NOT IN ('approved', 'rejected')`,
		id, string(upd.Status), upd.VerifiedBy, verifiedAt, upd.RejectionReason, upd.Notes)
	if err != nil {
		return common.WrapError(err, "apply decision")
	}
	if ct.RowsAffected() == 0 {
		return common.NewAppError("PROOF_TERMINAL", "proof already resolved", common.ErrConflict)
	}
	return nil
}

func (r *proofRepository) AppendFlags(ctx context.Context, id uuid.UUID, reasons []string) error {
	if len(reasons) == 0 {
		return nil
	}
	// Flags accumulate; the array union keeps previously recorded reasons.
	ct, err := r.pool.Exec(ctx, `
		UPDATE payment_proofs
		SET flagged_reasons = (
		        SELECT ARRAY(SELECT DISTINCT x FROM unnest(flagged_reasons || $2::text[]) AS x ORDER BY x)
		    ),
		    verification_status = 'flagged',
		    updated_at = now()
		WHERE id = $1
		  AND verification_status NOT IN ('approved', 'rejected')`,
		id, reasons)
	if err != nil {
		return common.WrapError(err, "append flags")
	}
	if ct.RowsAffected() == 0 {
		return common.NewAppError("PROOF_TERMINAL", "proof already resolved", common.ErrConflict)
	}
	return nil
}

func (r *proofRepository) ClaimPending(ctx context.Context, limit int, requireExtraction bool) ([]*entity.PaymentProof, error) {
	rows, err := r.pool.Query(ctx, `
		WITH picked AS (
		    SELECT id FROM payment_proofs
		    WHERE verification_status = 'pending'
		      AND ($2 = false OR ai_confidence IS NOT NULL)
		      AND (claimed_at IS NULL OR claimed_at < now() - interval '5 minutes')
		    ORDER BY created_at
		    LIMIT $1
		    FOR UPDATE SKIP LOCKED
		)
		UPDATE payment_proofs p
		SET claimed_at = now()
		FROM picked
		WHERE p.id = picked.id
		RETURNING `+qualifiedProofColumns("p"),
		limit, requireExtraction)
	if err != nil {
		return nil, common.WrapError(err, "claim pending proofs")
	}
	defer rows.Close()

	var out []*entity.PaymentProof
	for rows.Next() {
		p, err := scanProof(rows)
		if err != nil {
			return nil, common.WrapError(err, "scan claimed proof")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *proofRepository) HasApprovedWithReference(ctx context.Context, reference string, excludeProofID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
		    SELECT 1 FROM payment_proofs
		    WHERE verification_status = 'approved'
		      AND extracted_reference IS NOT NULL
		      AND lower(extracted_reference) = lower($1)
		      AND id <> $2
		)`, reference, excludeProofID).Scan(&exists)
	if err != nil {
		return false, common.WrapError(err, "check duplicate reference")
	}
	return exists, nil
}

func qualifiedProofColumns(alias string) string {
	return alias + `.id, ` + alias + `.seller_id, ` + alias + `.submission_id, ` + alias + `.payment_method_id, ` +
		alias + `.file_path, ` + alias + `.uploader_name, ` + alias + `.uploader_phone, ` +
		alias + `.ai_confidence, ` + alias + `.extracted_amount, ` + alias + `.extracted_reference, ` +
		alias + `.extracted_method, ` + alias + `.processing_attempts, ` + alias + `.verification_status, ` +
		alias + `.verified_by, ` + alias + `.verified_at, ` + alias + `.rejection_reason, ` +
		alias + `.flagged_reasons, ` + alias + `.manual_review_notes, ` + alias + `.created_at, ` +
		alias + `.updated_at`
}

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

// LedgerRepository is append-only. There is deliberately no update or delete.
type LedgerRepository interface {
	Append(ctx context.Context, e *entity.VerificationLogEntry) error
	ListByProof(ctx context.Context, proofID uuid.UUID) ([]*entity.VerificationLogEntry, error)
	ListRange(ctx context.Context, from, to *time.Time) ([]*entity.VerificationLogEntry, error)
}

type ledgerRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewLedgerRepository(pool *pgxpool.Pool, logger *slog.Logger) LedgerRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &ledgerRepository{pool: pool, logger: logger}
}

func (r *ledgerRepository) Append(ctx context.Context, e *entity.VerificationLogEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO verification_log
		    (id, proof_id, submission_id, order_id, actor, action,
		     from_status, to_status, notes, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, e.ProofID, e.SubmissionID, e.OrderID, e.Actor, string(e.Action),
		string(e.FromStatus), string(e.ToStatus), e.Notes, e.Metadata, e.CreatedAt)
	if err != nil {
		r.logger.Error("failed to append ledger entry", "proof_id", e.ProofID, "action", e.Action, "error", err)
		return common.WrapError(err, "append ledger entry")
	}
	return nil
}

func (r *ledgerRepository) ListByProof(ctx context.Context, proofID uuid.UUID) ([]*entity.VerificationLogEntry, error) {
	return r.list(ctx, `
		SELECT id, proof_id, submission_id, order_id, actor, action,
		       from_status, to_status, notes, metadata, created_at
		FROM verification_log
		WHERE proof_id = $1
		ORDER BY created_at`, proofID)
}

func (r *ledgerRepository) ListRange(ctx context.Context, from, to *time.Time) ([]*entity.VerificationLogEntry, error) {
	return r.list(ctx, `
		SELECT id, proof_id, submission_id, order_id, actor, action,
		       from_status, to_status, notes, metadata, created_at
		FROM verification_log
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		  AND ($2::timestamptz IS NULL OR created_at <= $2)
		ORDER BY created_at`, from, to)
}

func (r *ledgerRepository) list(ctx context.Context, sql string, args ...any) ([]*entity.VerificationLogEntry, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, common.WrapError(err, "list ledger entries")
	}
	defer rows.Close()

	var out []*entity.VerificationLogEntry
	for rows.Next() {
		var e entity.VerificationLogEntry
		var action, fromStatus, toStatus string
		if err := rows.Scan(
			&e.ID, &e.ProofID, &e.SubmissionID, &e.OrderID, &e.Actor, &action,
			&fromStatus, &toStatus, &e.Notes, &e.Metadata, &e.CreatedAt,
		); err != nil {
			return nil, common.WrapError(err, "scan ledger entry")
		}
		e.Action = constants.LedgerAction(action)
		e.FromStatus = constants.VerificationStatus(fromStatus)
		e.ToStatus = constants.VerificationStatus(toStatus)
		out = append(out, &e)
	}
	return out, rows.Err()
}

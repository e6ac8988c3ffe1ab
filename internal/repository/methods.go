package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/groupcart/payproof/internal/common"
	"github.com/groupcart/payproof/internal/entity"
)

// MethodRepository reads per-seller payment method config. Read-only here.
type MethodRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.PaymentMethod, error)
}

type methodRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewMethodRepository(pool *pgxpool.Pool, logger *slog.Logger) MethodRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &methodRepository{pool: pool, logger: logger}
}

func (r *methodRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.PaymentMethod, error) {
	var m entity.PaymentMethod
	err := r.pool.QueryRow(ctx, `
		SELECT id, seller_id, name, requires_proof, auto_verify_threshold
		FROM payment_methods WHERE id = $1`, id).Scan(
		&m.ID, &m.SellerID, &m.Name, &m.RequiresProof, &m.AutoVerifyThreshold,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.NewAppError("METHOD_NOT_FOUND", "payment method not found", common.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("failed to load payment method", "method_id", id, "error", err)
		return nil, common.WrapError(err, "get payment method")
	}
	return &m, nil
}

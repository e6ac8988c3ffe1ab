package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/groupcart/payproof/constants"
)

// Submission is a buyer's commitment to an order, read-only to this engine
// except for the single pending -> paid transition.
type Submission struct {
	ID               uuid.UUID                  `json:"id"`
	OrderID          uuid.UUID                  `json:"order_id"`
	SellerID         uuid.UUID                  `json:"seller_id"`
	PaymentMethodID  *uuid.UUID                 `json:"payment_method_id,omitempty"`
	TotalAmount      float64                    `json:"total_amount"`
	CurrencyCode     string                     `json:"currency_code"`
	PaymentReference string                     `json:"payment_reference"`
	Status           constants.SubmissionStatus `json:"status"`
	PaidProofID      *uuid.UUID                 `json:"paid_proof_id,omitempty"`
	CreatedAt        time.Time                  `json:"created_at"`
}

// PaymentMethod is per-seller configuration, read-only to this engine.
type PaymentMethod struct {
	ID                  uuid.UUID `json:"id"`
	SellerID            uuid.UUID `json:"seller_id"`
	Name                string    `json:"name"`
	RequiresProof       bool      `json:"requires_proof"`
	AutoVerifyThreshold *float64  `json:"auto_verify_threshold,omitempty"`
}

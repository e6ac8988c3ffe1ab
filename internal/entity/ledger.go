package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/groupcart/payproof/constants"
)

// VerificationLogEntry is one immutable audit row. Rows are only ever
// appended, never updated or deleted.
type VerificationLogEntry struct {
	ID           uuid.UUID                    `json:"id"`
	ProofID      uuid.UUID                    `json:"proof_id"`
	SubmissionID uuid.UUID                    `json:"submission_id"`
	OrderID      uuid.UUID                    `json:"order_id"`
	Actor        string                       `json:"actor"`
	Action       constants.LedgerAction       `json:"action"`
	FromStatus   constants.VerificationStatus `json:"from_status"`
	ToStatus     constants.VerificationStatus `json:"to_status"`
	Notes        string                       `json:"notes,omitempty"`
	Metadata     json.RawMessage              `json:"metadata,omitempty"`
	CreatedAt    time.Time                    `json:"created_at"`
}

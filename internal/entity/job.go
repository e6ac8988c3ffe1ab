package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/groupcart/payproof/constants"
)

// SweepKind distinguishes the two scheduled passes.
type SweepKind string

const (
	SweepAutoVerify SweepKind = "auto_verify"
	SweepFlag       SweepKind = "flag"
)

// BulkVerificationJob tracks one batch sweep over pending proofs.
type BulkVerificationJob struct {
	ID           uuid.UUID           `json:"id"`
	Kind         SweepKind           `json:"kind"`
	Status       constants.JobStatus `json:"status"`
	ProofIDs     []uuid.UUID         `json:"proof_ids"`
	Total        int                 `json:"total"`
	Processed    int                 `json:"processed"`
	Succeeded    int                 `json:"succeeded"`
	Failed       int                 `json:"failed"`
	ErrorMessage *string             `json:"error_message,omitempty"`
	StartedAt    time.Time           `json:"started_at"`
	FinishedAt   *time.Time          `json:"finished_at,omitempty"`
}

package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/groupcart/payproof/constants"
)

// PaymentProof represents one uploaded payment screenshot. SubmissionID is
// the submission named at upload time; uuid.Nil means none was named and the
// matcher considers every pending submission of the seller.
type PaymentProof struct {
	ID              uuid.UUID  `json:"id"`
	SellerID        uuid.UUID  `json:"seller_id"`
	SubmissionID    uuid.UUID  `json:"submission_id,omitempty"`
	PaymentMethodID *uuid.UUID `json:"payment_method_id,omitempty"`

	FilePath      string `json:"file_path"`
	UploaderName  string `json:"uploader_name,omitempty"`
	UploaderPhone string `json:"uploader_phone,omitempty"`

	// Extraction fields, populated once the adapter has run.
	AIConfidence       *float32 `json:"ai_confidence,omitempty"`
	ExtractedAmount    *float64 `json:"extracted_amount,omitempty"`
	ExtractedReference *string  `json:"extracted_reference,omitempty"`
	ExtractedMethod    *string  `json:"extracted_method,omitempty"`
	ProcessingAttempts int      `json:"processing_attempts"`

	VerificationStatus constants.VerificationStatus `json:"verification_status"`
	VerifiedBy         *string                      `json:"verified_by,omitempty"`
	VerifiedAt         *time.Time                   `json:"verified_at,omitempty"`
	RejectionReason    *string                      `json:"rejection_reason,omitempty"`
	FlaggedReasons     []string                     `json:"flagged_reasons,omitempty"`
	ManualReviewNotes  *string                      `json:"manual_review_notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasExtraction reports whether the adapter has produced anything usable.
func (p *PaymentProof) HasExtraction() bool {
	return p.AIConfidence != nil
}

// HasFlag reports whether reason is already recorded on the proof.
func (p *PaymentProof) HasFlag(reason constants.FlagReason) bool {
	for _, r := range p.FlaggedReasons {
		if r == string(reason) {
			return true
		}
	}
	return false
}

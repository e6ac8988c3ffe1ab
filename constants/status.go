package constants

// VerificationStatus is the canonical status for rows in payment_proofs.
type VerificationStatus string

// Stable values (store these exact strings in DB).
const (
	StatusPending        VerificationStatus = "pending"         // uploaded, not yet decided
	StatusApproved       VerificationStatus = "approved"        // terminal; submission marked paid
	StatusRejected       VerificationStatus = "rejected"        // terminal
	StatusFlagged        VerificationStatus = "flagged"         // holding state; needs human attention
	StatusRequiresReview VerificationStatus = "requires_review" // holding state; no confident match
)

// Terminal reports whether s can never change again (audit annotations aside).
func (s VerificationStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// SubmissionStatus is the canonical status for rows in submissions.
type SubmissionStatus string

const (
	SubmissionPending SubmissionStatus = "pending"
	SubmissionPaid    SubmissionStatus = "paid"
)

// JobStatus is the canonical status for rows in bulk_verification_jobs.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

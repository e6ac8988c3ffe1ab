package constants

// FlagReason tags appended to payment_proofs.flagged_reasons. Reasons only
// accumulate; a later pass never removes one.
type FlagReason string

const (
	ReasonAmountMismatch     FlagReason = "significant_amount_mismatch"
	ReasonLowConfidence      FlagReason = "low_ai_confidence"
	ReasonProcessingFailures FlagReason = "multiple_processing_failures"
	ReasonDuplicateReference FlagReason = "duplicate_reference"
)

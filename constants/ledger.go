package constants

// LedgerAction identifies what happened in a verification_log row.
type LedgerAction string

const (
	ActionCreated   LedgerAction = "created"
	ActionProcessed LedgerAction = "processed"
	ActionApproved  LedgerAction = "approved"
	ActionRejected  LedgerAction = "rejected"
	ActionFlagged   LedgerAction = "flagged"
	ActionReviewed  LedgerAction = "reviewed"
	ActionModified  LedgerAction = "modified"
)

// SystemActor is the actor recorded for automated transitions.
const SystemActor = "system"

package extract

import "context"

// Candidate is one payment the model believes it saw in the image. A single
// screenshot can show several transfers (split payments, history views).
type Candidate struct {
	Amount     *float64 `json:"amount,omitempty"`
	Reference  string   `json:"reference,omitempty"`
	Method     string   `json:"method,omitempty"`
	Confidence float32  `json:"confidence"`
}

// Result is the normalized shape we want from the extraction model.
type Result struct {
	Candidates        []Candidate `json:"candidates"`
	OverallConfidence float32     `json:"overall_confidence"`
	RequiresReview    bool        `json:"requires_review"`
}

// Extractor is the interface the verification pipeline depends on.
// Implementations return the parsed result plus the raw model JSON for audit.
// hint is optional free text from the caller (an order note, a buyer remark)
// forwarded to the model; empty means none.
type Extractor interface {
	Extract(ctx context.Context, imagePath, hint string) (Result, []byte, error)
}

package fraud

import (
	"math"

	"github.com/groupcart/payproof/constants"
	"github.com/groupcart/payproof/internal/entity"
)

// Config holds the heuristic thresholds. The coarse mismatch value is
// deliberately independent of the match scorer's decay tolerance: both exist
// in production tuning and are never reconciled into one knob.
type Config struct {
	CoarseMismatch float64 // currency units
	LowConfidence  float32 // overall extraction confidence
	MaxAttempts    int     // processing attempts before the failure flag fires
}

func NewConfig(coarseMismatch float64, lowConfidence float32, maxAttempts int) Config {
	if coarseMismatch <= 0 {
		coarseMismatch = 10.00
	}
	if lowConfidence <= 0 {
		lowConfidence = 0.3
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return Config{CoarseMismatch: coarseMismatch, LowConfidence: lowConfidence, MaxAttempts: maxAttempts}
}

// Input is everything the rules may look at. DuplicateApproved is resolved by
// the caller (it needs a store lookup; the rules themselves stay pure).
type Input struct {
	Proof             *entity.PaymentProof
	SubmissionTotal   float64
	DuplicateApproved bool
}

type rule struct {
	reason constants.FlagReason
	fires  func(cfg Config, in Input) bool
}

var rules = []rule{
	{constants.ReasonAmountMismatch, func(cfg Config, in Input) bool {
		if in.Proof.ExtractedAmount == nil {
			return false
		}
		return math.Abs(*in.Proof.ExtractedAmount-in.SubmissionTotal) > cfg.CoarseMismatch
	}},
	{constants.ReasonLowConfidence, func(cfg Config, in Input) bool {
		return in.Proof.AIConfidence != nil && *in.Proof.AIConfidence < cfg.LowConfidence
	}},
	{constants.ReasonProcessingFailures, func(cfg Config, in Input) bool {
		return in.Proof.ProcessingAttempts > cfg.MaxAttempts
	}},
	{constants.ReasonDuplicateReference, func(cfg Config, in Input) bool {
		return in.Proof.ExtractedReference != nil && in.DuplicateApproved
	}},
}

// Evaluate runs every rule and returns all firing reasons, not just the first.
func Evaluate(cfg Config, in Input) []constants.FlagReason {
	var out []constants.FlagReason
	for _, r := range rules {
		if r.fires(cfg, in) {
			out = append(out, r.reason)
		}
	}
	return out
}

package decision

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/groupcart/payproof/constants"
	"github.com/groupcart/payproof/internal/match"
)

// Config holds the decision thresholds. The engine reads nothing else.
type Config struct {
	// SuggestThreshold is the best-match score below which the proof goes to
	// review with no suggestion at all.
	SuggestThreshold float64
	// AutoThreshold is the best-match score at or above which the proof may be
	// approved without a human.
	AutoThreshold float64
	// AmountTolerance is the absolute amount deviation, in currency units,
	// still acceptable for auto-approval.
	AmountTolerance float64
}

// Outcome is the engine's intent for one proof. The caller is responsible for
// applying it: the paid transition is a conditional write, and a conflict
// there downgrades the outcome to flagged/duplicate_reference.
type Outcome struct {
	Status       constants.VerificationStatus
	Suggestion   *uuid.UUID // submission proposed to the reviewer, if any
	AutoVerified bool
	MatchScore   float64
	Confidence   float32
	Note         string
}

// Engine maps a selected best match to a verification outcome. It is a pure
// function of its config and inputs.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	if cfg.SuggestThreshold <= 0 {
		cfg.SuggestThreshold = 0.5
	}
	if cfg.AutoThreshold <= 0 {
		cfg.AutoThreshold = 0.9
	}
	if cfg.AmountTolerance <= 0 {
		cfg.AmountTolerance = 1.00
	}
	return &Engine{cfg: cfg}
}

// Decide evaluates the best match for a proof. hasMatch is false when the
// extraction produced zero candidates or no eligible submission existed.
func (e *Engine) Decide(m match.Match, hasMatch bool) Outcome {
	if !hasMatch || m.Score.Value < e.cfg.SuggestThreshold {
		return Outcome{
			Status: constants.StatusRequiresReview,
			Note:   "no confident match",
		}
	}

	subID := m.Target.Submission.ID
	out := Outcome{
		MatchScore: m.Score.Value,
		Confidence: m.Candidate.Confidence,
		Suggestion: &subID,
	}

	if m.Score.Value >= e.cfg.AutoThreshold && e.amountWithinTolerance(m) {
		out.Status = constants.StatusApproved
		out.AutoVerified = true
		out.Note = fmt.Sprintf("auto-verified with score %.2f", m.Score.Value)
		return out
	}

	out.Status = constants.StatusRequiresReview
	out.Note = fmt.Sprintf("suggested match with score %.2f", m.Score.Value)
	return out
}

func (e *Engine) amountWithinTolerance(m match.Match) bool {
	if m.Candidate.Amount == nil {
		return false
	}
	return math.Abs(*m.Candidate.Amount-m.Target.Submission.TotalAmount) <= e.cfg.AmountTolerance
}

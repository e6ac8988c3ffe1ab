package match

import (
	"math"
	"strings"

	"github.com/agext/levenshtein"

	"github.com/groupcart/payproof/internal/entity"
	"github.com/groupcart/payproof/internal/extract"
)

// Term weights. They sum to 1 so a perfect candidate scores exactly 1.0.
const (
	weightAmount     = 0.45
	weightReference  = 0.30
	weightMethod     = 0.15
	weightConfidence = 0.10
)

const substringScore = 0.6

// Target is one submission a candidate can be scored against, together with
// the name of its declared payment method (empty when none is configured).
type Target struct {
	Submission *entity.Submission
	MethodName string
}

// Score is the result of comparing one extracted candidate with one target.
type Score struct {
	Value   float64
	Reasons []string
}

// Scorer holds the amount thresholds. It has no side effects and no hidden
// state; every call is a pure computation.
type Scorer struct {
	// AmountTolerance is the absolute delta, in currency units, still treated
	// as an exact amount match.
	AmountTolerance float64
	// MaxDeviationFrac is the fraction of the submission total at which the
	// amount term decays to zero.
	MaxDeviationFrac float64
}

func NewScorer(amountTolerance, maxDeviationFrac float64) Scorer {
	if amountTolerance <= 0 {
		amountTolerance = 1.00
	}
	if maxDeviationFrac <= 0 {
		maxDeviationFrac = 0.20
	}
	return Scorer{AmountTolerance: amountTolerance, MaxDeviationFrac: maxDeviationFrac}
}

// Score computes the weighted similarity between candidate and target.
func (s Scorer) Score(c extract.Candidate, t Target) Score {
	var reasons []string

	amount := s.amountCloseness(c, t.Submission)
	switch {
	case amount >= 1.0:
		reasons = append(reasons, "amount matches within tolerance")
	case amount > 0:
		reasons = append(reasons, "amount close to submission total")
	}

	reference, refReason := referenceSimilarity(c.Reference, t.Submission.PaymentReference)
	if refReason != "" {
		reasons = append(reasons, refReason)
	}

	method := methodAgreement(c.Method, t.MethodName)
	if method >= 1.0 {
		reasons = append(reasons, "payment method matches")
	}

	confidence := float64(c.Confidence)
	if confidence > 0.8 {
		reasons = append(reasons, "high extraction confidence")
	}

	value := weightAmount*amount +
		weightReference*reference +
		weightMethod*method +
		weightConfidence*confidence
	return Score{Value: value, Reasons: reasons}
}

func (s Scorer) amountCloseness(c extract.Candidate, sub *entity.Submission) float64 {
	if c.Amount == nil {
		return 0
	}
	delta := math.Abs(*c.Amount - sub.TotalAmount)
	if delta <= s.AmountTolerance {
		return 1.0
	}
	maxDev := s.MaxDeviationFrac * sub.TotalAmount
	if maxDev <= s.AmountTolerance {
		return 0
	}
	v := 1.0 - (delta-s.AmountTolerance)/(maxDev-s.AmountTolerance)
	if v < 0 {
		return 0
	}
	return v
}

func referenceSimilarity(candidate, expected string) (float64, string) {
	a := strings.ToLower(strings.TrimSpace(candidate))
	b := strings.ToLower(strings.TrimSpace(expected))
	if a == "" || b == "" {
		return 0, ""
	}
	if a == b {
		return 1.0, "reference matches exactly"
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return substringScore, "reference is a partial match"
	}
	sim := levenshtein.Similarity(a, b, nil)
	if sim > 0.5 {
		return sim, "reference is similar"
	}
	return sim, ""
}

func methodAgreement(candidate, expected string) float64 {
	a := strings.ToLower(strings.TrimSpace(candidate))
	b := strings.ToLower(strings.TrimSpace(expected))
	if a == "" || b == "" {
		return 0.5
	}
	if a == b {
		return 1.0
	}
	return 0
}

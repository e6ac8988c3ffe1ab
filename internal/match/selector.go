package match

import (
	"sort"

	"github.com/groupcart/payproof/internal/extract"
)

// Match is one scored (candidate, submission) pair.
type Match struct {
	Candidate extract.Candidate
	Target    Target
	Score     Score
}

// Rank scores the full Cartesian product of candidates x targets and returns
// every pair ordered best-first. On a score tie the oldest submission wins,
// so ambiguity resolves toward the longest-unpaid order.
func Rank(s Scorer, candidates []extract.Candidate, targets []Target) []Match {
	out := make([]Match, 0, len(candidates)*len(targets))
	for _, c := range candidates {
		for _, t := range targets {
			out = append(out, Match{Candidate: c, Target: t, Score: s.Score(c, t)})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score.Value != out[j].Score.Value {
			return out[i].Score.Value > out[j].Score.Value
		}
		return out[i].Target.Submission.CreatedAt.Before(out[j].Target.Submission.CreatedAt)
	})
	return out
}

// Select picks the single highest-scoring pair. Zero candidates or zero
// targets yield no match, which is a normal outcome rather than an error.
func Select(s Scorer, candidates []extract.Candidate, targets []Target) (Match, bool) {
	ranked := Rank(s, candidates, targets)
	if len(ranked) == 0 {
		return Match{}, false
	}
	return ranked[0], true
}

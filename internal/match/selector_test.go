package match

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/groupcart/payproof/internal/entity"
	"github.com/groupcart/payproof/internal/extract"
)

func TestRank_BestFirst(t *testing.T) {
	s := NewScorer(1.00, 0.20)
	exact := testTarget(500.00, "PAY-1", "")
	far := testTarget(2000.00, "PAY-2", "")

	c := extract.Candidate{Amount: floatPtr(500.00), Reference: "PAY-1", Confidence: 0.9}
	ranked := Rank(s, []extract.Candidate{c}, []Target{far, exact})

	if len(ranked) != 2 {
		t.Fatalf("expected 2 ranked pairs, got %d", len(ranked))
	}
	if ranked[0].Target.Submission.ID != exact.Submission.ID {
		t.Errorf("expected the matching submission first, got %s", ranked[0].Target.Submission.ID)
	}
	if ranked[0].Score.Value <= ranked[1].Score.Value {
		t.Errorf("ranking not descending: %f then %f", ranked[0].Score.Value, ranked[1].Score.Value)
	}
}

func TestRank_TieBreaksOldestSubmission(t *testing.T) {
	s := NewScorer(1.00, 0.20)
	now := time.Now()
	older := Target{Submission: &entity.Submission{
		ID: uuid.New(), TotalAmount: 100.00, PaymentReference: "SAME", CreatedAt: now.Add(-time.Hour),
	}}
	newer := Target{Submission: &entity.Submission{
		ID: uuid.New(), TotalAmount: 100.00, PaymentReference: "SAME", CreatedAt: now,
	}}

	c := extract.Candidate{Amount: floatPtr(100.00), Reference: "SAME", Confidence: 0.9}
	ranked := Rank(s, []extract.Candidate{c}, []Target{newer, older})

	if ranked[0].Target.Submission.ID != older.Submission.ID {
		t.Errorf("tie should resolve to the oldest submission")
	}
}

func TestRank_CartesianProduct(t *testing.T) {
	s := NewScorer(1.00, 0.20)
	candidates := []extract.Candidate{
		{Amount: floatPtr(100.00)},
		{Amount: floatPtr(200.00)},
	}
	targets := []Target{testTarget(100.00, "", ""), testTarget(200.00, "", ""), testTarget(300.00, "", "")}

	ranked := Rank(s, candidates, targets)
	if len(ranked) != 6 {
		t.Errorf("expected 6 pairs from 2x3, got %d", len(ranked))
	}
}

func TestSelect_NoInputs(t *testing.T) {
	s := NewScorer(1.00, 0.20)

	t.Run("no candidates", func(t *testing.T) {
		if _, ok := Select(s, nil, []Target{testTarget(100, "", "")}); ok {
			t.Error("expected no match with zero candidates")
		}
	})
	t.Run("no targets", func(t *testing.T) {
		if _, ok := Select(s, []extract.Candidate{{Amount: floatPtr(100)}}, nil); ok {
			t.Error("expected no match with zero targets")
		}
	})
}

func TestSelect_PicksHighest(t *testing.T) {
	s := NewScorer(1.00, 0.20)
	target := testTarget(150.00, "REF-9", "")
	candidates := []extract.Candidate{
		{Amount: floatPtr(999.00), Confidence: 0.2},
		{Amount: floatPtr(150.00), Reference: "REF-9", Confidence: 0.9},
	}

	best, ok := Select(s, candidates, []Target{target})
	if !ok {
		t.Fatal("expected a match")
	}
	if best.Candidate.Reference != "REF-9" {
		t.Errorf("expected the strong candidate to win, got %+v", best.Candidate)
	}
}

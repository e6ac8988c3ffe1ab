package fraud

import (
	"testing"

	"github.com/google/uuid"

	"github.com/groupcart/payproof/constants"
	"github.com/groupcart/payproof/internal/entity"
)

func amt(v float64) *float64  { return &v }
func conf(v float32) *float32 { return &v }
func strPtr(s string) *string { return &s }

func baseProof() *entity.PaymentProof {
	return &entity.PaymentProof{
		ID:           uuid.New(),
		AIConfidence: conf(0.9),
	}
}

func hasReason(got []constants.FlagReason, want constants.FlagReason) bool {
	for _, r := range got {
		if r == want {
			return true
		}
	}
	return false
}

func TestEvaluate_AmountMismatch(t *testing.T) {
	cfg := NewConfig(10.00, 0.3, 3)

	tests := []struct {
		name   string
		amount *float64
		total  float64
		fires  bool
	}{
		{"large gap fires", amt(980.00), 890.00, true},
		{"just over threshold fires", amt(100.00), 89.99, true},
		{"exactly at threshold stays quiet", amt(100.00), 90.00, false},
		{"within threshold stays quiet", amt(95.00), 90.00, false},
		{"no extracted amount stays quiet", nil, 90.00, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := baseProof()
			p.ExtractedAmount = tt.amount
			got := Evaluate(cfg, Input{Proof: p, SubmissionTotal: tt.total})
			if hasReason(got, constants.ReasonAmountMismatch) != tt.fires {
				t.Errorf("mismatch fired = %v, want %v (reasons %v)",
					hasReason(got, constants.ReasonAmountMismatch), tt.fires, got)
			}
		})
	}
}

func TestEvaluate_LowConfidence(t *testing.T) {
	cfg := NewConfig(10.00, 0.3, 3)

	tests := []struct {
		name       string
		confidence *float32
		fires      bool
	}{
		{"below threshold fires", conf(0.29), true},
		{"at threshold stays quiet", conf(0.3), false},
		{"high confidence stays quiet", conf(0.95), false},
		{"no extraction stays quiet", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := baseProof()
			p.AIConfidence = tt.confidence
			got := Evaluate(cfg, Input{Proof: p, SubmissionTotal: 100})
			if hasReason(got, constants.ReasonLowConfidence) != tt.fires {
				t.Errorf("low confidence fired = %v, want %v", hasReason(got, constants.ReasonLowConfidence), tt.fires)
			}
		})
	}
}

func TestEvaluate_ProcessingFailures(t *testing.T) {
	cfg := NewConfig(10.00, 0.3, 3)

	tests := []struct {
		attempts int
		fires    bool
	}{
		{0, false},
		{3, false},
		{4, true},
		{10, true},
	}
	for _, tt := range tests {
		p := baseProof()
		p.ProcessingAttempts = tt.attempts
		got := Evaluate(cfg, Input{Proof: p, SubmissionTotal: 100})
		if hasReason(got, constants.ReasonProcessingFailures) != tt.fires {
			t.Errorf("attempts=%d: fired = %v, want %v", tt.attempts,
				hasReason(got, constants.ReasonProcessingFailures), tt.fires)
		}
	}
}

func TestEvaluate_DuplicateReference(t *testing.T) {
	cfg := NewConfig(10.00, 0.3, 3)

	t.Run("duplicate with reference fires", func(t *testing.T) {
		p := baseProof()
		p.ExtractedReference = strPtr("TXN-1")
		got := Evaluate(cfg, Input{Proof: p, SubmissionTotal: 100, DuplicateApproved: true})
		if !hasReason(got, constants.ReasonDuplicateReference) {
			t.Errorf("expected duplicate_reference, got %v", got)
		}
	})

	t.Run("duplicate without reference stays quiet", func(t *testing.T) {
		p := baseProof()
		got := Evaluate(cfg, Input{Proof: p, SubmissionTotal: 100, DuplicateApproved: true})
		if hasReason(got, constants.ReasonDuplicateReference) {
			t.Errorf("unexpected duplicate_reference without an extracted reference")
		}
	})
}

func TestEvaluate_MultipleReasonsAccumulate(t *testing.T) {
	cfg := NewConfig(10.00, 0.3, 3)
	p := baseProof()
	p.AIConfidence = conf(0.1)
	p.ExtractedAmount = amt(500.00)
	p.ExtractedReference = strPtr("TXN-1")
	p.ProcessingAttempts = 5

	got := Evaluate(cfg, Input{Proof: p, SubmissionTotal: 100, DuplicateApproved: true})
	if len(got) != 4 {
		t.Fatalf("expected all 4 reasons, got %v", got)
	}
}

func TestEvaluate_CleanProof(t *testing.T) {
	cfg := NewConfig(10.00, 0.3, 3)
	p := baseProof()
	p.ExtractedAmount = amt(100.00)
	got := Evaluate(cfg, Input{Proof: p, SubmissionTotal: 100})
	if len(got) != 0 {
		t.Errorf("expected no reasons, got %v", got)
	}
}

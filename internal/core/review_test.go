package core

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/groupcart/payproof/constants"
	"github.com/groupcart/payproof/internal/common"
)

func TestReviewDecision_RequiresActor(t *testing.T) {
	f := newFixture()
	proof := f.addProof(nil)

	_, err := f.proc.ReviewDecision(context.Background(), proof.ID, ReviewRequest{Action: ReviewApprove})
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestReviewDecision_UnknownAction(t *testing.T) {
	f := newFixture()
	proof := f.addProof(nil)

	_, err := f.proc.ReviewDecision(context.Background(), proof.ID, ReviewRequest{Action: "escalate", Actor: "ana"})
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestReviewDecision_Approve(t *testing.T) {
	f := newFixture()
	sub := f.addSubmission(890.00, "GC-1")
	proof := f.addProof(sub)
	proof.VerificationStatus = constants.StatusRequiresReview

	res, err := f.proc.ReviewDecision(context.Background(), proof.ID, ReviewRequest{
		Action: ReviewApprove,
		Actor:  "ana",
		Notes:  "verified against bank statement",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != constants.StatusApproved {
		t.Fatalf("status = %s, want approved", res.Status)
	}

	stored := f.proofs.rows[proof.ID]
	if stored.VerifiedBy == nil || *stored.VerifiedBy != "ana" {
		t.Errorf("verified_by = %v, want ana", stored.VerifiedBy)
	}
	storedSub := f.subs.rows[sub.ID]
	if storedSub.Status != constants.SubmissionPaid || *storedSub.PaidProofID != proof.ID {
		t.Error("submission should be paid by the approved proof")
	}
	if !f.ledger.hasAction(proof.ID, constants.ActionApproved) {
		t.Error("missing approved ledger entry")
	}
}

func TestReviewDecision_ApproveUnnamedNeedsSubmission(t *testing.T) {
	f := newFixture()
	proof := f.addProof(nil)
	proof.VerificationStatus = constants.StatusRequiresReview

	_, err := f.proc.ReviewDecision(context.Background(), proof.ID, ReviewRequest{
		Action: ReviewApprove,
		Actor:  "ana",
	})
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestReviewDecision_ApproveExplicitSubmission(t *testing.T) {
	f := newFixture()
	sub := f.addSubmission(890.00, "GC-1")
	proof := f.addProof(nil)
	proof.SellerID = sub.SellerID
	proof.VerificationStatus = constants.StatusRequiresReview

	res, err := f.proc.ReviewDecision(context.Background(), proof.ID, ReviewRequest{
		Action:       ReviewApprove,
		Actor:        "ana",
		SubmissionID: &sub.ID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != constants.StatusApproved {
		t.Fatalf("status = %s, want approved", res.Status)
	}
	if f.subs.rows[sub.ID].Status != constants.SubmissionPaid {
		t.Error("named submission should be paid")
	}
}

func TestReviewDecision_ApproveAlreadyPaidConflicts(t *testing.T) {
	f := newFixture()
	sub := f.addSubmission(890.00, "GC-1")
	winner := uuid.New()
	sub.Status = constants.SubmissionPaid
	sub.PaidProofID = &winner

	proof := f.addProof(sub)
	proof.VerificationStatus = constants.StatusRequiresReview

	_, err := f.proc.ReviewDecision(context.Background(), proof.ID, ReviewRequest{
		Action: ReviewApprove,
		Actor:  "ana",
	})
	if !errors.Is(err, common.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if f.proofs.rows[proof.ID].VerificationStatus == constants.StatusApproved {
		t.Error("losing proof must not end up approved")
	}
}

func TestReviewDecision_ApproveRejectedProofConflicts(t *testing.T) {
	f := newFixture()
	sub := f.addSubmission(890.00, "GC-1")
	proof := f.addProof(sub)
	proof.VerificationStatus = constants.StatusRejected

	_, err := f.proc.ReviewDecision(context.Background(), proof.ID, ReviewRequest{
		Action: ReviewApprove,
		Actor:  "ana",
	})
	if !errors.Is(err, common.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if f.proofs.rows[proof.ID].VerificationStatus != constants.StatusRejected {
		t.Error("rejected proof must stay rejected")
	}
	storedSub := f.subs.rows[sub.ID]
	if storedSub.Status != constants.SubmissionPending || storedSub.PaidProofID != nil {
		t.Error("submission must be untouched when the proof is already resolved")
	}
	if f.ledger.hasAction(proof.ID, constants.ActionApproved) {
		t.Error("no approved ledger entry for a rejected proof")
	}
}

func TestReviewDecision_Reject(t *testing.T) {
	f := newFixture()
	sub := f.addSubmission(890.00, "GC-1")
	proof := f.addProof(sub)
	proof.VerificationStatus = constants.StatusFlagged

	res, err := f.proc.ReviewDecision(context.Background(), proof.ID, ReviewRequest{
		Action: ReviewReject,
		Actor:  "ana",
		Reason: "screenshot edited",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != constants.StatusRejected {
		t.Fatalf("status = %s, want rejected", res.Status)
	}
	stored := f.proofs.rows[proof.ID]
	if stored.RejectionReason == nil || *stored.RejectionReason != "screenshot edited" {
		t.Errorf("rejection reason = %v", stored.RejectionReason)
	}
	if f.subs.rows[sub.ID].Status != constants.SubmissionPending {
		t.Error("rejecting a proof must not touch the submission")
	}
	if !f.ledger.hasAction(proof.ID, constants.ActionRejected) {
		t.Error("missing rejected ledger entry")
	}
}

func TestReviewDecision_ModifyCorrectsExtraction(t *testing.T) {
	f := newFixture()
	sub := f.addSubmission(890.00, "GC-1")
	proof := f.addProof(sub)
	conf := float32(0.6)
	proof.AIConfidence = &conf
	proof.ExtractedAmount = fl(980.00)
	proof.VerificationStatus = constants.StatusRequiresReview

	corrected := 890.00
	ref := "GC-1"
	_, err := f.proc.ReviewDecision(context.Background(), proof.ID, ReviewRequest{
		Action:    ReviewModify,
		Actor:     "ana",
		Amount:    &corrected,
		Reference: &ref,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored := f.proofs.rows[proof.ID]
	if stored.ExtractedAmount == nil || *stored.ExtractedAmount != 890.00 {
		t.Errorf("amount = %v, want corrected 890.00", stored.ExtractedAmount)
	}
	if stored.ExtractedReference == nil || *stored.ExtractedReference != "GC-1" {
		t.Errorf("reference = %v, want GC-1", stored.ExtractedReference)
	}
	if !f.ledger.hasAction(proof.ID, constants.ActionModified) {
		t.Error("missing modified ledger entry")
	}
}

func TestReviewDecision_ModifyTerminalConflicts(t *testing.T) {
	f := newFixture()
	proof := f.addProof(nil)
	proof.VerificationStatus = constants.StatusApproved

	amount := 100.00
	_, err := f.proc.ReviewDecision(context.Background(), proof.ID, ReviewRequest{
		Action: ReviewModify,
		Actor:  "ana",
		Amount: &amount,
	})
	if !errors.Is(err, common.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

package core

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/groupcart/payproof/constants"
	"github.com/groupcart/payproof/internal/common"
	"github.com/groupcart/payproof/internal/entity"
	"github.com/groupcart/payproof/internal/repository"
)

// ReviewAction is a human reviewer's verdict.
type ReviewAction string

const (
	ReviewApprove ReviewAction = "approve"
	ReviewReject  ReviewAction = "reject"
	ReviewModify  ReviewAction = "modify"
)

// ReviewRequest carries a reviewer action. Reviewer decisions always win over
// automated ones, but approve still goes through the conditional paid write.
type ReviewRequest struct {
	Action       ReviewAction `json:"action"`
	Actor        string       `json:"actor"`
	Notes        string       `json:"notes,omitempty"`
	Reason       string       `json:"reason,omitempty"`        // rejection reason
	SubmissionID *uuid.UUID   `json:"submission_id,omitempty"` // approve target when none was named

	// Corrections for the modify action.
	Amount    *float64 `json:"amount,omitempty"`
	Reference *string  `json:"reference,omitempty"`
	Method    *string  `json:"method,omitempty"`
}

// ReviewDecision applies a human override. A second approval attempt on an
// already-paid submission fails with a conflict error, never silently.
func (p *Processor) ReviewDecision(ctx context.Context, proofID uuid.UUID, req ReviewRequest) (*ProcessResult, error) {
	if req.Actor == "" {
		return nil, common.NewAppError("REVIEW_ACTOR_REQUIRED", "reviewer identity is required", common.ErrInvalidInput)
	}
	proof, err := p.proofs.GetByID(ctx, proofID)
	if err != nil {
		return nil, err
	}

	switch req.Action {
	case ReviewApprove:
		return p.reviewApprove(ctx, proof, req)
	case ReviewReject:
		return p.reviewReject(ctx, proof, req)
	case ReviewModify:
		return p.reviewModify(ctx, proof, req)
	default:
		return nil, common.NewAppError("REVIEW_ACTION_UNKNOWN", "unknown review action", common.ErrInvalidInput)
	}
}

func (p *Processor) reviewApprove(ctx context.Context, proof *entity.PaymentProof, req ReviewRequest) (*ProcessResult, error) {
	// Terminal proofs cannot be approved; bail before any submission write.
	if proof.VerificationStatus.Terminal() {
		return nil, common.NewAppError("PROOF_TERMINAL", "proof already resolved", common.ErrConflict)
	}
	subID := proof.SubmissionID
	if req.SubmissionID != nil {
		subID = *req.SubmissionID
	}
	if subID == uuid.Nil {
		return nil, common.NewAppError("SUBMISSION_REQUIRED", "no submission to approve against", common.ErrInvalidInput)
	}
	sub, err := p.submissions.GetByID(ctx, subID)
	if err != nil {
		return nil, err
	}

	if err := p.submissions.MarkPaid(ctx, sub.ID, proof.ID); err != nil {
		if errors.Is(err, common.ErrConflict) {
			return nil, common.NewAppError("ALREADY_PAID",
				"submission already has an approved proof", common.ErrConflict)
		}
		return nil, err
	}

	if err := p.proofs.ApplyDecision(ctx, proof.ID, repository.DecisionUpdate{
		Status:     constants.StatusApproved,
		VerifiedBy: &req.Actor,
		Notes:      optional(req.Notes),
	}); err != nil {
		return nil, err
	}
	p.logTransition(ctx, proof, sub, constants.ActionApproved,
		proof.VerificationStatus, constants.StatusApproved,
		req.Actor, req.Notes, map[string]any{"autoVerified": false})
	return &ProcessResult{ProofID: proof.ID, Status: constants.StatusApproved}, nil
}

func (p *Processor) reviewReject(ctx context.Context, proof *entity.PaymentProof, req ReviewRequest) (*ProcessResult, error) {
	if err := p.proofs.ApplyDecision(ctx, proof.ID, repository.DecisionUpdate{
		Status:          constants.StatusRejected,
		VerifiedBy:      &req.Actor,
		RejectionReason: optional(req.Reason),
		Notes:           optional(req.Notes),
	}); err != nil {
		return nil, err
	}
	p.logTransition(ctx, proof, nil, constants.ActionRejected,
		proof.VerificationStatus, constants.StatusRejected,
		req.Actor, req.Reason, nil)
	return &ProcessResult{ProofID: proof.ID, Status: constants.StatusRejected}, nil
}

func (p *Processor) reviewModify(ctx context.Context, proof *entity.PaymentProof, req ReviewRequest) (*ProcessResult, error) {
	if proof.VerificationStatus.Terminal() {
		return nil, common.NewAppError("PROOF_TERMINAL", "proof already resolved", common.ErrConflict)
	}
	upd := repository.ExtractionUpdate{
		ExtractedAmount:    proof.ExtractedAmount,
		ExtractedReference: proof.ExtractedReference,
		ExtractedMethod:    proof.ExtractedMethod,
	}
	if proof.AIConfidence != nil {
		upd.AIConfidence = *proof.AIConfidence
	}
	if req.Amount != nil {
		upd.ExtractedAmount = req.Amount
	}
	if req.Reference != nil {
		upd.ExtractedReference = req.Reference
	}
	if req.Method != nil {
		upd.ExtractedMethod = req.Method
	}
	if err := p.proofs.RecordExtraction(ctx, proof.ID, upd); err != nil {
		return nil, err
	}
	if req.Notes != "" {
		if err := p.proofs.ApplyDecision(ctx, proof.ID, repository.DecisionUpdate{
			Status: proof.VerificationStatus,
			Notes:  &req.Notes,
		}); err != nil {
			return nil, err
		}
	}
	p.logTransition(ctx, proof, nil, constants.ActionModified,
		proof.VerificationStatus, proof.VerificationStatus,
		req.Actor, req.Notes, nil)
	return resultFromProof(proof), nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

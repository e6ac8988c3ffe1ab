package core

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/groupcart/payproof/constants"
	"github.com/groupcart/payproof/internal/common"
	"github.com/groupcart/payproof/internal/decision"
	"github.com/groupcart/payproof/internal/entity"
	"github.com/groupcart/payproof/internal/extract"
	"github.com/groupcart/payproof/internal/fraud"
	"github.com/groupcart/payproof/internal/match"
	"github.com/groupcart/payproof/internal/repository"
)

// Processor runs the single-proof pipeline: extract -> score -> decide ->
// apply -> ledger. The same pipeline serves the synchronous HTTP path and the
// batch sweeps.
type Processor struct {
	logger      *slog.Logger
	extractor   extract.Extractor
	proofs      repository.ProofRepository
	submissions repository.SubmissionRepository
	methods     repository.MethodRepository
	ledger      repository.LedgerRepository

	scorer   match.Scorer
	engine   *decision.Engine
	fraudCfg fraud.Config
	cfg      common.VerifyConfig
}

func NewProcessor(
	logger *slog.Logger,
	extractor extract.Extractor,
	proofs repository.ProofRepository,
	submissions repository.SubmissionRepository,
	methods repository.MethodRepository,
	ledger repository.LedgerRepository,
	cfg common.VerifyConfig,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		logger:      logger,
		extractor:   extractor,
		proofs:      proofs,
		submissions: submissions,
		methods:     methods,
		ledger:      ledger,
		scorer:      match.NewScorer(cfg.AmountTolerance, cfg.MaxDeviationFrac),
		engine: decision.NewEngine(decision.Config{
			SuggestThreshold: cfg.SuggestThreshold,
			AutoThreshold:    cfg.AutoThreshold,
			AmountTolerance:  cfg.AmountTolerance,
		}),
		fraudCfg: fraud.NewConfig(cfg.CoarseMismatch, cfg.LowConfidence, cfg.MaxAttempts),
		cfg:      cfg,
	}
}

// CandidateScore is one scored submission, exposed for reviewer UIs.
type CandidateScore struct {
	SubmissionID uuid.UUID `json:"submission_id"`
	Score        float64   `json:"score"`
	Reasons      []string  `json:"reasons,omitempty"`
}

// ProcessResult is what callers see after one evaluation. Only the five
// public statuses and human-readable reasons ever leave the engine.
type ProcessResult struct {
	ProofID         uuid.UUID                    `json:"proof_id"`
	Status          constants.VerificationStatus `json:"status"`
	BestMatch       *uuid.UUID                   `json:"best_match,omitempty"`
	MatchScore      float64                      `json:"match_score,omitempty"`
	MatchCandidates []CandidateScore             `json:"match_candidates,omitempty"`
	FlaggedReasons  []string                     `json:"flagged_reasons,omitempty"`
	RequiresReview  bool                         `json:"requires_review"`
}

// ProcessProof evaluates one proof end to end. imageRef overrides the stored
// file pointer when non-empty; hint is optional caller-provided context
// forwarded to the extraction adapter. Re-invoking on a resolved proof is a
// no-op that reports the current state.
func (p *Processor) ProcessProof(ctx context.Context, proofID uuid.UUID, imageRef, hint string) (*ProcessResult, error) {
	proof, err := p.proofs.GetByID(ctx, proofID)
	if err != nil {
		return nil, err
	}
	if proof.VerificationStatus.Terminal() {
		return resultFromProof(proof), nil
	}
	// A flagged proof with exhausted attempts stays parked for a human.
	if proof.VerificationStatus == constants.StatusFlagged &&
		proof.HasFlag(constants.ReasonProcessingFailures) {
		return resultFromProof(proof), nil
	}

	candidates, ok, err := p.ensureExtraction(ctx, proof, imageRef, hint)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Extraction not available yet (transient failure) or the proof was
		// parked; the current state is the answer.
		refreshed, err := p.proofs.GetByID(ctx, proofID)
		if err != nil {
			return nil, err
		}
		return resultFromProof(refreshed), nil
	}

	return p.evaluate(ctx, proof, candidates)
}

// ensureExtraction runs the adapter when the proof has no extraction yet, or
// synthesizes a candidate from the stored fields when it does. The bool is
// false when no usable extraction exists after the call.
func (p *Processor) ensureExtraction(ctx context.Context, proof *entity.PaymentProof, imageRef, hint string) ([]extract.Candidate, bool, error) {
	if proof.HasExtraction() {
		return storedCandidates(proof), true, nil
	}

	imagePath := imageRef
	if imagePath == "" {
		imagePath = proof.FilePath
	}

	res, _, err := p.extractor.Extract(ctx, imagePath, hint)
	if err != nil {
		attempts, incErr := p.proofs.IncrementAttempts(ctx, proof.ID)
		if incErr != nil {
			return nil, false, incErr
		}
		proof.ProcessingAttempts = attempts

		if extract.IsPermanent(err) {
			p.logger.Warn("processor.extract.permanent", "proof_id", proof.ID, "error", err)
			note := "image rejected by extraction"
			if applyErr := p.proofs.ApplyDecision(ctx, proof.ID, repository.DecisionUpdate{
				Status: constants.StatusRequiresReview,
				Notes:  &note,
			}); applyErr != nil {
				return nil, false, applyErr
			}
			p.logTransition(ctx, proof, nil, constants.ActionReviewed,
				proof.VerificationStatus, constants.StatusRequiresReview,
				constants.SystemActor, note, nil)
			return nil, false, nil
		}

		p.logger.Warn("processor.extract.transient", "proof_id", proof.ID, "attempts", attempts, "error", err)
		if attempts > p.fraudCfg.MaxAttempts {
			p.flag(ctx, proof, []constants.FlagReason{constants.ReasonProcessingFailures},
				"extraction failed repeatedly")
		}
		return nil, false, nil
	}

	upd := repository.ExtractionUpdate{AIConfidence: res.OverallConfidence}
	if top, ok := topCandidate(res); ok {
		upd.ExtractedAmount = top.Amount
		if top.Reference != "" {
			upd.ExtractedReference = &top.Reference
		}
		if top.Method != "" {
			upd.ExtractedMethod = &top.Method
		}
	}
	if err := p.proofs.RecordExtraction(ctx, proof.ID, upd); err != nil {
		return nil, false, err
	}
	conf := res.OverallConfidence
	proof.AIConfidence = &conf
	proof.ExtractedAmount = upd.ExtractedAmount
	proof.ExtractedReference = upd.ExtractedReference
	proof.ExtractedMethod = upd.ExtractedMethod

	p.logTransition(ctx, proof, nil, constants.ActionProcessed,
		proof.VerificationStatus, proof.VerificationStatus,
		constants.SystemActor, "extraction completed",
		map[string]any{
			"candidates":         len(res.Candidates),
			"overall_confidence": res.OverallConfidence,
			"requires_review":    res.RequiresReview,
		})
	return res.Candidates, true, nil
}

// evaluate scores, decides and applies the outcome for a proof whose
// extraction is available.
func (p *Processor) evaluate(ctx context.Context, proof *entity.PaymentProof, candidates []extract.Candidate) (*ProcessResult, error) {
	targets, err := p.buildTargets(ctx, proof)
	if err != nil {
		return nil, err
	}

	ranked := match.Rank(p.scorer, candidates, targets)
	best, hasMatch := match.Match{}, false
	if len(ranked) > 0 {
		best, hasMatch = ranked[0], true
	}
	out := p.engine.Decide(best, hasMatch)

	// Duplicate reference is checked up front so a race loser is flagged,
	// never silently approved.
	dupApproved := false
	if proof.ExtractedReference != nil {
		dupApproved, err = p.proofs.HasApprovedWithReference(ctx, *proof.ExtractedReference, proof.ID)
		if err != nil {
			return nil, err
		}
	}

	result := &ProcessResult{
		ProofID:         proof.ID,
		BestMatch:       out.Suggestion,
		MatchScore:      out.MatchScore,
		MatchCandidates: candidateScores(ranked),
	}

	if out.Status == constants.StatusApproved {
		out = p.applyAutoVerifyCeiling(ctx, best, out)
	}

	if out.Status == constants.StatusApproved {
		if dupApproved {
			p.flag(ctx, proof, []constants.FlagReason{constants.ReasonDuplicateReference},
				"extracted reference already approved on another proof")
			result.Status = constants.StatusFlagged
			result.FlaggedReasons = flagStrings([]constants.FlagReason{constants.ReasonDuplicateReference})
			return result, nil
		}
		return p.approve(ctx, proof, best, out, result)
	}

	// Not auto-approved: run the fraud rules before settling on review.
	reasons := p.fraudReasons(proof, best, hasMatch, dupApproved)
	if len(reasons) > 0 {
		p.flag(ctx, proof, reasons, "fraud heuristics fired")
		result.Status = constants.StatusFlagged
		result.FlaggedReasons = flagStrings(reasons)
		return result, nil
	}

	if proof.VerificationStatus == constants.StatusFlagged {
		// A flagged proof stays flagged until a human or an approval
		// resolves it; review is not a downgrade path.
		result.Status = constants.StatusFlagged
		result.FlaggedReasons = proof.FlaggedReasons
		return result, nil
	}

	if err := p.proofs.ApplyDecision(ctx, proof.ID, repository.DecisionUpdate{
		Status: constants.StatusRequiresReview,
		Notes:  &out.Note,
	}); err != nil && !errors.Is(err, common.ErrConflict) {
		return nil, err
	}
	p.logTransition(ctx, proof, matchedSubmission(best, hasMatch), constants.ActionReviewed,
		proof.VerificationStatus, constants.StatusRequiresReview,
		constants.SystemActor, out.Note, reviewMetadata(out))
	result.Status = constants.StatusRequiresReview
	result.RequiresReview = true
	return result, nil
}

func (p *Processor) approve(ctx context.Context, proof *entity.PaymentProof, best match.Match, out decision.Outcome, result *ProcessResult) (*ProcessResult, error) {
	sub := best.Target.Submission
	err := p.submissions.MarkPaid(ctx, sub.ID, proof.ID)
	if errors.Is(err, common.ErrConflict) {
		p.flag(ctx, proof, []constants.FlagReason{constants.ReasonDuplicateReference},
			"submission already paid by another proof")
		result.Status = constants.StatusFlagged
		result.FlaggedReasons = flagStrings([]constants.FlagReason{constants.ReasonDuplicateReference})
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	actor := constants.SystemActor
	if err := p.proofs.ApplyDecision(ctx, proof.ID, repository.DecisionUpdate{
		Status:     constants.StatusApproved,
		VerifiedBy: &actor,
	}); err != nil {
		return nil, err
	}
	p.logTransition(ctx, proof, sub, constants.ActionApproved,
		proof.VerificationStatus, constants.StatusApproved,
		constants.SystemActor, out.Note, map[string]any{
			"autoVerified": true,
			"matchScore":   out.MatchScore,
			"confidence":   out.Confidence,
		})
	p.logger.Info("processor.approved",
		"proof_id", proof.ID, "submission_id", sub.ID,
		"match_score", out.MatchScore, "confidence", out.Confidence)
	result.Status = constants.StatusApproved
	return result, nil
}

// applyAutoVerifyCeiling downgrades an auto-approval when the seller's
// payment method caps auto-verification below the submission total.
func (p *Processor) applyAutoVerifyCeiling(ctx context.Context, best match.Match, out decision.Outcome) decision.Outcome {
	sub := best.Target.Submission
	if sub.PaymentMethodID == nil {
		return out
	}
	method, err := p.methods.GetByID(ctx, *sub.PaymentMethodID)
	if err != nil {
		p.logger.Warn("processor.method_lookup_failed", "method_id", *sub.PaymentMethodID, "error", err)
		return out
	}
	if method.AutoVerifyThreshold != nil && sub.TotalAmount > *method.AutoVerifyThreshold {
		out.Status = constants.StatusRequiresReview
		out.AutoVerified = false
		out.Note = "match above auto-verify threshold; review required"
	}
	return out
}

// FlagPending applies the fraud rules to a pending proof with a known
// extraction confidence. Used by the flag sweep.
func (p *Processor) FlagPending(ctx context.Context, proofID uuid.UUID) (*ProcessResult, error) {
	proof, err := p.proofs.GetByID(ctx, proofID)
	if err != nil {
		return nil, err
	}
	if proof.VerificationStatus != constants.StatusPending || !proof.HasExtraction() {
		return resultFromProof(proof), nil
	}

	targets, err := p.buildTargets(ctx, proof)
	if err != nil {
		return nil, err
	}
	best, hasMatch := match.Select(p.scorer, storedCandidates(proof), targets)

	dupApproved := false
	if proof.ExtractedReference != nil {
		dupApproved, err = p.proofs.HasApprovedWithReference(ctx, *proof.ExtractedReference, proof.ID)
		if err != nil {
			return nil, err
		}
	}

	reasons := p.fraudReasons(proof, best, hasMatch, dupApproved)
	if len(reasons) == 0 {
		return resultFromProof(proof), nil
	}
	p.flag(ctx, proof, reasons, "fraud heuristics fired")
	return &ProcessResult{
		ProofID:        proof.ID,
		Status:         constants.StatusFlagged,
		FlaggedReasons: flagStrings(reasons),
	}, nil
}

func (p *Processor) fraudReasons(proof *entity.PaymentProof, best match.Match, hasMatch, dupApproved bool) []constants.FlagReason {
	in := fraud.Input{Proof: proof, DuplicateApproved: dupApproved}
	switch {
	case hasMatch:
		in.SubmissionTotal = best.Target.Submission.TotalAmount
	case proof.ExtractedAmount != nil:
		// No match to compare against; the mismatch rule stays quiet.
		in.SubmissionTotal = *proof.ExtractedAmount
	}
	return fraud.Evaluate(p.fraudCfg, in)
}

func (p *Processor) buildTargets(ctx context.Context, proof *entity.PaymentProof) ([]match.Target, error) {
	var subs []*entity.Submission
	if proof.SubmissionID != uuid.Nil {
		sub, err := p.submissions.GetByID(ctx, proof.SubmissionID)
		if err != nil {
			return nil, err
		}
		subs = []*entity.Submission{sub}
	} else {
		var err error
		subs, err = p.submissions.ListPendingBySeller(ctx, proof.SellerID)
		if err != nil {
			return nil, err
		}
	}

	methodNames := map[uuid.UUID]string{}
	targets := make([]match.Target, 0, len(subs))
	for _, sub := range subs {
		name := ""
		if sub.PaymentMethodID != nil {
			var ok bool
			if name, ok = methodNames[*sub.PaymentMethodID]; !ok {
				if m, err := p.methods.GetByID(ctx, *sub.PaymentMethodID); err == nil {
					name = m.Name
				}
				methodNames[*sub.PaymentMethodID] = name
			}
		}
		targets = append(targets, match.Target{Submission: sub, MethodName: name})
	}
	return targets, nil
}

func (p *Processor) flag(ctx context.Context, proof *entity.PaymentProof, reasons []constants.FlagReason, note string) {
	if err := p.proofs.AppendFlags(ctx, proof.ID, flagStrings(reasons)); err != nil {
		p.logger.Error("processor.flag_failed", "proof_id", proof.ID, "error", err)
		return
	}
	p.logTransition(ctx, proof, nil, constants.ActionFlagged,
		proof.VerificationStatus, constants.StatusFlagged,
		constants.SystemActor, note, map[string]any{"reasons": flagStrings(reasons)})
}

func (p *Processor) logTransition(ctx context.Context, proof *entity.PaymentProof, sub *entity.Submission,
	action constants.LedgerAction, from, to constants.VerificationStatus,
	actor, notes string, metadata map[string]any) {
	entry := &entity.VerificationLogEntry{
		ProofID:    proof.ID,
		Actor:      actor,
		Action:     action,
		FromStatus: from,
		ToStatus:   to,
		Notes:      notes,
		CreatedAt:  time.Now().UTC(),
	}
	if sub != nil {
		entry.SubmissionID = sub.ID
		entry.OrderID = sub.OrderID
	} else {
		entry.SubmissionID = proof.SubmissionID
	}
	if metadata != nil {
		if b, err := json.Marshal(metadata); err == nil {
			entry.Metadata = b
		}
	}
	if err := p.ledger.Append(ctx, entry); err != nil {
		// A failed audit write must not lose the status change; log loudly.
		p.logger.Error("processor.ledger_append_failed", "proof_id", proof.ID, "action", action, "error", err)
	}
}

func storedCandidates(proof *entity.PaymentProof) []extract.Candidate {
	c := extract.Candidate{}
	if proof.AIConfidence != nil {
		c.Confidence = *proof.AIConfidence
	}
	c.Amount = proof.ExtractedAmount
	if proof.ExtractedReference != nil {
		c.Reference = *proof.ExtractedReference
	}
	if proof.ExtractedMethod != nil {
		c.Method = *proof.ExtractedMethod
	}
	if c.Amount == nil && c.Reference == "" && c.Method == "" {
		// Extraction ran but saw no payment at all.
		return nil
	}
	return []extract.Candidate{c}
}

func topCandidate(res extract.Result) (extract.Candidate, bool) {
	if len(res.Candidates) == 0 {
		return extract.Candidate{}, false
	}
	top := res.Candidates[0]
	for _, c := range res.Candidates[1:] {
		if c.Confidence > top.Confidence {
			top = c
		}
	}
	return top, true
}

func candidateScores(ranked []match.Match) []CandidateScore {
	out := make([]CandidateScore, 0, len(ranked))
	seen := map[uuid.UUID]bool{}
	for _, m := range ranked {
		id := m.Target.Submission.ID
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, CandidateScore{
			SubmissionID: id,
			Score:        m.Score.Value,
			Reasons:      m.Score.Reasons,
		})
	}
	return out
}

func flagStrings(reasons []constants.FlagReason) []string {
	out := make([]string, len(reasons))
	for i, r := range reasons {
		out[i] = string(r)
	}
	return out
}

func matchedSubmission(best match.Match, hasMatch bool) *entity.Submission {
	if !hasMatch {
		return nil
	}
	return best.Target.Submission
}

func reviewMetadata(out decision.Outcome) map[string]any {
	if out.Suggestion == nil {
		return nil
	}
	return map[string]any{
		"suggestedSubmission": out.Suggestion.String(),
		"matchScore":          out.MatchScore,
	}
}

func resultFromProof(proof *entity.PaymentProof) *ProcessResult {
	return &ProcessResult{
		ProofID:        proof.ID,
		Status:         proof.VerificationStatus,
		FlaggedReasons: proof.FlaggedReasons,
		RequiresReview: proof.VerificationStatus == constants.StatusRequiresReview,
	}
}

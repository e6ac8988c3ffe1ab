package core

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/groupcart/payproof/constants"
	"github.com/groupcart/payproof/internal/common"
	"github.com/groupcart/payproof/internal/entity"
	"github.com/groupcart/payproof/internal/extract"
	"github.com/groupcart/payproof/internal/repository"
)

// In-memory stand-ins for the postgres repositories. They mirror the
// conditional-write semantics the real queries enforce, which is what the
// pipeline tests actually depend on.

type fakeProofs struct {
	rows map[uuid.UUID]*entity.PaymentProof
}

func newFakeProofs() *fakeProofs {
	return &fakeProofs{rows: map[uuid.UUID]*entity.PaymentProof{}}
}

func copyProof(p *entity.PaymentProof) *entity.PaymentProof {
	cp := *p
	cp.FlaggedReasons = append([]string(nil), p.FlaggedReasons...)
	return &cp
}

func (f *fakeProofs) GetByID(_ context.Context, id uuid.UUID) (*entity.PaymentProof, error) {
	p, ok := f.rows[id]
	if !ok {
		return nil, common.NewAppError("PROOF_NOT_FOUND", "payment proof not found", common.ErrNotFound)
	}
	return copyProof(p), nil
}

func (f *fakeProofs) RecordExtraction(_ context.Context, id uuid.UUID, upd repository.ExtractionUpdate) error {
	p, ok := f.rows[id]
	if !ok {
		return common.NewAppError("PROOF_NOT_FOUND", "payment proof not found", common.ErrNotFound)
	}
	conf := upd.AIConfidence
	p.AIConfidence = &conf
	p.ExtractedAmount = upd.ExtractedAmount
	p.ExtractedReference = upd.ExtractedReference
	p.ExtractedMethod = upd.ExtractedMethod
	return nil
}

func (f *fakeProofs) IncrementAttempts(_ context.Context, id uuid.UUID) (int, error) {
	p, ok := f.rows[id]
	if !ok {
		return 0, common.NewAppError("PROOF_NOT_FOUND", "payment proof not found", common.ErrNotFound)
	}
	p.ProcessingAttempts++
	return p.ProcessingAttempts, nil
}

func (f *fakeProofs) ApplyDecision(_ context.Context, id uuid.UUID, upd repository.DecisionUpdate) error {
	p, ok := f.rows[id]
	if !ok {
		return common.NewAppError("PROOF_NOT_FOUND", "payment proof not found", common.ErrNotFound)
	}
	if p.VerificationStatus.Terminal() {
		return common.NewAppError("PROOF_TERMINAL", "proof already resolved", common.ErrConflict)
	}
	p.VerificationStatus = upd.Status
	if upd.VerifiedBy != nil {
		p.VerifiedBy = upd.VerifiedBy
	}
	if upd.RejectionReason != nil {
		p.RejectionReason = upd.RejectionReason
	}
	if upd.Notes != nil {
		p.ManualReviewNotes = upd.Notes
	}
	if upd.Status.Terminal() {
		now := time.Now().UTC()
		p.VerifiedAt = &now
	}
	return nil
}

func (f *fakeProofs) AppendFlags(_ context.Context, id uuid.UUID, reasons []string) error {
	p, ok := f.rows[id]
	if !ok {
		return common.NewAppError("PROOF_NOT_FOUND", "payment proof not found", common.ErrNotFound)
	}
	if p.VerificationStatus.Terminal() {
		return common.NewAppError("PROOF_TERMINAL", "proof already resolved", common.ErrConflict)
	}
	for _, r := range reasons {
		if !p.HasFlag(constants.FlagReason(r)) {
			p.FlaggedReasons = append(p.FlaggedReasons, r)
		}
	}
	p.VerificationStatus = constants.StatusFlagged
	return nil
}

func (f *fakeProofs) ClaimPending(_ context.Context, limit int, requireExtraction bool) ([]*entity.PaymentProof, error) {
	var out []*entity.PaymentProof
	for _, p := range f.rows {
		if p.VerificationStatus != constants.StatusPending {
			continue
		}
		if requireExtraction && p.AIConfidence == nil {
			continue
		}
		out = append(out, copyProof(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeProofs) HasApprovedWithReference(_ context.Context, reference string, excludeProofID uuid.UUID) (bool, error) {
	for _, p := range f.rows {
		if p.ID == excludeProofID || p.VerificationStatus != constants.StatusApproved {
			continue
		}
		if p.ExtractedReference != nil && strings.EqualFold(*p.ExtractedReference, reference) {
			return true, nil
		}
	}
	return false, nil
}

type fakeSubmissions struct {
	rows map[uuid.UUID]*entity.Submission
}

func newFakeSubmissions() *fakeSubmissions {
	return &fakeSubmissions{rows: map[uuid.UUID]*entity.Submission{}}
}

func (f *fakeSubmissions) GetByID(_ context.Context, id uuid.UUID) (*entity.Submission, error) {
	s, ok := f.rows[id]
	if !ok {
		return nil, common.NewAppError("SUBMISSION_NOT_FOUND", "submission not found", common.ErrNotFound)
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSubmissions) ListPendingBySeller(_ context.Context, sellerID uuid.UUID) ([]*entity.Submission, error) {
	var out []*entity.Submission
	for _, s := range f.rows {
		if s.SellerID == sellerID && s.Status == constants.SubmissionPending {
			cp := *s
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeSubmissions) MarkPaid(_ context.Context, submissionID, proofID uuid.UUID) error {
	s, ok := f.rows[submissionID]
	if !ok {
		return common.NewAppError("SUBMISSION_NOT_FOUND", "submission not found", common.ErrNotFound)
	}
	if s.Status != constants.SubmissionPending || s.PaidProofID != nil {
		return common.NewAppError("ALREADY_PAID", "submission already has an approved proof", common.ErrConflict)
	}
	s.Status = constants.SubmissionPaid
	s.PaidProofID = &proofID
	return nil
}

type fakeMethods struct {
	rows map[uuid.UUID]*entity.PaymentMethod
}

func newFakeMethods() *fakeMethods {
	return &fakeMethods{rows: map[uuid.UUID]*entity.PaymentMethod{}}
}

func (f *fakeMethods) GetByID(_ context.Context, id uuid.UUID) (*entity.PaymentMethod, error) {
	m, ok := f.rows[id]
	if !ok {
		return nil, common.NewAppError("METHOD_NOT_FOUND", "payment method not found", common.ErrNotFound)
	}
	cp := *m
	return &cp, nil
}

type fakeLedger struct {
	entries []*entity.VerificationLogEntry
}

func (f *fakeLedger) Append(_ context.Context, e *entity.VerificationLogEntry) error {
	cp := *e
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	f.entries = append(f.entries, &cp)
	return nil
}

func (f *fakeLedger) ListByProof(_ context.Context, proofID uuid.UUID) ([]*entity.VerificationLogEntry, error) {
	var out []*entity.VerificationLogEntry
	for _, e := range f.entries {
		if e.ProofID == proofID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeLedger) ListRange(_ context.Context, _, _ *time.Time) ([]*entity.VerificationLogEntry, error) {
	return f.entries, nil
}

func (f *fakeLedger) actions(proofID uuid.UUID) []constants.LedgerAction {
	var out []constants.LedgerAction
	for _, e := range f.entries {
		if e.ProofID == proofID {
			out = append(out, e.Action)
		}
	}
	return out
}

func (f *fakeLedger) hasAction(proofID uuid.UUID, action constants.LedgerAction) bool {
	for _, a := range f.actions(proofID) {
		if a == action {
			return true
		}
	}
	return false
}

// fakeExtractor plays back a script: errs[i] is returned on call i, nil
// entries and calls past the script's end return res.
type fakeExtractor struct {
	calls int
	res   extract.Result
	errs  []error
}

func (f *fakeExtractor) Extract(_ context.Context, _, _ string) (extract.Result, []byte, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return extract.Result{}, nil, f.errs[i]
	}
	return f.res, []byte(`{}`), nil
}

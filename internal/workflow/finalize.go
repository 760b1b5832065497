package workflow

import (
	"context"
	"fmt"

	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/classifications"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/entity"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/fusion"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/signal"
)

// finalize turns the chain's state into a result: NOT_CLASSIFIED without
// input, HOLD below the minimum confidence or when the decision is not
// corroborated, otherwise CLASSIFIED. Entity
// detection and overrides run on every result.
func finalize(ctx context.Context, rt *Runtime, s *State) (*classifications.Result, error) {
	cfg := rt.Fuser.Config()
	d := s.Decision

	r := &classifications.Result{
		CompanyID:       s.Company.ID,
		TaxonomyVersion: rt.Taxonomy.Version(),
		InputHash:       s.Hash,
		Weights:         d.Weights,
		ClassifiedAt:    rt.now(),
	}

	switch {
	case s.Company.Empty():
		r.Status = classifications.StatusNotClassified
		r.Method = fusion.MethodNotClassified
		r.Band = fusion.BandHold
		s.record(signal.Outcome{
			Stage:  signal.StageExternal,
			Status: signal.StatusSkipped,
			Kind:   signal.KindInputMissing,
			Detail: "no text, segment data or industry code",
		})
	case d.Empty() || d.Confidence < cfg.MinConfidence || !s.corroborated(cfg):
		hold := holdFor(s, cfg)
		r.Status = classifications.StatusHold
		r.Method = fusion.MethodHold
		r.Band = fusion.BandHold
		r.Confidence = d.Confidence
		r.Hold = &hold
		r.ConflictCodes = d.ConflictCodes
	default:
		codes, err := rt.Taxonomy.Path(d.Code)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrUnknownCode, d.Code, err)
		}
		r.Status = classifications.StatusClassified
		r.Method = d.Method
		r.Codes = &codes
		r.Secondary = d.Secondary
		r.Confidence = d.Confidence
		r.Band = cfg.Band(d.Confidence)
		r.ConflictResolved = d.ConflictResolved
		r.ConflictCodes = d.ConflictCodes
	}

	res := rt.Resolver.Resolve(ctx, entity.Subject{
		CompanyID: s.Company.ID,
		Name:      s.Company.Name,
		Text:      s.Text,
	}, s.Segments)
	r.Entity = res.Entity

	if res.Override != nil {
		if err := applyOverride(rt, s, r, *res.Override); err != nil {
			return nil, err
		}
	}

	r.Trace = s.Trace
	return r, nil
}

func applyOverride(rt *Runtime, s *State, r *classifications.Result, o entity.Override) error {
	r.Override = &o
	if o.Code == "" {
		return nil
	}

	code := rt.Taxonomy.Canonical(o.Code)
	codes, err := rt.Taxonomy.Path(code)
	if err != nil {
		return fmt.Errorf("%w: override %s: %w", ErrUnknownCode, o.RuleID, err)
	}

	if r.Status == classifications.StatusClassified && r.Codes.Deepest() != codes.Deepest() {
		r.Override.Replaced = r.Codes.Deepest()
		r.ConflictResolved = true
		r.ConflictCodes = []string{r.Codes.Deepest(), codes.Deepest()}
	}

	cfg := rt.Fuser.Config()
	r.Status = classifications.StatusClassified
	r.Method = fusion.MethodOverride
	r.Codes = &codes
	r.Confidence = cfg.OverrideConfidence
	r.Band = cfg.Band(cfg.OverrideConfidence)
	r.Hold = nil
	if r.Secondary == codes.Deepest() {
		r.Secondary = ""
	}

	s.record(signal.Outcome{
		Stage:      signal.StageOverride,
		Status:     signal.StatusOK,
		Code:       codes.Deepest(),
		Confidence: cfg.OverrideConfidence,
		Detail:     o.RuleID,
	})
	return nil
}

// holdFor explains a missing decision with a reason and the stage whose
// input or recovery would most likely change the outcome.
func holdFor(s *State, cfg fusion.Config) classifications.Hold {
	if stage, ok := s.unavailable(); ok {
		return classifications.Hold{Reason: classifications.ReasonStageUnavailable, RetryStage: stage}
	}

	short := s.TextRunes < *cfg.MinTextRunes
	d := s.Decision

	switch {
	case d.Empty() && short:
		return classifications.Hold{Reason: classifications.ReasonInsufficientText, RetryStage: signal.StageEmbedding}
	case d.Empty():
		return classifications.Hold{Reason: classifications.ReasonNoCandidates, RetryStage: signal.StageEmbedding}
	case d.Contested:
		return classifications.Hold{Reason: classifications.ReasonAmbiguousCandidates, RetryStage: signal.StageLLM}
	case !s.Segments.Mapped():
		return classifications.Hold{Reason: classifications.ReasonMissingStructured, RetryStage: signal.StageSegment}
	case short:
		return classifications.Hold{Reason: classifications.ReasonInsufficientText, RetryStage: signal.StageEmbedding}
	}
	return classifications.Hold{Reason: classifications.ReasonAmbiguousCandidates, RetryStage: signal.StageLLM}
}

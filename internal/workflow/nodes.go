package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/arbiter"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/candidates"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/fusion"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/services"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/signal"
)

// node is one step of the chain. It reports true when the decision is made
// and later nodes must not run.
type node struct {
	name string
	run  func(ctx context.Context, rt *Runtime, s *State) bool
}

var chain = []node{
	{"external", externalNode},
	{"segment", segmentNode},
	{"embedding", embeddingNode},
	{"fuse", fuseNode},
}

func externalNode(_ context.Context, rt *Runtime, s *State) bool {
	raw := strings.TrimSpace(s.Company.IndustryCode)
	if raw == "" {
		s.record(signal.Skipped(signal.StageExternal, "no industry code"))
		return false
	}

	code, ok := rt.Taxonomy.IndustryCode(raw)
	if !ok {
		s.record(signal.Outcome{
			Stage:  signal.StageExternal,
			Status: signal.StatusNoCandidates,
			Detail: "unmapped industry code " + raw,
		})
		return false
	}

	cfg := rt.Fuser.Config()
	s.External = fusion.Signal{
		Stage:  signal.StageExternal,
		Scores: map[string]float64{code: cfg.ExternalConfidence},
	}
	s.Rule = s.External
	s.record(scored(signal.StageExternal, code, cfg.ExternalConfidence, cfg.ExternalMin))

	if cfg.ExternalConfidence >= cfg.ExternalMin {
		s.Decision = rt.Fuser.Accept(s.External)
		return true
	}
	return false
}

func segmentNode(_ context.Context, rt *Runtime, s *State) bool {
	if s.Segments.Empty() {
		s.record(signal.Skipped(signal.StageSegment, "no segment data"))
		return false
	}
	if !s.Segments.Mapped() {
		s.record(signal.Outcome{
			Stage:  signal.StageSegment,
			Status: signal.StatusNoCandidates,
			Detail: fmt.Sprintf("no segment matched the dictionary (%d rows)", len(s.Segments.Matches)),
		})
		return false
	}

	cfg := rt.Fuser.Config()
	seg := fusion.Signal{Stage: signal.StageSegment, Scores: s.Segments.Boosted()}
	s.Rule = merge(signal.StageSegment, s.External, seg)

	audit := s.Segments.Audit
	o := scored(signal.StageSegment, audit.Top1, s.Segments.Confidence(), cfg.RuleMin)
	o.Detail = fmt.Sprintf("margin %.1fpp, coverage %.1f%%, bonus %t", audit.Margin, audit.Coverage, audit.BonusApplied)
	s.record(o)

	if o.Status == signal.StatusOK {
		s.Decision = rt.Fuser.Accept(seg, s.External)
		return true
	}
	return false
}

func embeddingNode(ctx context.Context, rt *Runtime, s *State) bool {
	cfg := rt.Fuser.Config()
	if rt.Generator == nil {
		s.record(signal.Skipped(signal.StageEmbedding, "embedding stage disabled"))
		return false
	}
	if s.TextRunes < *cfg.MinTextRunes {
		o := signal.Skipped(signal.StageEmbedding, fmt.Sprintf("text has %d runes, need %d", s.TextRunes, *cfg.MinTextRunes))
		o.Kind = signal.KindInputMissing
		s.record(o)
		return false
	}

	retrieved, err := rt.Generator.Generate(ctx, s.Text)
	if err != nil {
		s.record(signal.Unavailable(signal.StageEmbedding, kindOf(err), err))
		rt.Logger.WarnContext(ctx, "candidate generation failed", "company_id", s.Company.ID, "error", err)
		return false
	}
	if len(retrieved) == 0 {
		s.record(signal.Outcome{Stage: signal.StageEmbedding, Status: signal.StatusNoCandidates})
		return false
	}
	s.Retrieved = retrieved
	s.record(scored(signal.StageEmbedding, retrieved[0].Code, retrieved[0].Score, cfg.EmbeddingMin))

	final, stage := retrieved, signal.StageEmbedding
	switch {
	case rt.Reranker == nil:
		s.record(signal.Skipped(signal.StageRerank, "rerank stage disabled"))
	default:
		reranked, err := rt.Reranker.Rerank(ctx, s.Text, retrieved)
		switch {
		case err != nil:
			s.record(signal.Unavailable(signal.StageRerank, kindOf(err), err))
			rt.Logger.WarnContext(ctx, "rerank failed, using retrieval scores", "company_id", s.Company.ID, "error", err)
		case len(reranked) == 0:
			s.record(signal.Outcome{Stage: signal.StageRerank, Status: signal.StatusNoCandidates})
		default:
			final, stage = reranked, signal.StageRerank
			s.record(scored(signal.StageRerank, reranked[0].Code, reranked[0].Score, cfg.EmbeddingMin))
		}
	}

	s.Embedding = signalOf(stage, final)
	if _, top := s.Embedding.Top(); top >= cfg.EmbeddingMin {
		s.Decision = rt.Fuser.Accept(s.Embedding, s.Rule)
		return true
	}
	return false
}

func fuseNode(ctx context.Context, rt *Runtime, s *State) bool {
	cfg := rt.Fuser.Config()
	sq := fusion.StructureQuality(s.Segments.CoverageRatio(), s.TextRunes, cfg.RichTextRunes)

	d := rt.Fuser.Fuse(s.Rule, s.Embedding, fusion.Signal{}, sq)
	s.Decision = d

	switch {
	case d.Empty():
		s.record(signal.Skipped(signal.StageLLM, "no candidates to arbitrate"))
		return true
	case d.Confidence >= cfg.FusionMin:
		s.record(signal.Skipped(signal.StageLLM, "fused confidence sufficient"))
		return true
	case rt.Arbiter == nil:
		s.record(signal.Skipped(signal.StageLLM, "arbiter disabled"))
		return true
	case d.Weights.LLM <= 0:
		s.record(signal.Skipped(signal.StageLLM, "no weight left for the arbiter"))
		return true
	}

	dec, err := rt.Arbiter.Decide(ctx, describe(s), s.shortlist())
	if err != nil {
		o := signal.Unavailable(signal.StageLLM, kindOf(err), err)
		o.Code = dec.Code
		s.record(o)
		rt.Logger.WarnContext(ctx, "arbiter failed, keeping fused decision", "company_id", s.Company.ID, "error", err)
		return true
	}

	s.LLM = fusion.Signal{Stage: signal.StageLLM, Scores: map[string]float64{dec.Code: dec.Confidence}}
	o := scored(signal.StageLLM, dec.Code, dec.Confidence, cfg.FusionMin)
	o.Detail = dec.Rationale
	s.record(o)

	s.Decision = rt.Fuser.Fuse(s.Rule, s.Embedding, s.LLM, sq)
	return true
}

// describe is the company text given to the arbiter: name, free text and
// the segment table.
func describe(s *State) string {
	var b strings.Builder
	b.WriteString(s.Company.Name)
	if s.Text != "" {
		b.WriteString("\n")
		b.WriteString(s.Text)
	}
	if len(s.Segments.Matches) > 0 {
		b.WriteString("\nRevenue segments:")
		for _, m := range s.Segments.Matches {
			fmt.Fprintf(&b, "\n- %s: %.1f%%", m.Label, m.Percent)
		}
	}
	return b.String()
}

func kindOf(err error) signal.ErrorKind {
	switch {
	case errors.Is(err, services.ErrMalformedResponse),
		errors.Is(err, arbiter.ErrInvalidDecision),
		errors.Is(err, candidates.ErrZeroVector),
		errors.Is(err, candidates.ErrDimensionMismatch):
		return signal.KindMalformed
	}
	return signal.KindExternal
}

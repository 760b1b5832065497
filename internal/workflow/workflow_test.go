package workflow_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/arbiter"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/candidates"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/candidates/candidatestest"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/classifications"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/companies"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/embeddings"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/entity"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/fusion"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/segments"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/signal"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/taxonomy/taxonomytest"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/workflow"
)

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeArbiter struct {
	decision arbiter.Decision
	err      error
	calls    atomic.Int64
}

func (a *fakeArbiter) Decide(_ context.Context, _ string, _ []candidates.Candidate) (arbiter.Decision, error) {
	a.calls.Add(1)
	return a.decision, a.err
}

type fakeReranker struct {
	out []candidates.Candidate
	err error
}

func (r *fakeReranker) Rerank(_ context.Context, _ string, _ []candidates.Candidate) ([]candidates.Candidate, error) {
	return r.out, r.err
}

type failingGenerator struct{ err error }

func (g failingGenerator) Generate(context.Context, string) ([]candidates.Candidate, error) {
	return nil, g.err
}

type staticGenerator struct{ out []candidates.Candidate }

func (g staticGenerator) Generate(context.Context, string) ([]candidates.Candidate, error) {
	return g.out, nil
}

func newRuntime(t *testing.T, overrides string) *workflow.Runtime {
	t.Helper()
	tax := taxonomytest.New(t)

	var segCfg segments.Config
	require.NoError(t, segCfg.Finalize())
	var fusionCfg fusion.Config
	require.NoError(t, fusionCfg.Finalize())

	var table *entity.Table
	if overrides != "" {
		var err error
		table, err = entity.ParseTable([]byte(overrides), tax)
		require.NoError(t, err)
	}

	return &workflow.Runtime{
		Taxonomy: tax,
		Segments: segments.New(segments.FromTaxonomy(tax), segCfg),
		Fuser:    fusion.New(fusionCfg, tax.Level),
		Resolver: entity.NewResolver(table, tax, discard()),
		Logger:   discard(),
		Now:      func() time.Time { return fixedNow },
	}
}

func withGenerator(t *testing.T, rt *workflow.Runtime) {
	t.Helper()
	var cfg candidates.Config
	require.NoError(t, cfg.Finalize())
	g := candidates.New(candidatestest.New(), embeddings.NewCache("test", nil, discard()), cfg, discard())
	require.NoError(t, g.Warm(context.Background(), rt.Taxonomy))
	rt.Generator = g
}

func stages(r *classifications.Result) map[signal.Stage]signal.Status {
	out := make(map[signal.Stage]signal.Status)
	for _, o := range r.Trace {
		out[o.Stage] = o.Status
	}
	return out
}

func TestExecuteSegmentShortCircuit(t *testing.T) {
	rt := newRuntime(t, "")
	arb := &fakeArbiter{}
	rt.Arbiter = arb
	reg := prometheus.NewRegistry()
	rt.Metrics = workflow.NewMetrics(reg)

	r, err := workflow.Execute(context.Background(), rt, companies.Company{
		ID:       "A",
		Name:     "알파전자",
		Segments: map[string]float64{"반도체제조": 80, "부동산임대": 20},
	})
	require.NoError(t, err)
	require.NoError(t, r.Validate())

	assert.Equal(t, classifications.StatusClassified, r.Status)
	assert.Equal(t, fusion.MethodRule, r.Method)
	assert.Equal(t, fusion.BandHigh, r.Band)
	assert.InDelta(t, 0.9, r.Confidence, 1e-9)
	assert.Equal(t, "TECH", r.Codes.L1)
	assert.Equal(t, "SEMI", r.Codes.L2)
	assert.Empty(t, r.Secondary)
	assert.Equal(t, taxonomytest.Version, r.TaxonomyVersion)
	assert.Equal(t, fixedNow, r.ClassifiedAt)
	assert.NotEmpty(t, r.InputHash)
	assert.Equal(t, entity.TypeOperating, r.Entity.Type)
	assert.Zero(t, arb.calls.Load())

	got := stages(r)
	assert.Equal(t, signal.StatusSkipped, got[signal.StageExternal])
	assert.Equal(t, signal.StatusOK, got[signal.StageSegment])
	assert.NotContains(t, got, signal.StageEmbedding)

	assert.Equal(t, 1.0, testutil.ToFloat64(rt.Metrics.Results.WithLabelValues("CLASSIFIED", "RULE", "HIGH")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rt.Metrics.Stages.WithLabelValues("SEGMENT", "OK")))
}

func TestExecuteHoldsNearTie(t *testing.T) {
	rt := newRuntime(t, "")
	c := companies.Company{
		ID:       "B",
		Name:     "베타테크",
		Segments: map[string]float64{"반도체": 30, "소프트웨어": 28, "기타": 42},
	}

	r, err := workflow.Execute(context.Background(), rt, c)
	require.NoError(t, err)
	require.NoError(t, r.Validate())

	assert.Equal(t, classifications.StatusHold, r.Status)
	assert.Equal(t, fusion.MethodHold, r.Method)
	assert.Equal(t, fusion.BandHold, r.Band)
	assert.Nil(t, r.Codes)
	require.NotNil(t, r.Hold)
	assert.Equal(t, classifications.ReasonAmbiguousCandidates, r.Hold.Reason)
	assert.Equal(t, signal.StageLLM, r.Hold.RetryStage)
	assert.InDelta(t, 0.30, r.Confidence, 1e-9)
	assert.Equal(t, signal.StatusLowConfidence, stages(r)[signal.StageSegment])
	assert.Equal(t, signal.StatusSkipped, stages(r)[signal.StageLLM])
}

func TestExecuteHoldsLoneLowSegmentSignal(t *testing.T) {
	rt := newRuntime(t, "")

	r, err := workflow.Execute(context.Background(), rt, companies.Company{
		ID:       "B2",
		Name:     "베타반도체",
		Segments: map[string]float64{"반도체": 55, "소프트웨어": 45},
	})
	require.NoError(t, err)
	require.NoError(t, r.Validate())

	assert.Equal(t, classifications.StatusHold, r.Status)
	assert.Equal(t, fusion.MethodHold, r.Method)
	assert.Nil(t, r.Codes)
	require.NotNil(t, r.Hold)
	assert.NotEmpty(t, r.Hold.RetryStage)
	assert.Equal(t, signal.StatusLowConfidence, stages(r)[signal.StageSegment])
}

func TestExecuteNoCandidatesRetriesEmbedding(t *testing.T) {
	rt := newRuntime(t, "")
	rt.Generator = staticGenerator{}

	r, err := workflow.Execute(context.Background(), rt, companies.Company{
		ID:          "N",
		Name:        "뉴",
		Description: "지역 기반의 여러 사업을 함께 운영하고 있는 중소 규모의 기업입니다",
	})
	require.NoError(t, err)
	require.NoError(t, r.Validate())

	assert.Equal(t, classifications.StatusHold, r.Status)
	require.NotNil(t, r.Hold)
	assert.Equal(t, classifications.ReasonNoCandidates, r.Hold.Reason)
	assert.Equal(t, signal.StageEmbedding, r.Hold.RetryStage)
	assert.Equal(t, signal.StatusNoCandidates, stages(r)[signal.StageEmbedding])
}

func TestExecuteNeverClassifiesFromOneWeakSignal(t *testing.T) {
	rt := newRuntime(t, "")
	cfg := rt.Fuser.Config()
	text := "웨이퍼 파운드리 공정으로 반도체를 생산하고 반도체 설계도 하는 기업"

	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("embedding below its minimum holds", prop.ForAll(
		func(score float64) bool {
			rt.Generator = staticGenerator{out: []candidates.Candidate{
				{Code: "SEMI", Score: score, Stage: signal.StageEmbedding},
			}}
			r, err := workflow.Execute(context.Background(), rt, companies.Company{
				ID:          "P",
				Name:        "파이",
				Description: text,
			})
			if err != nil || r.Validate() != nil {
				return false
			}
			return r.Status == classifications.StatusHold && r.Hold != nil && r.Hold.RetryStage != ""
		},
		gen.Float64Range(0.01, cfg.EmbeddingMin-0.001),
	))

	properties.Property("segment below its minimum holds", prop.ForAll(
		func(top int) bool {
			rt.Generator = nil
			r, err := workflow.Execute(context.Background(), rt, companies.Company{
				ID:       "Q",
				Name:     "큐",
				Segments: map[string]float64{"반도체": float64(top), "소프트웨어": float64(100 - top)},
			})
			if err != nil || r.Validate() != nil {
				return false
			}
			if stages(r)[signal.StageSegment] == signal.StatusOK {
				return r.Status == classifications.StatusClassified
			}
			return r.Status == classifications.StatusHold && r.Hold != nil && r.Hold.RetryStage != ""
		},
		gen.IntRange(50, 100),
	))

	properties.TestingRun(t)
}

func TestExecuteArbiterBreaksTie(t *testing.T) {
	rt := newRuntime(t, "")
	arb := &fakeArbiter{decision: arbiter.Decision{Code: "SW", Confidence: 1.0, Rationale: "software revenue grows"}}
	rt.Arbiter = arb

	r, err := workflow.Execute(context.Background(), rt, companies.Company{
		ID:       "B",
		Name:     "베타테크",
		Segments: map[string]float64{"반도체": 30, "소프트웨어": 28, "기타": 42},
	})
	require.NoError(t, err)
	require.NoError(t, r.Validate())

	assert.Equal(t, int64(1), arb.calls.Load())
	assert.Equal(t, classifications.StatusClassified, r.Status)
	assert.Equal(t, fusion.MethodLLM, r.Method)
	assert.Equal(t, fusion.BandLow, r.Band)
	assert.Equal(t, "SW", r.Codes.Deepest())
	assert.InDelta(t, 0.5252, r.Confidence, 1e-3)
	assert.InDelta(t, 0.25, r.Weights.LLM, 1e-9)
	assert.InDelta(t, 1.0, r.Weights.Sum(), 1e-9)
	assert.True(t, r.ConflictResolved)
	assert.Equal(t, []string{"SEMI", "SW"}, r.ConflictCodes)
	assert.Equal(t, signal.StatusOK, stages(r)[signal.StageLLM])
}

func TestExecuteArbiterFailureHolds(t *testing.T) {
	rt := newRuntime(t, "")
	rt.Arbiter = &fakeArbiter{err: errors.New("connection reset")}

	r, err := workflow.Execute(context.Background(), rt, companies.Company{
		ID:       "B",
		Name:     "베타테크",
		Segments: map[string]float64{"반도체": 30, "소프트웨어": 28, "기타": 42},
	})
	require.NoError(t, err)

	assert.Equal(t, classifications.StatusHold, r.Status)
	require.NotNil(t, r.Hold)
	assert.Equal(t, classifications.ReasonStageUnavailable, r.Hold.Reason)
	assert.Equal(t, signal.StageLLM, r.Hold.RetryStage)

	last := r.Trace[len(r.Trace)-1]
	assert.Equal(t, signal.StageLLM, last.Stage)
	assert.Equal(t, signal.StatusUnavailable, last.Status)
	assert.Equal(t, signal.KindExternal, last.Kind)
}

func TestExecuteExternalCodeAlone(t *testing.T) {
	rt := newRuntime(t, "")

	r, err := workflow.Execute(context.Background(), rt, companies.Company{
		ID:           "C",
		Name:         "감마",
		IndustryCode: "C261",
	})
	require.NoError(t, err)

	assert.Equal(t, classifications.StatusHold, r.Status)
	require.NotNil(t, r.Hold)
	assert.Equal(t, classifications.ReasonMissingStructured, r.Hold.Reason)
	assert.Equal(t, signal.StageSegment, r.Hold.RetryStage)
	assert.InDelta(t, 0.45, r.Confidence, 1e-9)
	assert.Equal(t, signal.StatusLowConfidence, stages(r)[signal.StageExternal])
}

func TestExecuteRecordsConflictWithExternalCode(t *testing.T) {
	rt := newRuntime(t, "")

	r, err := workflow.Execute(context.Background(), rt, companies.Company{
		ID:           "D",
		Name:         "델타",
		IndustryCode: "L68",
		Segments:     map[string]float64{"반도체제조": 90, "소프트웨어": 10},
	})
	require.NoError(t, err)

	assert.Equal(t, classifications.StatusClassified, r.Status)
	assert.Equal(t, "SEMI", r.Codes.Deepest())
	assert.InDelta(t, 1.0, r.Confidence, 1e-9)
	assert.True(t, r.ConflictResolved)
	assert.Equal(t, []string{"REDEV", "SEMI"}, r.ConflictCodes)
}

func TestExecuteEmbedding(t *testing.T) {
	text := "웨이퍼 파운드리 공정으로 반도체를 생산하고 반도체 설계도 하는 기업"

	tests := []struct {
		name       string
		reranker   workflow.Reranker
		wantCode   string
		wantRerank signal.Status
	}{
		{
			name:       "rerank disabled",
			wantCode:   "SEMI",
			wantRerank: signal.StatusSkipped,
		},
		{
			name:       "rerank failure keeps retrieval scores",
			reranker:   &fakeReranker{err: errors.New("timeout")},
			wantCode:   "SEMI",
			wantRerank: signal.StatusUnavailable,
		},
		{
			name: "rerank reorders",
			reranker: &fakeReranker{out: []candidates.Candidate{
				{Code: "SEMI_EQP", Score: 0.92, Stage: signal.StageRerank},
				{Code: "SEMI", Score: 0.40, Stage: signal.StageRerank},
			}},
			wantCode:   "SEMI_EQP",
			wantRerank: signal.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := newRuntime(t, "")
			withGenerator(t, rt)
			rt.Reranker = tt.reranker

			r, err := workflow.Execute(context.Background(), rt, companies.Company{
				ID:          "E",
				Name:        "엡실론",
				Description: text,
			})
			require.NoError(t, err)
			require.NoError(t, r.Validate())

			assert.Equal(t, classifications.StatusClassified, r.Status)
			assert.Equal(t, fusion.MethodEmbedding, r.Method)
			assert.Equal(t, tt.wantCode, r.Codes.Deepest())
			assert.Equal(t, fusion.BandHigh, r.Band)

			got := stages(r)
			assert.Equal(t, signal.StatusOK, got[signal.StageEmbedding])
			assert.Equal(t, tt.wantRerank, got[signal.StageRerank])
		})
	}
}

func TestExecuteGeneratorFailureHolds(t *testing.T) {
	rt := newRuntime(t, "")
	rt.Generator = failingGenerator{err: errors.New("embedding service down")}

	r, err := workflow.Execute(context.Background(), rt, companies.Company{
		ID:          "F",
		Name:        "제타",
		Description: "부동산 개발과 임대 사업을 영위하는 기업입니다",
	})
	require.NoError(t, err)

	assert.Equal(t, classifications.StatusHold, r.Status)
	require.NotNil(t, r.Hold)
	assert.Equal(t, classifications.ReasonStageUnavailable, r.Hold.Reason)
	assert.Equal(t, signal.StageEmbedding, r.Hold.RetryStage)
}

func TestExecuteShortTextHolds(t *testing.T) {
	rt := newRuntime(t, "")
	withGenerator(t, rt)

	r, err := workflow.Execute(context.Background(), rt, companies.Company{
		ID:          "G",
		Name:        "에타",
		Description: "반도체",
	})
	require.NoError(t, err)

	assert.Equal(t, classifications.StatusHold, r.Status)
	require.NotNil(t, r.Hold)
	assert.Equal(t, classifications.ReasonInsufficientText, r.Hold.Reason)
	assert.Equal(t, signal.StageEmbedding, r.Hold.RetryStage)

	for _, o := range r.Trace {
		if o.Stage == signal.StageEmbedding {
			assert.Equal(t, signal.KindInputMissing, o.Kind)
		}
	}
}

func TestExecuteNotClassified(t *testing.T) {
	rt := newRuntime(t, "")

	r, err := workflow.Execute(context.Background(), rt, companies.Company{ID: "H", Name: "세타"})
	require.NoError(t, err)
	require.NoError(t, r.Validate())

	assert.Equal(t, classifications.StatusNotClassified, r.Status)
	assert.Equal(t, fusion.MethodNotClassified, r.Method)
	assert.Nil(t, r.Codes)
	assert.Nil(t, r.Hold)
	require.Len(t, r.Trace, 1)
	assert.Equal(t, signal.KindInputMissing, r.Trace[0].Kind)
}

const overrideTable = `
overrides:
  - id: alpha-cloud
    when:
      company_id: A
    set:
      code: SW_CLOUD
    rationale: 매출 대부분이 클라우드 호스팅에서 발생
`

func TestExecuteOverrideReplacesFusedCode(t *testing.T) {
	rt := newRuntime(t, overrideTable)

	r, err := workflow.Execute(context.Background(), rt, companies.Company{
		ID:       "A",
		Name:     "알파전자",
		Segments: map[string]float64{"반도체제조": 80, "부동산임대": 20},
	})
	require.NoError(t, err)
	require.NoError(t, r.Validate())

	assert.Equal(t, fusion.MethodOverride, r.Method)
	assert.Equal(t, 1.0, r.Confidence)
	assert.Equal(t, "SW_CLOUD", r.Codes.Deepest())
	assert.Equal(t, "SW", r.Codes.L2)
	require.NotNil(t, r.Override)
	assert.Equal(t, "alpha-cloud", r.Override.RuleID)
	assert.Equal(t, "SEMI", r.Override.Replaced)
	assert.True(t, r.ConflictResolved)

	last := r.Trace[len(r.Trace)-1]
	assert.Equal(t, signal.StageOverride, last.Stage)
	assert.Equal(t, "SW_CLOUD", last.Code)
}

func TestExecuteEntitySectorOverride(t *testing.T) {
	rt := newRuntime(t, "")

	r, err := workflow.Execute(context.Background(), rt, companies.Company{
		ID:          "S",
		Name:        "한빛스팩1호",
		Description: "기업인수목적회사로서 합병대상 법인을 탐색하고 있습니다",
	})
	require.NoError(t, err)
	require.NoError(t, r.Validate())

	assert.Equal(t, classifications.StatusClassified, r.Status)
	assert.Equal(t, fusion.MethodOverride, r.Method)
	assert.Equal(t, entity.TypeSPAC, r.Entity.Type)
	assert.Equal(t, "FIN_SPAC", r.Codes.Deepest())
	assert.Nil(t, r.Hold)
	require.NotNil(t, r.Override)
	assert.Empty(t, r.Override.Replaced)
}

func TestExecuteCancelled(t *testing.T) {
	rt := newRuntime(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := workflow.Execute(ctx, rt, companies.Company{ID: "A", Name: "알파", IndustryCode: "C26"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecuteRejectsIncompleteRuntime(t *testing.T) {
	rt := newRuntime(t, "")
	rt.Fuser = nil

	_, err := workflow.Execute(context.Background(), rt, companies.Company{ID: "A"})
	assert.ErrorIs(t, err, workflow.ErrInvalidRuntime)

	_, err = workflow.Execute(context.Background(), nil, companies.Company{ID: "A"})
	assert.ErrorIs(t, err, workflow.ErrInvalidRuntime)
}

func TestExecuteIsDeterministic(t *testing.T) {
	rt := newRuntime(t, "")
	withGenerator(t, rt)
	c := companies.Company{
		ID:          "I",
		Name:        "이오타",
		Description: "웨이퍼 파운드리 공정으로 반도체를 생산하고 반도체 설계도 하는 기업",
		Segments:    map[string]float64{"반도체": 40, "소프트웨어": 35, "기타": 25},
	}

	first, err := workflow.Execute(context.Background(), rt, c)
	require.NoError(t, err)
	second, err := workflow.Execute(context.Background(), rt, c)
	require.NoError(t, err)

	assert.Equal(t, first.InputHash, second.InputHash)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Codes, second.Codes)
	assert.Equal(t, first.Confidence, second.Confidence)
}

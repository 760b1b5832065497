package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/classifications"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/companies"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/entity"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/fusion"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/graph"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/pipeline"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/reports"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/segments"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/taxonomy"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/taxonomy/taxonomytest"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/workflow"
	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/pagination"
	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/storage/storagetest"
)

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	pipeline *pipeline.Pipeline
	results  *classifications.MemoryStore
	edges    *graph.MemoryStore
	ledger   *reports.MemoryLedger
	metrics  *pipeline.Metrics
}

func newHarness(t *testing.T, results classifications.Store) *harness {
	t.Helper()
	tax := taxonomytest.New(t)

	var segCfg segments.Config
	require.NoError(t, segCfg.Finalize())
	var fusionCfg fusion.Config
	require.NoError(t, fusionCfg.Finalize())
	var graphCfg graph.Config
	require.NoError(t, graphCfg.Finalize())
	var cfg pipeline.Config
	require.NoError(t, cfg.Finalize(nil))
	var pageCfg pagination.Config
	require.NoError(t, pageCfg.Finalize(nil))

	rt := &workflow.Runtime{
		Taxonomy: tax,
		Segments: segments.New(segments.FromTaxonomy(tax), segCfg),
		Fuser:    fusion.New(fusionCfg, tax.Level),
		Resolver: entity.NewResolver(nil, tax, discard()),
		Logger:   discard(),
		Now:      func() time.Time { return epoch },
	}

	h := &harness{
		results: classifications.NewMemoryStore(pageCfg),
		edges:   graph.NewMemoryStore(),
		ledger:  reports.NewMemoryLedger(),
		metrics: pipeline.NewMetrics(prometheus.NewRegistry()),
	}
	if results == nil {
		results = h.results
	}

	mat := graph.NewMaterializer(h.edges, graphCfg, nil, discard()).WithClock(func() time.Time { return epoch })
	h.pipeline = pipeline.New(rt, results, mat, h.ledger, cfg, discard()).
		WithMetrics(h.metrics).
		WithClock(func() time.Time { return epoch })
	return h
}

func insight(target string) companies.Insight {
	return companies.Insight{
		Report: reports.Report{
			Broker: "한빛증권",
			Date:   epoch,
			Title:  "메모리 업황 점검",
			Body:   "DRAM 가격 반등이 실적을 견인",
		},
		Relations: []companies.Relation{{
			Relation:  graph.RelationDrivenBy,
			Target:    target,
			Alignment: graph.AlignmentAligned,
			Weight:    0.8,
			Rationale: "가격 민감도",
		}},
	}
}

func batch() []companies.Company {
	return []companies.Company{
		{
			ID:       "A",
			Name:     "알파전자",
			Segments: map[string]float64{"반도체제조": 80, "부동산임대": 20},
			Insights: []companies.Insight{insight("DRAM_PRICE")},
		},
		{
			ID:          "S",
			Name:        "한빛스팩1호",
			Description: "기업인수목적회사로서 합병대상 법인을 탐색하고 있습니다",
		},
		{
			ID:       "H",
			Name:     "베타테크",
			Segments: map[string]float64{"반도체": 30, "소프트웨어": 28, "기타": 42},
		},
	}
}

func TestRunClassifiesAndMaterializes(t *testing.T) {
	h := newHarness(t, nil)

	report, err := h.pipeline.Run(context.Background(), batch())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Companies)
	assert.Equal(t, 2, report.Outcomes[pipeline.OutcomeClassified])
	assert.Equal(t, 1, report.Outcomes[pipeline.OutcomeHold])
	assert.Empty(t, report.Failures)
	assert.False(t, report.Cancelled)
	assert.Equal(t, taxonomytest.Version, report.TaxonomyVersion)

	// A sector, S sector and entity type, A's insight relation.
	assert.Equal(t, 4, report.Edges[graph.OutcomeInserted])
	assert.Equal(t, 2, report.Relations[graph.RelationBelongsToSector])
	assert.Equal(t, 1, report.Relations[graph.RelationHasEntityType])
	assert.Equal(t, 1, report.Relations[graph.RelationDrivenBy])
	assert.Equal(t, 1, report.Insights.New)
	assert.Equal(t, 4, h.edges.Len())
	assert.Equal(t, 3, h.results.Len())
	assert.Equal(t, 1, h.ledger.Len())

	assert.Equal(t, 2.0, testutil.ToFloat64(h.metrics.Companies.WithLabelValues("CLASSIFIED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Companies.WithLabelValues("HOLD")))
}

func TestRunIsIdempotent(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.pipeline.Run(ctx, batch())
	require.NoError(t, err)
	first, err := h.results.Find(ctx, "A", taxonomytest.Version)
	require.NoError(t, err)

	report, err := h.pipeline.Run(ctx, batch())
	require.NoError(t, err)

	assert.Equal(t, 3, report.Outcomes[pipeline.OutcomeUnchanged])
	assert.Equal(t, 3, report.Edges[graph.OutcomeNoop])
	assert.Zero(t, report.Edges[graph.OutcomeInserted])
	assert.Empty(t, report.Relations)
	assert.Equal(t, 1, report.Insights.Seen)
	assert.Zero(t, report.Insights.New)
	assert.Equal(t, 4, h.edges.Len())

	second, err := h.results.Find(ctx, "A", taxonomytest.Version)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.InputHash, second.InputHash)
	assert.Equal(t, first.Codes, second.Codes)
}

func TestRunRecomputesChangedInput(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.pipeline.Run(ctx, batch())
	require.NoError(t, err)

	changed := batch()
	changed[2].Segments = map[string]float64{"소프트웨어": 90, "반도체": 10}

	report, err := h.pipeline.Run(ctx, changed)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Outcomes[pipeline.OutcomeUnchanged])
	assert.Equal(t, 1, report.Outcomes[pipeline.OutcomeClassified])

	r, err := h.results.Find(ctx, "H", taxonomytest.Version)
	require.NoError(t, err)
	assert.Equal(t, classifications.StatusClassified, r.Status)
	assert.Equal(t, "SW", r.Codes.Deepest())
}

type failingResults struct {
	*classifications.MemoryStore
	failFor string
}

func (s failingResults) Save(ctx context.Context, r *classifications.Result) error {
	if r.CompanyID == s.failFor {
		return errors.New("serialization failure")
	}
	return s.MemoryStore.Save(ctx, r)
}

func TestRunIsolatesFailures(t *testing.T) {
	var pageCfg pagination.Config
	require.NoError(t, pageCfg.Finalize(nil))
	store := failingResults{MemoryStore: classifications.NewMemoryStore(pageCfg), failFor: "A"}
	h := newHarness(t, store)

	cs := append(batch(), companies.Company{ID: "X"})
	report, err := h.pipeline.Run(context.Background(), cs)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Outcomes[pipeline.OutcomeFailed])
	assert.Equal(t, 1, report.Outcomes[pipeline.OutcomeClassified])
	assert.Equal(t, 1, report.Outcomes[pipeline.OutcomeHold])
	assert.True(t, report.Failed())

	phases := make(map[string]pipeline.Phase)
	for _, f := range report.Failures {
		phases[f.CompanyID] = f.Phase
	}
	assert.Equal(t, pipeline.PhasePersist, phases["A"])
	assert.Equal(t, pipeline.PhaseValidate, phases["X"])

	_, err = store.Find(context.Background(), "A", taxonomytest.Version)
	assert.ErrorIs(t, err, classifications.ErrNotFound)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.Failures.WithLabelValues("persist")))
}

func TestRunSkipsInsightsOfInvalidCompanies(t *testing.T) {
	h := newHarness(t, nil)
	cs := []companies.Company{{ID: "X", Insights: []companies.Insight{insight("DRAM_PRICE")}}}

	report, err := h.pipeline.Run(context.Background(), cs)
	require.NoError(t, err)

	require.Len(t, report.Failures, 1)
	assert.Equal(t, pipeline.PhaseValidate, report.Failures[0].Phase)
	assert.Zero(t, report.Insights.New)
	assert.Zero(t, report.Relations[graph.RelationDrivenBy])
	assert.Zero(t, h.ledger.Len())
	assert.Zero(t, h.edges.Len())
}

func TestRunCancelledBeforeStart(t *testing.T) {
	h := newHarness(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := h.pipeline.Run(ctx, batch())
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)

	assert.True(t, report.Cancelled)
	assert.Equal(t, 3, report.Outcomes[pipeline.OutcomeSkipped])
	assert.Zero(t, h.results.Len())
	assert.Zero(t, h.edges.Len())
	assert.Zero(t, h.ledger.Len())
}

func TestRunSharesReportAcrossCompanies(t *testing.T) {
	h := newHarness(t, nil)
	cs := batch()
	cs[2].Insights = []companies.Insight{insight("HBM_DEMAND")}

	report, err := h.pipeline.Run(context.Background(), cs)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Insights.New)
	assert.Equal(t, 2, report.Relations[graph.RelationDrivenBy])
	assert.Equal(t, 1, h.ledger.Len())
}

func TestRunArchivesReport(t *testing.T) {
	h := newHarness(t, nil)
	blobs := storagetest.New(nil)
	h.pipeline.WithArchive(blobs)

	report, err := h.pipeline.Run(context.Background(), batch())
	require.NoError(t, err)

	want := "reports/" + report.RunID.String() + ".json"
	assert.Equal(t, want, report.Archive)

	data, ok := blobs.Blob(want)
	require.True(t, ok)

	var archived struct {
		RunID    string         `json:"run_id"`
		Outcomes map[string]int `json:"outcomes"`
	}
	require.NoError(t, json.Unmarshal(data, &archived))
	assert.Equal(t, report.RunID.String(), archived.RunID)
	assert.Equal(t, 2, archived.Outcomes["CLASSIFIED"])
}

func TestRunSurvivesArchiveFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.pipeline.WithArchive(&storagetest.Memory{Err: errors.New("container missing")})

	report, err := h.pipeline.Run(context.Background(), batch())
	require.NoError(t, err)
	assert.Empty(t, report.Archive)
}

func TestObservations(t *testing.T) {
	codes := taxonomy.Codes{L1: "TECH", L2: "SEMI"}
	base := classifications.Result{
		CompanyID:    "A",
		InputHash:    "abc",
		Status:       classifications.StatusClassified,
		Method:       fusion.MethodRule,
		Codes:        &codes,
		Confidence:   0.9,
		Entity:       entity.Detection{Type: entity.TypeOperating},
		ClassifiedAt: epoch,
	}

	tests := []struct {
		name      string
		mutate    func(r *classifications.Result)
		relations []graph.Relation
		alignment graph.Alignment
	}{
		{
			name:      "aligned sector edge",
			mutate:    func(*classifications.Result) {},
			relations: []graph.Relation{graph.RelationBelongsToSector},
			alignment: graph.AlignmentAligned,
		},
		{
			name:      "resolved conflict is partial",
			mutate:    func(r *classifications.Result) { r.ConflictResolved = true },
			relations: []graph.Relation{graph.RelationBelongsToSector},
			alignment: graph.AlignmentPartial,
		},
		{
			name: "override replacing the fused code conflicts",
			mutate: func(r *classifications.Result) {
				r.ConflictResolved = true
				r.Override = &entity.Override{RuleID: "r1", Code: "SEMI", Replaced: "SW"}
			},
			relations: []graph.Relation{graph.RelationBelongsToSector},
			alignment: graph.AlignmentConflict,
		},
		{
			name: "non-operating entity adds an entity edge",
			mutate: func(r *classifications.Result) {
				r.Entity = entity.Detection{Type: entity.TypeREIT, Score: 0.75}
			},
			relations: []graph.Relation{graph.RelationBelongsToSector, graph.RelationHasEntityType},
			alignment: graph.AlignmentAligned,
		},
		{
			name: "hold yields no sector edge",
			mutate: func(r *classifications.Result) {
				r.Status = classifications.StatusHold
				r.Codes = nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base
			tt.mutate(&r)

			obs := pipeline.Observations(&r)
			var got []graph.Relation
			for _, o := range obs {
				require.NoError(t, o.Validate())
				assert.Equal(t, "classification:abc", o.SourceID)
				got = append(got, o.Relation)
			}
			assert.Equal(t, tt.relations, got)
			if len(obs) > 0 {
				assert.Equal(t, tt.alignment, obs[0].Alignment)
			}
		})
	}
}

func TestConfigFinalize(t *testing.T) {
	t.Setenv("FINPUT_TEST_WORKERS", "9")
	cfg := pipeline.Config{ReportPrefix: "/archive/runs/"}
	require.NoError(t, cfg.Finalize(&pipeline.Env{Workers: "FINPUT_TEST_WORKERS"}))

	assert.Equal(t, 9, cfg.Workers)
	assert.Equal(t, "archive/runs/abc.json", cfg.ReportKey("abc"))

	bad := pipeline.Config{Workers: -1}
	assert.Error(t, bad.Finalize(nil))
}

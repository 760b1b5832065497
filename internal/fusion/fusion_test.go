package fusion_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/fusion"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/signal"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/taxonomy/taxonomytest"
)

func defaults(t *testing.T) fusion.Config {
	t.Helper()
	var cfg fusion.Config
	require.NoError(t, cfg.Finalize())
	return cfg
}

func ptr[T any](v T) *T { return &v }

func newFuser(t *testing.T) *fusion.Fuser {
	t.Helper()
	return fusion.New(defaults(t), taxonomytest.New(t).Level)
}

func rule(scores map[string]float64) fusion.Signal {
	return fusion.Signal{Stage: signal.StageSegment, Scores: scores}
}

func emb(scores map[string]float64) fusion.Signal {
	return fusion.Signal{Stage: signal.StageRerank, Scores: scores}
}

func llm(scores map[string]float64) fusion.Signal {
	return fusion.Signal{Stage: signal.StageLLM, Scores: scores}
}

func TestWeightsSumToOne(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("weights sum to 1 after capping", prop.ForAll(
		func(r, e, sq, temp, llmCap float64) bool {
			w := fusion.ComputeWeights(r, e, sq, temp, llmCap)
			return math.Abs(w.Sum()-1) <= 1e-6
		},
		gen.Float64Range(-0.5, 1.5),
		gen.Float64Range(-0.5, 1.5),
		gen.Float64Range(-0.5, 1.5),
		gen.Float64Range(0.01, 5),
		gen.Float64Range(0, 1),
	))

	properties.Property("llm weight never exceeds the cap", prop.ForAll(
		func(r, e, sq, llmCap float64) bool {
			w := fusion.ComputeWeights(r, e, sq, 0.5, llmCap)
			return w.LLM <= llmCap+1e-9 && w.Rule >= 0 && w.Embedding >= 0
		},
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
	))

	properties.Property("poorer structure never lowers the llm weight", prop.ForAll(
		func(r, e, sq float64) bool {
			better := fusion.ComputeWeights(r, e, sq, 0.5, 1)
			worse := fusion.ComputeWeights(r, e, sq/2, 0.5, 1)
			return worse.LLM >= better.LLM-1e-12
		},
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}

func TestComputeWeightsRedistributesCappedShare(t *testing.T) {
	w := fusion.ComputeWeights(0.5, 0.5, 0.5, 0.5, 0.25)

	assert.InDelta(t, 0.25, w.LLM, 1e-12)
	assert.InDelta(t, 0.375, w.Rule, 1e-12)
	assert.InDelta(t, 0.375, w.Embedding, 1e-12)
}

func TestComputeWeightsDegenerateInputs(t *testing.T) {
	w := fusion.ComputeWeights(math.NaN(), 2, -1, 0, 0.25)
	assert.InDelta(t, 1, w.Sum(), 1e-9)
	assert.False(t, math.IsNaN(w.Rule))
}

func TestFuseAgreeingSignals(t *testing.T) {
	f := newFuser(t)

	d := f.Fuse(
		rule(map[string]float64{"SEMI": 0.6}),
		emb(map[string]float64{"SEMI": 0.7, "SW": 0.5}),
		fusion.Signal{Stage: signal.StageLLM},
		1,
	)

	assert.Equal(t, "SEMI", d.Code)
	assert.Greater(t, d.Confidence, 0.6)
	assert.Less(t, d.Confidence, 0.7)
	assert.Equal(t, fusion.MethodEmbedding, d.Method)
	assert.False(t, d.ConflictResolved)
	assert.InDelta(t, 1, d.Weights.Sum(), 1e-9)
}

func TestFuseResolvesConflict(t *testing.T) {
	f := newFuser(t)

	d := f.Fuse(
		rule(map[string]float64{"SEMI": 0.8}),
		emb(map[string]float64{"SW": 0.75}),
		fusion.Signal{Stage: signal.StageLLM},
		0.5,
	)

	assert.Equal(t, "SEMI", d.Code)
	assert.Equal(t, fusion.MethodRule, d.Method)
	assert.True(t, d.ConflictResolved)
	assert.Equal(t, []string{"SEMI", "SW"}, d.ConflictCodes)
	assert.Equal(t, "SW", d.Secondary, "runner-up clears secondary_min")
}

func TestFuseTieBreaks(t *testing.T) {
	f := newFuser(t)

	t.Run("deeper level wins", func(t *testing.T) {
		d := f.Fuse(rule(map[string]float64{"SEMI": 0.5, "SEMI_MEM": 0.5}), fusion.Signal{}, fusion.Signal{}, 1)
		assert.Equal(t, "SEMI_MEM", d.Code)
		assert.True(t, d.Contested)
	})

	t.Run("later stage wins at equal level", func(t *testing.T) {
		d := f.Fuse(
			rule(map[string]float64{"SEMI": 0.6}),
			emb(map[string]float64{"SW": 0.6}),
			fusion.Signal{},
			1,
		)
		assert.Equal(t, "SW", d.Code)
		assert.Equal(t, fusion.MethodEmbedding, d.Method)
	})
}

func TestFuseWithLLMSignal(t *testing.T) {
	f := newFuser(t)
	r := rule(map[string]float64{"SEMI": 0.4})
	e := emb(map[string]float64{"SW": 0.42})

	before := f.Fuse(r, e, fusion.Signal{}, 0.1)
	after := f.Fuse(r, e, llm(map[string]float64{"SEMI": 0.9}), 0.1)

	assert.Equal(t, "SW", before.Code)
	assert.Equal(t, "SEMI", after.Code)
	assert.Greater(t, after.Confidence, before.Confidence)
	assert.LessOrEqual(t, after.Weights.LLM, 0.25+1e-12)
}

func TestFuseNoSignals(t *testing.T) {
	d := newFuser(t).Fuse(fusion.Signal{}, fusion.Signal{}, fusion.Signal{}, 0)
	assert.True(t, d.Empty())
	assert.InDelta(t, 1, d.Weights.Sum(), 1e-9)
}

func TestFusedConfidenceBounded(t *testing.T) {
	f := newFuser(t)
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("fused confidence stays within [0,1]", prop.ForAll(
		func(a, b, c, sq float64) bool {
			d := f.Fuse(
				rule(map[string]float64{"SEMI": a}),
				emb(map[string]float64{"SW": b, "SEMI": c}),
				fusion.Signal{},
				sq,
			)
			return d.Confidence >= 0 && d.Confidence <= 1
		},
		gen.Float64Range(-1, 2),
		gen.Float64Range(-1, 2),
		gen.Float64Range(-1, 2),
		gen.Float64Range(0, 1),
	))

	properties.TestingRun(t)
}

func TestAccept(t *testing.T) {
	f := newFuser(t)

	d := f.Accept(
		rule(map[string]float64{"SEMI": 0.9, "REDEV": 0.2}),
		emb(map[string]float64{"SW": 0.5}),
	)

	assert.Equal(t, "SEMI", d.Code)
	assert.InDelta(t, 0.9, d.Confidence, 1e-12)
	assert.Equal(t, fusion.MethodRule, d.Method)
	assert.Empty(t, d.Secondary, "0.2 is below secondary_min")
	assert.InDelta(t, 0.7, d.Margin, 1e-12)
	assert.True(t, d.ConflictResolved)

	assert.True(t, f.Accept(rule(nil)).Empty())
}

func TestBand(t *testing.T) {
	cfg := defaults(t)

	assert.Equal(t, fusion.BandHigh, cfg.Band(0.9))
	assert.Equal(t, fusion.BandHigh, cfg.Band(0.8))
	assert.Equal(t, fusion.BandMedium, cfg.Band(0.7))
	assert.Equal(t, fusion.BandLow, cfg.Band(0.5))
}

func TestMethodFor(t *testing.T) {
	assert.Equal(t, fusion.MethodRule, fusion.MethodFor(signal.StageExternal))
	assert.Equal(t, fusion.MethodRule, fusion.MethodFor(signal.StageSegment))
	assert.Equal(t, fusion.MethodEmbedding, fusion.MethodFor(signal.StageEmbedding))
	assert.Equal(t, fusion.MethodEmbedding, fusion.MethodFor(signal.StageRerank))
	assert.Equal(t, fusion.MethodLLM, fusion.MethodFor(signal.StageLLM))
	assert.Equal(t, fusion.MethodOverride, fusion.MethodFor(signal.StageOverride))
}

func TestClosedEnums(t *testing.T) {
	var m fusion.Method
	require.NoError(t, json.Unmarshal([]byte(`"LLM_FALLBACK"`), &m))
	assert.Equal(t, fusion.MethodLLM, m)
	assert.Error(t, json.Unmarshal([]byte(`"GUESS"`), &m))

	var b fusion.Band
	assert.Error(t, json.Unmarshal([]byte(`"VERY_HIGH"`), &b))
}

func TestStructureQuality(t *testing.T) {
	assert.InDelta(t, 1.0, fusion.StructureQuality(1, 400, 400), 1e-12)
	assert.InDelta(t, 0.6+0.4*0.25, fusion.StructureQuality(1, 100, 400), 1e-12)
	assert.InDelta(t, 0.4, fusion.StructureQuality(0, 1000, 400), 1e-12)
}

func TestConfigFinalize(t *testing.T) {
	cfg := defaults(t)
	assert.Equal(t, 0.25, *cfg.LLMCap)
	assert.Equal(t, 20, *cfg.MinTextRunes)
	assert.Equal(t, 0.05, *cfg.AmbiguityMargin)

	bad := fusion.Config{High: 0.5, Medium: 0.7}
	assert.Error(t, bad.Finalize())

	bad = fusion.Config{LLMCap: ptr(1.5)}
	assert.Error(t, bad.Finalize())

	cfg.Merge(&fusion.Config{RuleMin: 0.9})
	assert.Equal(t, 0.9, cfg.RuleMin)
	assert.Equal(t, 0.75, cfg.EmbeddingMin)
	assert.Equal(t, 0.25, *cfg.LLMCap, "unset pointer fields are not merged")
}

func TestConfigKeepsExplicitZero(t *testing.T) {
	cfg := fusion.Config{LLMCap: ptr(0.0), AmbiguityMargin: ptr(0.0), SecondaryMin: ptr(0.0), MinTextRunes: ptr(0)}
	require.NoError(t, cfg.Finalize())
	assert.Zero(t, *cfg.LLMCap)
	assert.Zero(t, *cfg.AmbiguityMargin)
	assert.Zero(t, *cfg.SecondaryMin)
	assert.Zero(t, *cfg.MinTextRunes)

	merged := defaults(t)
	merged.Merge(&fusion.Config{LLMCap: ptr(0.0)})
	assert.Zero(t, *merged.LLMCap)

	w := fusion.New(cfg, nil).Weights(rule(map[string]float64{"SEMI": 0.4}), emb(map[string]float64{"SEMI": 0.4}), 1)
	assert.Zero(t, w.LLM)
	assert.InDelta(t, 1.0, w.Sum(), 1e-9)
}

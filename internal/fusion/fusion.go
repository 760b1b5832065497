// Package fusion combines the rule, embedding and LLM signals into one sector
// decision. Signal weights come from a temperature-scaled softmax over the
// signals' own confidences and the evidence's structure quality, so weight
// migrates smoothly as any signal's reliability changes.
package fusion

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/signal"
)

// Method tags how a result's code was chosen.
type Method string

const (
	MethodRule          Method = "RULE"
	MethodEmbedding     Method = "EMBEDDING"
	MethodLLM           Method = "LLM_FALLBACK"
	MethodOverride      Method = "OVERRIDE"
	MethodHold          Method = "HOLD"
	MethodNotClassified Method = "NOT_CLASSIFIED"
)

var methods = []Method{
	MethodRule,
	MethodEmbedding,
	MethodLLM,
	MethodOverride,
	MethodHold,
	MethodNotClassified,
}

// UnmarshalJSON rejects unknown methods.
func (m *Method) UnmarshalJSON(data []byte) error {
	return unmarshalClosed(data, methods, m)
}

// MethodFor maps the stage that produced a winning signal to its method tag.
func MethodFor(stage signal.Stage) Method {
	switch stage {
	case signal.StageExternal, signal.StageSegment:
		return MethodRule
	case signal.StageEmbedding, signal.StageRerank:
		return MethodEmbedding
	case signal.StageLLM:
		return MethodLLM
	case signal.StageOverride:
		return MethodOverride
	}
	return MethodHold
}

// Band is a coarse confidence grade.
type Band string

const (
	BandHigh   Band = "HIGH"
	BandMedium Band = "MEDIUM"
	BandLow    Band = "LOW"
	// BandHold grades results that carry no decision.
	BandHold Band = "HOLD"
)

var bands = []Band{BandHigh, BandMedium, BandLow, BandHold}

// UnmarshalJSON rejects unknown bands.
func (b *Band) UnmarshalJSON(data []byte) error {
	return unmarshalClosed(data, bands, b)
}

// Band grades a confidence against the configured cut points.
func (c Config) Band(confidence float64) Band {
	switch {
	case confidence >= c.High:
		return BandHigh
	case confidence >= c.Medium:
		return BandMedium
	default:
		return BandLow
	}
}

// Signal is one stage's per-code scores in [0,1].
type Signal struct {
	Stage  signal.Stage       `json:"stage"`
	Scores map[string]float64 `json:"scores,omitempty"`
}

// Available reports whether the signal carries any score.
func (s Signal) Available() bool {
	return len(s.Scores) > 0
}

// Top returns the best code and its score. Equal scores resolve to the
// lexically smaller code.
func (s Signal) Top() (string, float64) {
	var code string
	best := -1.0
	for c, v := range s.Scores {
		if v > best || (v == best && c < code) {
			code, best = c, v
		}
	}
	if code == "" {
		return "", 0
	}
	return code, unit(best)
}

// Ranked returns the codes of s by score, best first.
func (s Signal) Ranked() []string {
	codes := make([]string, 0, len(s.Scores))
	for c := range s.Scores {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool {
		a, b := s.Scores[codes[i]], s.Scores[codes[j]]
		if a != b {
			return a > b
		}
		return codes[i] < codes[j]
	})
	return codes
}

// Decision is the outcome of fusing or accepting signals.
type Decision struct {
	Code             string             `json:"code,omitempty"`
	Confidence       float64            `json:"confidence"`
	Secondary        string             `json:"secondary,omitempty"`
	Method           Method             `json:"method,omitempty"`
	Weights          Weights            `json:"weights"`
	Scores           map[string]float64 `json:"scores,omitempty"`
	Margin           float64            `json:"margin"`
	Contested        bool               `json:"contested"`
	ConflictResolved bool               `json:"conflict_resolved"`
	ConflictCodes    []string           `json:"conflict_codes,omitempty"`
}

// Empty reports whether no code was chosen.
func (d Decision) Empty() bool {
	return d.Code == ""
}

// Fuser applies the fusion policy.
type Fuser struct {
	cfg   Config
	level func(code string) int
}

// New creates a Fuser. level returns a code's taxonomy depth and breaks ties
// in favour of more specific codes.
func New(cfg Config, level func(code string) int) *Fuser {
	if level == nil {
		level = func(string) int { return 0 }
	}
	cfg.loadDefaults()
	return &Fuser{cfg: cfg, level: level}
}

// Config returns the fusion thresholds.
func (f *Fuser) Config() Config {
	return f.cfg
}

// Weights computes the dynamic signal weights from the rule and embedding
// confidences and the structure quality.
func (f *Fuser) Weights(rule, embedding Signal, structureQuality float64) Weights {
	_, r := rule.Top()
	_, e := embedding.Top()
	return ComputeWeights(r, e, structureQuality, f.cfg.Temperature, *f.cfg.LLMCap)
}

// Accept takes primary's top code as the decision without weighting, as when
// a stage clears its minimum and short-circuits the chain. Any other
// available signal whose top code differs is recorded as a resolved conflict.
func (f *Fuser) Accept(primary Signal, others ...Signal) Decision {
	code, score := primary.Top()
	if code == "" {
		return Decision{}
	}

	d := Decision{
		Code:       code,
		Confidence: score,
		Method:     MethodFor(primary.Stage),
		Scores:     clampScores(primary.Scores),
		Margin:     score,
	}

	ranked := primary.Ranked()
	if len(ranked) > 1 {
		runner := ranked[1]
		d.Margin = score - unit(primary.Scores[runner])
		if unit(primary.Scores[runner]) >= *f.cfg.SecondaryMin {
			d.Secondary = runner
		}
	}

	f.markConflicts(&d, append([]Signal{primary}, others...))
	return d
}

// Fuse weights every available signal and returns the code with the highest
// fused score. A code's fused score is the weighted mean of its scores over
// the available signals, so an unavailable signal never drags a code down.
func (f *Fuser) Fuse(rule, embedding, llm Signal, structureQuality float64) Decision {
	w := f.Weights(rule, embedding, structureQuality)
	weighted := []struct {
		s Signal
		w float64
	}{
		{rule, w.Rule},
		{embedding, w.Embedding},
		{llm, w.LLM},
	}

	fused := make(map[string]float64)
	latest := make(map[string]int)
	var denom float64
	var present []Signal
	for _, ws := range weighted {
		if !ws.s.Available() {
			continue
		}
		present = append(present, ws.s)
		denom += ws.w
		for code, score := range ws.s.Scores {
			fused[code] += ws.w * unit(score)
			if score > 0 {
				latest[code] = max(latest[code], ws.s.Stage.Order())
			}
		}
	}
	if denom == 0 {
		return Decision{Weights: w}
	}
	for code := range fused {
		fused[code] /= denom
	}

	ranked := make([]string, 0, len(fused))
	for code := range fused {
		ranked = append(ranked, code)
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if fused[a] != fused[b] {
			return fused[a] > fused[b]
		}
		if la, lb := f.level(a), f.level(b); la != lb {
			return la > lb
		}
		if latest[a] != latest[b] {
			return latest[a] > latest[b]
		}
		return a < b
	})

	winner := ranked[0]
	d := Decision{
		Code:       winner,
		Confidence: fused[winner],
		Weights:    w,
		Scores:     fused,
		Margin:     fused[winner],
	}
	if len(ranked) > 1 {
		runner := ranked[1]
		d.Margin = fused[winner] - fused[runner]
		d.Contested = d.Margin < *f.cfg.AmbiguityMargin
		if fused[runner] >= *f.cfg.SecondaryMin {
			d.Secondary = runner
		}
	}

	best := -1.0
	for _, ws := range weighted {
		if !ws.s.Available() {
			continue
		}
		contrib := ws.w * unit(ws.s.Scores[winner])
		if contrib >= best {
			best = contrib
			d.Method = MethodFor(ws.s.Stage)
		}
	}

	f.markConflicts(&d, present)
	return d
}

func (f *Fuser) markConflicts(d *Decision, signals []Signal) {
	var tops []string
	for _, s := range signals {
		if code, _ := s.Top(); code != "" {
			tops = append(tops, code)
		}
	}
	slices.Sort(tops)
	tops = slices.Compact(tops)
	if len(tops) > 1 {
		d.ConflictResolved = true
		d.ConflictCodes = tops
	}
}

func clampScores(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = unit(v)
	}
	return out
}

// StructureQuality scores how much usable structure the evidence carries:
// segment coverage weighted 0.6 and text richness weighted 0.4.
func StructureQuality(coverage float64, textRunes, richTextRunes int) float64 {
	richness := 1.0
	if richTextRunes > 0 {
		richness = math.Min(1, float64(textRunes)/float64(richTextRunes))
	}
	return 0.6*unit(coverage) + 0.4*richness
}

func unmarshalClosed[T ~string](data []byte, allowed []T, dst *T) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v := T(raw)
	if !slices.Contains(allowed, v) {
		return fmt.Errorf("unknown value %q", raw)
	}
	*dst = v
	return nil
}

package segments

import "math"

// How a keyword matched a label.
const (
	MatchedNormalized = "normalized"
	MatchedRaw        = "raw"
)

// Match records what happened to one segment row.
type Match struct {
	Label     string  `json:"label"`
	Percent   float64 `json:"percent"`
	Code      string  `json:"code,omitempty"`
	Keyword   string  `json:"keyword,omitempty"`
	MatchedBy string  `json:"matched_by,omitempty"`
	Neutral   bool    `json:"neutral,omitempty"`
}

// Audit is the explanation attached to every segment score. Percentages are
// revenue percentage points.
type Audit struct {
	Top1         string  `json:"top1,omitempty"`
	Top1Pct      float64 `json:"top1_pct"`
	Top2         string  `json:"top2,omitempty"`
	Top2Pct      float64 `json:"top2_pct"`
	Coverage     float64 `json:"coverage"`
	Margin       float64 `json:"margin"`
	Total        float64 `json:"total"`
	BonusApplied bool    `json:"bonus_applied"`
	Bonus        float64 `json:"bonus,omitempty"`
}

// Result is the outcome of scoring one segment table.
type Result struct {
	// Scores maps taxonomy codes to revenue fractions in [0,1].
	Scores     map[string]float64 `json:"scores"`
	Audit      Audit              `json:"audit"`
	Matches    []Match            `json:"matches"`
	NeutralPct float64            `json:"neutral_pct"`
	TotalPct   float64            `json:"total_pct"`
}

// Empty reports whether the table had no positive rows.
func (r Result) Empty() bool {
	return r.TotalPct == 0
}

// Mapped reports whether any row mapped to a taxonomy code.
func (r Result) Mapped() bool {
	return r.Audit.Top1 != ""
}

// Confidence is the top code's score plus the bonus when the margin gate
// opened, capped at 1.
func (r Result) Confidence() float64 {
	if !r.Mapped() {
		return 0
	}
	return math.Min(1, r.Scores[r.Audit.Top1]+r.Audit.Bonus)
}

// Boosted returns the scores with the bonus added to the top code, for fusion.
func (r Result) Boosted() map[string]float64 {
	out := make(map[string]float64, len(r.Scores))
	for code, s := range r.Scores {
		out[code] = s
	}
	if r.Mapped() {
		out[r.Audit.Top1] = r.Confidence()
	}
	return out
}

// HoldingRatio is the share of revenue from neutral holding-type segments.
func (r Result) HoldingRatio() float64 {
	if r.TotalPct == 0 {
		return 0
	}
	return r.NeutralPct / r.TotalPct
}

// CoverageRatio is the mapped share of revenue in [0,1].
func (r Result) CoverageRatio() float64 {
	if r.TotalPct == 0 {
		return 0
	}
	return math.Min(1, r.Audit.Coverage/r.TotalPct)
}

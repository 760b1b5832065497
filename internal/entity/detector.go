// Package entity detects a company's structural archetype (operating company,
// holding company, SPAC, REIT, trust) and applies the declarative override
// table that corrects known misclassifications.
package entity

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"

	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/segments"
)

// Type is a structural archetype, independent of sector.
type Type string

const (
	TypeOperating    Type = "OPERATING"
	TypeHoldingPure  Type = "HOLDING_PURE"
	TypeHoldingMixed Type = "HOLDING_MIXED"
	TypeSPAC         Type = "SPAC"
	TypeREIT         Type = "REIT"
	TypeTrust        Type = "TRUST"
)

var types = []Type{
	TypeOperating,
	TypeHoldingPure,
	TypeHoldingMixed,
	TypeSPAC,
	TypeREIT,
	TypeTrust,
}

// ParseType validates s as a known archetype.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !slices.Contains(types, t) {
		return "", fmt.Errorf("unknown entity type %q", s)
	}
	return t, nil
}

// UnmarshalJSON rejects unknown archetypes.
func (t *Type) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := ParseType(raw)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// UnmarshalYAML rejects unknown archetypes in override tables.
func (t *Type) UnmarshalYAML(unmarshal func(any) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	v, err := ParseType(raw)
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Holding reports whether t is a holding archetype.
func (t Type) Holding() bool {
	return t == TypeHoldingPure || t == TypeHoldingMixed
}

// Signal weights and revenue-composition cut points.
const (
	SuffixWeight  = 0.6
	KeywordWeight = 0.15
	KeywordCap    = 0.3
	Threshold     = 0.5
	PureRatio     = 0.7
	MixedRatio    = 0.3
)

type archetype struct {
	kind     Type
	suffix   *regexp.Regexp
	keywords []string
}

// Archetypes in priority order; the first of equally scored archetypes wins.
var archetypes = []archetype{
	{
		kind:     TypeSPAC,
		suffix:   regexp.MustCompile(`(?i)(스팩|spac|기업인수목적)\s*(제?\s*\d+\s*호)?(\s*\(주\))?$`),
		keywords: []string{"기업인수목적", "합병대상", "스팩", "blank check"},
	},
	{
		kind:     TypeREIT,
		suffix:   regexp.MustCompile(`(?i)(리츠|reit|부동산투자회사)(\s*\(주\))?$`),
		keywords: []string{"부동산투자회사", "리츠", "임대수익", "위탁관리"},
	},
	{
		kind:     TypeTrust,
		suffix:   regexp.MustCompile(`(?i)(신탁|trust)(\s*\(주\))?$`),
		keywords: []string{"신탁재산", "수익증권", "신탁보수"},
	},
	{
		kind:     TypeHoldingMixed,
		suffix:   regexp.MustCompile(`(?i)(홀딩스|지주|holdings?)(\s*\(주\))?$`),
		keywords: []string{"지주회사", "자회사", "지분법", "배당수익", "브랜드로열티"},
	},
}

// Detection is the detector's verdict with the signals that produced it.
type Detection struct {
	Type    Type     `json:"type"`
	Score   float64  `json:"score"`
	Signals []string `json:"signals,omitempty"`
}

// Detect scores every archetype from the name suffix, keyword co-occurrence
// in text and, for holding companies, the neutral revenue ratio. Archetypes
// below Threshold leave the company OPERATING.
func Detect(name, text string, seg segments.Result) Detection {
	name = strings.TrimSpace(name)
	lower := strings.ToLower(text)
	ratio := seg.HoldingRatio()

	best := Detection{Type: TypeOperating}
	for _, a := range archetypes {
		var score float64
		var signals []string

		if a.suffix.MatchString(name) {
			score += SuffixWeight
			signals = append(signals, "suffix:"+a.suffix.FindString(name))
		}

		var kw float64
		for _, k := range a.keywords {
			if strings.Contains(lower, strings.ToLower(k)) {
				kw += KeywordWeight
				signals = append(signals, "keyword:"+k)
			}
		}
		score += math.Min(KeywordCap, kw)

		kind := a.kind
		if kind.Holding() {
			switch {
			case ratio >= PureRatio:
				score += SuffixWeight
				kind = TypeHoldingPure
			case ratio >= MixedRatio:
				score += Threshold
			}
			if ratio > 0 {
				signals = append(signals, fmt.Sprintf("holding_ratio:%.2f", ratio))
			}
		}

		score = math.Min(1, score)
		if score >= Threshold && score > best.Score {
			best = Detection{Type: kind, Score: score, Signals: signals}
		}
	}
	return best
}

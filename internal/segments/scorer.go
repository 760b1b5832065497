// Package segments scores revenue-by-segment tables against the taxonomy's
// keyword dictionary. Each matched segment contributes its revenue share to
// the matched code; the audit record keeps the top two codes and the margin
// between them so a near tie never earns the confidence bonus.
package segments

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/taxonomy"
)

// exactMatchRunes is the keyword length below which only whole-label matches count.
const exactMatchRunes = 3

// Config holds the margin gate (percentage points) and the bonus it unlocks.
type Config struct {
	MarginGate float64 `toml:"margin_gate"`
	Bonus      float64 `toml:"bonus"`
}

// Dictionary is the reference data a Scorer matches against.
type Dictionary struct {
	Keywords map[string]string
	Synonyms map[string]string
	Neutral  []string
}

// FromTaxonomy extracts the scoring dictionary from a taxonomy version.
func FromTaxonomy(t *taxonomy.Taxonomy) Dictionary {
	return Dictionary{
		Keywords: t.SegmentKeywords(),
		Synonyms: t.Synonyms(),
		Neutral:  t.NeutralKeywords(),
	}
}

type keyword struct {
	norm  string
	raw   string
	code  string
	runes int
}

// Scorer maps segment tables to taxonomy scores. It is immutable after
// construction and safe for concurrent use.
type Scorer struct {
	norm     *Normalizer
	keywords []keyword
	neutral  []keyword
	cfg      Config
}

// New builds a Scorer. Keywords are ordered longest first so the most
// specific keyword wins.
func New(dict Dictionary, cfg Config) *Scorer {
	s := &Scorer{
		norm: NewNormalizer(dict.Synonyms),
		cfg:  cfg,
	}
	for k, code := range dict.Keywords {
		if kw, ok := s.keyword(k, code); ok {
			s.keywords = append(s.keywords, kw)
		}
	}
	for _, k := range dict.Neutral {
		if kw, ok := s.keyword(k, ""); ok {
			s.neutral = append(s.neutral, kw)
		}
	}
	longestFirst(s.keywords)
	longestFirst(s.neutral)
	return s
}

func (s *Scorer) keyword(k, code string) (keyword, bool) {
	n := s.norm.Normalize(k)
	if n == "" {
		return keyword{}, false
	}
	return keyword{norm: n, raw: raw(k), code: code, runes: len([]rune(n))}, true
}

func longestFirst(kws []keyword) {
	sort.Slice(kws, func(i, j int) bool {
		if kws[i].runes != kws[j].runes {
			return kws[i].runes > kws[j].runes
		}
		return kws[i].norm < kws[j].norm
	})
}

// Score evaluates a segment label to revenue percentage table. Entries with a
// non-positive percentage are ignored.
func (s *Scorer) Score(table map[string]float64) Result {
	labels := make([]string, 0, len(table))
	for label, pct := range table {
		if pct > 0 && !math.IsNaN(pct) && !math.IsInf(pct, 0) {
			labels = append(labels, label)
		}
	}
	slices.Sort(labels)

	res := Result{Scores: make(map[string]float64)}
	byCode := make(map[string]float64)

	for _, label := range labels {
		pct := table[label]
		res.TotalPct += pct

		m := Match{Label: label, Percent: pct}
		norm, rawLabel := s.norm.Normalize(label), raw(label)

		if kw, by, ok := match(s.neutral, norm, rawLabel); ok {
			m.Neutral, m.Keyword, m.MatchedBy = true, kw.raw, by
			res.NeutralPct += pct
		} else if kw, by, ok := match(s.keywords, norm, rawLabel); ok {
			m.Code, m.Keyword, m.MatchedBy = kw.code, kw.raw, by
			byCode[kw.code] += pct
		}
		res.Matches = append(res.Matches, m)
	}

	denom := math.Max(res.TotalPct, 100)
	for code, pct := range byCode {
		res.Scores[code] = pct / denom
		res.Audit.Coverage += pct
	}
	res.Audit.Total = res.TotalPct

	ranked := rank(byCode)
	if len(ranked) > 0 {
		res.Audit.Top1, res.Audit.Top1Pct = ranked[0], byCode[ranked[0]]
	}
	if len(ranked) > 1 {
		res.Audit.Top2, res.Audit.Top2Pct = ranked[1], byCode[ranked[1]]
	}
	res.Audit.Margin = res.Audit.Top1Pct - res.Audit.Top2Pct
	res.Audit.BonusApplied = res.Audit.Top1 != "" && res.Audit.Margin >= s.cfg.MarginGate
	if res.Audit.BonusApplied {
		res.Audit.Bonus = s.cfg.Bonus
	}

	return res
}

// match returns the first (longest) keyword that matches. Short keywords need
// an exact match on the normalized or the raw label; longer keywords match by
// containment, normalized text first.
func match(kws []keyword, norm, rawLabel string) (keyword, string, bool) {
	for _, kw := range kws {
		if kw.runes < exactMatchRunes {
			if norm == kw.norm {
				return kw, MatchedNormalized, true
			}
			if rawLabel == kw.raw {
				return kw, MatchedRaw, true
			}
			continue
		}
		if strings.Contains(norm, kw.norm) {
			return kw, MatchedNormalized, true
		}
		if strings.Contains(rawLabel, kw.raw) {
			return kw, MatchedRaw, true
		}
	}
	return keyword{}, "", false
}

func rank(byCode map[string]float64) []string {
	codes := make([]string, 0, len(byCode))
	for code := range byCode {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool {
		if byCode[codes[i]] != byCode[codes[j]] {
			return byCode[codes[i]] > byCode[codes[j]]
		}
		return codes[i] < codes[j]
	})
	return codes
}

// Finalize applies defaults and validation.
func (c *Config) Finalize() error {
	if c.MarginGate == 0 {
		c.MarginGate = 5
	}
	if c.Bonus == 0 {
		c.Bonus = 0.10
	}
	if c.MarginGate < 0 || c.MarginGate > 100 {
		return fmt.Errorf("margin_gate must be within [0,100]: %g", c.MarginGate)
	}
	if c.Bonus < 0 || c.Bonus > 1 {
		return fmt.Errorf("bonus must be within [0,1]: %g", c.Bonus)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.MarginGate != 0 {
		c.MarginGate = overlay.MarginGate
	}
	if overlay.Bonus != 0 {
		c.Bonus = overlay.Bonus
	}
}

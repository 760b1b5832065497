// Package companies is the input model of the pipeline: companies with their
// free text, revenue-by-segment table and attached insight reports, read from
// a JSON Lines feed produced by the ingestion collaborator.
package companies

import (
	"strings"
	"unicode/utf8"

	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/graph"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/reports"
	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/fingerprint"
)

// Company is read-only input to classification.
type Company struct {
	ID           string             `json:"id" validate:"required"`
	Name         string             `json:"name" validate:"required"`
	IndustryCode string             `json:"industry_code,omitempty"`
	Description  string             `json:"description,omitempty"`
	Products     []string           `json:"products,omitempty"`
	Keywords     []string           `json:"keywords,omitempty"`
	Segments     map[string]float64 `json:"segments,omitempty"`
	Insights     []Insight          `json:"insights,omitempty" validate:"dive"`
}

// Insight is a broker report about the company with the relations already
// extracted from it.
type Insight struct {
	reports.Report
	Relations []Relation `json:"relations,omitempty" validate:"dive"`
}

// Relation is one extracted fact: the company relates to Target.
type Relation struct {
	Relation  graph.Relation  `json:"relation" validate:"required"`
	Target    string          `json:"target" validate:"required"`
	Alignment graph.Alignment `json:"alignment" validate:"required"`
	Weight    float64         `json:"weight" validate:"gte=0,lte=1"`
	Rationale string          `json:"rationale,omitempty"`
}

// Text is the free-text blob used by the embedding stages: description,
// then products, then keywords.
func (c Company) Text() string {
	var parts []string
	if d := strings.TrimSpace(c.Description); d != "" {
		parts = append(parts, d)
	}
	if p := joinNonEmpty(c.Products); p != "" {
		parts = append(parts, p)
	}
	if k := joinNonEmpty(c.Keywords); k != "" {
		parts = append(parts, k)
	}
	return strings.Join(parts, "\n")
}

// TextRunes is the length of Text in runes.
func (c Company) TextRunes() int {
	return utf8.RuneCountInString(c.Text())
}

// PositiveSegments returns the segment entries with a positive share.
func (c Company) PositiveSegments() map[string]float64 {
	out := make(map[string]float64, len(c.Segments))
	for label, pct := range c.Segments {
		if pct > 0 && strings.TrimSpace(label) != "" {
			out[label] = pct
		}
	}
	return out
}

// Empty reports whether the company carries no usable input at all.
func (c Company) Empty() bool {
	return strings.TrimSpace(c.Text()) == "" &&
		len(c.PositiveSegments()) == 0 &&
		strings.TrimSpace(c.IndustryCode) == ""
}

// Hash is the content hash that decides whether a stored classification is
// still current for taxonomy version.
func (c Company) Hash(version string) string {
	return fingerprint.MustDigest(struct {
		Version  string             `json:"version"`
		Name     string             `json:"name"`
		Industry string             `json:"industry"`
		Text     string             `json:"text"`
		Segments map[string]float64 `json:"segments"`
	}{
		Version:  version,
		Name:     strings.TrimSpace(c.Name),
		Industry: strings.TrimSpace(c.IndustryCode),
		Text:     c.Text(),
		Segments: c.PositiveSegments(),
	})
}

func joinNonEmpty(items []string) string {
	kept := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, ", ")
}

package fusion

import (
	"fmt"
)

// Config holds the fusion thresholds. Every value is tunable; the defaults
// reproduce the calibrated production values. Thresholds for which zero is a
// meaningful setting are pointers so an explicit zero survives defaulting.
type Config struct {
	Temperature        float64  `toml:"temperature"`
	LLMCap             *float64 `toml:"llm_cap"`
	ExternalConfidence float64 `toml:"external_confidence"`
	ExternalMin        float64 `toml:"external_min"`
	RuleMin            float64 `toml:"rule_min"`
	EmbeddingMin       float64 `toml:"embedding_min"`
	FusionMin          float64 `toml:"fusion_min"`
	MinConfidence      float64 `toml:"min_confidence"`
	High               float64 `toml:"high"`
	Medium             float64 `toml:"medium"`
	AmbiguityMargin    *float64 `toml:"ambiguity_margin"`
	SecondaryMin       *float64 `toml:"secondary_min"`
	MinTextRunes       *int     `toml:"min_text_runes"`
	RichTextRunes      int     `toml:"rich_text_runes"`
	OverrideConfidence float64 `toml:"override_confidence"`
}

// Finalize applies defaults and validation.
func (c *Config) Finalize() error {
	c.loadDefaults()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay. Pointer fields are
// overwritten whenever the overlay sets them, zero included.
func (c *Config) Merge(overlay *Config) {
	mergeFloat := func(dst *float64, v float64) {
		if v != 0 {
			*dst = v
		}
	}
	mergeFloat(&c.Temperature, overlay.Temperature)
	mergeSet(&c.LLMCap, overlay.LLMCap)
	mergeFloat(&c.ExternalConfidence, overlay.ExternalConfidence)
	mergeFloat(&c.ExternalMin, overlay.ExternalMin)
	mergeFloat(&c.RuleMin, overlay.RuleMin)
	mergeFloat(&c.EmbeddingMin, overlay.EmbeddingMin)
	mergeFloat(&c.FusionMin, overlay.FusionMin)
	mergeFloat(&c.MinConfidence, overlay.MinConfidence)
	mergeFloat(&c.High, overlay.High)
	mergeFloat(&c.Medium, overlay.Medium)
	mergeSet(&c.AmbiguityMargin, overlay.AmbiguityMargin)
	mergeSet(&c.SecondaryMin, overlay.SecondaryMin)
	mergeFloat(&c.OverrideConfidence, overlay.OverrideConfidence)
	mergeSet(&c.MinTextRunes, overlay.MinTextRunes)
	if overlay.RichTextRunes != 0 {
		c.RichTextRunes = overlay.RichTextRunes
	}
}

func (c *Config) loadDefaults() {
	setFloat := func(dst *float64, v float64) {
		if *dst == 0 {
			*dst = v
		}
	}
	setFloat(&c.Temperature, 0.5)
	setDefault(&c.LLMCap, 0.25)
	setFloat(&c.ExternalConfidence, 0.45)
	setFloat(&c.ExternalMin, 0.85)
	setFloat(&c.RuleMin, 0.70)
	setFloat(&c.EmbeddingMin, 0.75)
	setFloat(&c.FusionMin, 0.60)
	setFloat(&c.MinConfidence, 0.50)
	setFloat(&c.High, 0.80)
	setFloat(&c.Medium, 0.65)
	setDefault(&c.AmbiguityMargin, 0.05)
	setDefault(&c.SecondaryMin, 0.30)
	setFloat(&c.OverrideConfidence, 1.0)
	setDefault(&c.MinTextRunes, 20)
	if c.RichTextRunes == 0 {
		c.RichTextRunes = 400
	}
}

func (c *Config) validate() error {
	if c.Temperature <= 0 {
		return fmt.Errorf("temperature must be positive")
	}
	for name, v := range map[string]float64{
		"llm_cap":             *c.LLMCap,
		"external_confidence": c.ExternalConfidence,
		"external_min":        c.ExternalMin,
		"rule_min":            c.RuleMin,
		"embedding_min":       c.EmbeddingMin,
		"fusion_min":          c.FusionMin,
		"min_confidence":      c.MinConfidence,
		"high":                c.High,
		"medium":              c.Medium,
		"ambiguity_margin":    *c.AmbiguityMargin,
		"secondary_min":       *c.SecondaryMin,
		"override_confidence": c.OverrideConfidence,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0,1]: %g", name, v)
		}
	}
	if c.Medium > c.High {
		return fmt.Errorf("medium cannot exceed high")
	}
	if *c.MinTextRunes < 0 || c.RichTextRunes < 1 {
		return fmt.Errorf("text rune thresholds must be positive")
	}
	return nil
}

func setDefault[T any](dst **T, v T) {
	if *dst == nil {
		*dst = &v
	}
}

func mergeSet[T any](dst **T, v *T) {
	if v != nil {
		cp := *v
		*dst = &cp
	}
}

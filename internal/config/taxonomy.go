package config

import (
	"fmt"
	"os"
)

const (
	EnvTaxonomyVersion = "FINPUT_TAXONOMY_VERSION"
	EnvTaxonomySource  = "FINPUT_TAXONOMY_SOURCE"
	EnvTaxonomyDir     = "FINPUT_TAXONOMY_DIR"
	EnvOverrides       = "FINPUT_OVERRIDES"
)

// Taxonomy reference data sources.
const (
	SourceDir  = "dir"
	SourceBlob = "blob"
)

// TaxonomyConfig selects the taxonomy version and where its reference data
// is read from. Overrides names the hard override table; with the blob
// source it is a storage key.
type TaxonomyConfig struct {
	Version   string `toml:"version"`
	Source    string `toml:"source"`
	Dir       string `toml:"dir"`
	Overrides string `toml:"overrides"`
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *TaxonomyConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *TaxonomyConfig) Merge(overlay *TaxonomyConfig) {
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	if overlay.Source != "" {
		c.Source = overlay.Source
	}
	if overlay.Dir != "" {
		c.Dir = overlay.Dir
	}
	if overlay.Overrides != "" {
		c.Overrides = overlay.Overrides
	}
}

func (c *TaxonomyConfig) loadDefaults() {
	if c.Source == "" {
		c.Source = SourceDir
	}
	if c.Dir == "" {
		c.Dir = "data/taxonomy"
	}
	if c.Overrides == "" {
		c.Overrides = "data/overrides.yaml"
	}
}

func (c *TaxonomyConfig) loadEnv() {
	if v := os.Getenv(EnvTaxonomyVersion); v != "" {
		c.Version = v
	}
	if v := os.Getenv(EnvTaxonomySource); v != "" {
		c.Source = v
	}
	if v := os.Getenv(EnvTaxonomyDir); v != "" {
		c.Dir = v
	}
	if v := os.Getenv(EnvOverrides); v != "" {
		c.Overrides = v
	}
}

func (c *TaxonomyConfig) validate() error {
	if c.Version == "" {
		return fmt.Errorf("version required")
	}
	switch c.Source {
	case SourceDir, SourceBlob:
	default:
		return fmt.Errorf("invalid source %q: want %s or %s", c.Source, SourceDir, SourceBlob)
	}
	return nil
}

package pipeline

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config bounds the worker pool and names where batch reports are archived.
type Config struct {
	Workers      int    `toml:"workers"`
	ReportPrefix string `toml:"report_prefix"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Workers      string
	ReportPrefix string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Workers != 0 {
		c.Workers = overlay.Workers
	}
	if overlay.ReportPrefix != "" {
		c.ReportPrefix = overlay.ReportPrefix
	}
}

// ReportKey returns the blob key of a batch report.
func (c *Config) ReportKey(runID string) string {
	return c.ReportPrefix + "/" + runID + ".json"
}

func (c *Config) loadDefaults() {
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.ReportPrefix == "" {
		c.ReportPrefix = "reports"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Workers != "" {
		if v := os.Getenv(env.Workers); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.Workers = n
			}
		}
	}
	if env.ReportPrefix != "" {
		if v := os.Getenv(env.ReportPrefix); v != "" {
			c.ReportPrefix = v
		}
	}
}

func (c *Config) validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive: %d", c.Workers)
	}
	c.ReportPrefix = strings.Trim(c.ReportPrefix, "/")
	if c.ReportPrefix == "" || strings.Contains(c.ReportPrefix, "..") {
		return fmt.Errorf("invalid report_prefix: %q", c.ReportPrefix)
	}
	return nil
}

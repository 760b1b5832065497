package services

import (
	"fmt"
	"os"
	"time"

	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/retry"
)

// Config addresses one external model service.
type Config struct {
	URL     string       `toml:"url"`
	Model   string       `toml:"model"`
	APIKey  string       `toml:"api_key"`
	Timeout string       `toml:"timeout"`
	Retry   retry.Config `toml:"retry"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	URL     string
	Model   string
	APIKey  string
	Timeout string
	Retry   *retry.Env
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Configured reports whether a service URL is available from the config or
// the environment.
func (c *Config) Configured(env *Env) bool {
	if c.URL != "" {
		return true
	}
	return env != nil && env.URL != "" && os.Getenv(env.URL) != ""
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	if err := c.validate(); err != nil {
		return err
	}
	var retryEnv *retry.Env
	if env != nil {
		retryEnv = env.Retry
	}
	if err := c.Retry.Finalize(retryEnv); err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.URL != "" {
		c.URL = overlay.URL
	}
	if overlay.Model != "" {
		c.Model = overlay.Model
	}
	if overlay.APIKey != "" {
		c.APIKey = overlay.APIKey
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
	c.Retry.Merge(&overlay.Retry)
}

func (c *Config) loadDefaults() {
	if c.Timeout == "" {
		c.Timeout = "30s"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.URL != "" {
		if v := os.Getenv(env.URL); v != "" {
			c.URL = v
		}
	}
	if env.Model != "" {
		if v := os.Getenv(env.Model); v != "" {
			c.Model = v
		}
	}
	if env.APIKey != "" {
		if v := os.Getenv(env.APIKey); v != "" {
			c.APIKey = v
		}
	}
	if env.Timeout != "" {
		if v := os.Getenv(env.Timeout); v != "" {
			c.Timeout = v
		}
	}
}

func (c *Config) validate() error {
	if c.URL == "" {
		return fmt.Errorf("url required")
	}
	if c.Model == "" {
		return fmt.Errorf("model required")
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	return nil
}

package retry

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the rate limit and retry policy of one external service.
type Config struct {
	RateLimit   int    `toml:"rate_limit"`
	RateWindow  string `toml:"rate_window"`
	Burst       int    `toml:"burst"`
	MaxAttempts int    `toml:"max_attempts"`
	BaseDelay   string `toml:"base_delay"`
	MaxDelay    string `toml:"max_delay"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	RateLimit   string
	RateWindow  string
	Burst       string
	MaxAttempts string
	BaseDelay   string
	MaxDelay    string
}

// RateWindowDuration returns RateWindow as a time.Duration.
func (c *Config) RateWindowDuration() time.Duration {
	d, _ := time.ParseDuration(c.RateWindow)
	return d
}

// BaseDelayDuration returns BaseDelay as a time.Duration.
func (c *Config) BaseDelayDuration() time.Duration {
	d, _ := time.ParseDuration(c.BaseDelay)
	return d
}

// MaxDelayDuration returns MaxDelay as a time.Duration.
func (c *Config) MaxDelayDuration() time.Duration {
	d, _ := time.ParseDuration(c.MaxDelay)
	return d
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
	if overlay.RateLimit != 0 {
		c.RateLimit = overlay.RateLimit
	}
	if overlay.RateWindow != "" {
		c.RateWindow = overlay.RateWindow
	}
	if overlay.Burst != 0 {
		c.Burst = overlay.Burst
	}
	if overlay.MaxAttempts != 0 {
		c.MaxAttempts = overlay.MaxAttempts
	}
	if overlay.BaseDelay != "" {
		c.BaseDelay = overlay.BaseDelay
	}
	if overlay.MaxDelay != "" {
		c.MaxDelay = overlay.MaxDelay
	}
}

func (c *Config) loadDefaults() {
	if c.RateLimit == 0 {
		c.RateLimit = 10
	}
	if c.RateWindow == "" {
		c.RateWindow = "1s"
	}
	if c.Burst == 0 {
		c.Burst = 1
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay == "" {
		c.BaseDelay = "500ms"
	}
	if c.MaxDelay == "" {
		c.MaxDelay = "10s"
	}
}

func (c *Config) loadEnv(env *Env) {
	setInt := func(name string, dst *int) {
		if name == "" {
			return
		}
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setString := func(name string, dst *string) {
		if name == "" {
			return
		}
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	setInt(env.RateLimit, &c.RateLimit)
	setString(env.RateWindow, &c.RateWindow)
	setInt(env.Burst, &c.Burst)
	setInt(env.MaxAttempts, &c.MaxAttempts)
	setString(env.BaseDelay, &c.BaseDelay)
	setString(env.MaxDelay, &c.MaxDelay)
}

func (c *Config) validate() error {
	if c.RateLimit < 1 {
		return fmt.Errorf("rate_limit must be positive: %d", c.RateLimit)
	}
	if c.Burst < 1 {
		return fmt.Errorf("burst must be positive: %d", c.Burst)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be positive: %d", c.MaxAttempts)
	}
	for name, v := range map[string]string{
		"rate_window": c.RateWindow,
		"base_delay":  c.BaseDelay,
		"max_delay":   c.MaxDelay,
	} {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}

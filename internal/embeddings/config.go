package embeddings

import (
	"fmt"
	"os"
	"time"

	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/formatting"
)

// badger rejects value log files outside [1MB, 2GB).
const (
	minValueLogSize = 1 << 20
	maxValueLogSize = 2<<30 - 1
)

// Config locates and bounds the persistent embedding store. An empty Dir
// keeps the cache in memory only.
type Config struct {
	Dir          string `toml:"dir"`
	TTL          string `toml:"ttl"`
	ValueLogSize string `toml:"value_log_size"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Dir          string
	TTL          string
	ValueLogSize string
}

// TTLDuration returns TTL as a time.Duration.
func (c *Config) TTLDuration() time.Duration {
	d, _ := time.ParseDuration(c.TTL)
	return d
}

// ValueLogBytes returns ValueLogSize in bytes.
func (c *Config) ValueLogBytes() int64 {
	n, _ := formatting.ParseBytes(c.ValueLogSize)
	return n
}

// Persistent reports whether vectors outlive the process.
func (c *Config) Persistent() bool {
	return c.Dir != ""
}

// Open opens the badger store at Dir.
func (c *Config) Open() (*BadgerStore, error) {
	opts := badgerOptions(c.Dir).WithValueLogFileSize(c.ValueLogBytes())
	return openBadger(opts, c.TTLDuration())
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
	if overlay.Dir != "" {
		c.Dir = overlay.Dir
	}
	if overlay.TTL != "" {
		c.TTL = overlay.TTL
	}
	if overlay.ValueLogSize != "" {
		c.ValueLogSize = overlay.ValueLogSize
	}
}

func (c *Config) loadDefaults() {
	if c.TTL == "" {
		c.TTL = "168h"
	}
	if c.ValueLogSize == "" {
		c.ValueLogSize = "64MB"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Dir != "" {
		if v := os.Getenv(env.Dir); v != "" {
			c.Dir = v
		}
	}
	if env.TTL != "" {
		if v := os.Getenv(env.TTL); v != "" {
			c.TTL = v
		}
	}
	if env.ValueLogSize != "" {
		if v := os.Getenv(env.ValueLogSize); v != "" {
			c.ValueLogSize = v
		}
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.TTL); err != nil {
		return fmt.Errorf("invalid ttl: %w", err)
	}
	n, err := formatting.ParseBytes(c.ValueLogSize)
	if err != nil {
		return fmt.Errorf("invalid value_log_size: %w", err)
	}
	if n < minValueLogSize || n > maxValueLogSize {
		return fmt.Errorf("value_log_size must be within [1MB, 2GB): %s", formatting.FormatBytes(n, 1))
	}
	return nil
}

package database

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"slices"
	"strconv"
	"time"
)

var sslModes = []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}

// Config holds PostgreSQL connection parameters.
type Config struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	Name            string `toml:"name"`
	User            string `toml:"user"`
	Password        string `toml:"password"`
	SSLMode         string `toml:"ssl_mode"`
	MaxOpenConns    int    `toml:"max_open_conns"`
	MaxIdleConns    int    `toml:"max_idle_conns"`
	ConnMaxLifetime string `toml:"conn_max_lifetime"`
	ConnTimeout     string `toml:"conn_timeout"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    string
	MaxIdleConns    string
	ConnMaxLifetime string
	ConnTimeout     string
}

// ConnMaxLifetimeDuration returns ConnMaxLifetime as a time.Duration.
func (c *Config) ConnMaxLifetimeDuration() time.Duration {
	d, _ := time.ParseDuration(c.ConnMaxLifetime)
	return d
}

// ConnTimeoutDuration returns ConnTimeout as a time.Duration.
func (c *Config) ConnTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ConnTimeout)
	return d
}

// URL returns the connection parameters as a postgres:// URL. Both the pgx
// driver and the migration tool accept it.
func (c *Config) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
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
	mergeString(&c.Host, overlay.Host)
	mergeInt(&c.Port, overlay.Port)
	mergeString(&c.Name, overlay.Name)
	mergeString(&c.User, overlay.User)
	mergeString(&c.Password, overlay.Password)
	mergeString(&c.SSLMode, overlay.SSLMode)
	mergeInt(&c.MaxOpenConns, overlay.MaxOpenConns)
	mergeInt(&c.MaxIdleConns, overlay.MaxIdleConns)
	mergeString(&c.ConnMaxLifetime, overlay.ConnMaxLifetime)
	mergeString(&c.ConnTimeout, overlay.ConnTimeout)
}

func (c *Config) loadDefaults() {
	mergeString(&c.Host, "localhost", c.Host == "")
	mergeInt(&c.Port, 5432, c.Port == 0)
	mergeString(&c.Name, "finput", c.Name == "")
	mergeString(&c.User, "finput", c.User == "")
	mergeString(&c.SSLMode, "disable", c.SSLMode == "")
	mergeInt(&c.MaxOpenConns, 25, c.MaxOpenConns == 0)
	mergeInt(&c.MaxIdleConns, 5, c.MaxIdleConns == 0)
	mergeString(&c.ConnMaxLifetime, "15m", c.ConnMaxLifetime == "")
	mergeString(&c.ConnTimeout, "5s", c.ConnTimeout == "")
}

func (c *Config) loadEnv(env *Env) {
	mergeString(&c.Host, getenv(env.Host))
	mergeString(&c.Name, getenv(env.Name))
	mergeString(&c.User, getenv(env.User))
	mergeString(&c.Password, getenv(env.Password))
	mergeString(&c.SSLMode, getenv(env.SSLMode))
	mergeString(&c.ConnMaxLifetime, getenv(env.ConnMaxLifetime))
	mergeString(&c.ConnTimeout, getenv(env.ConnTimeout))

	for _, f := range []struct {
		name string
		dst  *int
	}{
		{env.Port, &c.Port},
		{env.MaxOpenConns, &c.MaxOpenConns},
		{env.MaxIdleConns, &c.MaxIdleConns},
	} {
		if n, err := strconv.Atoi(getenv(f.name)); err == nil {
			*f.dst = n
		}
	}
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if !slices.Contains(sslModes, c.SSLMode) {
		return fmt.Errorf("invalid ssl_mode %q", c.SSLMode)
	}
	if c.MaxOpenConns < 1 {
		return fmt.Errorf("max_open_conns must be positive")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("max_idle_conns %d exceeds max_open_conns %d", c.MaxIdleConns, c.MaxOpenConns)
	}
	if _, err := time.ParseDuration(c.ConnMaxLifetime); err != nil {
		return fmt.Errorf("invalid conn_max_lifetime: %w", err)
	}
	if d, err := time.ParseDuration(c.ConnTimeout); err != nil || d <= 0 {
		return fmt.Errorf("invalid conn_timeout %q", c.ConnTimeout)
	}
	return nil
}

func getenv(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

// mergeString sets *dst to v when v is non-empty and every guard holds.
func mergeString(dst *string, v string, guards ...bool) {
	if v == "" || slices.Contains(guards, false) {
		return
	}
	*dst = v
}

func mergeInt(dst *int, v int, guards ...bool) {
	if v == 0 || slices.Contains(guards, false) {
		return
	}
	*dst = v
}

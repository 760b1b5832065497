package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

// OpsConfig holds the parameters of the operational HTTP listener that
// serves health probes and metrics while a batch runs. The listener is on
// unless Enabled is set to false.
type OpsConfig struct {
	Enabled         *bool  `toml:"enabled"`
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	ReadTimeout     string `toml:"read_timeout"`
	ShutdownTimeout string `toml:"shutdown_timeout"`

	readTimeout     time.Duration
	shutdownTimeout time.Duration
}

// On reports whether the listener should be started.
func (c *OpsConfig) On() bool {
	return c.Enabled == nil || *c.Enabled
}

// Addr returns the host:port listen address.
func (c *OpsConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ReadTimeoutDuration returns the parsed read timeout. Zero before Finalize.
func (c *OpsConfig) ReadTimeoutDuration() time.Duration { return c.readTimeout }

// ShutdownTimeoutDuration returns the parsed shutdown timeout. Zero before Finalize.
func (c *OpsConfig) ShutdownTimeoutDuration() time.Duration { return c.shutdownTimeout }

// Finalize applies defaults and FINPUT_OPS_* overrides, then parses and
// validates the result.
func (c *OpsConfig) Finalize() error {
	defaults := OpsConfig{
		Host:            "0.0.0.0",
		Port:            9102,
		ReadTimeout:     "10s",
		ShutdownTimeout: "5s",
	}
	defaults.Merge(c)
	*c = defaults

	if v, ok := os.LookupEnv("FINPUT_OPS_ENABLED"); ok {
		if on, err := strconv.ParseBool(v); err == nil {
			c.Enabled = &on
		}
	}
	if v, err := strconv.Atoi(os.Getenv("FINPUT_OPS_PORT")); err == nil {
		c.Port = v
	}
	for name, dst := range map[string]*string{
		"FINPUT_OPS_HOST":             &c.Host,
		"FINPUT_OPS_READ_TIMEOUT":     &c.ReadTimeout,
		"FINPUT_OPS_SHUTDOWN_TIMEOUT": &c.ShutdownTimeout,
	} {
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	var err error
	if c.readTimeout, err = positiveDuration("read_timeout", c.ReadTimeout); err != nil {
		return err
	}
	if c.shutdownTimeout, err = positiveDuration("shutdown_timeout", c.ShutdownTimeout); err != nil {
		return err
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *OpsConfig) Merge(overlay *OpsConfig) {
	if overlay.Enabled != nil {
		c.Enabled = overlay.Enabled
	}
	if overlay.Host != "" {
		c.Host = overlay.Host
	}
	if overlay.Port != 0 {
		c.Port = overlay.Port
	}
	if overlay.ReadTimeout != "" {
		c.ReadTimeout = overlay.ReadTimeout
	}
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
}

func positiveDuration(name, s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", name)
	}
	return d, nil
}

package storage

import (
	"fmt"
	"os"
	"regexp"
)

// Config holds Azure Blob Storage connection parameters.
type Config struct {
	ContainerName    string `toml:"container_name"`
	ConnectionString string `toml:"connection_string"`
}

// Env names the environment variables that override Config fields.
type Env struct {
	ContainerName    string
	ConnectionString string
}

// Azure container names: 3-63 lowercase letters, digits and single hyphens,
// starting and ending with a letter or digit.
var containerName = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9]|-[a-z0-9])+$`)

// Configured reports whether a connection string is available from the
// config or the environment. Storage is optional; callers skip Finalize and
// New when it is not configured.
func (c *Config) Configured(env *Env) bool {
	if c.ConnectionString != "" {
		return true
	}
	return env != nil && lookup(env.ConnectionString) != ""
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	if c.ContainerName == "" {
		c.ContainerName = "finput"
	}
	if env != nil {
		for _, o := range []struct {
			name string
			dst  *string
		}{
			{env.ContainerName, &c.ContainerName},
			{env.ConnectionString, &c.ConnectionString},
		} {
			if v := lookup(o.name); v != "" {
				*o.dst = v
			}
		}
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	c.ContainerName = pick(c.ContainerName, overlay.ContainerName)
	c.ConnectionString = pick(c.ConnectionString, overlay.ConnectionString)
}

func (c *Config) validate() error {
	if n := len(c.ContainerName); n < 3 || n > 63 || !containerName.MatchString(c.ContainerName) {
		return fmt.Errorf("container_name %q is not a valid container name", c.ContainerName)
	}
	if c.ConnectionString == "" {
		return fmt.Errorf("connection_string required")
	}
	return nil
}

func lookup(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}

func pick(base, overlay string) string {
	if overlay != "" {
		return overlay
	}
	return base
}

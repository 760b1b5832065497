// Package config loads the pipeline configuration from config.toml, an
// optional environment overlay and FINPUT_* environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/candidates"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/embeddings"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/fusion"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/graph"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/pipeline"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/rerank"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/segments"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/services"
	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/database"
	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/pagination"
	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/retry"
	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvFinputEnv             = "FINPUT_ENV"
	EnvFinputLogLevel        = "FINPUT_LOG_LEVEL"
	EnvFinputShutdownTimeout = "FINPUT_SHUTDOWN_TIMEOUT"
	EnvFinputVersion         = "FINPUT_VERSION"
)

// DatabaseEnv names the FINPUT_DB_* variables shared with cmd/migrate.
var DatabaseEnv = &database.Env{
	Host:            "FINPUT_DB_HOST",
	Port:            "FINPUT_DB_PORT",
	Name:            "FINPUT_DB_NAME",
	User:            "FINPUT_DB_USER",
	Password:        "FINPUT_DB_PASSWORD",
	SSLMode:         "FINPUT_DB_SSL_MODE",
	MaxOpenConns:    "FINPUT_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "FINPUT_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "FINPUT_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "FINPUT_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "FINPUT_STORAGE_CONTAINER_NAME",
	ConnectionString: "FINPUT_STORAGE_CONNECTION_STRING",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "FINPUT_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "FINPUT_PAGINATION_MAX_PAGE_SIZE",
}

var cacheEnv = &embeddings.Env{
	Dir:          "FINPUT_CACHE_DIR",
	TTL:          "FINPUT_CACHE_TTL",
	ValueLogSize: "FINPUT_CACHE_VALUE_LOG_SIZE",
}

var pipelineEnv = &pipeline.Env{
	Workers:      "FINPUT_PIPELINE_WORKERS",
	ReportPrefix: "FINPUT_PIPELINE_REPORT_PREFIX",
}

// serviceEnv derives the environment names of one model service from its
// prefix, e.g. FINPUT_EMBED_URL.
func serviceEnv(prefix string) *services.Env {
	return &services.Env{
		URL:     prefix + "_URL",
		Model:   prefix + "_MODEL",
		APIKey:  prefix + "_API_KEY",
		Timeout: prefix + "_TIMEOUT",
		Retry: &retry.Env{
			RateLimit:   prefix + "_RATE_LIMIT",
			RateWindow:  prefix + "_RATE_WINDOW",
			Burst:       prefix + "_BURST",
			MaxAttempts: prefix + "_MAX_ATTEMPTS",
			BaseDelay:   prefix + "_BASE_DELAY",
			MaxDelay:    prefix + "_MAX_DELAY",
		},
	}
}

var (
	embedEnv  = serviceEnv("FINPUT_EMBED")
	rerankEnv = serviceEnv("FINPUT_RERANK")
	chatEnv   = serviceEnv("FINPUT_CHAT")
)

// ServicesConfig addresses the external model services. Each one is
// optional; the stage it backs is skipped when it is not configured.
type ServicesConfig struct {
	Embed  services.Config `toml:"embed"`
	Rerank services.Config `toml:"rerank"`
	Chat   services.Config `toml:"chat"`

	embed, rerank, chat bool
}

// EmbedEnabled reports whether the candidate generator has an embedder.
func (c *ServicesConfig) EmbedEnabled() bool { return c.embed }

// RerankEnabled reports whether candidates are reranked.
func (c *ServicesConfig) RerankEnabled() bool { return c.rerank }

// ChatEnabled reports whether the LLM arbiter is available.
func (c *ServicesConfig) ChatEnabled() bool { return c.chat }

// Config is the root configuration of the classification pipeline.
type Config struct {
	Ops        OpsConfig         `toml:"ops"`
	Database   database.Config   `toml:"database"`
	Storage    storage.Config    `toml:"storage"`
	Pagination pagination.Config `toml:"pagination"`
	Taxonomy   TaxonomyConfig    `toml:"taxonomy"`
	Segments   segments.Config   `toml:"segments"`
	Candidates candidates.Config `toml:"candidates"`
	Rerank     rerank.Config     `toml:"rerank"`
	Fusion     fusion.Config     `toml:"fusion"`
	Graph      graph.Config      `toml:"graph"`
	Pipeline   pipeline.Config   `toml:"pipeline"`
	Cache      embeddings.Config `toml:"cache"`
	Services   ServicesConfig    `toml:"services"`

	// Prompts replaces the built-in instructions of a stage, keyed by
	// stage name.
	Prompts map[string]string `toml:"prompts"`

	LogLevel        string `toml:"log_level"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
	Version         string `toml:"version"`

	storage bool
}

// Env returns the FINPUT_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvFinputEnv); env != "" {
		return env
	}
	return "local"
}

// StorageEnabled reports whether blob storage is configured.
func (c *Config) StorageEnabled() bool {
	return c.storage
}

// Level returns LogLevel as a slog.Level.
func (c *Config) Level() slog.Level {
	var l slog.Level
	_ = l.UnmarshalText([]byte(c.LogLevel))
	return l
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.Finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Parse decodes a TOML document into an unfinalized Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.LogLevel != "" {
		c.LogLevel = overlay.LogLevel
	}
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	for stage, text := range overlay.Prompts {
		if c.Prompts == nil {
			c.Prompts = make(map[string]string)
		}
		c.Prompts[stage] = text
	}
	c.Ops.Merge(&overlay.Ops)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.Pagination.Merge(&overlay.Pagination)
	c.Taxonomy.Merge(&overlay.Taxonomy)
	c.Segments.Merge(&overlay.Segments)
	c.Candidates.Merge(&overlay.Candidates)
	c.Rerank.Merge(&overlay.Rerank)
	c.Fusion.Merge(&overlay.Fusion)
	c.Graph.Merge(&overlay.Graph)
	c.Pipeline.Merge(&overlay.Pipeline)
	c.Cache.Merge(&overlay.Cache)
	c.Services.Embed.Merge(&overlay.Services.Embed)
	c.Services.Rerank.Merge(&overlay.Services.Rerank)
	c.Services.Chat.Merge(&overlay.Services.Chat)
}

// Finalize applies defaults, environment variable overrides and validation
// to every section. Storage and the model services are finalized only when
// configured.
func (c *Config) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}

	sections := []struct {
		name     string
		finalize func() error
	}{
		{"ops", c.Ops.Finalize},
		{"database", func() error { return c.Database.Finalize(DatabaseEnv) }},
		{"pagination", func() error { return c.Pagination.Finalize(paginationEnv) }},
		{"taxonomy", c.Taxonomy.Finalize},
		{"segments", c.Segments.Finalize},
		{"candidates", c.Candidates.Finalize},
		{"rerank", c.Rerank.Finalize},
		{"fusion", c.Fusion.Finalize},
		{"graph", c.Graph.Finalize},
		{"pipeline", func() error { return c.Pipeline.Finalize(pipelineEnv) }},
		{"cache", func() error { return c.Cache.Finalize(cacheEnv) }},
	}
	for _, s := range sections {
		if err := s.finalize(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}

	if c.storage = c.Storage.Configured(storageEnv); c.storage {
		if err := c.Storage.Finalize(storageEnv); err != nil {
			return fmt.Errorf("storage: %w", err)
		}
	}
	if c.Taxonomy.Source == SourceBlob && !c.storage {
		return fmt.Errorf("taxonomy: source %s requires storage", SourceBlob)
	}

	svc := &c.Services
	for _, s := range []struct {
		name    string
		cfg     *services.Config
		env     *services.Env
		enabled *bool
	}{
		{"embed", &svc.Embed, embedEnv, &svc.embed},
		{"rerank", &svc.Rerank, rerankEnv, &svc.rerank},
		{"chat", &svc.Chat, chatEnv, &svc.chat},
	} {
		if *s.enabled = s.cfg.Configured(s.env); !*s.enabled {
			continue
		}
		if err := s.cfg.Finalize(s.env); err != nil {
			return fmt.Errorf("services.%s: %w", s.name, err)
		}
	}
	if svc.rerank && !svc.embed {
		return fmt.Errorf("services.rerank: requires services.embed")
	}

	return nil
}

func (c *Config) loadDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvFinputLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvFinputShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvFinputVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

func overlayPath() string {
	if env := os.Getenv(EnvFinputEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

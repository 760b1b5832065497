// Package infrastructure provides core service initialization for application startup.
// It assembles the shared dependencies (logging, metrics, database, blob
// storage, embedding store) that the classification pipeline requires.
package infrastructure

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/config"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/embeddings"
	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/database"
	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/lifecycle"
	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/storage"
)

// Infrastructure holds the core systems required by the pipeline commands.
// Database is nil when the run keeps results in memory, Storage is nil when
// no blob storage is configured and Vectors is nil when embeddings are only
// cached for the process lifetime.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Registry  *prometheus.Registry
	Database  database.System
	Storage   storage.System
	Vectors   embeddings.Store

	vectors *embeddings.BadgerStore
}

// Options adjusts which systems New creates.
type Options struct {
	// Memory skips the database; results and edges stay in process.
	Memory bool
	// LogOutput receives log lines. Defaults to stderr.
	LogOutput io.Writer
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config, opts Options) (*Infrastructure, error) {
	out := opts.LogOutput
	if out == nil {
		out = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: cfg.Level()})).
		With("version", cfg.Version, "env", cfg.Env())

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	infra := &Infrastructure{
		Lifecycle: lifecycle.New(),
		Logger:    logger,
		Registry:  reg,
	}

	if !opts.Memory {
		db, err := database.New(&cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("database init failed: %w", err)
		}
		infra.Database = db
		reg.MustRegister(db.Collector())
	}

	if cfg.StorageEnabled() {
		store, err := storage.New(&cfg.Storage, logger)
		if err != nil {
			return nil, fmt.Errorf("storage init failed: %w", err)
		}
		infra.Storage = store
	}

	if cfg.Cache.Persistent() {
		vectors, err := cfg.Cache.Open()
		if err != nil {
			return nil, fmt.Errorf("embedding store init failed: %w", err)
		}
		infra.vectors = vectors
		infra.Vectors = vectors
	}

	return infra, nil
}

// Start registers all infrastructure systems with the lifecycle coordinator.
func (i *Infrastructure) Start() error {
	if i.Database != nil {
		if err := i.Database.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("database start failed: %w", err)
		}
	}
	if i.Storage != nil {
		if err := i.Storage.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("storage start failed: %w", err)
		}
	}
	if i.vectors != nil {
		i.Lifecycle.OnShutdown(func() {
			<-i.Lifecycle.Context().Done()
			if err := i.vectors.Close(); err != nil {
				i.Logger.Error("embedding store close failed", "error", err)
				return
			}
			i.Logger.Info("embedding store closed")
		})
	}
	return nil
}

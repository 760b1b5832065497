package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/config"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/infrastructure"
)

// appOptions adjusts how a command assembles the process.
type appOptions struct {
	// Memory keeps results, edges and the report ledger in process.
	Memory bool
	// Ops starts the health and metrics listener when enabled in config.
	Ops bool
	// LogOutput receives log lines.
	LogOutput io.Writer
	// Configure edits the loaded configuration before any system is built.
	Configure func(cfg *config.Config) error
}

// App is one started process: infrastructure and the optional ops listener.
type App struct {
	cfg   *config.Config
	infra *infrastructure.Infrastructure
	ops   *opsServer
}

// NewApp loads the configuration and starts the infrastructure.
func NewApp(ctx context.Context, opts appOptions) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts.Configure != nil {
		if err := opts.Configure(cfg); err != nil {
			return nil, err
		}
	}
	return newApp(ctx, cfg, opts)
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (*App, error) {
	infra, err := infrastructure.New(cfg, infrastructure.Options{Memory: opts.Memory, LogOutput: opts.LogOutput})
	if err != nil {
		return nil, err
	}

	app := &App{cfg: cfg, infra: infra}
	if opts.Ops && cfg.Ops.On() {
		app.ops = newOpsServer(&cfg.Ops, infra)
	}

	if err := app.start(ctx); err != nil {
		return nil, err
	}
	return app, nil
}

// start brings up infrastructure and waits for its startup hooks. Every
// configured system must answer before any stage runs.
func (a *App) start(ctx context.Context) error {
	if err := a.infra.Start(); err != nil {
		return err
	}
	if a.ops != nil {
		if err := a.ops.Start(a.infra.Lifecycle); err != nil {
			return err
		}
	}

	if err := a.infra.Lifecycle.WaitForStartup(); err != nil {
		a.Shutdown()
		return err
	}
	if err := context.Cause(ctx); err != nil {
		a.Shutdown()
		return err
	}
	a.infra.Logger.Info("all subsystems ready")
	return nil
}

// Modules builds the full classification runtime.
func (a *App) Modules(ctx context.Context) (*Modules, error) {
	m, err := NewModules(ctx, a.infra, a.cfg)
	if err != nil {
		return nil, err
	}

	a.infra.Logger.Info("pipeline initialized",
		"taxonomy_version", m.Runtime.Taxonomy.Version(),
		"memory", a.infra.Database == nil,
		"embed", a.cfg.Services.EmbedEnabled(),
		"rerank", a.cfg.Services.RerankEnabled(),
		"arbiter", a.cfg.Services.ChatEnabled(),
		"archive", a.infra.Storage != nil,
	)
	return m, nil
}

// Stores builds only the stores, for inspection commands.
func (a *App) Stores() *Stores {
	return newStores(a.infra, a.cfg)
}

// Shutdown stops every system within the configured timeout.
func (a *App) Shutdown() {
	a.infra.Logger.Info("initiating shutdown")
	if err := a.infra.Lifecycle.Shutdown(a.cfg.ShutdownTimeoutDuration()); err != nil {
		a.infra.Logger.Error("shutdown failed", "error", err)
		return
	}
	a.infra.Logger.Info("pipeline stopped")
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

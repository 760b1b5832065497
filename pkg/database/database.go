// Package database opens the PostgreSQL pool used by the pipeline stores and
// ties its readiness and closing to a lifecycle coordinator.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/lifecycle"
)

// System is a pgx-backed connection pool.
type System interface {
	// Connection returns the pool.
	Connection() *sql.DB
	// Ping checks the server within the configured connection timeout.
	// Failures wrap ErrNotReady.
	Ping(ctx context.Context) error
	// Collector exports pool statistics as prometheus metrics.
	Collector() prometheus.Collector
	// Start makes startup wait on a successful ping and closes the pool at
	// shutdown.
	Start(lc *lifecycle.Coordinator) error
}

type pool struct {
	db      *sql.DB
	name    string
	timeout time.Duration
	logger  *slog.Logger
}

// New opens a pool for cfg. sql.Open only parses the URL; no connection is
// made until Ping or Start.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	db, err := sql.Open("pgx", cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

	return &pool{
		db:      db,
		name:    cfg.Name,
		timeout: cfg.ConnTimeoutDuration(),
		logger:  logger.With("system", "database", "host", cfg.Host, "name", cfg.Name),
	}, nil
}

func (p *pool) Connection() *sql.DB { return p.db }

func (p *pool) Collector() prometheus.Collector {
	return collectors.NewDBStatsCollector(p.db, p.name)
}

func (p *pool) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrNotReady, err)
	}
	return nil
}

func (p *pool) Start(lc *lifecycle.Coordinator) error {
	lc.OnStartup("database", func(ctx context.Context) error {
		start := time.Now()
		if err := p.Ping(ctx); err != nil {
			p.logger.Error("database unreachable", "error", err)
			return err
		}
		p.logger.Info("database ready", "latency", time.Since(start).Round(time.Millisecond))
		return nil
	})

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		stats := p.db.Stats()
		if err := p.db.Close(); err != nil {
			p.logger.Error("database close failed", "error", err)
			return
		}
		p.logger.Info("database closed", "open_connections", stats.OpenConnections, "wait_count", stats.WaitCount)
	})

	return nil
}

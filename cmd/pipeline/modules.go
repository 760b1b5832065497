package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/arbiter"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/candidates"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/classifications"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/config"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/embeddings"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/entity"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/fusion"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/graph"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/infrastructure"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/pipeline"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/prompts"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/reports"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/rerank"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/segments"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/services"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/taxonomy"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/workflow"
	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/storage"
)

// Modules holds the classification systems built for one taxonomy version.
type Modules struct {
	*Stores
	Runtime  *workflow.Runtime
	Pipeline *pipeline.Pipeline
}

// NewModules loads the taxonomy and override table, warms the candidate
// generator and wires the stores selected by infra.
func NewModules(ctx context.Context, infra *infrastructure.Infrastructure, cfg *config.Config) (*Modules, error) {
	logger := infra.Logger

	tax, err := taxonomy.Load(ctx, taxonomySource(cfg, infra), cfg.Taxonomy.Version)
	if err != nil {
		return nil, err
	}

	table, err := loadOverrides(ctx, cfg, infra, tax)
	if err != nil {
		return nil, err
	}

	rt, err := newRuntime(ctx, infra, cfg, tax, table)
	if err != nil {
		return nil, err
	}

	st := newStores(infra, cfg)
	p := pipeline.New(rt, st.Results, st.Edges, st.Ledger, cfg.Pipeline, logger).
		WithMetrics(pipeline.NewMetrics(infra.Registry))
	if infra.Storage != nil {
		p.WithArchive(infra.Storage)
	}

	return &Modules{
		Stores:   st,
		Runtime:  rt,
		Pipeline: p,
	}, nil
}

// Stores are the persistent collaborators of the pipeline.
type Stores struct {
	Results classifications.Store
	Edges   *graph.Materializer
	Ledger  reports.Ledger
}

// newStores selects in-process stores when infra has no database.
func newStores(infra *infrastructure.Infrastructure, cfg *config.Config) *Stores {
	logger := infra.Logger

	var (
		results classifications.Store
		store   graph.Store
		ledger  reports.Ledger
	)
	if infra.Database == nil {
		results = classifications.NewMemoryStore(cfg.Pagination)
		store = graph.NewMemoryStore()
		ledger = reports.NewMemoryLedger()
	} else {
		db := infra.Database.Connection()
		results = classifications.NewPostgresStore(db, logger, cfg.Pagination)
		store = graph.NewPostgresStore(db, logger)
		ledger = reports.NewPostgresLedger(db, logger)
	}

	return &Stores{
		Results: results,
		Edges:   graph.NewMaterializer(store, cfg.Graph, graph.NewMetrics(infra.Registry), logger),
		Ledger:  ledger,
	}
}

func taxonomySource(cfg *config.Config, infra *infrastructure.Infrastructure) taxonomy.Source {
	if cfg.Taxonomy.Source == config.SourceBlob {
		return taxonomy.BlobSource{Storage: infra.Storage}
	}
	return taxonomy.DirSource{Dir: cfg.Taxonomy.Dir}
}

// loadOverrides reads the hard override table. A missing table means no
// overrides.
func loadOverrides(ctx context.Context, cfg *config.Config, infra *infrastructure.Infrastructure, tax *taxonomy.Taxonomy) (*entity.Table, error) {
	path := cfg.Taxonomy.Overrides

	var (
		data []byte
		err  error
	)
	if cfg.Taxonomy.Source == config.SourceBlob {
		data, err = storage.ReadAll(ctx, infra.Storage, path)
		if errors.Is(err, storage.ErrNotFound) {
			err = os.ErrNotExist
		}
	} else {
		data, err = os.ReadFile(path)
	}
	if errors.Is(err, os.ErrNotExist) {
		infra.Logger.Info("no override table", "path", path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read overrides %s: %w", path, err)
	}

	table, err := entity.ParseTable(data, tax)
	if err != nil {
		return nil, fmt.Errorf("parse overrides %s: %w", path, err)
	}
	return table, nil
}

func newRuntime(
	ctx context.Context,
	infra *infrastructure.Infrastructure,
	cfg *config.Config,
	tax *taxonomy.Taxonomy,
	table *entity.Table,
) (*workflow.Runtime, error) {
	logger := infra.Logger
	sm := services.NewMetrics(infra.Registry)

	rt := &workflow.Runtime{
		Taxonomy: tax,
		Segments: segments.New(segments.FromTaxonomy(tax), cfg.Segments),
		Fuser:    fusion.New(cfg.Fusion, tax.Level),
		Resolver: entity.NewResolver(table, tax, logger),
		Metrics:  workflow.NewMetrics(infra.Registry),
		Logger:   logger,
	}

	if cfg.Services.EmbedEnabled() {
		gen, err := newGenerator(ctx, cfg, infra, tax, sm, logger)
		if err != nil {
			return nil, err
		}
		rt.Generator = gen
	}

	if cfg.Services.RerankEnabled() {
		scorer := services.NewReranker(&cfg.Services.Rerank, sm, logger)
		rt.Reranker = rerank.New(scorer, tax, cfg.Rerank, logger)
	}

	if cfg.Services.ChatEnabled() {
		ps, err := prompts.New(cfg.Prompts)
		if err != nil {
			return nil, fmt.Errorf("prompts: %w", err)
		}
		chat := services.NewChat(&cfg.Services.Chat, sm, logger)
		arb, err := arbiter.New(chat, ps, tax, logger)
		if err != nil {
			return nil, err
		}
		rt.Arbiter = arb
	}

	return rt, nil
}

// newGenerator builds the candidate generator and embeds the taxonomy
// reference texts before the first company is classified.
func newGenerator(
	ctx context.Context,
	cfg *config.Config,
	infra *infrastructure.Infrastructure,
	tax *taxonomy.Taxonomy,
	sm *services.Metrics,
	logger *slog.Logger,
) (*candidates.Generator, error) {
	embedder := services.NewEmbedder(&cfg.Services.Embed, sm, logger)
	cache := embeddings.NewCache(embedder.Model(), infra.Vectors, logger)
	gen := candidates.New(embedder, cache, cfg.Candidates, logger)

	if err := gen.Warm(ctx, tax); err != nil {
		return nil, fmt.Errorf("warm candidates: %w", err)
	}

	stats := cache.Stats()
	logger.Info("taxonomy references embedded",
		"nodes", len(tax.Nodes()),
		"store_hits", stats.StoreHits,
		"computed", stats.Misses,
		"persistent", cfg.Cache.Persistent(),
	)
	return gen, nil
}

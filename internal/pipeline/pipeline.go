// Package pipeline runs the classification workflow over a batch of
// companies with a bounded worker pool, persists each result, materializes
// the graph edges it implies and summarizes the run in a Report. Failures are
// isolated per company, per edge and per insight report.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/classifications"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/companies"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/graph"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/reports"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/workflow"
	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/formatting"
	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/storage"
)

// Pipeline owns the collaborators of a batch run. It is safe to reuse across
// runs of the same taxonomy version.
type Pipeline struct {
	runtime *workflow.Runtime
	results classifications.Store
	edges   *graph.Materializer
	ledger  reports.Ledger
	archive storage.System
	metrics *Metrics
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a Pipeline. Archive and metrics are attached with WithArchive
// and WithMetrics.
func New(
	rt *workflow.Runtime,
	results classifications.Store,
	edges *graph.Materializer,
	ledger reports.Ledger,
	cfg Config,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		runtime: rt,
		results: results,
		edges:   edges,
		ledger:  ledger,
		cfg:     cfg,
		logger:  logger.With("system", "pipeline"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithArchive uploads every batch report to s.
func (p *Pipeline) WithArchive(s storage.System) *Pipeline {
	p.archive = s
	return p
}

// WithMetrics records company outcomes in m.
func (p *Pipeline) WithMetrics(m *Metrics) *Pipeline {
	p.metrics = m
	return p
}

// WithClock replaces the clock used for report timestamps.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// Run classifies cs and materializes their edges. Cancelling ctx stops
// submitting companies; work already submitted runs to completion. The
// report is returned even when the run was cancelled.
func (p *Pipeline) Run(ctx context.Context, cs []companies.Company) (*Report, error) {
	report := newReport(p.runtime.Taxonomy.Version(), len(cs), p.now())
	logger := p.logger.With("run_id", report.RunID.String())
	logger.InfoContext(ctx, "batch started",
		"companies", len(cs),
		"workers", p.cfg.Workers,
		"taxonomy_version", report.TaxonomyVersion,
	)

	work := context.WithoutCancel(ctx)
	submitted := cs

	var eg errgroup.Group
	eg.SetLimit(p.cfg.Workers)
	for i, c := range cs {
		if ctx.Err() != nil {
			report.cancel(len(cs) - i)
			submitted = cs[:i]
			break
		}
		eg.Go(func() error {
			p.process(work, report, c)
			return nil
		})
	}
	eg.Wait()

	for _, in := range collectInsights(submitted) {
		if ctx.Err() != nil {
			report.cancel(0)
			break
		}
		eg.Go(func() error {
			p.insight(work, report, in)
			return nil
		})
	}
	eg.Wait()

	report.finish(p.now())
	p.archiveReport(work, logger, report)

	logger.InfoContext(ctx, "batch finished",
		"duration", report.Duration,
		"outcomes", report.Outcomes,
		"edges", report.Edges,
		"failures", len(report.Failures),
	)

	if report.Cancelled {
		return report, fmt.Errorf("run %s cancelled: %w", report.RunID, context.Cause(ctx))
	}
	return report, nil
}

func (p *Pipeline) process(ctx context.Context, report *Report, c companies.Company) {
	start := time.Now()
	defer func() { p.metrics.observe(time.Since(start).Seconds()) }()

	fail := func(phase Phase, err error) {
		report.fail(Failure{CompanyID: c.ID, Phase: phase, Error: err.Error()})
		p.metrics.failure(phase)
		p.logger.ErrorContext(ctx, "company failed", "company_id", c.ID, "phase", phase, "error", err)
	}
	done := func(o Outcome) {
		report.outcome(o)
		p.metrics.outcome(o)
	}

	if err := c.Validate(); err != nil {
		fail(PhaseValidate, err)
		done(OutcomeFailed)
		return
	}

	r, outcome, phase, err := p.classify(ctx, c)
	if err != nil {
		fail(phase, err)
		done(OutcomeFailed)
		return
	}
	done(outcome)

	for _, o := range Observations(r) {
		out, err := p.edges.Materialize(ctx, o)
		if err != nil {
			fail(PhaseEdges, err)
			continue
		}
		report.edge(o.Relation, out)
	}
}

// classify returns the stored result when it is current for c, otherwise
// runs the workflow and replaces the stored result.
func (p *Pipeline) classify(ctx context.Context, c companies.Company) (*classifications.Result, Outcome, Phase, error) {
	version := p.runtime.Taxonomy.Version()

	prior, err := p.results.Find(ctx, c.ID, version)
	if err != nil && !errors.Is(err, classifications.ErrNotFound) {
		return nil, OutcomeFailed, PhaseLookup, err
	}
	if prior.Current(c.Hash(version)) {
		p.logger.DebugContext(ctx, "input unchanged", "company_id", c.ID)
		return prior, OutcomeUnchanged, "", nil
	}

	r, err := workflow.Execute(ctx, p.runtime, c)
	if err != nil {
		return nil, OutcomeFailed, PhaseClassify, err
	}
	if err := p.results.Save(ctx, r); err != nil {
		return nil, OutcomeFailed, PhasePersist, err
	}
	return r, Outcome(r.Status), "", nil
}

// insight materializes the relations of one report unless the ledger has
// already seen it. The report is recorded only after every relation
// committed, so a partial failure is retried by the next run.
func (p *Pipeline) insight(ctx context.Context, report *Report, in *insight) {
	source := in.report.SourceID()
	fail := func(phase Phase, err error) {
		report.fail(Failure{Report: source, Phase: phase, Error: err.Error()})
		p.metrics.failure(phase)
		p.logger.ErrorContext(ctx, "insight failed", "report", source, "phase", phase, "error", err)
	}

	if err := in.report.Validate(); err != nil {
		fail(PhaseValidate, err)
		return
	}

	seen, err := p.ledger.Seen(ctx, in.report)
	if err != nil {
		fail(PhaseLedger, err)
		return
	}
	if seen {
		report.insight(true)
		p.logger.DebugContext(ctx, "report already processed", "report", source)
		return
	}

	ok := true
	for _, o := range in.obs {
		out, err := p.edges.Materialize(ctx, o)
		if err != nil {
			fail(PhaseEdges, err)
			ok = false
			continue
		}
		report.edge(o.Relation, out)
	}
	if !ok {
		return
	}

	if _, err := p.ledger.Record(ctx, in.report); err != nil {
		fail(PhaseLedger, err)
		return
	}
	report.insight(false)
}

func (p *Pipeline) archiveReport(ctx context.Context, logger *slog.Logger, report *Report) {
	if p.archive == nil {
		return
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		logger.ErrorContext(ctx, "encode batch report failed", "error", err)
		return
	}

	key := p.cfg.ReportKey(report.RunID.String())
	if err := p.archive.Upload(ctx, key, bytes.NewReader(data), "application/json"); err != nil {
		logger.WarnContext(ctx, "archive batch report failed", "key", key, "error", err)
		return
	}

	report.Archive = key
	logger.InfoContext(ctx, "batch report archived",
		"key", key,
		"size", formatting.FormatBytes(int64(len(data)), 1),
	)
}

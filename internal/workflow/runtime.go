package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/arbiter"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/candidates"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/entity"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/fusion"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/segments"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/taxonomy"
)

const tracerName = "github.com/byu0224-0001/fin-put-Backend-sub002/internal/workflow"

// Generator proposes candidates by embedding similarity.
type Generator interface {
	Generate(ctx context.Context, text string) ([]candidates.Candidate, error)
}

// Reranker rescores a shortlist with a cross-encoder.
type Reranker interface {
	Rerank(ctx context.Context, text string, cands []candidates.Candidate) ([]candidates.Candidate, error)
}

// Arbiter asks a language model to pick one candidate.
type Arbiter interface {
	Decide(ctx context.Context, text string, cands []candidates.Candidate) (arbiter.Decision, error)
}

// Runtime bundles the dependencies the workflow stages require. It is
// constructed once per taxonomy version by the pipeline and shared by all
// workers. Generator, Reranker, Arbiter, Metrics, Tracer and Now are optional;
// a missing stage is recorded as skipped.
type Runtime struct {
	Taxonomy  *taxonomy.Taxonomy
	Segments  *segments.Scorer
	Generator Generator
	Reranker  Reranker
	Arbiter   Arbiter
	Fuser     *fusion.Fuser
	Resolver  *entity.Resolver
	Metrics   *Metrics
	Tracer    trace.Tracer
	Logger    *slog.Logger
	Now       func() time.Time
}

func (rt *Runtime) validate() error {
	switch {
	case rt == nil:
		return fmt.Errorf("%w: nil runtime", ErrInvalidRuntime)
	case rt.Taxonomy == nil:
		return fmt.Errorf("%w: taxonomy required", ErrInvalidRuntime)
	case rt.Segments == nil:
		return fmt.Errorf("%w: segment scorer required", ErrInvalidRuntime)
	case rt.Fuser == nil:
		return fmt.Errorf("%w: fuser required", ErrInvalidRuntime)
	case rt.Resolver == nil:
		return fmt.Errorf("%w: resolver required", ErrInvalidRuntime)
	case rt.Logger == nil:
		return fmt.Errorf("%w: logger required", ErrInvalidRuntime)
	}
	return nil
}

func (rt *Runtime) tracer() trace.Tracer {
	if rt.Tracer != nil {
		return rt.Tracer
	}
	return otel.Tracer(tracerName)
}

func (rt *Runtime) now() time.Time {
	if rt.Now != nil {
		return rt.Now()
	}
	return time.Now().UTC()
}

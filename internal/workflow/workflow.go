package workflow

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/classifications"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/companies"
)

// Execute classifies one company. Stage failures never surface as errors;
// they are recorded in the trace and the chain falls through. An error is
// returned only when ctx ends or the runtime is misconfigured.
func Execute(ctx context.Context, rt *Runtime, c companies.Company) (*classifications.Result, error) {
	if err := rt.validate(); err != nil {
		return nil, err
	}

	ctx, span := rt.tracer().Start(ctx, "workflow.Execute",
		trace.WithAttributes(
			attribute.String("company_id", c.ID),
			attribute.String("taxonomy_version", rt.Taxonomy.Version()),
		),
	)
	defer span.End()

	s := newState(rt, c)
	if !c.Empty() {
		for _, n := range chain {
			if rt.runNode(ctx, n, s) {
				break
			}
		}
	}

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("classify %s: %w", c.ID, err)
	}

	r, err := finalize(ctx, rt, s)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("classify %s: %w", c.ID, err)
	}

	rt.Metrics.observe(r)
	span.SetAttributes(
		attribute.String("status", string(r.Status)),
		attribute.String("method", string(r.Method)),
		attribute.Float64("confidence", r.Confidence),
	)

	rt.Logger.InfoContext(ctx, "company classified",
		"company_id", c.ID,
		"status", r.Status,
		"method", r.Method,
		"band", r.Band,
		"confidence", r.Confidence,
	)
	return r, nil
}

func (rt *Runtime) runNode(ctx context.Context, n node, s *State) bool {
	ctx, span := rt.tracer().Start(ctx, "workflow."+n.name)
	defer span.End()

	before := len(s.Trace)
	done := n.run(ctx, rt, s)

	for _, o := range s.Trace[before:] {
		span.AddEvent(string(o.Stage), trace.WithAttributes(
			attribute.String("status", string(o.Status)),
			attribute.String("code", o.Code),
			attribute.Float64("confidence", o.Confidence),
		))
	}
	rt.Logger.DebugContext(ctx, n.name+" node complete",
		"company_id", s.Company.ID,
		"decided", done,
	)
	return done
}

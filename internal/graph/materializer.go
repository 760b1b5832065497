package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/fingerprint"
)

// Config bounds the evidence layer.
type Config struct {
	EvidenceCap int `toml:"evidence_cap"`
}

// Finalize applies defaults and validation.
func (c *Config) Finalize() error {
	if c.EvidenceCap == 0 {
		c.EvidenceCap = 8
	}
	if c.EvidenceCap < 1 {
		return fmt.Errorf("evidence_cap must be positive: %d", c.EvidenceCap)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.EvidenceCap != 0 {
		c.EvidenceCap = overlay.EvidenceCap
	}
}

// Materializer turns observations into edge writes.
type Materializer struct {
	store   Store
	cfg     Config
	metrics *Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewMaterializer creates a Materializer. metrics may be nil.
func NewMaterializer(store Store, cfg Config, metrics *Metrics, logger *slog.Logger) *Materializer {
	return &Materializer{
		store:   store,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger.With("system", "graph"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the clock used for edge timestamps.
func (m *Materializer) WithClock(now func() time.Time) *Materializer {
	m.now = now
	return m
}

// Materialize records o on its edge and reports what happened. The whole
// mutation commits or rolls back as one unit.
func (m *Materializer) Materialize(ctx context.Context, o Observation) (Outcome, error) {
	if err := o.Validate(); err != nil {
		return "", err
	}

	id := o.EdgeID()
	var outcome Outcome
	var evicted int

	err := m.store.Mutate(ctx, id, func(current *Edge) (*Edge, error) {
		next, out := Apply(current, o, m.cfg.EvidenceCap, m.now())
		outcome, evicted = out, 0
		if out == OutcomeEvicted {
			evicted = next.Rollup.Count
			if current.Rollup != nil {
				evicted -= current.Rollup.Count
			}
		}
		return next, nil
	})
	if err != nil {
		return "", fmt.Errorf("materialize %s %s->%s: %w", o.Relation, o.Source, o.Target, err)
	}

	if m.metrics != nil {
		m.metrics.Outcomes.WithLabelValues(string(o.Relation), string(outcome)).Inc()
		m.metrics.Evicted.Add(float64(evicted))
	}
	m.logger.DebugContext(ctx, "edge materialized",
		"edge_id", fingerprint.Short(id),
		"relation", o.Relation,
		"outcome", outcome,
	)
	return outcome, nil
}

// Find returns an edge by id.
func (m *Materializer) Find(ctx context.Context, id string) (*Edge, error) {
	return m.store.Find(ctx, id)
}

// Package rerank re-scores retrieval candidates with a cross-encoder against
// each node's long-context description and blends the result with the
// retrieval score.
package rerank

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/candidates"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/signal"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/taxonomy"
)

// Scorer returns the similarity of a query and a passage in [0,1].
type Scorer interface {
	Score(ctx context.Context, query, passage string) (float64, error)
}

// Config sets the rerank share of the blended score and how many candidates
// survive.
type Config struct {
	Weight float64 `toml:"weight"`
	TopN   int     `toml:"top_n"`
}

// Reranker refines a candidate shortlist.
type Reranker struct {
	scorer Scorer
	tax    *taxonomy.Taxonomy
	cfg    Config
	logger *slog.Logger
}

// New creates a Reranker for one taxonomy version.
func New(scorer Scorer, tax *taxonomy.Taxonomy, cfg Config, logger *slog.Logger) *Reranker {
	return &Reranker{
		scorer: scorer,
		tax:    tax,
		cfg:    cfg,
		logger: logger.With("system", "rerank"),
	}
}

// Rerank remaps legacy codes to canonical ones, scores every candidate against
// its node's detail text and returns the best TopN by
// Weight*rerank + (1-Weight)*original.
func (r *Reranker) Rerank(ctx context.Context, text string, cands []candidates.Candidate) ([]candidates.Candidate, error) {
	merged := r.canonicalize(ctx, cands)
	if len(merged) == 0 {
		return nil, nil
	}

	out := make([]candidates.Candidate, 0, len(merged))
	for _, c := range merged {
		node, _ := r.tax.Node(c.Code)
		s, err := r.scorer.Score(ctx, text, node.DetailText())
		if err != nil {
			return nil, fmt.Errorf("rerank %s: %w", c.Code, err)
		}
		s = clamp(s)
		out = append(out, candidates.Candidate{
			Code:  c.Code,
			Score: r.cfg.Weight*s + (1-r.cfg.Weight)*c.Score,
			Stage: signal.StageRerank,
		})
	}

	candidates.Sort(out)
	if r.cfg.TopN > 0 && len(out) > r.cfg.TopN {
		out = out[:r.cfg.TopN]
	}
	return out, nil
}

func (r *Reranker) canonicalize(ctx context.Context, cands []candidates.Candidate) []candidates.Candidate {
	index := make(map[string]int, len(cands))
	merged := make([]candidates.Candidate, 0, len(cands))

	for _, c := range cands {
		code := r.tax.Canonical(c.Code)
		if _, ok := r.tax.Node(code); !ok {
			r.logger.WarnContext(ctx, "dropping unknown candidate code", "code", c.Code)
			continue
		}
		if code != c.Code {
			r.logger.DebugContext(ctx, "remapped legacy code", "from", c.Code, "to", code)
		}
		if i, seen := index[code]; seen {
			merged[i].Score = math.Max(merged[i].Score, c.Score)
			continue
		}
		index[code] = len(merged)
		merged = append(merged, candidates.Candidate{Code: code, Score: c.Score, Stage: c.Stage})
	}
	return merged
}

func clamp(s float64) float64 {
	switch {
	case math.IsNaN(s):
		return 0
	case s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}

// Finalize applies defaults and validation.
func (c *Config) Finalize() error {
	if c.Weight == 0 {
		c.Weight = 0.70
	}
	if c.TopN == 0 {
		c.TopN = 2
	}
	if c.Weight < 0 || c.Weight > 1 {
		return fmt.Errorf("weight must be within [0,1]: %g", c.Weight)
	}
	if c.TopN < 1 {
		return fmt.Errorf("top_n must be positive: %d", c.TopN)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Weight != 0 {
		c.Weight = overlay.Weight
	}
	if overlay.TopN != 0 {
		c.TopN = overlay.TopN
	}
}

// Package candidates implements bi-encoder retrieval: company text is embedded
// once per content hash and compared by cosine similarity with the taxonomy
// reference embeddings, which are computed once per taxonomy version.
package candidates

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/embeddings"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/signal"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/taxonomy"
)

var (
	// ErrNotWarmed indicates Generate was called before Warm.
	ErrNotWarmed = errors.New("reference embeddings not computed")
	// ErrDimensionMismatch indicates the company and reference vectors differ in size.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrZeroVector indicates the embedding service returned an all-zero vector.
	ErrZeroVector = errors.New("zero embedding vector")
	// ErrEmptyTaxonomy indicates Warm was given a taxonomy without nodes.
	ErrEmptyTaxonomy = errors.New("taxonomy has no nodes")
)

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Candidate is a taxonomy code proposed by a retrieval stage.
type Candidate struct {
	Code  string       `json:"code"`
	Score float64      `json:"score"`
	Stage signal.Stage `json:"stage"`
}

// Config controls retrieval. MinSimilarity is a pointer because zero is a
// valid threshold.
type Config struct {
	TopK          int      `toml:"top_k"`
	MinSimilarity *float64 `toml:"min_similarity"`
	WarmWorkers   int      `toml:"warm_workers"`
}

const defaultMinSimilarity = 0.35

func (c Config) minSimilarity() float64 {
	if c.MinSimilarity == nil {
		return defaultMinSimilarity
	}
	return *c.MinSimilarity
}

type reference struct {
	code string
	vec  []float32
}

// Generator ranks taxonomy codes by similarity to company text.
type Generator struct {
	embedder Embedder
	cache    *embeddings.Cache
	cfg      Config
	logger   *slog.Logger

	mu      sync.RWMutex
	version string
	refs    []reference
}

// New creates a Generator. Warm must be called before Generate.
func New(embedder Embedder, cache *embeddings.Cache, cfg Config, logger *slog.Logger) *Generator {
	if cfg.WarmWorkers < 1 {
		cfg.WarmWorkers = 4
	}
	return &Generator{
		embedder: embedder,
		cache:    cache,
		cfg:      cfg,
		logger:   logger.With("system", "candidates"),
	}
}

// Warm computes the reference embedding of every taxonomy node. Repeated calls
// for an already warmed version return immediately.
func (g *Generator) Warm(ctx context.Context, tax *taxonomy.Taxonomy) error {
	if tax == nil || len(tax.Nodes()) == 0 {
		return ErrEmptyTaxonomy
	}

	g.mu.RLock()
	done := g.version == tax.Version() && len(g.refs) > 0
	g.mu.RUnlock()
	if done {
		return nil
	}

	nodes := tax.Nodes()
	refs := make([]reference, len(nodes))

	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.WarmWorkers)
	for i, n := range nodes {
		eg.Go(func() error {
			vec, err := g.embed(ectx, n.ReferenceText())
			if err != nil {
				return fmt.Errorf("embed reference %s: %w", n.Code, err)
			}
			refs[i] = reference{code: n.Code, vec: vec}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	dim := len(refs[0].vec)
	for _, r := range refs {
		if len(r.vec) != dim {
			return fmt.Errorf("%w: %s has %d, expected %d", ErrDimensionMismatch, r.code, len(r.vec), dim)
		}
	}

	g.mu.Lock()
	g.version, g.refs = tax.Version(), refs
	g.mu.Unlock()

	g.logger.InfoContext(ctx, "reference embeddings ready",
		"version", tax.Version(),
		"nodes", len(refs),
		"dimensions", dim,
	)
	return nil
}

// Generate returns up to TopK candidates at or above MinSimilarity, best
// first. An empty result is not an error.
func (g *Generator) Generate(ctx context.Context, text string) ([]Candidate, error) {
	g.mu.RLock()
	refs := g.refs
	g.mu.RUnlock()
	if len(refs) == 0 {
		return nil, ErrNotWarmed
	}

	vec, err := g.embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) != len(refs[0].vec) {
		return nil, fmt.Errorf("%w: company %d, reference %d", ErrDimensionMismatch, len(vec), len(refs[0].vec))
	}

	out := make([]Candidate, 0, len(refs))
	for _, r := range refs {
		sim := dot(vec, r.vec)
		if sim < g.cfg.minSimilarity() {
			continue
		}
		out = append(out, Candidate{Code: r.code, Score: sim, Stage: signal.StageEmbedding})
	}

	Sort(out)
	if g.cfg.TopK > 0 && len(out) > g.cfg.TopK {
		out = out[:g.cfg.TopK]
	}
	return out, nil
}

func (g *Generator) embed(ctx context.Context, text string) ([]float32, error) {
	return g.cache.Get(ctx, text, func(ctx context.Context, text string) ([]float32, error) {
		vec, err := g.embedder.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		return normalize(vec)
	})
}

// Sort orders candidates by descending score, breaking ties by code.
func Sort(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Score != cs[j].Score {
			return cs[i].Score > cs[j].Score
		}
		return cs[i].Code < cs[j].Code
	})
}

func normalize(vec []float32) ([]float32, error) {
	var sum float64
	for _, f := range vec {
		sum += float64(f) * float64(f)
	}
	if sum == 0 {
		return nil, ErrZeroVector
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(vec))
	for i, f := range vec {
		out[i] = float32(float64(f) / norm)
	}
	return out, nil
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

// Finalize applies defaults and validation.
func (c *Config) Finalize() error {
	if c.TopK == 0 {
		c.TopK = 5
	}
	if c.MinSimilarity == nil {
		v := defaultMinSimilarity
		c.MinSimilarity = &v
	}
	if c.WarmWorkers == 0 {
		c.WarmWorkers = 4
	}
	if c.TopK < 1 {
		return fmt.Errorf("top_k must be positive: %d", c.TopK)
	}
	if m := *c.MinSimilarity; m < -1 || m > 1 {
		return fmt.Errorf("min_similarity must be within [-1,1]: %g", m)
	}
	if c.WarmWorkers < 1 {
		return fmt.Errorf("warm_workers must be positive: %d", c.WarmWorkers)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay. MinSimilarity is
// overwritten whenever the overlay sets it.
func (c *Config) Merge(overlay *Config) {
	if overlay.TopK != 0 {
		c.TopK = overlay.TopK
	}
	if overlay.MinSimilarity != nil {
		v := *overlay.MinSimilarity
		c.MinSimilarity = &v
	}
	if overlay.WarmWorkers != 0 {
		c.WarmWorkers = overlay.WarmWorkers
	}
}

package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/retry"
)

// RerankPath is the rerank endpoint appended to the configured URL.
const RerankPath = "/v1/rerank"

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Results []struct {
		Index          int      `json:"index"`
		RelevanceScore *float64 `json:"relevance_score"`
	} `json:"results"`
}

// Reranker calls a cross-encoder rerank service.
type Reranker struct {
	c *client
}

// NewReranker creates a Reranker from a finalized Config.
func NewReranker(cfg *Config, metrics *Metrics, logger *slog.Logger) *Reranker {
	return &Reranker{c: newClient("rerank", RerankPath, cfg, metrics, logger)}
}

// Score returns the cross-encoder relevance of passage to query.
func (r *Reranker) Score(ctx context.Context, query, passage string) (float64, error) {
	var resp rerankResponse
	req := rerankRequest{Model: r.c.model, Query: query, Documents: []string{passage}}
	if err := r.c.post(ctx, req, &resp); err != nil {
		return 0, err
	}
	for _, res := range resp.Results {
		if res.Index == 0 && res.RelevanceScore != nil {
			return *res.RelevanceScore, nil
		}
	}
	return 0, retry.Fatal(fmt.Errorf("rerank: %w: no score for document 0", ErrMalformedResponse))
}

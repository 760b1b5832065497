package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/retry"
)

// EmbedPath is the embedding endpoint appended to the configured URL.
const EmbedPath = "/api/embed"

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embedder calls a text embedding service.
type Embedder struct {
	c *client
}

// NewEmbedder creates an Embedder from a finalized Config.
func NewEmbedder(cfg *Config, metrics *Metrics, logger *slog.Logger) *Embedder {
	return &Embedder{c: newClient("embedding", EmbedPath, cfg, metrics, logger)}
}

// Model returns the configured embedding model, which scopes cache keys.
func (e *Embedder) Model() string {
	return e.c.model
}

// Embed returns the embedding vector of text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	var resp embedResponse
	if err := e.c.post(ctx, embedRequest{Model: e.c.model, Input: text}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, retry.Fatal(fmt.Errorf("embedding: %w: no vectors", ErrMalformedResponse))
	}
	return resp.Embeddings[0], nil
}

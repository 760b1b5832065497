// Package services provides HTTP clients for the external model services: a
// text embedding endpoint, a cross-encoder rerank endpoint and an
// OpenAI-compatible chat completion endpoint. Every call passes through a
// retry.Guard, so throttling and server faults are retried and malformed
// payloads are not.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/retry"
)

// ErrMalformedResponse indicates a service answered 2xx with a payload that
// does not match its contract.
var ErrMalformedResponse = errors.New("malformed service response")

const maxErrorBody = 512

type client struct {
	name   string
	url    string
	model  string
	apiKey string
	http   *http.Client
	guard  *retry.Guard
	logger *slog.Logger
}

func newClient(name, path string, cfg *Config, metrics *Metrics, logger *slog.Logger) *client {
	return &client{
		name:   name,
		url:    endpoint(cfg.URL, path),
		model:  cfg.Model,
		apiKey: cfg.APIKey,
		http:   &http.Client{Timeout: cfg.TimeoutDuration()},
		guard:  retry.New(&cfg.Retry, metrics.observer(name)),
		logger: logger.With("system", name),
	}
}

func endpoint(base, path string) string {
	base = strings.TrimSuffix(base, "/")
	if strings.HasSuffix(base, path) {
		return base
	}
	return base + path
}

// post sends payload as JSON and decodes a 2xx response into out.
func (c *client) post(ctx context.Context, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: marshal request: %w", c.name, err)
	}

	err = c.guard.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return retry.Fatal(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return retry.Transient(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			c.logger.WarnContext(ctx, "service call failed", "status", resp.StatusCode)
			return retry.ClassifyStatus(resp.StatusCode, string(snippet))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return retry.Fatal(fmt.Errorf("%w: %v", ErrMalformedResponse, err))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", c.name, err)
	}
	return nil
}

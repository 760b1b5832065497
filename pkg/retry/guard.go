// Package retry protects calls to external services with a token-bucket rate
// limiter and bounded exponential backoff. Errors are classified as transient
// (retried) or fatal (returned immediately).
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// Attempt results reported to an Observer.
const (
	ResultOK        = "ok"
	ResultTransient = "transient"
	ResultFatal     = "fatal"
)

// Observer receives one call per attempt with the attempt's result.
type Observer func(result string)

// Guard rate-limits and retries calls to one external service.
// A Guard is safe for concurrent use.
type Guard struct {
	limiter     *rate.Limiter
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	observe     Observer
}

// New creates a Guard from a finalized Config. The limiter admits
// RateLimit calls per RateWindow with the configured burst.
func New(cfg *Config, observe Observer) *Guard {
	every := cfg.RateWindowDuration() / time.Duration(cfg.RateLimit)
	if observe == nil {
		observe = func(string) {}
	}
	return &Guard{
		limiter:     rate.NewLimiter(rate.Every(every), cfg.Burst),
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelayDuration(),
		maxDelay:    cfg.MaxDelayDuration(),
		observe:     observe,
	}
}

// Do runs op until it succeeds, returns a non-retryable error, or the attempt
// budget is spent. Every attempt first waits for a limiter token.
func (g *Guard) Do(ctx context.Context, op func(ctx context.Context) error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(g.backoff(), uint64(g.maxAttempts-1)),
		ctx,
	)

	return backoff.Retry(func() error {
		if err := g.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		err := op(ctx)
		switch {
		case err == nil:
			g.observe(ResultOK)
			return nil
		case Retryable(err):
			g.observe(ResultTransient)
			return err
		default:
			g.observe(ResultFatal)
			return backoff.Permanent(err)
		}
	}, policy)
}

func (g *Guard) backoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = g.baseDelay
	b.MaxInterval = g.maxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0.25
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

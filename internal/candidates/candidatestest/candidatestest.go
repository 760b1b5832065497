// Package candidatestest provides a deterministic bag-of-keywords embedder for
// tests that exercise retrieval without an embedding service.
package candidatestest

import (
	"context"
	"strings"
	"sync/atomic"
)

// Axes are the keywords the default embedder counts, one dimension each.
var Axes = []string{
	"반도체", "메모리", "장비", "웨이퍼",
	"소프트웨어", "클라우드",
	"부동산", "임대",
	"지주", "배당", "합병",
	"배터리",
}

// baseline keeps every vector non-zero.
const baseline = 0.05

// Embedder counts keyword occurrences. Err, when set, is returned by every call.
type Embedder struct {
	Axes  []string
	Err   error
	calls atomic.Int64
}

// New returns an Embedder over the default axes.
func New() *Embedder {
	return &Embedder{Axes: Axes}
}

func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if e.Err != nil {
		return nil, e.Err
	}
	vec := make([]float32, len(e.Axes)+1)
	for i, axis := range e.Axes {
		vec[i] = float32(strings.Count(text, axis))
	}
	vec[len(e.Axes)] = baseline
	return vec, nil
}

// Calls returns the number of Embed invocations.
func (e *Embedder) Calls() int64 {
	return e.calls.Load()
}

// Package workflow runs the classification fallback chain for one company:
// external industry code, segment scorer, candidate retrieval with rerank,
// fusion with an optional LLM arbiter, then entity detection and overrides.
// Each stage's outcome is recorded in the decision trace, so a stage that
// returned low confidence stays distinguishable from one that failed.
package workflow

import "errors"

// Sentinel errors for workflow operations.
var (
	ErrInvalidRuntime = errors.New("invalid workflow runtime")
	ErrUnknownCode    = errors.New("decision code not in taxonomy")
)

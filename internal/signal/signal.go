// Package signal defines the closed vocabulary shared by the classification
// stages: which stage produced a signal, how that stage ended, and the
// per-stage outcome recorded in a decision trace.
package signal

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Stage identifies one step of the fallback chain.
type Stage string

const (
	StageExternal  Stage = "EXTERNAL_CODE"
	StageSegment   Stage = "SEGMENT"
	StageEmbedding Stage = "EMBEDDING"
	StageRerank    Stage = "RERANK"
	StageLLM       Stage = "LLM"
	StageOverride  Stage = "OVERRIDE"
)

var stages = []Stage{
	StageExternal,
	StageSegment,
	StageEmbedding,
	StageRerank,
	StageLLM,
	StageOverride,
}

// Stages returns the stages in fallback-chain order.
func Stages() []Stage {
	return stages
}

// Order returns the position of s in the fallback chain, or -1.
func (s Stage) Order() int {
	return slices.Index(stages, s)
}

// UnmarshalJSON rejects unknown stages.
func (s *Stage) UnmarshalJSON(data []byte) error {
	return unmarshalClosed(data, stages, s)
}

// Status records how a stage ended.
type Status string

const (
	// StatusOK means the stage produced a signal at or above its minimum.
	StatusOK Status = "OK"
	// StatusLowConfidence means the stage produced a signal below its minimum.
	StatusLowConfidence Status = "LOW_CONFIDENCE"
	// StatusNoCandidates means the stage ran but nothing cleared its threshold.
	StatusNoCandidates Status = "NO_CANDIDATES"
	// StatusUnavailable means the stage failed after retries.
	StatusUnavailable Status = "UNAVAILABLE"
	// StatusSkipped means the stage had no input or was short-circuited.
	StatusSkipped Status = "SKIPPED"
)

var statuses = []Status{
	StatusOK,
	StatusLowConfidence,
	StatusNoCandidates,
	StatusUnavailable,
	StatusSkipped,
}

// UnmarshalJSON rejects unknown statuses.
func (s *Status) UnmarshalJSON(data []byte) error {
	return unmarshalClosed(data, statuses, s)
}

// ErrorKind classifies why a stage did not produce a usable signal.
type ErrorKind string

const (
	KindNone         ErrorKind = ""
	KindInputMissing ErrorKind = "INPUT_MISSING"
	KindExternal     ErrorKind = "EXTERNAL_FAILURE"
	KindMalformed    ErrorKind = "MALFORMED_RESPONSE"
)

// Outcome is one stage's entry in the decision trace.
type Outcome struct {
	Stage      Stage     `json:"stage"`
	Status     Status    `json:"status"`
	Code       string    `json:"code,omitempty"`
	Confidence float64   `json:"confidence"`
	Kind       ErrorKind `json:"kind,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

// Usable reports whether the outcome carries a code that fusion may weigh.
func (o Outcome) Usable() bool {
	return o.Code != "" && (o.Status == StatusOK || o.Status == StatusLowConfidence)
}

// Unavailable builds the outcome of a stage whose external call failed.
func Unavailable(stage Stage, kind ErrorKind, err error) Outcome {
	return Outcome{
		Stage:  stage,
		Status: StatusUnavailable,
		Kind:   kind,
		Detail: err.Error(),
	}
}

// Skipped builds the outcome of a stage that did not run.
func Skipped(stage Stage, detail string) Outcome {
	return Outcome{Stage: stage, Status: StatusSkipped, Detail: detail}
}

func unmarshalClosed[T ~string](data []byte, allowed []T, dst *T) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v := T(raw)
	if !slices.Contains(allowed, v) {
		return fmt.Errorf("unknown value %q", raw)
	}
	*dst = v
	return nil
}

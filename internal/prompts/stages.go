package prompts

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// Stage identifies an LLM-backed step of the classification workflow.
type Stage string

// StageArbitrate picks one sector from an ambiguous candidate shortlist.
const StageArbitrate Stage = "arbitrate"

// ErrInvalidStage is returned for a stage outside Stages.
var ErrInvalidStage = errors.New("unknown prompt stage")

type prompt struct {
	instructions string
	spec         string
}

var catalog = map[Stage]prompt{
	StageArbitrate: {instructions: arbitrateInstructions, spec: arbitrateSpec},
}

// Stages returns the known stages in name order.
func Stages() []Stage {
	return slices.Sorted(maps.Keys(catalog))
}

// ParseStage returns the stage named s or ErrInvalidStage.
func ParseStage(s string) (Stage, error) {
	if _, ok := catalog[Stage(s)]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidStage, s)
	}
	return Stage(s), nil
}

// Instructions returns the default instructions for stage.
func Instructions(stage Stage) (string, error) {
	p, ok := catalog[stage]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidStage, stage)
	}
	return p.instructions, nil
}

// Spec returns the response specification for stage. Specifications fix the
// output format the workflow parses and are never overridden.
func Spec(stage Stage) (string, error) {
	p, ok := catalog[stage]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidStage, stage)
	}
	return p.spec, nil
}

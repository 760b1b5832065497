// Package prompts holds the system prompts sent to the language model. Each
// stage's prompt is tunable instructions followed by an immutable response
// specification. Instructions can be replaced per stage from configuration.
package prompts

import (
	"context"
	"fmt"
	"strings"
)

// System resolves the prompt text for a stage.
type System interface {
	Instructions(ctx context.Context, stage Stage) (string, error)
	Spec(ctx context.Context, stage Stage) (string, error)
}

type system struct {
	overrides map[Stage]string
}

// New creates a System. overrides maps stage names to replacement
// instructions; unknown stage names are rejected.
func New(overrides map[string]string) (System, error) {
	s := &system{overrides: make(map[Stage]string, len(overrides))}
	for name, text := range overrides {
		stage, err := ParseStage(name)
		if err != nil {
			return nil, fmt.Errorf("override %q: %w", name, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		s.overrides[stage] = text
	}
	return s, nil
}

func (s *system) Instructions(_ context.Context, stage Stage) (string, error) {
	if text, ok := s.overrides[stage]; ok {
		return text, nil
	}
	return Instructions(stage)
}

func (s *system) Spec(_ context.Context, stage Stage) (string, error) {
	return Spec(stage)
}

// Compose builds the system prompt for stage from its instructions and spec.
func Compose(ctx context.Context, ps System, stage Stage) (string, error) {
	instructions, err := ps.Instructions(ctx, stage)
	if err != nil {
		return "", fmt.Errorf("load instructions for %s: %w", stage, err)
	}

	spec, err := ps.Spec(ctx, stage)
	if err != nil {
		return "", fmt.Errorf("load spec for %s: %w", stage, err)
	}

	var sb strings.Builder
	sb.WriteString(instructions)
	sb.WriteString("\n\n")
	sb.WriteString(spec)
	return sb.String(), nil
}

// Package arbiter asks a language model to choose between the shortlisted
// sector candidates when the deterministic stages disagree or lack confidence.
// Replies must be strict JSON naming one of the offered codes; anything else
// yields the deterministic fallback decision.
package arbiter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kaptinlin/jsonschema"

	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/candidates"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/prompts"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/taxonomy"
	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/formatting"
)

var (
	// ErrInvalidDecision indicates the model's reply failed to parse, failed
	// the response schema, or named a code that was not offered.
	ErrInvalidDecision = errors.New("invalid arbiter decision")
	// ErrNoCandidates indicates Decide was called with an empty shortlist.
	ErrNoCandidates = errors.New("no candidates to arbitrate")
)

const maxTextRunes = 4000

const decisionSchema = `{
  "type": "object",
  "required": ["code", "confidence", "rationale"],
  "properties": {
    "code": {"type": "string", "minLength": 1},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "rationale": {"type": "string"}
  }
}`

// Completer sends a system prompt and a user prompt to a chat model.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// Decision is the arbiter's choice. Fallback decisions take the top offered
// candidate with zero confidence.
type Decision struct {
	Code       string  `json:"code"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale,omitempty"`
	Fallback   bool    `json:"fallback"`
}

type option struct {
	Code   string  `json:"code"`
	Label  string  `json:"label"`
	Detail string  `json:"detail"`
	Score  float64 `json:"score"`
}

type request struct {
	Company    string   `json:"company"`
	Candidates []option `json:"candidates"`
}

// Arbiter turns a candidate shortlist into one decision.
type Arbiter struct {
	llm     Completer
	prompts prompts.System
	tax     *taxonomy.Taxonomy
	schema  *jsonschema.Schema
	logger  *slog.Logger
}

// New creates an Arbiter.
func New(llm Completer, ps prompts.System, tax *taxonomy.Taxonomy, logger *slog.Logger) (*Arbiter, error) {
	schema, err := jsonschema.NewCompiler().Compile([]byte(decisionSchema))
	if err != nil {
		return nil, fmt.Errorf("compile decision schema: %w", err)
	}
	return &Arbiter{
		llm:     llm,
		prompts: ps,
		tax:     tax,
		schema:  schema,
		logger:  logger.With("system", "arbiter"),
	}, nil
}

// Decide asks the model to choose among cands, which must be ordered best
// first. On any failure it returns the fallback decision together with the
// error so callers can record why the model's answer was not used.
func (a *Arbiter) Decide(ctx context.Context, text string, cands []candidates.Candidate) (Decision, error) {
	if len(cands) == 0 {
		return Decision{}, ErrNoCandidates
	}
	fallback := Decision{Code: cands[0].Code, Fallback: true}

	system, err := prompts.Compose(ctx, a.prompts, prompts.StageArbitrate)
	if err != nil {
		return fallback, err
	}

	prompt, err := a.userPrompt(text, cands)
	if err != nil {
		return fallback, err
	}

	reply, err := a.llm.Complete(ctx, system, prompt)
	if err != nil {
		a.logger.WarnContext(ctx, "arbiter call failed", "error", err)
		return fallback, err
	}

	d, err := a.parse(reply, cands)
	if err != nil {
		a.logger.WarnContext(ctx, "arbiter reply rejected", "error", err)
		return fallback, err
	}
	return d, nil
}

func (a *Arbiter) userPrompt(text string, cands []candidates.Candidate) (string, error) {
	req := request{
		Company:    truncate(text, maxTextRunes),
		Candidates: make([]option, 0, len(cands)),
	}
	for _, c := range cands {
		node, _ := a.tax.Node(c.Code)
		req.Candidates = append(req.Candidates, option{
			Code:   c.Code,
			Label:  node.Label,
			Detail: node.DetailText(),
			Score:  c.Score,
		})
	}

	data, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal arbiter request: %w", err)
	}
	return string(data), nil
}

func (a *Arbiter) parse(reply string, cands []candidates.Candidate) (Decision, error) {
	raw, err := formatting.Parse[json.RawMessage](reply)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrInvalidDecision, err)
	}

	if result := a.schema.ValidateJSON(raw); !result.IsValid() {
		return Decision{}, fmt.Errorf("%w: schema validation failed: %v", ErrInvalidDecision, result.Errors)
	}

	var d Decision
	if err := json.Unmarshal(raw, &d); err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrInvalidDecision, err)
	}
	d.Fallback = false

	code := a.tax.Canonical(d.Code)
	for _, c := range cands {
		if c.Code == code {
			d.Code = code
			return d, nil
		}
	}
	return Decision{}, fmt.Errorf("%w: code %q was not offered", ErrInvalidDecision, d.Code)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

package workflow

import (
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/candidates"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/companies"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/fusion"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/segments"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/signal"
)

// State accumulates the signals of one company as it moves through the chain.
type State struct {
	Company   companies.Company
	Text      string
	TextRunes int
	Hash      string
	Segments  segments.Result

	External  fusion.Signal
	Rule      fusion.Signal
	Embedding fusion.Signal
	LLM       fusion.Signal

	// Retrieved is the generator shortlist before reranking.
	Retrieved []candidates.Candidate

	Decision fusion.Decision
	Trace    []signal.Outcome
}

func newState(rt *Runtime, c companies.Company) *State {
	return &State{
		Company:   c,
		Text:      c.Text(),
		TextRunes: c.TextRunes(),
		Hash:      c.Hash(rt.Taxonomy.Version()),
		Segments:  rt.Segments.Score(c.PositiveSegments()),
	}
}

func (s *State) record(o signal.Outcome) {
	s.Trace = append(s.Trace, o)
}

// unavailable returns the first stage that failed after retries.
func (s *State) unavailable() (signal.Stage, bool) {
	for _, o := range s.Trace {
		if o.Status == signal.StatusUnavailable {
			return o.Stage, true
		}
	}
	return "", false
}

// corroborated reports whether the decision rests on a stage that cleared
// its own minimum or on at least two fused signals. A lone signal below its
// stage minimum is never enough, whatever the fused confidence.
func (s *State) corroborated(cfg fusion.Config) bool {
	_, external := s.External.Top()
	_, embedding := s.Embedding.Top()
	_, llm := s.LLM.Top()
	switch {
	case s.External.Available() && external >= cfg.ExternalMin,
		s.Segments.Mapped() && s.Segments.Confidence() >= cfg.RuleMin,
		s.Embedding.Available() && embedding >= cfg.EmbeddingMin,
		s.LLM.Available() && llm >= cfg.FusionMin:
		return true
	}

	fused := 0
	for _, sig := range []fusion.Signal{s.Rule, s.Embedding, s.LLM} {
		if sig.Available() {
			fused++
		}
	}
	return fused >= 2
}

// shortlist is every code any stage proposed, with its best score, best
// first. It is what the arbiter may choose from.
func (s *State) shortlist() []candidates.Candidate {
	best := make(map[string]candidates.Candidate)
	add := func(c candidates.Candidate) {
		if prev, ok := best[c.Code]; !ok || c.Score > prev.Score {
			best[c.Code] = c
		}
	}
	for _, c := range s.Retrieved {
		add(c)
	}
	for _, sig := range []fusion.Signal{s.Embedding, s.Rule} {
		for code, score := range sig.Scores {
			add(candidates.Candidate{Code: code, Score: score, Stage: sig.Stage})
		}
	}

	out := make([]candidates.Candidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	candidates.Sort(out)
	return out
}

func signalOf(stage signal.Stage, cands []candidates.Candidate) fusion.Signal {
	scores := make(map[string]float64, len(cands))
	for _, c := range cands {
		scores[c.Code] = max(scores[c.Code], c.Score)
	}
	return fusion.Signal{Stage: stage, Scores: scores}
}

// merge keeps the higher score per code and tags the result with stage.
func merge(stage signal.Stage, signals ...fusion.Signal) fusion.Signal {
	scores := make(map[string]float64)
	for _, sig := range signals {
		for code, v := range sig.Scores {
			if prev, ok := scores[code]; !ok || v > prev {
				scores[code] = v
			}
		}
	}
	if len(scores) == 0 {
		return fusion.Signal{}
	}
	return fusion.Signal{Stage: stage, Scores: scores}
}

func scored(stage signal.Stage, code string, confidence, minimum float64) signal.Outcome {
	status := signal.StatusOK
	if confidence < minimum {
		status = signal.StatusLowConfidence
	}
	return signal.Outcome{Stage: stage, Status: status, Code: code, Confidence: confidence}
}

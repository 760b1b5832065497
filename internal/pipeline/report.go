package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/classifications"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/graph"
)

// Outcome is what happened to one company in a run.
type Outcome string

const (
	OutcomeClassified    Outcome = Outcome(classifications.StatusClassified)
	OutcomeHold          Outcome = Outcome(classifications.StatusHold)
	OutcomeNotClassified Outcome = Outcome(classifications.StatusNotClassified)
	// OutcomeUnchanged means the stored result already matched the input hash.
	OutcomeUnchanged Outcome = "UNCHANGED"
	OutcomeFailed    Outcome = "FAILED"
	// OutcomeSkipped means the run was cancelled before the company was submitted.
	OutcomeSkipped Outcome = "SKIPPED"
)

// Phase names the step where a company failed.
type Phase string

const (
	PhaseValidate Phase = "validate"
	PhaseLookup   Phase = "lookup"
	PhaseClassify Phase = "classify"
	PhasePersist  Phase = "persist"
	PhaseEdges    Phase = "edges"
	PhaseLedger   Phase = "ledger"
)

// Failure is one isolated error. The run continues past it.
type Failure struct {
	CompanyID string `json:"company_id,omitempty"`
	Report    string `json:"report,omitempty"`
	Phase     Phase  `json:"phase"`
	Error     string `json:"error"`
}

// ReportCounts tallies insight reports by ledger verdict.
type ReportCounts struct {
	New  int `json:"new"`
	Seen int `json:"seen"`
}

// Report summarizes one batch run.
type Report struct {
	RunID           uuid.UUID              `json:"run_id"`
	TaxonomyVersion string                 `json:"taxonomy_version"`
	StartedAt       time.Time              `json:"started_at"`
	FinishedAt      time.Time              `json:"finished_at"`
	Duration        string                 `json:"duration"`
	Companies       int                    `json:"companies"`
	Outcomes        map[Outcome]int        `json:"outcomes"`
	Edges           map[graph.Outcome]int  `json:"edges"`
	Relations       map[graph.Relation]int `json:"relations"`
	Insights        ReportCounts           `json:"insights"`
	Failures        []Failure              `json:"failures"`
	Cancelled       bool                   `json:"cancelled,omitempty"`
	Archive         string                 `json:"archive,omitempty"`

	mu sync.Mutex
}

func newReport(version string, companies int, started time.Time) *Report {
	return &Report{
		RunID:           uuid.New(),
		TaxonomyVersion: version,
		StartedAt:       started,
		Companies:       companies,
		Outcomes:        make(map[Outcome]int),
		Edges:           make(map[graph.Outcome]int),
		Relations:       make(map[graph.Relation]int),
		Failures:        []Failure{},
	}
}

func (r *Report) outcome(o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Outcomes[o]++
}

func (r *Report) edge(rel graph.Relation, o graph.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Edges[o]++
	if o != graph.OutcomeNoop {
		r.Relations[rel]++
	}
}

func (r *Report) insight(seen bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if seen {
		r.Insights.Seen++
	} else {
		r.Insights.New++
	}
}

func (r *Report) fail(f Failure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Failures = append(r.Failures, f)
}

// cancel marks the run cancelled with skipped companies never submitted.
func (r *Report) cancel(skipped int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if skipped > 0 {
		r.Outcomes[OutcomeSkipped] += skipped
	}
	r.Cancelled = true
}

func (r *Report) finish(at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FinishedAt = at
	r.Duration = at.Sub(r.StartedAt).Round(time.Millisecond).String()
}

// Failed reports whether any company hit an error.
func (r *Report) Failed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Failures) > 0
}

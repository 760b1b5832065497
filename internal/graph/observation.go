package graph

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/fingerprint"
)

// Observation is one piece of evidence for a relation between two nodes.
type Observation struct {
	Source     string
	Target     string
	Relation   Relation
	SourceID   string
	Alignment  Alignment
	Weight     float64
	Rationale  string
	ObservedAt time.Time
}

// EdgeID is the id of the edge o supports.
func (o Observation) EdgeID() string {
	return EdgeID(o.Source, o.Target, o.Relation)
}

// Fingerprint identifies the observation within its edge. Observation time
// and weight are excluded so a replay of the same fact matches.
func (o Observation) Fingerprint() string {
	return fingerprint.MustDigest([]string{o.EdgeID(), o.SourceID, string(o.Alignment), o.Rationale})
}

// Validate checks required fields and closed enumerations.
func (o Observation) Validate() error {
	switch {
	case strings.TrimSpace(o.Source) == "":
		return fmt.Errorf("%w: source required", ErrInvalidObservation)
	case strings.TrimSpace(o.Target) == "":
		return fmt.Errorf("%w: target required", ErrInvalidObservation)
	case strings.TrimSpace(o.SourceID) == "":
		return fmt.Errorf("%w: source id required", ErrInvalidObservation)
	}
	if _, err := ParseRelation(string(o.Relation)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidObservation, err)
	}
	if _, err := ParseAlignment(string(o.Alignment)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidObservation, err)
	}
	if math.IsNaN(o.Weight) || o.Weight < 0 || o.Weight > 1 {
		return fmt.Errorf("%w: weight %g outside [0,1]", ErrInvalidObservation, o.Weight)
	}
	return nil
}

// Apply folds o into current and returns the new edge state with the
// outcome. A nil edge is returned with OutcomeNoop when nothing changes.
// current is never modified. capacity bounds the live evidence layer.
func Apply(current *Edge, o Observation, capacity int, now time.Time) (*Edge, Outcome) {
	capacity = max(capacity, 1)
	observed := o.ObservedAt
	if observed.IsZero() {
		observed = now
	}
	ev := Evidence{
		Fingerprint: o.Fingerprint(),
		SourceID:    o.SourceID,
		Alignment:   o.Alignment,
		Weight:      o.Weight,
		Rationale:   o.Rationale,
		ObservedAt:  observed,
	}

	if current == nil {
		return &Edge{
			ID:           o.EdgeID(),
			Source:       o.Source,
			Target:       o.Target,
			Relation:     o.Relation,
			Weight:       o.Weight,
			Observations: 1,
			Evidence:     []Evidence{ev},
			CreatedAt:    now,
			UpdatedAt:    now,
		}, OutcomeInserted
	}

	for _, live := range current.Evidence {
		if live.Fingerprint == ev.Fingerprint {
			return nil, OutcomeNoop
		}
	}
	if current.Rollup.has(ev.Fingerprint) {
		return nil, OutcomeNoop
	}

	next := current.Clone()
	outcome := OutcomeAppended

	if len(next.Evidence) >= capacity {
		keep := capacity - 1
		evict := len(next.Evidence) - keep
		if next.Rollup == nil {
			next.Rollup = &Rollup{}
		}
		next.Rollup.absorb(next.Evidence[:evict])
		next.Evidence = slices.Clone(next.Evidence[evict:])
		outcome = OutcomeEvicted
	}

	next.Evidence = append(next.Evidence, ev)
	next.Observations++
	next.Weight += (o.Weight - next.Weight) / float64(next.Observations)
	next.UpdatedAt = now
	return next, outcome
}

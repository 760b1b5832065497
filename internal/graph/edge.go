// Package graph materializes classification and insight observations as
// knowledge-graph edges. Edge ids are content-addressed over
// (source, target, relation) and every observation carries a fingerprint, so
// replaying the same facts never double-counts evidence. Each edge keeps a
// bounded evidence layer; older items are compacted into a rollup.
package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/fingerprint"
)

var (
	// ErrNotFound indicates no edge exists with the requested id.
	ErrNotFound = errors.New("edge not found")
	// ErrInvalidObservation indicates an observation is missing required fields.
	ErrInvalidObservation = errors.New("invalid observation")
	// ErrContention indicates an edge write kept conflicting with concurrent writers.
	ErrContention = errors.New("edge write contention")
)

// Relation is the type of an edge.
type Relation string

const (
	RelationBelongsToSector Relation = "BELONGS_TO_SECTOR"
	RelationHasEntityType   Relation = "HAS_ENTITY_TYPE"
	RelationDrivenBy        Relation = "DRIVEN_BY"
	RelationSuppliesTo      Relation = "SUPPLIES_TO"
	RelationCompetesWith    Relation = "COMPETES_WITH"
)

var relations = []Relation{
	RelationBelongsToSector,
	RelationHasEntityType,
	RelationDrivenBy,
	RelationSuppliesTo,
	RelationCompetesWith,
}

// Relations returns every relation type.
func Relations() []Relation {
	return relations
}

// ParseRelation validates s as a relation type.
func ParseRelation(s string) (Relation, error) {
	return parseClosed(s, relations, "relation")
}

// UnmarshalJSON rejects unknown relations.
func (r *Relation) UnmarshalJSON(data []byte) error {
	return unmarshalClosed(data, relations, "relation", r)
}

// Alignment is how an observation relates to the edge it supports.
type Alignment string

const (
	AlignmentAligned  Alignment = "ALIGNED"
	AlignmentPartial  Alignment = "PARTIAL"
	AlignmentConflict Alignment = "CONFLICT"
)

var alignments = []Alignment{AlignmentAligned, AlignmentPartial, AlignmentConflict}

// ParseAlignment validates s as an alignment.
func ParseAlignment(s string) (Alignment, error) {
	return parseClosed(s, alignments, "alignment")
}

// UnmarshalJSON rejects unknown alignments.
func (a *Alignment) UnmarshalJSON(data []byte) error {
	return unmarshalClosed(data, alignments, "alignment", a)
}

// Outcome is the terminal state of one materialization.
type Outcome string

const (
	// OutcomeInserted means a new edge was created.
	OutcomeInserted Outcome = "INSERTED"
	// OutcomeAppended means evidence was appended to an existing edge.
	OutcomeAppended Outcome = "APPENDED"
	// OutcomeEvicted means evidence was appended after compacting older items.
	OutcomeEvicted Outcome = "EVICTED"
	// OutcomeNoop means the observation was already recorded.
	OutcomeNoop Outcome = "NOOP"
)

// Outcomes returns every outcome.
func Outcomes() []Outcome {
	return []Outcome{OutcomeInserted, OutcomeAppended, OutcomeEvicted, OutcomeNoop}
}

// Evidence is one provenance record in an edge's evidence layer.
type Evidence struct {
	Fingerprint string    `json:"fingerprint"`
	SourceID    string    `json:"source_id"`
	Alignment   Alignment `json:"alignment"`
	Weight      float64   `json:"weight"`
	Rationale   string    `json:"rationale,omitempty"`
	ObservedAt  time.Time `json:"observed_at"`
}

// Rollup summarizes evidence compacted out of the live layer.
type Rollup struct {
	Count         int               `json:"count"`
	WeightSum     float64           `json:"weight_sum"`
	SourceIDs     []string          `json:"source_ids"`
	Alignments    map[Alignment]int `json:"alignments"`
	Fingerprints  []string          `json:"fingerprints"`
	FirstObserved time.Time         `json:"first_observed"`
	LastObserved  time.Time         `json:"last_observed"`
}

func (r *Rollup) absorb(items []Evidence) {
	if r.Alignments == nil {
		r.Alignments = make(map[Alignment]int)
	}
	for _, ev := range items {
		if r.Count == 0 || ev.ObservedAt.Before(r.FirstObserved) {
			r.FirstObserved = ev.ObservedAt
		}
		if ev.ObservedAt.After(r.LastObserved) {
			r.LastObserved = ev.ObservedAt
		}
		r.Count++
		r.WeightSum += ev.Weight
		r.Alignments[ev.Alignment]++
		r.Fingerprints = insertSorted(r.Fingerprints, ev.Fingerprint)
		r.SourceIDs = insertSorted(r.SourceIDs, ev.SourceID)
	}
}

func (r *Rollup) has(fp string) bool {
	if r == nil {
		return false
	}
	_, found := slices.BinarySearch(r.Fingerprints, fp)
	return found
}

func (r *Rollup) clone() *Rollup {
	if r == nil {
		return nil
	}
	c := *r
	c.SourceIDs = slices.Clone(r.SourceIDs)
	c.Fingerprints = slices.Clone(r.Fingerprints)
	c.Alignments = make(map[Alignment]int, len(r.Alignments))
	for k, v := range r.Alignments {
		c.Alignments[k] = v
	}
	return &c
}

// Edge is a materialized relation with its evidence.
type Edge struct {
	ID           string     `json:"id"`
	Source       string     `json:"source"`
	Target       string     `json:"target"`
	Relation     Relation   `json:"relation"`
	Weight       float64    `json:"weight"`
	Observations int        `json:"observations"`
	Evidence     []Evidence `json:"evidence"`
	Rollup       *Rollup    `json:"rollup,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Clone returns a deep copy of e.
func (e *Edge) Clone() *Edge {
	if e == nil {
		return nil
	}
	c := *e
	c.Evidence = slices.Clone(e.Evidence)
	c.Rollup = e.Rollup.clone()
	return &c
}

// Covered returns the number of distinct observations the edge accounts for:
// live evidence plus rolled-up evidence.
func (e *Edge) Covered() int {
	n := len(e.Evidence)
	if e.Rollup != nil {
		n += e.Rollup.Count
	}
	return n
}

// EdgeID is the content address of an edge.
func EdgeID(source, target string, relation Relation) string {
	return fingerprint.MustDigest([]string{source, target, string(relation)})
}

func insertSorted(s []string, v string) []string {
	i, found := slices.BinarySearch(s, v)
	if found {
		return s
	}
	return slices.Insert(s, i, v)
}

func parseClosed[T ~string](s string, allowed []T, what string) (T, error) {
	v := T(s)
	if !slices.Contains(allowed, v) {
		return "", fmt.Errorf("unknown %s %q", what, s)
	}
	return v, nil
}

func unmarshalClosed[T ~string](data []byte, allowed []T, what string, dst *T) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	v, err := parseClosed(raw, allowed, what)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

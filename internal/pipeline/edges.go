package pipeline

import (
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/classifications"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/companies"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/entity"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/graph"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/reports"
)

// SourceID is the evidence source of the edges derived from a result.
func SourceID(r *classifications.Result) string {
	return "classification:" + r.InputHash
}

// Observations derives the classification edges of r: the sector edge for a
// classified company and the entity-type edge for a non-operating archetype.
func Observations(r *classifications.Result) []graph.Observation {
	var out []graph.Observation

	if r.Status == classifications.StatusClassified && r.Codes != nil {
		out = append(out, graph.Observation{
			Source:     r.CompanyID,
			Target:     r.Codes.Deepest(),
			Relation:   graph.RelationBelongsToSector,
			SourceID:   SourceID(r),
			Alignment:  alignment(r),
			Weight:     r.Confidence,
			Rationale:  string(r.Method),
			ObservedAt: r.ClassifiedAt,
		})
	}

	if t := r.Entity.Type; t != "" && t != entity.TypeOperating {
		weight := r.Entity.Score
		if r.Override != nil && r.Override.EntityType == t {
			weight = 1
		}
		out = append(out, graph.Observation{
			Source:     r.CompanyID,
			Target:     string(t),
			Relation:   graph.RelationHasEntityType,
			SourceID:   SourceID(r),
			Alignment:  graph.AlignmentAligned,
			Weight:     min(1, max(0, weight)),
			Rationale:  "entity detection",
			ObservedAt: r.ClassifiedAt,
		})
	}
	return out
}

// alignment grades the sector edge: an override that replaced the fused code
// conflicts with the evidence, a resolved signal conflict is partial.
func alignment(r *classifications.Result) graph.Alignment {
	switch {
	case r.Override != nil && r.Override.Replaced != "":
		return graph.AlignmentConflict
	case r.ConflictResolved:
		return graph.AlignmentPartial
	}
	return graph.AlignmentAligned
}

// insight is one distinct report of a batch with every relation any company
// attached to it.
type insight struct {
	report    reports.Report
	companies []string
	obs       []graph.Observation
}

// collectInsights groups the batch's insights by report fingerprint in order
// of first appearance. Companies that fail validation contribute nothing.
func collectInsights(cs []companies.Company) []*insight {
	var out []*insight
	index := make(map[string]*insight)

	for _, c := range cs {
		if c.Validate() != nil {
			continue
		}
		for _, in := range c.Insights {
			fp := in.Report.Fingerprint()
			group, ok := index[fp]
			if !ok {
				group = &insight{report: in.Report}
				index[fp] = group
				out = append(out, group)
			}
			group.companies = append(group.companies, c.ID)
			for _, rel := range in.Relations {
				group.obs = append(group.obs, graph.Observation{
					Source:     c.ID,
					Target:     rel.Target,
					Relation:   rel.Relation,
					SourceID:   in.Report.SourceID(),
					Alignment:  rel.Alignment,
					Weight:     rel.Weight,
					Rationale:  rel.Rationale,
					ObservedAt: in.Report.Date,
				})
			}
		}
	}
	return out
}

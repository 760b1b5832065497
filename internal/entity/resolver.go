package entity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/segments"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/taxonomy"
)

// Subject is the part of a company the resolver inspects.
type Subject struct {
	CompanyID string
	Name      string
	Text      string
}

// Override records a hard override for audit: which rule fired, on what
// condition, what it set and why.
type Override struct {
	RuleID     string    `json:"rule_id"`
	Condition  Condition `json:"condition"`
	Code       string    `json:"code,omitempty"`
	EntityType Type      `json:"entity_type,omitempty"`
	Rationale  string    `json:"rationale"`
	Replaced   string    `json:"replaced,omitempty"`
}

// Resolution is the resolver's output for one company.
type Resolution struct {
	Entity   Detection `json:"entity"`
	Override *Override `json:"override,omitempty"`
}

// Resolver combines archetype detection, the override table and the
// taxonomy's entity-type sectors.
type Resolver struct {
	table  *Table
	tax    *taxonomy.Taxonomy
	logger *slog.Logger
}

// NewResolver creates a Resolver. table may be nil.
func NewResolver(table *Table, tax *taxonomy.Taxonomy, logger *slog.Logger) *Resolver {
	return &Resolver{table: table, tax: tax, logger: logger.With("system", "entity")}
}

// Resolve detects the company's archetype and finds the override that
// applies, if any. A table rule wins over the entity-type sector mapping.
func (r *Resolver) Resolve(ctx context.Context, s Subject, seg segments.Result) Resolution {
	res := Resolution{Entity: Detect(s.Name, s.Text, seg)}

	if rule, ok := r.table.Match(ctx, s.CompanyID, s.Name, res.Entity.Type); ok {
		o := &Override{
			RuleID:     rule.ID,
			Condition:  rule.When,
			Code:       rule.Set.Code,
			EntityType: rule.Set.EntityType,
			Rationale:  rule.Rationale,
		}
		if o.EntityType != "" {
			res.Entity.Type = o.EntityType
			res.Entity.Signals = append(res.Entity.Signals, "override:"+rule.ID)
		}
		if o.Code == "" {
			o.Code = r.sectorFor(res.Entity.Type)
		}
		res.Override = o
		r.logger.DebugContext(ctx, "override matched", "company_id", s.CompanyID, "rule", rule.ID)
		return res
	}

	if code := r.sectorFor(res.Entity.Type); code != "" {
		res.Override = &Override{
			RuleID:    "entity_sector:" + string(res.Entity.Type),
			Condition: Condition{EntityType: res.Entity.Type},
			Code:      code,
			Rationale: fmt.Sprintf("entity type %s is classified as %s", res.Entity.Type, code),
		}
	}
	return res
}

func (r *Resolver) sectorFor(t Type) string {
	if t == "" || t == TypeOperating {
		return ""
	}
	code, _ := r.tax.EntitySector(string(t))
	return code
}

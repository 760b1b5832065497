package classifications

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/entity"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/fusion"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/signal"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/taxonomy"
	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/query"
	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "classification_results", "c").
	Project("id", "ID").
	Project("company_id", "CompanyID").
	Project("taxonomy_version", "TaxonomyVersion").
	Project("input_hash", "InputHash").
	Project("status", "Status").
	Project("method", "Method").
	Project("l1", "L1").
	Project("l2", "L2").
	Project("l3", "L3").
	Project("secondary", "Secondary").
	Project("confidence", "Confidence").
	Project("band", "Band").
	Project("entity_type", "EntityType").
	Project("hold_reason", "HoldReason").
	Project("retry_stage", "RetryStage").
	Project("evidence", "Evidence").
	Project("classified_at", "ClassifiedAt")

var upsertQ = query.
	NewInsert(projection,
		"ID", "CompanyID", "TaxonomyVersion", "InputHash", "Status", "Method",
		"L1", "L2", "L3", "Secondary", "Confidence", "Band", "EntityType",
		"HoldReason", "RetryStage", "Evidence", "ClassifiedAt",
	).
	OnConflictUpdate([]string{"CompanyID", "TaxonomyVersion"},
		"InputHash", "Status", "Method",
		"L1", "L2", "L3", "Secondary", "Confidence", "Band", "EntityType",
		"HoldReason", "RetryStage", "Evidence", "ClassifiedAt",
	).
	Returning("ID").
	Build()

var defaultSort = query.SortField{
	Field:      "ClassifiedAt",
	Descending: true,
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Status", string(StatusHold)).
		WhereEquals("TaxonomyVersion", f.TaxonomyVersion).
		WhereEquals("HoldReason", f.Reason).
		WhereEquals("RetryStage", f.RetryStage)
}

// evidence is the JSONB audit payload of a result row.
type evidence struct {
	EntityScore      float64          `json:"entity_score"`
	EntitySignals    []string         `json:"entity_signals,omitempty"`
	Override         *entity.Override `json:"override,omitempty"`
	ConflictResolved bool             `json:"conflict_resolved"`
	ConflictCodes    []string         `json:"conflict_codes,omitempty"`
	Weights          fusion.Weights   `json:"weights"`
	Trace            []signal.Outcome `json:"trace"`
}

func evidenceOf(r *Result) ([]byte, error) {
	raw, err := json.Marshal(evidence{
		EntityScore:      r.Entity.Score,
		EntitySignals:    r.Entity.Signals,
		Override:         r.Override,
		ConflictResolved: r.ConflictResolved,
		ConflictCodes:    r.ConflictCodes,
		Weights:          r.Weights,
		Trace:            r.Trace,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal evidence: %w", err)
	}
	return raw, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func scanResult(s repository.Scanner) (Result, error) {
	var r Result
	var l1, l2, l3, secondary, reason, retry sql.NullString
	var raw []byte

	err := s.Scan(
		&r.ID,
		&r.CompanyID,
		&r.TaxonomyVersion,
		&r.InputHash,
		&r.Status,
		&r.Method,
		&l1,
		&l2,
		&l3,
		&secondary,
		&r.Confidence,
		&r.Band,
		&r.Entity.Type,
		&reason,
		&retry,
		&raw,
		&r.ClassifiedAt,
	)
	if err != nil {
		return r, err
	}

	if l1.Valid {
		r.Codes = &taxonomy.Codes{L1: l1.String, L2: l2.String, L3: l3.String}
	}
	r.Secondary = secondary.String
	if reason.Valid {
		r.Hold = &Hold{Reason: HoldReason(reason.String), RetryStage: signal.Stage(retry.String)}
	}

	if len(raw) > 0 {
		var ev evidence
		if err := json.Unmarshal(raw, &ev); err != nil {
			return r, fmt.Errorf("unmarshal evidence: %w", err)
		}
		r.Entity.Score = ev.EntityScore
		r.Entity.Signals = ev.EntitySignals
		r.Override = ev.Override
		r.ConflictResolved = ev.ConflictResolved
		r.ConflictCodes = ev.ConflictCodes
		r.Weights = ev.Weights
		r.Trace = ev.Trace
	}
	if r.Trace == nil {
		r.Trace = []signal.Outcome{}
	}
	return r, nil
}

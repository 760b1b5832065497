package graph

import (
	"encoding/json"
	"fmt"

	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/query"
	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "graph_edges", "e").
	Project("id", "ID").
	Project("source_id", "Source").
	Project("target_id", "Target").
	Project("relation", "Relation").
	Project("weight", "Weight").
	Project("observations", "Observations").
	Project("evidence", "Evidence").
	Project("rollup", "Rollup").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var insertQ = query.
	NewInsert(projection,
		"ID", "Source", "Target", "Relation", "Weight", "Observations",
		"Evidence", "Rollup", "CreatedAt", "UpdatedAt",
	).
	OnConflictDoNothing("ID").
	Build()

func scanEdge(s repository.Scanner) (*Edge, error) {
	var e Edge
	var evidenceRaw, rollupRaw []byte

	err := s.Scan(
		&e.ID,
		&e.Source,
		&e.Target,
		&e.Relation,
		&e.Weight,
		&e.Observations,
		&evidenceRaw,
		&rollupRaw,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(evidenceRaw) > 0 {
		if err := json.Unmarshal(evidenceRaw, &e.Evidence); err != nil {
			return nil, fmt.Errorf("unmarshal evidence: %w", err)
		}
	}
	if len(rollupRaw) > 0 {
		if err := json.Unmarshal(rollupRaw, &e.Rollup); err != nil {
			return nil, fmt.Errorf("unmarshal rollup: %w", err)
		}
	}
	if e.Evidence == nil {
		e.Evidence = []Evidence{}
	}
	return &e, nil
}

func marshalLayers(e *Edge) (evidence, rollup []byte, err error) {
	evidence, err = json.Marshal(e.Evidence)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal evidence: %w", err)
	}
	if e.Rollup != nil {
		rollup, err = json.Marshal(e.Rollup)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal rollup: %w", err)
		}
	}
	return evidence, rollup, nil
}

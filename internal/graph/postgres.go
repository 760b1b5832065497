package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/query"
	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/repository"
)

const maxTxAttempts = 5

// errRaced signals that the edge row appeared between the locking read and
// the insert, so the transaction must be replayed against the new row.
var errRaced = errors.New("edge inserted concurrently")

// PostgresStore keeps edges in the graph_edges table. Each Mutate is one
// transaction: the row is read FOR UPDATE, so writers to the same id
// serialize, and a first insert races safely through ON CONFLICT DO NOTHING.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger.With("system", "graph")}
}

func (s *PostgresStore) Find(ctx context.Context, id string) (*Edge, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	e, err := repository.QueryOne(ctx, s.db, q, args, scanEdge)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find edge: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) Mutate(ctx context.Context, id string, fn MutateFunc) error {
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err := s.mutate(ctx, id, fn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, errRaced) && !repository.IsConflict(err) {
			return err
		}
		s.logger.DebugContext(ctx, "edge write conflicted, retrying", "edge_id", id, "attempt", attempt)
	}
	return fmt.Errorf("%w: %s", ErrContention, id)
}

func (s *PostgresStore) mutate(ctx context.Context, id string, fn MutateFunc) error {
	selectQ, args := query.NewBuilder(projection).ForUpdate().BuildSingle("ID", id)

	return repository.InTx(ctx, s.db, func(tx *sql.Tx) error {
		current, err := repository.QueryOne(ctx, tx, selectQ, args, scanEdge)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("lock edge: %w", err)
		}

		next, err := fn(current)
		if err != nil || next == nil {
			return err
		}

		evidence, rollup, err := marshalLayers(next)
		if err != nil {
			return err
		}

		if current == nil {
			return insertEdge(ctx, tx, next, evidence, rollup)
		}
		return updateEdge(ctx, tx, next, evidence, rollup)
	})
}

func insertEdge(ctx context.Context, tx *sql.Tx, e *Edge, evidence, rollup []byte) error {
	inserted, err := repository.ExecAffected(ctx, tx, insertQ,
		e.ID, e.Source, e.Target, string(e.Relation), e.Weight, e.Observations,
		evidence, rollup, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert edge: %w", err)
	}
	if !inserted {
		return errRaced
	}
	return nil
}

func updateEdge(ctx context.Context, tx *sql.Tx, e *Edge, evidence, rollup []byte) error {
	err := repository.ExecExpectOne(ctx, tx, `
		UPDATE graph_edges
		SET weight = $2, observations = $3, evidence = $4, rollup = $5, updated_at = $6
		WHERE id = $1`,
		e.ID, e.Weight, e.Observations, evidence, rollup, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update edge: %w", err)
	}
	return nil
}

package classifications

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/pagination"
	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/query"
	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/repository"
)

// PostgresStore keeps results in the classification_results table, unique on
// (company_id, taxonomy_version).
type PostgresStore struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(db *sql.DB, logger *slog.Logger, cfg pagination.Config) *PostgresStore {
	return &PostgresStore{
		db:         db,
		logger:     logger.With("system", "classifications"),
		pagination: cfg,
	}
}

func (s *PostgresStore) Find(ctx context.Context, companyID, version string) (*Result, error) {
	q, args := query.NewBuilder(projection).
		WhereEquals("CompanyID", companyID).
		WhereEquals("TaxonomyVersion", version).
		BuildSingleOrNull()

	r, err := repository.QueryOne(ctx, s.db, q, args, scanResult)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &r, nil
}

func (s *PostgresStore) Save(ctx context.Context, r *Result) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}

	ev, err := evidenceOf(r)
	if err != nil {
		return err
	}

	var l1, l2, l3 string
	if r.Codes != nil {
		l1, l2, l3 = r.Codes.L1, r.Codes.L2, r.Codes.L3
	}
	var reason, retry string
	if r.Hold != nil {
		reason, retry = string(r.Hold.Reason), string(r.Hold.RetryStage)
	}

	var id uuid.UUID
	err = s.db.QueryRowContext(ctx, upsertQ,
		r.ID, r.CompanyID, r.TaxonomyVersion, r.InputHash, string(r.Status), string(r.Method),
		nullable(l1), nullable(l2), nullable(l3), nullable(r.Secondary), r.Confidence, string(r.Band),
		string(r.Entity.Type), nullable(reason), nullable(retry), ev, r.ClassifiedAt,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("save classification %s: %w", r.CompanyID, err)
	}
	r.ID = id

	s.logger.DebugContext(ctx, "classification saved",
		"company_id", r.CompanyID,
		"status", r.Status,
		"method", r.Method,
	)
	return nil
}

func (s *PostgresStore) ListHolds(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Result], error) {
	page.Normalize(s.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "CompanyID")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := s.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count holds: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, s.db, pageSQL, pageArgs, scanResult)
	if err != nil {
		return nil, fmt.Errorf("query holds: %w", err)
	}

	result := pagination.NewPageResult(items, total, page)
	return &result, nil
}

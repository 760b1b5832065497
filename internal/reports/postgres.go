package reports

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/query"
	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "report_fingerprints", "f").
	Project("fingerprint", "Fingerprint").
	Project("broker", "Broker").
	Project("report_date", "Date").
	Project("title", "Title").
	Project("seen_at", "SeenAt")

var insertQ = query.
	NewInsert(projection, "Fingerprint", "Broker", "Date", "Title", "SeenAt").
	OnConflictDoNothing("Fingerprint").
	Build()

// PostgresLedger keeps fingerprints in the report_fingerprints table. The
// primary key on fingerprint makes concurrent Record calls safe.
type PostgresLedger struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewPostgresLedger creates a PostgresLedger.
func NewPostgresLedger(db *sql.DB, logger *slog.Logger) *PostgresLedger {
	return &PostgresLedger{
		db:     db,
		logger: logger.With("system", "reports"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (l *PostgresLedger) Seen(ctx context.Context, r Report) (bool, error) {
	q, args := query.NewBuilder(projection).
		WhereEquals("Fingerprint", r.Fingerprint()).
		BuildExists()

	var exists bool
	err := l.db.QueryRowContext(ctx, q, args...).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check report: %w", err)
	}
	return exists, nil
}

func (l *PostgresLedger) Record(ctx context.Context, r Report) (bool, error) {
	if err := r.Validate(); err != nil {
		return false, err
	}

	fp := r.Fingerprint()
	inserted, err := repository.ExecAffected(ctx, l.db, insertQ,
		fp, Clean(r.Broker), r.Date.UTC().Format(time.DateOnly), Clean(r.Title), l.now(),
	)
	if err != nil {
		return false, fmt.Errorf("record report: %w", err)
	}

	l.logger.DebugContext(ctx, "report recorded", "broker", r.Broker, "new", inserted)
	return inserted, nil
}

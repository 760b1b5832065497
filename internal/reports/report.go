// Package reports keeps the report-level fingerprint ledger. A report is
// identified by its broker, date, title and cleaned body, independently of
// the evidence fingerprints on graph edges.
package reports

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/fingerprint"
)

// ErrInvalidReport indicates a report without a broker or title.
var ErrInvalidReport = errors.New("invalid report")

// Report is one broker insight report.
type Report struct {
	Broker string    `json:"broker"`
	Date   time.Time `json:"date"`
	Title  string    `json:"title"`
	Body   string    `json:"body"`
}

// Clean collapses runs of whitespace into single spaces and trims the result.
func Clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Fingerprint identifies the report across runs. Formatting differences in
// the body do not change it.
func (r Report) Fingerprint() string {
	return fingerprint.MustDigest([]string{
		Clean(r.Broker),
		r.Date.UTC().Format(time.DateOnly),
		Clean(r.Title),
		Clean(r.Body),
	})
}

// Validate checks the identifying fields.
func (r Report) Validate() error {
	if Clean(r.Broker) == "" || Clean(r.Title) == "" {
		return ErrInvalidReport
	}
	return nil
}

// SourceID is the evidence source id for observations taken from the report.
func (r Report) SourceID() string {
	return "report:" + fingerprint.Short(r.Fingerprint())
}

// Ledger records which reports were already processed.
type Ledger interface {
	// Seen reports whether r was recorded before.
	Seen(ctx context.Context, r Report) (bool, error)
	// Record stores r and reports whether it was new.
	Record(ctx context.Context, r Report) (bool, error)
}

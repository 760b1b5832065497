package classifications

import (
	"context"

	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/pagination"
)

// Store persists results keyed by (company id, taxonomy version).
type Store interface {
	// Find returns the result for the company and version or ErrNotFound.
	Find(ctx context.Context, companyID, version string) (*Result, error)
	// Save validates r and replaces any stored result with the same key.
	// r.ID is set to the id of the stored row.
	Save(ctx context.Context, r *Result) error
	// ListHolds pages through HOLD results, newest first by default.
	ListHolds(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Result], error)
}

// Filters narrows ListHolds. Nil fields are ignored. All fields use exact
// matching.
type Filters struct {
	TaxonomyVersion *string `json:"taxonomy_version,omitempty"`
	Reason          *string `json:"reason,omitempty"`
	RetryStage      *string `json:"retry_stage,omitempty"`
}

func (f Filters) match(r *Result) bool {
	if r.Status != StatusHold || r.Hold == nil {
		return false
	}
	if f.TaxonomyVersion != nil && *f.TaxonomyVersion != r.TaxonomyVersion {
		return false
	}
	if f.Reason != nil && *f.Reason != string(r.Hold.Reason) {
		return false
	}
	if f.RetryStage != nil && *f.RetryStage != string(r.Hold.RetryStage) {
		return false
	}
	return true
}

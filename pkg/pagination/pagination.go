package pagination

import (
	"strings"

	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/query"
)

// PageRequest selects one page of a listing. Zero values take the
// configured defaults once normalized.
type PageRequest struct {
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	Search   *string           `json:"search,omitempty"`
	Sort     []query.SortField `json:"sort,omitempty"`
}

// Normalize clamps the page to at least 1 and the page size to the
// configured bounds.
func (r *PageRequest) Normalize(cfg Config) {
	r.Page = max(r.Page, 1)
	if r.PageSize < 1 {
		r.PageSize = cfg.DefaultPageSize
	}
	r.PageSize = min(r.PageSize, cfg.MaxPageSize)
}

// Offset is the number of items before the page.
func (r PageRequest) Offset() int {
	return (r.Page - 1) * r.PageSize
}

// Bounds returns the [start, end) indexes of the page within total items.
func (r PageRequest) Bounds(total int) (start, end int) {
	start = min(r.Offset(), total)
	end = min(start+r.PageSize, total)
	return start, end
}

// Matches reports whether s contains the search term, ignoring case. A
// request without a search term matches everything.
func (r PageRequest) Matches(s string) bool {
	if r.Search == nil || *r.Search == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(*r.Search))
}

// PageResult holds a page of data along with pagination metadata.
type PageResult[T any] struct {
	Data       []T `json:"data"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

// NewPageResult wraps one page of data fetched for a normalized request.
func NewPageResult[T any](data []T, total int, r PageRequest) PageResult[T] {
	if data == nil {
		data = []T{}
	}

	pages := 1
	if r.PageSize > 0 && total > 0 {
		pages = (total + r.PageSize - 1) / r.PageSize
	}

	return PageResult[T]{
		Data:       data,
		Total:      total,
		Page:       r.Page,
		PageSize:   r.PageSize,
		TotalPages: pages,
	}
}

// Slice pages through items already held in memory. r must be normalized.
func Slice[T any](items []T, r PageRequest) PageResult[T] {
	start, end := r.Bounds(len(items))
	return NewPageResult(items[start:end], len(items), r)
}

package classifications

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/pagination"
)

type key struct {
	company string
	version string
}

// MemoryStore is an in-process Store for tests and dry runs.
type MemoryStore struct {
	mu         sync.RWMutex
	results    map[key]Result
	pagination pagination.Config
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(cfg pagination.Config) *MemoryStore {
	return &MemoryStore{results: make(map[key]Result), pagination: cfg}
}

func (s *MemoryStore) Find(_ context.Context, companyID, version string) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.results[key{companyID, version}]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (s *MemoryStore) Save(_ context.Context, r *Result) error {
	if err := r.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{r.CompanyID, r.TaxonomyVersion}
	if prev, ok := s.results[k]; ok {
		r.ID = prev.ID
	} else if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	s.results[k] = *r
	return nil
}

func (s *MemoryStore) ListHolds(
	_ context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Result], error) {
	page.Normalize(s.pagination)

	s.mu.RLock()
	var holds []Result
	for _, r := range s.results {
		if filters.match(&r) && page.Matches(r.CompanyID) {
			holds = append(holds, r)
		}
	}
	s.mu.RUnlock()

	sort.Slice(holds, func(i, j int) bool {
		if !holds[i].ClassifiedAt.Equal(holds[j].ClassifiedAt) {
			return holds[i].ClassifiedAt.After(holds[j].ClassifiedAt)
		}
		return holds[i].CompanyID < holds[j].CompanyID
	})

	result := pagination.Slice(holds, page)
	return &result, nil
}

// Len returns the number of stored results.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}

package graph

import (
	"context"
	"sync"
)

// MutateFunc computes the next state of an edge from its current state,
// which is nil when the edge does not exist. Returning a nil edge skips the
// write. It may be called more than once when a write conflicts.
type MutateFunc func(current *Edge) (*Edge, error)

// Store persists edges with an atomic read-modify-write per edge id.
type Store interface {
	// Mutate runs fn against the committed state of edge id and commits its
	// result atomically. Concurrent Mutate calls on the same id serialize.
	Mutate(ctx context.Context, id string, fn MutateFunc) error
	// Find returns the edge with id or ErrNotFound.
	Find(ctx context.Context, id string) (*Edge, error)
}

// MemoryStore is an in-process Store for tests and dry runs.
type MemoryStore struct {
	mu    sync.Mutex
	edges map[string]*Edge
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{edges: make(map[string]*Edge)}
}

func (s *MemoryStore) Mutate(_ context.Context, id string, fn MutateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := fn(s.edges[id].Clone())
	if err != nil {
		return err
	}
	if next != nil {
		s.edges[id] = next.Clone()
	}
	return nil
}

func (s *MemoryStore) Find(_ context.Context, id string) (*Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.edges[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e.Clone(), nil
}

// Len returns the number of stored edges.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.edges)
}

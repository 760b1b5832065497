// Package storagetest provides an in-memory storage.System for tests.
package storagetest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/lifecycle"
	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/storage"
)

// Memory keeps blobs in a map. A non-nil Err fails every upload.
type Memory struct {
	Err error

	mu    sync.Mutex
	blobs map[string][]byte
}

var _ storage.System = (*Memory)(nil)

// New returns a Memory seeded with blobs.
func New(blobs map[string][]byte) *Memory {
	m := &Memory{blobs: make(map[string][]byte, len(blobs))}
	for k, v := range blobs {
		m.blobs[k] = v
	}
	return m
}

func (m *Memory) Start(*lifecycle.Coordinator) error { return nil }

func (m *Memory) Upload(_ context.Context, key string, r io.Reader, _ string) error {
	if m.Err != nil {
		return m.Err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.blobs == nil {
		m.blobs = make(map[string][]byte)
	}
	m.blobs[key] = data
	return nil
}

func (m *Memory) Download(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[key]
	return ok, nil
}

// Blob returns the stored bytes at key.
func (m *Memory) Blob(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	return data, ok
}

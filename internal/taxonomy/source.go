package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/storage"
)

// Source provides the raw YAML document for a taxonomy version.
type Source interface {
	Open(ctx context.Context, version string) (io.ReadCloser, error)
}

// DirSource reads <dir>/<version>.yaml from the local filesystem.
type DirSource struct {
	Dir string
}

func (s DirSource) Open(_ context.Context, version string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.Dir, version+".yaml"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, version)
	}
	return f, err
}

// BlobSource reads taxonomy/<version>.yaml from blob storage.
type BlobSource struct {
	Storage storage.System
}

// BlobKey returns the storage key of a taxonomy version.
func BlobKey(version string) string {
	return "taxonomy/" + version + ".yaml"
}

func (s BlobSource) Open(ctx context.Context, version string) (io.ReadCloser, error) {
	r, err := s.Storage.Download(ctx, BlobKey(version))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, version)
	}
	return r, err
}

// Load reads and parses a taxonomy version from src. The document's own
// version must match the requested one.
func Load(ctx context.Context, src Source, version string) (*Taxonomy, error) {
	r, err := src.Open(ctx, version)
	if err != nil {
		return nil, fmt.Errorf("open taxonomy %s: %w", version, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy %s: %w", version, err)
	}

	t, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if t.Version() != version {
		return nil, fmt.Errorf("%w: document version %s, requested %s", ErrInvalidTaxonomy, t.Version(), version)
	}
	return t, nil
}

package taxonomy_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/taxonomy"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/taxonomy/taxonomytest"
	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/storage/storagetest"
)

func TestParseFixture(t *testing.T) {
	tax := taxonomytest.New(t)

	assert.Equal(t, taxonomytest.Version, tax.Version())
	assert.Len(t, tax.Nodes(), 14)
}

func TestCanonicalFollowsAliasChain(t *testing.T) {
	tax := taxonomytest.New(t)

	tests := []struct {
		in   string
		want string
	}{
		{"SEMI", "SEMI"},
		{"SEMICON", "SEMI"},
		{"LEGACY_CHIP", "SEMI"},
		{"OLD_MEM", "SEMI_MEM"},
		{"NOPE", "NOPE"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tax.Canonical(tt.in), tt.in)
	}
}

func TestPath(t *testing.T) {
	tax := taxonomytest.New(t)

	codes, err := tax.Path("SEMI_MEM")
	require.NoError(t, err)
	assert.Equal(t, taxonomy.Codes{L1: "TECH", L2: "SEMI", L3: "SEMI_MEM"}, codes)
	assert.Equal(t, "SEMI_MEM", codes.Deepest())

	codes, err = tax.Path("SEMICON")
	require.NoError(t, err)
	assert.Equal(t, taxonomy.Codes{L1: "TECH", L2: "SEMI"}, codes)
	assert.Equal(t, "SEMI", codes.Deepest())

	_, err = tax.Path("NOPE")
	assert.ErrorIs(t, err, taxonomy.ErrUnknownCode)
}

func TestLevel(t *testing.T) {
	tax := taxonomytest.New(t)

	assert.Equal(t, 1, tax.Level("TECH"))
	assert.Equal(t, 2, tax.Level("SEMI"))
	assert.Equal(t, 3, tax.Level("OLD_MEM"))
	assert.Equal(t, 0, tax.Level("NOPE"))
}

func TestIndustryCodeLongestPrefix(t *testing.T) {
	tax := taxonomytest.New(t)

	code, ok := tax.IndustryCode("C2611")
	require.True(t, ok)
	assert.Equal(t, "SEMI", code)

	code, ok = tax.IndustryCode("c2699")
	require.True(t, ok)
	assert.Equal(t, "TECH", code)

	_, ok = tax.IndustryCode("Z99")
	assert.False(t, ok)

	_, ok = tax.IndustryCode("  ")
	assert.False(t, ok)
}

func TestEntitySector(t *testing.T) {
	tax := taxonomytest.New(t)

	code, ok := tax.EntitySector("SPAC")
	require.True(t, ok)
	assert.Equal(t, "FIN_SPAC", code)

	_, ok = tax.EntitySector("OPERATING")
	assert.False(t, ok)
}

func TestNodeTexts(t *testing.T) {
	tax := taxonomytest.New(t)

	semi, ok := tax.Node("SEMI")
	require.True(t, ok)
	assert.Contains(t, semi.DetailText(), "집적회로")

	tech, ok := tax.Node("TECH")
	require.True(t, ok)
	assert.Equal(t, "정보기술", tech.ReferenceText())
	assert.Equal(t, "정보기술", tech.DetailText())
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing version", `
nodes:
  - {code: A, level: 1, label: a}
`},
		{"no nodes", `version: v`},
		{"level out of range", `
version: v
nodes:
  - {code: A, level: 4, label: a}
`},
		{"missing parent", `
version: v
nodes:
  - {code: A, level: 2, label: a}
`},
		{"unknown parent", `
version: v
nodes:
  - {code: A, level: 2, parent: X, label: a}
`},
		{"level skip", `
version: v
nodes:
  - {code: A, level: 1, label: a}
  - {code: B, level: 3, parent: A, label: b}
`},
		{"duplicate code", `
version: v
nodes:
  - {code: A, level: 1, label: a}
  - {code: A, level: 1, label: b}
`},
		{"dangling alias", `
version: v
nodes:
  - {code: A, level: 1, label: a}
aliases:
  OLD: GONE
`},
		{"alias cycle", `
version: v
nodes:
  - {code: A, level: 1, label: a}
aliases:
  X: Y
  Y: X
`},
		{"keyword to unknown code", `
version: v
nodes:
  - {code: A, level: 1, label: a}
segment_keywords:
  foo: B
`},
		{"not yaml", `{{{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := taxonomy.Parse([]byte(tt.yaml))
			assert.ErrorIs(t, err, taxonomy.ErrInvalidTaxonomy)
		})
	}
}

func TestLoadFromDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, taxonomytest.Version+".yaml"), []byte(taxonomytest.YAML), 0o644))

	tax, err := taxonomy.Load(context.Background(), taxonomy.DirSource{Dir: dir}, taxonomytest.Version)
	require.NoError(t, err)
	assert.Equal(t, taxonomytest.Version, tax.Version())

	_, err = taxonomy.Load(context.Background(), taxonomy.DirSource{Dir: dir}, "missing")
	assert.ErrorIs(t, err, taxonomy.ErrNotFound)
}

type stubSource struct {
	body string
	err  error
}

func (s stubSource) Open(context.Context, string) (io.ReadCloser, error) {
	if s.err != nil {
		return nil, s.err
	}
	return io.NopCloser(strings.NewReader(s.body)), nil
}

func TestLoadRejectsVersionMismatch(t *testing.T) {
	_, err := taxonomy.Load(context.Background(), stubSource{body: taxonomytest.YAML}, "other")
	assert.ErrorIs(t, err, taxonomy.ErrInvalidTaxonomy)
}

func TestLoadPropagatesSourceError(t *testing.T) {
	boom := errors.New("boom")
	_, err := taxonomy.Load(context.Background(), stubSource{err: boom}, "v")
	assert.ErrorIs(t, err, boom)
}

func TestBlobKey(t *testing.T) {
	assert.Equal(t, "taxonomy/2025.1.yaml", taxonomy.BlobKey("2025.1"))
}

func TestLoadFromBlob(t *testing.T) {
	blobs := storagetest.New(map[string][]byte{
		taxonomy.BlobKey(taxonomytest.Version): []byte(taxonomytest.YAML),
	})
	src := taxonomy.BlobSource{Storage: blobs}

	tax, err := taxonomy.Load(context.Background(), src, taxonomytest.Version)
	require.NoError(t, err)
	assert.Equal(t, taxonomytest.Version, tax.Version())

	_, err = taxonomy.Load(context.Background(), src, "missing")
	assert.ErrorIs(t, err, taxonomy.ErrNotFound)
}

package pagination_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byu0224-0001/fin-put-Backend-sub002/pkg/pagination"
)

func TestConfigFinalize(t *testing.T) {
	cfg := pagination.Config{}
	require.NoError(t, cfg.Finalize(nil))
	assert.Equal(t, pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}, cfg)

	t.Setenv("TEST_PAGE_SIZE", "50")
	t.Setenv("TEST_MAX_PAGE", "200")
	env := &pagination.ConfigEnv{DefaultPageSize: "TEST_PAGE_SIZE", MaxPageSize: "TEST_MAX_PAGE"}

	cfg = pagination.Config{}
	require.NoError(t, cfg.Finalize(env))
	assert.Equal(t, 50, cfg.DefaultPageSize)
	assert.Equal(t, 200, cfg.MaxPageSize)
}

func TestConfigFinalizeIgnoresMalformedEnv(t *testing.T) {
	t.Setenv("TEST_PAGE_SIZE", "many")
	cfg := pagination.Config{}
	require.NoError(t, cfg.Finalize(&pagination.ConfigEnv{DefaultPageSize: "TEST_PAGE_SIZE"}))
	assert.Equal(t, 20, cfg.DefaultPageSize)
}

func TestConfigFinalizeRejectsDefaultAboveMax(t *testing.T) {
	cfg := pagination.Config{DefaultPageSize: 50, MaxPageSize: 10}
	assert.Error(t, cfg.Finalize(nil))
}

func TestConfigMerge(t *testing.T) {
	cfg := pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}
	cfg.Merge(&pagination.Config{MaxPageSize: 500})
	assert.Equal(t, pagination.Config{DefaultPageSize: 20, MaxPageSize: 500}, cfg)
}

func TestNormalize(t *testing.T) {
	cfg := pagination.Config{DefaultPageSize: 20, MaxPageSize: 100}

	tests := []struct {
		name     string
		in       pagination.PageRequest
		page     int
		pageSize int
	}{
		{"zero values", pagination.PageRequest{}, 1, 20},
		{"negative page", pagination.PageRequest{Page: -3, PageSize: 10}, 1, 10},
		{"above max", pagination.PageRequest{Page: 2, PageSize: 1000}, 2, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.in
			r.Normalize(cfg)
			assert.Equal(t, tt.page, r.Page)
			assert.Equal(t, tt.pageSize, r.PageSize)
		})
	}
}

func TestBounds(t *testing.T) {
	tests := []struct {
		page, size, total int
		start, end        int
	}{
		{1, 10, 25, 0, 10},
		{3, 10, 25, 20, 25},
		{4, 10, 25, 25, 25},
		{1, 10, 0, 0, 0},
	}

	for _, tt := range tests {
		r := pagination.PageRequest{Page: tt.page, PageSize: tt.size}
		start, end := r.Bounds(tt.total)
		assert.Equal(t, tt.start, start, "page %d start", tt.page)
		assert.Equal(t, tt.end, end, "page %d end", tt.page)
	}
}

func TestMatches(t *testing.T) {
	term := "ab"
	empty := ""

	assert.True(t, pagination.PageRequest{}.Matches("anything"))
	assert.True(t, pagination.PageRequest{Search: &empty}.Matches("anything"))
	assert.True(t, pagination.PageRequest{Search: &term}.Matches("xABy"))
	assert.False(t, pagination.PageRequest{Search: &term}.Matches("xyz"))
}

func TestNewPageResult(t *testing.T) {
	r := pagination.PageRequest{Page: 2, PageSize: 10}

	res := pagination.NewPageResult([]int{1, 2, 3}, 23, r)
	assert.Equal(t, 3, res.TotalPages)
	assert.Equal(t, 2, res.Page)
	assert.Equal(t, 10, res.PageSize)

	empty := pagination.NewPageResult[int](nil, 0, r)
	assert.NotNil(t, empty.Data)
	assert.Equal(t, 1, empty.TotalPages)
}

func TestSlice(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}

	res := pagination.Slice(items, pagination.PageRequest{Page: 2, PageSize: 2})
	assert.Equal(t, []string{"c", "d"}, res.Data)
	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 3, res.TotalPages)

	res = pagination.Slice(items, pagination.PageRequest{Page: 9, PageSize: 2})
	assert.Empty(t, res.Data)
}

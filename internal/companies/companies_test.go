package companies_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/companies"
	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/graph"
)

func TestText(t *testing.T) {
	c := companies.Company{
		Description: "  메모리 반도체 제조 ",
		Products:    []string{"DRAM", " ", "NAND"},
		Keywords:    []string{"HBM"},
	}

	assert.Equal(t, "메모리 반도체 제조\nDRAM, NAND\nHBM", c.Text())
	assert.Equal(t, len([]rune(c.Text())), c.TextRunes())
}

func TestPositiveSegments(t *testing.T) {
	c := companies.Company{Segments: map[string]float64{"반도체제조": 80, "기타": 0, "조정": -5, " ": 10}}

	assert.Equal(t, map[string]float64{"반도체제조": 80}, c.PositiveSegments())
}

func TestEmpty(t *testing.T) {
	assert.True(t, companies.Company{ID: "1", Name: "x", Segments: map[string]float64{"a": 0}}.Empty())
	assert.False(t, companies.Company{IndustryCode: "C261"}.Empty())
	assert.False(t, companies.Company{Keywords: []string{"DRAM"}}.Empty())
}

func TestHash(t *testing.T) {
	base := companies.Company{
		ID:       "005930",
		Name:     "Samsung Electronics",
		Products: []string{"DRAM"},
		Segments: map[string]float64{"반도체제조": 80, "부동산임대": 20},
	}

	same := base
	same.Segments = map[string]float64{"부동산임대": 20, "반도체제조": 80, "기타": 0}
	same.Insights = []companies.Insight{{}}
	assert.Equal(t, base.Hash("v1"), same.Hash("v1"), "ordering, non-positive segments and insights do not matter")

	assert.NotEqual(t, base.Hash("v1"), base.Hash("v2"))

	changed := base
	changed.Products = []string{"DRAM", "NAND"}
	assert.NotEqual(t, base.Hash("v1"), changed.Hash("v1"))
}

const feed = `{"id":"005930","name":"Samsung Electronics","segments":{"반도체제조":80,"부동산임대":20}}

{"id":"000660","name":"SK hynix","description":"memory","insights":[{"broker":"Hana","date":"2026-05-14T00:00:00Z","title":"HBM","body":"up","relations":[{"relation":"DRIVEN_BY","target":"DRAM_PRICE","alignment":"ALIGNED","weight":0.8}]}]}
`

func TestReadFeed(t *testing.T) {
	got, err := companies.ReadFeed(context.Background(), strings.NewReader(feed))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "005930", got[0].ID)
	require.Len(t, got[1].Insights, 1)
	in := got[1].Insights[0]
	assert.Equal(t, "Hana", in.Broker)
	require.Len(t, in.Relations, 1)
	assert.Equal(t, graph.RelationDrivenBy, in.Relations[0].Relation)
	assert.Equal(t, graph.AlignmentAligned, in.Relations[0].Alignment)
}

func TestReadFeedRejects(t *testing.T) {
	tests := []struct {
		name string
		feed string
	}{
		{"malformed json", `{"id":`},
		{"missing name", `{"id":"1"}`},
		{"unknown relation", `{"id":"1","name":"a","insights":[{"broker":"b","title":"t","relations":[{"relation":"LIKES","target":"x","alignment":"ALIGNED"}]}]}`},
		{"weight out of range", `{"id":"1","name":"a","insights":[{"broker":"b","title":"t","relations":[{"relation":"DRIVEN_BY","target":"x","alignment":"ALIGNED","weight":3}]}]}`},
		{"duplicate id", "{\"id\":\"1\",\"name\":\"a\"}\n{\"id\":\"1\",\"name\":\"b\"}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := companies.ReadFeed(context.Background(), strings.NewReader(tt.feed))
			assert.ErrorIs(t, err, companies.ErrInvalidCompany)
		})
	}
}

func TestReadFeedHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := companies.ReadFeed(ctx, strings.NewReader(feed))
	assert.ErrorIs(t, err, context.Canceled)
}

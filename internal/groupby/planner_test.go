package groupby

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxbase-eu/facetql/internal/fields"
	"github.com/fluxbase-eu/facetql/internal/query"
	"github.com/fluxbase-eu/facetql/internal/queryerr"
	"github.com/fluxbase-eu/facetql/internal/schema"
)

func strPtr(s string) *string { return &s }

// =============================================================================
// Planner Tests
// =============================================================================

func TestPlanner_Strategies(t *testing.T) {
	p := NewPlanner(fields.MustDefault())

	tests := []struct {
		name       string
		entity     string
		groupBy    string
		key        string
		strategy   Strategy
		nested     string
		orderByKey bool
		size       int
	}{
		{"flat terms", "works", "type", "type", StrategyTerms, "", false, 200},
		{"nested authorship attribute", "works", "institutions.country_code", "authorships.institutions.country_code", StrategyNested, "authorships", false, 200},
		{"boolean ordered by key", "works", "is_oa", "open_access.is_oa", StrategyTerms, "", true, 200},
		{"hierarchy level ordered by key", "publishers", "hierarchy_level", "hierarchy_level", StrategyTerms, "", true, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := p.Plan(tt.entity, Request{GroupBy: tt.groupBy}, query.MatchAll{})
			require.NoError(t, err)
			assert.Equal(t, tt.key, plan.Key)
			assert.Equal(t, tt.strategy, plan.Strategy)
			assert.Equal(t, tt.nested, plan.NestedPath)
			assert.Equal(t, tt.orderByKey, plan.OrderByKey)
			assert.Equal(t, tt.size, plan.Size)
			assert.False(t, plan.Filtered)
		})
	}
}

func TestPlanner_Size(t *testing.T) {
	p := NewPlanner(fields.MustDefault())

	for _, raw := range []string{"0", "201", "1000", "-1", "ten", "1.5"} {
		t.Run(raw, func(t *testing.T) {
			_, err := p.Plan("works", Request{GroupBy: "type", Size: raw}, nil)
			require.Error(t, err)
			assert.True(t, queryerr.Is(err, queryerr.CategoryGroupBySize))
			assert.Equal(t, "Group by size must be a number between 1 and 200", err.Error())
		})
	}

	plan, err := p.Plan("works", Request{GroupBy: "type", Size: "10"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 10, plan.Size)
}

func TestPlanner_Options(t *testing.T) {
	p := NewPlanner(fields.MustDefault())

	t.Run("include unknown", func(t *testing.T) {
		plan, err := p.Plan("works", Request{GroupBy: "language:include_unknown"}, nil)
		require.NoError(t, err)
		assert.True(t, plan.IncludeUnknown)
		assert.Equal(t, "language", plan.Key)
	})

	t.Run("unknown option", func(t *testing.T) {
		_, err := p.Plan("works", Request{GroupBy: "language:sideways"}, nil)
		require.Error(t, err)
		assert.True(t, queryerr.Is(err, queryerr.CategoryGrammar))
	})

	t.Run("field without group_by action", func(t *testing.T) {
		_, err := p.Plan("works", Request{GroupBy: "display_name"}, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "display_name is not a valid group_by field.")
	})

	t.Run("search narrows even when empty", func(t *testing.T) {
		scope := query.Term{Path: "type", Value: "article"}
		plan, err := p.Plan("works", Request{GroupBy: "type", Search: strPtr("")}, scope)
		require.NoError(t, err)
		assert.True(t, plan.Filtered)
		assert.Equal(t, scope, plan.Scope)
	})
}

// =============================================================================
// Bucket resolution Tests
// =============================================================================

func testSnapshot(t *testing.T) *schema.Snapshot {
	t.Helper()
	snap, err := schema.NewSnapshot(&schema.Document{Entities: map[string]*schema.Entity{
		"countries": {Values: []schema.Value{
			{ID: "countries/fr", DisplayName: "France"},
			{ID: "countries/gb", DisplayName: "United Kingdom"},
		}},
	}}, "test")
	require.NoError(t, err)
	return snap
}

func TestPlan_Resolve(t *testing.T) {
	p := NewPlanner(fields.MustDefault())
	snap := testSnapshot(t)

	t.Run("caps to size and orders by count", func(t *testing.T) {
		plan, err := p.Plan("works", Request{GroupBy: "type", Size: "10"}, nil)
		require.NoError(t, err)

		var raw []RawBucket
		for i := 0; i < 25; i++ {
			raw = append(raw, RawBucket{Key: fmt.Sprintf("k%02d", i), Count: int64(i)})
		}
		buckets := plan.Resolve(raw, 0, snap)
		require.Len(t, buckets, 10)
		assert.Equal(t, "k24", buckets[0].Key)
		assert.Equal(t, int64(24), buckets[0].Count)
		assert.Equal(t, "k24", buckets[0].KeyDisplayName)
	})

	t.Run("ties broken by key", func(t *testing.T) {
		plan, err := p.Plan("works", Request{GroupBy: "type"}, nil)
		require.NoError(t, err)
		buckets := plan.Resolve([]RawBucket{{"b", 3}, {"a", 3}, {"c", 5}}, 0, snap)
		assert.Equal(t, []string{"c", "a", "b"}, keys(buckets))
	})

	t.Run("order by key", func(t *testing.T) {
		plan, err := p.Plan("works", Request{GroupBy: "is_oa"}, nil)
		require.NoError(t, err)
		buckets := plan.Resolve([]RawBucket{{"true", 10}, {"false", 90}}, 0, snap)
		assert.Equal(t, []string{"false", "true"}, keys(buckets))
	})

	t.Run("display names from value domain", func(t *testing.T) {
		plan, err := p.Plan("works", Request{GroupBy: "institutions.country_code:include_unknown"}, nil)
		require.NoError(t, err)
		buckets := plan.Resolve([]RawBucket{{"FR", 7}, {"xx", 2}}, 4, snap)
		assert.Equal(t, []Bucket{
			{Key: "FR", KeyDisplayName: "France", Count: 7},
			{Key: "xx", KeyDisplayName: "xx", Count: 2},
			{Key: "unknown", KeyDisplayName: "unknown", Count: 4},
		}, buckets)
	})
}

func keys(buckets []Bucket) []string {
	out := make([]string, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, b.Key)
	}
	return out
}

package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAllOf(t *testing.T) {
	a := Term{Path: "a", Value: 1}
	b := Term{Path: "b", Value: 2}

	assert.Equal(t, MatchAll{}, AllOf())
	assert.Equal(t, MatchAll{}, AllOf(nil, MatchAll{}))
	assert.Equal(t, a, AllOf(a, MatchAll{}))
	assert.Equal(t, And{Clauses: []Predicate{a, b}}, AllOf(a, nil, b))
}

func TestAnyOf(t *testing.T) {
	a := Term{Path: "a", Value: 1}
	b := Term{Path: "b", Value: 2}

	assert.Equal(t, a, AnyOf(a))
	assert.Equal(t, Or{Clauses: []Predicate{a, b}}, AnyOf(a, b))
}

func TestWithTieBreak(t *testing.T) {
	t.Run("appends id", func(t *testing.T) {
		keys := WithTieBreak([]SortKey{{Name: "cited_by_count", Path: "cited_by_count", Desc: true}}, "id")
		assert.Equal(t, []SortKey{
			{Name: "cited_by_count", Path: "cited_by_count", Desc: true},
			{Name: "id", Path: "id"},
		}, keys)
	})

	t.Run("no keys sorts by id", func(t *testing.T) {
		assert.Equal(t, []SortKey{{Name: "id", Path: "id"}}, WithTieBreak(nil, "id"))
	})

	t.Run("keeps caller id direction", func(t *testing.T) {
		keys := WithTieBreak([]SortKey{{Name: "id", Path: "id", Desc: true}, {Name: "x", Path: "x"}}, "id")
		assert.Equal(t, []SortKey{{Name: "id", Path: "id", Desc: true}}, keys)
	})

	t.Run("order strings", func(t *testing.T) {
		assert.Equal(t, "desc", SortKey{Desc: true}.Order())
		assert.Equal(t, "asc", SortKey{}.Order())
	})
}

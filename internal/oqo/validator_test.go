package oqo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxbase-eu/facetql/internal/fields"
	"github.com/fluxbase-eu/facetql/internal/queryerr"
	"github.com/fluxbase-eu/facetql/internal/schema"
)

func defaultSnapshot(t *testing.T) *schema.Snapshot {
	t.Helper()
	src := &schema.RegistrySource{Registry: fields.MustDefault()}
	doc, err := src.Fetch(context.Background())
	require.NoError(t, err)
	snap, err := schema.NewSnapshot(doc, src.Name())
	require.NoError(t, err)
	return snap
}

func leaf(column string, value any) *Leaf {
	return &Leaf{ColumnID: column, Value: value}
}

// =============================================================================
// get_rows, columns and sort
// =============================================================================

func TestValidator_Request(t *testing.T) {
	v := NewValidator(defaultSnapshot(t))

	tests := []struct {
		name string
		req  *Request
		msg  string
	}{
		{"works default", &Request{}, ""},
		{"summary", &Request{GetRows: "summary", ShowColumns: []string{"anything"}}, ""},
		{"entity rows", &Request{GetRows: "institutions", SortByColumn: "works_count", SortByOrder: "asc"}, ""},
		{"unknown rows", &Request{GetRows: "planets"}, "planets not a valid entity for get_rows"},
		{"unknown show column", &Request{GetRows: "works", ShowColumns: []string{"display_name", "colour"}}, "works.colour not a valid column"},
		{"unknown sort column", &Request{SortByColumn: "colour"}, "works.colour not a valid sort column"},
		{"bad sort order", &Request{SortByOrder: "up"}, "up not a valid sort_by_order, must be asc or desc"},
		{"nil request", nil, "query object is empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, msg := v.Check(tt.req)
			if tt.msg == "" {
				assert.True(t, ok, msg)
				assert.Empty(t, msg)
				return
			}
			assert.False(t, ok)
			assert.Equal(t, tt.msg, msg)
		})
	}
}

// =============================================================================
// Leaf and branch nodes
// =============================================================================

func TestValidator_Leaves(t *testing.T) {
	v := NewValidator(defaultSnapshot(t))

	tests := []struct {
		name string
		req  *Request
		msg  string
	}{
		{
			name: "valid leaf",
			req:  &Request{FilterWorks: []Node{leaf("publication_year", 2020)}},
		},
		{
			name: "column by alias",
			req:  &Request{FilterWorks: []Node{leaf("institutions.country_code", "fr")}},
		},
		{
			name: "unknown column",
			req:  &Request{FilterWorks: []Node{leaf("colour", "red")}},
			msg:  "works.colour not a valid filter column",
		},
		{
			name: "bare country code is normalized",
			req:  &Request{FilterWorks: []Node{leaf("authorships.institutions.country_code", "FR")}},
		},
		{
			name: "country display name",
			req:  &Request{FilterWorks: []Node{leaf("authorships.institutions.country_code", "france")}},
		},
		{
			name: "country outside domain",
			req:  &Request{FilterWorks: []Node{leaf("authorships.institutions.country_code", "xx")}},
			msg:  "xx not a valid value for countries",
		},
		{
			name: "list value checked per item",
			req: &Request{FilterWorks: []Node{&Leaf{
				ColumnID: "type", Operator: "is in", Value: []any{"article", "napkin"},
			}}},
			msg: "napkin not a valid value for work-types",
		},
		{
			name: "contains skips domain check",
			req: &Request{FilterWorks: []Node{&Leaf{
				ColumnID: "type", Operator: "contains", Value: "art",
			}}},
		},
		{
			name: "null skips domain check",
			req:  &Request{FilterWorks: []Node{leaf("type", nil)}},
		},
		{
			name: "unknown operator",
			req: &Request{FilterWorks: []Node{&Leaf{
				ColumnID: "publication_year", Operator: "is about", Value: 1,
			}}},
			msg: "is about not a valid operator",
		},
		{
			name: "works leaf in filter_aggs",
			req:  &Request{GetRows: "works", FilterAggs: []Node{leaf("publication_year", 2020)}},
			msg:  "works filter cannot be in filter_aggs",
		},
		{
			name: "works subject outside filter_works",
			req: &Request{GetRows: "institutions", FilterAggs: []Node{&Leaf{
				SubjectEntity: "works", ColumnID: "publication_year", Value: 2020,
			}}},
			msg: "works filter cannot be in filter_aggs",
		},
		{
			name: "entity subject inside filter_works",
			req: &Request{GetRows: "institutions", FilterWorks: []Node{&Leaf{
				SubjectEntity: "institutions", ColumnID: "country_code", Value: "fr",
			}}},
			msg: "institutions filter cannot be in filter_works",
		},
		{
			name: "aggs leaf against get_rows entity",
			req: &Request{GetRows: "institutions", FilterAggs: []Node{&Leaf{
				SubjectEntity: "institutions", ColumnID: "country_code", Value: "fr",
			}}},
		},
		{
			name: "aggs column resolves on get_rows",
			req:  &Request{GetRows: "institutions", FilterAggs: []Node{leaf("publication_year", 2020)}},
			msg:  "institutions.publication_year not a valid filter column",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(tt.req)
			if tt.msg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.msg, err.Error())
			_, isQueryErr := queryerr.As(err)
			assert.True(t, isQueryErr)
		})
	}
}

func TestValidator_Branches(t *testing.T) {
	v := NewValidator(defaultSnapshot(t))

	t.Run("nested branches", func(t *testing.T) {
		req := &Request{FilterWorks: []Node{
			&Branch{Join: JoinOr, Filters: []Node{
				leaf("publication_year", 2020),
				&Branch{Join: JoinAnd, Filters: []Node{
					leaf("type", "article"),
					leaf("is_oa", true),
				}},
			}},
		}}
		assert.NoError(t, v.Validate(req))
	})

	t.Run("empty branch", func(t *testing.T) {
		req := &Request{FilterWorks: []Node{&Branch{Join: JoinAnd}}}
		ok, msg := v.Check(req)
		assert.False(t, ok)
		assert.Equal(t, "and branch must contain at least one filter", msg)
	})

	t.Run("bad join", func(t *testing.T) {
		req := &Request{FilterWorks: []Node{&Branch{Join: "xor", Filters: []Node{leaf("type", "article")}}}}
		ok, msg := v.Check(req)
		assert.False(t, ok)
		assert.Equal(t, "xor not a valid join, must be and or or", msg)
	})

	t.Run("error deep in tree short circuits", func(t *testing.T) {
		req := &Request{FilterWorks: []Node{
			&Branch{Join: JoinAnd, Filters: []Node{
				&Branch{Join: JoinOr, Filters: []Node{leaf("colour", "red")}},
				leaf("also_bad", 1),
			}},
		}}
		ok, msg := v.Check(req)
		assert.False(t, ok)
		assert.Equal(t, "works.colour not a valid filter column", msg)
	})
}

// =============================================================================
// Recover mode
// =============================================================================

type mislabeledNode struct{}

func (mislabeledNode) Kind() Kind { return KindBranch }

func TestValidator_WithRecover(t *testing.T) {
	req := &Request{FilterWorks: []Node{mislabeledNode{}}}

	t.Run("panics propagate by default", func(t *testing.T) {
		v := NewValidator(defaultSnapshot(t))
		assert.Panics(t, func() { v.Check(req) })
	})

	t.Run("recover converts panics", func(t *testing.T) {
		v := NewValidator(defaultSnapshot(t), WithRecover())
		ok, msg := v.Check(req)
		assert.False(t, ok)
		assert.Contains(t, msg, "interface conversion")
	})
}

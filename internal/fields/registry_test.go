package fields

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxbase-eu/facetql/internal/queryerr"
)

func TestDefault_Loads(t *testing.T) {
	r, err := Default()
	require.NoError(t, err)
	assert.Equal(t, []string{"authors", "funders", "institutions", "publishers", "sources", "topics", "works"}, r.Entities())

	works, ok := r.Entity("works")
	require.True(t, ok)
	assert.Equal(t, "id", works.IDField)
	assert.Equal(t, "W", works.IDPrefix)
	assert.Equal(t, 200, works.DefaultGroupBySize)
}

func TestLookup_UnderscoreAndHyphenAreInterchangeable(t *testing.T) {
	r := MustDefault()

	for _, entity := range r.Entities() {
		ent, _ := r.Entity(entity)
		for _, spec := range ent.Fields {
			for _, name := range append([]string{spec.Name}, spec.Aliases...) {
				underscored, ok1 := r.Lookup(entity, strings.ReplaceAll(name, "-", "_"))
				hyphenated, ok2 := r.Lookup(entity, strings.ReplaceAll(name, "_", "-"))
				require.True(t, ok1, "%s.%s", entity, name)
				require.True(t, ok2, "%s.%s", entity, name)
				assert.Same(t, underscored, hyphenated, "%s.%s", entity, name)
				assert.Same(t, spec, underscored, "%s.%s", entity, name)
			}
		}
	}
}

func TestLookup_Aliases(t *testing.T) {
	r := MustDefault()

	tests := []struct {
		entity    string
		name      string
		canonical string
	}{
		{"works", "institutions.country_code", "authorships.institutions.country_code"},
		{"works", "institution.country_code", "authorships.institutions.country_code"},
		{"works", "institutions.country-code", "authorships.institutions.country_code"},
		{"works", "is_oa", "open_access.is_oa"},
		{"works", "is-oa", "open_access.is_oa"},
		{"works", "host_venue.issn", "primary_location.source.issn"},
		{"works", "title.search", "display_name.search"},
		{"works", "year", "publication_year"},
		{"authors", "last_known_institution.id", "last_known_institutions.id"},
		{"institutions", "geo.country_code", "country_code"},
	}

	for _, tt := range tests {
		t.Run(tt.entity+"/"+tt.name, func(t *testing.T) {
			spec, ok := r.Lookup(tt.entity, tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.canonical, spec.Name)
		})
	}

	t.Run("case sensitive", func(t *testing.T) {
		_, ok := r.Lookup("works", "Publication_Year")
		assert.False(t, ok)
	})

	t.Run("unknown entity", func(t *testing.T) {
		_, ok := r.Lookup("planets", "id")
		assert.False(t, ok)
	})
}

func TestResolve_UnknownFieldMessage(t *testing.T) {
	r := MustDefault()

	_, err := r.Resolve("works", "foo")
	require.Error(t, err)
	assert.True(t, queryerr.Is(err, queryerr.CategoryFieldResolution))
	assert.True(t, strings.HasPrefix(err.Error(),
		"foo is not a valid field. Valid fields are underscore or hyphenated versions of: abstract.search, authors_count, authorships.author.id, "),
		err.Error())
}

func TestResolveFor_Actions(t *testing.T) {
	r := MustDefault()

	t.Run("sortable field", func(t *testing.T) {
		spec, err := r.ResolveFor("works", "cited-by-count", ActionSort)
		require.NoError(t, err)
		assert.Equal(t, "cited_by_count", spec.Name)
	})

	t.Run("field without sort action", func(t *testing.T) {
		_, err := r.ResolveFor("works", "is_retracted", ActionSort)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is_retracted is not a valid sort field.")
	})

	t.Run("group_by field", func(t *testing.T) {
		spec, err := r.ResolveFor("works", "oa_status", ActionGroupBy)
		require.NoError(t, err)
		assert.Equal(t, "open_access.oa_status", spec.Name)
	})

	t.Run("unknown entity", func(t *testing.T) {
		_, err := r.ResolveFor("planets", "id", ActionFilter)
		require.Error(t, err)
		assert.Equal(t, "planets is not a valid entity", err.Error())
	})
}

func TestDescribeValidFields_Sorted(t *testing.T) {
	r := MustDefault()

	names := r.DescribeValidFields("institutions")
	require.NotEmpty(t, names)
	for i := 1; i < len(names); i++ {
		assert.Less(t, names[i-1], names[i])
	}
	assert.Nil(t, r.DescribeValidFields("planets"))
}

func TestNewRegistry_Defaults(t *testing.T) {
	r, err := NewRegistry(map[string]*Entity{
		"things": {
			Fields: []*Spec{
				{Name: "title.search", Type: TypeSearch, Actions: []Action{ActionFilter}},
				{Name: "size", Type: TypeNumeric, Actions: []Action{ActionFilter}},
			},
		},
	})
	require.NoError(t, err)

	spec, ok := r.Lookup("things", "title.search")
	require.True(t, ok)
	assert.Equal(t, "title.search", spec.BackendPath)
	assert.Equal(t, []string{"title.search"}, spec.SearchPaths)

	ent, _ := r.Entity("things")
	assert.Equal(t, "id", ent.IDField)
	assert.Equal(t, 200, ent.DefaultGroupBySize)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name          string
		doc           string
		errorContains string
	}{
		{
			name:          "no entities",
			doc:           "entities: {}\n",
			errorContains: "defines no entities",
		},
		{
			name: "unknown type",
			doc: `entities:
  works:
    fields:
      - name: x
        type: blob
`,
			errorContains: `unknown type "blob"`,
		},
		{
			name: "alias collision after normalization",
			doc: `entities:
  works:
    fields:
      - name: is_oa
        type: boolean
      - name: open_access.is_oa
        type: boolean
        aliases: [is-oa]
`,
			errorContains: "collides with field is_oa",
		},
		{
			name: "implied operator on term",
			doc: `entities:
  works:
    fields:
      - name: from_type
        type: term
        operator: gte
`,
			errorContains: "implied operator on a non-range type",
		},
		{
			name: "unknown key",
			doc: `entities:
  works:
    colour: red
`,
			errorContains: "failed to decode field registry",
		},
		{
			name: "unknown external scheme",
			doc: `entities:
  works:
    fields:
      - name: arxiv
        type: external_id
        scheme: arxiv
`,
			errorContains: `unknown external id scheme "arxiv"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
		})
	}
}

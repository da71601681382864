package fields

import (
	"fmt"
	"slices"
)

// Type is the filter semantics of a field.
type Type string

const (
	TypeBoolean    Type = "boolean"
	TypeNumeric    Type = "numeric"
	TypeDate       Type = "date"
	TypeDateTime   Type = "datetime"
	TypeTerm       Type = "term"
	TypePhrase     Type = "phrase"
	TypeSearch     Type = "search"
	TypeOpenAlexID Type = "openalex_id"
	TypeExternalID Type = "external_id"
)

var knownTypes = map[Type]bool{
	TypeBoolean:    true,
	TypeNumeric:    true,
	TypeDate:       true,
	TypeDateTime:   true,
	TypeTerm:       true,
	TypePhrase:     true,
	TypeSearch:     true,
	TypeOpenAlexID: true,
	TypeExternalID: true,
}

// IsRange reports whether the type accepts comparison operators and a-b ranges.
func (t Type) IsRange() bool {
	return t == TypeNumeric || t == TypeDate || t == TypeDateTime
}

// AcceptsNull reports whether null and !null literals are meaningful for the type.
func (t Type) AcceptsNull() bool {
	return t != TypeSearch && t != TypePhrase
}

// Action is something a request may do with a field.
type Action string

const (
	ActionFilter  Action = "filter"
	ActionSort    Action = "sort"
	ActionGroupBy Action = "group_by"
)

// Spec describes one canonical field of an entity. Specs are created when a
// Registry is built and must not be modified afterwards.
type Spec struct {
	Name    string   `yaml:"name"`
	Type    Type     `yaml:"type"`
	Aliases []string `yaml:"aliases"`
	Actions []Action `yaml:"actions"`

	// BackendPath is the document path in the search index. Defaults to Name.
	BackendPath string `yaml:"backend_path"`
	// SearchPaths are the full-text fields for TypeSearch.
	SearchPaths []string `yaml:"search_paths"`
	// ValueDomain names the entity whose records this field references.
	ValueDomain string `yaml:"value_domain"`
	IsList      bool   `yaml:"list"`
	// NestedPath is set when the field lives inside a repeated sub-object.
	NestedPath string `yaml:"nested_path"`
	// OrderByKey orders group-by buckets by ascending key instead of count.
	OrderByKey bool `yaml:"order_by_key"`
	// IDPrefix is the OpenAlex id letter for TypeOpenAlexID fields.
	IDPrefix string `yaml:"id_prefix"`
	// Scheme is the external id scheme for TypeExternalID fields.
	Scheme string `yaml:"scheme"`
	// Operator is an implied comparison (gte, lte) for from_/to_ style fields.
	Operator string `yaml:"operator"`
}

// Allows reports whether the field supports the given action.
func (s *Spec) Allows(a Action) bool {
	return slices.Contains(s.Actions, a)
}

func (s *Spec) validate(entity string) error {
	if s.Name == "" {
		return fmt.Errorf("entity %s: field without name", entity)
	}
	if !knownTypes[s.Type] {
		return fmt.Errorf("entity %s: field %s has unknown type %q", entity, s.Name, s.Type)
	}
	if s.Type == TypeExternalID {
		if _, ok := externalSchemes[s.Scheme]; !ok {
			return fmt.Errorf("entity %s: field %s has unknown external id scheme %q", entity, s.Name, s.Scheme)
		}
	}
	switch s.Operator {
	case "", "gte", "lte":
	default:
		return fmt.Errorf("entity %s: field %s has unsupported implied operator %q", entity, s.Name, s.Operator)
	}
	if s.Operator != "" && !s.Type.IsRange() {
		return fmt.Errorf("entity %s: field %s declares an implied operator on a non-range type", entity, s.Name)
	}
	for _, a := range s.Actions {
		if a != ActionFilter && a != ActionSort && a != ActionGroupBy {
			return fmt.Errorf("entity %s: field %s has unknown action %q", entity, s.Name, a)
		}
	}
	return nil
}

// Entity is the field table of one entity.
type Entity struct {
	Name string `yaml:"-"`
	// IDPrefix is the OpenAlex id letter of the entity's own records.
	IDPrefix string `yaml:"id_prefix"`
	// IDField is the unique document key used as the sort tie-breaker.
	IDField            string   `yaml:"id_field"`
	DefaultGroupBySize int      `yaml:"default_group_by_size"`
	SearchPaths        []string `yaml:"search_paths"`
	SelectFields       []string `yaml:"select_fields"`
	Fields             []*Spec  `yaml:"fields"`
}

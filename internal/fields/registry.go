// Package fields holds the per-entity field registry used to resolve filter,
// sort and group-by names to typed field specifications.
package fields

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fluxbase-eu/facetql/internal/queryerr"
)

//go:embed registry.yaml
var defaultRegistry []byte

const defaultGroupBySize = 200

// Registry resolves field names and aliases per entity. A Registry is
// immutable once built and safe for concurrent use.
type Registry struct {
	entities map[string]*entityIndex
	names    []string
}

type entityIndex struct {
	entity *Entity
	lookup map[string]*Spec
}

// NewRegistry builds a registry from entity tables. Every name and alias must
// be unique within its entity after '-' to '_' normalization.
func NewRegistry(entities map[string]*Entity) (*Registry, error) {
	r := &Registry{entities: make(map[string]*entityIndex, len(entities))}

	for key, ent := range entities {
		if ent == nil {
			return nil, fmt.Errorf("entity %s has no definition", key)
		}
		name := normalizeEntity(key)
		ent.Name = name
		if ent.IDField == "" {
			ent.IDField = "id"
		}
		if ent.DefaultGroupBySize == 0 {
			ent.DefaultGroupBySize = defaultGroupBySize
		}

		idx := &entityIndex{entity: ent, lookup: make(map[string]*Spec)}
		for _, spec := range ent.Fields {
			if err := spec.validate(name); err != nil {
				return nil, err
			}
			if spec.BackendPath == "" {
				spec.BackendPath = spec.Name
			}
			if spec.Type == TypeSearch && len(spec.SearchPaths) == 0 {
				spec.SearchPaths = []string{spec.BackendPath}
			}
			for _, alias := range append([]string{spec.Name}, spec.Aliases...) {
				k := normalize(alias)
				if existing, dup := idx.lookup[k]; dup {
					return nil, fmt.Errorf("entity %s: name %q of field %s collides with field %s", name, alias, spec.Name, existing.Name)
				}
				idx.lookup[k] = spec
			}
		}
		r.entities[name] = idx
		r.names = append(r.names, name)
	}
	sort.Strings(r.names)

	return r, nil
}

// Load reads a YAML registry document of the form
// "entities: {name: {fields: [...]}}".
func Load(rd io.Reader) (*Registry, error) {
	var doc struct {
		Entities map[string]*Entity `yaml:"entities"`
	}
	dec := yaml.NewDecoder(rd)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode field registry: %w", err)
	}
	if len(doc.Entities) == 0 {
		return nil, fmt.Errorf("field registry defines no entities")
	}
	return NewRegistry(doc.Entities)
}

// Default returns the registry compiled into the binary.
func Default() (*Registry, error) {
	return Load(bytes.NewReader(defaultRegistry))
}

// MustDefault is Default for tests and static initialization.
func MustDefault() *Registry {
	r, err := Default()
	if err != nil {
		panic(err)
	}
	return r
}

func normalize(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}

// Entities returns the registered entity names in sorted order.
func (r *Registry) Entities() []string {
	return append([]string(nil), r.names...)
}

// Entity returns the field table of an entity.
func (r *Registry) Entity(name string) (*Entity, bool) {
	idx, ok := r.entities[normalizeEntity(name)]
	if !ok {
		return nil, false
	}
	return idx.entity, true
}

// normalizeEntity maps hyphenated entity paths such as "institution-types" to
// the registry key, which keeps the hyphen.
func normalizeEntity(name string) string {
	return strings.ReplaceAll(name, "_", "-")
}

// Lookup finds a field by canonical name or alias. Names are case-sensitive;
// '_' and '-' are interchangeable. Lookup never performs I/O.
func (r *Registry) Lookup(entity, name string) (*Spec, bool) {
	idx, ok := r.entities[normalizeEntity(entity)]
	if !ok {
		return nil, false
	}
	spec, ok := idx.lookup[normalize(name)]
	return spec, ok
}

var notValidMessages = map[Action]string{
	ActionFilter:  "%s is not a valid field. Valid fields are underscore or hyphenated versions of: %s",
	ActionSort:    "%s is not a valid sort field. Valid fields are underscore or hyphenated versions of: %s",
	ActionGroupBy: "%s is not a valid group_by field. Valid fields are underscore or hyphenated versions of: %s",
}

// Resolve finds a filterable field or returns a FieldResolutionError.
func (r *Registry) Resolve(entity, name string) (*Spec, error) {
	return r.ResolveFor(entity, name, ActionFilter)
}

// ResolveFor finds a field supporting the action or returns a FieldResolutionError
// listing the valid names.
func (r *Registry) ResolveFor(entity, name string, action Action) (*Spec, error) {
	if _, ok := r.Entity(entity); !ok {
		return nil, queryerr.FieldResolution("%s is not a valid entity", entity)
	}
	spec, ok := r.Lookup(entity, name)
	if !ok || !spec.Allows(action) {
		return nil, queryerr.FieldResolution(notValidMessages[action], name, strings.Join(r.ValidFields(entity, action), ", "))
	}
	return spec, nil
}

// DescribeValidFields lists the canonical filterable field names of an
// entity in sorted order.
func (r *Registry) DescribeValidFields(entity string) []string {
	return r.ValidFields(entity, ActionFilter)
}

// ValidFields lists canonical names supporting the action, sorted.
func (r *Registry) ValidFields(entity string, action Action) []string {
	ent, ok := r.Entity(entity)
	if !ok {
		return nil
	}
	var names []string
	for _, spec := range ent.Fields {
		if spec.Allows(action) {
			names = append(names, spec.Name)
		}
	}
	sort.Strings(names)
	return names
}

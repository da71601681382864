// Package schema holds the entity schema consulted by the query object
// validator and the group-by planner: per entity, the filterable columns and
// the closed set of values for value-domain entities such as countries.
//
// Schemas are loaded once from a Source into an immutable Snapshot. The
// Cache swaps whole snapshots atomically, so readers never observe a
// partially loaded schema.
package schema

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// Column describes one column of an entity.
type Column struct {
	ID             string   `json:"id" yaml:"id"`
	DisplayName    string   `json:"displayName" yaml:"displayName"`
	AlternateNames []string `json:"alternateNames,omitempty" yaml:"alternateNames,omitempty"`
	Actions        []string `json:"actions,omitempty" yaml:"actions,omitempty"`
	// ObjectEntity names the entity whose records the column's values reference.
	ObjectEntity string `json:"objectEntity,omitempty" yaml:"objectEntity,omitempty"`
	Type         string `json:"type,omitempty" yaml:"type,omitempty"`
	// Field is the registry field the column filters on. Defaults to ID.
	Field string `json:"field,omitempty" yaml:"field,omitempty"`
}

// FieldName returns the registry field name of the column.
func (c *Column) FieldName() string {
	if c.Field != "" {
		return c.Field
	}
	return c.ID
}

// Value is one member of a value domain.
type Value struct {
	ID          string `json:"id" yaml:"id"`
	DisplayName string `json:"display_name" yaml:"display_name"`
}

// Entity is the schema of one entity. Lookups are case-insensitive.
type Entity struct {
	Name    string   `json:"-" yaml:"-"`
	Columns []Column `json:"columns" yaml:"columns"`
	Values  []Value  `json:"values,omitempty" yaml:"values,omitempty"`

	columns  map[string]*Column
	possible map[string]struct{}
	display  map[string]string
}

// Document is the wire form of a schema.
type Document struct {
	Entities map[string]*Entity `json:"entities" yaml:"entities"`
}

// Snapshot is an immutable, fully indexed schema.
type Snapshot struct {
	entities map[string]*Entity
	names    []string
	// Source names where the snapshot was loaded from.
	Source   string
	LoadedAt time.Time
}

// NewSnapshot indexes a schema document. The document must not be modified
// afterwards.
func NewSnapshot(doc *Document, source string) (*Snapshot, error) {
	if doc == nil || len(doc.Entities) == 0 {
		return nil, fmt.Errorf("schema document defines no entities")
	}

	fold := cases.Fold()
	s := &Snapshot{
		entities: make(map[string]*Entity, len(doc.Entities)),
		Source:   source,
		LoadedAt: time.Now(),
	}
	for key, ent := range doc.Entities {
		if ent == nil {
			return nil, fmt.Errorf("schema entity %s has no definition", key)
		}
		name := normalizeEntity(key)
		ent.Name = name
		ent.columns = make(map[string]*Column, len(ent.Columns)*2)
		ent.possible = make(map[string]struct{}, len(ent.Values)*2)
		ent.display = make(map[string]string, len(ent.Values))

		for i := range ent.Columns {
			col := &ent.Columns[i]
			if col.ID == "" {
				return nil, fmt.Errorf("schema entity %s: column without id", name)
			}
			for _, n := range append([]string{col.ID, col.DisplayName}, col.AlternateNames...) {
				if n == "" {
					continue
				}
				k := fold.String(n)
				if _, dup := ent.columns[k]; !dup {
					ent.columns[k] = col
				}
			}
		}
		for _, v := range ent.Values {
			id := fold.String(v.ID)
			ent.possible[id] = struct{}{}
			if v.DisplayName != "" {
				ent.possible[fold.String(v.DisplayName)] = struct{}{}
			}
			ent.display[id] = v.DisplayName
		}

		s.entities[name] = ent
		s.names = append(s.names, name)
	}
	sort.Strings(s.names)
	return s, nil
}

func normalizeEntity(name string) string {
	return strings.ReplaceAll(name, "_", "-")
}

// Entity returns the schema of an entity. '_' and '-' are interchangeable.
func (s *Snapshot) Entity(name string) (*Entity, bool) {
	if s == nil {
		return nil, false
	}
	e, ok := s.entities[normalizeEntity(name)]
	return e, ok
}

// Entities lists the entity names in sorted order.
func (s *Snapshot) Entities() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.names...)
}

// Column resolves a column by id, display name or alternate name.
func (e *Entity) Column(name string) (*Column, bool) {
	c, ok := e.columns[cases.Fold().String(name)]
	return c, ok
}

// PossibleValues returns the case-folded union of the domain's value ids and
// display names. The returned set must not be modified.
func (e *Entity) PossibleValues() map[string]struct{} {
	return e.possible
}

// HasValue reports whether v, case-folded, is a member of the domain.
func (e *Entity) HasValue(v string) bool {
	_, ok := e.possible[cases.Fold().String(NormalizeDomainValue(e.Name, v))]
	if ok {
		return true
	}
	_, ok = e.possible[cases.Fold().String(v)]
	return ok
}

// DisplayName returns the display name of a domain value id.
func (e *Entity) DisplayName(id string) (string, bool) {
	fold := cases.Fold()
	for _, k := range []string{id, NormalizeDomainValue(e.Name, id)} {
		if name, ok := e.display[fold.String(k)]; ok && name != "" {
			return name, true
		}
	}
	return "", false
}

// NormalizeDomainValue prefixes bare country codes with "countries/"; other
// domains are returned unchanged.
func NormalizeDomainValue(domain, v string) string {
	if domain == "countries" && v != "" && !strings.Contains(v, "/") {
		return "countries/" + v
	}
	return v
}

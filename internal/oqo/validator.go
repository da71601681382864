package oqo

import (
	"fmt"
	"strings"

	"github.com/fluxbase-eu/facetql/internal/queryerr"
	"github.com/fluxbase-eu/facetql/internal/schema"
)

const (
	OriginFilterWorks = "filter_works"
	OriginFilterAggs  = "filter_aggs"
)

// operatorKinds maps the leaf operator vocabulary to comparison kinds.
var operatorKinds = map[string]opKind{
	"is":                          {cmp: cmpEq},
	"is not":                      {cmp: cmpEq, negate: true},
	"includes":                    {cmp: cmpEq},
	"does not include":            {cmp: cmpEq, negate: true},
	"contains":                    {cmp: cmpContains},
	"does not contain":            {cmp: cmpContains, negate: true},
	"is in":                       {cmp: cmpIn},
	"is not in":                   {cmp: cmpIn, negate: true},
	">":                           {cmp: cmpGT},
	">=":                          {cmp: cmpGTE},
	"<":                           {cmp: cmpLT},
	"<=":                          {cmp: cmpLTE},
	"is greater than":             {cmp: cmpGT},
	"is greater than or equal to": {cmp: cmpGTE},
	"is less than":                {cmp: cmpLT},
	"is less than or equal to":    {cmp: cmpLTE},
}

type comparison int

const (
	cmpEq comparison = iota
	cmpContains
	cmpIn
	cmpGT
	cmpGTE
	cmpLT
	cmpLTE
)

type opKind struct {
	cmp    comparison
	negate bool
}

// nodeContext is what a node is validated against.
type nodeContext struct {
	rows   string
	origin string
	// entity is the default governing entity of leaves in this section.
	entity string
}

type nodeValidator func(v *Validator, n Node, nc nodeContext) error

var nodeValidators map[Kind]nodeValidator

func init() {
	nodeValidators = map[Kind]nodeValidator{
		KindBranch: (*Validator).validateBranch,
		KindLeaf:   (*Validator).validateLeaf,
	}
}

// Validator checks query objects against one schema snapshot. It performs
// no I/O and is safe for concurrent use.
type Validator struct {
	snapshot *schema.Snapshot
	recover  bool
}

// Option configures a Validator.
type Option func(*Validator)

// WithRecover makes Check report unexpected panics as (false, message)
// instead of propagating them.
func WithRecover() Option {
	return func(v *Validator) {
		v.recover = true
	}
}

// NewValidator returns a validator for snapshot.
func NewValidator(snapshot *schema.Snapshot, opts ...Option) *Validator {
	v := &Validator{snapshot: snapshot}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Check is the non-throwing form of Validate: (true, "") on success,
// (false, message) on the first failure.
func (v *Validator) Check(req *Request) (ok bool, msg string) {
	if v.recover {
		defer func() {
			if r := recover(); r != nil {
				ok, msg = false, fmt.Sprint(r)
			}
		}()
	}
	if err := v.Validate(req); err != nil {
		return false, err.Error()
	}
	return true, ""
}

// Validate returns the first validation failure as a *queryerr.Error.
func (v *Validator) Validate(req *Request) error {
	if req == nil {
		return queryerr.Grammar("query object is empty")
	}
	rows := req.Rows()
	if rows != GetRowsSummary {
		if _, ok := v.snapshot.Entity(rows); !ok {
			return queryerr.FieldResolution("%s not a valid entity for get_rows", rows)
		}
	}

	works := nodeContext{rows: rows, origin: OriginFilterWorks, entity: EntityWorks}
	for _, n := range req.FilterWorks {
		if err := v.validateNode(n, works); err != nil {
			return err
		}
	}
	aggs := nodeContext{rows: rows, origin: OriginFilterAggs, entity: rows}
	for _, n := range req.FilterAggs {
		if err := v.validateNode(n, aggs); err != nil {
			return err
		}
	}

	if rows != GetRowsSummary {
		ent, _ := v.snapshot.Entity(rows)
		for _, c := range req.ShowColumns {
			if _, ok := ent.Column(c); !ok {
				return queryerr.FieldResolution("%s.%s not a valid column", rows, c)
			}
		}
		if req.SortByColumn != "" {
			if _, ok := ent.Column(req.SortByColumn); !ok {
				return queryerr.FieldResolution("%s.%s not a valid sort column", rows, req.SortByColumn)
			}
		}
	}

	switch req.SortByOrder {
	case "", "asc", "desc":
	default:
		return queryerr.Grammar("%s not a valid sort_by_order, must be asc or desc", req.SortByOrder)
	}
	return nil
}

func (v *Validator) validateNode(n Node, nc nodeContext) error {
	if n == nil {
		return queryerr.Grammar("filter node is empty")
	}
	validate, ok := nodeValidators[n.Kind()]
	if !ok {
		return queryerr.Grammar("unknown filter node")
	}
	return validate(v, n, nc)
}

func (v *Validator) validateBranch(n Node, nc nodeContext) error {
	b := n.(*Branch)
	if b.Join != JoinAnd && b.Join != JoinOr {
		return queryerr.Grammar("%s not a valid join, must be and or or", b.Join)
	}
	if len(b.Filters) == 0 {
		return queryerr.Grammar("%s branch must contain at least one filter", b.Join)
	}
	for _, child := range b.Filters {
		if err := v.validateNode(child, nc); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) validateLeaf(n Node, nc nodeContext) error {
	l := n.(*Leaf)
	if nc.rows == EntityWorks && nc.origin != OriginFilterWorks {
		return queryerr.Grammar("works filter cannot be in %s", nc.origin)
	}

	entity := nc.entity
	if l.SubjectEntity != "" {
		if l.SubjectEntity == EntityWorks && nc.origin != OriginFilterWorks {
			return queryerr.Grammar("works filter cannot be in %s", nc.origin)
		}
		if l.SubjectEntity != EntityWorks && nc.origin != OriginFilterAggs {
			return queryerr.Grammar("%s filter cannot be in %s", l.SubjectEntity, nc.origin)
		}
		entity = l.SubjectEntity
	}

	col, err := v.column(entity, l.ColumnID)
	if err != nil {
		return err
	}

	kind, ok := operatorKinds[strings.ToLower(l.Op())]
	if !ok {
		return queryerr.Grammar("%s not a valid operator", l.Op())
	}

	if col.ObjectEntity == "" || kind.cmp == cmpContains {
		return nil
	}
	domain, ok := v.snapshot.Entity(col.ObjectEntity)
	if !ok || len(domain.PossibleValues()) == 0 {
		return nil
	}
	for _, val := range leafValues(l.Value) {
		if val == "null" || val == "!null" {
			continue
		}
		if !domain.HasValue(val) {
			return queryerr.DomainValue("%s not a valid value for %s", val, col.ObjectEntity)
		}
	}
	return nil
}

func (v *Validator) column(entity, id string) (*schema.Column, error) {
	ent, ok := v.snapshot.Entity(entity)
	if !ok {
		return nil, queryerr.FieldResolution("%s.%s not a valid filter column", entity, id)
	}
	col, ok := ent.Column(id)
	if !ok {
		return nil, queryerr.FieldResolution("%s.%s not a valid filter column", entity, id)
	}
	return col, nil
}

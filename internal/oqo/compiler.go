package oqo

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/fluxbase-eu/facetql/internal/fields"
	"github.com/fluxbase-eu/facetql/internal/filter"
	"github.com/fluxbase-eu/facetql/internal/query"
	"github.com/fluxbase-eu/facetql/internal/queryerr"
	"github.com/fluxbase-eu/facetql/internal/schema"
)

// Compiled is a validated query object ready for execution.
type Compiled struct {
	// Entity is the index queried: works for works and summary rows,
	// otherwise get_rows.
	Entity    string
	Summary   bool
	Predicate query.Predicate
	Sort      []query.SortKey
	Columns   []string
}

// Compiler turns validated query objects into predicates.
type Compiler struct {
	registry  *fields.Registry
	validator *Validator
}

// NewCompiler returns a compiler resolving columns through snapshot and
// fields through registry.
func NewCompiler(registry *fields.Registry, snapshot *schema.Snapshot) *Compiler {
	return &Compiler{registry: registry, validator: NewValidator(snapshot)}
}

// Compile validates req and compiles it.
func (c *Compiler) Compile(req *Request) (*Compiled, error) {
	if err := c.validator.Validate(req); err != nil {
		return nil, err
	}

	rows := req.Rows()
	out := &Compiled{Entity: rows, Summary: rows == GetRowsSummary, Columns: req.ShowColumns}

	works, err := c.compileNodes(req.FilterWorks, EntityWorks)
	if err != nil {
		return nil, err
	}
	if rows == EntityWorks || rows == GetRowsSummary {
		out.Entity = EntityWorks
		out.Predicate = works
	} else {
		aggs, err := c.compileNodes(req.FilterAggs, rows)
		if err != nil {
			return nil, err
		}
		out.Predicate = aggs
	}

	if req.SortByColumn != "" && !out.Summary {
		key, err := c.sortKey(rows, req.SortByColumn, req.SortByOrder)
		if err != nil {
			return nil, err
		}
		out.Sort = []query.SortKey{key}
	}
	return out, nil
}

func (c *Compiler) compileNodes(nodes []Node, entity string) (query.Predicate, error) {
	preds := make([]query.Predicate, 0, len(nodes))
	for _, n := range nodes {
		p, err := c.compileNode(n, entity)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return query.AllOf(preds...), nil
}

func (c *Compiler) compileNode(n Node, entity string) (query.Predicate, error) {
	switch n := n.(type) {
	case *Branch:
		preds := make([]query.Predicate, 0, len(n.Filters))
		for _, child := range n.Filters {
			p, err := c.compileNode(child, entity)
			if err != nil {
				return nil, err
			}
			preds = append(preds, p)
		}
		if n.Join == JoinOr {
			return query.AnyOf(preds...), nil
		}
		return query.AllOf(preds...), nil
	case *Leaf:
		return c.compileLeaf(n, entity)
	default:
		return nil, queryerr.Grammar("unknown filter node")
	}
}

func (c *Compiler) compileLeaf(l *Leaf, entity string) (query.Predicate, error) {
	if l.SubjectEntity != "" {
		entity = l.SubjectEntity
	}
	spec, err := c.fieldFor(entity, l.ColumnID, fields.ActionFilter)
	if err != nil {
		return nil, err
	}

	kind := operatorKinds[strings.ToLower(l.Op())]
	values := leafValues(l.Value)
	if len(values) == 0 {
		values = []string{""}
	}

	var p query.Predicate
	switch kind.cmp {
	case cmpContains:
		p = containsPredicate(spec, values[0])
	case cmpGT, cmpGTE, cmpLT, cmpLTE:
		if !spec.Type.IsRange() {
			return nil, queryerr.TypeCoercion("%s.%s does not support %s", entity, l.ColumnID, l.Op())
		}
		v, err := filter.CoerceValue(spec, comparisonPrefix[kind.cmp]+values[0])
		if err != nil {
			return nil, err
		}
		p = filter.ValuePredicate(spec, v)
	default:
		coerced := make([]filter.Value, 0, len(values))
		for _, raw := range values {
			v, err := filter.CoerceValue(spec, raw)
			if err != nil {
				return nil, err
			}
			coerced = append(coerced, v)
		}
		p = filter.TermPredicate(spec, false, coerced)
	}

	if kind.negate {
		p = query.Negate(p)
	}
	return p, nil
}

var comparisonPrefix = map[comparison]string{
	cmpGT:  ">",
	cmpGTE: ">=",
	cmpLT:  "<",
	cmpLTE: "<=",
}

func containsPredicate(spec *fields.Spec, text string) query.Predicate {
	if spec.Type == fields.TypeSearch {
		return query.FullText{Paths: spec.SearchPaths, Text: text}
	}
	return query.Phrase{Path: spec.BackendPath, Text: text}
}

// fieldFor maps a schema column to its registry field.
func (c *Compiler) fieldFor(entity, columnID string, action fields.Action) (*fields.Spec, error) {
	col, err := c.validator.column(entity, columnID)
	if err != nil {
		return nil, err
	}
	spec, ok := c.registry.Lookup(entity, col.FieldName())
	if !ok || !spec.Allows(action) {
		return nil, queryerr.FieldResolution("%s.%s not a valid filter column", entity, columnID)
	}
	return spec, nil
}

func (c *Compiler) sortKey(entity, columnID, order string) (query.SortKey, error) {
	col, err := c.validator.column(entity, columnID)
	if err != nil {
		return query.SortKey{}, err
	}
	spec, ok := c.registry.Lookup(entity, col.FieldName())
	if !ok || !spec.Allows(fields.ActionSort) {
		return query.SortKey{}, queryerr.FieldResolution("%s.%s not a valid sort column", entity, columnID)
	}
	return query.SortKey{Name: spec.Name, Path: spec.BackendPath, Desc: order != "asc"}, nil
}

// leafValues flattens a leaf value to filter tokens. JSON null becomes the
// null literal.
func leafValues(v any) []string {
	switch x := v.(type) {
	case nil:
		return []string{"null"}
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			out = append(out, leafValues(item)...)
		}
		return out
	case []string:
		return x
	default:
		return []string{scalarString(x)}
	}
}

func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

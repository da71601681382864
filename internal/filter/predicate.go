package filter

import (
	"github.com/fluxbase-eu/facetql/internal/fields"
	"github.com/fluxbase-eu/facetql/internal/query"
)

type valueCompiler func(spec *fields.Spec, v Value) query.Predicate

var valueCompilers = map[fields.Type]valueCompiler{
	fields.TypeBoolean:    compileExact(false),
	fields.TypeNumeric:    compileRange,
	fields.TypeDate:       compileRange,
	fields.TypeDateTime:   compileRange,
	fields.TypeTerm:       compileExact(true),
	fields.TypePhrase:     compilePhrase,
	fields.TypeSearch:     compileSearch,
	fields.TypeOpenAlexID: compileExact(true),
	fields.TypeExternalID: compileExact(true),
}

// Predicate compiles the group to an AND of its terms.
func (g *Group) Predicate() query.Predicate {
	if g == nil {
		return query.MatchAll{}
	}
	preds := make([]query.Predicate, 0, len(g.Terms))
	for _, t := range g.Terms {
		preds = append(preds, t.Predicate())
	}
	return query.AllOf(preds...)
}

// Predicate compiles the term to an OR of its values, negated as a whole
// when the term is negated.
func (t Term) Predicate() query.Predicate {
	return TermPredicate(t.Field, t.Negated, t.Values)
}

// TermPredicate compiles an OR-list of coerced values for spec.
func TermPredicate(spec *fields.Spec, negated bool, values []Value) query.Predicate {
	preds := make([]query.Predicate, 0, len(values))
	for _, v := range values {
		preds = append(preds, ValuePredicate(spec, v))
	}
	p := query.AnyOf(preds...)
	if negated {
		return query.Negate(p)
	}
	return p
}

// ValuePredicate compiles one coerced value for spec.
func ValuePredicate(spec *fields.Spec, v Value) query.Predicate {
	switch v.Op {
	case OpNull:
		return query.Negate(query.Exists{Path: spec.BackendPath, Nested: spec.NestedPath})
	case OpNotNull:
		return query.Exists{Path: spec.BackendPath, Nested: spec.NestedPath}
	}
	compile, ok := valueCompilers[spec.Type]
	if !ok {
		return query.MatchAll{}
	}
	return compile(spec, v)
}

func compileExact(caseInsensitive bool) valueCompiler {
	return func(spec *fields.Spec, v Value) query.Predicate {
		return query.Term{
			Path:            spec.BackendPath,
			Value:           v.Value,
			CaseInsensitive: caseInsensitive,
			Nested:          spec.NestedPath,
		}
	}
}

func compileRange(spec *fields.Spec, v Value) query.Predicate {
	r := query.Range{Path: spec.BackendPath, Nested: spec.NestedPath}
	op := v.Op
	if op == OpEq && spec.Operator != "" {
		op = impliedOps[spec.Operator]
	}
	switch op {
	case OpEq:
		return query.Term{Path: spec.BackendPath, Value: v.Value, Nested: spec.NestedPath}
	case OpGT:
		r.GT = v.Value
	case OpGTE:
		r.GTE = v.Value
	case OpLT:
		r.LT = v.Value
	case OpLTE:
		r.LTE = v.Value
	case OpRange:
		r.GTE = v.Value
		r.LTE = v.Upper
	}
	return r
}

var impliedOps = map[string]Op{
	"gte": OpGTE,
	"lte": OpLTE,
}

func compilePhrase(spec *fields.Spec, v Value) query.Predicate {
	text, _ := v.Value.(string)
	return query.Phrase{Path: spec.BackendPath, Text: text}
}

// compileSearch matches everything for empty text.
func compileSearch(spec *fields.Spec, v Value) query.Predicate {
	text, _ := v.Value.(string)
	if text == "" {
		return query.MatchAll{}
	}
	return query.FullText{Paths: spec.SearchPaths, Text: text}
}

package search

import (
	"fmt"
	"time"

	"github.com/fluxbase-eu/facetql/internal/groupby"
	"github.com/fluxbase-eu/facetql/internal/pagination"
	"github.com/fluxbase-eu/facetql/internal/query"
)

const (
	aggGroupBy = "groupby"
	aggTerms   = "terms"
	aggDocs    = "docs"
	aggUnknown = "unknown"
)

// BuildBody renders req as an Elasticsearch search body. Cursor mode asks
// for one extra hit so the caller can tell whether results remain.
func BuildBody(req *Request) (map[string]interface{}, error) {
	q, err := predicateDSL(req.Predicate)
	if err != nil {
		return nil, err
	}

	body := map[string]interface{}{
		"query":            q,
		"track_total_hits": true,
	}

	switch {
	case req.CountOnly:
		body["size"] = 0
	case req.Window.Mode == pagination.ModeCursor:
		body["size"] = req.Window.PerPage + 1
	default:
		body["size"] = req.Window.PerPage
		body["from"] = req.Window.From
	}

	if len(req.Sort) > 0 {
		sort := make([]map[string]interface{}, 0, len(req.Sort))
		for _, k := range req.Sort {
			sort = append(sort, map[string]interface{}{
				k.Path: map[string]interface{}{"order": k.Order()},
			})
		}
		body["sort"] = sort
	}

	if req.Window.Mode == pagination.ModeCursor && req.Window.Cursor != "" && !req.CountOnly {
		after, err := decodeCursor(req.Window.Cursor)
		if err != nil {
			return nil, err
		}
		body["search_after"] = after
	}

	if req.Source != nil {
		body["_source"] = req.Source
	}

	if req.GroupBy != nil {
		aggs, err := groupByDSL(req.GroupBy)
		if err != nil {
			return nil, err
		}
		body["aggs"] = aggs
	}

	return body, nil
}

func groupByDSL(plan *groupby.Plan) (map[string]interface{}, error) {
	terms := map[string]interface{}{
		"field": plan.Path,
		"size":  plan.Size,
	}
	if plan.OrderByKey {
		terms["order"] = map[string]interface{}{"_key": "asc"}
	}

	var agg map[string]interface{}
	switch plan.Strategy {
	case groupby.StrategyNested:
		agg = map[string]interface{}{
			"nested": map[string]interface{}{"path": plan.NestedPath},
			"aggs": map[string]interface{}{
				aggTerms: map[string]interface{}{
					"terms": terms,
					"aggs": map[string]interface{}{
						aggDocs: map[string]interface{}{"reverse_nested": map[string]interface{}{}},
					},
				},
			},
		}
	case groupby.StrategyTerms:
		agg = map[string]interface{}{"terms": terms}
	default:
		return nil, fmt.Errorf("unsupported group_by strategy %q", plan.Strategy)
	}

	aggs := map[string]interface{}{aggGroupBy: agg}
	if plan.IncludeUnknown {
		missing, err := predicateDSL(query.Not{Clause: query.Exists{Path: plan.Path, Nested: plan.NestedPath}})
		if err != nil {
			return nil, err
		}
		aggs[aggUnknown] = map[string]interface{}{"filter": missing}
	}
	return aggs, nil
}

func predicateDSL(p query.Predicate) (map[string]interface{}, error) {
	switch v := p.(type) {
	case nil, query.MatchAll:
		return map[string]interface{}{"match_all": map[string]interface{}{}}, nil

	case query.And:
		clauses, err := predicateList(v.Clauses)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"bool": map[string]interface{}{"must": clauses}}, nil

	case query.Or:
		clauses, err := predicateList(v.Clauses)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"bool": map[string]interface{}{
			"should":               clauses,
			"minimum_should_match": 1,
		}}, nil

	case query.Not:
		inner, err := predicateDSL(v.Clause)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"bool": map[string]interface{}{
			"must_not": []map[string]interface{}{inner},
		}}, nil

	case query.Term:
		term := map[string]interface{}{"value": dslValue(v.Value)}
		if v.CaseInsensitive {
			term["case_insensitive"] = true
		}
		return nested(v.Nested, map[string]interface{}{
			"term": map[string]interface{}{v.Path: term},
		}), nil

	case query.Range:
		bounds := map[string]interface{}{}
		for op, b := range map[string]any{"gt": v.GT, "gte": v.GTE, "lt": v.LT, "lte": v.LTE} {
			if b != nil {
				bounds[op] = dslValue(b)
			}
		}
		return nested(v.Nested, map[string]interface{}{
			"range": map[string]interface{}{v.Path: bounds},
		}), nil

	case query.Exists:
		return nested(v.Nested, map[string]interface{}{
			"exists": map[string]interface{}{"field": v.Path},
		}), nil

	case query.Phrase:
		return map[string]interface{}{
			"match_phrase": map[string]interface{}{v.Path: v.Text},
		}, nil

	case query.FullText:
		if v.Text == "" {
			return map[string]interface{}{"match_all": map[string]interface{}{}}, nil
		}
		if len(v.Paths) == 1 {
			return map[string]interface{}{
				"match": map[string]interface{}{v.Paths[0]: map[string]interface{}{
					"query":    v.Text,
					"operator": "and",
				}},
			}, nil
		}
		return map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":    v.Text,
				"fields":   v.Paths,
				"operator": "and",
			},
		}, nil
	}
	return nil, fmt.Errorf("unsupported predicate %T", p)
}

func predicateList(preds []query.Predicate) ([]map[string]interface{}, error) {
	out := make([]map[string]interface{}, 0, len(preds))
	for _, p := range preds {
		q, err := predicateDSL(p)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

func nested(path string, q map[string]interface{}) map[string]interface{} {
	if path == "" {
		return q
	}
	return map[string]interface{}{
		"nested": map[string]interface{}{"path": path, "query": q},
	}
}

func dslValue(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return v
}

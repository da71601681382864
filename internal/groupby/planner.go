// Package groupby plans facet aggregations and shapes their buckets.
package groupby

import (
	"strconv"
	"strings"

	"github.com/fluxbase-eu/facetql/internal/fields"
	"github.com/fluxbase-eu/facetql/internal/query"
	"github.com/fluxbase-eu/facetql/internal/queryerr"
)

const (
	MinSize = 1
	MaxSize = 200

	optIncludeUnknown = "include_unknown"
	// UnknownKey is the bucket key of documents without a value.
	UnknownKey = "unknown"

	msgSize = "Group by size must be a number between 1 and 200"
)

// Strategy is how the backend buckets documents.
type Strategy string

const (
	// StrategyTerms is a flat terms aggregation on the field path.
	StrategyTerms Strategy = "terms"
	// StrategyNested descends into the repeated sub-object first, so counts
	// are per document and not per sub-object.
	StrategyNested Strategy = "nested"
)

// Plan is a validated aggregation request.
type Plan struct {
	Key            string
	Field          *fields.Spec
	Path           string
	NestedPath     string
	Strategy       Strategy
	Size           int
	OrderByKey     bool
	IncludeUnknown bool
	// Scope narrows the documents bucketed. It is the request predicate,
	// including any search query.
	Scope query.Predicate
	// Filtered reports that a search query accompanied the group-by; an
	// empty query still buckets only the filtered documents.
	Filtered bool
}

type strategyRule struct {
	strategy Strategy
	applies  func(*fields.Spec) bool
}

// strategyRules are tried in order; the first match wins.
var strategyRules = []strategyRule{
	{StrategyNested, func(s *fields.Spec) bool { return s.NestedPath != "" }},
	{StrategyTerms, func(*fields.Spec) bool { return true }},
}

// Planner builds aggregation plans against a field registry.
type Planner struct {
	registry *fields.Registry
}

// NewPlanner returns a planner resolving group-by keys through registry.
func NewPlanner(registry *fields.Registry) *Planner {
	return &Planner{registry: registry}
}

// Request is the raw group-by input of one request.
type Request struct {
	// GroupBy is "field" or "field:include_unknown".
	GroupBy string
	// Size is the raw bucket count; empty selects the entity default.
	Size string
	// Search is the free-text query, nil when absent.
	Search *string
}

// Plan validates a group-by request for entity. scope is the compiled
// predicate of the same request.
func (p *Planner) Plan(entity string, req Request, scope query.Predicate) (*Plan, error) {
	ent, ok := p.registry.Entity(entity)
	if !ok {
		return nil, queryerr.FieldResolution("%s is not a valid entity", entity)
	}

	name, opt, _ := strings.Cut(strings.TrimSpace(req.GroupBy), ":")
	spec, err := p.registry.ResolveFor(entity, name, fields.ActionGroupBy)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Key:        spec.Name,
		Field:      spec,
		Path:       spec.BackendPath,
		NestedPath: spec.NestedPath,
		Size:       ent.DefaultGroupBySize,
		OrderByKey: spec.OrderByKey,
		Scope:      scope,
		Filtered:   req.Search != nil,
	}
	if plan.Size > MaxSize {
		plan.Size = MaxSize
	}

	switch opt {
	case "":
	case optIncludeUnknown:
		plan.IncludeUnknown = true
	default:
		return nil, queryerr.Grammar("%s is not a valid group_by option. The only supported option is include_unknown.", opt)
	}

	if req.Size != "" {
		size, err := ParseSize(req.Size)
		if err != nil {
			return nil, err
		}
		plan.Size = size
	}

	for _, rule := range strategyRules {
		if rule.applies(spec) {
			plan.Strategy = rule.strategy
			break
		}
	}
	return plan, nil
}

// ParseSize validates a raw group_by_size value.
func ParseSize(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < MinSize || n > MaxSize {
		return 0, queryerr.GroupBySize(msgSize)
	}
	return n, nil
}

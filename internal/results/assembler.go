package results

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/fluxbase-eu/facetql/internal/fields"
	"github.com/fluxbase-eu/facetql/internal/filter"
	"github.com/fluxbase-eu/facetql/internal/groupby"
	"github.com/fluxbase-eu/facetql/internal/oqo"
	"github.com/fluxbase-eu/facetql/internal/pagination"
	"github.com/fluxbase-eu/facetql/internal/query"
	"github.com/fluxbase-eu/facetql/internal/queryerr"
	"github.com/fluxbase-eu/facetql/internal/schema"
	"github.com/fluxbase-eu/facetql/internal/search"
)

const (
	// RelevanceScore is the sort key and result field of search relevance.
	RelevanceScore = "relevance_score"

	DefaultCacheSize = 1024

	tracerName = "github.com/fluxbase-eu/facetql/internal/results"
	cacheSep   = "\x00"
)

const (
	msgRelevanceSort = "Must include a search query (such as ?search=example or /filter=display_name.search:example) in order to sort by relevance_score."
	msgSelectGroupBy = "select does not work with group_by."
	msgSelectField   = "%s is not a valid select field. Valid fields for select are: %s."
	msgSortOrder     = "Sort direction %s is not valid. Use asc or desc."
	msgUnknownEntity = "%s is not a valid entity"
)

// Observer receives compile and backend outcomes. observability.Metrics
// implements it.
type Observer interface {
	ObserveCompile(entity string, err error)
	ObserveSearch(entity, backend string, d time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveCompile(string, error)                       {}
func (nopObserver) ObserveSearch(string, string, time.Duration, error) {}

// Options configure an Assembler.
type Options struct {
	// DefaultFilters is an AND-only filter section per entity, unioned with
	// the request filter.
	DefaultFilters map[string]string
	CacheSize      int
	Pagination     pagination.Config
	Observer       Observer
}

// Assembler compiles list requests and runs them against a backend.
type Assembler struct {
	registry  *fields.Registry
	parser    *filter.Parser
	planner   *groupby.Planner
	paginator *pagination.Paginator
	schema    *schema.Cache
	backend   search.Backend
	defaults  map[string]string
	groups    *lru.Cache[string, *filter.Group]
	observer  Observer
}

// New returns an assembler. The schema cache supplies value-domain display
// names for group-by buckets.
func New(registry *fields.Registry, cache *schema.Cache, backend search.Backend, opts Options) (*Assembler, error) {
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	groups, err := lru.New[string, *filter.Group](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create filter cache: %w", err)
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &Assembler{
		registry:  registry,
		parser:    filter.NewParser(registry),
		planner:   groupby.NewPlanner(registry),
		paginator: pagination.New(opts.Pagination),
		schema:    cache,
		backend:   backend,
		defaults:  opts.DefaultFilters,
		groups:    groups,
		observer:  observer,
	}, nil
}

// Registry returns the field registry requests resolve against.
func (a *Assembler) Registry() *fields.Registry {
	return a.registry
}

// Backend returns the search backend.
func (a *Assembler) Backend() search.Backend {
	return a.backend
}

// Compiled is a validated list request ready for the backend.
type Compiled struct {
	Request *search.Request
	Filter  *filter.Group
	// Search is the free-text query echoed in meta.
	Search    *string
	HasSearch bool
}

// Compile validates params for entity. No backend call is made.
func (a *Assembler) Compile(entity string, p Params) (*Compiled, error) {
	c, err := a.compile(entity, p)
	a.observer.ObserveCompile(entity, err)
	if err != nil {
		if qe, ok := queryerr.As(err); ok {
			log.Debug().Str("entity", entity).Str("category", string(qe.Category)).Msg(qe.Message)
		}
		return nil, err
	}
	return c, nil
}

func (a *Assembler) compile(entity string, p Params) (*Compiled, error) {
	ent, ok := a.registry.Entity(entity)
	if !ok {
		return nil, queryerr.NotFound(msgUnknownEntity, entity)
	}

	group, err := a.filterGroup(ent.Name, p.Filter)
	if err != nil {
		return nil, err
	}

	pred := group.Predicate()
	hasSearch := group.HasSearch()
	if p.Search != nil && *p.Search != "" {
		pred = query.AllOf(pred, query.FullText{Paths: ent.SearchPaths, Text: *p.Search})
		hasSearch = true
	}

	keys, err := a.sortKeys(ent.Name, p.Sort, hasSearch)
	if err != nil {
		return nil, err
	}

	win, err := a.paginator.Window(pagination.Params{Page: p.Page, PerPage: p.PerPage, Cursor: p.Cursor})
	if err != nil {
		return nil, err
	}

	source, err := selectFields(ent, p.Select, p.GroupBy)
	if err != nil {
		return nil, err
	}

	req := &search.Request{
		Entity:    ent.Name,
		Predicate: pred,
		Sort:      a.paginator.Sort(keys, ent.IDField),
		Window:    win,
		Source:    source,
	}

	if p.GroupBy != "" {
		plan, err := a.planner.Plan(ent.Name, groupby.Request{
			GroupBy: p.GroupBy,
			Size:    p.GroupBySize,
			Search:  p.Search,
		}, pred)
		if err != nil {
			return nil, err
		}
		req.GroupBy = plan
		req.CountOnly = true
	}

	return &Compiled{Request: req, Filter: group, Search: p.Search, HasSearch: hasSearch}, nil
}

// filterGroup parses the default section and the request filter. Parsed
// groups are immutable and cached by their source text.
func (a *Assembler) filterGroup(entity string, values []string) (*filter.Group, error) {
	if len(values) > 1 {
		return a.parser.ParseParams(entity, values)
	}
	user := ""
	if len(values) == 1 {
		user = values[0]
	}
	def := a.defaults[entity]

	key := strings.Join([]string{entity, def, user}, cacheSep)
	if g, ok := a.groups.Get(key); ok {
		return g, nil
	}
	g, err := a.parser.ParseSections(entity, def, user)
	if err != nil {
		return nil, err
	}
	a.groups.Add(key, g)
	return g, nil
}

func (a *Assembler) sortKeys(entity, raw string, hasSearch bool) ([]query.SortKey, error) {
	if strings.TrimSpace(raw) == "" {
		if hasSearch {
			return []query.SortKey{{Name: RelevanceScore, Path: query.RelevancePath, Desc: true}}, nil
		}
		return nil, nil
	}

	var keys []query.SortKey
	for _, part := range strings.Split(raw, ",") {
		name, dir, _ := strings.Cut(strings.TrimSpace(part), ":")
		desc := false
		switch strings.ToLower(dir) {
		case "", "asc":
		case "desc":
			desc = true
		default:
			return nil, queryerr.Grammar(msgSortOrder, dir)
		}

		if name == RelevanceScore {
			if !hasSearch {
				return nil, queryerr.Grammar(msgRelevanceSort)
			}
			if dir == "" {
				desc = true
			}
			keys = append(keys, query.SortKey{Name: RelevanceScore, Path: query.RelevancePath, Desc: desc})
			continue
		}

		spec, err := a.registry.ResolveFor(entity, name, fields.ActionSort)
		if err != nil {
			return nil, err
		}
		keys = append(keys, query.SortKey{Name: spec.Name, Path: spec.BackendPath, Desc: desc})
	}
	return keys, nil
}

func selectFields(ent *fields.Entity, raw, groupBy string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	if groupBy != "" {
		return nil, queryerr.Grammar(msgSelectGroupBy)
	}
	var out []string
	for _, f := range strings.Split(raw, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if !slices.Contains(ent.SelectFields, f) {
			return nil, queryerr.FieldResolution(msgSelectField, f, strings.Join(ent.SelectFields, ", "))
		}
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out, nil
}

// List compiles and executes a list request.
func (a *Assembler) List(ctx context.Context, entity string, p Params) (*Envelope, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "results.List")
	defer span.End()
	span.SetAttributes(attribute.String("facetql.entity", entity))

	c, err := a.Compile(entity, p)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	resp, err := a.run(ctx, c.Request)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return a.envelope(c.Request, resp, c.Search, c.HasSearch), nil
}

// Query executes a compiled query object. Pagination comes from the
// request URL since the query object carries none.
func (a *Assembler) Query(ctx context.Context, c *oqo.Compiled, p Params) (*Envelope, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "results.Query")
	defer span.End()
	span.SetAttributes(attribute.String("facetql.entity", c.Entity), attribute.Bool("facetql.summary", c.Summary))

	req, err := a.QueryRequest(c, p)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	resp, err := a.run(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return a.envelope(req, resp, nil, false), nil
}

// QueryRequest builds the backend request for a compiled query object
// without running it.
func (a *Assembler) QueryRequest(c *oqo.Compiled, p Params) (*search.Request, error) {
	ent, ok := a.registry.Entity(c.Entity)
	if !ok {
		return nil, queryerr.NotFound(msgUnknownEntity, c.Entity)
	}
	win, err := a.paginator.Window(pagination.Params{Page: p.Page, PerPage: p.PerPage, Cursor: p.Cursor})
	if err != nil {
		return nil, err
	}
	return &search.Request{
		Entity:    ent.Name,
		Predicate: c.Predicate,
		Sort:      a.paginator.Sort(c.Sort, ent.IDField),
		Window:    win,
		CountOnly: c.Summary,
		Source:    a.columnSource(ent.Name, c.Columns, ent.IDField),
	}, nil
}

// columnSource maps show_columns to the top-level document fields holding
// them, always including the id.
func (a *Assembler) columnSource(entity string, columns []string, idField string) []string {
	if len(columns) == 0 {
		return nil
	}
	out := []string{idField}
	for _, col := range columns {
		path := col
		if spec, ok := a.registry.Lookup(entity, col); ok {
			path = spec.BackendPath
		}
		top, _, _ := strings.Cut(path, ".")
		if !slices.Contains(out, top) {
			out = append(out, top)
		}
	}
	return out
}

// Get fetches one entity by id or id shorthand.
func (a *Assembler) Get(ctx context.Context, entity, rawID string) (map[string]any, error) {
	path, id, err := a.registry.NormalizeID(entity, rawID)
	if err != nil {
		return nil, err
	}
	ent, _ := a.registry.Entity(entity)

	start := time.Now()
	hit, err := a.backend.Get(ctx, ent.Name, path, id)
	a.observer.ObserveSearch(ent.Name, a.backend.Name(), time.Since(start), err)
	if err != nil {
		if errors.Is(err, search.ErrNotFound) {
			return nil, queryerr.NotFound("%s not found", rawID)
		}
		log.Error().Err(err).Str("entity", ent.Name).Str("id", id).Msg("Entity lookup failed")
		return nil, err
	}
	return hit.Source, nil
}

func (a *Assembler) run(ctx context.Context, req *search.Request) (*search.Response, error) {
	start := time.Now()
	resp, err := a.backend.Search(ctx, req)
	a.observer.ObserveSearch(req.Entity, a.backend.Name(), time.Since(start), err)
	if err != nil {
		if !queryerr.Is(err, queryerr.CategoryPagination) {
			log.Error().Err(err).Str("entity", req.Entity).Str("backend", a.backend.Name()).Msg("Search backend call failed")
		}
		return nil, err
	}
	return resp, nil
}

package search

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fluxbase-eu/facetql/internal/groupby"
	"github.com/fluxbase-eu/facetql/internal/pagination"
	"github.com/fluxbase-eu/facetql/internal/query"
	"github.com/fluxbase-eu/facetql/internal/queryerr"
)

// MemoryBackend evaluates compiled predicates over documents held in
// memory. It serves fixtures and local development.
type MemoryBackend struct {
	mu   sync.RWMutex
	docs map[string][]map[string]any
}

// NewMemoryBackend returns a backend over docs keyed by entity.
func NewMemoryBackend(docs map[string][]map[string]any) *MemoryBackend {
	if docs == nil {
		docs = make(map[string][]map[string]any)
	}
	return &MemoryBackend{docs: docs}
}

// LoadMemoryBackend reads a JSON object of entity name to document list.
func LoadMemoryBackend(r io.Reader) (*MemoryBackend, error) {
	var docs map[string][]map[string]any
	if err := json.NewDecoder(r).Decode(&docs); err != nil {
		return nil, fmt.Errorf("failed to decode fixture documents: %w", err)
	}
	return NewMemoryBackend(docs), nil
}

// Add appends documents to entity.
func (b *MemoryBackend) Add(entity string, docs ...map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.docs[entity] = append(b.docs[entity], docs...)
}

// Name returns the backend identifier.
func (b *MemoryBackend) Name() string {
	return "memory"
}

// Health always succeeds unless ctx is done.
func (b *MemoryBackend) Health(ctx context.Context) error {
	return ctx.Err()
}

type scored struct {
	doc   map[string]any
	score float64
}

// Search evaluates req over the documents of req.Entity.
func (b *MemoryBackend) Search(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	b.mu.RLock()
	docs := b.docs[req.Entity]
	b.mu.RUnlock()

	var matched []scored
	for _, doc := range docs {
		ok, err := matches(doc, req.Predicate)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, scored{doc: doc, score: score(doc, req.Predicate)})
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		for _, k := range req.Sort {
			c := compareValues(sortValue(matched[i], k.Path), sortValue(matched[j], k.Path))
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})

	out := &Response{Total: int64(len(matched))}
	if req.GroupBy != nil {
		out.Buckets, out.Missing = aggregate(matched, req.GroupBy)
	}

	if !req.CountOnly {
		page, next, err := window(matched, req.Window)
		if err != nil {
			return nil, err
		}
		out.NextCursor = next
		out.Hits = make([]Hit, 0, len(page))
		for _, s := range page {
			out.Hits = append(out.Hits, Hit{
				ID:     hitID(s.doc),
				Score:  s.score,
				Source: project(s.doc, req.Source),
			})
		}
	}
	out.Took = time.Since(start)
	return out, nil
}

// window slices matched by offset in page mode and by position in cursor
// mode. Memory cursors encode the offset of the next hit.
func window(matched []scored, w pagination.Window) ([]scored, string, error) {
	from := w.From
	if w.Mode == pagination.ModeCursor {
		from = 0
		if w.Cursor != "" {
			data, err := base64.RawURLEncoding.DecodeString(w.Cursor)
			if err != nil {
				return nil, "", queryerr.Pagination(msgInvalidCursor)
			}
			from, err = strconv.Atoi(string(data))
			if err != nil || from < 0 {
				return nil, "", queryerr.Pagination(msgInvalidCursor)
			}
		}
	}
	from = max(from, 0)
	if from >= len(matched) {
		return nil, "", nil
	}
	end := min(from+w.PerPage, len(matched))

	var next string
	if w.Mode == pagination.ModeCursor && end < len(matched) {
		next = base64.RawURLEncoding.EncodeToString([]byte(strconv.Itoa(end)))
	}
	return matched[from:end], next, nil
}

func aggregate(matched []scored, plan *groupby.Plan) ([]groupby.RawBucket, int64) {
	counts := make(map[string]int64)
	var missing int64
	for _, s := range matched {
		values := lookup(s.doc, plan.Path)
		if len(values) == 0 {
			missing++
			continue
		}
		seen := make(map[string]bool, len(values))
		for _, v := range values {
			key := bucketKey(v, "")
			if !seen[key] {
				seen[key] = true
				counts[key]++
			}
		}
	}
	out := make([]groupby.RawBucket, 0, len(counts))
	for k, c := range counts {
		out = append(out, groupby.RawBucket{Key: k, Count: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, missing
}

// Get returns the first document whose idPath holds id.
func (b *MemoryBackend) Get(ctx context.Context, entity, idPath, id string) (*Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, doc := range b.docs[entity] {
		for _, v := range lookup(doc, idPath) {
			if s, ok := v.(string); ok && strings.EqualFold(s, id) {
				return &Hit{ID: hitID(doc), Source: doc}, nil
			}
		}
	}
	return nil, ErrNotFound
}

func hitID(doc map[string]any) string {
	if id, ok := doc["id"].(string); ok {
		return id
	}
	return ""
}

func project(doc map[string]any, fields []string) map[string]any {
	if fields == nil {
		return doc
	}
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := doc[f]; ok {
			out[f] = v
		}
	}
	return out
}

func sortValue(s scored, path string) any {
	if path == query.RelevancePath {
		return s.score
	}
	values := lookup(s.doc, path)
	if len(values) == 0 {
		return nil
	}
	return values[0]
}

// lookup collects the non-null values at a dotted path, flattening lists.
func lookup(v any, path string) []any {
	if path == "" {
		switch t := v.(type) {
		case nil:
			return nil
		case []any:
			var out []any
			for _, item := range t {
				out = append(out, lookup(item, "")...)
			}
			return out
		default:
			return []any{t}
		}
	}

	head, rest, _ := strings.Cut(path, ".")
	switch t := v.(type) {
	case map[string]any:
		return lookup(t[head], rest)
	case []any:
		var out []any
		for _, item := range t {
			out = append(out, lookup(item, path)...)
		}
		return out
	}
	return nil
}

func matches(doc map[string]any, p query.Predicate) (bool, error) {
	switch v := p.(type) {
	case nil, query.MatchAll:
		return true, nil
	case query.And:
		for _, c := range v.Clauses {
			ok, err := matches(doc, c)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case query.Or:
		for _, c := range v.Clauses {
			ok, err := matches(doc, c)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	case query.Not:
		ok, err := matches(doc, v.Clause)
		return !ok, err
	case query.Term:
		for _, have := range lookup(doc, v.Path) {
			if equalValues(have, v.Value, v.CaseInsensitive) {
				return true, nil
			}
		}
		return false, nil
	case query.Range:
		for _, have := range lookup(doc, v.Path) {
			if inRange(have, v) {
				return true, nil
			}
		}
		return false, nil
	case query.Exists:
		return len(lookup(doc, v.Path)) > 0, nil
	case query.Phrase:
		needle := strings.ToLower(v.Text)
		for _, have := range lookup(doc, v.Path) {
			if s, ok := have.(string); ok && strings.Contains(strings.ToLower(s), needle) {
				return true, nil
			}
		}
		return false, nil
	case query.FullText:
		return tokenHits(doc, v) > 0 || strings.TrimSpace(v.Text) == "", nil
	}
	return false, fmt.Errorf("unsupported predicate %T", p)
}

// tokenHits counts occurrences of the query tokens across paths, or zero
// when any token is absent.
func tokenHits(doc map[string]any, ft query.FullText) int {
	var text strings.Builder
	for _, path := range ft.Paths {
		for _, v := range lookup(doc, path) {
			if s, ok := v.(string); ok {
				text.WriteString(strings.ToLower(s))
				text.WriteByte(' ')
			}
		}
	}
	words := strings.Fields(text.String())
	total := 0
	for _, tok := range strings.Fields(strings.ToLower(ft.Text)) {
		n := 0
		for _, w := range words {
			if strings.Trim(w, ".,;:!?\"'()") == tok {
				n++
			}
		}
		if n == 0 {
			return 0
		}
		total += n
	}
	return total
}

func score(doc map[string]any, p query.Predicate) float64 {
	switch v := p.(type) {
	case query.And:
		var s float64
		for _, c := range v.Clauses {
			s += score(doc, c)
		}
		return s
	case query.Or:
		var s float64
		for _, c := range v.Clauses {
			s += score(doc, c)
		}
		return s
	case query.FullText:
		return float64(tokenHits(doc, v))
	}
	return 0
}

func equalValues(have, want any, fold bool) bool {
	switch w := want.(type) {
	case string:
		s, ok := have.(string)
		if !ok {
			return false
		}
		if fold {
			return strings.EqualFold(s, w)
		}
		return s == w
	case bool:
		b, ok := have.(bool)
		return ok && b == w
	case time.Time:
		t, ok := asTime(have)
		return ok && t.Equal(w)
	default:
		hf, ok1 := asFloat(have)
		wf, ok2 := asFloat(want)
		return ok1 && ok2 && hf == wf
	}
}

func inRange(have any, r query.Range) bool {
	check := func(bound any, accept func(int) bool) bool {
		if bound == nil {
			return true
		}
		c, ok := compareTyped(have, bound)
		return ok && accept(c)
	}
	return check(r.GT, func(c int) bool { return c > 0 }) &&
		check(r.GTE, func(c int) bool { return c >= 0 }) &&
		check(r.LT, func(c int) bool { return c < 0 }) &&
		check(r.LTE, func(c int) bool { return c <= 0 })
}

// compareTyped compares a document value against a typed predicate bound.
func compareTyped(have, bound any) (int, bool) {
	if t, ok := bound.(time.Time); ok {
		ht, ok := asTime(have)
		if !ok {
			return 0, false
		}
		return ht.Compare(t), true
	}
	hf, ok1 := asFloat(have)
	bf, ok2 := asFloat(bound)
	if !ok1 || !ok2 {
		return 0, false
	}
	switch {
	case hf < bf:
		return -1, true
	case hf > bf:
		return 1, true
	}
	return 0, true
}

// compareValues orders sort values. Missing values sort lowest.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if af, ok := asFloat(a); ok {
		if bf, ok := asFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

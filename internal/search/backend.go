// Package search executes compiled queries against a document index.
package search

import (
	"context"
	"errors"
	"time"

	"github.com/fluxbase-eu/facetql/internal/groupby"
	"github.com/fluxbase-eu/facetql/internal/pagination"
	"github.com/fluxbase-eu/facetql/internal/query"
	"github.com/fluxbase-eu/facetql/internal/queryerr"
)

// DefaultTimeout bounds one backend call.
const DefaultTimeout = 20 * time.Second

// ErrNotFound is returned by Get when no document has the id.
var ErrNotFound = errors.New("document not found")

// Request is a compiled search against one entity index.
type Request struct {
	Entity    string
	Predicate query.Predicate
	// Sort is already tie-broken on the entity id.
	Sort   []query.SortKey
	Window pagination.Window
	// CountOnly skips hits and returns the total and buckets.
	CountOnly bool
	GroupBy   *groupby.Plan
	// Source limits the returned top-level fields; nil returns all.
	Source []string
}

// Hit is one matching document.
type Hit struct {
	ID     string
	Score  float64
	Source map[string]any
}

// Response is what the backend returned for a Request.
type Response struct {
	Total      int64
	Hits       []Hit
	NextCursor string
	Buckets    []groupby.RawBucket
	// Missing counts matching documents without a group-by value.
	Missing int64
	Took    time.Duration
}

// Backend is a search index.
type Backend interface {
	Search(ctx context.Context, req *Request) (*Response, error)
	// Get returns the document of entity whose idPath equals id.
	Get(ctx context.Context, entity, idPath, id string) (*Hit, error)
	Health(ctx context.Context) error
	Name() string
}

type timeoutBackend struct {
	Backend
	timeout time.Duration
}

// WithTimeout bounds every call to b and turns transport failures and
// timeouts into retryable query errors. Query errors and ErrNotFound pass
// through unchanged.
func WithTimeout(b Backend, timeout time.Duration) Backend {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &timeoutBackend{Backend: b, timeout: timeout}
}

func (b *timeoutBackend) Search(ctx context.Context, req *Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	resp, err := b.Backend.Search(ctx, req)
	if err != nil {
		return nil, wrapBackendError(err)
	}
	return resp, nil
}

func (b *timeoutBackend) Get(ctx context.Context, entity, idPath, id string) (*Hit, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	hit, err := b.Backend.Get(ctx, entity, idPath, id)
	if err != nil {
		return nil, wrapBackendError(err)
	}
	return hit, nil
}

func (b *timeoutBackend) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	if err := b.Backend.Health(ctx); err != nil {
		return wrapBackendError(err)
	}
	return nil
}

func wrapBackendError(err error) error {
	if errors.Is(err, ErrNotFound) {
		return err
	}
	if _, ok := queryerr.As(err); ok {
		return err
	}
	return queryerr.Backend(err)
}

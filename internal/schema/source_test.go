package schema

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jsonSchema = `{
  "works": {
    "columns": [
      {"id": "type", "displayName": "Type", "objectEntity": "work-types"}
    ]
  },
  "work-types": {
    "columns": [{"id": "id", "displayName": "id"}],
    "values": [{"id": "article", "display_name": "article"}]
  }
}`

const yamlSchema = `entities:
  works:
    columns:
      - id: publication_year
        displayName: Year
        alternateNames: [year]
`

// =============================================================================
// FileSource Tests
// =============================================================================

func TestFileSource(t *testing.T) {
	dir := t.TempDir()

	t.Run("yaml with entities wrapper", func(t *testing.T) {
		path := filepath.Join(dir, "schema.yaml")
		require.NoError(t, os.WriteFile(path, []byte(yamlSchema), 0o600))

		doc, err := (&FileSource{Path: path}).Fetch(context.Background())
		require.NoError(t, err)
		require.Contains(t, doc.Entities, "works")
		assert.Equal(t, []string{"year"}, doc.Entities["works"].Columns[0].AlternateNames)
	})

	t.Run("bare json map", func(t *testing.T) {
		path := filepath.Join(dir, "schema.json")
		require.NoError(t, os.WriteFile(path, []byte(jsonSchema), 0o600))

		doc, err := (&FileSource{Path: path}).Fetch(context.Background())
		require.NoError(t, err)
		assert.Len(t, doc.Entities, 2)
		assert.Equal(t, "work-types", doc.Entities["works"].Columns[0].ObjectEntity)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := (&FileSource{Path: filepath.Join(dir, "nope.yaml")}).Fetch(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read schema file")
	})
}

// =============================================================================
// HTTPSource Tests
// =============================================================================

func TestHTTPSource(t *testing.T) {
	t.Run("fetches document", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(jsonSchema))
		}))
		defer srv.Close()

		src := NewHTTPSource(srv.URL, time.Second)
		src.Headers = map[string]string{"X-Api-Key": "secret"}

		doc, err := src.Fetch(context.Background())
		require.NoError(t, err)
		assert.Contains(t, doc.Entities, "work-types")
		assert.Equal(t, "http:"+srv.URL, src.Name())
	})

	t.Run("non ok status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		_, err := NewHTTPSource(srv.URL, time.Second).Fetch(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 502")
	})

	t.Run("context deadline bounds the request", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			time.Sleep(500 * time.Millisecond)
			_, _ = w.Write([]byte(jsonSchema))
		}))
		defer srv.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := NewHTTPSource(srv.URL, 5*time.Second).Fetch(ctx)
		require.Error(t, err)
	})
}

// =============================================================================
// RedisSource Tests
// =============================================================================

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), Protocol: 2})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisSource(t *testing.T) {
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		src := NewRedisSource(newTestRedis(t), "facetql:schema", "")
		_, err := src.Fetch(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not exist")
	})

	t.Run("store then fetch", func(t *testing.T) {
		src := NewRedisSource(newTestRedis(t), "facetql:schema", "")
		require.NoError(t, src.Store(ctx, testDocument()))

		doc, err := src.Fetch(ctx)
		require.NoError(t, err)
		snap, err := NewSnapshot(doc, src.Name())
		require.NoError(t, err)
		assert.Equal(t, []string{"countries", "work-types", "works"}, snap.Entities())
	})

	t.Run("watch reloads on publish", func(t *testing.T) {
		client := newTestRedis(t)
		src := NewRedisSource(client, "facetql:schema", "facetql:schema:updates")
		cache := NewCache(src)

		var reloads atomic.Int32
		watchCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() {
			done <- src.Watch(watchCtx, func(ctx context.Context) {
				if _, err := cache.Reload(ctx); err == nil {
					reloads.Add(1)
				}
			})
		}()

		require.Eventually(t, func() bool {
			assert.NoError(t, src.Store(ctx, testDocument()))
			return reloads.Load() > 0
		}, 2*time.Second, 20*time.Millisecond)

		require.NotNil(t, cache.Snapshot())
		cancel()
		assert.NoError(t, <-done)
	})

	t.Run("watch without channel returns", func(t *testing.T) {
		src := NewRedisSource(newTestRedis(t), "k", "")
		assert.NoError(t, src.Watch(ctx, func(context.Context) {}))
	})
}

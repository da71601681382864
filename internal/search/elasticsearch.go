package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/rs/zerolog/log"

	"github.com/fluxbase-eu/facetql/internal/groupby"
	"github.com/fluxbase-eu/facetql/internal/pagination"
	"github.com/fluxbase-eu/facetql/internal/query"
)

// ElasticsearchConfig configures the Elasticsearch backend.
type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	// IndexPrefix is prepended to the entity name when Indexes has no entry.
	IndexPrefix string            `mapstructure:"index_prefix"`
	Indexes     map[string]string `mapstructure:"indexes"`
	Transport   http.RoundTripper `mapstructure:"-"`
}

// ElasticsearchBackend runs compiled queries with the esapi client.
type ElasticsearchBackend struct {
	client  *elasticsearch.Client
	prefix  string
	indexes map[string]string
}

// NewElasticsearchBackend creates a client for cfg.
func NewElasticsearchBackend(cfg ElasticsearchConfig) (*ElasticsearchBackend, error) {
	addresses := cfg.Addresses
	if len(addresses) == 0 {
		addresses = []string{"http://localhost:9200"}
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	return &ElasticsearchBackend{
		client:  client,
		prefix:  cfg.IndexPrefix,
		indexes: cfg.Indexes,
	}, nil
}

// Name returns the backend identifier.
func (b *ElasticsearchBackend) Name() string {
	return "elasticsearch"
}

// Index returns the index queried for entity.
func (b *ElasticsearchBackend) Index(entity string) string {
	if idx, ok := b.indexes[entity]; ok {
		return idx
	}
	return b.prefix + entity
}

type esHit struct {
	ID     string         `json:"_id"`
	Score  *float64       `json:"_score"`
	Source map[string]any `json:"_source"`
	Sort   []any          `json:"sort"`
}

type esBuckets struct {
	Buckets []struct {
		Key         any    `json:"key"`
		KeyAsString string `json:"key_as_string"`
		DocCount    int64  `json:"doc_count"`
		Docs        *struct {
			DocCount int64 `json:"doc_count"`
		} `json:"docs"`
	} `json:"buckets"`
}

type esSearchResponse struct {
	Took int64 `json:"took"`
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []esHit `json:"hits"`
	} `json:"hits"`
	Aggregations struct {
		GroupBy struct {
			esBuckets
			Terms esBuckets `json:"terms"`
		} `json:"groupby"`
		Unknown struct {
			DocCount int64 `json:"doc_count"`
		} `json:"unknown"`
	} `json:"aggregations"`
}

// Search executes req.
func (b *ElasticsearchBackend) Search(ctx context.Context, req *Request) (*Response, error) {
	body, err := BuildBody(req)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	index := b.Index(req.Entity)
	res, err := esapi.SearchRequest{
		Index: []string{index},
		Body:  &buf,
	}.Do(ctx, b.client)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch search error: %s", res.String())
	}

	var parsed esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	log.Debug().
		Str("index", index).
		Int64("took_ms", parsed.Took).
		Int64("total", parsed.Hits.Total.Value).
		Msg("Elasticsearch search completed")

	return assemble(req, &parsed)
}

func assemble(req *Request, parsed *esSearchResponse) (*Response, error) {
	out := &Response{
		Total: parsed.Hits.Total.Value,
		Took:  time.Duration(parsed.Took) * time.Millisecond,
	}

	hits := parsed.Hits.Hits
	if req.Window.Mode == pagination.ModeCursor && !req.CountOnly && len(hits) > req.Window.PerPage {
		hits = hits[:req.Window.PerPage]
		next, err := encodeCursor(hits[len(hits)-1].Sort)
		if err != nil {
			return nil, fmt.Errorf("failed to encode cursor: %w", err)
		}
		out.NextCursor = next
	}

	out.Hits = make([]Hit, 0, len(hits))
	for _, h := range hits {
		hit := Hit{ID: h.ID, Source: h.Source}
		if h.Score != nil {
			hit.Score = *h.Score
		}
		out.Hits = append(out.Hits, hit)
	}

	if req.GroupBy != nil {
		agg := parsed.Aggregations.GroupBy.esBuckets
		if req.GroupBy.Strategy == groupby.StrategyNested {
			agg = parsed.Aggregations.GroupBy.Terms
		}
		for _, bucket := range agg.Buckets {
			count := bucket.DocCount
			if bucket.Docs != nil {
				count = bucket.Docs.DocCount
			}
			out.Buckets = append(out.Buckets, groupby.RawBucket{
				Key:   bucketKey(bucket.Key, bucket.KeyAsString),
				Count: count,
			})
		}
		out.Missing = parsed.Aggregations.Unknown.DocCount
	}
	return out, nil
}

func bucketKey(key any, keyAsString string) string {
	if keyAsString != "" {
		return keyAsString
	}
	switch k := key.(type) {
	case string:
		return k
	case float64:
		return strconv.FormatFloat(k, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(k)
	case nil:
		return ""
	default:
		return fmt.Sprint(k)
	}
}

// Get looks a document up by its id path.
func (b *ElasticsearchBackend) Get(ctx context.Context, entity, idPath, id string) (*Hit, error) {
	resp, err := b.Search(ctx, &Request{
		Entity:    entity,
		Predicate: query.Term{Path: idPath, Value: id},
		Window:    pagination.Window{Mode: pagination.ModePage, PerPage: 1},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Hits) == 0 {
		return nil, ErrNotFound
	}
	return &resp.Hits[0], nil
}

// Health checks if the Elasticsearch cluster is operational.
func (b *ElasticsearchBackend) Health(ctx context.Context) error {
	res, err := esapi.ClusterHealthRequest{}.Do(ctx, b.client)
	if err != nil {
		return fmt.Errorf("failed to check cluster health: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return fmt.Errorf("elasticsearch health check failed: %s", res.String())
	}
	return nil
}

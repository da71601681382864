package cmd

import (
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/fluxbase-eu/facetql/internal/config"
	"github.com/fluxbase-eu/facetql/internal/fields"
	"github.com/fluxbase-eu/facetql/internal/results"
	"github.com/fluxbase-eu/facetql/internal/schema"
	"github.com/fluxbase-eu/facetql/internal/search"
)

// loadRegistry returns the configured field registry or the built-in one.
func loadRegistry(cfg *config.Config) (*fields.Registry, error) {
	if cfg.Registry.Path == "" {
		return fields.Default()
	}
	f, err := os.Open(cfg.Registry.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry file: %w", err)
	}
	defer f.Close()

	registry, err := fields.Load(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load registry %s: %w", cfg.Registry.Path, err)
	}
	return registry, nil
}

func newRedisClient(rc config.RedisConfig) redis.UniversalClient {
	return redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
}

// newSchemaSource returns the configured source. The Redis source is also
// returned separately so callers can watch it for updates.
func newSchemaSource(cfg *config.Config, registry *fields.Registry) (schema.Source, *schema.RedisSource) {
	switch cfg.Schema.Source {
	case config.SchemaSourceFile:
		return &schema.FileSource{Path: cfg.Schema.Path}, nil
	case config.SchemaSourceHTTP:
		return schema.NewHTTPSource(cfg.Schema.URL, cfg.Schema.Timeout), nil
	case config.SchemaSourceRedis:
		rs := schema.NewRedisSource(newRedisClient(cfg.Schema.Redis), cfg.Schema.Redis.Key, cfg.Schema.Redis.Channel)
		return rs, rs
	default:
		return &schema.RegistrySource{Registry: registry}, nil
	}
}

// newBackend returns the configured search backend bounded by the search
// timeout.
func newBackend(cfg *config.Config) (search.Backend, error) {
	var backend search.Backend
	switch cfg.Search.Backend {
	case config.BackendMemory:
		if cfg.Search.FixturesPath == "" {
			backend = search.NewMemoryBackend(nil)
			break
		}
		f, err := os.Open(cfg.Search.FixturesPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open fixtures: %w", err)
		}
		defer f.Close()
		mem, err := search.LoadMemoryBackend(f)
		if err != nil {
			return nil, err
		}
		backend = mem
	default:
		es, err := search.NewElasticsearchBackend(cfg.Search.Elasticsearch)
		if err != nil {
			return nil, err
		}
		backend = es
	}
	return search.WithTimeout(backend, cfg.Search.Timeout), nil
}

// offlineAssembler builds an assembler for commands that compile without
// querying a backend.
func offlineAssembler(cfg *config.Config) (*results.Assembler, error) {
	registry, err := loadRegistry(cfg)
	if err != nil {
		return nil, err
	}
	return results.New(registry, nil, search.NewMemoryBackend(nil), results.Options{
		DefaultFilters: cfg.DefaultFilters(),
		CacheSize:      cfg.Cache.FilterCacheSize,
		Pagination:     cfg.Pagination,
	})
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxbase-eu/facetql/internal/logutil"
	"github.com/fluxbase-eu/facetql/internal/observability"
	"github.com/fluxbase-eu/facetql/internal/pagination"
	"github.com/fluxbase-eu/facetql/internal/search"
)

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:        ":8080",
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			IdleTimeout:    time.Minute,
			QueryBodyLimit: 65536,
		},
		Search: SearchConfig{
			Backend: BackendMemory,
			Timeout: search.DefaultTimeout,
		},
		Schema: SchemaConfig{Source: SchemaSourceRegistry},
		Pagination: pagination.Config{
			DefaultPerPage:  25,
			MaxPerPage:      50,
			MaxResultWindow: 10000,
		},
		RateLimit: RateLimitConfig{
			Enabled:      true,
			AnonymousMax: 100,
			KeyedMax:     1000,
			Window:       time.Minute,
			AdminMax:     10,
		},
		Metrics: MetricsConfig{Enabled: true, Port: 9090, Path: "/metrics"},
		Tracing: observability.TracingConfig{},
		Logging: logutil.LoggingConfig{Level: "info", Format: "json"},
		Cache:   CacheConfig{FilterCacheSize: 1024},
	}
}

// isolate points the loader at an empty directory so no stray facetql.yaml
// or .env from the developer machine leaks into the test.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

// =============================================================================
// Config Loading Tests
// =============================================================================

func TestLoad_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, BackendElasticsearch, cfg.Search.Backend)
	assert.Equal(t, 20*time.Second, cfg.Search.Timeout)
	assert.Equal(t, []string{"http://localhost:9200"}, cfg.Search.Elasticsearch.Addresses)
	assert.Equal(t, SchemaSourceRegistry, cfg.Schema.Source)
	assert.Equal(t, 25, cfg.Pagination.DefaultPerPage)
	assert.Equal(t, 50, cfg.Pagination.MaxPerPage)
	assert.Equal(t, 10000, cfg.Pagination.MaxResultWindow)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Empty(t, cfg.DefaultFilters())
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := isolate(t)

	content := `
server:
  address: ":9000"
search:
  backend: memory
  timeout: 5s
schema:
  source: file
  path: /etc/facetql/schema.yaml
  reload_schedule: "*/10 * * * *"
pagination:
  max_per_page: 100
  max_result_window: 20000
entities:
  works:
    default_filter: "is_paratext:false"
  authors: {}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "facetql.yaml"), []byte(content), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, BackendMemory, cfg.Search.Backend)
	assert.Equal(t, 5*time.Second, cfg.Search.Timeout)
	assert.Equal(t, SchemaSourceFile, cfg.Schema.Source)
	assert.Equal(t, "*/10 * * * *", cfg.Schema.ReloadSchedule)
	assert.Equal(t, 100, cfg.Pagination.MaxPerPage)
	assert.Equal(t, 25, cfg.Pagination.DefaultPerPage)
	assert.Equal(t, map[string]string{"works": "is_paratext:false"}, cfg.DefaultFilters())
}

func TestLoad_ExplicitFileAndEnvOverride(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search:\n  backend: memory\n"), 0o644))

	t.Setenv(ConfigEnv, path)
	t.Setenv("FACETQL_SERVER_ADDRESS", ":7070")
	t.Setenv("FACETQL_RATE_LIMIT_ANONYMOUS_MAX", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Search.Backend)
	assert.Equal(t, ":7070", cfg.Server.Address)
	assert.Equal(t, 5, cfg.RateLimit.AnonymousMax)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("FACETQL_LOGGING_LEVEL=debug\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("FACETQL_LOGGING_LEVEL") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("malformed yaml", func(t *testing.T) {
		dir := isolate(t)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "facetql.yaml"), []byte("server: [unclosed"), 0o644))

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config file")
	})

	t.Run("invalid section", func(t *testing.T) {
		isolate(t)
		t.Setenv("FACETQL_SEARCH_BACKEND", "solr")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "search: backend must be elasticsearch or memory, got: solr")
	})
}

// =============================================================================
// Validation Tests
// =============================================================================

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "empty address",
			mutate:  func(c *Config) { c.Server.Address = "" },
			wantErr: "server: server address cannot be empty",
		},
		{
			name:    "zero body limit",
			mutate:  func(c *Config) { c.Server.QueryBodyLimit = 0 },
			wantErr: "query_body_limit must be at least 1, got: 0",
		},
		{
			name: "elasticsearch without addresses",
			mutate: func(c *Config) {
				c.Search.Backend = BackendElasticsearch
				c.Search.Elasticsearch.Addresses = nil
			},
			wantErr: "elasticsearch addresses cannot be empty",
		},
		{
			name:    "zero search timeout",
			mutate:  func(c *Config) { c.Search.Timeout = 0 },
			wantErr: "timeout must be positive",
		},
		{
			name:    "file source without path",
			mutate:  func(c *Config) { c.Schema.Source = SchemaSourceFile },
			wantErr: "schema path cannot be empty",
		},
		{
			name:    "http source without url",
			mutate:  func(c *Config) { c.Schema.Source = SchemaSourceHTTP },
			wantErr: "schema url cannot be empty",
		},
		{
			name:    "unknown schema source",
			mutate:  func(c *Config) { c.Schema.Source = "s3" },
			wantErr: "schema source must be registry, file, http or redis, got: s3",
		},
		{
			name:    "bad cron spec",
			mutate:  func(c *Config) { c.Schema.ReloadSchedule = "every tuesday" },
			wantErr: "invalid reload_schedule",
		},
		{
			name:    "default per page above max",
			mutate:  func(c *Config) { c.Pagination.DefaultPerPage = 60 },
			wantErr: "pagination: default_per_page must be between 1 and max_per_page (50), got: 60",
		},
		{
			name:    "window below max per page",
			mutate:  func(c *Config) { c.Pagination.MaxResultWindow = 10 },
			wantErr: "max_result_window must be at least max_per_page",
		},
		{
			name:    "keyed below anonymous",
			mutate:  func(c *Config) { c.RateLimit.KeyedMax = 10 },
			wantErr: "keyed_max must be at least anonymous_max (100), got: 10",
		},
		{
			name: "disabled rate limit skips checks",
			mutate: func(c *Config) {
				c.RateLimit.Enabled = false
				c.RateLimit.AnonymousMax = 0
			},
		},
		{
			name:    "metrics path",
			mutate:  func(c *Config) { c.Metrics.Path = "metrics" },
			wantErr: "metrics path must start with /",
		},
		{
			name:    "tracing without endpoint",
			mutate:  func(c *Config) { c.Tracing = observability.TracingConfig{Enabled: true, SampleRatio: 1} },
			wantErr: "tracing: tracing endpoint cannot be empty when enabled",
		},
		{
			name:    "log level",
			mutate:  func(c *Config) { c.Logging.Level = "chatty" },
			wantErr: "logging: invalid log level: chatty",
		},
		{
			name:    "cache size",
			mutate:  func(c *Config) { c.Cache.FilterCacheSize = 0 },
			wantErr: "cache: filter_cache_size must be at least 1, got: 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_ValidateStopsAtFirstSection(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Address = ""
	cfg.Cache.FilterCacheSize = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server:")
	assert.NotContains(t, err.Error(), "cache:")
}

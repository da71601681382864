// Package config loads facetql configuration from file, environment and
// .env using viper.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/fluxbase-eu/facetql/internal/logutil"
	"github.com/fluxbase-eu/facetql/internal/observability"
	"github.com/fluxbase-eu/facetql/internal/pagination"
	"github.com/fluxbase-eu/facetql/internal/search"
)

// EnvPrefix prefixes every environment override, e.g. FACETQL_SERVER_ADDRESS.
const EnvPrefix = "FACETQL"

// ConfigEnv names an explicit config file, bypassing the search paths.
const ConfigEnv = "FACETQL_CONFIG"

// Config is the root configuration.
type Config struct {
	Server     ServerConfig                `mapstructure:"server"`
	Search     SearchConfig                `mapstructure:"search"`
	Schema     SchemaConfig                `mapstructure:"schema"`
	Registry   RegistryConfig              `mapstructure:"registry"`
	Pagination pagination.Config           `mapstructure:"pagination"`
	RateLimit  RateLimitConfig             `mapstructure:"rate_limit"`
	Metrics    MetricsConfig               `mapstructure:"metrics"`
	Tracing    observability.TracingConfig `mapstructure:"tracing"`
	Logging    logutil.LoggingConfig       `mapstructure:"logging"`
	Cache      CacheConfig                 `mapstructure:"cache"`
	Entities   map[string]EntityConfig     `mapstructure:"entities"`
}

// Load reads .env (when present), then the config file and FACETQL_
// environment overrides, and validates the result. A missing config file
// is not an error; defaults apply.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path := os.Getenv(ConfigEnv); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("facetql")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/facetql")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.query_body_limit", 64*1024)
	v.SetDefault("server.admin_token", "")

	v.SetDefault("search.backend", BackendElasticsearch)
	v.SetDefault("search.timeout", search.DefaultTimeout)
	v.SetDefault("search.fixtures_path", "")
	v.SetDefault("search.elasticsearch.addresses", []string{"http://localhost:9200"})
	v.SetDefault("search.elasticsearch.username", "")
	v.SetDefault("search.elasticsearch.password", "")
	v.SetDefault("search.elasticsearch.index_prefix", "")

	v.SetDefault("schema.source", SchemaSourceRegistry)
	v.SetDefault("schema.path", "")
	v.SetDefault("schema.url", "")
	v.SetDefault("schema.timeout", 10*time.Second)
	v.SetDefault("schema.reload_schedule", "")
	v.SetDefault("schema.redis.addr", "localhost:6379")
	v.SetDefault("schema.redis.password", "")
	v.SetDefault("schema.redis.db", 0)
	v.SetDefault("schema.redis.key", "facetql:schema")
	v.SetDefault("schema.redis.channel", "facetql:schema:updated")

	v.SetDefault("registry.path", "")

	v.SetDefault("pagination.default_per_page", pagination.DefaultPerPage)
	v.SetDefault("pagination.max_per_page", pagination.MaxPerPage)
	v.SetDefault("pagination.max_result_window", pagination.MaxResultWindow)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.anonymous_max", 100)
	v.SetDefault("rate_limit.keyed_max", 1000)
	v.SetDefault("rate_limit.window", time.Minute)
	v.SetDefault("rate_limit.admin_max", 10)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.endpoint", "localhost:4317")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.service_name", "facetql")
	v.SetDefault("tracing.sample_ratio", 1.0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("cache.filter_cache_size", 1024)
}

// Validate checks each section in order and reports the first failure.
func (c *Config) Validate() error {
	sections := []struct {
		name     string
		validate func() error
	}{
		{"server", c.Server.Validate},
		{"search", c.Search.Validate},
		{"schema", c.Schema.Validate},
		{"pagination", func() error { return validatePagination(c.Pagination) }},
		{"rate_limit", c.RateLimit.Validate},
		{"metrics", c.Metrics.Validate},
		{"tracing", c.Tracing.Validate},
		{"logging", c.Logging.Validate},
		{"cache", c.Cache.Validate},
	}
	for _, s := range sections {
		if err := s.validate(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

// DefaultFilters returns the configured default filter section per entity.
func (c *Config) DefaultFilters() map[string]string {
	out := make(map[string]string, len(c.Entities))
	for name, e := range c.Entities {
		if e.DefaultFilter != "" {
			out[name] = e.DefaultFilter
		}
	}
	return out
}

func validatePagination(p pagination.Config) error {
	if p.MaxPerPage < 1 {
		return fmt.Errorf("max_per_page must be at least 1, got: %d", p.MaxPerPage)
	}
	if p.DefaultPerPage < 1 || p.DefaultPerPage > p.MaxPerPage {
		return fmt.Errorf("default_per_page must be between 1 and max_per_page (%d), got: %d", p.MaxPerPage, p.DefaultPerPage)
	}
	if p.MaxResultWindow < p.MaxPerPage {
		return fmt.Errorf("max_result_window must be at least max_per_page (%d), got: %d", p.MaxPerPage, p.MaxResultWindow)
	}
	return nil
}

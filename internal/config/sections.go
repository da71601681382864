package config

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/fluxbase-eu/facetql/internal/search"
)

// Search backends.
const (
	BackendElasticsearch = "elasticsearch"
	BackendMemory        = "memory"
)

// Schema sources.
const (
	SchemaSourceRegistry = "registry"
	SchemaSourceFile     = "file"
	SchemaSourceHTTP     = "http"
	SchemaSourceRedis    = "redis"
)

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address        string        `mapstructure:"address"`          // Listen address (default: ":8080")
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`     // Request read timeout
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`    // Response write timeout
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`     // Keep-alive idle timeout
	QueryBodyLimit int           `mapstructure:"query_body_limit"` // Maximum query object size in bytes
	AdminToken     string        `mapstructure:"admin_token"`      // Bearer token for /admin routes (empty disables them)
}

// Validate validates server configuration
func (sc *ServerConfig) Validate() error {
	if sc.Address == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if sc.ReadTimeout <= 0 {
		return fmt.Errorf("read_timeout must be positive, got: %s", sc.ReadTimeout)
	}
	if sc.WriteTimeout <= 0 {
		return fmt.Errorf("write_timeout must be positive, got: %s", sc.WriteTimeout)
	}
	if sc.QueryBodyLimit < 1 {
		return fmt.Errorf("query_body_limit must be at least 1, got: %d", sc.QueryBodyLimit)
	}
	return nil
}

// SearchConfig selects and configures the search backend
type SearchConfig struct {
	Backend       string                     `mapstructure:"backend"`       // elasticsearch or memory
	Timeout       time.Duration              `mapstructure:"timeout"`       // Per-call backend timeout (default: 20s)
	FixturesPath  string                     `mapstructure:"fixtures_path"` // JSON documents for the memory backend
	Elasticsearch search.ElasticsearchConfig `mapstructure:"elasticsearch"`
}

// Validate validates search configuration
func (sc *SearchConfig) Validate() error {
	switch sc.Backend {
	case BackendElasticsearch:
		if len(sc.Elasticsearch.Addresses) == 0 {
			return fmt.Errorf("elasticsearch addresses cannot be empty")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("backend must be %s or %s, got: %s", BackendElasticsearch, BackendMemory, sc.Backend)
	}
	if sc.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got: %s", sc.Timeout)
	}
	return nil
}

// RedisConfig locates the schema snapshot in Redis
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`     // Key holding the schema document
	Channel  string `mapstructure:"channel"` // Pub/sub channel announcing updates
}

// SchemaConfig selects the entity schema source
type SchemaConfig struct {
	Source         string        `mapstructure:"source"`          // registry, file, http or redis
	Path           string        `mapstructure:"path"`            // File source path
	URL            string        `mapstructure:"url"`             // HTTP source URL
	Timeout        time.Duration `mapstructure:"timeout"`         // HTTP fetch timeout
	ReloadSchedule string        `mapstructure:"reload_schedule"` // Cron spec for periodic reloads (empty disables)
	Redis          RedisConfig   `mapstructure:"redis"`
}

// Validate validates schema configuration
func (sc *SchemaConfig) Validate() error {
	switch sc.Source {
	case SchemaSourceRegistry:
	case SchemaSourceFile:
		if sc.Path == "" {
			return fmt.Errorf("schema path cannot be empty for the file source")
		}
	case SchemaSourceHTTP:
		if sc.URL == "" {
			return fmt.Errorf("schema url cannot be empty for the http source")
		}
	case SchemaSourceRedis:
		if sc.Redis.Addr == "" || sc.Redis.Key == "" {
			return fmt.Errorf("schema redis addr and key cannot be empty for the redis source")
		}
	default:
		return fmt.Errorf("schema source must be registry, file, http or redis, got: %s", sc.Source)
	}
	if sc.ReloadSchedule != "" {
		if _, err := cron.ParseStandard(sc.ReloadSchedule); err != nil {
			return fmt.Errorf("invalid reload_schedule %q: %w", sc.ReloadSchedule, err)
		}
	}
	return nil
}

// RegistryConfig overrides the built-in field registry
type RegistryConfig struct {
	Path string `mapstructure:"path"` // YAML registry file (empty uses the built-in table)
}

// RateLimitConfig contains API rate limiting settings
type RateLimitConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	AnonymousMax int           `mapstructure:"anonymous_max"` // Requests per window per IP
	KeyedMax     int           `mapstructure:"keyed_max"`     // Requests per window per api_key
	Window       time.Duration `mapstructure:"window"`
	AdminMax     int           `mapstructure:"admin_max"` // Admin requests per window per IP
}

// Validate validates rate limit configuration
func (rc *RateLimitConfig) Validate() error {
	if !rc.Enabled {
		return nil
	}
	if rc.AnonymousMax < 1 {
		return fmt.Errorf("anonymous_max must be at least 1, got: %d", rc.AnonymousMax)
	}
	if rc.KeyedMax < rc.AnonymousMax {
		return fmt.Errorf("keyed_max must be at least anonymous_max (%d), got: %d", rc.AnonymousMax, rc.KeyedMax)
	}
	if rc.AdminMax < 1 {
		return fmt.Errorf("admin_max must be at least 1, got: %d", rc.AdminMax)
	}
	if rc.Window < time.Second {
		return fmt.Errorf("window must be at least 1s, got: %s", rc.Window)
	}
	return nil
}

// MetricsConfig contains prometheus settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"` // Dedicated metrics port (0 serves on the API listener)
	Path    string `mapstructure:"path"`
}

// Validate validates metrics configuration
func (mc *MetricsConfig) Validate() error {
	if !mc.Enabled {
		return nil
	}
	if mc.Port < 0 || mc.Port > 65535 {
		return fmt.Errorf("metrics port must be between 0 and 65535, got: %d", mc.Port)
	}
	if mc.Path == "" || mc.Path[0] != '/' {
		return fmt.Errorf("metrics path must start with /, got: %q", mc.Path)
	}
	return nil
}

// CacheConfig sizes in-process caches
type CacheConfig struct {
	FilterCacheSize int `mapstructure:"filter_cache_size"` // Parsed filter groups kept in the LRU
}

// Validate validates cache configuration
func (cc *CacheConfig) Validate() error {
	if cc.FilterCacheSize < 1 {
		return fmt.Errorf("filter_cache_size must be at least 1, got: %d", cc.FilterCacheSize)
	}
	return nil
}

// EntityConfig holds per-entity request defaults
type EntityConfig struct {
	DefaultFilter string `mapstructure:"default_filter"` // AND-only filter section unioned with every request
}

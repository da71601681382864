package middleware

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/storage/memory/v2"
	"github.com/rs/zerolog/log"

	"github.com/fluxbase-eu/facetql/internal/observability"
)

// APIKeyParam is the query parameter identifying a keyed client.
const APIKeyParam = "api_key"

var rateLimiterMetrics *observability.Metrics

// SetRateLimiterMetrics sets the metrics instance for rate limiter
func SetRateLimiterMetrics(m *observability.Metrics) {
	rateLimiterMetrics = m
}

// RateLimiterConfig holds configuration for rate limiting
type RateLimiterConfig struct {
	Name       string                 // Name of the rate limiter (for metrics)
	Max        int                    // Maximum number of requests
	Expiration time.Duration          // Time window for the rate limit
	KeyFunc    func(fiber.Ctx) string // Function to generate the key for rate limiting
	Next       func(fiber.Ctx) bool   // Skip the limiter when true
	Message    string                 // Custom error message
}

// NewRateLimiter creates a new rate limiter middleware with custom configuration.
//
// Counters live in process memory, so each instance limits independently.
func NewRateLimiter(config RateLimiterConfig) fiber.Handler {
	storage := memory.New(memory.Config{
		GCInterval: 10 * time.Minute,
	})

	if config.KeyFunc == nil {
		config.KeyFunc = func(c fiber.Ctx) string {
			return c.IP()
		}
	}

	if config.Message == "" {
		config.Message = fmt.Sprintf("Rate limit exceeded. Maximum %d requests per %s allowed.",
			config.Max, config.Expiration.String())
	}

	limiterName := config.Name
	if limiterName == "" {
		limiterName = "default"
	}

	return limiter.New(limiter.Config{
		Max:          config.Max,
		Expiration:   config.Expiration,
		KeyGenerator: config.KeyFunc,
		Next:         config.Next,
		LimitReached: func(c fiber.Ctx) error {
			if rateLimiterMetrics != nil {
				rateLimiterMetrics.RecordRateLimitHit(limiterName)
			}
			log.Debug().Str("limiter", limiterName).Str("ip", c.IP()).Msg("Rate limit exceeded")

			retryAfter := int(config.Expiration.Seconds())
			c.Set("Retry-After", fmt.Sprintf("%d", retryAfter))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"code":        "RATE_LIMIT_EXCEEDED",
				"error":       "Rate limit exceeded",
				"message":     config.Message,
				"retry_after": retryAfter,
			})
		},
		Storage: storage,
	})
}

// APILimiters returns the tiered limiters for the list and query routes.
// Requests carrying an api_key are counted per key against keyedMax;
// anonymous requests are counted per IP against anonMax.
func APILimiters(anonMax, keyedMax int, window time.Duration) []fiber.Handler {
	hasKey := func(c fiber.Ctx) bool { return c.Query(APIKeyParam) != "" }

	anon := NewRateLimiter(RateLimiterConfig{
		Name:       "api_anonymous",
		Max:        anonMax,
		Expiration: window,
		KeyFunc:    func(c fiber.Ctx) string { return "ip:" + c.IP() },
		Next:       hasKey,
		Message: fmt.Sprintf("Rate limit exceeded. Maximum %d requests per %s allowed. Add an api_key for a higher limit.",
			anonMax, window.String()),
	})
	keyed := NewRateLimiter(RateLimiterConfig{
		Name:       "api_keyed",
		Max:        keyedMax,
		Expiration: window,
		KeyFunc:    func(c fiber.Ctx) string { return "key:" + c.Query(APIKeyParam) },
		Next:       func(c fiber.Ctx) bool { return !hasKey(c) },
		Message:    fmt.Sprintf("API key rate limit exceeded. Maximum %d requests per %s allowed.", keyedMax, window.String()),
	})
	return []fiber.Handler{anon, keyed}
}

// AdminLimiter limits schema administration calls per IP.
func AdminLimiter(max int, window time.Duration) fiber.Handler {
	return NewRateLimiter(RateLimiterConfig{
		Name:       "admin",
		Max:        max,
		Expiration: window,
		KeyFunc:    func(c fiber.Ctx) string { return "admin:" + c.IP() },
	})
}

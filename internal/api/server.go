// Package api serves the list, lookup and query object endpoints over
// fiber.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/rs/zerolog/log"

	"github.com/fluxbase-eu/facetql/internal/config"
	"github.com/fluxbase-eu/facetql/internal/middleware"
	"github.com/fluxbase-eu/facetql/internal/observability"
	"github.com/fluxbase-eu/facetql/internal/queryerr"
	"github.com/fluxbase-eu/facetql/internal/results"
	"github.com/fluxbase-eu/facetql/internal/schema"
)

// Server is the HTTP front end.
type Server struct {
	app       *fiber.App
	config    *config.Config
	assembler *results.Assembler
	schema    *schema.Cache
	metrics   *observability.Metrics
}

// NewServer builds the fiber app and registers every route. metrics may be
// nil to run without instrumentation.
func NewServer(cfg *config.Config, assembler *results.Assembler, cache *schema.Cache, metrics *observability.Metrics) *Server {
	app := fiber.New(fiber.Config{
		AppName:      "facetql",
		ErrorHandler: customErrorHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	})

	s := &Server{
		app:       app,
		config:    cfg,
		assembler: assembler,
		schema:    cache,
		metrics:   metrics,
	}
	s.setupRoutes()
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start listens on the configured address until Shutdown.
func (s *Server) Start() error {
	log.Info().Str("address", s.config.Server.Address).Str("backend", s.assembler.Backend().Name()).Msg("Starting API server")
	if err := s.app.Listen(s.config.Server.Address, fiber.ListenConfig{DisableStartupMessage: true}); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) setupRoutes() {
	s.app.Use(recoverer.New())
	if s.config.Tracing.Enabled {
		s.app.Use(observability.TracingMiddleware())
	}
	s.app.Use(middleware.RequestLogger())
	if s.metrics != nil {
		s.app.Use(s.metrics.MetricsMiddleware())
	}

	health := NewHealthHandler(s.assembler.Backend(), s.schema)
	s.app.Get("/health", health.Health)

	if s.metrics != nil && s.config.Metrics.Enabled && s.config.Metrics.Port == 0 {
		s.app.Get(s.config.Metrics.Path, adaptor.HTTPHandler(s.metrics.Handler()))
	}

	rl := s.config.RateLimit
	admin := NewAdminHandler(s.schema, s.config.Schema.Source, s.metrics)
	adminGroup := s.app.Group("/admin")
	if rl.Enabled {
		adminGroup.Use(middleware.AdminLimiter(rl.AdminMax, rl.Window))
	}
	adminGroup.Use(requireAdminToken(s.config.Server.AdminToken))
	adminGroup.Post("/schema/reload", admin.ReloadSchema)

	if rl.Enabled {
		for _, h := range middleware.APILimiters(rl.AnonymousMax, rl.KeyedMax, rl.Window) {
			s.app.Use(h)
		}
	}

	queries := NewQueryHandler(s.assembler, s.schema)
	bodyLimit := middleware.BodyLimit(s.config.Server.QueryBodyLimit)
	s.app.Post("/query/validate", bodyLimit, queries.Validate)
	s.app.Post("/query", bodyLimit, queries.Execute)

	entities := NewEntityHandler(s.assembler)
	s.app.Get("/:entity", entities.List)
	s.app.Get("/:entity/:id", entities.Get)
}

// customErrorHandler renders query errors as {error: category, message}
// and everything else as {error, code}.
func customErrorHandler(c fiber.Ctx, err error) error {
	if qe, ok := queryerr.As(err); ok {
		if qe.Retryable() {
			c.Set("Retry-After", "1")
		}
		return c.Status(qe.Status()).JSON(fiber.Map{
			"error":   string(qe.Category),
			"message": qe.Message,
		})
	}

	code := fiber.StatusInternalServerError
	message := "Internal Server Error"
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}
	return c.Status(code).JSON(fiber.Map{
		"error": message,
		"code":  code,
	})
}

// rawQuery parses the query string keeping repeated keys, which
// c.Queries would collapse.
func rawQuery(c fiber.Ctx) (url.Values, error) {
	values, err := url.ParseQuery(string(c.Request().URI().QueryString()))
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid query string")
	}
	return values, nil
}

func requestParams(c fiber.Ctx) (results.Params, error) {
	values, err := rawQuery(c)
	if err != nil {
		return results.Params{}, err
	}
	return results.ParseParams(values), nil
}

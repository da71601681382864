package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/fluxbase-eu/facetql/internal/schema"
	"github.com/fluxbase-eu/facetql/internal/search"
)

const healthTimeout = 2 * time.Second

// HealthHandler reports backend reachability and schema readiness.
type HealthHandler struct {
	backend search.Backend
	schema  *schema.Cache
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(backend search.Backend, cache *schema.Cache) *HealthHandler {
	return &HealthHandler{backend: backend, schema: cache}
}

// Health handles GET /health
func (h *HealthHandler) Health(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), healthTimeout)
	defer cancel()

	backendOK := h.backend.Health(ctx) == nil
	schemaOK := h.schema.Snapshot() != nil

	status := "ok"
	code := fiber.StatusOK
	if !backendOK || !schemaOK {
		status = "degraded"
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"status": status,
		"services": fiber.Map{
			h.backend.Name(): backendOK,
			"schema":         schemaOK,
		},
	})
}

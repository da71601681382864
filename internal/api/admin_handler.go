package api

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"

	"github.com/fluxbase-eu/facetql/internal/observability"
	"github.com/fluxbase-eu/facetql/internal/schema"
)

// AdminHandler serves schema administration.
type AdminHandler struct {
	schema  *schema.Cache
	source  string
	metrics *observability.Metrics
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(cache *schema.Cache, source string, metrics *observability.Metrics) *AdminHandler {
	return &AdminHandler{schema: cache, source: source, metrics: metrics}
}

// ReloadSchema handles POST /admin/schema/reload. A failed reload keeps
// the current snapshot.
func (h *AdminHandler) ReloadSchema(c fiber.Ctx) error {
	snap, err := h.schema.Reload(c.Context())
	if h.metrics != nil {
		entities := 0
		if snap != nil {
			entities = len(snap.Entities())
		}
		h.metrics.RecordSchemaReload(h.source, entities, err)
	}
	if err != nil {
		log.Error().Err(err).Str("source", h.source).Msg("Schema reload failed")
		return fiber.NewError(fiber.StatusBadGateway, "Schema reload failed")
	}

	return c.JSON(fiber.Map{
		"source":   snap.Source,
		"entities": snap.Entities(),
	})
}

// requireAdminToken guards admin routes with a static bearer token. An
// empty token disables the routes.
func requireAdminToken(token string) fiber.Handler {
	return func(c fiber.Ctx) error {
		if token == "" {
			return fiber.NewError(fiber.StatusNotFound, "Not found")
		}
		got, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			return fiber.NewError(fiber.StatusUnauthorized, "Unauthorized")
		}
		return c.Next()
	}
}

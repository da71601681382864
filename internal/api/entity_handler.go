package api

import (
	"github.com/gofiber/fiber/v3"

	"github.com/fluxbase-eu/facetql/internal/results"
)

// EntityHandler serves entity lists and single-entity lookups.
type EntityHandler struct {
	assembler *results.Assembler
}

// NewEntityHandler creates a new entity handler
func NewEntityHandler(assembler *results.Assembler) *EntityHandler {
	return &EntityHandler{assembler: assembler}
}

// List handles GET /:entity
func (h *EntityHandler) List(c fiber.Ctx) error {
	params, err := requestParams(c)
	if err != nil {
		return err
	}
	env, err := h.assembler.List(c.Context(), c.Params("entity"), params)
	if err != nil {
		return err
	}
	return c.JSON(env)
}

// Get handles GET /:entity/:id
func (h *EntityHandler) Get(c fiber.Ctx) error {
	doc, err := h.assembler.Get(c.Context(), c.Params("entity"), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(doc)
}

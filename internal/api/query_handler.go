package api

import (
	"fmt"

	"github.com/gofiber/fiber/v3"

	"github.com/fluxbase-eu/facetql/internal/oqo"
	"github.com/fluxbase-eu/facetql/internal/queryerr"
	"github.com/fluxbase-eu/facetql/internal/results"
	"github.com/fluxbase-eu/facetql/internal/schema"
)

// ValidateResponse is the body of POST /query/validate.
type ValidateResponse struct {
	OK    bool    `json:"ok"`
	Error *string `json:"error"`
}

// QueryHandler serves query object requests.
type QueryHandler struct {
	assembler *results.Assembler
	schema    *schema.Cache
}

// NewQueryHandler creates a new query object handler
func NewQueryHandler(assembler *results.Assembler, cache *schema.Cache) *QueryHandler {
	return &QueryHandler{assembler: assembler, schema: cache}
}

func (h *QueryHandler) snapshot() (*schema.Snapshot, error) {
	snap := h.schema.Snapshot()
	if snap == nil {
		return nil, queryerr.Backend(fmt.Errorf("entity schema not loaded"))
	}
	return snap, nil
}

// Execute handles POST /query. Pagination parameters come from the URL.
func (h *QueryHandler) Execute(c fiber.Ctx) error {
	snap, err := h.snapshot()
	if err != nil {
		return err
	}
	req, err := oqo.Decode(c.Body())
	if err != nil {
		return err
	}
	compiled, err := oqo.NewCompiler(h.assembler.Registry(), snap).Compile(req)
	if err != nil {
		return err
	}

	params, err := requestParams(c)
	if err != nil {
		return err
	}
	env, err := h.assembler.Query(c.Context(), compiled, params)
	if err != nil {
		return err
	}
	return c.JSON(env)
}

// Validate handles POST /query/validate. It always answers 200 with the
// outcome in the body.
func (h *QueryHandler) Validate(c fiber.Ctx) error {
	snap, err := h.snapshot()
	if err != nil {
		return err
	}
	req, err := oqo.Decode(c.Body())
	if err != nil {
		msg := err.Error()
		return c.JSON(ValidateResponse{OK: false, Error: &msg})
	}

	ok, msg := oqo.NewValidator(snap, oqo.WithRecover()).Check(req)
	if ok {
		return c.JSON(ValidateResponse{OK: true})
	}
	return c.JSON(ValidateResponse{OK: false, Error: &msg})
}

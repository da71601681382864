package middleware

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fluxbase-eu/facetql/internal/logutil"
	"github.com/fluxbase-eu/facetql/internal/observability"
	"github.com/fluxbase-eu/facetql/internal/queryerr"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

const requestIDLocal = "request_id"

// RequestID returns the id assigned by RequestLogger, or "".
func RequestID(c fiber.Ctx) string {
	if id, ok := c.Locals(requestIDLocal).(string); ok {
		return id
	}
	return ""
}

// RequestLogger assigns a request id and logs one line per request with
// the query string redacted. Query errors log at debug since they are
// caller mistakes; server-side failures log at error.
func RequestLogger() fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		id := c.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Locals(requestIDLocal, id)
		c.Set(RequestIDHeader, id)

		err := c.Next()

		status := c.Response().StatusCode()
		level := zerolog.InfoLevel
		if err != nil {
			if qe, ok := queryerr.As(err); ok {
				status = qe.Status()
				level = zerolog.DebugLevel
				if qe.Retryable() {
					level = zerolog.WarnLevel
				}
			} else if fe := (*fiber.Error)(nil); errors.As(err, &fe) {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
				level = zerolog.ErrorLevel
			}
		}

		event := log.WithLevel(level).
			Str("request_id", id).
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Dur("latency", time.Since(start))
		if traceID := observability.TraceID(c.Context()); traceID != "" {
			event = event.Str("trace_id", traceID)
		}
		if q := string(c.Request().URI().QueryString()); q != "" {
			event = event.Str("query", logutil.RedactQuery(q))
		}
		if err != nil {
			event = event.Err(err)
		}
		event.Msg("HTTP request")
		return err
	}
}

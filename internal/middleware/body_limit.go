package middleware

import (
	"fmt"

	"github.com/gofiber/fiber/v3"
)

// DefaultQueryBodyLimit bounds query object payloads.
const DefaultQueryBodyLimit = 64 * 1024

// BodyLimit rejects request bodies larger than limit bytes with 413.
func BodyLimit(limit int) fiber.Handler {
	if limit <= 0 {
		limit = DefaultQueryBodyLimit
	}
	return func(c fiber.Ctx) error {
		size := c.Request().Header.ContentLength()
		if size < 0 || size <= limit {
			size = len(c.Body())
		}
		if size > limit {
			return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{
				"code":    "PAYLOAD_TOO_LARGE",
				"error":   "Payload too large",
				"message": fmt.Sprintf("Request body exceeds the %d byte limit.", limit),
			})
		}
		return c.Next()
	}
}

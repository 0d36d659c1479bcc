package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"

	"github.com/kyrremann/plogtion/internal/logger"
)

// APIKeyHeader carries the shared secret on the image endpoints.
const APIKeyHeader = "X-API-Key"

// RequireAPIKey rejects requests whose X-API-Key header does not match
// secret. An empty secret rejects everything with 500.
func RequireAPIKey(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			logger.Get().Error().
				Str("method", c.Method()).
				Str("path", c.Path()).
				Msg("TOKEN not set, refusing image request")

			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":  "TOKEN not set",
				"status": "internal",
			})
		}

		apiKey := c.Get(APIKeyHeader)
		if apiKey == "" || subtle.ConstantTimeCompare([]byte(apiKey), []byte(secret)) != 1 {
			logger.Get().Warn().
				Str("method", c.Method()).
				Str("path", c.Path()).
				Str("ip", c.IP()).
				Bool("missing", apiKey == "").
				Msg("Unauthorized image request")

			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":  "Invalid or missing API key",
				"status": "unauthorized",
			})
		}

		return c.Next()
	}
}

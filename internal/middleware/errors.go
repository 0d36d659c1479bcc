package middleware

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/kyrremann/plogtion/internal/logger"
)

// ErrorHandler is a middleware that handles errors in a consistent way
func ErrorHandler(c *fiber.Ctx, err error) error {
	// Default status code
	code := fiber.StatusInternalServerError

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}

	event := logger.Get().Error()
	if code < fiber.StatusInternalServerError {
		event = logger.Get().Warn()
	}
	event.
		Err(err).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Int("status", code).
		Msg("HTTP error")

	return c.Status(code).JSON(fiber.Map{
		"error":  http.StatusText(code),
		"status": statusClass(code),
	})
}

func statusClass(code int) string {
	switch {
	case code == fiber.StatusUnauthorized:
		return "unauthorized"
	case code >= 400 && code < 500:
		return "bad input"
	}
	return "internal"
}

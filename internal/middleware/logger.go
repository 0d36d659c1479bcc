package middleware

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kyrremann/plogtion/internal/logger"
)

const (
	// RequestIDKey is the fiber.Ctx local holding the request id.
	RequestIDKey = "request_id"
	// StageKey is the fiber.Ctx local a handler sets to the pipeline stage
	// a request failed in.
	StageKey = "stage"
)

// RequestID tags every request with an id, reusing X-Request-ID when the
// client sent one.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(fiber.HeaderXRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Locals(RequestIDKey, id)
		c.Set(fiber.HeaderXRequestID, id)
		return c.Next()
	}
}

// GetRequestID returns the id set by RequestID, or a new one.
func GetRequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(RequestIDKey).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// SetStage records the pipeline stage a request stopped at for the
// request log line.
func SetStage(c *fiber.Ctx, stage string) {
	c.Locals(StageKey, stage)
}

// RequestLogger writes one event per request to the global logger.
func RequestLogger() fiber.Handler {
	return NewLogger(nil)
}

// NewLogger writes one event per request. Health and metrics probes are
// logged at debug so they do not drown out uploads. A nil log uses the
// global logger.
func NewLogger(log *zerolog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		l := log
		if l == nil {
			l = logger.Get()
		}

		start := time.Now()
		err := c.Next()
		latency := time.Since(start)

		status := c.Response().StatusCode()
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		var event *zerolog.Event
		switch {
		case status >= fiber.StatusInternalServerError:
			event = l.Error()
		case status >= fiber.StatusBadRequest:
			event = l.Warn()
		case c.Path() == "/health" || c.Path() == "/metrics":
			event = l.Debug()
		default:
			event = l.Info()
		}

		event = event.
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", status).
			Str("ip", c.IP()).
			Int("bytes_in", len(c.Request().Body())).
			Int("bytes_out", len(c.Response().Body())).
			Dur("latency", latency)
		if id, ok := c.Locals(RequestIDKey).(string); ok {
			event = event.Str("request_id", id)
		}
		if stage, ok := c.Locals(StageKey).(string); ok && stage != "" {
			event = event.Str("stage", stage)
		}
		if err != nil {
			event = event.Err(err)
		}
		event.Msg("request")

		return err
	}
}

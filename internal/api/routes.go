package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kyrremann/plogtion/internal/middleware"
)

// SetupRoutes configures all the routes for the application. token guards
// the standalone image endpoints.
func SetupRoutes(app *fiber.App, handlers *Handlers, token string) {
	app.Get("/", handlers.Index)
	app.Get("/health", handlers.HealthCheck)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// The post form carries its own token field
	app.Post("/post", handlers.PublishPost)

	// FilePond process/revert endpoints, called cross-origin from the form
	image := app.Group("/image", cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "*",
		AllowHeaders: "*",
	}))
	{
		image.Post("", middleware.RequireAPIKey(token), handlers.UploadImage)
		image.Delete("", middleware.RequireAPIKey(token), handlers.DeleteImage)
	}

	// 404 Handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":  "Endpoint not found",
			"status": "bad input",
		})
	})
}

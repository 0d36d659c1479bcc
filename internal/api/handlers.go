package api

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kyrremann/plogtion/internal/form"
	"github.com/kyrremann/plogtion/internal/logger"
	"github.com/kyrremann/plogtion/internal/middleware"
	"github.com/kyrremann/plogtion/internal/pipeline"
	"github.com/kyrremann/plogtion/internal/storage"
)

// Publisher runs the post pipeline over a form stream.
type Publisher interface {
	Run(ctx context.Context, requestID string, stream form.Stream) (*pipeline.Result, error)
}

// ImageStore is the bucket behind the standalone image endpoints.
type ImageStore interface {
	Put(ctx context.Context, path string, data []byte, contentType string) error
	Delete(ctx context.Context, path string) error
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>plogtion</title></head>
<body>
<h1>plogtion</h1>
<p>POST a multipart form to <code>/post</code> to publish a plog entry.</p>
</body>
</html>`

type Handlers struct {
	publisher Publisher
	images    ImageStore
	resizer   pipeline.Preprocessor
	now       func() time.Time
}

// NewHandlers wires the HTTP handlers. resizer may be nil.
func NewHandlers(publisher Publisher, images ImageStore, resizer pipeline.Preprocessor) *Handlers {
	return &Handlers{
		publisher: publisher,
		images:    images,
		resizer:   resizer,
		now:       time.Now,
	}
}

// Index handles GET /
func (h *Handlers) Index(c *fiber.Ctx) error {
	c.Type("html", "utf-8")
	return c.SendString(indexHTML)
}

// HealthCheck handles the /health endpoint
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"time":   h.now().Format(time.RFC3339),
	})
}

// PublishPost handles POST /post
func (h *Handlers) PublishPost(c *fiber.Ctx) error {
	requestID := middleware.GetRequestID(c)
	log := logger.WithRequest(requestID)

	stream, err := form.NewMultipartStream(bytes.NewReader(c.Body()), c.Get(fiber.HeaderContentType))
	if err != nil {
		log.Warn().Err(err).Msg("Rejecting non-multipart post")
		middleware.SetStage(c, string(pipeline.StageDemux))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  err.Error(),
			"status": pipeline.BadInput.Status(),
			"stage":  pipeline.StageDemux,
		})
	}

	log.Info().Int("bytes", len(c.Body())).Msg("Payload received")

	result, err := h.publisher.Run(c.UserContext(), requestID, stream)
	if err != nil {
		perr := pipeline.AsError(err)
		middleware.SetStage(c, string(perr.Stage))
		body := fiber.Map{
			"error":  perr.Error(),
			"status": perr.Kind.Status(),
			"stage":  perr.Stage,
		}
		if result != nil {
			body["post_url"] = result.PostURL
		}
		return c.Status(statusCode(perr.Kind)).JSON(body)
	}

	return c.JSON(fiber.Map{
		"message": "Form and multipart data processed successfully!",
		"post":    result,
	})
}

// UploadImage handles POST /image. The single filepond field is stored at
// its date-partitioned key and the key is returned as plain text.
func (h *Handlers) UploadImage(c *fiber.Ctx) error {
	requestID := middleware.GetRequestID(c)
	log := logger.WithRequest(requestID)

	stream, err := form.NewMultipartStream(bytes.NewReader(c.Body()), c.Get(fiber.HeaderContentType))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).SendString(err.Error())
	}

	var path string
	for {
		f, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Error().Err(err).Msg("Failed to read multipart field")
			return c.Status(fiber.StatusBadRequest).SendString("Failed to read multipart field")
		}

		if f.Name != "filepond" {
			log.Warn().Str("field", f.Name).Msg("Unexpected field name")
			return c.Status(fiber.StatusBadRequest).SendString("Unexpected field name")
		}
		if !f.IsFile() || len(f.Data) == 0 {
			continue
		}

		data := f.Data
		if h.resizer != nil {
			if processed, err := h.resizer.Process(data); err == nil {
				data = processed
			} else {
				log.Warn().Err(err).Str("file", f.FileName).Msg("Uploading image without resizing")
			}
		}

		path = storage.ImagePath(f.FileName, h.now())
		contentType := form.DetectContentType(f.ContentType, f.Data)
		if err := h.images.Put(c.UserContext(), path, data, contentType); err != nil {
			log.Error().Err(err).Str("path", path).Msg("Failed to upload image")
			return c.Status(fiber.StatusInternalServerError).SendString("Failed to upload image: " + err.Error())
		}
		log.Info().Str("path", path).Msg("Uploaded image")
	}

	if path == "" {
		return c.Status(fiber.StatusBadRequest).SendString("No image found in request")
	}

	c.Type("txt")
	return c.SendString(path)
}

// DeleteImage handles DELETE /image. The body is the storage key to remove.
func (h *Handlers) DeleteImage(c *fiber.Ctx) error {
	log := logger.WithRequest(middleware.GetRequestID(c))

	path := strings.TrimSpace(string(c.Body()))
	if path == "" {
		return c.Status(fiber.StatusBadRequest).SendString("Missing image path")
	}

	if err := h.images.Delete(c.UserContext(), path); err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to delete image")
		return c.Status(fiber.StatusInternalServerError).SendString("Failed to delete image")
	}

	log.Info().Str("path", path).Msg("Deleted image")
	return c.SendStatus(fiber.StatusOK)
}

func statusCode(kind pipeline.Kind) int {
	switch kind {
	case pipeline.BadInput, pipeline.ValidationFailed:
		return fiber.StatusBadRequest
	case pipeline.Unauthorized:
		return fiber.StatusUnauthorized
	}
	return fiber.StatusInternalServerError
}

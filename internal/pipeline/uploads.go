package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/kyrremann/plogtion/internal/models"
)

// uploadAll stores every pending image. The first failure cancels the rest;
// objects already written stay in the bucket.
func (c *Coordinator) uploadAll(ctx context.Context, log zerolog.Logger, uploads []models.PendingUpload) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.UploadConcurrency)

	for _, u := range uploads {
		u := u
		g.Go(func() error {
			return c.upload(ctx, log, u)
		})
	}
	return g.Wait()
}

func (c *Coordinator) upload(ctx context.Context, log zerolog.Logger, u models.PendingUpload) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data := u.Data
	if c.resizer != nil {
		processed, err := c.resizer.Process(u.Data)
		if err != nil {
			log.Warn().Err(err).Str("file", u.FileName).Msg("Uploading image without resizing")
		} else {
			log.Debug().
				Str("file", u.FileName).
				Int("original_bytes", len(u.Data)).
				Int("stored_bytes", len(processed)).
				Msg("Image preprocessed")
			data = processed
		}
	}

	start := time.Now()
	if err := c.store.Put(ctx, u.StoragePath, data, u.ContentType); err != nil {
		return fmt.Errorf("upload %s: %w", u.FileName, err)
	}
	c.metrics.AddUploadedBytes(len(data))

	log.Info().
		Str("file", u.FileName).
		Str("path", u.StoragePath).
		Str("content_type", u.ContentType).
		Dur("duration", time.Since(start)).
		Msg("Image uploaded")
	return nil
}

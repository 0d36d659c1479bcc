// Package form turns a multipart field stream into a post submission.
package form

import (
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"

	"github.com/kyrremann/plogtion/internal/geo"
	"github.com/kyrremann/plogtion/internal/models"
)

var (
	// ErrUnknownField is returned for a field no rule recognizes.
	ErrUnknownField = errors.New("unexpected field")
	// ErrMissingImageKey is returned for a suffixed field with nothing before the suffix.
	ErrMissingImageKey = errors.New("missing image key")
	// ErrEmptyImage is returned for a file field with no content.
	ErrEmptyImage = errors.New("empty image")
)

type handlerFunc func(d *Demuxer, sub *models.Submission, key string, f Field) error

// rule routes a field by exact name or by suffix. For suffix rules the key
// is the name with the suffix removed.
type rule struct {
	exact  string
	suffix string
	handle handlerFunc
}

func (r rule) match(name string) (key string, ok bool) {
	if r.exact != "" {
		return "", name == r.exact
	}
	if strings.HasSuffix(name, r.suffix) {
		return strings.TrimSuffix(name, r.suffix), true
	}
	return "", false
}

// Exact rules come first so they win over any suffix.
var rules = []rule{
	{exact: "token", handle: func(_ *Demuxer, sub *models.Submission, _ string, f Field) error {
		sub.Token = f.Text()
		return nil
	}},
	{exact: "title", handle: func(_ *Demuxer, sub *models.Submission, _ string, f Field) error {
		sub.Record.Title = strings.TrimSpace(f.Text())
		return nil
	}},
	{exact: "strava", handle: func(_ *Demuxer, sub *models.Submission, _ string, f Field) error {
		sub.Record.Strava = f.Text()
		return nil
	}},
	{exact: "date", handle: func(_ *Demuxer, sub *models.Submission, _ string, f Field) error {
		sub.Record.Date = f.Text()
		return nil
	}},
	{exact: "categories", handle: func(_ *Demuxer, sub *models.Submission, _ string, f Field) error {
		sub.Record.Categories = f.Text()
		return nil
	}},
	{exact: "feature_image", handle: func(_ *Demuxer, sub *models.Submission, _ string, f Field) error {
		sub.Record.FeatureImage = f.Text()
		return nil
	}},
	{exact: "filepond", handle: (*Demuxer).handleFilepond},
	{suffix: "_alt_text", handle: func(_ *Demuxer, sub *models.Submission, key string, f Field) error {
		sub.Record.Image(key).AltText = f.Text()
		return nil
	}},
	{suffix: "_caption", handle: func(_ *Demuxer, sub *models.Submission, key string, f Field) error {
		sub.Record.Image(key).Caption = f.Text()
		return nil
	}},
	{suffix: "_description", handle: func(_ *Demuxer, sub *models.Submission, key string, f Field) error {
		sub.Record.Image(key).Description = normalizeNewlines(f.Text())
		return nil
	}},
	{suffix: "_location", handle: (*Demuxer).handleLocation},
}

// Demuxer builds a submission from a field stream. It performs no I/O
// beyond reading the stream.
type Demuxer struct {
	log zerolog.Logger
}

// NewDemuxer creates a Demuxer that reports non-fatal field problems to log.
func NewDemuxer(log zerolog.Logger) *Demuxer {
	return &Demuxer{log: log}
}

// Demux consumes stream until io.EOF. Any read failure or unrecognized
// field rejects the whole submission.
func (d *Demuxer) Demux(stream Stream) (*models.Submission, error) {
	sub := &models.Submission{Record: models.NewPostRecord()}

	for {
		f, err := stream.Next()
		if err == io.EOF {
			return sub, nil
		}
		if err != nil {
			return nil, err
		}

		if err := d.route(sub, f); err != nil {
			return nil, err
		}
	}
}

func (d *Demuxer) route(sub *models.Submission, f Field) error {
	for _, r := range rules {
		key, ok := r.match(f.Name)
		if !ok {
			continue
		}
		if r.exact == "" && key == "" {
			return fmt.Errorf("%w: %s", ErrMissingImageKey, f.Name)
		}
		d.log.Debug().Str("field", f.Name).Int("bytes", len(f.Data)).Msg("Processing field")
		return r.handle(d, sub, key, f)
	}
	return fmt.Errorf("%w: %s", ErrUnknownField, f.Name)
}

func (d *Demuxer) handleLocation(sub *models.Submission, key string, f Field) error {
	location, coordinates, err := geo.Normalize(f.Text())
	if err != nil {
		d.log.Warn().Err(err).Str("image", key).Msg("Ignoring malformed location")
		return nil
	}
	img := sub.Record.Image(key)
	img.Location = location
	img.Coordinates = coordinates
	return nil
}

// handleFilepond accepts either an image payload or, without a filename,
// the storage path of an image uploaded earlier.
func (d *Demuxer) handleFilepond(sub *models.Submission, _ string, f Field) error {
	if !f.IsFile() {
		storagePath := strings.Trim(strings.TrimSpace(f.Text()), "/")
		if storagePath == "" {
			return nil
		}
		key := path.Base(storagePath)
		sub.Record.Image(key).FileName = key
		sub.References = append(sub.References, models.ImageRef{Key: key, StoragePath: storagePath})
		return nil
	}

	if len(f.Data) == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyImage, f.FileName)
	}

	upload := models.PendingUpload{
		FileName:    f.FileName,
		ContentType: DetectContentType(f.ContentType, f.Data),
		Data:        f.Data,
	}
	sub.Record.Image(f.FileName).FileName = f.FileName

	for i := range sub.Uploads {
		if sub.Uploads[i].FileName == upload.FileName {
			sub.Uploads[i] = upload
			return nil
		}
	}
	sub.Uploads = append(sub.Uploads, upload)
	return nil
}

// DetectContentType keeps a declared type unless it is missing or generic,
// in which case the payload is sniffed.
func DetectContentType(declared string, data []byte) string {
	declared = strings.TrimSpace(declared)
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return mimetype.Detect(data).String()
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

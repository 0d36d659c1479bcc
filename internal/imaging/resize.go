// Package imaging shrinks oversized photos before they are stored.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	// gif is registered so DecodeConfig recognises it and passes it through.
	_ "image/gif"

	"golang.org/x/image/draw"
)

const (
	DefaultMaxDimension = 1440
	DefaultJPEGQuality  = 75
)

// ErrUndecodable is returned when the payload is not an image we can read.
var ErrUndecodable = errors.New("image could not be decoded")

// Resizer scales images whose longest side exceeds MaxDimension. JPEG and
// PNG are re-encoded in their own format; anything else is left untouched.
type Resizer struct {
	MaxDimension int
	JPEGQuality  int
}

// NewResizer returns a resizer, falling back to defaults for zero values.
func NewResizer(maxDimension, quality int) *Resizer {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &Resizer{MaxDimension: maxDimension, JPEGQuality: quality}
}

// Process returns the bytes to store. On ErrUndecodable the original data is
// returned alongside the error so callers can still upload it.
func (r *Resizer) Process(data []byte) ([]byte, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return data, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if format != "jpeg" && format != "png" {
		return data, nil
	}

	width, height := TargetSize(cfg.Width, cfg.Height, r.MaxDimension)
	if width == cfg.Width && height == cfg.Height {
		return data, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return data, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: r.JPEGQuality})
	case "png":
		err = png.Encode(&buf, dst)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

// TargetSize scales width and height so the longest side is at most limit,
// keeping the aspect ratio.
func TargetSize(width, height, limit int) (int, int) {
	if width <= limit && height <= limit {
		return width, height
	}

	w, h := limit, limit
	if width >= height {
		h = height * limit / width
	} else {
		w = width * limit / height
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// Package post resolves, validates and renders a post record.
package post

import (
	"errors"
	"sort"
	"strings"

	"github.com/kyrremann/plogtion/internal/models"
)

// ErrNoMainImage is returned when a record has no images to feature.
var ErrNoMainImage = errors.New("no main image specified or found")

// ResolveFeature promotes one image to record.Feature and returns its key.
// An explicit feature_image wins when it names a known image; otherwise the
// key that sorts first after lower-casing is used.
func ResolveFeature(record *models.PostRecord) (string, error) {
	if record.Len() == 0 {
		return "", ErrNoMainImage
	}

	key := record.FeatureImage
	if _, ok := record.Lookup(key); key == "" || !ok {
		key = firstKey(record.Keys())
	}

	img, _ := record.Lookup(key)
	record.Feature = *img
	record.Feature.FileName = key
	return key, nil
}

func firstKey(keys []string) string {
	sort.Slice(keys, func(i, j int) bool {
		li, lj := strings.ToLower(keys[i]), strings.ToLower(keys[j])
		if li != lj {
			return li < lj
		}
		return keys[i] < keys[j]
	})
	return keys[0]
}

package post

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyrremann/plogtion/internal/models"
)

func recordWith(keys ...string) *models.PostRecord {
	record := models.NewPostRecord()
	for _, key := range keys {
		img := record.Image(key)
		img.FileName = key
		img.ImageURL = "https://cdn.example.com/images/" + key
		img.Description = "about " + key
	}
	return record
}

func TestResolveFeature(t *testing.T) {
	t.Run("lexicographic fallback", func(t *testing.T) {
		record := recordWith("b.jpg", "a.jpg")

		key, err := ResolveFeature(record)
		require.NoError(t, err)
		assert.Equal(t, "a.jpg", key)
		assert.Equal(t, "a.jpg", record.Feature.FileName)
		assert.Equal(t, "about a.jpg", record.Feature.Description)
	})

	t.Run("case is ignored", func(t *testing.T) {
		record := recordWith("b.jpg", "C.jpg", "A.jpg")

		key, err := ResolveFeature(record)
		require.NoError(t, err)
		assert.Equal(t, "A.jpg", key)
	})

	t.Run("explicit feature wins", func(t *testing.T) {
		record := recordWith("a.jpg", "z.jpg")
		record.FeatureImage = "z.jpg"

		key, err := ResolveFeature(record)
		require.NoError(t, err)
		assert.Equal(t, "z.jpg", key)
		assert.Equal(t, "https://cdn.example.com/images/z.jpg", record.Feature.ImageURL)
	})

	t.Run("unknown explicit feature falls back", func(t *testing.T) {
		record := recordWith("b.jpg", "a.jpg")
		record.FeatureImage = "missing.jpg"

		key, err := ResolveFeature(record)
		require.NoError(t, err)
		assert.Equal(t, "a.jpg", key)
	})

	t.Run("no images", func(t *testing.T) {
		_, err := ResolveFeature(models.NewPostRecord())
		assert.ErrorIs(t, err, ErrNoMainImage)
	})

	t.Run("does not reorder the record", func(t *testing.T) {
		record := recordWith("b.jpg", "a.jpg")

		_, err := ResolveFeature(record)
		require.NoError(t, err)
		assert.Equal(t, []string{"b.jpg", "a.jpg"}, record.Keys())
	})
}

func validRecord() *models.PostRecord {
	record := recordWith("a.jpg")
	record.Title = "Title"
	record.Categories = "trips"
	record.Date = "2025-05-29"
	_, _ = ResolveFeature(record)
	return record
}

func TestValidate(t *testing.T) {
	v := NewValidator()

	require.NoError(t, v.Validate(validRecord()))

	tests := []struct {
		name      string
		mutate    func(r *models.PostRecord)
		message   string
		malformed bool
	}{
		{"missing title", func(r *models.PostRecord) { r.Title = "" }, "title cannot be empty", false},
		{"missing categories", func(r *models.PostRecord) { r.Categories = "" }, "categories cannot be empty", false},
		{"missing date", func(r *models.PostRecord) { r.Date = "" }, "date cannot be empty", false},
		{"bad date", func(r *models.PostRecord) { r.Date = "29.05.2025" }, `date "29.05.2025" must be formatted as YYYY-MM-DD`, true},
		{"missing feature url", func(r *models.PostRecord) { r.Feature.ImageURL = "" }, "missing featured image", false},
		{"first violation wins", func(r *models.PostRecord) {
			r.Title = ""
			r.Date = ""
		}, "title cannot be empty", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := validRecord()
			tt.mutate(record)

			err := v.Validate(record)
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.message, verr.Error())
			assert.Equal(t, tt.malformed, verr.Malformed())
		})
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "hello-world"},
		{"Rust Programming!", "rust-programming"},
		{"Multiple   Spaces", "multiple-spaces"},
		{"Special@#Characters", "special-characters"},
		{"--Already-Safe--", "already-safe"},
		{"Trailing--", "trailing"},
		{"Day two, 108km, 864m - Wonderful weather on straight roads", "day-two-108km-864m-wonderful-weather-on-straight-roads"},
		{"Blåbær på Ålesund", "blåbær-på-ålesund"},
		{"", ""},
	}
	for _, tt := range tests {
		got := Slug(tt.input)
		if got != tt.expected {
			t.Errorf("Slug(%q) = %q, want %q", tt.input, got, tt.expected)
		}
		if again := Slug(got); again != got {
			t.Errorf("Slug(Slug(%q)) = %q, want %q", tt.input, again, got)
		}
	}
}

func TestFilePathAndURL(t *testing.T) {
	assert.Equal(t, "_posts/2025-05-29-day-two.md", FilePath("2025-05-29", "day-two"))

	url, err := URL("https://kyrremann.no/plog/", "2025-05-29", "day-two")
	require.NoError(t, err)
	assert.Equal(t, "https://kyrremann.no/plog/2025/05/day-two", url)

	_, err = URL("https://kyrremann.no/plog", "yesterday", "day-two")
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	renderer, err := NewRenderer()
	require.NoError(t, err)

	record := models.NewPostRecord()
	record.Title = "Test Post"
	record.Date = "2023-10-01"
	record.Categories = "test, example"
	record.Strava = "123456789"

	feature := record.Image("feature.jpg")
	feature.ImageURL = "https://example.com/image.jpg"

	first := record.Image("key2")
	first.ImageURL = "https://example.com/image2.jpg"

	second := record.Image("key1")
	second.ImageURL = "https://example.com/image1.jpg"
	second.AltText = "Alt"
	second.Caption = "Cap"
	second.Location = "X, Y"
	second.Coordinates = "1,2"
	second.Description = "Desc"

	record.Image("orphan").Caption = "no upload"

	record.FeatureImage = "feature.jpg"
	_, err = ResolveFeature(record)
	require.NoError(t, err)

	slug, markdown, err := renderer.Render(record)
	require.NoError(t, err)
	assert.Equal(t, "test-post", slug)
	assert.Equal(t, `---
title: "Test Post"
date: "2023-10-01"
categories: "test, example"
feature:
  image: "https://example.com/image.jpg"
strava: "123456789"
---

![](https://example.com/image2.jpg)

![Alt](https://example.com/image1.jpg)
*[X, Y](https://www.google.com/maps/place/1,2): Cap*

Desc`, markdown)
}

func TestRenderWithoutStravaOrBody(t *testing.T) {
	renderer, err := NewRenderer()
	require.NoError(t, err)

	record := recordWith("only.jpg")
	record.Title = `Say "hi"`
	record.Date = "2024-01-02"
	record.Categories = "misc"
	_, err = ResolveFeature(record)
	require.NoError(t, err)

	slug, markdown, err := renderer.Render(record)
	require.NoError(t, err)
	assert.Equal(t, "say-hi", slug)
	assert.Equal(t, `---
title: "Say \"hi\""
date: "2024-01-02"
categories: "misc"
feature:
  image: "https://cdn.example.com/images/only.jpg"
---`, markdown)
}

func TestRenderCaptionWithoutLocation(t *testing.T) {
	renderer, err := NewRendererFromText(`{{ range .Images }}{{ .Caption }};{{ end }}`)
	require.NoError(t, err)

	record := recordWith("a", "b", "c")
	record.Image("b").Caption = "bee"
	record.Image("c").Caption = "sea"
	_, err = ResolveFeature(record)
	require.NoError(t, err)

	_, markdown, err := renderer.Render(record)
	require.NoError(t, err)
	assert.Equal(t, "bee;sea;", markdown)
}

func TestNewRendererFromTextInvalid(t *testing.T) {
	_, err := NewRendererFromText("{{ if }")
	assert.Error(t, err)
}

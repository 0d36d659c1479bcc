package post

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/kyrremann/plogtion/internal/models"
)

const postTemplate = `---
title: {{ quote .Title }}
date: {{ quote .Date }}
categories: {{ quote .Categories }}
feature:
  image: {{ quote .Feature.ImageURL }}
{{- if .Strava }}
strava: {{ quote .Strava }}
{{- end }}
---
{{ range .Images }}
![{{ .AltText }}]({{ .ImageURL }})
{{- if .Caption }}
*{{ if .Location }}[{{ .Location }}](https://www.google.com/maps/place/{{ .Coordinates }}): {{ end }}{{ .Caption }}*
{{- end }}
{{- if .Description }}

{{ .Description }}
{{- end }}
{{ end }}`

// Renderer turns records into Markdown posts. It is safe for concurrent use.
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer parses the post template.
func NewRenderer() (*Renderer, error) {
	return NewRendererFromText(postTemplate)
}

// NewRendererFromText parses a custom post template.
func NewRendererFromText(text string) (*Renderer, error) {
	tmpl, err := template.New("post.md").
		Funcs(template.FuncMap{"quote": strconv.Quote}).
		Option("missingkey=error").
		Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse post template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

type templateData struct {
	Title      string
	Date       string
	Categories string
	Strava     string
	Feature    models.ImageMetadata
	Images     []models.ImageMetadata
}

// Render returns the slug and the Markdown document for record. The body
// lists every uploaded image except the feature, in arrival order.
func (r *Renderer) Render(record *models.PostRecord) (slug, markdown string, err error) {
	data := templateData{
		Title:      record.Title,
		Date:       record.Date,
		Categories: record.Categories,
		Strava:     record.Strava,
		Feature:    record.Feature,
	}
	for _, key := range record.Keys() {
		if key == record.Feature.FileName {
			continue
		}
		img, _ := record.Lookup(key)
		if img.ImageURL == "" {
			continue
		}
		data.Images = append(data.Images, *img)
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("failed to render post: %w", err)
	}

	return Slug(record.Title), strings.TrimRight(buf.String(), " \t\r\n"), nil
}

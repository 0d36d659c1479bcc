package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyrremann/plogtion/internal/form"
	"github.com/kyrremann/plogtion/internal/middleware"
	"github.com/kyrremann/plogtion/internal/pipeline"
)

type fakePublisher struct {
	fields    []form.Field
	requestID string
	result    *pipeline.Result
	err       error
}

func (p *fakePublisher) Run(ctx context.Context, requestID string, stream form.Stream) (*pipeline.Result, error) {
	p.requestID = requestID
	for {
		f, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		p.fields = append(p.fields, f)
	}
	return p.result, p.err
}

type putCall struct {
	path        string
	data        string
	contentType string
}

type fakeImages struct {
	puts    []putCall
	deleted []string
	err     error
}

func (f *fakeImages) Put(ctx context.Context, path string, data []byte, contentType string) error {
	f.puts = append(f.puts, putCall{path, string(data), contentType})
	return f.err
}

func (f *fakeImages) Delete(ctx context.Context, path string) error {
	f.deleted = append(f.deleted, path)
	return f.err
}

type part struct {
	name, fileName, contentType, value string
}

func multipartBody(t *testing.T, parts ...part) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range parts {
		if p.fileName == "" {
			require.NoError(t, w.WriteField(p.name, p.value))
			continue
		}
		header := make(map[string][]string)
		header["Content-Disposition"] = []string{`form-data; name="` + p.name + `"; filename="` + p.fileName + `"`}
		if p.contentType != "" {
			header["Content-Type"] = []string{p.contentType}
		}
		pw, err := w.CreatePart(header)
		require.NoError(t, err)
		_, err = pw.Write([]byte(p.value))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func newTestApp(publisher Publisher, images ImageStore) (*fiber.App, *Handlers) {
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	app.Use(middleware.RequestID())

	handlers := NewHandlers(publisher, images, nil)
	handlers.now = func() time.Time { return time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC) }
	SetupRoutes(app, handlers, "secret")
	return app, handlers
}

func decodeJSON(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	body := map[string]any{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func TestPublishPost(t *testing.T) {
	publisher := &fakePublisher{result: &pipeline.Result{Slug: "day-two", PostURL: "https://kyrremann.no/plog/2025/05/day-two"}}
	app, _ := newTestApp(publisher, &fakeImages{})

	body, contentType := multipartBody(t,
		part{name: "title", value: "Day two"},
		part{name: "filepond", fileName: "20250529_a.jpg", contentType: "image/jpeg", value: "jpeg"},
		part{name: "date", value: "2025-05-29"},
	)
	req := httptest.NewRequest(http.MethodPost, "/post", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(fiber.HeaderXRequestID, "req-42")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	got := decodeJSON(t, resp)
	assert.Equal(t, "Form and multipart data processed successfully!", got["message"])
	assert.Equal(t, "day-two", got["post"].(map[string]any)["slug"])

	assert.Equal(t, "req-42", publisher.requestID)
	require.Len(t, publisher.fields, 3)
	assert.Equal(t, []string{"title", "filepond", "date"}, []string{publisher.fields[0].Name, publisher.fields[1].Name, publisher.fields[2].Name})
	assert.Equal(t, "20250529_a.jpg", publisher.fields[1].FileName)
}

func TestPublishPostErrors(t *testing.T) {
	tests := []struct {
		name   string
		result *pipeline.Result
		err    error
		code   int
		status string
		stage  string
	}{
		{"unauthorized", nil, &pipeline.Error{Kind: pipeline.Unauthorized, Stage: pipeline.StageAuth, Msg: "invalid token"}, http.StatusUnauthorized, "unauthorized", "authenticate"},
		{"validation", nil, &pipeline.Error{Kind: pipeline.ValidationFailed, Stage: pipeline.StageValidate, Msg: "form validation failed"}, http.StatusBadRequest, "bad input", "validate"},
		{"bad input", nil, &pipeline.Error{Kind: pipeline.BadInput, Stage: pipeline.StageDemux, Msg: "failed to read form"}, http.StatusBadRequest, "bad input", "demux"},
		{"upstream", nil, &pipeline.Error{Kind: pipeline.UpstreamFailure, Stage: pipeline.StageUpload, Msg: "failed to upload images"}, http.StatusInternalServerError, "internal", "upload"},
		{"configuration", nil, &pipeline.Error{Kind: pipeline.InternalConfiguration, Stage: pipeline.StageClone, Msg: "GITHUB_TOKEN not set"}, http.StatusInternalServerError, "internal", "clone"},
		{"campaign", &pipeline.Result{PostURL: "https://kyrremann.no/plog/2025/05/day-two"}, &pipeline.Error{Kind: pipeline.UpstreamFailure, Stage: pipeline.StageCampaign, Msg: "failed to post campaign"}, http.StatusInternalServerError, "internal", "campaign"},
		{"unclassified", nil, errors.New("boom"), http.StatusInternalServerError, "internal", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, _ := newTestApp(&fakePublisher{result: tt.result, err: tt.err}, &fakeImages{})

			body, contentType := multipartBody(t, part{name: "title", value: "Day two"})
			req := httptest.NewRequest(http.MethodPost, "/post", body)
			req.Header.Set("Content-Type", contentType)

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.code, resp.StatusCode)

			got := decodeJSON(t, resp)
			assert.Equal(t, tt.status, got["status"])
			assert.Equal(t, tt.stage, got["stage"])
			assert.NotEmpty(t, got["error"])
			if tt.result != nil {
				assert.Equal(t, tt.result.PostURL, got["post_url"])
			}
		})
	}
}

func TestPublishPostRejectsNonMultipart(t *testing.T) {
	publisher := &fakePublisher{}
	app, _ := newTestApp(publisher, &fakeImages{})

	req := httptest.NewRequest(http.MethodPost, "/post", strings.NewReader(`{"title":"x"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "bad input", decodeJSON(t, resp)["status"])
	assert.Empty(t, publisher.requestID)
}

func TestUploadImage(t *testing.T) {
	images := &fakeImages{}
	app, _ := newTestApp(&fakePublisher{}, images)

	body, contentType := multipartBody(t, part{name: "filepond", fileName: "20250529_104556.jpg", contentType: "image/jpeg", value: "jpeg"})
	req := httptest.NewRequest(http.MethodPost, "/image", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(middleware.APIKeyHeader, "secret")
	req.Header.Set(fiber.HeaderOrigin, "https://kyrremann.no")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
	assert.True(t, strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), "text/plain"))
	assert.Equal(t, "images/2025/05/20250529_104556.jpg", readBody(t, resp))

	require.Len(t, images.puts, 1)
	assert.Equal(t, putCall{"images/2025/05/20250529_104556.jpg", "jpeg", "image/jpeg"}, images.puts[0])
}

func TestUploadImageFallsBackToToday(t *testing.T) {
	images := &fakeImages{}
	app, _ := newTestApp(&fakePublisher{}, images)

	body, contentType := multipartBody(t, part{name: "filepond", fileName: "IMG_1.png", value: "\x89PNG\r\n\x1a\n0000"})
	req := httptest.NewRequest(http.MethodPost, "/image", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(middleware.APIKeyHeader, "secret")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, "images/2025/06/IMG_1.png", readBody(t, resp))
	require.Len(t, images.puts, 1)
	assert.Equal(t, "image/png", images.puts[0].contentType)
}

func TestUploadImageRejections(t *testing.T) {
	t.Run("unexpected field", func(t *testing.T) {
		images := &fakeImages{}
		app, _ := newTestApp(&fakePublisher{}, images)

		body, contentType := multipartBody(t, part{name: "photo", fileName: "a.jpg", value: "jpeg"})
		req := httptest.NewRequest(http.MethodPost, "/image", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set(middleware.APIKeyHeader, "secret")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Empty(t, images.puts)
	})

	t.Run("missing api key", func(t *testing.T) {
		images := &fakeImages{}
		app, _ := newTestApp(&fakePublisher{}, images)

		body, contentType := multipartBody(t, part{name: "filepond", fileName: "a.jpg", value: "jpeg"})
		req := httptest.NewRequest(http.MethodPost, "/image", body)
		req.Header.Set("Content-Type", contentType)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Empty(t, images.puts)
	})

	t.Run("storage failure", func(t *testing.T) {
		images := &fakeImages{err: errors.New("bucket unavailable")}
		app, _ := newTestApp(&fakePublisher{}, images)

		body, contentType := multipartBody(t, part{name: "filepond", fileName: "a.jpg", contentType: "image/jpeg", value: "jpeg"})
		req := httptest.NewRequest(http.MethodPost, "/image", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set(middleware.APIKeyHeader, "secret")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Contains(t, readBody(t, resp), "bucket unavailable")
	})
}

func TestDeleteImage(t *testing.T) {
	images := &fakeImages{}
	app, _ := newTestApp(&fakePublisher{}, images)

	req := httptest.NewRequest(http.MethodDelete, "/image", strings.NewReader("  images/2025/05/a.jpg\n"))
	req.Header.Set(middleware.APIKeyHeader, "secret")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"images/2025/05/a.jpg"}, images.deleted)

	req = httptest.NewRequest(http.MethodDelete, "/image", strings.NewReader("   "))
	req.Header.Set(middleware.APIKeyHeader, "secret")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Len(t, images.deleted, 1)
}

func TestImagePreflight(t *testing.T) {
	app, _ := newTestApp(&fakePublisher{}, &fakeImages{})

	req := httptest.NewRequest(http.MethodOptions, "/image", nil)
	req.Header.Set(fiber.HeaderOrigin, "https://kyrremann.no")
	req.Header.Set(fiber.HeaderAccessControlRequestMethod, http.MethodPost)

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
}

func TestOperationalEndpoints(t *testing.T) {
	app, _ := newTestApp(&fakePublisher{}, &fakeImages{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decodeJSON(t, resp)["status"])

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Contains(t, readBody(t, resp), "<h1>plogtion</h1>")

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "go_goroutines")

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

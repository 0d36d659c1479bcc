// Package pipeline turns a demultiplexed post submission into published
// content: stored images, a committed Markdown post and a scheduled campaign.
package pipeline

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/kyrremann/plogtion/internal/cache"
	"github.com/kyrremann/plogtion/internal/campaign"
	"github.com/kyrremann/plogtion/internal/form"
	"github.com/kyrremann/plogtion/internal/models"
	"github.com/kyrremann/plogtion/internal/post"
	"github.com/kyrremann/plogtion/internal/storage"
)

// ObjectStore stores image bytes under a key and knows their public URL.
type ObjectStore interface {
	Put(ctx context.Context, path string, data []byte, contentType string) error
	URL(path string) string
}

// VersionControl produces a fresh working copy of the content repository.
type VersionControl interface {
	Clone(ctx context.Context, token string) (WorkingCopy, error)
}

// WorkingCopy is a cloned repository a post can be written into.
type WorkingCopy interface {
	WriteFile(path string, data []byte) error
	CommitAndPush(ctx context.Context, token, path, message string) error
}

// Scheduler announces a published post.
type Scheduler interface {
	Schedule(ctx context.Context, a campaign.Announcement, delay time.Duration) error
}

// Renderer turns a validated record into a slug and Markdown.
type Renderer interface {
	Render(record *models.PostRecord) (slug, markdown string, err error)
}

// Preprocessor may rewrite image bytes before upload.
type Preprocessor interface {
	Process(data []byte) ([]byte, error)
}

// Metrics receives pipeline observations.
type Metrics interface {
	ObservePublish(outcome, stage string)
	ObserveStage(stage string, duration time.Duration)
	AddUploadedBytes(n int)
	IncrementCampaigns(outcome string)
}

// Config holds the secrets and settings the pipeline checks per request.
type Config struct {
	Token             string
	GitHubToken       string
	SiteURL           string
	CampaignDelay     time.Duration
	UploadConcurrency int
	LedgerTTL         time.Duration
}

// Result describes a published post.
type Result struct {
	Slug            string `json:"slug"`
	Path            string `json:"path"`
	PostURL         string `json:"post_url"`
	Images          int    `json:"images"`
	CampaignSkipped bool   `json:"campaign_skipped,omitempty"`
}

type Coordinator struct {
	cfg       Config
	store     ObjectStore
	vcs       VersionControl
	campaigns Scheduler
	renderer  Renderer
	validator *post.Validator
	resizer   Preprocessor
	ledger    cache.Ledger
	metrics   Metrics
	now       func() time.Time
	log       zerolog.Logger
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

// WithPreprocessor resizes images before they are uploaded.
func WithPreprocessor(p Preprocessor) Option {
	return func(c *Coordinator) { c.resizer = p }
}

// WithLedger skips campaigns for posts that already had one.
func WithLedger(l cache.Ledger) Option {
	return func(c *Coordinator) { c.ledger = l }
}

func WithMetrics(m Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func NewCoordinator(cfg Config, store ObjectStore, vcs VersionControl, campaigns Scheduler, renderer Renderer, log zerolog.Logger, opts ...Option) *Coordinator {
	if cfg.UploadConcurrency < 1 {
		cfg.UploadConcurrency = 1
	}
	c := &Coordinator{
		cfg:       cfg,
		store:     store,
		vcs:       vcs,
		campaigns: campaigns,
		renderer:  renderer,
		validator: post.NewValidator(),
		metrics:   nopMetrics{},
		now:       time.Now,
		log:       log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run demultiplexes stream and publishes the result.
func (c *Coordinator) Run(ctx context.Context, requestID string, stream form.Stream) (*Result, error) {
	log := c.log.With().Str("request_id", requestID).Logger()

	start := time.Now()
	sub, err := form.NewDemuxer(log).Demux(stream)
	c.metrics.ObserveStage(string(StageDemux), time.Since(start))
	if err != nil {
		return nil, c.fail(log, newError(BadInput, StageDemux, "failed to read form", err))
	}

	return c.publish(ctx, log, sub)
}

// Publish runs every stage after demultiplexing. A campaign failure is
// returned together with the Result, since the post is already pushed.
func (c *Coordinator) Publish(ctx context.Context, requestID string, sub *models.Submission) (*Result, error) {
	return c.publish(ctx, c.log.With().Str("request_id", requestID).Logger(), sub)
}

func (c *Coordinator) publish(ctx context.Context, log zerolog.Logger, sub *models.Submission) (*Result, error) {
	if err := c.authenticate(sub.Token); err != nil {
		return nil, c.fail(log, err)
	}
	if c.cfg.GitHubToken == "" {
		return nil, c.fail(log, newError(InternalConfiguration, StageClone, "GITHUB_TOKEN not set", nil))
	}

	record := sub.Record
	uploads := c.plan(sub)

	featureKey, err := post.ResolveFeature(record)
	if err != nil {
		return nil, c.fail(log, newError(ValidationFailed, StageResolve, "failed to resolve feature image", err))
	}
	log.Debug().Str("feature", featureKey).Int("images", record.Len()).Msg("Feature image resolved")

	if err := c.validator.Validate(record); err != nil {
		kind := ValidationFailed
		var verr *post.ValidationError
		if errors.As(err, &verr) && verr.Malformed() {
			kind = BadInput
		}
		return nil, c.fail(log, newError(kind, StageValidate, "form validation failed", err))
	}

	var checkout WorkingCopy
	err = c.timed(StageClone, func() error {
		var cloneErr error
		checkout, cloneErr = c.vcs.Clone(ctx, c.cfg.GitHubToken)
		return cloneErr
	})
	if err != nil {
		return nil, c.fail(log, newError(UpstreamFailure, StageClone, "failed to clone repository", err))
	}

	err = c.timed(StageUpload, func() error {
		return c.uploadAll(ctx, log, uploads)
	})
	if err != nil {
		return nil, c.fail(log, newError(UpstreamFailure, StageUpload, "failed to upload images", err))
	}

	slug, markdown, err := c.renderer.Render(record)
	if err != nil {
		return nil, c.fail(log, newError(InternalConfiguration, StageRender, "failed to render post", err))
	}
	postURL, err := post.URL(c.cfg.SiteURL, record.Date, slug)
	if err != nil {
		return nil, c.fail(log, newError(BadInput, StageRender, "invalid post date", err))
	}

	result := &Result{
		Slug:    slug,
		Path:    post.FilePath(record.Date, slug),
		PostURL: postURL,
		Images:  record.Len(),
	}

	err = c.timed(StageCommit, func() error {
		if err := checkout.WriteFile(result.Path, []byte(markdown)); err != nil {
			return err
		}
		return checkout.CommitAndPush(ctx, c.cfg.GitHubToken, result.Path, record.Title)
	})
	if err != nil {
		return nil, c.fail(log, newError(UpstreamFailure, StageCommit, "failed to commit and push", err))
	}
	log.Info().Str("path", result.Path).Str("post_url", postURL).Msg("Post pushed")

	err = c.timed(StageCampaign, func() error {
		skipped, err := c.announce(ctx, log, record, postURL)
		result.CampaignSkipped = skipped
		return err
	})
	if err != nil {
		kind := UpstreamFailure
		if errors.Is(err, campaign.ErrMissingAPIKey) {
			kind = InternalConfiguration
		}
		c.metrics.IncrementCampaigns("failed")
		return result, c.fail(log, newError(kind, StageCampaign, "failed to post campaign", err))
	}

	c.metrics.ObservePublish("published", string(StagePublished))
	log.Info().
		Str("slug", slug).
		Bool("campaign_skipped", result.CampaignSkipped).
		Msg("Post published")
	return result, nil
}

func (c *Coordinator) authenticate(submitted string) *Error {
	if c.cfg.Token == "" {
		return newError(InternalConfiguration, StageAuth, "TOKEN not set", nil)
	}
	if submitted == "" || subtle.ConstantTimeCompare([]byte(submitted), []byte(c.cfg.Token)) != 1 {
		return newError(Unauthorized, StageAuth, "invalid token", nil)
	}
	return nil
}

// plan assigns storage keys and public URLs to every image so the record
// can be validated before anything is written.
func (c *Coordinator) plan(sub *models.Submission) []models.PendingUpload {
	fallback := c.now()
	if d, err := time.Parse(post.DateLayout, sub.Record.Date); err == nil {
		fallback = d
	}

	uploads := make([]models.PendingUpload, len(sub.Uploads))
	for i, u := range sub.Uploads {
		u.StoragePath = storage.ImagePath(u.FileName, fallback)
		sub.Record.Image(u.FileName).ImageURL = c.store.URL(u.StoragePath)
		uploads[i] = u
	}
	for _, ref := range sub.References {
		sub.Record.Image(ref.Key).ImageURL = c.store.URL(ref.StoragePath)
	}
	return uploads
}

func (c *Coordinator) announce(ctx context.Context, log zerolog.Logger, record *models.PostRecord, postURL string) (bool, error) {
	if c.ledger != nil {
		at, seen, err := c.ledger.ScheduledAt(ctx, postURL)
		if err != nil {
			log.Warn().Err(err).Msg("Campaign ledger unavailable, scheduling anyway")
		} else if seen {
			log.Info().
				Str("post_url", postURL).
				Time("scheduled_at", at).
				Msg("Campaign already scheduled for post, skipping")
			c.metrics.IncrementCampaigns("skipped")
			return true, nil
		}
	}

	err := c.campaigns.Schedule(ctx, campaign.Announcement{
		Title:       record.Title,
		Description: record.Feature.Description,
		ImageURL:    record.Feature.ImageURL,
		PostURL:     postURL,
	}, c.cfg.CampaignDelay)
	if err != nil {
		return false, err
	}
	c.metrics.IncrementCampaigns("scheduled")

	if c.ledger != nil {
		if err := c.ledger.MarkScheduled(ctx, postURL, c.now(), c.cfg.LedgerTTL); err != nil {
			log.Warn().Err(err).Msg("Failed to record scheduled campaign")
		}
	}
	return false, nil
}

func (c *Coordinator) timed(stage Stage, fn func() error) error {
	start := time.Now()
	err := fn()
	c.metrics.ObserveStage(string(stage), time.Since(start))
	return err
}

func (c *Coordinator) fail(log zerolog.Logger, err *Error) *Error {
	c.metrics.ObservePublish("failed", string(err.Stage))
	event := log.Error()
	if err.Kind == Unauthorized || err.Kind == ValidationFailed || err.Kind == BadInput {
		event = log.Warn()
	}
	event.
		Err(err.Err).
		Str("stage", string(err.Stage)).
		Str("kind", err.Kind.String()).
		Msg(err.Msg)
	return err
}

type nopMetrics struct{}

func (nopMetrics) ObservePublish(string, string) {}
func (nopMetrics) ObserveStage(string, time.Duration) {}
func (nopMetrics) AddUploadedBytes(int) {}
func (nopMetrics) IncrementCampaigns(string) {}

// Package campaign schedules the newsletter that announces a new post.
package campaign

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ErrMissingAPIKey is returned when no Brevo API key is configured.
var ErrMissingAPIKey = errors.New("BREVO_API_KEY not set")

// Config holds the Brevo account settings.
type Config struct {
	APIKey     string
	BaseURL    string
	SenderID   int
	ListID     int
	TemplateID int
	Tag        string
}

// Announcement is what the newsletter template needs to know about a post.
type Announcement struct {
	Title       string
	Description string
	ImageURL    string
	PostURL     string
}

// BrevoClient creates email campaigns through the Brevo REST API.
type BrevoClient struct {
	client *resty.Client
	cfg    Config
	now    func() time.Time
}

type sender struct {
	ID int `json:"id"`
}

type recipients struct {
	ListIDs []int `json:"listIds"`
}

type emailCampaign struct {
	Tag         string            `json:"tag"`
	Name        string            `json:"name"`
	Sender      sender            `json:"sender"`
	Recipients  recipients        `json:"recipients"`
	Subject     string            `json:"subject"`
	TemplateID  int               `json:"templateId"`
	Params      map[string]string `json:"params"`
	ScheduledAt string            `json:"scheduledAt"`
}

type brevoResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewBrevoClient creates a client for cfg.
func NewBrevoClient(cfg Config) *BrevoClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.brevo.com"
	}
	return &BrevoClient{
		client: resty.New().
			SetTimeout(30*time.Second).
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")),
		cfg: cfg,
		now: time.Now,
	}
}

// Schedule creates a campaign for a that goes out delay from now. It is
// called once per post and never retried.
func (b *BrevoClient) Schedule(ctx context.Context, a Announcement, delay time.Duration) error {
	if b.cfg.APIKey == "" {
		return ErrMissingAPIKey
	}

	req := emailCampaign{
		Tag:        b.cfg.Tag,
		Name:       a.Title,
		Sender:     sender{ID: b.cfg.SenderID},
		Recipients: recipients{ListIDs: []int{b.cfg.ListID}},
		Subject:    a.Title,
		TemplateID: b.cfg.TemplateID,
		Params: map[string]string{
			"TITLE":       a.Title,
			"DESCRIPTION": a.Description,
			"IMAGE_URL":   a.ImageURL,
			"POST_URL":    a.PostURL,
		},
		ScheduledAt: b.now().UTC().Add(delay).Format(time.RFC3339),
	}

	var failure brevoResponse
	resp, err := b.client.R().
		SetContext(ctx).
		SetHeader("api-key", b.cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetBody(req).
		SetError(&failure).
		Post("/v3/emailCampaigns")
	if err != nil {
		return fmt.Errorf("campaign request failed: %w", err)
	}

	if resp.IsError() {
		msg := failure.Message
		if msg == "" {
			msg = "failed to parse error response"
		}
		return fmt.Errorf("failed to post campaign: %s: %s", resp.Status(), msg)
	}

	return nil
}

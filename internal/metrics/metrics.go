// Package metrics exposes pipeline counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plogtion_publish_total",
			Help: "Total number of post submissions by outcome and the stage they ended in",
		},
		[]string{"outcome", "stage"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "plogtion_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	UploadedBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "plogtion_uploaded_bytes_total",
			Help: "Total number of image bytes written to object storage",
		},
	)

	CampaignsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plogtion_campaigns_total",
			Help: "Total number of campaign scheduling attempts by outcome",
		},
		[]string{"outcome"},
	)
)

type PrometheusProvider struct{}

func NewPrometheusProvider() *PrometheusProvider {
	return &PrometheusProvider{}
}

func (p *PrometheusProvider) ObservePublish(outcome, stage string) {
	PublishTotal.WithLabelValues(outcome, stage).Inc()
}

func (p *PrometheusProvider) ObserveStage(stage string, duration time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

func (p *PrometheusProvider) AddUploadedBytes(n int) {
	UploadedBytesTotal.Add(float64(n))
}

func (p *PrometheusProvider) IncrementCampaigns(outcome string) {
	CampaignsTotal.WithLabelValues(outcome).Inc()
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestPrometheusProvider(t *testing.T) {
	p := NewPrometheusProvider()

	before := testutil.ToFloat64(PublishTotal.WithLabelValues("success", "campaign"))
	p.ObservePublish("success", "campaign")
	assert.Equal(t, before+1, testutil.ToFloat64(PublishTotal.WithLabelValues("success", "campaign")))

	bytesBefore := testutil.ToFloat64(UploadedBytesTotal)
	p.AddUploadedBytes(2048)
	assert.Equal(t, bytesBefore+2048, testutil.ToFloat64(UploadedBytesTotal))

	skippedBefore := testutil.ToFloat64(CampaignsTotal.WithLabelValues("skipped"))
	p.IncrementCampaigns("skipped")
	assert.Equal(t, skippedBefore+1, testutil.ToFloat64(CampaignsTotal.WithLabelValues("skipped")))

	p.ObserveStage("upload", 250*time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(StageDuration))
}

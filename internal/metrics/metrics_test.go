package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAndHandler(t *testing.T) {
	m := New()
	m.PreviewResult("hit")
	m.PreviewResult("hit")
	m.LiveEvent("dropped")
	m.SegmentRevealed()

	assert.InDelta(t, 2, testutil.ToFloat64(m.previewRequests.WithLabelValues("hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.liveEvents.WithLabelValues("dropped")), 0)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.Contains(string(body), "twin_reveal_segments_total 1"))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.PreviewResult("miss")
	m.ObservePreviewFetch(0.1)
	m.LiveEvent("forwarded")
	m.LiveReconnect()
	m.SegmentRevealed()
	m.HistoryPage("ok")
	m.OutboxResult("sent")
	assert.Nil(t, m.Registry())
	assert.NotNil(t, m.Handler())
}

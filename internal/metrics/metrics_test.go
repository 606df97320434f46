package metrics_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omochice/trovochat/internal/metrics"
)

func TestNew_IndependentRegistries(t *testing.T) {
	a := metrics.New()
	b := metrics.New()

	a.Frames.WithLabelValues("binary").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.Frames.WithLabelValues("binary")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Frames.WithLabelValues("binary")))
}

func TestHandler(t *testing.T) {
	m := metrics.New()
	m.FramesDropped.WithLabelValues("envelope").Inc()
	m.Activities.WithLabelValues("event", "follow").Add(2)
	m.SinkErrors.Inc()
	m.DecodeDuration.Observe(0.0001)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)

	for _, want := range []string{
		`trovochat_relay_frames_dropped_total{reason="envelope"} 1`,
		`trovochat_relay_activities_total{kind="follow",type="event"} 2`,
		`trovochat_relay_sink_errors_total 1`,
		`trovochat_relay_decode_duration_seconds_count 1`,
		`go_goroutines`,
	} {
		assert.True(t, strings.Contains(text, want), "missing %q", want)
	}
}

func TestNew_KnownKindsStartAtZero(t *testing.T) {
	m := metrics.New()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	text := rec.Body.String()

	for _, want := range []string{
		`trovochat_relay_activities_total{kind="",type="message"} 0`,
		`trovochat_relay_activities_total{kind="raid",type="event"} 0`,
		`trovochat_relay_activities_total{kind="new_gift",type="event"} 0`,
	} {
		assert.True(t, strings.Contains(text, want), "missing %q", want)
	}
	assert.False(t, strings.Contains(text, `kind="message"`))
	assert.Equal(t, 16, testutil.CollectAndCount(m.Activities))
}

// Package metrics holds the relay's prometheus collectors.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/omochice/trovochat/internal/chat"
	"github.com/omochice/trovochat/pkg/protocol"
)

const (
	namespace = "trovochat"
	subsystem = "relay"
)

// Metrics is the set of relay collectors registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	Frames         *prometheus.CounterVec
	FramesDropped  *prometheus.CounterVec
	Activities     *prometheus.CounterVec
	SinkErrors     prometheus.Counter
	DecodeDuration prometheus.Histogram
}

// New creates the collectors on a fresh registry together with the Go
// runtime collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Frames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "frames_total",
				Help:      "Captured frames read, by frame kind.",
			},
			[]string{"kind"},
		),
		FramesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "frames_dropped_total",
				Help:      "Frames that produced no activity, by reason.",
			},
			[]string{"reason"},
		),
		Activities: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "activities_total",
				Help:      "Activities emitted, by activity type and event kind.",
			},
			[]string{"type", "kind"},
		),
		SinkErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "sink_errors_total",
				Help:      "Activities a sink failed to accept.",
			},
		),
		DecodeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "decode_duration_seconds",
				Help:      "Time to decode one chat frame.",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
			},
		),
	}
	m.registry.MustRegister(
		m.Frames,
		m.FramesDropped,
		m.Activities,
		m.SinkErrors,
		m.DecodeDuration,
		collectors.NewGoCollector(),
	)

	// known kinds are exported at zero before the first activity
	m.Activities.WithLabelValues(chat.TypeMessage, "")
	for _, k := range protocol.Kinds() {
		if k != protocol.KindMessage {
			m.Activities.WithLabelValues(chat.TypeEvent, k.String())
		}
	}
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, log zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("metrics server started")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

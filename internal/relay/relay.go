// Package relay runs captured frames through envelope extraction, payload
// decoding and activity building, and hands the results to a sink.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/omochice/trovochat/internal/capture"
	"github.com/omochice/trovochat/internal/chat"
	"github.com/omochice/trovochat/internal/metrics"
	"github.com/omochice/trovochat/pkg/frame"
	"github.com/omochice/trovochat/pkg/protocol"
)

// Drop reasons used in logs and the frames_dropped_total metric.
const (
	ReasonText     = "text"
	ReasonOpcode   = "opcode"
	ReasonEnvelope = "envelope"
	ReasonDecode   = "decode"
	ReasonCapture  = "capture"
)

// Stats counts what a relay has processed.
type Stats struct {
	Frames     int
	Activities int
	Dropped    map[string]int
	SinkErrors int
}

// Relay processes frames from one source strictly in arrival order.
type Relay struct {
	src     capture.Source
	builder *chat.Builder
	sink    chat.Sink
	log     zerolog.Logger
	metrics *metrics.Metrics
	stats   Stats
}

// Option configures a Relay.
type Option func(*Relay)

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Relay) {
		r.log = log
	}
}

// WithMetrics sets the collectors the relay records into.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

// New creates a Relay.
func New(src capture.Source, builder *chat.Builder, sink chat.Sink, opts ...Option) *Relay {
	r := &Relay{
		src:     src,
		builder: builder,
		sink:    sink,
		log:     zerolog.Nop(),
		stats:   Stats{Dropped: map[string]int{}},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metrics == nil {
		r.metrics = metrics.New()
	}
	r.log = r.log.With().Str("component", "relay").Logger()
	return r
}

// Stats returns a copy of the counters.
func (r *Relay) Stats() Stats {
	s := r.stats
	s.Dropped = make(map[string]int, len(r.stats.Dropped))
	for k, v := range r.stats.Dropped {
		s.Dropped[k] = v
	}
	return s
}

// Run reads frames until the source is exhausted or ctx is done. A frame
// that fails to decode or emit is logged and skipped. Run returns nil at the
// end of the source.
func (r *Relay) Run(ctx context.Context) error {
	for {
		f, err := r.src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if errors.Is(err, capture.ErrMalformedLine) {
				r.drop(ReasonCapture)
				r.log.Warn().Err(err).Str("reason", ReasonCapture).Msg("skipping unreadable capture record")
				continue
			}
			return fmt.Errorf("relay: read frame: %w", err)
		}

		a, err := r.Handle(ctx, f)
		if err != nil || a == nil {
			continue
		}
		if err := r.sink.Emit(ctx, a); err != nil {
			r.stats.SinkErrors++
			r.metrics.SinkErrors.Inc()
			r.log.Warn().Err(err).Msg("failed to emit activity")
		}
	}
}

// Handle turns one frame into an activity. Frames that carry no chat, or
// whose chat is suppressed, yield a nil activity and no error. A malformed
// frame yields its decode error; nothing else is affected.
func (r *Relay) Handle(_ context.Context, f capture.Frame) (*chat.Activity, error) {
	r.stats.Frames++
	r.metrics.Frames.WithLabelValues(f.Kind.String()).Inc()

	if f.Kind != capture.KindBinary {
		r.drop(ReasonText)
		return nil, nil
	}

	payload, ok, err := frame.Extract(f.Data)
	if err != nil {
		r.decodeFailed(ReasonEnvelope, f.Data, err)
		return nil, err
	}
	if !ok {
		r.drop(ReasonOpcode)
		return nil, nil
	}

	start := time.Now()
	msg, err := protocol.Decode(payload)
	r.metrics.DecodeDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		r.decodeFailed(ReasonDecode, f.Data, err)
		return nil, err
	}

	a, verdict := r.builder.Build(msg)
	if verdict != chat.VerdictEmit {
		r.drop(verdict.String())
		r.log.Debug().Str("reason", verdict.String()).Msg("chat suppressed")
		return nil, nil
	}

	if a.Type == chat.TypeEvent && !protocol.EventKind(a.Value).Known() {
		r.log.Warn().Uint64("code", a.Value).Msg("unclassified event code")
	}

	r.stats.Activities++
	r.metrics.Activities.WithLabelValues(a.Type, a.ChannelData.EventKind).Inc()
	return a, nil
}

func (r *Relay) drop(reason string) {
	r.stats.Dropped[reason]++
	r.metrics.FramesDropped.WithLabelValues(reason).Inc()
}

func (r *Relay) decodeFailed(reason string, data []byte, err error) {
	r.drop(reason)
	ev := r.log.Warn().Err(err).Str("reason", reason).Int("size", len(data))
	if env, perr := frame.ParseEnvelope(data); perr == nil {
		ev = ev.Uint16("opcode", env.Opcode)
	}
	ev.Msg("dropping malformed frame")
}

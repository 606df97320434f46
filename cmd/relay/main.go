package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/omochice/trovochat/internal/capture"
	"github.com/omochice/trovochat/internal/chat"
	"github.com/omochice/trovochat/internal/config"
	"github.com/omochice/trovochat/internal/logger"
	"github.com/omochice/trovochat/internal/metrics"
	"github.com/omochice/trovochat/internal/relay"
	"github.com/omochice/trovochat/internal/transport/kafka"
	"github.com/omochice/trovochat/internal/transport/ws"
	"github.com/omochice/trovochat/pkg/frame"
)

func main() {
	configPath := flag.String("config", "", "Path to a config file (yaml, toml or json)")
	watch := flag.Bool("watch", false, "Reload the log level when the config file changes")
	flag.Parse()

	loader := config.NewLoader(*configPath)
	cfg, err := loader.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	lg, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create logger")
	}

	if *watch && loader.ConfigFileUsed() != "" {
		loader.Watch(func(next *config.Config, err error) {
			if err != nil {
				lg.Warn().Err(err).Msg("ignoring invalid config change")
				return
			}
			if err := logger.SetLevel(next.Logger.Level); err != nil {
				lg.Warn().Err(err).Msg("ignoring invalid log level")
				return
			}
			lg.Info().Str("level", next.Logger.Level).Msg("log level reloaded")
		})
	}

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lg); err != nil {
		lg.Fatal().Err(err).Msg("relay stopped")
	}
	lg.Info().Msg("relay stopped")
}

func run(ctx context.Context, cfg *config.Config, lg zerolog.Logger) error {
	m := metrics.New()
	if cfg.Metrics.Listen != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Listen, lg); err != nil {
				lg.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	src, err := openSource(ctx, cfg.Capture, lg)
	if err != nil {
		return err
	}
	defer src.Close()

	sinks, closeSinks, err := openSinks(cfg, m, lg)
	if err != nil {
		return err
	}
	defer closeSinks()

	r := relay.New(src, chat.NewBuilder(cfg.Identity()), sinks,
		relay.WithLogger(lg),
		relay.WithMetrics(m),
	)
	lg.Info().Str("mode", cfg.Capture.Mode).Str("channel", cfg.Bot.Channel).Msg("relay started")

	err = r.Run(ctx)
	stats := r.Stats()
	lg.Info().
		Int("frames", stats.Frames).
		Int("activities", stats.Activities).
		Int("sink_errors", stats.SinkErrors).
		Interface("dropped", stats.Dropped).
		Msg("relay finished")
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func openSource(ctx context.Context, cfg config.CaptureConfig, lg zerolog.Logger) (capture.Source, error) {
	limits := frame.DefaultLimits()
	if cfg.MaxFrame > 0 {
		limits.MaxFrameBytes = cfg.MaxFrame
	}

	switch cfg.Mode {
	case config.ModeWebSocket:
		header := http.Header{}
		if cfg.Origin != "" {
			header.Set("Origin", cfg.Origin)
		}
		return capture.DialWS(ctx, cfg.URL, header)
	case config.ModeTCP:
		return capture.ListenTCP(cfg.Listen, limits, lg)
	case config.ModeCDP:
		return capture.OpenCDP(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown capture mode %q", cfg.Mode)
	}
}

func openSinks(cfg *config.Config, m *metrics.Metrics, lg zerolog.Logger) (chat.Sink, func(), error) {
	var (
		sinks   chat.MultiSink
		closers []func()
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Sinks.Stdout {
		sinks = append(sinks, chat.NewWriterSink(os.Stdout))
	}

	if cfg.Sinks.WebSocketListen != "" {
		hub := chat.NewHub(lg)
		srv := ws.New(cfg.Sinks.WebSocketListen, hub, lg)
		if err := srv.Listen(); err != nil {
			closeAll()
			return nil, nil, err
		}
		go func() {
			if err := srv.Serve(); err != nil {
				lg.Error().Err(err).Msg("WebSocket server failed")
			}
		}()
		sinks = append(sinks, hub)
		closers = append(closers, srv.Stop)
	}

	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(cfg.Kafka, lg, kafka.WithFailureHandler(func(n int, _ error) {
			m.SinkErrors.Add(float64(n))
		}))
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		pub := kafka.NewEventPublisher(producer, cfg.Kafka.Topic)
		sinks = append(sinks, pub)
		closers = append(closers, func() {
			if err := pub.Close(); err != nil {
				lg.Warn().Err(err).Msg("failed to close kafka publisher")
			}
		})
	}

	return sinks, closeAll, nil
}

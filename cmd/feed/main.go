package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"

	"github.com/omochice/trovochat/internal/capture"
	"github.com/omochice/trovochat/internal/client/tcp"
	"github.com/omochice/trovochat/internal/logger"
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9400", "Relay TCP ingest address")
	in := flag.String("in", "", "CDP capture file to replay")
	flag.Parse()

	lg, err := logger.New(logger.Config{Format: logger.FormatConsole, Output: "stderr"})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create logger")
	}
	if *in == "" {
		lg.Fatal().Msg("capture file is required. Use -in flag")
	}

	src, err := capture.OpenCDP(*in)
	if err != nil {
		lg.Fatal().Err(err).Msg("failed to open capture")
	}
	defer src.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c := tcp.New(*serverAddr)
	if err := c.Connect(ctx); err != nil {
		lg.Fatal().Err(err).Msg("failed to connect")
	}
	defer c.Disconnect()

	sent, skipped, err := c.Feed(ctx, src)
	ev := lg.Info()
	if err != nil {
		ev = lg.Error().Err(err)
	}
	ev.Int("sent", sent).Int("skipped", skipped).Int("lines", src.Line()).Msg("feed finished")
}

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/rs/zerolog/log"

	"github.com/omochice/trovochat/internal/capture"
	"github.com/omochice/trovochat/internal/chat"
	"github.com/omochice/trovochat/internal/logger"
	"github.com/omochice/trovochat/internal/relay"
)

func main() {
	in := flag.String("in", "-", "CDP capture file, one JSON event per line (- for stdin)")
	out := flag.String("out", "-", "Output file for activities as JSON lines (- for stdout)")
	botName := flag.String("bot-name", "", "Bot display name; its own messages are skipped")
	botUID := flag.Uint64("bot-uid", 0, "Bot user id")
	channel := flag.String("channel", "", "Channel the capture was taken from")
	level := flag.String("level", "info", "Log level")
	flag.Parse()

	lg, err := logger.New(logger.Config{Level: *level, Format: logger.FormatConsole, Output: "stderr"})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create logger")
	}

	src := capture.NewCDPSource(os.Stdin)
	if *in != "-" {
		if src, err = capture.OpenCDP(*in); err != nil {
			lg.Fatal().Err(err).Msg("failed to open capture")
		}
	}
	defer src.Close()

	w := os.Stdout
	if *out != "-" {
		if w, err = os.Create(*out); err != nil {
			lg.Fatal().Err(err).Msg("failed to create output")
		}
		defer w.Close()
	}

	id := chat.DefaultIdentity()
	id.BotName = *botName
	id.BotUID = *botUID
	id.Channel = *channel

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r := relay.New(src, chat.NewBuilder(id), chat.NewWriterSink(w), relay.WithLogger(lg))
	if err := r.Run(ctx); err != nil {
		lg.Error().Err(err).Int("line", src.Line()).Msg("replay stopped")
	}

	stats := r.Stats()
	lg.Info().
		Int("lines", src.Line()).
		Int("frames", stats.Frames).
		Int("activities", stats.Activities).
		Interface("dropped", stats.Dropped).
		Msg("replay finished")
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/omochice/trovochat/internal/chat"
	"github.com/omochice/trovochat/internal/client/ws"
	"github.com/omochice/trovochat/internal/logger"
)

func main() {
	serverAddr := flag.String("server", "ws://127.0.0.1:9401", "Relay WebSocket sink address")
	commandsOnly := flag.Bool("commands", false, "Only print bot commands")
	flag.Parse()

	lg, err := logger.New(logger.Config{Format: logger.FormatConsole, Output: "stderr"})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create logger")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := ws.New(*serverAddr, lg)
	if err := c.Connect(ctx); err != nil {
		lg.Fatal().Err(err).Msg("failed to connect")
	}
	defer c.Disconnect()

	lg.Info().Str("server", *serverAddr).Msg("connected")

	for {
		select {
		case <-ctx.Done():
			return
		case a, ok := <-c.Activities():
			if !ok {
				lg.Info().Msg("relay closed the connection")
				return
			}
			if *commandsOnly && !a.IsCommand() {
				continue
			}
			fmt.Println(format(a))
		}
	}
}

func format(a *chat.Activity) string {
	switch {
	case a.Type == chat.TypeEvent:
		return fmt.Sprintf("*** %s: %s (%s) ***", a.ChannelData.EventKind, a.Text, a.From.Name)
	case a.IsCommand():
		return fmt.Sprintf("[%s] %s %s", a.From.Name, a.ChannelData.Command, strings.Join(a.ChannelData.Args, " "))
	default:
		return fmt.Sprintf("[%s]: %s", a.From.Name, a.Text)
	}
}

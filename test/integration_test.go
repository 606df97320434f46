package test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/omochice/trovochat/internal/capture"
	"github.com/omochice/trovochat/internal/chat"
	"github.com/omochice/trovochat/internal/client/tcp"
	"github.com/omochice/trovochat/internal/client/ws"
	"github.com/omochice/trovochat/internal/relay"
	wsserver "github.com/omochice/trovochat/internal/transport/ws"
	"github.com/omochice/trovochat/pkg/frame"
	"github.com/omochice/trovochat/pkg/protocol"
)

func chatFrame(t *testing.T, c *protocol.Chat) []byte {
	t.Helper()
	payload, err := (&protocol.Message{Chat: c}).Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	return frame.Build(frame.OpcodeChat, payload)
}

// TestIntegration_FeedToSubscriber sends frames into the TCP ingest and
// expects the decoded activities on a WebSocket subscriber.
func TestIntegration_FeedToSubscriber(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ingest, err := capture.ListenTCP("127.0.0.1:0", frame.DefaultLimits(), zerolog.Nop())
	if err != nil {
		t.Fatalf("ListenTCP() error = %v", err)
	}
	defer ingest.Close()

	hub := chat.NewHub(zerolog.Nop())
	srv := wsserver.New("127.0.0.1:0", hub, zerolog.Nop())
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	go srv.Serve()
	defer srv.Stop()

	id := chat.DefaultIdentity()
	id.BotName = "relaybot"
	id.Channel = "somechannel"
	r := relay.New(ingest, chat.NewBuilder(id), hub)
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	subscriber := ws.New("ws://"+srv.Addr(), zerolog.Nop())
	if err := subscriber.Connect(ctx); err != nil {
		t.Fatalf("Subscriber failed to connect: %v", err)
	}
	defer subscriber.Disconnect()

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("Subscriber was never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	feeder := tcp.New(ingest.Addr())
	if err := feeder.Connect(ctx); err != nil {
		t.Fatalf("Feeder failed to connect: %v", err)
	}
	defer feeder.Disconnect()

	frames := [][]byte{
		chatFrame(t, &protocol.Chat{SenderID: 1, SenderName: "alice", Text: "hello"}),
		chatFrame(t, &protocol.Chat{SenderName: "relaybot", Text: "my own echo"}),
		frame.Build(5, []byte{0x08, 0x01}),
		chatFrame(t, &protocol.Chat{
			SenderName: "bob",
			Text:       "old line",
			Channel:    protocol.ChannelData{Details: map[string]string{protocol.DetailHistory: "1"}},
		}),
		chatFrame(t, &protocol.Chat{SenderID: 2, SenderName: "bob", Text: "!so alice"}),
		chatFrame(t, &protocol.Chat{SenderName: "carol", Text: "thanks for the follow", Value: uint64(protocol.KindFollow)}),
	}
	for i, f := range frames {
		if err := feeder.Send(f); err != nil {
			t.Fatalf("Send(%d) error = %v", i, err)
		}
	}

	want := []struct {
		typ, text, command, kind string
	}{
		{typ: chat.TypeMessage, text: "hello"},
		{typ: chat.TypeMessage, text: "!so alice", command: "!so"},
		{typ: chat.TypeEvent, text: "thanks for the follow", kind: "follow"},
	}
	for i, w := range want {
		select {
		case a, ok := <-subscriber.Activities():
			if !ok {
				t.Fatalf("Subscriber closed before activity %d", i)
			}
			if a.Type != w.typ || a.Text != w.text || a.ChannelData.Command != w.command || a.ChannelData.EventKind != w.kind {
				t.Errorf("Activity %d = %s %q %q %q, want %s %q %q %q", i,
					a.Type, a.Text, a.ChannelData.Command, a.ChannelData.EventKind,
					w.typ, w.text, w.command, w.kind)
			}
			if a.ServiceURL != "https://trovo.live/chat/somechannel" {
				t.Errorf("Activity %d ServiceURL = %q", i, a.ServiceURL)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("Timeout waiting for activity %d", i)
		}
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}

	stats := r.Stats()
	if stats.Activities != 3 {
		t.Errorf("Activities = %d, want 3", stats.Activities)
	}
	if stats.Dropped[chat.VerdictSelf.String()] != 1 || stats.Dropped[chat.VerdictHistory.String()] != 1 || stats.Dropped[relay.ReasonOpcode] != 1 {
		t.Errorf("Dropped = %v", stats.Dropped)
	}
}

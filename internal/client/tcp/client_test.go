package tcp_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/omochice/trovochat/internal/capture"
	"github.com/omochice/trovochat/internal/client/tcp"
	"github.com/omochice/trovochat/pkg/frame"
)

// startSink accepts one connection and collects everything written to it.
func startSink(t *testing.T) (string, <-chan []byte) {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to start sink: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	received := make(chan []byte, 1)
	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		received <- data
	}()
	return listener.Addr().String(), received
}

type sliceSource struct {
	items []any
}

func (s *sliceSource) Next(context.Context) (capture.Frame, error) {
	if len(s.items) == 0 {
		return capture.Frame{}, io.EOF
	}
	item := s.items[0]
	s.items = s.items[1:]
	if err, ok := item.(error); ok {
		return capture.Frame{}, err
	}
	return item.(capture.Frame), nil
}

func (s *sliceSource) Close() error { return nil }

func TestClient_ConnectAndDisconnect(t *testing.T) {
	addr, _ := startSink(t)

	c := tcp.New(addr)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	if !c.IsConnected() {
		t.Error("Expected client to be connected")
	}
	if err := c.Disconnect(); err != nil {
		t.Errorf("Disconnect() error = %v", err)
	}
	if c.IsConnected() {
		t.Error("Expected client to be disconnected")
	}
}

func TestClient_Send(t *testing.T) {
	addr, received := startSink(t)

	c := tcp.New(addr)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}

	f := frame.Build(frame.OpcodeChat, []byte{0x08, 0x01})
	if err := c.Send(f); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	c.Disconnect()

	if got := <-received; !bytes.Equal(got, f) {
		t.Errorf("Expected %x, got %x", f, got)
	}
}

func TestClient_SendRejectsInconsistentEnvelope(t *testing.T) {
	c := tcp.New("127.0.0.1:0")

	f := frame.Build(frame.OpcodeChat, []byte{0x08, 0x01})
	if err := c.Send(append(f, 0x00)); !errors.Is(err, frame.ErrEnvelopeInvalid) {
		t.Errorf("Expected ErrEnvelopeInvalid, got %v", err)
	}
	if err := c.Send(f); !errors.Is(err, tcp.ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
}

func TestClient_Feed(t *testing.T) {
	addr, received := startSink(t)

	c := tcp.New(addr)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}

	first := frame.Build(frame.OpcodeChat, []byte{0x08, 0x01})
	second := frame.Build(5, nil)
	src := &sliceSource{items: []any{
		capture.Frame{Kind: capture.KindBinary, Data: first},
		capture.Frame{Kind: capture.KindText, Data: []byte("ping")},
		capture.ErrMalformedLine,
		capture.Frame{Kind: capture.KindBinary, Data: []byte{0x01}},
		capture.Frame{Kind: capture.KindBinary, Data: second},
	}}

	sent, skipped, err := c.Feed(context.Background(), src)
	if err != nil {
		t.Fatalf("Feed() error = %v", err)
	}
	if sent != 2 || skipped != 3 {
		t.Errorf("Expected 2 sent and 3 skipped, got %d and %d", sent, skipped)
	}
	c.Disconnect()

	want := append(append([]byte{}, first...), second...)
	if got := <-received; !bytes.Equal(got, want) {
		t.Errorf("Expected %x, got %x", want, got)
	}
}
